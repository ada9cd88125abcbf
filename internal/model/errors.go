// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// KindはAPIレスポンスのerror.kindとしてそのまま公開される。
type APIError struct {
	Kind    string // エラー種別コード
	Message string // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// 定義済みエラー種別
const (
	ErrKindInvalidFormat  = "INVALID_FORMAT"
	ErrKindInvalidRequest = "INVALID_REQUEST"
	ErrKindNotFound       = "NOT_FOUND"
	ErrKindConflict       = "CONFLICT"
	ErrKindUpstreamError  = "UPSTREAM_ERROR"
	ErrKindIOError        = "IO_ERROR"
)

// StatusCode はエラー種別に対応するHTTPステータスコードを返す。
func (e *APIError) StatusCode() int {
	switch e.Kind {
	case ErrKindInvalidFormat, ErrKindInvalidRequest:
		return http.StatusBadRequest
	case ErrKindNotFound:
		return http.StatusNotFound
	case ErrKindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidFormatError は入力フォーマット不正エラーを生成する。
func NewInvalidFormatError(reason string) *APIError {
	return &APIError{
		Kind:    ErrKindInvalidFormat,
		Message: fmt.Sprintf("入力の形式が正しくありません: %s", reason),
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Kind:    ErrKindInvalidRequest,
		Message: fmt.Sprintf("リクエストが正しくありません: %s", reason),
	}
}

// NewNotFoundError はデータ未検出エラーを生成する。
func NewNotFoundError(what string) *APIError {
	return &APIError{
		Kind:    ErrKindNotFound,
		Message: fmt.Sprintf("データが見つかりません: %s", what),
	}
}

// NewConflictError は一意性制約違反エラーを生成する。
func NewConflictError(what string) *APIError {
	return &APIError{
		Kind:    ErrKindConflict,
		Message: fmt.Sprintf("既に存在しています: %s", what),
	}
}

// NewUpstreamError はストアまたはネットワーク起因のエラーを生成する。
func NewUpstreamError(reason string) *APIError {
	return &APIError{
		Kind:    ErrKindUpstreamError,
		Message: fmt.Sprintf("上流サービスでエラーが発生しました: %s", reason),
	}
}

// NewIOError はアセット書き込み失敗エラーを生成する。
func NewIOError(reason string) *APIError {
	return &APIError{
		Kind:    ErrKindIOError,
		Message: fmt.Sprintf("入出力エラーが発生しました: %s", reason),
	}
}
