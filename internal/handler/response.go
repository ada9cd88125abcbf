// Package handler はHTTP登録ゲートウェイのハンドラーを提供する。
// 会話エンジンと同じストアを共有し、フェーズ1の仮登録作成と
// 読み取り専用の照会を非対話クライアント向けに公開する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cardquest/internal/model"
)

// errorBody は失敗レスポンスのerrorフィールド。
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// errorResponse は統一エラーフォーマットのレスポンス。
type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// writeJSON は成功レスポンスを書き込む。
// ペイロード側がsuccessフィールドを含むこと。
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("レスポンスのエンコードに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// writeError は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Error: errorBody{
			Kind:    kind,
			Message: message,
		},
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスへ変換する。
// *model.APIErrorはそのkindに対応するステータスで返し、
// それ以外はUPSTREAM_ERRORの500として返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.StatusCode(), apiErr.Kind, apiErr.Message)
		return
	}

	slog.Error("未分類のサービスエラー",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, model.ErrKindUpstreamError,
		"サーバー内部でエラーが発生しました")
}

// NotFoundHandler はルーティングにマッチしないリクエストへの
// フォールバックハンドラーを返す。
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, model.ErrKindNotFound,
			"指定されたエンドポイントが見つかりません")
	}
}
