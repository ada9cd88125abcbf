// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService はチャット経由で入力されたユーザー名をサニタイズする。
// ユーザー名はWebクライアント側で表示されるため、マークアップの混入を
// 許すとXSSの温床になる。bluemondayのStrictPolicyで全タグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService はユーザー名サニタイズ機能のインターフェースを定義する。
// 一意性チェックと本登録の前に必ず適用する。
type NameSanitizerService interface {
	// Sanitize は入力文字列から全HTMLタグを除去し、前後の空白を取り除いて返す。
	// サニタイズの結果が空文字列になる入力（タグのみの入力等）もあり得る。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、全マークアップが除去される。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力文字列から全HTMLタグを除去して返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
