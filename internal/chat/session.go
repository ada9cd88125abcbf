package chat

// StateKind は会話状態の種別。
type StateKind int

const (
	// StateStartRegister は初期状態。/register <token> の入力を待つ。
	StateStartRegister StateKind = iota
	// StateGetUsername はユーザー名の入力を待つ。
	StateGetUsername
	// StateGetAvatar はアバター画像の入力を待つ。
	StateGetAvatar
)

// Session は会話ごとの登録進行状態。
// 状態に応じて必要なフィールドのみが意味を持つ。
type Session struct {
	State StateKind

	// GetUsername以降で有効。仮登録レコード由来の値。
	ID       string
	CardHash string

	// GetAvatarで有効。一意性チェック済みのユーザー名。
	Username string
}

// SessionStore は会話IDをキーとするセッション保存先のインターフェース。
// インプロセスキャッシュと外部キャッシュを差し替え可能にする。
type SessionStore interface {
	// GetOrDefault はセッションを取得する。存在しない場合は
	// StartRegister状態の新規セッションを返す。
	GetOrDefault(chatID int64) Session

	// Put はセッションを保存する。有効期限は実装側が管理する。
	Put(chatID int64, s Session)

	// Delete はセッションを破棄する。存在しない場合は何もしない。
	Delete(chatID int64)
}
