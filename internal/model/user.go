// Package model はドメインモデルを定義する。
package model

// CardHashLength はカードハッシュ（SHA256の16進表現）の文字数。
const CardHashLength = 64

// TokenLength は登録トークンの文字数。
// トークンはカードハッシュの先頭8文字で、人間が手入力できる長さに切り詰めたもの。
const TokenLength = 8

// StagedUser はカード検証済み・本登録前の仮登録レコードを表す。
// フェーズ1（カード検証）で作成され、チャット側の登録フローが消費する。
type StagedUser struct {
	CardHash string
	ID       string
}

// User は本登録が完了したプレイヤーを表す。
// CardHashとUsernameはともに全レコードで一意。
type User struct {
	ID       string
	CardHash string
	Username string
	ChatID   int64
}

// Quest はプレイヤーに割り当てられた進行中のクエストを表す。
type Quest struct {
	ID         string
	AssignedTo string // 割り当て先プレイヤーのカードハッシュ
	QuestName  string
}
