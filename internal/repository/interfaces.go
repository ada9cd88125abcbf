// Package repository はデータ永続化のインターフェースを定義する。
// 登録ワークフロー全体で使う永続化操作はここに集約し、
// ストア実装（PostgreSQL）の詳細は各リポジトリに閉じ込める。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/cardquest/internal/model"
)

// ErrDuplicate は一意性制約違反を表すセンチネルエラー。
// 呼び出し側はerrors.Isで判定し、Conflictとして扱う。
var ErrDuplicate = errors.New("duplicate key")

// StagingRepository は仮登録レコードの永続化インターフェース。
type StagingRepository interface {
	// Create は仮登録レコードを作成する。
	// 同一card_hashのレコードが既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, staged *model.StagedUser) error

	// ConsumeByPrefix はcard_hashが指定プレフィックスで始まる仮登録レコードを
	// 1文のアトミックな削除で取り出す。見つからない場合はnilを返す。
	// prefixは必ずmodel.TokenLength文字であること（呼び出し側が検証する）。
	ConsumeByPrefix(ctx context.Context, prefix string) (*model.StagedUser, error)
}

// UserRepository は本登録済みユーザーの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。card_hashまたはusernameが重複する場合は
	// ErrDuplicateを返す。影響行数が1でない場合はエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByCardHash は指定カードハッシュのユーザーを取得する。見つからない場合はnilを返す。
	FindByCardHash(ctx context.Context, cardHash string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// QuestRepository は進行中クエストの永続化インターフェース。
type QuestRepository interface {
	// Create はクエストを作成する。
	Create(ctx context.Context, quest *model.Quest) error

	// FindByID は指定IDのクエストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Quest, error)

	// DeleteByID は指定IDのクエストを削除する。
	// 削除対象が存在しない場合はエラーを返す。
	DeleteByID(ctx context.Context, id string) error
}
