package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cardquest/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成する。
// 影響行数が1でない場合はエラーを返す。ログだけ出して処理を続行すると、
// 裏付けレコードの無い登録を成功扱いにしてしまうため、必ず失敗させる。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, card_hash, username, chat_id)
		 VALUES ($1, $2, $3, $4)`,
		user.ID, user.CardHash, user.Username, user.ChatID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user already exists: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("unexpected rows affected on user insert: got %d, want 1", rowsAffected)
	}

	return nil
}

// FindByCardHash は指定カードハッシュのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByCardHash(ctx context.Context, cardHash string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, card_hash, username, chat_id FROM users WHERE card_hash = $1`,
		cardHash,
	)
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, card_hash, username, chat_id FROM users WHERE id = $1`,
		id,
	)
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, card_hash, username, chat_id FROM users WHERE username = $1`,
		username,
	)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.CardHash, &user.Username, &user.ChatID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
