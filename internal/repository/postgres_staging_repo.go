package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cardquest/internal/model"
)

// PostgresStagingRepo はPostgreSQLを使用した仮登録リポジトリ。
type PostgresStagingRepo struct {
	db *sql.DB
}

// NewPostgresStagingRepo はPostgresStagingRepoを生成する。
func NewPostgresStagingRepo(db *sql.DB) *PostgresStagingRepo {
	return &PostgresStagingRepo{db: db}
}

// Create は仮登録レコードを作成する。
// card_hashがPKのため、同一カードの二重仮登録は制約で拒否されErrDuplicateになる。
func (r *PostgresStagingRepo) Create(ctx context.Context, staged *model.StagedUser) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO staged_users (card_hash, id) VALUES ($1, $2)`,
		staged.CardHash, staged.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("staged user already exists: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to insert staged user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("unexpected rows affected on staged user insert: got %d, want 1", rowsAffected)
	}

	return nil
}

// ConsumeByPrefix はプレフィックス一致する仮登録レコードを取り出して削除する。
// 検索と削除を1文のDELETE ... RETURNINGで行うため、同一トークンの並行消費では
// 必ず片方だけが成功し、もう片方はnil（未検出）を観測する。
func (r *PostgresStagingRepo) ConsumeByPrefix(ctx context.Context, prefix string) (*model.StagedUser, error) {
	staged := &model.StagedUser{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM staged_users
		 WHERE card_hash = (
		     SELECT card_hash FROM staged_users WHERE left(card_hash, $2) = $1 LIMIT 1
		 )
		 RETURNING card_hash, id`,
		prefix, len(prefix),
	).Scan(&staged.CardHash, &staged.ID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume staged user: %w", err)
	}

	return staged, nil
}

// compile-time interface check
var _ StagingRepository = (*PostgresStagingRepo)(nil)
