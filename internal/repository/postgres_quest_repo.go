package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cardquest/internal/model"
)

// PostgresQuestRepo はPostgreSQLを使用したクエストリポジトリ。
type PostgresQuestRepo struct {
	db *sql.DB
}

// NewPostgresQuestRepo はPostgresQuestRepoを生成する。
func NewPostgresQuestRepo(db *sql.DB) *PostgresQuestRepo {
	return &PostgresQuestRepo{db: db}
}

// Create はクエストを作成する。
func (r *PostgresQuestRepo) Create(ctx context.Context, quest *model.Quest) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO quests (id, assigned_to, quest_name) VALUES ($1, $2, $3)`,
		quest.ID, quest.AssignedTo, quest.QuestName,
	)
	if err != nil {
		return fmt.Errorf("failed to insert quest: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("unexpected rows affected on quest insert: got %d, want 1", rowsAffected)
	}

	return nil
}

// FindByID は指定IDのクエストを取得する。見つからない場合はnilを返す。
func (r *PostgresQuestRepo) FindByID(ctx context.Context, id string) (*model.Quest, error) {
	quest := &model.Quest{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, assigned_to, quest_name FROM quests WHERE id = $1`,
		id,
	).Scan(&quest.ID, &quest.AssignedTo, &quest.QuestName)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find quest: %w", err)
	}

	return quest, nil
}

// DeleteByID は指定IDのクエストを削除する。
func (r *PostgresQuestRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM quests WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete quest: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("quest not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ QuestRepository = (*PostgresQuestRepo)(nil)
