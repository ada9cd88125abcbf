// Package quest はクエスト割り当てのサービス層を提供する。
package quest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/cardquest/internal/model"
	"github.com/hitoshi/cardquest/internal/repository"
)

// Service はクエスト割り当てのサービス。
type Service struct {
	quests repository.QuestRepository
	users  repository.UserRepository
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(quests repository.QuestRepository, users repository.UserRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		quests: quests,
		users:  users,
		logger: logger,
	}
}

// CreateQuest は指定ユーザー名のプレイヤーへクエストを割り当てる。
// 割り当て先が見つからない場合はnilを返す（呼び出し側が案内する）。
func (s *Service) CreateQuest(ctx context.Context, questName, assigneeUsername string) (*model.Quest, error) {
	assignee, err := s.users.FindByUsername(ctx, assigneeUsername)
	if err != nil {
		return nil, fmt.Errorf("割り当て先ユーザーの検索に失敗しました: %w", err)
	}
	if assignee == nil {
		return nil, nil
	}

	quest := &model.Quest{
		ID:         uuid.NewString(),
		AssignedTo: assignee.CardHash,
		QuestName:  questName,
	}

	if err := s.quests.Create(ctx, quest); err != nil {
		return nil, fmt.Errorf("クエストの作成に失敗しました: %w", err)
	}

	s.logger.Info("クエストを作成しました",
		slog.String("quest_id", quest.ID),
		slog.String("assignee", assigneeUsername),
	)

	return quest, nil
}

// AcknowledgeQuest は指定IDのクエストを完了として削除する。
// クエストが見つからない場合はnilを返す（呼び出し側が案内する）。
// idカラムはUUID型のため、UUID形式でない入力はストアへ照会せず未発見扱いにする。
func (s *Service) AcknowledgeQuest(ctx context.Context, questID string) (*model.Quest, error) {
	if _, err := uuid.Parse(questID); err != nil {
		return nil, nil
	}

	quest, err := s.quests.FindByID(ctx, questID)
	if err != nil {
		return nil, fmt.Errorf("クエストの検索に失敗しました: %w", err)
	}
	if quest == nil {
		return nil, nil
	}

	if err := s.quests.DeleteByID(ctx, questID); err != nil {
		return nil, fmt.Errorf("クエストの削除に失敗しました: %w", err)
	}

	s.logger.Info("クエストを完了しました",
		slog.String("quest_id", questID),
	)

	return quest, nil
}
