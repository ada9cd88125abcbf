package quest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/cardquest/internal/model"
)

const (
	testCardHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testQuestID  = "3f2c1b0a-9e8d-4c7b-a6f5-e4d3c2b1a098"
)

// mockQuestRepo はQuestRepositoryのモック実装。
type mockQuestRepo struct {
	createFunc   func(ctx context.Context, quest *model.Quest) error
	findByIDFunc func(ctx context.Context, id string) (*model.Quest, error)
	deleteFunc   func(ctx context.Context, id string) error
}

func (m *mockQuestRepo) Create(ctx context.Context, quest *model.Quest) error {
	if m.createFunc == nil {
		return nil
	}
	return m.createFunc(ctx, quest)
}

func (m *mockQuestRepo) FindByID(ctx context.Context, id string) (*model.Quest, error) {
	if m.findByIDFunc == nil {
		return nil, nil
	}
	return m.findByIDFunc(ctx, id)
}

func (m *mockQuestRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteFunc == nil {
		return nil
	}
	return m.deleteFunc(ctx, id)
}

// mockUserRepo はUserRepositoryのモック実装。
type mockUserRepo struct {
	findByUsernameFunc func(ctx context.Context, username string) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) FindByCardHash(ctx context.Context, cardHash string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFunc == nil {
		return nil, nil
	}
	return m.findByUsernameFunc(ctx, username)
}

func newTestService(quests *mockQuestRepo, users *mockUserRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(quests, users, logger)
}

func TestService_CreateQuest_Succeeds(t *testing.T) {
	users := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			if username != "alice" {
				return nil, nil
			}
			return &model.User{ID: "u1", CardHash: testCardHash, Username: "alice"}, nil
		},
	}
	var created *model.Quest
	quests := &mockQuestRepo{
		createFunc: func(ctx context.Context, quest *model.Quest) error {
			created = quest
			return nil
		},
	}
	svc := newTestService(quests, users)

	quest, err := svc.CreateQuest(context.Background(), "ドラゴン討伐", "alice")
	if err != nil {
		t.Fatalf("CreateQuest returned error: %v", err)
	}
	if quest.ID == "" {
		t.Error("expected generated quest id")
	}
	// クエストはユーザー名でなくカードハッシュに割り当てられる
	if quest.AssignedTo != testCardHash {
		t.Errorf("AssignedTo = %q, want card hash", quest.AssignedTo)
	}
	if quest.QuestName != "ドラゴン討伐" {
		t.Errorf("QuestName = %q", quest.QuestName)
	}
	if created == nil || created.ID != quest.ID {
		t.Errorf("created record mismatch: %+v", created)
	}
}

func TestService_CreateQuest_UnknownAssigneeReturnsNil(t *testing.T) {
	created := false
	quests := &mockQuestRepo{
		createFunc: func(ctx context.Context, quest *model.Quest) error {
			created = true
			return nil
		},
	}
	svc := newTestService(quests, &mockUserRepo{})

	quest, err := svc.CreateQuest(context.Background(), "討伐", "nobody")
	if err != nil {
		t.Fatalf("CreateQuest returned error: %v", err)
	}
	if quest != nil {
		t.Errorf("expected nil quest for unknown assignee, got %+v", quest)
	}
	if created {
		t.Error("quest must not be created for an unknown assignee")
	}
}

func TestService_AcknowledgeQuest_Succeeds(t *testing.T) {
	var deleted string
	quests := &mockQuestRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Quest, error) {
			return &model.Quest{ID: id, AssignedTo: testCardHash, QuestName: "討伐"}, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(quests, &mockUserRepo{})

	quest, err := svc.AcknowledgeQuest(context.Background(), testQuestID)
	if err != nil {
		t.Fatalf("AcknowledgeQuest returned error: %v", err)
	}
	if quest.QuestName != "討伐" {
		t.Errorf("QuestName = %q", quest.QuestName)
	}
	if deleted != testQuestID {
		t.Errorf("deleted id = %q, want %q", deleted, testQuestID)
	}
}

func TestService_AcknowledgeQuest_UnknownReturnsNil(t *testing.T) {
	deleted := false
	quests := &mockQuestRepo{
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(quests, &mockUserRepo{})

	// 形式は正しいが存在しないID
	quest, err := svc.AcknowledgeQuest(context.Background(), "00000000-0000-4000-8000-000000000000")
	if err != nil {
		t.Fatalf("AcknowledgeQuest returned error: %v", err)
	}
	if quest != nil {
		t.Errorf("expected nil for unknown quest, got %+v", quest)
	}
	if deleted {
		t.Error("unknown quest must not trigger a delete")
	}
}

// idカラムはUUID型のため、UUID形式でない入力はキャスト失敗のエラーではなく
// 未発見としてストアへの照会なしで扱われる。
func TestService_AcknowledgeQuest_MalformedIDReturnsNilWithoutQuery(t *testing.T) {
	queried := false
	quests := &mockQuestRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Quest, error) {
			queried = true
			return nil, nil
		},
	}
	svc := newTestService(quests, &mockUserRepo{})

	quest, err := svc.AcknowledgeQuest(context.Background(), "garbage")
	if err != nil {
		t.Fatalf("AcknowledgeQuest returned error: %v", err)
	}
	if quest != nil {
		t.Errorf("expected nil for malformed quest id, got %+v", quest)
	}
	if queried {
		t.Error("malformed quest id must never reach the store")
	}
}

func TestService_AcknowledgeQuest_DeleteFailurePropagates(t *testing.T) {
	quests := &mockQuestRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Quest, error) {
			return &model.Quest{ID: id}, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			return errors.New("db down")
		},
	}
	svc := newTestService(quests, &mockUserRepo{})

	if _, err := svc.AcknowledgeQuest(context.Background(), testQuestID); err == nil {
		t.Error("expected error when delete fails")
	}
}
