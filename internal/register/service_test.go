package register

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/cardquest/internal/avatar"
	"github.com/hitoshi/cardquest/internal/model"
	"github.com/hitoshi/cardquest/internal/repository"
)

const testCardHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// mockStagingRepo はStagingRepositoryのモック実装。
type mockStagingRepo struct {
	createFunc  func(ctx context.Context, staged *model.StagedUser) error
	consumeFunc func(ctx context.Context, prefix string) (*model.StagedUser, error)
}

func (m *mockStagingRepo) Create(ctx context.Context, staged *model.StagedUser) error {
	if m.createFunc == nil {
		return nil
	}
	return m.createFunc(ctx, staged)
}

func (m *mockStagingRepo) ConsumeByPrefix(ctx context.Context, prefix string) (*model.StagedUser, error) {
	if m.consumeFunc == nil {
		return nil, nil
	}
	return m.consumeFunc(ctx, prefix)
}

// mockUserRepo はUserRepositoryのモック実装。
type mockUserRepo struct {
	createFunc         func(ctx context.Context, user *model.User) error
	findByCardHashFunc func(ctx context.Context, cardHash string) (*model.User, error)
	findByIDFunc       func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFunc func(ctx context.Context, username string) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc == nil {
		return nil
	}
	return m.createFunc(ctx, user)
}

func (m *mockUserRepo) FindByCardHash(ctx context.Context, cardHash string) (*model.User, error) {
	if m.findByCardHashFunc == nil {
		return nil, nil
	}
	return m.findByCardHashFunc(ctx, cardHash)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc == nil {
		return nil, nil
	}
	return m.findByIDFunc(ctx, id)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFunc == nil {
		return nil, nil
	}
	return m.findByUsernameFunc(ctx, username)
}

// mockIngestor はAvatarIngestorのモック実装。
type mockIngestor struct {
	uploadErr  error
	profileErr error
	removed    []string
	ingested   []string
}

func (m *mockIngestor) IngestUpload(ctx context.Context, cardHash string, photos []avatar.Photo) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.ingested = append(m.ingested, cardHash)
	return nil
}

func (m *mockIngestor) IngestProfilePhoto(ctx context.Context, cardHash string, chatID int64) error {
	if m.profileErr != nil {
		return m.profileErr
	}
	m.ingested = append(m.ingested, cardHash)
	return nil
}

func (m *mockIngestor) Remove(cardHash string) error {
	m.removed = append(m.removed, cardHash)
	return nil
}

// passthroughSanitizer はテスト用の素通しサニタイザー。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string { return strings.TrimSpace(raw) }

func newTestService(staging *mockStagingRepo, users *mockUserRepo, avatars *mockIngestor) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(staging, users, avatars, passthroughSanitizer{}, nil, logger)
}

func kindOf(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %v", err)
	}
	return apiErr.Kind
}

func TestService_Stage_RejectsMalformedHash(t *testing.T) {
	created := false
	staging := &mockStagingRepo{
		createFunc: func(ctx context.Context, staged *model.StagedUser) error {
			created = true
			return nil
		},
	}
	svc := newTestService(staging, &mockUserRepo{}, &mockIngestor{})

	tests := []struct {
		name string
		hash string
	}{
		{"短すぎる", "abc"},
		{"長すぎる", testCardHash + "a"},
		{"大文字を含む", strings.ToUpper(testCardHash)},
		{"16進でない文字を含む", "g" + testCardHash[1:]},
		{"空文字列", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Stage(context.Background(), tt.hash)
			if kindOf(t, err) != model.ErrKindInvalidFormat {
				t.Errorf("kind = %s, want INVALID_FORMAT", kindOf(t, err))
			}
		})
	}
	if created {
		t.Error("malformed hash must not reach the staging store")
	}
}

func TestService_Stage_Succeeds(t *testing.T) {
	var created *model.StagedUser
	staging := &mockStagingRepo{
		createFunc: func(ctx context.Context, staged *model.StagedUser) error {
			created = staged
			return nil
		},
	}
	svc := newTestService(staging, &mockUserRepo{}, &mockIngestor{})

	staged, err := svc.Stage(context.Background(), testCardHash)
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if staged.CardHash != testCardHash {
		t.Errorf("CardHash = %q, want %q", staged.CardHash, testCardHash)
	}
	if staged.ID == "" {
		t.Error("expected generated id")
	}
	if created == nil || created.ID != staged.ID {
		t.Errorf("created record mismatch: %+v", created)
	}
}

func TestService_Stage_DuplicateIsConflict(t *testing.T) {
	staging := &mockStagingRepo{
		createFunc: func(ctx context.Context, staged *model.StagedUser) error {
			return repository.ErrDuplicate
		},
	}
	svc := newTestService(staging, &mockUserRepo{}, &mockIngestor{})

	_, err := svc.Stage(context.Background(), testCardHash)
	if kindOf(t, err) != model.ErrKindConflict {
		t.Errorf("kind = %s, want CONFLICT", kindOf(t, err))
	}
}

func TestService_Consume_RejectsWrongTokenLength(t *testing.T) {
	reached := false
	staging := &mockStagingRepo{
		consumeFunc: func(ctx context.Context, prefix string) (*model.StagedUser, error) {
			reached = true
			return nil, nil
		},
	}
	svc := newTestService(staging, &mockUserRepo{}, &mockIngestor{})

	for _, token := range []string{"", "abc", "aaaaaaaaa"} {
		_, err := svc.Consume(context.Background(), token)
		if kindOf(t, err) != model.ErrKindInvalidFormat {
			t.Errorf("token %q: kind = %s, want INVALID_FORMAT", token, kindOf(t, err))
		}
	}
	if reached {
		t.Error("wrong-length token must not reach the staging store")
	}
}

func TestService_Consume_NotFoundReturnsNil(t *testing.T) {
	svc := newTestService(&mockStagingRepo{}, &mockUserRepo{}, &mockIngestor{})

	staged, err := svc.Consume(context.Background(), "aaaaaaaa")
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if staged != nil {
		t.Errorf("expected nil for missing record, got %+v", staged)
	}
}

func TestService_IsUsernameTaken(t *testing.T) {
	users := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			if username == "alice" {
				return &model.User{Username: "alice"}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(&mockStagingRepo{}, users, &mockIngestor{})

	taken, err := svc.IsUsernameTaken(context.Background(), "alice")
	if err != nil || !taken {
		t.Errorf("IsUsernameTaken(alice) = (%v, %v), want (true, nil)", taken, err)
	}

	taken, err = svc.IsUsernameTaken(context.Background(), "bob")
	if err != nil || taken {
		t.Errorf("IsUsernameTaken(bob) = (%v, %v), want (false, nil)", taken, err)
	}
}

func testFinalizeInput() FinalizeInput {
	return FinalizeInput{
		CardHash: testCardHash,
		ID:       "u1",
		Username: "alice",
		ChatID:   100,
	}
}

func TestService_FinalizeWithUpload_Succeeds(t *testing.T) {
	var inserted *model.User
	users := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			inserted = user
			return nil
		},
	}
	avatars := &mockIngestor{}
	svc := newTestService(&mockStagingRepo{}, users, avatars)

	err := svc.FinalizeWithUpload(context.Background(), testFinalizeInput(), []avatar.Photo{{FileID: "f", Width: 1, Height: 1}})
	if err != nil {
		t.Fatalf("FinalizeWithUpload returned error: %v", err)
	}

	want := &model.User{ID: "u1", CardHash: testCardHash, Username: "alice", ChatID: 100}
	if inserted == nil || *inserted != *want {
		t.Errorf("inserted = %+v, want %+v", inserted, want)
	}
	if len(avatars.removed) != 0 {
		t.Error("successful finalize must not remove the avatar")
	}
}

func TestService_FinalizeWithUpload_IngestFailureSkipsInsert(t *testing.T) {
	inserted := false
	users := &mockUserRepo{
		createFunc: func(ctx context.Context, user *model.User) error {
			inserted = true
			return nil
		},
	}
	avatars := &mockIngestor{uploadErr: errors.New("disk full")}
	svc := newTestService(&mockStagingRepo{}, users, avatars)

	err := svc.FinalizeWithUpload(context.Background(), testFinalizeInput(), []avatar.Photo{{FileID: "f"}})
	if kindOf(t, err) != model.ErrKindIOError {
		t.Errorf("kind = %s, want IO_ERROR", kindOf(t, err))
	}
	if inserted {
		t.Error("record must not be inserted when the avatar write fails")
	}
}

func TestService_Finalize_InsertFailureCompensatesAvatar(t *testing.T) {
	tests := []struct {
		name      string
		insertErr error
		wantKind  string
	}{
		{"一意性制約違反", repository.ErrDuplicate, model.ErrKindConflict},
		{"ストア障害", errors.New("db down"), model.ErrKindUpstreamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockUserRepo{
				createFunc: func(ctx context.Context, user *model.User) error {
					return tt.insertErr
				},
			}
			avatars := &mockIngestor{}
			svc := newTestService(&mockStagingRepo{}, users, avatars)

			err := svc.FinalizeWithUpload(context.Background(), testFinalizeInput(), []avatar.Photo{{FileID: "f"}})
			if kindOf(t, err) != tt.wantKind {
				t.Errorf("kind = %s, want %s", kindOf(t, err), tt.wantKind)
			}

			// 書き込み済みアバターの補償削除
			if len(avatars.removed) != 1 || avatars.removed[0] != testCardHash {
				t.Errorf("removed = %v, want [%s]", avatars.removed, testCardHash)
			}
		})
	}
}

func TestService_FinalizeWithProfilePhoto_NoPhotoPassesThrough(t *testing.T) {
	avatars := &mockIngestor{profileErr: avatar.ErrNoProfilePhoto}
	svc := newTestService(&mockStagingRepo{}, &mockUserRepo{}, avatars)

	err := svc.FinalizeWithProfilePhoto(context.Background(), testFinalizeInput())
	if !errors.Is(err, avatar.ErrNoProfilePhoto) {
		t.Errorf("expected ErrNoProfilePhoto, got %v", err)
	}
}

func TestService_LookupByCardHash_NotFound(t *testing.T) {
	svc := newTestService(&mockStagingRepo{}, &mockUserRepo{}, &mockIngestor{})

	_, err := svc.LookupByCardHash(context.Background(), testCardHash)
	if kindOf(t, err) != model.ErrKindNotFound {
		t.Errorf("kind = %s, want NOT_FOUND", kindOf(t, err))
	}
}

func TestService_LookupByID_Succeeds(t *testing.T) {
	const userID = "5f0c3a9e-1b2d-4c3e-8f4a-9b8c7d6e5f4a"
	want := &model.User{ID: userID, CardHash: testCardHash, Username: "alice"}
	users := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			if id == userID {
				return want, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(&mockStagingRepo{}, users, &mockIngestor{})

	got, err := svc.LookupByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("LookupByID returned error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// idカラムはUUID型のため、UUID形式でない入力はキャスト失敗の上流エラーではなく
// ストアへの照会なしでNOT_FOUNDになる。
func TestService_LookupByID_MalformedIDIsNotFoundWithoutQuery(t *testing.T) {
	queried := false
	users := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			queried = true
			return nil, nil
		},
	}
	svc := newTestService(&mockStagingRepo{}, users, &mockIngestor{})

	for _, id := range []string{"garbage", "u1", "", "5f0c3a9e-1b2d-4c3e-8f4a"} {
		_, err := svc.LookupByID(context.Background(), id)
		if kindOf(t, err) != model.ErrKindNotFound {
			t.Errorf("LookupByID(%q) kind = %s, want NOT_FOUND", id, kindOf(t, err))
		}
	}
	if queried {
		t.Error("malformed id must never reach the store")
	}
}
