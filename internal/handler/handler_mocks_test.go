package handler

import (
	"context"
	"io"

	"github.com/hitoshi/cardquest/internal/model"
)

const testCardHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// mockRegisterService はRegisterServiceInterfaceのモック実装。
type mockRegisterService struct {
	stageFunc            func(ctx context.Context, cardHash string) (*model.StagedUser, error)
	lookupByCardHashFunc func(ctx context.Context, cardHash string) (*model.User, error)
	lookupByIDFunc       func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockRegisterService) Stage(ctx context.Context, cardHash string) (*model.StagedUser, error) {
	if m.stageFunc == nil {
		return &model.StagedUser{CardHash: cardHash, ID: "staged-1"}, nil
	}
	return m.stageFunc(ctx, cardHash)
}

func (m *mockRegisterService) LookupByCardHash(ctx context.Context, cardHash string) (*model.User, error) {
	if m.lookupByCardHashFunc == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return m.lookupByCardHashFunc(ctx, cardHash)
}

func (m *mockRegisterService) LookupByID(ctx context.Context, id string) (*model.User, error) {
	if m.lookupByIDFunc == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return m.lookupByIDFunc(ctx, id)
}

// mockAvatarOpener はAvatarOpenerのモック実装。
type mockAvatarOpener struct {
	openFunc func(cardHash string) (io.ReadCloser, error)
}

func (m *mockAvatarOpener) Open(cardHash string) (io.ReadCloser, error) {
	if m.openFunc == nil {
		return nil, nil
	}
	return m.openFunc(cardHash)
}
