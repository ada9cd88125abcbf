package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/cardquest/internal/model"
)

// RegisterServiceInterface は登録ハンドラーが必要とするサービスインターフェース。
type RegisterServiceInterface interface {
	// Stage は仮登録レコードを作成する（フェーズ1）。
	Stage(ctx context.Context, cardHash string) (*model.StagedUser, error)

	// LookupByCardHash は指定カードハッシュの本登録ユーザーを取得する。
	LookupByCardHash(ctx context.Context, cardHash string) (*model.User, error)

	// LookupByID は指定IDの本登録ユーザーを取得する。
	LookupByID(ctx context.Context, id string) (*model.User, error)
}

// RegisterHandler は仮登録作成のHTTPハンドラー。
type RegisterHandler struct {
	service RegisterServiceInterface
}

// NewRegisterHandler はRegisterHandlerを生成する。
func NewRegisterHandler(service RegisterServiceInterface) *RegisterHandler {
	return &RegisterHandler{
		service: service,
	}
}

// registerRequest はPOST /user/registerのリクエストボディ。
type registerRequest struct {
	CardHash string `json:"card_hash"`
}

// registerResponse は仮登録作成の成功レスポンス。
type registerResponse struct {
	Success  bool   `json:"success"`
	ID       string `json:"id"`
	CardHash string `json:"card_hash"`
}

// Register は仮登録レコードを作成する。
// POST /user/register
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrKindInvalidRequest,
			"リクエストボディのJSONが正しくありません")
		return
	}

	staged, err := h.service.Stage(r.Context(), req.CardHash)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Success:  true,
		ID:       staged.ID,
		CardHash: staged.CardHash,
	})
}
