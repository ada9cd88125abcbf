package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cardquest/internal/model"
)

// UserHandler はユーザー照会のHTTPハンドラー。
type UserHandler struct {
	service RegisterServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service RegisterServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// userResponse はユーザー照会の成功レスポンス。
type userResponse struct {
	Success  bool   `json:"success"`
	ID       string `json:"id"`
	CardHash string `json:"card_hash"`
	Username string `json:"username"`
}

// GetByCardHash は指定カードハッシュの本登録ユーザーを返す。
// GET /user/get/{hash}
//
// ハッシュの長さ検証はストアへの照会より先に行う。
// 不正な形式の入力がクエリとしてストアへ届くことはない。
func (h *UserHandler) GetByCardHash(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if len(hash) != model.CardHashLength {
		writeError(w, http.StatusBadRequest, model.ErrKindInvalidFormat,
			"ハッシュは64文字である必要があります")
		return
	}

	user, err := h.service.LookupByCardHash(r.Context(), hash)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		Success:  true,
		ID:       user.ID,
		CardHash: user.CardHash,
		Username: user.Username,
	})
}
