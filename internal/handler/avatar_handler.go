package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cardquest/internal/model"
)

// AvatarOpener はアバターアセットの読み取りインターフェース。
type AvatarOpener interface {
	// Open はカードハッシュに対応するアセットのストリームを返す。
	// アセットが存在しない場合はnilを返す。
	Open(cardHash string) (io.ReadCloser, error)
}

// AvatarHandler はアバター配信のHTTPハンドラー。
type AvatarHandler struct {
	service RegisterServiceInterface
	avatars AvatarOpener
}

// NewAvatarHandler はAvatarHandlerを生成する。
func NewAvatarHandler(service RegisterServiceInterface, avatars AvatarOpener) *AvatarHandler {
	return &AvatarHandler{
		service: service,
		avatars: avatars,
	}
}

// GetByID は指定ユーザーIDのアバター画像をストリーム配信する。
// GET /user/avatar/{id}
//
// ユーザーIDをレコードへ解決してからカードハッシュでアセットを引く。
// ユーザーまたはアセットが無い場合はNOT_FOUND。
func (h *AvatarHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.service.LookupByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	rc, err := h.avatars.Open(user.CardHash)
	if err != nil {
		handleServiceError(w, model.NewIOError("アバターアセットの読み取りに失敗しました"))
		return
	}
	if rc == nil {
		writeError(w, http.StatusNotFound, model.ErrKindNotFound,
			"アバターが見つかりません")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/png")
	if _, err := io.Copy(w, rc); err != nil {
		// ヘッダー送信後のためステータスは変更できない
		slog.Error("アバターの配信に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
