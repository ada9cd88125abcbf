package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cardquest/internal/metrics"
	"github.com/hitoshi/cardquest/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	RegisterService RegisterServiceInterface
	Avatars         AvatarOpener
	RateLimiter     *middleware.RateLimiter
	Logger          *slog.Logger

	// StatusObserver はHTTPステータスのメトリクス記録先（nil可）。
	StatusObserver middleware.StatusObserver

	// MetricsGatherer が非nilの場合は/metricsを公開する。
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成した
// chi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders
//
// 仮登録作成ルートのみクライアントIPごとのレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusObserver))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	registerHandler := NewRegisterHandler(deps.RegisterService)
	userHandler := NewUserHandler(deps.RegisterService)
	avatarHandler := NewAvatarHandler(deps.RegisterService, deps.Avatars)

	r.Route("/user", func(r chi.Router) {
		// POST /user/register - 仮登録作成（レート制限付き）
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.RegisterMiddleware()).Post("/register", registerHandler.Register)
		} else {
			r.Post("/register", registerHandler.Register)
		}

		r.Get("/get/{hash}", userHandler.GetByCardHash)
		r.Get("/avatar/{id}", avatarHandler.GetByID)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if deps.MetricsGatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.MetricsGatherer).ServeHTTP)
	}

	// ルーティングにマッチしない場合も統一エラーフォーマットで返す
	r.NotFound(NotFoundHandler())

	return r
}
