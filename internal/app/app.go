package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cardquest/internal/avatar"
	"github.com/hitoshi/cardquest/internal/botapi"
	"github.com/hitoshi/cardquest/internal/chat"
	"github.com/hitoshi/cardquest/internal/config"
	"github.com/hitoshi/cardquest/internal/database"
	"github.com/hitoshi/cardquest/internal/handler"
	"github.com/hitoshi/cardquest/internal/logger"
	"github.com/hitoshi/cardquest/internal/metrics"
	"github.com/hitoshi/cardquest/internal/middleware"
	"github.com/hitoshi/cardquest/internal/quest"
	"github.com/hitoshi/cardquest/internal/register"
	"github.com/hitoshi/cardquest/internal/repository"
	"github.com/hitoshi/cardquest/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandBot:
		return runBot(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はゲートウェイAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	stagingRepo := repository.NewPostgresStagingRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)

	// 3. アバターストアの初期化
	// ゲートウェイは既存アセットの配信のみ行うため、取得元は不要。
	store, err := avatar.NewFSStore(cfg.AvatarDir)
	if err != nil {
		return fmt.Errorf("failed to prepare avatar directory: %w", err)
	}
	avatarSvc := avatar.NewService(store, nil, slog.Default())

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	registerSvc := register.NewService(
		stagingRepo, userRepo, avatarSvc,
		security.NewNameSanitizer(), collector, slog.Default(),
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitRegister),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		RegisterService: registerSvc,
		Avatars:         avatarSvc,
		RateLimiter:     rateLimiter,
		Logger:          slog.Default(),
		StatusObserver:  collector,
		MetricsGatherer: registry,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runBot は対話ボットモードで起動する。
// Bot APIのロングポーリングで更新を受信し、会話エンジンへ振り分ける。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runBot(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (bot)")

	// 2. リポジトリの初期化
	stagingRepo := repository.NewPostgresStagingRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	questRepo := repository.NewPostgresQuestRepo(db)

	// 3. Bot APIクライアントの初期化
	// 画像ダウンロードはSSRFガード付きクライアント経由で行う。
	// セルフホストのBot APIサーバーが非標準ポートで動く構成では
	// BOT_API_URLのポートをダウンロード許可ポートに加える。
	ssrfGuard := security.NewSSRFGuard()
	if u, err := url.Parse(cfg.BotAPIURL); err == nil && u.Port() != "" {
		if port, err := strconv.Atoi(u.Port()); err == nil {
			ssrfGuard = ssrfGuard.WithAllowedPorts(port)
		}
	}
	fileClient := ssrfGuard.NewSafeClient(cfg.DownloadTimeout, cfg.DownloadMaxSize)
	apiClient := &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}

	botClient := botapi.NewClient(
		apiClient, fileClient, cfg.BotAPIToken,
		cfg.DownloadMaxSize, ssrfGuard.ValidateURL, slog.Default(),
	)
	botClient.SetBaseURL(cfg.BotAPIURL)

	// 4. アバターサービスの初期化
	store, err := avatar.NewFSStore(cfg.AvatarDir)
	if err != nil {
		return fmt.Errorf("failed to prepare avatar directory: %w", err)
	}
	avatarSvc := avatar.NewService(store, botClient, slog.Default())

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. ドメインサービスの初期化
	registerSvc := register.NewService(
		stagingRepo, userRepo, avatarSvc,
		security.NewNameSanitizer(), collector, slog.Default(),
	)
	questSvc := quest.NewService(questRepo, userRepo, slog.Default())

	// 7. 会話エンジンとポーラーの構築
	sessions := chat.NewMemorySessionStore(cfg.SessionTTL, cfg.SessionTTL/2)
	engine := chat.NewEngine(sessions, registerSvc, questSvc, botClient, collector, slog.Default())
	poller := chat.NewPoller(botClient, engine, cfg.PollTimeout, cfg.BotMaxConcurrent, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down bot...")
		cancel()
	}()

	// メトリクス公開用の軽量HTTPサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     metrics.SetupMetricsRoute(registry),
		ReadTimeout: 15 * time.Second,
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("bot starting",
		slog.Duration("poll_timeout", cfg.PollTimeout),
		slog.Int("max_concurrent", cfg.BotMaxConcurrent),
	)

	// ポーラーをメインgoroutineで実行（ブロッキング）
	poller.Run(ctx)

	slog.Info("bot stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	healthURL := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(databaseURL string) string {
	if len(databaseURL) > 20 {
		return databaseURL[:12] + "***@..."
	}
	return "***"
}
