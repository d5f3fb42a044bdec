package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/blogpulse/internal/captcha"
	"github.com/hitoshi/blogpulse/internal/catalog"
	"github.com/hitoshi/blogpulse/internal/clap"
	"github.com/hitoshi/blogpulse/internal/comment"
	"github.com/hitoshi/blogpulse/internal/config"
	"github.com/hitoshi/blogpulse/internal/database"
	"github.com/hitoshi/blogpulse/internal/handler"
	"github.com/hitoshi/blogpulse/internal/logger"
	"github.com/hitoshi/blogpulse/internal/metrics"
	"github.com/hitoshi/blogpulse/internal/middleware"
	"github.com/hitoshi/blogpulse/internal/model"
	"github.com/hitoshi/blogpulse/internal/moderation"
	"github.com/hitoshi/blogpulse/internal/ratelimit"
	"github.com/hitoshi/blogpulse/internal/repository"
	"github.com/hitoshi/blogpulse/internal/security"
	"github.com/hitoshi/blogpulse/internal/spam"
	"github.com/hitoshi/blogpulse/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// 設定読み込み前のログはInfoレベルで出力し、読み込み後にLOG_LEVELを反映する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	l := logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。serveとworkerはctxがキャンセルされるまでブロックする。
func Run(ctx context.Context, w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(ctx, port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("rate_limit_backend", cfg.RateLimitBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, l)
	case CommandMigrate:
		return runMigrate(cfg, l)
	default:
		return runServe(ctx, cfg, l)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config, l *slog.Logger) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	l.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newRateLimitStore は設定に応じたレート制限ストアを生成する。
// 返されるclose関数は外部接続を持つストアの後始末を行う。
func newRateLimitStore(ctx context.Context, cfg *config.Config, db *sql.DB, l *slog.Logger) (repository.RateLimitRepository, func(), error) {
	if cfg.RateLimitBackend != config.RateLimitBackendRedis {
		return repository.NewPostgresRateLimitRepo(db), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	l.Info("redis connection established", slog.String("addr", opts.Addr))
	return repository.NewRedisRateLimitRepo(client, cfg.RateLimitRetention), func() { client.Close() }, nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newPostCatalog はSITE_FEED_URLが設定されている場合に記事カタログを生成する。
// 未設定の場合はnilを返し、記事の実在確認を行わない。
func newPostCatalog(cfg *config.Config, l *slog.Logger) (comment.PostCatalog, error) {
	if cfg.SiteFeedURL == "" {
		return nil, nil
	}
	if err := security.ValidateEndpoint(cfg.SiteFeedURL); err != nil {
		return nil, fmt.Errorf("invalid SITE_FEED_URL: %w", err)
	}
	return catalog.NewFeedCatalog(security.NewOutboundClient(30*time.Second), cfg.SiteFeedURL, cfg.SiteFeedTTL, l), nil
}

// runServe はアクションAPIサーバーとして起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. ストアの初期化
	commentRepo := repository.NewPostgresCommentRepo(db)
	clapRepo := repository.NewPostgresClapRepo(db)
	rateStore, closeStore, err := newRateLimitStore(ctx, cfg, db, l)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. 外部連携の初期化
	if cfg.TurnstileVerifyURL != "" {
		if err := security.ValidateEndpoint(cfg.TurnstileVerifyURL); err != nil {
			return fmt.Errorf("invalid TURNSTILE_VERIFY_URL: %w", err)
		}
	}
	verifier := captcha.NewTurnstileClient(
		security.NewOutboundClient(cfg.TurnstileTimeout),
		cfg.TurnstileSecretKey, cfg.TurnstileVerifyURL, l,
	)
	postCatalog, err := newPostCatalog(cfg, l)
	if err != nil {
		return err
	}

	// 4. ドメインサービスの初期化
	reg, collector := newRegistry()
	limiter := ratelimit.NewLimiter(rateStore, cfg.RateLimitRetention, l)

	defaultStatus := model.CommentStatusApproved
	if !cfg.CommentAutoApprove {
		defaultStatus = model.CommentStatusPending
	}
	commentService := comment.NewService(
		commentRepo, limiter, verifier, spam.NewClassifier(), postCatalog,
		security.NewDisplaySanitizer(), collector, l,
		comment.Options{
			DefaultStatus: defaultStatus,
			RateProfile: ratelimit.Profile{
				Action:     ratelimit.ActionComment,
				Window:     cfg.CommentRateWindow,
				MaxActions: cfg.CommentRateMax,
			},
		},
	)
	clapService := clap.NewService(clapRepo, limiter, postCatalog, collector, l, ratelimit.Profile{
		Action:     ratelimit.ActionLike,
		Window:     cfg.LikeRateWindow,
		MaxActions: cfg.LikeRateMax,
	})
	moderationService := moderation.NewService(commentRepo, clapRepo, cfg.AdminKey, collector, l)

	if cfg.AdminKey == "" {
		l.Warn("ADMIN_KEY が未設定のため、管理アクションは全て拒否されます")
	}

	// 5. ルーターの構築
	floodGuard := middleware.NewFloodGuard(middleware.FloodGuardConfigPerMinute(cfg.HTTPRateLimit))
	defer floodGuard.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            l,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		FloodGuard:        floodGuard,
		CommentService:    commentService,
		ClapService:       clapService,
		ModerationService: moderationService,
		Metrics:           collector,
		DB:                db,
		MetricsHandler:    metrics.Handler(reg),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	l.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// レート制限記録のうち保持期間を過ぎたものを定期的に削除する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	rateStore, closeStore, err := newRateLimitStore(ctx, cfg, db, l)
	if err != nil {
		return err
	}
	defer closeStore()

	_, collector := newRegistry()
	limiter := ratelimit.NewLimiter(rateStore, cfg.RateLimitRetention, l)

	job := cleanup.NewCleanupJob(limiter, collector, l)
	if cfg.CleanupInterval > 0 {
		job.Interval = cfg.CleanupInterval
	}

	l.Info("worker starting",
		slog.Duration("cleanup_interval", job.Interval),
		slog.Duration("retention", cfg.RateLimitRetention),
	)

	job.Start(ctx)

	l.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s/health", port), nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
