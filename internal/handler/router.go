package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogpulse/internal/metrics"
	"github.com/hitoshi/blogpulse/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	FloodGuard        *middleware.FloodGuard // nilの場合は流量制限しない

	// アクション
	CommentService    CommentServiceInterface
	ClapService       ClapServiceInterface
	ModerationService ModerationServiceInterface
	Metrics           metrics.MetricsCollector

	// 運用
	DB             Pinger
	MetricsHandler http.Handler // nilの場合は /metrics を公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → FloodGuard（/_actions のみ）
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var collector metrics.MetricsCollector = metrics.Nop{}
	if deps.Metrics != nil {
		collector = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger, collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	actionHandler := NewActionHandler(deps.CommentService, deps.ClapService, deps.ModerationService, collector)
	healthHandler := NewHealthHandler(deps.DB)

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.FloodGuard != nil {
			r.Use(deps.FloodGuard.Middleware())
		}
		r.Post("/_actions/{action}", actionHandler.Dispatch)
	})

	return r
}
