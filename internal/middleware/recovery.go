package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
)

// PanicRecorder はハンドラーで発生したpanicをルート単位で記録する。
type PanicRecorder interface {
	RecordPanic(route string)
}

// unmatchedRoute はルーティング前にpanicした場合のルートラベル。
const unmatchedRoute = "unmatched"

// NewRecoveryMiddleware はハンドラーのpanicを回収するミドルウェアを返す。
// ログとメトリクスに記録し、応答がまだ書き出されていなければ500のエラーエンベロープを返す。
// recorderがnilの場合はメトリクスを記録しない。
func NewRecoveryMiddleware(logger *slog.Logger, recorder PanicRecorder) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				// net/httpの中断用panicはそのまま伝播させる
				if p == http.ErrAbortHandler {
					panic(p)
				}

				route := routePattern(r)
				if recorder != nil {
					recorder.RecordPanic(route)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", p),
					slog.String("method", r.Method),
					slog.String("route", route),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.Bool("response_started", rec.written),
					slog.String("stack", string(debug.Stack())),
				)
				if !rec.written {
					WriteInternalServerError(rec)
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// routePattern はchiがマッチしたルートパターンを返す。生のパスは返さない。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
