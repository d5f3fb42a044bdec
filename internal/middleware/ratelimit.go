package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/blogpulse/internal/model"
)

// FloodGuardConfig はIPごとのリクエスト流量制限の設定を保持する。
// アクション単位の業務上のレート制限（ratelimitパッケージ）とは独立した、HTTP層の粗い防御。
type FloodGuardConfig struct {
	Rate            rate.Limit    // 1秒あたりの許容リクエスト数
	Burst           int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultFloodGuardConfig はデフォルト設定（60 req/min/IP）を返す。
func DefaultFloodGuardConfig() FloodGuardConfig {
	return FloodGuardConfig{
		Rate:            rate.Limit(60.0 / 60.0),
		Burst:           60,
		CleanupInterval: 5 * time.Minute,
	}
}

// FloodGuardConfigPerMinute は1分あたりのリクエスト数から設定を生成する。
// perMinuteが0以下の場合はデフォルト設定を返す。
func FloodGuardConfigPerMinute(perMinute int) FloodGuardConfig {
	cfg := DefaultFloodGuardConfig()
	if perMinute > 0 {
		cfg.Rate = rate.Limit(float64(perMinute) / 60.0)
		cfg.Burst = perMinute
	}
	return cfg
}

// ipLimiter はIPごとのレートリミッターとアクセス時刻を保持する。
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// FloodGuard はIPごとのトークンバケットでリクエスト流量を制限する。
type FloodGuard struct {
	config FloodGuardConfig

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFloodGuard は新しいFloodGuardを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewFloodGuard(config FloodGuardConfig) *FloodGuard {
	fg := &FloodGuard{
		config:   config,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}

	go fg.cleanupLoop()

	return fg
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼び出してもよい。
func (fg *FloodGuard) Stop() {
	fg.stopOnce.Do(func() { close(fg.stopCh) })
}

// Middleware はIPごとの流量制限ミドルウェアを返す。
// 上限を超えたリクエストには429と統一エラーフォーマットで応答する。
func (fg *FloodGuard) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !fg.limiterFor(ip).Allow() {
				slog.Warn("flood guard rejected request",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(fg.config.Rate)))
				WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
					Code:     model.ErrCodeRateLimited,
					Message:  "Too many requests. Please try again later.",
					Category: model.CategoryThrottle,
					Action:   "Please wait and retry after the specified time.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limiterCount は現在管理されているリミッターのエントリ数を返す。
func (fg *FloodGuard) limiterCount() int {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return len(fg.limiters)
}

func (fg *FloodGuard) limiterFor(ip string) *rate.Limiter {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	if il, ok := fg.limiters[ip]; ok {
		il.lastAccess = time.Now()
		return il.limiter
	}

	limiter := rate.NewLimiter(fg.config.Rate, fg.config.Burst)
	fg.limiters[ip] = &ipLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (fg *FloodGuard) cleanupLoop() {
	ticker := time.NewTicker(fg.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.cleanup(time.Now())
		case <-fg.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (fg *FloodGuard) cleanup(now time.Time) {
	ttl := fg.config.CleanupInterval * 2

	fg.mu.Lock()
	defer fg.mu.Unlock()
	for ip, il := range fg.limiters {
		if now.Sub(il.lastAccess) > ttl {
			delete(fg.limiters, ip)
		}
	}
}

// retryAfterSeconds はトークンが1つ補充されるまでの秒数を返す。
func retryAfterSeconds(r rate.Limit) int {
	sec := int(math.Ceil(1.0 / float64(r)))
	if sec < 1 {
		sec = 1
	}
	return sec
}
