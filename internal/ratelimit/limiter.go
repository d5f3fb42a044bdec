// Package ratelimit は(IPアドレス, 操作種別)ごとのスライディングウィンドウ型レート制限を提供する。
// 記録は永続ストアに追記され、判定のたびに保持期間を過ぎた記録を全体から削除する。
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogpulse/internal/repository"
)

// 操作種別
const (
	ActionComment = "comment"
	ActionLike    = "like"
)

// DefaultRetention は記録を保持する期間のデフォルト値。
const DefaultRetention = 24 * time.Hour

// Profile は操作種別ごとの制限設定。
type Profile struct {
	Action     string
	Window     time.Duration
	MaxActions int
}

// CommentProfile はコメント投稿のデフォルト設定（5分間に2件）。
var CommentProfile = Profile{Action: ActionComment, Window: 5 * time.Minute, MaxActions: 2}

// LikeProfile はクラップのデフォルト設定（5分間に50件）。
var LikeProfile = Profile{Action: ActionLike, Window: 5 * time.Minute, MaxActions: 50}

// Limiter はRateLimitRepositoryを使用したレート制限器。
// 件数の確認と記録の追加は別ステートメントのため、同一IPの同時リクエストでは
// 上限をわずかに超えて許可されることがある。
type Limiter struct {
	store     repository.RateLimitRepository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewLimiter はLimiterを生成する。retentionが0以下の場合はDefaultRetentionを使用する。
func NewLimiter(store repository.RateLimitRepository, retention time.Duration, logger *slog.Logger) *Limiter {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Limiter{
		store:     store,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// EvictExpired は保持期間を過ぎた記録をIP・操作種別を問わず削除する。
func (l *Limiter) EvictExpired(ctx context.Context) (int64, error) {
	cutoff := l.now().Add(-l.retention).UnixMilli()
	deleted, err := l.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to evict expired rate limits: %w", err)
	}
	return deleted, nil
}

// Admit はipによるprofile.Actionの実行を許可するか判定する。
// 許可した場合はその場で記録を追加する。拒否した場合は何も書き込まない。
func (l *Limiter) Admit(ctx context.Context, ip string, profile Profile) (bool, error) {
	if _, err := l.EvictExpired(ctx); err != nil {
		return false, err
	}

	now := l.now().UnixMilli()
	since := now - profile.Window.Milliseconds()

	count, err := l.store.CountSince(ctx, ip, profile.Action, since)
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count >= profile.MaxActions {
		l.logger.Info("レート制限により拒否しました",
			slog.String("ip", ip),
			slog.String("action", profile.Action),
			slog.Int("count", count),
			slog.Int("max", profile.MaxActions),
		)
		return false, nil
	}

	if err := l.store.Record(ctx, ip, profile.Action, now); err != nil {
		return false, fmt.Errorf("failed to record rate limit: %w", err)
	}
	return true, nil
}
