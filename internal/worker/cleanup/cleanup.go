// Package cleanup は保持期間を過ぎたレート制限記録の定期削除ジョブを提供する。
// 判定時にも削除は行われるが、リクエストが途絶えた間に記録が残り続けないよう
// ワーカーモードで一定間隔ごとに実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blogpulse/internal/metrics"
)

// Purger は保持期間を過ぎた記録を削除するインターフェース。
// *ratelimit.Limiter が満たす。
type Purger interface {
	EvictExpired(ctx context.Context) (int64, error)
}

// CleanupJob はレート制限記録の削除ジョブ。
type CleanupJob struct {
	purger  Purger
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	// Interval は定期実行の間隔（デフォルト: 1時間）
	Interval time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger Purger, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		purger:   purger,
		metrics:  collector,
		logger:   logger,
		Interval: time.Hour,
	}
}

// Run は削除を1回実行する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.purger.EvictExpired(ctx)
	if err != nil {
		j.logger.Error("レート制限記録のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("レート制限記録のクリーンアップに失敗: %w", err)
	}

	j.metrics.RecordRateLimitPurged(deleted)
	j.logger.Info("レート制限記録のクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後Intervalごとに削除を実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
