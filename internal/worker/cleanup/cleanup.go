// Package cleanup は期限切れのカレンダー同期保留リクエストの定期削除ジョブを提供する。
// 保留リクエストはコールバック時にも期限を確認するため、このジョブは表の肥大化を防ぐためだけに動く。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/travelplanner/internal/metrics"
)

// DefaultInterval はクリーンアップの実行間隔のデフォルト値。
const DefaultInterval = 5 * time.Minute

// ExpiredPurger は期限切れの保留リクエストを削除するインターフェース。
// repository.PendingSyncRepositoryが満たす。
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は期限切れの保留リクエストの削除ジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	purger    ExpiredPurger
	logger    *slog.Logger
	collector metrics.MetricsCollector // nilの場合は記録しない
	Interval  time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger ExpiredPurger, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	return &CleanupJob{
		purger:    purger,
		logger:    logger,
		collector: collector,
		Interval:  DefaultInterval,
	}
}

// Run は期限切れの保留リクエストを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.purger.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("保留リクエストのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("保留リクエストのクリーンアップに失敗: %w", err)
	}

	if j.collector != nil && deletedCount > 0 {
		j.collector.RecordPendingSyncsExpired(deletedCount)
	}

	j.logger.Info("保留リクエストのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降Intervalごとに実行する。
// ctxがキャンセルされるまでブロックする。1回の失敗では停止しない。
func (j *CleanupJob) Start(ctx context.Context) {
	j.logger.Info("cleanup job starting", slog.Duration("interval", j.Interval))

	_ = j.Run(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup job stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
