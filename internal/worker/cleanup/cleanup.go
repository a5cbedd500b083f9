// Package cleanup は放置された登録セッションの自動破棄ジョブを提供する。
// 最終操作からMaxIdle（デフォルト30分）を超えたセッションを定期的に破棄し、
// 保持していた鍵ペアと確認コードをメモリから消去する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/emaildid/internal/metrics"
)

// DefaultMaxIdle はセッションを破棄するまでのデフォルトのアイドル時間。
const DefaultMaxIdle = 30 * time.Minute

// Sweeper はアイドルセッションの破棄を抽象化するインターフェース。
// verification.Registry が満たす。
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// CleanupJob はアイドルセッションの破棄ジョブ。
// 何度実行しても安全で、破棄対象がない場合も正常終了する。
type CleanupJob struct {
	sweeper Sweeper
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	MaxIdle time.Duration // セッションのアイドル上限（デフォルト: 30分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// mがnilの場合はメトリクスを記録しない。
func NewCleanupJob(sweeper Sweeper, logger *slog.Logger, m metrics.MetricsCollector) *CleanupJob {
	if m == nil {
		m = metrics.Nop{}
	}
	return &CleanupJob{
		sweeper: sweeper,
		logger:  logger,
		metrics: m,
		MaxIdle: DefaultMaxIdle,
	}
}

// Run はMaxIdleを超えたセッションを1回破棄する。
// 確認コード送信中のセッションは破棄しない。
func (j *CleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	swept := j.sweeper.Sweep(j.MaxIdle)
	j.metrics.RecordSessionsSwept(swept)

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int("swept_count", swept),
		slog.Duration("max_idle", j.MaxIdle),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はctxがキャンセルされるまでintervalごとにRunを実行する。ブロッキング。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
