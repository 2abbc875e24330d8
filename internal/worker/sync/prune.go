package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/repository"
)

// PruneJob は保持期間を超過した同期履歴の自動削除ジョブ。
// 同期実行のたびに走らせても安全な冪等処理で、削除対象がなくても
// エラーにならない。
type PruneJob struct {
	syncLogs      repository.SyncLogRepository
	logger        *slog.Logger
	RetentionDays int
}

// NewPruneJob は新しいPruneJobを生成する。
func NewPruneJob(syncLogs repository.SyncLogRepository, logger *slog.Logger, retentionDays int) *PruneJob {
	return &PruneJob{
		syncLogs:      syncLogs,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過した同期履歴を削除する。
func (j *PruneJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.syncLogs.PruneOlderThan(ctx, j.RetentionDays)
	if err != nil {
		j.logger.Error("同期履歴の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays))
		return fmt.Errorf("同期履歴の削除に失敗しました: %w", err)
	}

	j.logger.Info("同期履歴の削除が完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Duration("duration", time.Since(start)))
	return nil
}
