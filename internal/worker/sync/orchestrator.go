package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/metrics"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
	"github.com/Michael-bot-commits/brightspace-agent/internal/session"
)

// PipelineRunner は1アカウントのパイプライン実行のインターフェース。
type PipelineRunner interface {
	RunOnce(ctx context.Context, account config.AccountConfig) model.RunResult
}

// retryDelays は試行間の待機スケジュール。試行回数がスケジュールを
// 超える場合は最後の値を繰り返す。
var retryDelays = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	90 * time.Second,
}

// Orchestrator は1アカウントのパイプラインをリトライ付きで実行する。
//
// 成功判定は「ステータスが成功 かつ 課題が1件以上」。エラーなしの0件は
// 壊れたスクレイプと区別できないため、試行回数を使い切るまでリトライする。
// 正当に0件のアカウントでは無駄な再試行になるが、セッション破損による
// 0件スクレイプの方がはるかに頻度が高い。
type Orchestrator struct {
	pipeline    PipelineRunner
	sessions    session.Store
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	maxAttempts int
	delays      []time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(
	pipeline PipelineRunner,
	sessions session.Store,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxAttempts int,
) *Orchestrator {
	return &Orchestrator{
		pipeline:    pipeline,
		sessions:    sessions,
		collector:   collector,
		logger:      logger,
		maxAttempts: maxAttempts,
		delays:      retryDelays,
		sleep:       sleepContext,
	}
}

// RunWithRetry はパイプラインを成功するか試行回数を使い切るまで実行する。
//
// 2回目以降の試行では、実行前に保存済みセッションを破棄して再ログインを
// 強制する。0件スクレイプの支配的な原因が古い・壊れたセッションであるため。
//
// 試行回数を使い切った場合は最終試行の結果をそのまま返す。
// オーケストレーター自身が合成エラーで結果を上書きすることはない。
func (o *Orchestrator) RunWithRetry(ctx context.Context, account config.AccountConfig) model.RunResult {
	var result model.RunResult

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt >= 2 {
			o.collector.RecordRetry(account.ID)
			if err := o.sessions.Drop(account.ID); err != nil {
				o.logger.Warn("セッションの破棄に失敗しました",
					slog.String("account", account.Name),
					slog.String("error", err.Error()))
			}
			o.logger.Info("セッションを破棄して再試行します",
				slog.String("account", account.Name),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", o.maxAttempts))
		}

		result = o.pipeline.RunOnce(ctx, account)
		if result.Succeeded() {
			o.logger.Info("同期に成功しました",
				slog.String("account", account.Name),
				slog.Int("attempt", attempt),
				slog.Int("total", result.Total),
				slog.Int("new", result.New))
			return result
		}

		if attempt < o.maxAttempts {
			delay := o.delayFor(attempt)
			o.logger.Warn("同期に失敗しました。待機後に再試行します",
				slog.String("account", account.Name),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			if err := o.sleep(ctx, delay); err != nil {
				// キャンセルされたら最終試行の結果をそのまま返す
				return result
			}
		}
	}

	exhausted := &model.RetriesExhaustedError{
		AccountName: account.Name,
		Attempts:    o.maxAttempts,
		LastErr:     result.Err,
	}
	o.logger.Error("リトライ回数を使い切りました", slog.String("error", exhausted.Error()))
	return result
}

// delayFor は試行回数に応じた待機時間を返す。
func (o *Orchestrator) delayFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx >= len(o.delays) {
		idx = len(o.delays) - 1
	}
	return o.delays[idx]
}

// sleepContext はキャンセル可能なスリープ。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
