// Package sync はアカウントごとの同期パイプラインとその実行制御を提供する。
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/metrics"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
	"github.com/Michael-bot-commits/brightspace-agent/internal/notify"
	"github.com/Michael-bot-commits/brightspace-agent/internal/repository"
	"github.com/Michael-bot-commits/brightspace-agent/internal/scrape"
	"github.com/Michael-bot-commits/brightspace-agent/internal/urgency"
)

// AssignmentReconciler はスナップショットのマージ処理のインターフェース。
type AssignmentReconciler interface {
	Reconcile(ctx context.Context, accountID string, snapshot []model.ScrapedAssignment) (*model.ChangeSummary, error)
}

// Pipeline は1アカウント分の同期処理（スクレイプ→照合→通知判定→送信）を実行する。
type Pipeline struct {
	portal      scrape.Scraper
	feed        scrape.Scraper
	reconciler  AssignmentReconciler
	assignments repository.AssignmentRepository
	syncLogs    repository.SyncLogRepository
	dispatcher  notify.Dispatcher
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline はPipelineを生成する。
func NewPipeline(
	portal scrape.Scraper,
	feed scrape.Scraper,
	reconciler AssignmentReconciler,
	assignments repository.AssignmentRepository,
	syncLogs repository.SyncLogRepository,
	dispatcher notify.Dispatcher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		portal:      portal,
		feed:        feed,
		reconciler:  reconciler,
		assignments: assignments,
		syncLogs:    syncLogs,
		dispatcher:  dispatcher,
		collector:   collector,
		logger:      logger,
		now:         time.Now,
	}
}

// RunOnce は1アカウントのパイプラインを1回実行する。
//
// 通知送信の失敗は同期結果を失敗にしない。照合は既に確定しており、
// スクレイプをやり直しても送信が直るわけではないため、ログと
// メトリクスへの記録にとどめる。
func (p *Pipeline) RunOnce(ctx context.Context, account config.AccountConfig) model.RunResult {
	start := p.now()

	scraper := p.portal
	if account.FeedURL != "" {
		scraper = p.feed
	}

	snapshot, err := scraper.Scrape(ctx, account)
	p.collector.RecordScrapeLatency(p.now().Sub(start))
	if err != nil {
		return p.fail(ctx, account, err)
	}

	summary, err := p.reconciler.Reconcile(ctx, account.ID, snapshot)
	if err != nil {
		return p.fail(ctx, account, err)
	}
	p.collector.RecordAssignmentsUpserted(summary.Found())

	// 照合のコミット後に未完了課題を読み直す。通知判定は
	// 必ず確定済みの状態を見る。
	pending, err := p.assignments.ListPending(ctx, account.ID)
	if err != nil {
		return p.fail(ctx, account, err)
	}

	now := p.now()
	urgent := urgency.Urgent(pending, float64(account.UrgentThresholdHours), now)
	timeOfDay := notify.TimeOfDayFor(account, now)
	decision := notify.Decide(account.Name, summary.New, urgent, pending, timeOfDay)

	p.logger.Info("通知判定が完了しました",
		slog.String("account", account.Name),
		slog.String("case", string(decision.Case)),
		slog.Int("new", len(decision.New)),
		slog.Int("urgent", len(decision.Urgent)),
		slog.Int("pending", len(pending)))

	if account.NotificationsEnabled && decision.Case != model.CaseNone {
		p.dispatch(ctx, account, decision)
	}

	p.collector.RecordSyncSuccess(account.ID)
	return model.RunResult{
		Status:      model.SyncStatusSuccess,
		AccountName: account.Name,
		Total:       summary.Found(),
		New:         len(summary.New),
		Pending:     len(pending),
	}
}

// dispatch は判定結果を送信し、成功時に通知記録を更新する。
func (p *Pipeline) dispatch(ctx context.Context, account config.AccountConfig, decision model.Decision) {
	var err error
	if account.UseSmartFusion {
		err = p.dispatcher.Dispatch(ctx, account, decision)
	} else {
		err = p.dispatcher.DispatchSeparate(ctx, account, decision)
	}
	if err != nil {
		p.logger.Error("通知の送信に失敗しました",
			slog.String("account", account.Name),
			slog.String("case", string(decision.Case)),
			slog.String("error", err.Error()))
		return
	}

	p.collector.RecordNotificationSent(string(decision.Case))
	p.markNotified(ctx, account, decision)
}

// markNotified は通知対象となった課題の通知記録を更新する。
func (p *Pipeline) markNotified(ctx context.Context, account config.AccountConfig, decision model.Decision) {
	seen := make(map[string]struct{})
	for _, list := range [][]model.Assignment{decision.New, decision.Urgent} {
		for _, a := range list {
			if _, done := seen[a.ID]; done {
				continue
			}
			seen[a.ID] = struct{}{}
			if err := p.assignments.MarkNotified(ctx, account.ID, a.ID); err != nil {
				p.logger.Warn("通知記録の更新に失敗しました",
					slog.String("id", a.ID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// fail はパイプライン失敗時の共通処理。エラーの同期履歴を追記し、
// 失敗のRunResultを返す。
func (p *Pipeline) fail(ctx context.Context, account config.AccountConfig, cause error) model.RunResult {
	perr := &model.PipelineError{AccountName: account.Name, Err: cause}
	p.logger.Error("パイプラインが失敗しました",
		slog.String("account", account.Name),
		slog.String("error", cause.Error()))

	rec := &model.SyncRecord{
		AccountID:    account.ID,
		SyncTime:     p.now(),
		Status:       model.SyncStatusError,
		ErrorMessage: cause.Error(),
	}
	if err := p.syncLogs.Append(ctx, rec); err != nil {
		p.logger.Error("エラー履歴の追記に失敗しました", slog.String("error", err.Error()))
	}

	p.collector.RecordSyncFailure(account.ID)
	return model.RunResult{
		Status:      model.SyncStatusError,
		AccountName: account.Name,
		Err:         perr,
	}
}
