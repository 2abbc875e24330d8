package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// AccountOrchestrator はリトライ付きアカウント実行のインターフェース。
type AccountOrchestrator interface {
	RunWithRetry(ctx context.Context, account config.AccountConfig) model.RunResult
}

// Runner は全アカウントを順番に処理し、集計レポートを作成する。
//
// アカウントは並列化せず厳密に逐次処理する。各パイプラインがポータルの
// セッションとストアを占有するため、並列化は競合を増やすだけで
// 実行周期（数時間おき）に対する利点がない。
type Runner struct {
	orchestrator AccountOrchestrator
	accounts     []config.AccountConfig
	logger       *slog.Logger
	now          func() time.Time
}

// NewRunner はRunnerを生成する。
func NewRunner(orchestrator AccountOrchestrator, accounts []config.AccountConfig, logger *slog.Logger) *Runner {
	return &Runner{
		orchestrator: orchestrator,
		accounts:     accounts,
		logger:       logger,
		now:          time.Now,
	}
}

// RunAll は全アカウントを順番に実行し、集計レポートを返す。
// 1アカウントの失敗は後続アカウントの処理を妨げない。
// 実行終了時には必ずアカウントごとのレポート行がログに残る。
func (r *Runner) RunAll(ctx context.Context) *model.RunReport {
	start := r.now()
	report := &model.RunReport{}

	r.logger.Info("全アカウントの同期を開始します", slog.Int("accounts", len(r.accounts)))

	for _, account := range r.accounts {
		result := r.orchestrator.RunWithRetry(ctx, account)
		report.Results = append(report.Results, result)

		if result.Succeeded() {
			report.SuccessCount++
			r.logger.Info("アカウントのレポート",
				slog.String("account", result.AccountName),
				slog.String("status", string(result.Status)),
				slog.Int("total", result.Total),
				slog.Int("new", result.New),
				slog.Int("pending", result.Pending))
		} else {
			errMsg := model.ErrEmptySnapshot.Error()
			if result.Err != nil {
				errMsg = result.Err.Error()
			}
			r.logger.Error("アカウントのレポート",
				slog.String("account", result.AccountName),
				slog.String("status", "error"),
				slog.String("error", errMsg))
		}

		if ctx.Err() != nil {
			r.logger.Warn("キャンセルされたため残りのアカウントをスキップします")
			break
		}
	}

	report.Elapsed = r.now().Sub(start)
	r.logger.Info("全アカウントの同期が完了しました",
		slog.Int("success", report.SuccessCount),
		slog.Int("total", len(report.Results)),
		slog.Duration("elapsed", report.Elapsed))
	return report
}
