package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
	"github.com/Michael-bot-commits/brightspace-agent/internal/repository"
)

// Reconciler はスナップショットと保存済み状態の差分を計算し、
// ストアへのUPSERT・削除を実行する。
type Reconciler struct {
	assignments repository.AssignmentRepository
	syncLogs    repository.SyncLogRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewReconciler はReconcilerを生成する。
func NewReconciler(
	assignments repository.AssignmentRepository,
	syncLogs repository.SyncLogRepository,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		assignments: assignments,
		syncLogs:    syncLogs,
		logger:      logger,
		now:         time.Now,
	}
}

// Reconcile はスナップショットをアカウントの保存済み状態にマージする。
//
// 処理の流れ:
//  1. 各レコードのステータスを導出し、pending/overdueのみを残す
//  2. 保存済みレコードのうちスナップショットに存在しないものを処理する:
//     完了済み（is_completed=true）なら削除、未完了なら保持して警告を残す。
//     ポータルの表示は未完了課題について信頼できないことがあるため、
//     未完了レコードを誤って消さない方向に倒している。
//  3. 残った各レコードをUPSERTし、新規・更新を数える
//  4. 同期履歴を1件追記する
//
// 空のスナップショットはエラーではなく、全カウント0のサマリーを返す。
// このとき削除処理は行わない。
func (r *Reconciler) Reconcile(ctx context.Context, accountID string, snapshot []model.ScrapedAssignment) (*model.ChangeSummary, error) {
	now := r.now()
	summary := &model.ChangeSummary{}

	if len(snapshot) == 0 {
		r.logger.Warn("スナップショットが空です", slog.String("account_id", accountID))
		if err := r.appendLog(ctx, accountID, summary); err != nil {
			return nil, err
		}
		return summary, nil
	}

	// pending/overdueのみを永続化対象とする。完了済み（graded/submitted/missed）は
	// 保存せず、保存済みの同一IDレコードの削除判定にのみ影響する。
	current := make([]model.Assignment, 0, len(snapshot))
	currentIDs := make(map[string]struct{}, len(snapshot))
	for _, raw := range snapshot {
		a := Build(accountID, raw, now)
		if a.IsCompleted {
			continue
		}
		current = append(current, a)
		currentIDs[a.ID] = struct{}{}
	}

	r.logger.Info("スナップショットをフィルタリングしました",
		slog.String("account_id", accountID),
		slog.Int("total", len(snapshot)),
		slog.Int("kept", len(current)),
		slog.Int("completed", len(snapshot)-len(current)))

	stored, err := r.assignments.ListAll(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("保存済み課題の取得に失敗しました: %w", err)
	}

	for _, s := range stored {
		if _, present := currentIDs[s.ID]; present {
			continue
		}
		if !s.IsCompleted {
			// スナップショットから消えた未完了課題は削除しない
			r.logger.Warn("課題がスナップショットに存在しませんが保持します",
				slog.String("account_id", accountID),
				slog.String("id", s.ID),
				slog.String("title", s.Title))
			continue
		}
		if err := r.assignments.Retire(ctx, accountID, s.ID); err != nil {
			return nil, fmt.Errorf("課題の削除に失敗しました: %w", err)
		}
		r.logger.Info("完了済み課題を削除しました",
			slog.String("account_id", accountID),
			slog.String("id", s.ID),
			slog.String("title", s.Title))
		summary.Retired++
	}

	for i := range current {
		wasNew, err := r.assignments.Upsert(ctx, &current[i])
		if err != nil {
			return nil, fmt.Errorf("課題のUPSERTに失敗しました: %w", err)
		}
		if wasNew {
			summary.New = append(summary.New, current[i])
		} else {
			summary.Updated++
		}
	}

	if err := r.appendLog(ctx, accountID, summary); err != nil {
		return nil, err
	}

	r.logger.Info("リコンサイルが完了しました",
		slog.String("account_id", accountID),
		slog.Int("new", len(summary.New)),
		slog.Int("updated", summary.Updated),
		slog.Int("retired", summary.Retired))
	return summary, nil
}

// appendLog は成功した同期の履歴を1件追記する。
func (r *Reconciler) appendLog(ctx context.Context, accountID string, summary *model.ChangeSummary) error {
	rec := &model.SyncRecord{
		AccountID: accountID,
		SyncTime:  r.now(),
		Status:    model.SyncStatusSuccess,
		Found:     summary.Found(),
		New:       len(summary.New),
		Updated:   summary.Updated,
	}
	if err := r.syncLogs.Append(ctx, rec); err != nil {
		return fmt.Errorf("同期履歴の追記に失敗しました: %w", err)
	}
	return nil
}
