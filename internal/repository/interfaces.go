// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// AssignmentRepository は課題データの永続化インターフェース。
// ストアが課題集合の正本を所有し、照合処理はこのインターフェース経由で
// upsert/retire操作を発行する。各操作はレコード単位でアトミック。
type AssignmentRepository interface {
	// FindByID は指定アカウント・IDの課題を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, accountID, id string) (*model.Assignment, error)

	// ListAll はアカウントの全課題をdue_date昇順で返す。
	ListAll(ctx context.Context, accountID string) ([]model.Assignment, error)

	// ListPending はアカウントの未完了課題（is_completed=false）をdue_date昇順で返す。
	ListPending(ctx context.Context, accountID string) ([]model.Assignment, error)

	// Upsert は課題を挿入または全カラム上書き更新する。
	// 戻り値は新規挿入だった場合にtrue。単一レコードでアトミック。
	Upsert(ctx context.Context, assignment *model.Assignment) (wasNew bool, err error)

	// Retire は指定課題を削除する。存在しないIDでもエラーにしない。
	Retire(ctx context.Context, accountID, id string) error

	// MarkNotified は課題のlast_notifiedを現在時刻に設定し、
	// notification_countをインクリメントする。
	MarkNotified(ctx context.Context, accountID, id string) error

	// Statistics はアカウントの課題集計値を返す。
	Statistics(ctx context.Context, accountID string) (*model.Statistics, error)
}

// SyncLogRepository は同期履歴の永続化インターフェース。追記専用。
type SyncLogRepository interface {
	// Append は同期履歴を1行追記する。
	Append(ctx context.Context, record *model.SyncRecord) error

	// ListRecent は同期履歴をsync_time降順で最大limit件返す。
	ListRecent(ctx context.Context, accountID string, limit int) ([]model.SyncRecord, error)

	// PruneOlderThan は保持日数を超過した履歴を削除し、削除件数を返す。
	PruneOlderThan(ctx context.Context, retentionDays int) (int64, error)
}
