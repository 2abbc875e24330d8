package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// PostgresSyncLogRepo はPostgreSQLを使用した同期履歴リポジトリ。
type PostgresSyncLogRepo struct {
	db *sql.DB
}

// NewPostgresSyncLogRepo はPostgresSyncLogRepoを生成する。
func NewPostgresSyncLogRepo(db *sql.DB) *PostgresSyncLogRepo {
	return &PostgresSyncLogRepo{db: db}
}

// Append は同期履歴を1件追記する。IDが未設定の場合は採番する。
func (r *PostgresSyncLogRepo) Append(ctx context.Context, rec *model.SyncRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	var errMsg sql.NullString
	if rec.ErrorMessage != "" {
		errMsg = sql.NullString{String: rec.ErrorMessage, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_history
			(id, account_id, sync_time, status, assignments_found, new_assignments, updated_assignments, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.AccountID, rec.SyncTime, string(rec.Status),
		rec.Found, rec.New, rec.Updated, errMsg,
	)
	if err != nil {
		return fmt.Errorf("同期履歴の追記に失敗しました: %w", err)
	}
	return nil
}

// ListRecent はアカウントの直近の同期履歴を新しい順で返す。
func (r *PostgresSyncLogRepo) ListRecent(ctx context.Context, accountID string, limit int) ([]model.SyncRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, sync_time, status, assignments_found, new_assignments, updated_assignments, error_message
		 FROM sync_history
		 WHERE account_id = $1
		 ORDER BY sync_time DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("同期履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []model.SyncRecord
	for rows.Next() {
		var rec model.SyncRecord
		var status string
		var errMsg sql.NullString

		err := rows.Scan(&rec.ID, &rec.AccountID, &rec.SyncTime, &status,
			&rec.Found, &rec.New, &rec.Updated, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("同期履歴行の読み込みに失敗しました: %w", err)
		}

		rec.Status = model.SyncStatus(status)
		if errMsg.Valid {
			rec.ErrorMessage = errMsg.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("同期履歴の走査に失敗しました: %w", err)
	}
	return records, nil
}

// PruneOlderThan は保持期間を超えた同期履歴を削除し、削除件数を返す。
func (r *PostgresSyncLogRepo) PruneOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_history WHERE sync_time < now() - ($1 || ' days')::interval`,
		retentionDays,
	)
	if err != nil {
		return 0, fmt.Errorf("同期履歴の削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}
