package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// PostgresAssignmentRepo はPostgreSQLを使用した課題リポジトリ。
type PostgresAssignmentRepo struct {
	db *sql.DB
}

// NewPostgresAssignmentRepo はPostgresAssignmentRepoを生成する。
func NewPostgresAssignmentRepo(db *sql.DB) *PostgresAssignmentRepo {
	return &PostgresAssignmentRepo{db: db}
}

// assignmentColumns はSELECT句で使用するカラムリスト。
const assignmentColumns = `id, account_id, title, course, due_date, link, description,
	is_completed, grade, status, last_notified, notification_count, created_at, updated_at`

// scanAssignment は1行をmodel.Assignmentに読み込む。
func scanAssignment(scan func(dest ...any) error) (*model.Assignment, error) {
	a := &model.Assignment{}
	var dueDate, lastNotified sql.NullTime
	var grade sql.NullFloat64
	var status string

	err := scan(
		&a.ID, &a.AccountID, &a.Title, &a.Course, &dueDate, &a.Link, &a.Description,
		&a.IsCompleted, &grade, &status, &lastNotified, &a.NotificationCount,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = model.Status(status)
	if dueDate.Valid {
		a.DueDate = &dueDate.Time
	}
	if lastNotified.Valid {
		a.LastNotified = &lastNotified.Time
	}
	if grade.Valid {
		a.Grade = &grade.Float64
	}
	return a, nil
}

// FindByID は指定アカウント・IDの課題を取得する。見つからない場合はnilを返す。
func (r *PostgresAssignmentRepo) FindByID(ctx context.Context, accountID, id string) (*model.Assignment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE account_id = $1 AND id = $2`,
		accountID, id,
	)

	a, err := scanAssignment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("課題の取得に失敗しました: %w", err)
	}
	return a, nil
}

// ListAll はアカウントの全課題をdue_date昇順で返す。
// due_dateがNULLの課題は末尾に並ぶ。
func (r *PostgresAssignmentRepo) ListAll(ctx context.Context, accountID string) ([]model.Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE account_id = $1
		 ORDER BY due_date ASC NULLS LAST, id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("課題一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectAssignments(rows)
}

// ListPending はアカウントの未完了課題をdue_date昇順で返す。
func (r *PostgresAssignmentRepo) ListPending(ctx context.Context, accountID string) ([]model.Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE account_id = $1 AND is_completed = FALSE
		 ORDER BY due_date ASC NULLS LAST, id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("未完了課題の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectAssignments(rows)
}

// collectAssignments はクエリ結果を全件読み込む。
func collectAssignments(rows *sql.Rows) ([]model.Assignment, error) {
	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("課題行の読み込みに失敗しました: %w", err)
		}
		assignments = append(assignments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("課題一覧の走査に失敗しました: %w", err)
	}
	return assignments, nil
}

// Upsert は課題を挿入または全カラム上書き更新する。
// ON CONFLICTにより単一レコードでアトミックなlast-write-wins更新となる。
// xmax = 0 は挿入された行でのみ真になるため、新規判定に使用する。
func (r *PostgresAssignmentRepo) Upsert(ctx context.Context, a *model.Assignment) (bool, error) {
	var wasNew bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO assignments
			(id, account_id, title, course, due_date, link, description,
			 is_completed, grade, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		 ON CONFLICT (account_id, id) DO UPDATE SET
			title = EXCLUDED.title,
			course = EXCLUDED.course,
			due_date = EXCLUDED.due_date,
			link = EXCLUDED.link,
			description = EXCLUDED.description,
			is_completed = EXCLUDED.is_completed,
			grade = EXCLUDED.grade,
			status = EXCLUDED.status,
			updated_at = now()
		 RETURNING (xmax = 0)`,
		a.ID, a.AccountID, a.Title, a.Course, a.DueDate, a.Link, a.Description,
		a.IsCompleted, a.Grade, string(a.Status),
	).Scan(&wasNew)
	if err != nil {
		return false, fmt.Errorf("課題のUPSERTに失敗しました: %w", err)
	}
	return wasNew, nil
}

// Retire は指定課題を削除する。存在しないIDでもエラーにしない。
func (r *PostgresAssignmentRepo) Retire(ctx context.Context, accountID, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM assignments WHERE account_id = $1 AND id = $2`,
		accountID, id,
	)
	if err != nil {
		return fmt.Errorf("課題の削除に失敗しました: %w", err)
	}
	return nil
}

// MarkNotified は課題の通知記録を更新する。
func (r *PostgresAssignmentRepo) MarkNotified(ctx context.Context, accountID, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE assignments
		 SET last_notified = now(), notification_count = notification_count + 1
		 WHERE account_id = $1 AND id = $2`,
		accountID, id,
	)
	if err != nil {
		return fmt.Errorf("通知記録の更新に失敗しました: %w", err)
	}
	return nil
}

// Statistics はアカウントの課題集計値を返す。
func (r *PostgresAssignmentRepo) Statistics(ctx context.Context, accountID string) (*model.Statistics, error) {
	stats := &model.Statistics{}

	err := r.db.QueryRowContext(ctx,
		`SELECT
			count(*),
			count(*) FILTER (WHERE is_completed),
			count(*) FILTER (WHERE NOT is_completed),
			count(*) FILTER (WHERE NOT is_completed AND due_date BETWEEN now() AND now() + interval '2 days'),
			count(*) FILTER (WHERE NOT is_completed AND due_date < now())
		 FROM assignments WHERE account_id = $1`,
		accountID,
	).Scan(&stats.Total, &stats.Completed, &stats.Pending, &stats.Urgent, &stats.Overdue)
	if err != nil {
		return nil, fmt.Errorf("課題統計の取得に失敗しました: %w", err)
	}

	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats, nil
}
