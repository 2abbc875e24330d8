// Package model はドメインモデルを定義する。
package model

import "time"

// SyncStatus は同期処理の結果種別を表す。
type SyncStatus string

const (
	// SyncStatusSuccess は同期成功。
	SyncStatusSuccess SyncStatus = "success"
	// SyncStatusError は同期失敗。
	SyncStatusError SyncStatus = "error"
)

// SyncRecord は1回の照合処理の履歴を表す。
// 追記専用で、取得時はsync_time降順。観測用途のみで、
// 照合ロジック自体には影響しない。
type SyncRecord struct {
	ID           string
	AccountID    string
	SyncTime     time.Time
	Status       SyncStatus
	Found        int
	New          int
	Updated      int
	ErrorMessage string
}

// RunResult は1アカウントのパイプライン実行結果を表す。
// オーケストレーターが返し、マルチアカウントランナーが集計する。
type RunResult struct {
	Status      SyncStatus
	AccountName string
	// Total は今回のスクレイプで保存対象となった課題の総数。
	Total int
	// New は新規検出された課題数。
	New int
	// Pending は照合後にストアに残っている未完了課題数。
	Pending int
	Err     error
}

// Succeeded はリトライ判定に使う成功述語。
// ステータスが成功かつ課題が1件以上見つかった場合のみ成功とみなす。
// エラーなしの0件はスクレイプ破損と区別できないため、成功扱いにしない。
func (r RunResult) Succeeded() bool {
	return r.Status == SyncStatusSuccess && r.Total > 0
}

// RunReport は全アカウント処理の集計レポート。
type RunReport struct {
	Results      []RunResult
	SuccessCount int
	Elapsed      time.Duration
}

// Statistics はストア内課題の集計値。ステータスエンドポイントで公開する。
type Statistics struct {
	Total          int
	Completed      int
	Pending        int
	Urgent         int
	Overdue        int
	CompletionRate float64
}
