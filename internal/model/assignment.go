// Package model はドメインモデルを定義する。
package model

import "time"

// Status は課題の状態を表す。
// スクレイプ結果から導出される値であり、個別に設定してはならない。
type Status string

const (
	// StatusPending は未提出かつ期限前の課題。
	StatusPending Status = "pending"
	// StatusSubmitted は提出済みで採点待ちの課題。
	StatusSubmitted Status = "submitted"
	// StatusGraded は採点済みの課題。
	StatusGraded Status = "graded"
	// StatusOverdue は期限超過だが再提出可能な課題。
	StatusOverdue Status = "overdue"
	// StatusMissed は期限超過かつ再提出不可（時間制限クイズなど）の課題。
	StatusMissed Status = "missed"
)

// IsCompleted はこの状態が完了扱いかどうかを返す。
// graded/submitted/missedが完了、pending/overdueが未完了。
func (s Status) IsCompleted() bool {
	switch s {
	case StatusGraded, StatusSubmitted, StatusMissed:
		return true
	default:
		return false
	}
}

// Assignment はポータルから取得した課題を表す。
// IDは正規化済みの(course, title)から導出される安定ハッシュで、
// アカウントのストア内で一意。
type Assignment struct {
	ID                string
	AccountID         string
	Title             string
	Course            string
	DueDate           *time.Time // ポータルに期限がない場合はnil
	Link              string
	Description       string
	IsCompleted       bool
	Grade             *float64
	Status            Status
	LastNotified      *time.Time
	NotificationCount int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ScrapedAssignment はスクレイパーが抽出した未保存の課題データを表す。
// 照合処理（reconcile）に渡される前の生レコード。
type ScrapedAssignment struct {
	Title       string
	Course      string
	DueDate     *time.Time
	Link        string
	Description string
	Grade       *float64
	// Submitted はポータル上で提出記録が確認できたことを示す。
	Submitted bool
	// NonResubmittable は期限後に再提出できない種別（時間制限クイズなど）を示す。
	NonResubmittable bool
}

// ChangeSummary は1回の照合処理の結果を表す。
// 永続化されず、直後に通知判定へ渡される。
type ChangeSummary struct {
	// New は新規挿入された課題のレコード全体。通知の本文生成に使う。
	New     []Assignment
	Updated int
	Retired int
}

// Found は照合で保存対象となった課題の総数（新規＋更新）を返す。
func (c ChangeSummary) Found() int {
	return len(c.New) + c.Updated
}
