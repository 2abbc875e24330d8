// Package reconcile はスクレイピング結果と保存済み状態の突き合わせを行う。
package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// DeriveStatus はスクレイピング結果から課題のステータスを導出する。
// 判定は以下の優先順で行い、最初に一致した条件が採用される:
//  1. 採点済み（gradeあり）→ graded
//  2. 提出記録あり → submitted
//  3. 締切超過かつ再提出不能 → missed
//  4. 締切超過かつ再提出可能 → overdue
//  5. いずれでもない → pending
//
// is_completedフラグはステータスから一意に決まる（Status.IsCompleted参照）ため、
// 導出ロジックはこの関数に集約し、他の場所で再計算しない。
func DeriveStatus(s model.ScrapedAssignment, now time.Time) model.Status {
	if s.Grade != nil {
		return model.StatusGraded
	}
	if s.Submitted {
		return model.StatusSubmitted
	}
	if s.DueDate != nil && s.DueDate.Before(now) {
		if s.NonResubmittable {
			return model.StatusMissed
		}
		return model.StatusOverdue
	}
	return model.StatusPending
}

// DeriveID はコース名とタイトルから安定したIDを導出する。
// 正規化（小文字化・空白の畳み込み）した上でハッシュ化するため、
// 表示上の空白や大小文字の揺れでIDが変わらない。
// 同一コース内に完全同名の課題が複数ある場合はIDが衝突し、
// 1件に統合される既知の制約がある。
func DeriveID(course, title string) string {
	key := normalize(course) + "|" + normalize(title)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// normalize は識別子導出用に文字列を正規化する。
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Build はスクレイピング結果1件をAssignmentレコードに変換する。
func Build(accountID string, s model.ScrapedAssignment, now time.Time) model.Assignment {
	status := DeriveStatus(s, now)
	return model.Assignment{
		ID:          DeriveID(s.Course, s.Title),
		AccountID:   accountID,
		Title:       s.Title,
		Course:      s.Course,
		DueDate:     s.DueDate,
		Link:        s.Link,
		Description: s.Description,
		IsCompleted: status.IsCompleted(),
		Grade:       s.Grade,
		Status:      status,
	}
}
