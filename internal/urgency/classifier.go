// Package urgency は未完了課題を締切までの残り時間で分類する。
package urgency

import (
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// Band はサマリー表示用の緊急度の区分。
type Band string

const (
	// BandUrgent は締切まで24時間未満。
	BandUrgent Band = "urgent"
	// BandSoon は締切まで3日未満。
	BandSoon Band = "soon"
	// BandThisWeek は締切まで7日未満。
	BandThisWeek Band = "this_week"
	// BandLater は締切まで7日以上、または締切なし。
	BandLater Band = "later"
)

// Urgent は未完了課題のうち緊急なものを返す。
// 緊急の条件: 締切が存在し、nowより厳密に未来で、残り時間がthresholdHours未満。
// 締切のない課題と既に締切を過ぎた課題は緊急にならない。
func Urgent(pending []model.Assignment, thresholdHours float64, now time.Time) []model.Assignment {
	var urgent []model.Assignment
	for _, a := range pending {
		if IsUrgent(a, thresholdHours, now) {
			urgent = append(urgent, a)
		}
	}
	return urgent
}

// IsUrgent は1件の課題が緊急かを判定する。
func IsUrgent(a model.Assignment, thresholdHours float64, now time.Time) bool {
	if a.DueDate == nil {
		return false
	}
	remaining := a.DueDate.Sub(now)
	if remaining <= 0 {
		return false
	}
	return remaining.Hours() < thresholdHours
}

// BandOf は課題の緊急度区分を返す。サマリー通知の見出し分けに使用する。
func BandOf(a model.Assignment, now time.Time) Band {
	if a.DueDate == nil {
		return BandLater
	}
	remaining := a.DueDate.Sub(now)
	switch {
	case remaining < 24*time.Hour:
		return BandUrgent
	case remaining < 3*24*time.Hour:
		return BandSoon
	case remaining < 7*24*time.Hour:
		return BandThisWeek
	default:
		return BandLater
	}
}
