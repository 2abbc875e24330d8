// Package notify は通知判定とメールによるディスパッチを提供する。
package notify

import (
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// Decide は1回の同期結果から送信すべき通知ケースを決定する純粋関数。
//
// 判定は固定の優先順で行い、必ず1ケースだけが選ばれる:
//  1. 新規あり かつ 緊急あり → COMBINED
//  2. 新規あり → NEW_ONLY
//  3. 緊急あり → URGENT_ONLY
//  4. サマリー時刻に一致 → SUMMARY
//  5. いずれでもない → NONE
//
// 新規検出は定時サマリーより常に行動を促す情報であり、
// 緊急締切は新規がなくてもサマリーに優先する。
// サマリーは「他に伝えることがない」ときのフォールバックとなる。
func Decide(accountName string, newAssignments, urgent, allPending []model.Assignment, timeOfDay model.TimeOfDay) model.Decision {
	d := model.Decision{
		AccountName: accountName,
		New:         newAssignments,
		Urgent:      urgent,
		AllPending:  allPending,
		TimeOfDay:   timeOfDay,
	}

	switch {
	case len(newAssignments) > 0 && len(urgent) > 0:
		d.Case = model.CaseCombined
	case len(newAssignments) > 0:
		d.Case = model.CaseNewOnly
	case len(urgent) > 0:
		d.Case = model.CaseUrgentOnly
	case timeOfDay == model.TimeOfDayMorning || timeOfDay == model.TimeOfDayEvening:
		d.Case = model.CaseSummary
	default:
		d.Case = model.CaseNone
	}
	return d
}

// TimeOfDayFor は現在時刻がアカウントのサマリー時刻に一致するかを返す。
// 一致判定は "HH:MM" 文字列の完全一致で行う。実行がその分を跨いで
// 行われなかった場合、その日のサマリーは送信されない。
func TimeOfDayFor(account config.AccountConfig, now time.Time) model.TimeOfDay {
	clock := now.Format("15:04")
	if account.MorningSummary && clock == account.MorningTime {
		return model.TimeOfDayMorning
	}
	if account.EveningSummary && clock == account.EveningTime {
		return model.TimeOfDayEvening
	}
	return model.TimeOfDayNone
}
