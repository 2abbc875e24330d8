// Package model はドメインモデルを定義する。
package model

// TimeOfDay は定時サマリーの時間帯を表す。
type TimeOfDay string

const (
	// TimeOfDayNone はサマリー時刻に一致しないことを示す。
	TimeOfDayNone TimeOfDay = ""
	// TimeOfDayMorning は朝のサマリー時刻。
	TimeOfDayMorning TimeOfDay = "morning"
	// TimeOfDayEvening は夜のサマリー時刻。
	TimeOfDayEvening TimeOfDay = "evening"
)

// NotificationCase は通知判定の結果種別を表す。
// 判定表の優先順位で必ず1つだけが選ばれる。
type NotificationCase string

const (
	// CaseCombined は新規と緊急の両方がある場合の統合通知。
	CaseCombined NotificationCase = "combined"
	// CaseNewOnly は新規のみの通知。
	CaseNewOnly NotificationCase = "new_only"
	// CaseUrgentOnly は緊急のみの通知。
	CaseUrgentOnly NotificationCase = "urgent_only"
	// CaseSummary は定時サマリー通知。
	CaseSummary NotificationCase = "summary"
	// CaseNone は通知なし。
	CaseNone NotificationCase = "none"
)

// Decision は通知判定エンジンの出力。エンジン自身は送信を行わず、
// ディスパッチャーがこのペイロードをメッセージに描画する。
type Decision struct {
	Case        NotificationCase
	AccountName string
	New         []Assignment
	Urgent      []Assignment
	AllPending  []Assignment
	TimeOfDay   TimeOfDay
}
