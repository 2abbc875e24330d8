package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
	"github.com/Michael-bot-commits/brightspace-agent/internal/urgency"
)

// frMonths はメール本文表示用のフランス語月名。
var frMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// formatDueDate は締切をフランス語表記で整形する。
func formatDueDate(t *time.Time) string {
	if t == nil {
		return "Non définie"
	}
	return fmt.Sprintf("%d %s %d à %02d:%02d",
		t.Day(), frMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// pluralFR はフランス語の単数・複数形を数に応じて選ぶ。
func pluralFR(n int, singular, plural string) string {
	if n > 1 {
		return plural
	}
	return singular
}

// itemView はテンプレートに渡す課題1件分の表示データ。
type itemView struct {
	Title     string
	Course    string
	Due       string
	HoursLeft int
	IsUrgent  bool
}

// statsView は全メール共通の統計ブロックの表示データ。
type statsView struct {
	Total  int
	Urgent int
	Soon   int
	Later  int
}

// emailData はメールテンプレートのルートデータ。
type emailData struct {
	AccountName string
	New         []itemView
	Urgent      []itemView
	Pending     []itemView
	Stats       statsView
	Greeting    string
	Period      string
	GeneratedAt string
}

// buildItemView は課題1件を表示データに変換する。
func buildItemView(a model.Assignment, urgentIDs map[string]struct{}, now time.Time) itemView {
	v := itemView{
		Title:  a.Title,
		Course: truncate(a.Course, 50),
		Due:    formatDueDate(a.DueDate),
	}
	if _, ok := urgentIDs[a.ID]; ok {
		v.IsUrgent = true
	}
	if a.DueDate != nil {
		v.HoursLeft = int(a.DueDate.Sub(now).Hours())
	}
	return v
}

// truncate は表示文字列を最大長に切り詰める。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// buildStats は未完了課題全体の統計ブロックを組み立てる。
// 区分は 24時間未満 / 3日未満 / それ以外 の3段階。
func buildStats(allPending []model.Assignment, now time.Time) statsView {
	stats := statsView{Total: len(allPending)}
	for _, a := range allPending {
		switch urgency.BandOf(a, now) {
		case urgency.BandUrgent:
			stats.Urgent++
		case urgency.BandSoon:
			stats.Soon++
		default:
			stats.Later++
		}
	}
	return stats
}

// Subject は判定結果からメール件名を組み立てる。
func Subject(d model.Decision) string {
	switch d.Case {
	case model.CaseCombined:
		return fmt.Sprintf("🎓⚠️ [%s] %d %s (dont %d %s)",
			d.AccountName,
			len(d.New), pluralFR(len(d.New), "nouveau travail", "nouveaux travaux"),
			len(d.Urgent), pluralFR(len(d.Urgent), "urgent", "urgents"))
	case model.CaseNewOnly:
		return fmt.Sprintf("🎓 [%s] %d %s",
			d.AccountName,
			len(d.New), pluralFR(len(d.New), "nouveau travail", "nouveaux travaux"))
	case model.CaseUrgentOnly:
		return fmt.Sprintf("⚠️ [%s] %d %s",
			d.AccountName,
			len(d.Urgent), pluralFR(len(d.Urgent), "travail urgent", "travaux urgents"))
	case model.CaseSummary:
		emoji, period := "☀️", "matin"
		if d.TimeOfDay == model.TimeOfDayEvening {
			emoji, period = "🌙", "soir"
		}
		n := len(d.AllPending)
		return fmt.Sprintf("%s [%s] Résumé du %s - %d %s à faire",
			emoji, d.AccountName, period, n, pluralFR(n, "travail", "travaux"))
	default:
		return ""
	}
}

// Render は判定結果からメール本文（HTML）を描画する。
func Render(d model.Decision, now time.Time) (string, error) {
	urgentIDs := make(map[string]struct{}, len(d.Urgent))
	for _, a := range d.Urgent {
		urgentIDs[a.ID] = struct{}{}
	}

	data := emailData{
		AccountName: d.AccountName,
		Stats:       buildStats(d.AllPending, now),
		GeneratedAt: now.Format("02/01/2006 à 15:04"),
	}
	for _, a := range d.New {
		data.New = append(data.New, buildItemView(a, urgentIDs, now))
	}
	for _, a := range d.Urgent {
		data.Urgent = append(data.Urgent, buildItemView(a, urgentIDs, now))
	}

	// サマリー系は締切順に並べる。締切なしは末尾。
	pending := make([]model.Assignment, len(d.AllPending))
	copy(pending, d.AllPending)
	sort.SliceStable(pending, func(i, j int) bool {
		switch {
		case pending[i].DueDate == nil:
			return false
		case pending[j].DueDate == nil:
			return true
		default:
			return pending[i].DueDate.Before(*pending[j].DueDate)
		}
	})
	for _, a := range pending {
		data.Pending = append(data.Pending, buildItemView(a, urgentIDs, now))
	}

	var tmpl *template.Template
	switch d.Case {
	case model.CaseCombined:
		tmpl = combinedTmpl
	case model.CaseNewOnly:
		tmpl = newOnlyTmpl
	case model.CaseUrgentOnly:
		tmpl = urgentOnlyTmpl
	case model.CaseSummary:
		if d.TimeOfDay == model.TimeOfDayEvening {
			data.Greeting, data.Period = "Bonsoir", "soir"
		} else {
			data.Greeting, data.Period = "Bonjour", "matin"
		}
		tmpl = summaryTmpl
	default:
		return "", fmt.Errorf("描画対象のない通知ケースです: %s", d.Case)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("メール本文の描画に失敗しました: %w", err)
	}
	return buf.String(), nil
}
