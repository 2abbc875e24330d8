package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// 締切の表記: "Échéance : oct. 20 2025 23 h 59"
var duePattern = regexp.MustCompile(`(?i)Échéance\s*:?\s*([a-zéûà]+\.?\s+\d+\s+\d{4}\s+\d+\s*h\s*\d+)`)

// クイズ等の受験期限: "Disponible jusqu'au oct. 20 2025 23 h 59"
// この表記の課題は期限後に再提出できない。
var availableUntilPattern = regexp.MustCompile(`(?i)Disponible\s+jusqu'au\s+([a-zéûà]+\.?\s+\d+\s+\d{4}\s+\d+\s*h\s*\d+)`)

// 採点結果の表記: "18 / 20 - 90 %"
var gradePattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)\s*-\s*(\d+)\s*%`)

// genericTitles はテーブルのヘッダー行等に現れる、課題ではないタイトル。
var genericTitles = map[string]struct{}{
	"travail":    {},
	"work":       {},
	"assignment": {},
	"état":       {},
	"score":      {},
}

// ParseRow はポータルの課題テーブル1行分のテキストをScrapedAssignmentにパースする。
// ヘッダー行やタイトルが抽出できない行はErrMalformedRecordを返し、
// 呼び出し側がそのレコードだけをスキップできるようにする。
func ParseRow(text, course, pageURL string) (*model.ScrapedAssignment, error) {
	title := extractTitle(text)
	if len(title) < 2 {
		return nil, fmt.Errorf("タイトルが抽出できません: %w", model.ErrMalformedRecord)
	}
	if _, generic := genericTitles[strings.ToLower(title)]; generic {
		return nil, fmt.Errorf("ヘッダー行です (%q): %w", title, model.ErrMalformedRecord)
	}
	lower := strings.ToLower(title)
	if strings.Contains(lower, "état") && strings.Contains(lower, "achèvement") {
		return nil, fmt.Errorf("ヘッダー行です (%q): %w", title, model.ErrMalformedRecord)
	}

	a := &model.ScrapedAssignment{
		Title:  title,
		Course: course,
		Link:   pageURL,
	}

	// 締切の抽出。"Disponible jusqu'au" 表記は受験期限であり、
	// 期限超過で再提出不能（missed扱い）になる。
	if m := duePattern.FindStringSubmatch(text); m != nil {
		if due, err := ParseDueDate(m[1]); err == nil {
			a.DueDate = &due
		}
	} else if m := availableUntilPattern.FindStringSubmatch(text); m != nil {
		a.NonResubmittable = true
		if due, err := ParseDueDate(m[1]); err == nil {
			a.DueDate = &due
		}
	}

	a.Submitted = strings.Contains(strings.ToLower(text), "soumission")

	if m := gradePattern.FindStringSubmatch(text); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			a.Grade = &score
		}
	}

	return a, nil
}

// extractTitle は行テキストからタイトル部分を切り出す。
// 締切表記の前までがタイトルとなる。どちらの表記もない場合は
// 先頭3語までをタイトルとみなす。
func extractTitle(text string) string {
	if idx := strings.Index(text, "Échéance"); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	if idx := strings.Index(text, "Disponible"); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}

	words := strings.Fields(text)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}
