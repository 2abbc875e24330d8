package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthsFR はフランス語の月名（省略形を含む）から月番号へのマッピング。
var monthsFR = map[string]time.Month{
	"jan": time.January, "janv": time.January, "janvier": time.January,
	"fév": time.February, "févr": time.February, "février": time.February,
	"fev": time.February, "fevr": time.February,
	"mar": time.March, "mars": time.March,
	"avr": time.April, "avril": time.April,
	"mai": time.May,
	"juin": time.June, "jun": time.June,
	"juil": time.July, "juillet": time.July,
	"août": time.August, "aout": time.August, "aou": time.August,
	"sep": time.September, "sept": time.September, "septembre": time.September,
	"oct": time.October, "octobre": time.October,
	"nov": time.November, "novembre": time.November,
	"déc": time.December, "décembre": time.December, "dec": time.December,
}

// 日が先行するフランス語形式: "20 oct 2025 à 23h59"
var dayFirstFR = regexp.MustCompile(`(?i)(\d{1,2})\s+([a-zéûà]+)\.?\s+(\d{4})\s+à\s+(\d{1,2})\s*h\s*(\d{2})`)

// 月名が先行するポータル表示形式: "oct. 20 2025 23 h 59"
var monthFirstFR = regexp.MustCompile(`(?i)([a-zéûà]+)\.?\s+(\d{1,2})(?:,)?\s+(\d{4})\s+(\d{1,2})\s*h\s*(\d{2})`)

// 英語形式: "Oct 20, 2025 at 11:59 PM"
var englishLayouts = []string{
	"Jan 2, 2006 at 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006 at 3:04 PM",
}

// 機械可読な形式。
var machineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
}

// ParseDueDate は複数の表記形式から締切日時をパースする。
// 対応形式:
//   - "20 oct 2025 à 23h59" （フランス語・日が先行）
//   - "oct. 20 2025 23 h 59" （フランス語・月名が先行、ポータルの表組み表示）
//   - "Oct 20, 2025 at 11:59 PM" （英語）
//   - "2025-10-20T23:59:00" （ISO 8601）
//   - "20/10/2025 23:59"
//
// どの形式にも一致しない場合はエラーを返す。
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	if m := dayFirstFR.FindStringSubmatch(s); m != nil {
		if t, ok := buildFR(m[2], m[1], m[3], m[4], m[5]); ok {
			return t, nil
		}
	}

	if m := monthFirstFR.FindStringSubmatch(s); m != nil {
		if t, ok := buildFR(m[1], m[2], m[3], m[4], m[5]); ok {
			return t, nil
		}
	}

	for _, layout := range englishLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}

	for _, layout := range machineLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// buildFR はフランス語の月名と数値文字列からtime.Timeを組み立てる。
func buildFR(monthStr, dayStr, yearStr, hourStr, minStr string) (time.Time, bool) {
	month, ok := monthsFR[strings.ToLower(strings.TrimSuffix(monthStr, "."))]
	if !ok {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(dayStr)
	year, _ := strconv.Atoi(yearStr)
	hour, _ := strconv.Atoi(hourStr)
	min, _ := strconv.Atoi(minStr)

	if day < 1 || day > 31 || hour > 23 || min > 59 {
		return time.Time{}, false
	}

	return time.Date(year, month, day, hour, min, 0, 0, time.Local), true
}
