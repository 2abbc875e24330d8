package urgency

import (
	"testing"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

func assignmentDueIn(d time.Duration, now time.Time) model.Assignment {
	due := now.Add(d)
	return model.Assignment{ID: "a", Title: "Devoir", DueDate: &due}
}

func TestIsUrgent_Boundary(t *testing.T) {
	now := time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC)
	const threshold = 24.0

	tests := []struct {
		name string
		due  time.Duration
		want bool
	}{
		{"閾値直前は緊急", 24*time.Hour - time.Second, true},
		{"閾値ちょうどは緊急でない", 24 * time.Hour, false},
		{"閾値直後は緊急でない", 24*time.Hour + time.Second, false},
		{"残り10時間は緊急", 10 * time.Hour, true},
		{"締切超過は緊急でない", -1 * time.Hour, false},
		{"締切ちょうどは緊急でない", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assignmentDueIn(tt.due, now)
			if got := IsUrgent(a, threshold, now); got != tt.want {
				t.Errorf("IsUrgent(due=now+%v) = %v, want %v", tt.due, got, tt.want)
			}
		})
	}
}

func TestIsUrgent_NoDueDate(t *testing.T) {
	now := time.Now()
	a := model.Assignment{ID: "a", Title: "Sans échéance"}
	if IsUrgent(a, 24, now) {
		t.Error("締切のない課題が緊急と判定された")
	}
}

func TestUrgent_FiltersPendingSet(t *testing.T) {
	now := time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC)

	pending := []model.Assignment{
		assignmentDueIn(10*time.Hour, now),
		assignmentDueIn(48*time.Hour, now),
		assignmentDueIn(-2*time.Hour, now),
		{ID: "d", Title: "Sans échéance"},
	}

	urgent := Urgent(pending, 24, now)
	if len(urgent) != 1 {
		t.Fatalf("緊急課題数が不正: got %d, want 1", len(urgent))
	}
	if !urgent[0].DueDate.Equal(now.Add(10 * time.Hour)) {
		t.Errorf("緊急と判定された課題が不正: %+v", urgent[0])
	}
}

func TestBandOf(t *testing.T) {
	now := time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Duration
		want Band
	}{
		{"残り10時間", 10 * time.Hour, BandUrgent},
		{"残り2日", 2 * 24 * time.Hour, BandSoon},
		{"残り5日", 5 * 24 * time.Hour, BandThisWeek},
		{"残り10日", 10 * 24 * time.Hour, BandLater},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assignmentDueIn(tt.due, now)
			if got := BandOf(a, now); got != tt.want {
				t.Errorf("BandOf(due=now+%v) = %v, want %v", tt.due, got, tt.want)
			}
		})
	}

	noDue := model.Assignment{ID: "a"}
	if got := BandOf(noDue, now); got != BandLater {
		t.Errorf("締切なしの区分が不正: %v", got)
	}
}
