package repository

import (
	"testing"
	"time"

	"github.com/civiclens/civiclens-go/internal/model"
)

func TestBanDuration(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  time.Duration
	}{
		{"first offense", 1, time.Hour},
		{"second offense", 2, time.Hour},
		{"third escalates to a day", 3, 24 * time.Hour},
		{"fifth still a day", 5, 24 * time.Hour},
		{"sixth escalates to a week", 6, 7 * 24 * time.Hour},
		{"tenth still a week", 10, 7 * 24 * time.Hour},
		{"eleventh is permanent", 11, 0},
		{"way past permanent", 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BanDuration(tt.count); got != tt.want {
				t.Errorf("BanDuration(%d) = %v, want %v", tt.count, got, tt.want)
			}
		})
	}
}

func TestWindowBoundaries(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 37, 22, 0, time.UTC)

	hourStart := WindowStart(model.WindowHour, now)
	if hourStart != time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC) {
		t.Errorf("hour window start = %v", hourStart)
	}
	hourEnd := WindowEnd(model.WindowHour, now)
	if hourEnd != time.Date(2025, 6, 15, 15, 0, 0, 0, time.UTC) {
		t.Errorf("hour window end = %v", hourEnd)
	}

	dayStart := WindowStart(model.WindowDay, now)
	if dayStart != time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) {
		t.Errorf("day window start = %v", dayStart)
	}
	dayEnd := WindowEnd(model.WindowDay, now)
	if dayEnd != time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC) {
		t.Errorf("day window end = %v", dayEnd)
	}
}

func TestWindowStartNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2025, 6, 15, 2, 30, 0, 0, loc) // 2025-06-14 21:30 UTC

	dayStart := WindowStart(model.WindowDay, now)
	if dayStart != time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC) {
		t.Errorf("day window start = %v, want UTC date of the instant", dayStart)
	}
}
