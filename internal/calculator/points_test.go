package calculator

import (
	"testing"
	"time"
)

func TestPointsForSettlement(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		after time.Duration
		want  int
	}{
		{"same instant", 0, 10},
		{"an hour later", time.Hour, 10},
		{"exactly one day", 24 * time.Hour, 10},
		{"one day and a minute rounds up to two", 24*time.Hour + time.Minute, 5},
		{"exactly two days", 48 * time.Hour, 5},
		{"exactly three days", 72 * time.Hour, 5},
		{"just over three days", 72*time.Hour + time.Second, 2},
		{"exactly four days", 96 * time.Hour, 2},
		{"a month later", 30 * 24 * time.Hour, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PointsForSettlement(created, created.Add(tt.after))
			if got != tt.want {
				t.Errorf("PointsForSettlement(+%v) = %d, want %d", tt.after, got, tt.want)
			}
		})
	}
}

func TestDampedScore(t *testing.T) {
	tests := []struct {
		prev, earned, want int
	}{
		{0, 10, 10},
		{0, 2, 2},
		{20, 10, 15},
		{10, 5, 7}, // floor(7.5)
		{5, 2, 3},  // floor(3.5)
		{10, 10, 10},
	}

	for _, tt := range tests {
		if got := DampedScore(tt.prev, tt.earned); got != tt.want {
			t.Errorf("DampedScore(%d, %d) = %d, want %d", tt.prev, tt.earned, got, tt.want)
		}
	}
}
