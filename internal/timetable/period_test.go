package timetable

import (
	"testing"
	"time"
)

func TestPeriodWindow(t *testing.T) {
	tests := []struct {
		period int
		start  string
		end    string
	}{
		{1, "08:45", "10:15"},
		{2, "10:30", "12:00"},
		{3, "13:00", "14:30"},
		{4, "14:45", "16:15"},
		{5, "16:30", "18:00"},
		{6, "18:15", "19:45"},
		{7, "20:00", "21:15"},
	}
	for _, tt := range tests {
		w, err := PeriodWindow(tt.period)
		if err != nil {
			t.Fatalf("PeriodWindow(%d): %v", tt.period, err)
		}
		if w.Start.String() != tt.start || w.End.String() != tt.end {
			t.Errorf("PeriodWindow(%d) = %s-%s, want %s-%s",
				tt.period, w.Start, w.End, tt.start, tt.end)
		}
	}

	for _, p := range []int{0, 8, -1} {
		if _, err := PeriodWindow(p); err == nil {
			t.Errorf("PeriodWindow(%d) expected error", p)
		}
	}
}

func TestWindowOn(t *testing.T) {
	w, _ := PeriodWindow(2)
	date := time.Date(2025, 4, 8, 0, 0, 0, 0, JST)
	start := w.Start.On(date)
	if start.Hour() != 10 || start.Minute() != 30 || start.Day() != 8 {
		t.Errorf("Start.On = %v, want 2025-04-08 10:30 JST", start)
	}
	if loc := start.Location(); loc != JST {
		t.Errorf("Start.On location = %v, want JST", loc)
	}
}

func TestPeriodAt(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2025, 4, 8, h, m, 0, 0, JST)
	}

	tests := []struct {
		h, m int
		want int
	}{
		{7, 59, 0},  // before first band
		{8, 0, 1},   // band boundary is inclusive on the left
		{10, 19, 1}, // last minute of band 1
		{10, 20, 2}, // next band opens exactly here
		{12, 4, 2},
		{12, 5, 3},
		{14, 35, 4},
		{16, 20, 5},
		{18, 5, 6},
		{19, 50, 7},
		{21, 20, 8},
		{22, 44, 8},
		{22, 45, 0}, // band 8 is half-open too
		{23, 30, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := PeriodAt(at(tt.h, tt.m)); got != tt.want {
			t.Errorf("PeriodAt(%02d:%02d) = %d, want %d", tt.h, tt.m, got, tt.want)
		}
	}
}

func TestPeriodBandsCoverWindows(t *testing.T) {
	// Every period's taught window must map back to that period.
	for p := 1; p <= 7; p++ {
		w, _ := PeriodWindow(p)
		date := time.Date(2025, 4, 8, 0, 0, 0, 0, JST)
		if got := PeriodAt(w.Start.On(date)); got != p {
			t.Errorf("PeriodAt(start of period %d) = %d", p, got)
		}
		if got := PeriodAt(w.End.On(date)); got != p {
			t.Errorf("PeriodAt(end of period %d) = %d", p, got)
		}
	}
}
