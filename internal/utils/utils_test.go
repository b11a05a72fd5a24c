package utils

import (
	"errors"
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("p0 = %v, want 1ms", got)
	}
	if got := tracker.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("p100 = %v, want 10ms", got)
	}
	if got := tracker.Percentile(50); got < 4*time.Millisecond || got > 6*time.Millisecond {
		t.Fatalf("p50 = %v, want near median", got)
	}
}

func TestLatencyTrackerBounded(t *testing.T) {
	tracker := NewLatencyTracker(4)
	for i := 0; i < 20; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 4 {
		t.Fatalf("count = %d, want bounded at 4", tracker.Count())
	}
}

func TestAppError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError("AnalyzeEntity", "analysis failed", cause)

	if got := err.Error(); got != "AnalyzeEntity: analysis failed: connection refused" {
		t.Fatalf("message = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}

	bare := NewAppError("AnalyzeOverview", "aggregation failed", nil)
	if got := bare.Error(); got != "AnalyzeOverview: aggregation failed" {
		t.Fatalf("message without cause = %q", got)
	}
}

func TestDayStart(t *testing.T) {
	ts := time.Date(2026, 4, 12, 17, 45, 3, 0, time.UTC)
	want := time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)
	if got := DayStart(ts); !got.Equal(want) {
		t.Fatalf("DayStart = %v, want %v", got, want)
	}

	// Non-UTC timestamps group by their UTC day.
	offset := time.FixedZone("UTC+10", 10*60*60)
	late := time.Date(2026, 4, 13, 5, 0, 0, 0, offset)
	if got := DayStart(late); !got.Equal(want) {
		t.Fatalf("DayStart across zones = %v, want %v", got, want)
	}
}

func TestWindowDays(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if got := WindowDays(start, start.AddDate(0, 0, 7)); got != 7 {
		t.Fatalf("7-day window = %d", got)
	}
	if got := WindowDays(start, start.Add(6*time.Hour)); got != 1 {
		t.Fatalf("partial day should round up to 1, got %d", got)
	}
	if got := WindowDays(start, start); got != 0 {
		t.Fatalf("empty range = %d, want 0", got)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(3.14159); got != 3.14 {
		t.Fatalf("round = %f", got)
	}
	if got := Round2(-2.675); got != -2.67 && got != -2.68 {
		t.Fatalf("round negative = %f", got)
	}
}
