package utils

import (
	"math"
	"time"
)

// DayStart truncates a timestamp to midnight UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WindowDays returns the whole number of days covered by [start, end),
// never less than 1 for a non-empty range.
func WindowDays(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// Round2 rounds to two decimal places for metadata reporting.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
