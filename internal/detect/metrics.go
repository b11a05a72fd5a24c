// Package detect holds the pure statistical stages of the behaviour engine:
// metric summarisation, z-score detection and risk scoring. Nothing in this
// package performs I/O or holds state between calls.
package detect

import (
	"math"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/utils"
)

// BehaviorMetrics summarises an incident set for one analysis window.
type BehaviorMetrics struct {
	TotalIncidents      int
	MeanIncidentsPerDay float64
	StdDevIncidentsDay  float64
	AvgSeverity         float64
	StdDevSeverity      float64
	ChannelCounts       map[string]int
}

// ComputeMetrics reduces an incident list to its behavioural summary.
// Empty input yields all-zero metrics with an empty channel map.
func ComputeMetrics(incidents []models.Incident) BehaviorMetrics {
	m := BehaviorMetrics{
		TotalIncidents: len(incidents),
		ChannelCounts:  make(map[string]int),
	}
	if len(incidents) == 0 {
		return m
	}

	daily := make(map[time.Time]int)
	severities := make([]float64, 0, len(incidents))
	for _, inc := range incidents {
		daily[utils.DayStart(inc.Timestamp)]++
		severities = append(severities, float64(inc.Severity))
		if inc.Channel != "" {
			m.ChannelCounts[inc.Channel]++
		}
	}

	counts := make([]float64, 0, len(daily))
	for _, c := range daily {
		counts = append(counts, float64(c))
	}

	m.MeanIncidentsPerDay, m.StdDevIncidentsDay = meanStdDev(counts)
	m.AvgSeverity, m.StdDevSeverity = meanStdDev(severities)
	return m
}

// meanStdDev returns the mean and sample standard deviation (n-1 divisor).
// The deviation is zero with fewer than two values.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}
