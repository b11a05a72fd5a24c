package engine

import (
	"fmt"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
)

// TrendResult describes incident volume movement inside the current window.
// It enriches metadata and explanations but never changes the risk score.
type TrendResult struct {
	Direction models.TrendDirection
	Ratio     float64
}

// evaluateTrend compares the two halves of the current window by incident
// count. Ratios beyond 1.25 or below 0.8 read as rising or falling.
func evaluateTrend(incidents []models.Incident, start, end time.Time) TrendResult {
	if len(incidents) == 0 || !end.After(start) {
		return TrendResult{Direction: models.TrendFlat, Ratio: 1}
	}

	midpoint := start.Add(end.Sub(start) / 2)
	var early, late int
	for _, inc := range incidents {
		if inc.Timestamp.Before(midpoint) {
			early++
		} else {
			late++
		}
	}

	if early == 0 {
		if late == 0 {
			return TrendResult{Direction: models.TrendFlat, Ratio: 1}
		}
		return TrendResult{Direction: models.TrendRising, Ratio: float64(late)}
	}

	ratio := float64(late) / float64(early)
	return classifyTrend(ratio)
}

func classifyTrend(ratio float64) TrendResult {
	switch {
	case ratio >= 1.25:
		return TrendResult{Direction: models.TrendRising, Ratio: ratio}
	case ratio <= 0.8:
		return TrendResult{Direction: models.TrendFalling, Ratio: ratio}
	default:
		return TrendResult{Direction: models.TrendFlat, Ratio: ratio}
	}
}

// trendNote renders a one-sentence description of a non-flat trend for the
// static explanation. Flat trends produce no note.
func trendNote(trend TrendResult) string {
	switch trend.Direction {
	case models.TrendRising:
		return fmt.Sprintf("Incident volume is rising within the window (ratio %.2f).", trend.Ratio)
	case models.TrendFalling:
		return fmt.Sprintf("Incident volume is falling within the window (ratio %.2f).", trend.Ratio)
	default:
		return ""
	}
}
