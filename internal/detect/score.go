package detect

import "github.com/vantasec/dlp-behavior/internal/models"

// Score maps the maximum absolute z-score to a bounded risk score and its
// anomaly level. The mapping is a step function, not a continuous scale,
// with a floor of 30 so no entity with measurable history reads as
// risk-free.
func Score(scores AnomalyScores) (int, models.AnomalyLevel) {
	maxZ := scores.MaxAbs()

	risk := 30
	switch {
	case maxZ >= 3:
		risk = 100
	case maxZ >= 2:
		risk = 80
	case maxZ >= 1:
		risk = 50
	}

	return risk, LevelForRisk(risk)
}

// LevelForRisk classifies a risk score into the three anomaly levels.
func LevelForRisk(risk int) models.AnomalyLevel {
	switch {
	case risk >= 80:
		return models.AnomalyHigh
	case risk >= 50:
		return models.AnomalyMedium
	default:
		return models.AnomalyLow
	}
}
