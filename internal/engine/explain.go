package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/vantasec/dlp-behavior/internal/repo"
)

// StaticExplainer is the deterministic fallback explanation generator. It
// never fails and always returns non-empty strings, so the analyzer can rely
// on it when the AI provider is absent or broken.
type StaticExplainer struct{}

// Explain produces a rule-based explanation and recommendation.
func (StaticExplainer) Explain(_ context.Context, req repo.ExplainRequest) (string, string, error) {
	return staticExplanation(req), staticRecommendation(req.MaxZ), nil
}

// detectorLabel pairs a z-score with its human-readable detector name.
type detectorLabel struct {
	name string
	z    float64
}

func staticExplanation(req repo.ExplainRequest) string {
	detectors := []detectorLabel{
		{"incident volume", req.IncidentCountZ},
		{"severity", req.SeverityZ},
		{"Email channel activity", req.EmailZ},
		{"Web channel activity", req.WebZ},
		{"Endpoint channel activity", req.EndpointZ},
	}

	flagged := make([]string, 0, len(detectors))
	for _, d := range detectors {
		if math.Abs(d.z) > 2 {
			flagged = append(flagged, fmt.Sprintf("%s (z=%.2f)", d.name, d.z))
		}
	}

	subject := fmt.Sprintf("%s %q", req.EntityType, req.EntityID)
	if len(flagged) == 0 {
		return fmt.Sprintf("Behavior of %s over the analysis window is within its historical range: %d incidents, %.2f per day on average, mean severity %.2f.",
			subject, req.TotalIncidents, req.MeanIncidentsPerDay, req.AvgSeverity)
	}

	return fmt.Sprintf("Behavior of %s deviates from its historical baseline in: %s. The window contains %d incidents (%.2f per day, mean severity %.2f).",
		subject, strings.Join(flagged, ", "), req.TotalIncidents, req.MeanIncidentsPerDay, req.AvgSeverity)
}

func staticRecommendation(maxZ float64) string {
	switch {
	case maxZ >= 3:
		return "Critical deviation from baseline behavior. Escalate to the security team immediately and review the referenced incidents for active data exfiltration."
	case maxZ >= 2:
		return "Strong deviation from baseline behavior. Review the entity's recent incidents and confirm whether the activity is business-justified."
	case maxZ >= 1:
		return "Moderate deviation from baseline behavior. Monitor the entity over the next analysis cycles and check policy coverage for the affected channels."
	default:
		return "Behavior is consistent with the historical baseline. No action required; continue routine monitoring."
	}
}
