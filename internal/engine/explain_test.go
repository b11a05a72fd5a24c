package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/repo"
)

func TestStaticExplainerFlagsDetectors(t *testing.T) {
	explanation, recommendation, err := StaticExplainer{}.Explain(context.Background(), repo.ExplainRequest{
		EntityType:     "user",
		EntityID:       "alice",
		IncidentCountZ: 4.1,
		EmailZ:         -2.5,
		MaxZ:           4.1,
	})
	if err != nil {
		t.Fatalf("static explainer must not fail: %v", err)
	}
	if !strings.Contains(explanation, "incident volume") || !strings.Contains(explanation, "Email channel activity") {
		t.Fatalf("explanation should list exceeded detectors, got %q", explanation)
	}
	if strings.Contains(explanation, "severity (") {
		t.Fatalf("non-exceeded detector must not be listed: %q", explanation)
	}
	if !strings.Contains(recommendation, "Escalate") {
		t.Fatalf("maxZ >= 3 should map to the critical recommendation, got %q", recommendation)
	}
}

func TestStaticExplainerQuietEntity(t *testing.T) {
	explanation, recommendation, err := StaticExplainer{}.Explain(context.Background(), repo.ExplainRequest{
		EntityType: "department", EntityID: "finance", MaxZ: 0.2,
	})
	if err != nil {
		t.Fatalf("static explainer must not fail: %v", err)
	}
	if explanation == "" || recommendation == "" {
		t.Fatal("fallback must always return non-empty strings")
	}
	if !strings.Contains(explanation, "within its historical range") {
		t.Fatalf("quiet entity explanation: %q", explanation)
	}
}

func TestStaticRecommendationTiers(t *testing.T) {
	tiers := map[float64]string{
		3.5: "Escalate",
		2.1: "Review",
		1.4: "Monitor",
		0.5: "No action required",
	}
	for maxZ, fragment := range tiers {
		if rec := staticRecommendation(maxZ); !strings.Contains(rec, fragment) {
			t.Fatalf("maxZ=%.1f recommendation %q missing %q", maxZ, rec, fragment)
		}
	}
}

func TestEvaluateTrend(t *testing.T) {
	start := analysisNow.AddDate(0, 0, -7)

	cases := []struct {
		name      string
		early     int
		late      int
		direction models.TrendDirection
	}{
		{"rising", 2, 8, models.TrendRising},
		{"falling", 8, 2, models.TrendFalling},
		{"steady", 5, 5, models.TrendFlat},
	}

	midpoint := start.Add(analysisNow.Sub(start) / 2)
	for _, tc := range cases {
		incidents := append(
			spreadIncidents("u", "Email", 5, tc.early, start, midpoint),
			spreadIncidents("u", "Email", 5, tc.late, midpoint, analysisNow)...,
		)
		trend := evaluateTrend(incidents, start, analysisNow)
		if trend.Direction != tc.direction {
			t.Fatalf("%s: direction = %s, want %s (ratio %.2f)", tc.name, trend.Direction, tc.direction, trend.Ratio)
		}
	}
}

func TestEvaluateTrendEmpty(t *testing.T) {
	trend := evaluateTrend(nil, analysisNow.Add(-time.Hour), analysisNow)
	if trend.Direction != models.TrendFlat || trend.Ratio != 1 {
		t.Fatalf("empty window trend = %+v, want flat", trend)
	}
}
