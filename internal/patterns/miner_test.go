package patterns

import (
	"context"
	"testing"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
)

type captureStore struct {
	patterns []models.RiskPattern
}

func (s *captureStore) StorePatterns(_ context.Context, patterns []models.RiskPattern) error {
	s.patterns = patterns
	return nil
}

func TestMinerAggregatesByCategory(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	results := []models.AnalysisResult{
		{EntityType: models.EntityUser, EntityID: "alice", RiskScore: 100, AnomalyLevel: models.AnomalyHigh,
			Metadata: models.AnalysisMetadata{EmailZ: 4.2}, AnalysisDate: now},
		{EntityType: models.EntityUser, EntityID: "bob", RiskScore: 80, AnomalyLevel: models.AnomalyHigh,
			Metadata: models.AnalysisMetadata{EmailZ: 2.6}, AnalysisDate: now.Add(-time.Hour)},
		{EntityType: models.EntityUser, EntityID: "carol", RiskScore: 30, AnomalyLevel: models.AnomalyLow,
			AnalysisDate: now},
		{EntityType: models.EntityChannel, EntityID: "Web", RiskScore: 30, AnomalyLevel: models.AnomalyLow,
			AnalysisDate: now},
	}

	store := &captureStore{}
	mined, err := NewMiner(nil, store).Mine(context.Background(), results)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}

	if len(mined) != 1 {
		t.Fatalf("patterns = %d, want 1 (only users are anomalous)", len(mined))
	}
	pattern := mined[0]
	if pattern.Category != models.EntityUser {
		t.Fatalf("category = %s", pattern.Category)
	}
	if pattern.DominantDetector != "email_channel" {
		t.Fatalf("dominant detector = %s, want email_channel", pattern.DominantDetector)
	}
	if pattern.Prevalence != 2.0/3.0 {
		t.Fatalf("prevalence = %f, want 2/3", pattern.Prevalence)
	}
	if len(pattern.TopEntities) != 2 || pattern.TopEntities[0] != "alice" {
		t.Fatalf("top entities = %v, want alice first", pattern.TopEntities)
	}
	if pattern.AvgRiskScore != 90 {
		t.Fatalf("avg risk = %f, want 90", pattern.AvgRiskScore)
	}
	if len(store.patterns) != 1 {
		t.Fatalf("expected mined patterns to be stored, got %d", len(store.patterns))
	}
}

func TestMinerEmptyInput(t *testing.T) {
	mined, err := NewMiner(nil, nil).Mine(context.Background(), nil)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if mined != nil {
		t.Fatalf("expected nil patterns, got %v", mined)
	}
}
