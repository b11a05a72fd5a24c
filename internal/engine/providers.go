package engine

import (
	"context"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/repo"
)

// IncidentProvider is the read-only incident query collaborator. Empty
// entityType and entityID select every incident in the window.
type IncidentProvider interface {
	FetchIncidents(ctx context.Context, entityType models.EntityType, entityID string, start, end time.Time) ([]models.Incident, error)
}

// ExplanationProvider turns computed figures into a natural-language
// explanation and recommendation. Implementations may fail; the analyzer
// falls back to the static generator.
type ExplanationProvider interface {
	Explain(ctx context.Context, req repo.ExplainRequest) (explanation, recommendation string, err error)
}

// ResultStore persists completed analysis results. Store failures never
// fail an analysis.
type ResultStore interface {
	StoreAnalysis(ctx context.Context, result models.AnalysisResult) error
}
