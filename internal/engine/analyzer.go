// Package engine implements the behavioural anomaly analysis flow: adaptive
// baseline selection, z-score detection, risk scoring and cross-entity
// aggregation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vantasec/dlp-behavior/internal/detect"
	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/repo"
	"github.com/vantasec/dlp-behavior/internal/utils"
)

const referenceIncidentLimit = 10

// Options tunes the analyzer's aggregation behaviour.
type Options struct {
	// OverviewWorkers bounds the parallel per-entity analyses during an
	// overview pass.
	OverviewWorkers int
	// TopResults caps the global highest-risk list.
	TopResults int
}

// Analyzer orchestrates the analysis of one entity and of the whole
// incident population. It holds no mutable state between calls.
type Analyzer struct {
	logger    *slog.Logger
	provider  IncidentProvider
	explainer ExplanationProvider
	store     ResultStore
	opts      Options

	now func() time.Time
}

// NewAnalyzer constructs the behaviour analyzer. The explainer may be nil,
// in which case the static fallback generator is used directly; the store
// may be nil to skip persistence.
func NewAnalyzer(logger *slog.Logger, provider IncidentProvider, explainer ExplanationProvider, store ResultStore, opts Options) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OverviewWorkers < 1 {
		opts.OverviewWorkers = 8
	}
	if opts.TopResults < 1 {
		opts.TopResults = 20
	}
	return &Analyzer{
		logger:    logger,
		provider:  provider,
		explainer: explainer,
		store:     store,
		opts:      opts,
		now:       time.Now,
	}
}

// AnalyzeEntity runs the full detection flow for one entity over the last
// lookbackDays and returns an immutable result. Inputs are assumed to be
// validated by the service layer.
func (a *Analyzer) AnalyzeEntity(ctx context.Context, entityType models.EntityType, entityID string, lookbackDays int) (models.AnalysisResult, error) {
	if a.provider == nil {
		return models.AnalysisResult{}, fmt.Errorf("incident provider not configured")
	}

	end := a.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	current, err := a.provider.FetchIncidents(ctx, entityType, entityID, start, end)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("fetch current window: %w", err)
	}

	baseline, err := a.selectBaseline(ctx, entityType, entityID, start, lookbackDays, len(current))
	if err != nil {
		return models.AnalysisResult{}, err
	}

	if len(current) == 0 && len(baseline.Incidents) == 0 {
		return a.noDataResult(entityType, entityID, lookbackDays, end), nil
	}

	effectiveCurrent := current
	if len(baseline.Incidents) == 0 {
		// No history at all: compare the window's own halves instead.
		baseline, effectiveCurrent = splitPeriod(current, start)
	}

	currentMetrics := detect.ComputeMetrics(effectiveCurrent)
	baselineMetrics := detect.ComputeMetrics(baseline.Incidents)
	scores := detect.Detect(currentMetrics, baselineMetrics)
	risk, level := detect.Score(scores)
	trend := evaluateTrend(current, start, end)

	metadata := buildMetadata(currentMetrics, baselineMetrics, scores, baseline, trend)

	explainReq := repo.ExplainRequest{
		EntityType:          string(entityType),
		EntityID:            entityID,
		TotalIncidents:      currentMetrics.TotalIncidents,
		MeanIncidentsPerDay: metadata.MeanIncidentsPerDay,
		AvgSeverity:         metadata.AvgSeverity,
		IncidentCountZ:      metadata.IncidentCountZ,
		SeverityZ:           metadata.SeverityZ,
		EmailZ:              metadata.EmailZ,
		WebZ:                metadata.WebZ,
		EndpointZ:           metadata.EndpointZ,
		MaxZ:                metadata.MaxZ,
	}
	explanation, recommendation := a.explain(ctx, explainReq, trend)

	result := models.AnalysisResult{
		ID:                   uuid.NewString(),
		EntityType:           entityType,
		EntityID:             entityID,
		RiskScore:            risk,
		AnomalyLevel:         level,
		Explanation:          explanation,
		Recommendation:       recommendation,
		ReferenceIncidentIDs: referenceIncidents(current),
		Metadata:             metadata,
		AnalysisDate:         end,
	}

	if a.store != nil && ctx.Err() == nil {
		if err := a.store.StoreAnalysis(ctx, result); err != nil {
			a.logger.Warn("failed to persist analysis result",
				slog.String("entity_type", string(entityType)),
				slog.String("entity_id", entityID),
				slog.Any("error", err))
		}
	}

	return result, nil
}

// explain tries the configured provider first and falls back to the static
// generator on any failure, so callers always get non-empty strings.
func (a *Analyzer) explain(ctx context.Context, req repo.ExplainRequest, trend TrendResult) (string, string) {
	if a.explainer != nil {
		explanation, recommendation, err := a.explainer.Explain(ctx, req)
		if err == nil && explanation != "" && recommendation != "" {
			return explanation, recommendation
		}
		if err != nil {
			a.logger.Debug("explanation provider failed, using static fallback", slog.Any("error", err))
		}
	}
	explanation, recommendation, _ := StaticExplainer{}.Explain(ctx, req)
	if note := trendNote(trend); note != "" {
		explanation += " " + note
	}
	return explanation, recommendation
}

func (a *Analyzer) noDataResult(entityType models.EntityType, entityID string, lookbackDays int, analysisDate time.Time) models.AnalysisResult {
	return models.AnalysisResult{
		ID:           uuid.NewString(),
		EntityType:   entityType,
		EntityID:     entityID,
		RiskScore:    0,
		AnomalyLevel: models.AnomalyLow,
		Explanation: fmt.Sprintf("No incidents found for %s %q in the last %d days or its baseline period.",
			entityType, entityID, lookbackDays),
		Recommendation:       "No behavioral data available. No action required.",
		ReferenceIncidentIDs: []string{},
		Metadata: models.AnalysisMetadata{
			Trend:      models.TrendFlat,
			TrendRatio: 1,
		},
		AnalysisDate: analysisDate,
	}
}

// referenceIncidents selects up to ten notable incidents from the current
// window, in provider order, deduplicated by id. An incident qualifies by
// its own risk score (>=50) or its severity (>=7).
func referenceIncidents(incidents []models.Incident) []string {
	ids := make([]string, 0, referenceIncidentLimit)
	seen := make(map[string]struct{}, referenceIncidentLimit)
	for _, inc := range incidents {
		notable := inc.Severity >= 7 || (inc.RiskScore != nil && *inc.RiskScore >= 50)
		if !notable {
			continue
		}
		if _, ok := seen[inc.ID]; ok {
			continue
		}
		seen[inc.ID] = struct{}{}
		ids = append(ids, inc.ID)
		if len(ids) == referenceIncidentLimit {
			break
		}
	}
	return ids
}

func buildMetadata(current, baseline detect.BehaviorMetrics, scores detect.AnomalyScores, b Baseline, trend TrendResult) models.AnalysisMetadata {
	return models.AnalysisMetadata{
		TotalIncidents:      current.TotalIncidents,
		BaselineIncidents:   baseline.TotalIncidents,
		MeanIncidentsPerDay: utils.Round2(current.MeanIncidentsPerDay),
		AvgSeverity:         utils.Round2(current.AvgSeverity),
		BaselineMeanPerDay:  utils.Round2(baseline.MeanIncidentsPerDay),
		BaselineAvgSeverity: utils.Round2(baseline.AvgSeverity),
		IncidentCountZ:      utils.Round2(scores.IncidentCountZ),
		SeverityZ:           utils.Round2(scores.SeverityZ),
		EmailZ:              utils.Round2(scores.EmailZ),
		WebZ:                utils.Round2(scores.WebZ),
		EndpointZ:           utils.Round2(scores.EndpointZ),
		MaxZ:                utils.Round2(scores.MaxAbs()),
		BaselineDays:        b.Days,
		BaselineStart:       b.Start,
		BaselineDegraded:    b.Degraded,
		SplitMode:           b.SplitMode,
		Trend:               trend.Direction,
		TrendRatio:          utils.Round2(trend.Ratio),
	}
}
