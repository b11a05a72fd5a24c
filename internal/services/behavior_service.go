// Package services exposes the validated, instrumented entry points of the
// behaviour engine to the transport layer.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantasec/dlp-behavior/internal/cache"
	"github.com/vantasec/dlp-behavior/internal/engine"
	"github.com/vantasec/dlp-behavior/internal/metrics"
	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/utils"
)

const (
	minLookbackDays = 1
	maxLookbackDays = 30
)

// Validation errors, rejected before any computation.
var (
	ErrInvalidLookback   = errors.New("lookbackDays must be between 1 and 30")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrEmptyEntityID     = errors.New("entity id must not be empty")
)

// IsValidationError reports whether err is a rejected-input error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidLookback) ||
		errors.Is(err, ErrUnknownEntityType) ||
		errors.Is(err, ErrEmptyEntityID)
}

// BehaviorService wraps the analyzer with validation, caching and
// instrumentation.
type BehaviorService struct {
	logger      *slog.Logger
	analyzer    *engine.Analyzer
	cache       cache.Provider
	overviewTTL time.Duration
	latencies   *utils.LatencyTracker
}

// NewBehaviorService constructs the service facade. The cache provider may
// be nil to disable overview caching.
func NewBehaviorService(logger *slog.Logger, analyzer *engine.Analyzer, cacheProvider cache.Provider, overviewTTL time.Duration) *BehaviorService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &BehaviorService{
		logger:      logger,
		analyzer:    analyzer,
		cache:       cacheProvider,
		overviewTTL: overviewTTL,
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// AnalyzeEntity validates the request and runs one entity analysis.
func (s *BehaviorService) AnalyzeEntity(ctx context.Context, entityType, entityID string, lookbackDays int) (models.AnalysisResult, error) {
	if s.analyzer == nil {
		return models.AnalysisResult{}, fmt.Errorf("analyzer not configured")
	}
	if lookbackDays < minLookbackDays || lookbackDays > maxLookbackDays {
		return models.AnalysisResult{}, fmt.Errorf("%w: got %d", ErrInvalidLookback, lookbackDays)
	}
	typed := models.EntityType(entityType)
	if !typed.Valid() {
		return models.AnalysisResult{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	if entityID == "" {
		return models.AnalysisResult{}, ErrEmptyEntityID
	}

	start := time.Now()
	result, err := s.analyzer.AnalyzeEntity(ctx, typed, entityID, lookbackDays)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		s.logger.Error("entity analysis failed",
			slog.String("entity_type", entityType),
			slog.String("entity_id", entityID),
			slog.Any("error", err))
		return models.AnalysisResult{}, utils.NewAppError("AnalyzeEntity", "analysis failed", err)
	}

	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	return result, nil
}

// AnalyzeOverview validates the request and runs the cross-entity pass,
// serving a cached overview when one is fresh enough.
func (s *BehaviorService) AnalyzeOverview(ctx context.Context, lookbackDays int) (models.OverviewResult, error) {
	if s.analyzer == nil {
		return models.OverviewResult{}, fmt.Errorf("analyzer not configured")
	}
	if lookbackDays < minLookbackDays || lookbackDays > maxLookbackDays {
		return models.OverviewResult{}, fmt.Errorf("%w: got %d", ErrInvalidLookback, lookbackDays)
	}

	cacheKey := fmt.Sprintf("overview:%d", lookbackDays)
	if s.overviewTTL > 0 {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached models.OverviewResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	start := time.Now()
	overview, err := s.analyzer.AnalyzeOverview(ctx, lookbackDays)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("overview aggregation failed", slog.Any("error", err))
		return models.OverviewResult{}, utils.NewAppError("AnalyzeOverview", "aggregation failed", err)
	}

	analyzed := overview.Totals.High + overview.Totals.Medium + overview.Totals.Low
	metrics.ObserveOverview(duration, analyzed)

	if s.overviewTTL > 0 {
		if data, err := json.Marshal(overview); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.overviewTTL)
		}
	}

	return overview, nil
}

// LatencyP95 returns the current p95 entity analysis latency.
func (s *BehaviorService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
