// Package patterns mines recurring anomaly signatures from stored analysis
// results, giving the dashboard a view of which detectors keep firing for
// which entity categories.
package patterns

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
)

// Store abstracts persistence for mined patterns.
type Store interface {
	StorePatterns(ctx context.Context, patterns []models.RiskPattern) error
}

// Miner aggregates analysis results into per-category risk patterns.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// detectorName maps a result's metadata to the detector that dominated it.
func detectorName(meta models.AnalysisMetadata) string {
	type candidate struct {
		name string
		z    float64
	}
	candidates := []candidate{
		{"incident_count", meta.IncidentCountZ},
		{"severity", meta.SeverityZ},
		{"email_channel", meta.EmailZ},
		{"web_channel", meta.WebZ},
		{"endpoint_channel", meta.EndpointZ},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if math.Abs(c.z) > math.Abs(best.z) {
			best = c
		}
	}
	return best.name
}

type categoryAggregate struct {
	total          int
	anomalous      int
	riskSum        float64
	lastSeen       time.Time
	detectorCounts map[string]int
	entityRisk     map[string]float64
}

// Mine reduces results into one pattern per category that shows anomalous
// behaviour, sorted by prevalence.
func (m *Miner) Mine(ctx context.Context, results []models.AnalysisResult) ([]models.RiskPattern, error) {
	if len(results) == 0 {
		return nil, nil
	}

	aggregates := make(map[models.EntityType]*categoryAggregate)
	for _, result := range results {
		agg, ok := aggregates[result.EntityType]
		if !ok {
			agg = &categoryAggregate{
				detectorCounts: make(map[string]int),
				entityRisk:     make(map[string]float64),
			}
			aggregates[result.EntityType] = agg
		}
		agg.total++
		if result.AnalysisDate.After(agg.lastSeen) {
			agg.lastSeen = result.AnalysisDate
		}
		if result.AnomalyLevel == models.AnomalyLow {
			continue
		}
		agg.anomalous++
		agg.riskSum += float64(result.RiskScore)
		agg.detectorCounts[detectorName(result.Metadata)]++
		if risk := float64(result.RiskScore); risk > agg.entityRisk[result.EntityID] {
			agg.entityRisk[result.EntityID] = risk
		}
	}

	mined := make([]models.RiskPattern, 0, len(aggregates))
	for category, agg := range aggregates {
		if agg.anomalous == 0 {
			continue
		}
		mined = append(mined, models.RiskPattern{
			ID:               "pattern-" + string(category),
			Category:         category,
			DominantDetector: topDetector(agg.detectorCounts),
			Prevalence:       float64(agg.anomalous) / float64(agg.total),
			TopEntities:      topEntities(agg.entityRisk, 5),
			AvgRiskScore:     agg.riskSum / float64(agg.anomalous),
			LastSeen:         agg.lastSeen,
		})
	}

	sort.Slice(mined, func(i, j int) bool {
		return mined[i].Prevalence > mined[j].Prevalence
	})

	if m.store != nil && len(mined) > 0 {
		if err := m.store.StorePatterns(ctx, mined); err != nil {
			m.logger.Warn("pattern store failed", slog.Any("error", err))
		}
	}

	return mined, nil
}

func topDetector(counts map[string]int) string {
	best := ""
	for name, count := range counts {
		if best == "" || count > counts[best] || (count == counts[best] && name < best) {
			best = name
		}
	}
	return best
}

func topEntities(risk map[string]float64, limit int) []string {
	entities := make([]string, 0, len(risk))
	for id := range risk {
		entities = append(entities, id)
	}
	sort.Slice(entities, func(i, j int) bool {
		if risk[entities[i]] != risk[entities[j]] {
			return risk[entities[i]] > risk[entities[j]]
		}
		return entities[i] < entities[j]
	})
	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities
}
