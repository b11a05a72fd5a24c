package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/utils"
)

// Baseline holds the historical comparison set for one analysis.
type Baseline struct {
	Incidents []models.Incident
	Start     time.Time
	Days      int
	// Degraded marks a baseline accepted after window expansion was
	// exhausted without meeting the sufficiency heuristic.
	Degraded bool
	// SplitMode marks a pseudo-baseline manufactured from the current
	// period's own first half.
	SplitMode bool
}

// maxBaselineMultiplier bounds the adaptive window expansion.
const maxBaselineMultiplier = 4

// selectBaseline widens the historical window ending at currentStart until
// it holds enough incidents to compare against, accepting a degraded
// baseline once expansion is exhausted.
func (a *Analyzer) selectBaseline(ctx context.Context, entityType models.EntityType, entityID string, currentStart time.Time, lookbackDays, currentCount int) (Baseline, error) {
	required := math.Max(1, 0.3*float64(currentCount))

	var (
		incidents []models.Incident
		start     time.Time
		days      int
	)
	for m := 1; m <= maxBaselineMultiplier; m++ {
		start = currentStart.AddDate(0, 0, -lookbackDays*m)
		days = utils.WindowDays(start, currentStart)

		fetched, err := a.provider.FetchIncidents(ctx, entityType, entityID, start, currentStart)
		if err != nil {
			return Baseline{}, fmt.Errorf("fetch baseline window: %w", err)
		}
		incidents = fetched

		if float64(len(incidents)) >= required || len(incidents) >= 5 {
			return Baseline{Incidents: incidents, Start: start, Days: days}, nil
		}
		a.logger.Debug("baseline window insufficient, expanding",
			slog.String("entity_type", string(entityType)),
			slog.String("entity_id", entityID),
			slog.Int("days", days),
			slog.Int("count", len(incidents)))
	}

	return Baseline{Incidents: incidents, Start: start, Days: days, Degraded: true}, nil
}

// splitPeriod manufactures a pseudo-baseline by halving the current-period
// incidents at their chronological midpoint: the earlier half becomes the
// baseline, the later half the effective current set.
func splitPeriod(incidents []models.Incident, currentStart time.Time) (Baseline, []models.Incident) {
	ordered := append([]models.Incident(nil), incidents...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	mid := len(ordered) / 2
	baseline := Baseline{
		Incidents: ordered[:mid],
		Start:     currentStart,
		SplitMode: true,
	}
	return baseline, ordered[mid:]
}
