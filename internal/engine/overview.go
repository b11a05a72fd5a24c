package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vantasec/dlp-behavior/internal/models"
)

// AnalyzeOverview analyzes every distinct entity observed in the lookback
// window and assembles cross-entity summaries. Per-entity failures are
// logged and excluded; they never abort the aggregation.
func (a *Analyzer) AnalyzeOverview(ctx context.Context, lookbackDays int) (models.OverviewResult, error) {
	if a.provider == nil {
		return models.OverviewResult{}, fmt.Errorf("incident provider not configured")
	}

	end := a.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	window, err := a.provider.FetchIncidents(ctx, "", "", start, end)
	if err != nil {
		return models.OverviewResult{}, fmt.Errorf("fetch overview window: %w", err)
	}

	entities := enumerateEntities(window)

	type entityRef struct {
		category models.EntityType
		id       string
	}
	refs := make([]entityRef, 0)
	for _, category := range models.EntityTypes {
		for _, id := range entities[category] {
			refs = append(refs, entityRef{category: category, id: id})
		}
	}

	var (
		mu      sync.Mutex
		results = make(map[models.EntityType][]models.AnalysisResult)
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.opts.OverviewWorkers)
	for _, ref := range refs {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			result, err := a.AnalyzeEntity(groupCtx, ref.category, ref.id, lookbackDays)
			if err != nil {
				// Cancellation is not an entity failure: the whole
				// aggregation is abandoned and nothing partial survives.
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				// Partial-failure isolation: one bad entity must not
				// block the rest.
				a.logger.Warn("entity analysis failed during overview",
					slog.String("entity_type", string(ref.category)),
					slog.String("entity_id", ref.id),
					slog.Any("error", err))
				return nil
			}
			mu.Lock()
			results[ref.category] = append(results[ref.category], result)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return models.OverviewResult{}, err
	}

	overview := models.OverviewResult{
		LookbackDays: lookbackDays,
		Categories:   make(map[models.EntityType]models.CategoryOverview, len(models.EntityTypes)),
		GeneratedAt:  end,
	}

	all := make([]models.AnalysisResult, 0, len(refs))
	for _, category := range models.EntityTypes {
		categoryResults := results[category]
		sortByRiskDesc(categoryResults)

		var counts models.LevelCounts
		for _, r := range categoryResults {
			counts.Add(r.AnomalyLevel)
			overview.Totals.Add(r.AnomalyLevel)
		}

		overview.Categories[category] = models.CategoryOverview{
			Counts:    counts,
			Results:   categoryResults,
			EntityIDs: entities[category],
		}
		all = append(all, categoryResults...)
	}

	sortByRiskDesc(all)
	if len(all) > a.opts.TopResults {
		all = all[:a.opts.TopResults]
	}
	overview.TopResults = all

	return overview, nil
}

// enumerateEntities collects the distinct entity identifiers per category
// observed in the window. Rule identifiers come from the per-incident
// trigger list. Identifiers keep first-seen order for stable output.
func enumerateEntities(incidents []models.Incident) map[models.EntityType][]string {
	entities := make(map[models.EntityType][]string, len(models.EntityTypes))
	seen := make(map[models.EntityType]map[string]struct{}, len(models.EntityTypes))
	for _, category := range models.EntityTypes {
		entities[category] = []string{}
		seen[category] = make(map[string]struct{})
	}

	add := func(category models.EntityType, id string) {
		if id == "" {
			return
		}
		if _, ok := seen[category][id]; ok {
			return
		}
		seen[category][id] = struct{}{}
		entities[category] = append(entities[category], id)
	}

	for _, inc := range incidents {
		add(models.EntityUser, inc.User)
		add(models.EntityChannel, inc.Channel)
		add(models.EntityDepartment, inc.Department)
		add(models.EntityDestination, inc.Destination)
		for _, rule := range inc.RuleNames {
			add(models.EntityRule, rule)
		}
	}
	return entities
}

func sortByRiskDesc(results []models.AnalysisResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RiskScore > results[j].RiskScore
	})
}
