package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/repo"
)

var analysisNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	incidents  []models.Incident
	failEntity string
	fetches    int

	// cancelOn invokes cancel on a fetch for that entity, simulating a
	// caller hanging up mid-flight.
	cancelOn string
	cancel   context.CancelFunc
}

func (f *fakeProvider) FetchIncidents(_ context.Context, entityType models.EntityType, entityID string, start, end time.Time) ([]models.Incident, error) {
	f.fetches++
	if f.failEntity != "" && entityID == f.failEntity {
		return nil, errors.New("provider unavailable")
	}
	if f.cancelOn != "" && entityID == f.cancelOn {
		f.cancel()
		return nil, context.Canceled
	}
	matched := make([]models.Incident, 0)
	for _, inc := range f.incidents {
		if inc.Timestamp.Before(start) || !inc.Timestamp.Before(end) {
			continue
		}
		if entityType == "" && entityID == "" {
			matched = append(matched, inc)
			continue
		}
		if inc.MatchesEntity(entityType, entityID) {
			matched = append(matched, inc)
		}
	}
	return matched, nil
}

type fakeStore struct {
	stored []models.AnalysisResult
}

func (f *fakeStore) StoreAnalysis(_ context.Context, result models.AnalysisResult) error {
	f.stored = append(f.stored, result)
	return nil
}

type failingExplainer struct{}

func (failingExplainer) Explain(context.Context, repo.ExplainRequest) (string, string, error) {
	return "", "", errors.New("model overloaded")
}

// spreadIncidents places count incidents for a user evenly across [start, end).
func spreadIncidents(user, channel string, severity, count int, start, end time.Time) []models.Incident {
	step := end.Sub(start) / time.Duration(count)
	incidents := make([]models.Incident, 0, count)
	for i := 0; i < count; i++ {
		incidents = append(incidents, models.Incident{
			ID:        fmt.Sprintf("%s-%s-%d", user, start.Format("0102"), i),
			Timestamp: start.Add(time.Duration(i) * step),
			User:      user,
			Channel:   channel,
			Severity:  severity,
		})
	}
	return incidents
}

func newTestAnalyzer(provider IncidentProvider, explainer ExplanationProvider, store ResultStore) *Analyzer {
	a := NewAnalyzer(nil, provider, explainer, store, Options{})
	a.now = func() time.Time { return analysisNow }
	return a
}

func TestAnalyzeEntityNoData(t *testing.T) {
	analyzer := newTestAnalyzer(&fakeProvider{}, nil, nil)

	result, err := analyzer.AnalyzeEntity(context.Background(), models.EntityUser, "ghost", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.RiskScore != 0 || result.AnomalyLevel != models.AnomalyLow {
		t.Fatalf("no-data result = (%d, %s), want (0, low)", result.RiskScore, result.AnomalyLevel)
	}
	if !strings.Contains(result.Explanation, "No incidents found") {
		t.Fatalf("explanation %q should mention missing incidents", result.Explanation)
	}
	if len(result.ReferenceIncidentIDs) != 0 {
		t.Fatalf("expected empty reference list, got %v", result.ReferenceIncidentIDs)
	}
	if result.Recommendation == "" {
		t.Fatal("recommendation must be non-empty in all paths")
	}
}

func TestAnalyzeEntityVolumeSpike(t *testing.T) {
	currentStart := analysisNow.AddDate(0, 0, -7)
	baselineStart := currentStart.AddDate(0, 0, -7)

	provider := &fakeProvider{}
	// Baseline: steady 7/week. Current: 70/week, a tenfold jump.
	provider.incidents = append(provider.incidents, spreadIncidents("alice", "Email", 5, 7, baselineStart, currentStart)...)
	provider.incidents = append(provider.incidents, spreadIncidents("alice", "Email", 5, 70, currentStart, analysisNow)...)

	store := &fakeStore{}
	analyzer := newTestAnalyzer(provider, nil, store)

	result, err := analyzer.AnalyzeEntity(context.Background(), models.EntityUser, "alice", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.AnomalyLevel == models.AnomalyLow {
		t.Fatalf("tenfold volume jump should not score low, got %+v", result.Metadata)
	}
	if result.Metadata.SplitMode {
		t.Fatal("historical baseline available, split mode should be off")
	}
	if result.Metadata.BaselineDays != 7 {
		t.Fatalf("baseline days = %d, want 7", result.Metadata.BaselineDays)
	}
	if len(store.stored) != 1 {
		t.Fatalf("expected one stored result, got %d", len(store.stored))
	}
	if result.Explanation == "" || result.Recommendation == "" {
		t.Fatal("explanation fields must be non-empty")
	}
}

func TestAnalyzeEntitySplitPeriodFallback(t *testing.T) {
	currentStart := analysisNow.AddDate(0, 0, -7)

	provider := &fakeProvider{
		incidents: spreadIncidents("bob", "Web", 4, 10, currentStart, analysisNow),
	}
	analyzer := newTestAnalyzer(provider, nil, nil)

	result, err := analyzer.AnalyzeEntity(context.Background(), models.EntityUser, "bob", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !result.Metadata.SplitMode {
		t.Fatal("expected split-period mode with no history")
	}
	if strings.Contains(result.Explanation, "No incidents found") {
		t.Fatal("split mode must never report no data")
	}
	if result.Metadata.BaselineIncidents != 5 || result.Metadata.TotalIncidents != 5 {
		t.Fatalf("expected 5/5 split, got baseline=%d current=%d",
			result.Metadata.BaselineIncidents, result.Metadata.TotalIncidents)
	}
	// 1 current fetch + 4 exhausted baseline expansion attempts.
	if provider.fetches != 5 {
		t.Fatalf("fetches = %d, want 5", provider.fetches)
	}
}

func TestAnalyzeEntityDegradedBaseline(t *testing.T) {
	currentStart := analysisNow.AddDate(0, 0, -7)

	provider := &fakeProvider{}
	provider.incidents = append(provider.incidents, spreadIncidents("carol", "Email", 5, 20, currentStart, analysisNow)...)
	// Only two historical incidents, inside the closest baseline window:
	// under both sufficiency thresholds for every expansion step.
	provider.incidents = append(provider.incidents, spreadIncidents("carol", "Email", 5, 2, currentStart.AddDate(0, 0, -3), currentStart)...)

	analyzer := newTestAnalyzer(provider, nil, nil)

	result, err := analyzer.AnalyzeEntity(context.Background(), models.EntityUser, "carol", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !result.Metadata.BaselineDegraded {
		t.Fatal("expected degraded baseline flag")
	}
	if result.Metadata.SplitMode {
		t.Fatal("degraded baseline is still a baseline, split mode should be off")
	}
	if result.Metadata.BaselineIncidents != 2 {
		t.Fatalf("baseline incidents = %d, want 2", result.Metadata.BaselineIncidents)
	}
	if result.Metadata.BaselineDays != 28 {
		t.Fatalf("baseline days = %d, want fully expanded 28", result.Metadata.BaselineDays)
	}
}

func TestAnalyzeEntityBaselineExpansionStops(t *testing.T) {
	currentStart := analysisNow.AddDate(0, 0, -7)

	provider := &fakeProvider{}
	provider.incidents = append(provider.incidents, spreadIncidents("dave", "Web", 4, 10, currentStart, analysisNow)...)
	// History lives 10-14 days back: the first 7-day window misses it, the
	// 14-day expansion finds all five incidents.
	provider.incidents = append(provider.incidents, spreadIncidents("dave", "Web", 4, 5, currentStart.AddDate(0, 0, -14), currentStart.AddDate(0, 0, -10))...)

	analyzer := newTestAnalyzer(provider, nil, nil)

	result, err := analyzer.AnalyzeEntity(context.Background(), models.EntityUser, "dave", 7)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Metadata.BaselineDays != 14 {
		t.Fatalf("baseline days = %d, want 14", result.Metadata.BaselineDays)
	}
	if result.Metadata.BaselineDegraded {
		t.Fatal("satisfied expansion must not be degraded")
	}
}

func TestAnalyzeEntityExplainerFallback(t *testing.T) {
	currentStart := analysisNow.AddDate(0, 0, -7)
	provider := &fakeProvider{
		incidents: spreadIncidents("erin", "Email", 8, 12, currentStart, analysisNow),
	}
	analyzer := newTestAnalyzer(provider, failingExplainer{}, nil)

	result, err := analyzer.AnalyzeEntity(context.Background(), models.EntityUser, "erin", 7)
	if err != nil {
		t.Fatalf("explainer failure must not fail the analysis: %v", err)
	}
	if result.Explanation == "" || result.Recommendation == "" {
		t.Fatal("static fallback must produce non-empty strings")
	}
}

func TestAnalyzeEntityDeterministic(t *testing.T) {
	currentStart := analysisNow.AddDate(0, 0, -7)
	baselineStart := currentStart.AddDate(0, 0, -7)

	incidents := append(
		spreadIncidents("frank", "Endpoint", 6, 9, baselineStart, currentStart),
		spreadIncidents("frank", "Endpoint", 8, 21, currentStart, analysisNow)...,
	)

	first, err := newTestAnalyzer(&fakeProvider{incidents: incidents}, nil, nil).
		AnalyzeEntity(context.Background(), models.EntityUser, "frank", 7)
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := newTestAnalyzer(&fakeProvider{incidents: incidents}, nil, nil).
		AnalyzeEntity(context.Background(), models.EntityUser, "frank", 7)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}

	if first.RiskScore != second.RiskScore || first.AnomalyLevel != second.AnomalyLevel {
		t.Fatalf("analysis not deterministic: (%d,%s) vs (%d,%s)",
			first.RiskScore, first.AnomalyLevel, second.RiskScore, second.AnomalyLevel)
	}
	if first.Metadata != second.Metadata {
		t.Fatalf("metadata not deterministic:\n%+v\n%+v", first.Metadata, second.Metadata)
	}
}

func TestReferenceIncidentSelection(t *testing.T) {
	high := 80
	low := 10
	incidents := []models.Incident{
		{ID: "sev", Severity: 7},
		{ID: "risk", Severity: 2, RiskScore: &high},
		{ID: "quiet", Severity: 3, RiskScore: &low},
		{ID: "sev", Severity: 9}, // duplicate id
	}
	for i := 0; i < 15; i++ {
		incidents = append(incidents, models.Incident{ID: fmt.Sprintf("bulk-%d", i), Severity: 8})
	}

	ids := referenceIncidents(incidents)
	if len(ids) != 10 {
		t.Fatalf("reference list = %d entries, want capped at 10", len(ids))
	}
	if ids[0] != "sev" || ids[1] != "risk" {
		t.Fatalf("provider order not preserved: %v", ids)
	}
	for _, id := range ids {
		if id == "quiet" {
			t.Fatal("low-severity low-risk incident must not be referenced")
		}
	}
}
