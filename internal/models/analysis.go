package models

import "time"

// AnomalyLevel classifies how unusual an entity's recent behaviour is.
type AnomalyLevel string

const (
	AnomalyLow    AnomalyLevel = "low"
	AnomalyMedium AnomalyLevel = "medium"
	AnomalyHigh   AnomalyLevel = "high"
)

// TrendDirection describes incident volume movement inside the current window.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendFlat    TrendDirection = "flat"
)

// AnalysisMetadata carries the key metrics and z-scores behind a result.
// The JSON form is the flexible map downstream consumers read; the Go side
// stays strongly typed.
type AnalysisMetadata struct {
	TotalIncidents      int     `json:"total_incidents"`
	BaselineIncidents   int     `json:"baseline_incidents"`
	MeanIncidentsPerDay float64 `json:"mean_incidents_per_day"`
	AvgSeverity         float64 `json:"avg_severity"`
	BaselineMeanPerDay  float64 `json:"baseline_mean_per_day"`
	BaselineAvgSeverity float64 `json:"baseline_avg_severity"`

	IncidentCountZ float64 `json:"incident_count_z"`
	SeverityZ      float64 `json:"severity_z"`
	EmailZ         float64 `json:"email_z"`
	WebZ           float64 `json:"web_z"`
	EndpointZ      float64 `json:"endpoint_z"`
	MaxZ           float64 `json:"max_z"`

	BaselineDays     int       `json:"baseline_days"`
	BaselineStart    time.Time `json:"baseline_start"`
	BaselineDegraded bool      `json:"baseline_degraded"`
	SplitMode        bool      `json:"split_mode"`

	Trend      TrendDirection `json:"trend"`
	TrendRatio float64        `json:"trend_ratio"`
}

// AnalysisResult is the immutable outcome of one entity analysis.
type AnalysisResult struct {
	ID                   string           `json:"id"`
	EntityType           EntityType       `json:"entity_type"`
	EntityID             string           `json:"entity_id"`
	RiskScore            int              `json:"risk_score"`
	AnomalyLevel         AnomalyLevel     `json:"anomaly_level"`
	Explanation          string           `json:"explanation"`
	Recommendation       string           `json:"recommendation"`
	ReferenceIncidentIDs []string         `json:"reference_incident_ids"`
	Metadata             AnalysisMetadata `json:"metadata"`
	AnalysisDate         time.Time        `json:"analysis_date"`
}

// LevelCounts tallies results per anomaly level.
type LevelCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Add increments the counter matching the level.
func (c *LevelCounts) Add(level AnomalyLevel) {
	switch level {
	case AnomalyHigh:
		c.High++
	case AnomalyMedium:
		c.Medium++
	default:
		c.Low++
	}
}

// CategoryOverview groups per-category results, sorted by descending risk.
type CategoryOverview struct {
	Counts    LevelCounts      `json:"counts"`
	Results   []AnalysisResult `json:"results"`
	EntityIDs []string         `json:"entity_ids"`
}

// OverviewResult aggregates one analysis pass over every observed entity.
// It is rebuilt from scratch on every overview call.
type OverviewResult struct {
	LookbackDays int                             `json:"lookback_days"`
	Categories   map[EntityType]CategoryOverview `json:"categories"`
	TopResults   []AnalysisResult                `json:"top_results"`
	Totals       LevelCounts                     `json:"totals"`
	GeneratedAt  time.Time                       `json:"generated_at"`
}
