package models

import "time"

// RiskPattern is a recurring anomaly signature mined from stored results.
type RiskPattern struct {
	ID               string     `json:"id"`
	Category         EntityType `json:"category"`
	DominantDetector string     `json:"dominant_detector"`
	Prevalence       float64    `json:"prevalence"`
	TopEntities      []string   `json:"top_entities"`
	AvgRiskScore     float64    `json:"avg_risk_score"`
	LastSeen         time.Time  `json:"last_seen"`
}
