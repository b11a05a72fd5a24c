package models

import "time"

// EntityType enumerates the analyzable entity categories.
type EntityType string

const (
	EntityUser        EntityType = "user"
	EntityChannel     EntityType = "channel"
	EntityDepartment  EntityType = "department"
	EntityDestination EntityType = "destination"
	EntityRule        EntityType = "rule"
)

// EntityTypes lists every known entity category in a stable order.
var EntityTypes = []EntityType{
	EntityUser,
	EntityChannel,
	EntityDepartment,
	EntityDestination,
	EntityRule,
}

// Valid reports whether the entity type is one of the known categories.
func (t EntityType) Valid() bool {
	switch t {
	case EntityUser, EntityChannel, EntityDepartment, EntityDestination, EntityRule:
		return true
	}
	return false
}

// Incident is a single DLP incident record as returned by the incident
// provider. The engine treats it as read-only.
type Incident struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Channel     string    `json:"channel"`
	Department  string    `json:"department"`
	Destination string    `json:"destination"`
	Policy      string    `json:"policy"`
	RuleNames   []string  `json:"rule_names,omitempty"`
	Severity    int       `json:"severity"`
	RiskScore   *int      `json:"risk_score,omitempty"`
}

// AttributeFor returns the incident attribute matching the entity category.
// Rule entities are matched against RuleNames, not a single attribute, so
// callers handle EntityRule separately.
func (i Incident) AttributeFor(t EntityType) string {
	switch t {
	case EntityUser:
		return i.User
	case EntityChannel:
		return i.Channel
	case EntityDepartment:
		return i.Department
	case EntityDestination:
		return i.Destination
	}
	return ""
}

// MatchesEntity reports whether the incident belongs to the given entity.
func (i Incident) MatchesEntity(t EntityType, id string) bool {
	if t == EntityRule {
		for _, name := range i.RuleNames {
			if name == id {
				return true
			}
		}
		return false
	}
	return i.AttributeFor(t) == id
}
