package models

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

type Alert struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	XPosition   float64  `json:"xPosition"` // percentage of map image width, 0-100
	YPosition   float64  `json:"yPosition"` // percentage of map image height, 0-100
	Icon        string   `json:"icon,omitempty"`

	// AlternativeRoute is a free-text detour description.
	// AlternativeRoutes holds drawn polylines serialized with EncodeRoutes.
	AlternativeRoute  string `json:"alternativeRoute,omitempty"`
	AlternativeRoutes string `json:"alternativeRoutes,omitempty"`

	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt"` // nil = never expires
	IsActive  bool       `json:"isActive"`
}

// Live reports whether the alert should appear on the public map.
func (a *Alert) Live(now time.Time) bool {
	return a.IsActive && (a.ExpiresAt == nil || !a.ExpiresAt.Before(now))
}
