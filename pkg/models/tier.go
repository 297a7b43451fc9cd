package models

import "strings"

// RiskLevel classifies how risky a work order is to implement.
type RiskLevel string

const (
	// RiskLow is for isolated, easily reverted changes.
	RiskLow RiskLevel = "low"
	// RiskMedium is for changes with moderate blast radius.
	RiskMedium RiskLevel = "medium"
	// RiskHigh is for changes touching shared or sensitive areas.
	RiskHigh RiskLevel = "high"
)

// Valid returns true if the risk level is a known value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// ParseRiskLevel normalizes a free-form risk label. Unknown values map to medium.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "high", "critical":
		return RiskHigh
	default:
		return RiskMedium
	}
}
