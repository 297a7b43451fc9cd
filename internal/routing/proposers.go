package routing

import (
	"fmt"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Proposer identifiers for the built-in profiles.
const (
	// ProposerHaiku is the lightweight, fast proposer for simple tasks.
	ProposerHaiku = "claude-3-5-haiku-20241022"
	// ProposerSonnet is the balanced proposer for standard work.
	ProposerSonnet = "claude-sonnet-4-20250514"
	// ProposerOpus is the most capable proposer.
	ProposerOpus = "claude-opus-4-5-20251101"
)

// perMillion converts a per-million-token price into a per-unit cost.
func perMillion(price float64) float64 {
	return price / 1_000_000
}

// DefaultProposers returns the built-in proposer profiles.
func DefaultProposers() []models.ProposerProfile {
	return []models.ProposerProfile{
		{
			Name:              ProposerHaiku,
			Provider:          "anthropic",
			ContextWindow:     200000,
			InputCostPerUnit:  perMillion(0.80),
			OutputCostPerUnit: perMillion(4.00),
			ComplexityCeiling: 0.4,
			Active:            true,
		},
		{
			Name:              ProposerSonnet,
			Provider:          "anthropic",
			ContextWindow:     200000,
			InputCostPerUnit:  perMillion(3.00),
			OutputCostPerUnit: perMillion(15.00),
			ComplexityCeiling: 0.75,
			Active:            true,
		},
		{
			Name:              ProposerOpus,
			Provider:          "anthropic",
			ContextWindow:     200000,
			InputCostPerUnit:  perMillion(15.00),
			OutputCostPerUnit: perMillion(75.00),
			ComplexityCeiling: 1.0,
			Active:            true,
		},
	}
}

// ValidateProposers checks every profile and rejects duplicate names.
func ValidateProposers(proposers []models.ProposerProfile) error {
	seen := make(map[string]bool)
	for _, p := range proposers {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate proposer %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
