package routing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// DefaultHardStopProposer names the high-capability proposer forced for
// hard-stop tasks.
const DefaultHardStopProposer = "claude-opus-4-5-20251101"

var (
	// ErrEmergencyKill is returned when spend reached the emergency kill threshold.
	ErrEmergencyKill = errors.New("emergency kill: daily spend limit reached")
	// ErrNoProposers is returned when no active proposer is configured.
	ErrNoProposers = errors.New("no active proposers")
)

// Confidence reported per routing strategy.
const (
	confidenceHardStop         = 1.0
	confidenceHardStopFallback = 0.7
	confidenceBudgetForced     = 0.6
	confidenceSingleFit        = 0.9
	confidenceCheapestFit      = 0.85
	confidenceCapability       = 0.5
)

// Policy turns a routing context into a proposer selection.
// Rules are applied in order and the first match wins:
//  1. spend >= emergency kill: refuse
//  2. hard stop required and spend < hard cap: designated proposer
//  3. spend >= hard cap: cheapest active proposer
//  4. cheapest proposer whose ceiling covers the complexity score, or the
//     highest-ceiling proposer when none does
type Policy struct {
	hardStopProposer string
	now              func() time.Time
}

// NewPolicy creates a policy that forces hardStopProposer for hard stops.
func NewPolicy(hardStopProposer string) *Policy {
	if hardStopProposer == "" {
		hardStopProposer = DefaultHardStopProposer
	}
	return &Policy{hardStopProposer: hardStopProposer, now: time.Now}
}

// HardStopProposer returns the designated high-capability proposer name.
func (p *Policy) HardStopProposer() string {
	return p.hardStopProposer
}

// Route selects a proposer. Proposer profiles are never modified.
func (p *Policy) Route(rc models.RoutingContext, proposers []models.ProposerProfile, budget models.BudgetLimits) (*models.RoutingDecision, error) {
	spend := rc.CurrentDailySpend
	status := budget.StatusFor(spend)

	if spend >= budget.EmergencyKill {
		return nil, fmt.Errorf("%w: spent $%.2f of $%.2f", ErrEmergencyKill, spend, budget.EmergencyKill)
	}

	active := activeProposers(proposers)
	if len(active) == 0 {
		return nil, ErrNoProposers
	}

	decision := &models.RoutingDecision{
		Metadata: models.RoutingMetadata{
			BudgetStatus:   status,
			CandidateCount: len(active),
			Timestamp:      p.now(),
		},
	}

	if rc.HardStopRequired && spend < budget.DailyHardCap {
		p.routeHardStop(decision, active)
		return decision, nil
	}

	if spend >= budget.DailyHardCap {
		cheapest := byCost(active)
		decision.SelectedProposer = cheapest[0].Name
		decision.Confidence = confidenceBudgetForced
		decision.Metadata.Strategy = models.StrategyBudgetForced
		decision.Reason = fmt.Sprintf("daily spend $%.2f reached hard cap $%.2f; forced cheapest proposer %s",
			spend, budget.DailyHardCap, cheapest[0].Name)
		return decision, nil
	}

	var qualifying []models.ProposerProfile
	for _, pr := range active {
		if pr.ComplexityCeiling >= rc.ComplexityScore {
			qualifying = append(qualifying, pr)
		}
	}
	decision.Metadata.CandidateCount = len(qualifying)

	switch len(qualifying) {
	case 0:
		best := byCeiling(active)[0]
		decision.SelectedProposer = best.Name
		decision.Confidence = confidenceCapability
		decision.Metadata.Strategy = models.StrategyCapabilityFallback
		decision.Reason = fmt.Sprintf("complexity %.2f exceeds every ceiling; using highest-ceiling proposer %s (%.2f)",
			rc.ComplexityScore, best.Name, best.ComplexityCeiling)
	case 1:
		decision.SelectedProposer = qualifying[0].Name
		decision.Confidence = confidenceSingleFit
		decision.Metadata.Strategy = models.StrategyComplexityFit
		decision.Reason = fmt.Sprintf("%s is the only proposer certified for complexity %.2f",
			qualifying[0].Name, rc.ComplexityScore)
	default:
		sorted := byCost(qualifying)
		decision.SelectedProposer = sorted[0].Name
		decision.FallbackProposer = sorted[1].Name
		decision.Confidence = confidenceCheapestFit
		decision.Metadata.Strategy = models.StrategyComplexityFit
		decision.Reason = fmt.Sprintf("cheapest of %d proposers certified for complexity %.2f",
			len(qualifying), rc.ComplexityScore)
	}
	if status == models.BudgetSoftCapExceeded {
		decision.Reason += fmt.Sprintf(" (soft cap $%.2f exceeded)", budget.DailySoftCap)
	}
	return decision, nil
}

func (p *Policy) routeHardStop(decision *models.RoutingDecision, active []models.ProposerProfile) {
	decision.Metadata.Strategy = models.StrategyHardStop

	var designated *models.ProposerProfile
	for i := range active {
		if active[i].Name == p.hardStopProposer {
			designated = &active[i]
			break
		}
	}

	if designated == nil {
		best := byCeiling(active)[0]
		decision.SelectedProposer = best.Name
		decision.Confidence = confidenceHardStopFallback
		decision.Reason = fmt.Sprintf("hard stop required but %s is unavailable; using highest-ceiling proposer %s",
			p.hardStopProposer, best.Name)
		return
	}

	decision.SelectedProposer = designated.Name
	decision.Confidence = confidenceHardStop
	decision.Reason = fmt.Sprintf("hard stop required: forcing %s", designated.Name)
	for _, pr := range byCost(active) {
		if pr.Name != designated.Name {
			decision.FallbackProposer = pr.Name
			break
		}
	}
}

func activeProposers(proposers []models.ProposerProfile) []models.ProposerProfile {
	var active []models.ProposerProfile
	for _, p := range proposers {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}

// byCost returns a copy sorted by input cost, then higher ceiling, then name.
func byCost(proposers []models.ProposerProfile) []models.ProposerProfile {
	sorted := append([]models.ProposerProfile(nil), proposers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.InputCostPerUnit != b.InputCostPerUnit {
			return a.InputCostPerUnit < b.InputCostPerUnit
		}
		if a.ComplexityCeiling != b.ComplexityCeiling {
			return a.ComplexityCeiling > b.ComplexityCeiling
		}
		return a.Name < b.Name
	})
	return sorted
}

// byCeiling returns a copy sorted by descending ceiling, then cost, then name.
func byCeiling(proposers []models.ProposerProfile) []models.ProposerProfile {
	sorted := append([]models.ProposerProfile(nil), proposers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ComplexityCeiling != b.ComplexityCeiling {
			return a.ComplexityCeiling > b.ComplexityCeiling
		}
		if a.InputCostPerUnit != b.InputCostPerUnit {
			return a.InputCostPerUnit < b.InputCostPerUnit
		}
		return a.Name < b.Name
	})
	return sorted
}
