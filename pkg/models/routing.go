package models

import "time"

// RoutingContext is the input to a single routing decision.
// It is constructed fresh for every decision.
type RoutingContext struct {
	// TaskDescription is the text the hard-stop detector inspects.
	TaskDescription string `json:"task_description"`
	// ComplexityScore is the task complexity in [0,1].
	ComplexityScore float64 `json:"complexity_score"`
	// ContextRequirements lists context the task needs (files, symbols).
	ContextRequirements []string `json:"context_requirements,omitempty"`
	// HardStopRequired forces the high-capability proposer.
	HardStopRequired bool `json:"hard_stop_required"`
	// CurrentDailySpend is the caller's spend so far today, in dollars.
	CurrentDailySpend float64 `json:"current_daily_spend"`
}

// BudgetStatus is the spend state reported with a routing decision.
type BudgetStatus string

const (
	// BudgetWithin means spend is below the soft cap.
	BudgetWithin BudgetStatus = "within_budget"
	// BudgetSoftCapExceeded means spend reached the soft cap.
	BudgetSoftCapExceeded BudgetStatus = "soft_cap_exceeded"
	// BudgetHardCapExceeded means spend reached the hard cap.
	BudgetHardCapExceeded BudgetStatus = "hard_cap_exceeded"
	// BudgetEmergencyKill means spend reached the emergency kill threshold.
	BudgetEmergencyKill BudgetStatus = "emergency_kill"
)

// StatusFor classifies spend against the limits.
func (b BudgetLimits) StatusFor(spend float64) BudgetStatus {
	switch {
	case spend >= b.EmergencyKill:
		return BudgetEmergencyKill
	case spend >= b.DailyHardCap:
		return BudgetHardCapExceeded
	case spend >= b.DailySoftCap:
		return BudgetSoftCapExceeded
	default:
		return BudgetWithin
	}
}

// Routing strategy names recorded in RoutingMetadata.
const (
	StrategyHardStop           = "hard_stop"
	StrategyBudgetForced       = "budget_forced"
	StrategyComplexityFit      = "complexity_fit"
	StrategyCapabilityFallback = "capability_fallback"
)

// RoutingMetadata records how a decision was made.
type RoutingMetadata struct {
	BudgetStatus   BudgetStatus `json:"budget_status"`
	CandidateCount int          `json:"candidate_count"`
	Strategy       string       `json:"strategy"`
	Timestamp      time.Time    `json:"timestamp"`
}

// RoutingDecision is the immutable record of a proposer selection.
// Retries produce new decisions rather than editing old ones.
type RoutingDecision struct {
	// SelectedProposer is the name of the chosen proposer.
	SelectedProposer string `json:"selected_proposer"`
	// Reason is a human-readable explanation.
	Reason string `json:"reason"`
	// Confidence is the policy's confidence in the choice, in [0,1].
	Confidence float64 `json:"confidence"`
	// FallbackProposer optionally names an alternative proposer.
	FallbackProposer string `json:"fallback_proposer,omitempty"`
	// Metadata describes budget state and strategy.
	Metadata RoutingMetadata `json:"routing_metadata"`
	// TaskID links the decision to a work order when made by the orchestrator.
	TaskID string `json:"task_id,omitempty"`
	// Attempt is the attempt number the decision was made for.
	Attempt int `json:"attempt,omitempty"`
}

// RetryAction is the ladder's verdict after a failed attempt.
type RetryAction string

const (
	// RetrySameProposer retries with the same proposer and failure context appended.
	RetrySameProposer RetryAction = "retry_same"
	// RetrySwitchProposer retries with a higher-ceiling proposer.
	RetrySwitchProposer RetryAction = "switch_proposer"
	// RetryEscalate stops retrying and hands the task to a human.
	RetryEscalate RetryAction = "escalate"
)

// RetryStrategy is returned by the retry ladder.
type RetryStrategy struct {
	// Action is what to do next.
	Action RetryAction `json:"action"`
	// Proposer is the proposer for the next attempt; empty on escalation.
	Proposer string `json:"proposer,omitempty"`
	// NextAttempt is the number of the next attempt.
	NextAttempt int `json:"next_attempt"`
	// FailureContext is appended to the next prompt.
	FailureContext string `json:"failure_context,omitempty"`
	// Reason explains the verdict.
	Reason string `json:"reason"`
}

// ShouldRetry returns true if another attempt should be made.
func (s RetryStrategy) ShouldRetry() bool {
	return s.Action == RetrySameProposer || s.Action == RetrySwitchProposer
}
