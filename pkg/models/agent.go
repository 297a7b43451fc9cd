package models

import "fmt"

// ProposerProfile describes a code-generation agent.
// Profiles are configuration and are never mutated by the routing policy.
type ProposerProfile struct {
	// Name identifies the proposer and is the model name sent to the provider.
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// Provider is the backend serving the proposer (e.g. anthropic, bedrock).
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	// ContextWindow is the supported context size in tokens.
	ContextWindow int `json:"context_window" yaml:"context_window" mapstructure:"context_window"`
	// InputCostPerUnit is the dollar cost of one input token.
	InputCostPerUnit float64 `json:"input_cost_per_unit" yaml:"input_cost_per_unit" mapstructure:"input_cost_per_unit"`
	// OutputCostPerUnit is the dollar cost of one output token.
	OutputCostPerUnit float64 `json:"output_cost_per_unit" yaml:"output_cost_per_unit" mapstructure:"output_cost_per_unit"`
	// ComplexityCeiling is the maximum complexity score (0-1) the proposer is certified for.
	ComplexityCeiling float64 `json:"complexity_ceiling" yaml:"complexity_ceiling" mapstructure:"complexity_ceiling"`
	// Active indicates the proposer may be selected.
	Active bool `json:"active" yaml:"active" mapstructure:"active"`
}

// Validate checks the profile for configuration mistakes.
func (p ProposerProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("proposer name is required")
	}
	if p.ComplexityCeiling < 0 || p.ComplexityCeiling > 1 {
		return fmt.Errorf("proposer %s: complexity ceiling %.2f outside [0,1]", p.Name, p.ComplexityCeiling)
	}
	if p.InputCostPerUnit < 0 || p.OutputCostPerUnit < 0 {
		return fmt.Errorf("proposer %s: unit costs must be non-negative", p.Name)
	}
	return nil
}

// Cost returns the dollar cost of the given usage on this proposer.
func (p ProposerProfile) Cost(inputUnits, outputUnits int) float64 {
	return float64(inputUnits)*p.InputCostPerUnit + float64(outputUnits)*p.OutputCostPerUnit
}

// BudgetLimits are the daily spend thresholds the routing policy enforces.
type BudgetLimits struct {
	// DailySoftCap is reported in routing metadata once reached.
	DailySoftCap float64 `json:"daily_soft_cap" mapstructure:"daily_soft_cap"`
	// DailyHardCap forces the cheapest proposer once reached.
	DailyHardCap float64 `json:"daily_hard_cap" mapstructure:"daily_hard_cap"`
	// EmergencyKill refuses all routing once reached.
	EmergencyKill float64 `json:"emergency_kill" mapstructure:"emergency_kill"`
}

// Validate checks that the limits are ordered and the emergency kill is set.
// A zero emergency kill would refuse every route.
func (b BudgetLimits) Validate() error {
	if b.DailySoftCap < 0 || b.DailyHardCap < 0 || b.EmergencyKill < 0 {
		return fmt.Errorf("budget limits must be non-negative")
	}
	if b.EmergencyKill == 0 {
		return fmt.Errorf("emergency kill must be greater than zero")
	}
	if b.DailySoftCap > b.DailyHardCap {
		return fmt.Errorf("daily soft cap ($%.2f) exceeds hard cap ($%.2f)", b.DailySoftCap, b.DailyHardCap)
	}
	if b.DailyHardCap > b.EmergencyKill {
		return fmt.Errorf("daily hard cap ($%.2f) exceeds emergency kill ($%.2f)", b.DailyHardCap, b.EmergencyKill)
	}
	return nil
}
