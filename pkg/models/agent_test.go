package models

import "testing"

func TestProposerProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       ProposerProfile
		wantErr bool
	}{
		{"valid", ProposerProfile{Name: "m", ComplexityCeiling: 0.5}, false},
		{"missing name", ProposerProfile{ComplexityCeiling: 0.5}, true},
		{"ceiling above one", ProposerProfile{Name: "m", ComplexityCeiling: 1.5}, true},
		{"negative ceiling", ProposerProfile{Name: "m", ComplexityCeiling: -0.1}, true},
		{"negative cost", ProposerProfile{Name: "m", InputCostPerUnit: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProposerProfile_Cost(t *testing.T) {
	p := ProposerProfile{InputCostPerUnit: 0.000003, OutputCostPerUnit: 0.000015}
	got := p.Cost(1000, 100)
	want := 0.003 + 0.0015
	if diff := got - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("Cost(1000, 100) = %v, want %v", got, want)
	}
}

func TestBudgetLimits_StatusFor(t *testing.T) {
	limits := BudgetLimits{DailySoftCap: 10, DailyHardCap: 20, EmergencyKill: 50}
	tests := []struct {
		spend float64
		want  BudgetStatus
	}{
		{0, BudgetWithin},
		{9.99, BudgetWithin},
		{10, BudgetSoftCapExceeded},
		{20, BudgetHardCapExceeded},
		{21, BudgetHardCapExceeded},
		{50, BudgetEmergencyKill},
	}

	for _, tt := range tests {
		if got := limits.StatusFor(tt.spend); got != tt.want {
			t.Errorf("StatusFor(%v) = %q, want %q", tt.spend, got, tt.want)
		}
	}
}

func TestBudgetLimits_Validate(t *testing.T) {
	tests := []struct {
		name    string
		limits  BudgetLimits
		wantErr bool
	}{
		{"ordered", BudgetLimits{10, 20, 50}, false},
		{"soft above hard", BudgetLimits{30, 20, 50}, true},
		{"hard above kill", BudgetLimits{10, 60, 50}, true},
		{"negative", BudgetLimits{-1, 20, 50}, true},
		{"all zero", BudgetLimits{}, true},
		{"zero caps under a kill", BudgetLimits{0, 0, 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.limits.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryStrategy_ShouldRetry(t *testing.T) {
	tests := []struct {
		action RetryAction
		want   bool
	}{
		{RetrySameProposer, true},
		{RetrySwitchProposer, true},
		{RetryEscalate, false},
	}
	for _, tt := range tests {
		if got := (RetryStrategy{Action: tt.action}).ShouldRetry(); got != tt.want {
			t.Errorf("ShouldRetry(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}
