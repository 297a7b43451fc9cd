package models

import "testing"

func TestRiskLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		risk RiskLevel
		want bool
	}{
		{"low is valid", RiskLow, true},
		{"medium is valid", RiskMedium, true},
		{"high is valid", RiskHigh, true},
		{"empty string is invalid", RiskLevel(""), false},
		{"uppercase is invalid", RiskLevel("HIGH"), false},
		{"unknown is invalid", RiskLevel("critical"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.risk.Valid(); got != tt.want {
				t.Errorf("RiskLevel(%q).Valid() = %v, want %v", tt.risk, got, tt.want)
			}
		})
	}
}

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in   string
		want RiskLevel
	}{
		{"low", RiskLow},
		{" LOW ", RiskLow},
		{"High", RiskHigh},
		{"critical", RiskHigh},
		{"medium", RiskMedium},
		{"", RiskMedium},
		{"whatever", RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseRiskLevel(tt.in); got != tt.want {
				t.Errorf("ParseRiskLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
