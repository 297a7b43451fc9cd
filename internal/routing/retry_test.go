package routing

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func TestLadder_NextAttempt(t *testing.T) {
	ladder := NewLadder(testProposers())

	tests := []struct {
		name         string
		proposer     string
		attempt      int
		wantAction   models.RetryAction
		wantProposer string
	}{
		{"first failure retries same", "cheap", 1, models.RetrySameProposer, "cheap"},
		{"second failure switches to next higher ceiling", "cheap", 2, models.RetrySwitchProposer, "mid"},
		{"second failure from mid goes to top", "mid", 2, models.RetrySwitchProposer, DefaultHardStopProposer},
		{"second failure at top escalates", DefaultHardStopProposer, 2, models.RetryEscalate, ""},
		{"unknown proposer escalates", "ghost", 2, models.RetryEscalate, ""},
		{"third failure escalates", "cheap", 3, models.RetryEscalate, ""},
		{"later failures escalate", "cheap", 7, models.RetryEscalate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ladder.NextAttempt(tt.proposer, tt.attempt, "compile failed")
			if s.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", s.Action, tt.wantAction)
			}
			if s.Proposer != tt.wantProposer {
				t.Errorf("Proposer = %q, want %q", s.Proposer, tt.wantProposer)
			}
			if s.NextAttempt != tt.attempt+1 {
				t.Errorf("NextAttempt = %d, want %d", s.NextAttempt, tt.attempt+1)
			}
			if !strings.Contains(s.FailureContext, "compile failed") {
				t.Errorf("FailureContext = %q, should carry the reason", s.FailureContext)
			}
		})
	}
}

func TestLadder_SkipsInactive(t *testing.T) {
	proposers := []models.ProposerProfile{
		{Name: "low", ComplexityCeiling: 0.3, Active: true},
		{Name: "off", ComplexityCeiling: 0.5, Active: false},
		{Name: "high", ComplexityCeiling: 0.9, Active: true},
	}
	s := NewLadder(proposers).NextAttempt("low", 2, "x")
	if s.Proposer != "high" {
		t.Errorf("Proposer = %q, want high", s.Proposer)
	}
}
