package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/ShayCichocki/dispatch/internal/budget"
	"github.com/ShayCichocki/dispatch/internal/routing"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// usageGenerator returns a fixed answer with fixed usage.
type usageGenerator struct {
	content string
	in, out int
	err     error
	calls   int
}

func (g *usageGenerator) Generate(ctx context.Context, prompt string, proposer models.ProposerProfile) (string, int, int, error) {
	g.calls++
	return g.content, g.in, g.out, g.err
}

func plannerProposer(t *testing.T) models.ProposerProfile {
	t.Helper()
	for _, p := range routing.DefaultProposers() {
		if p.Cost(1000, 1000) > 0 {
			return p
		}
	}
	t.Fatal("no priced default proposer")
	return models.ProposerProfile{}
}

func TestBudgetedPlanner(t *testing.T) {
	ctx := context.Background()
	proposer := plannerProposer(t)

	tests := []struct {
		name      string
		gen       *usageGenerator
		limit     float64
		wantErr   bool
		wantCalls int
		wantSpend float64
	}{
		{
			name:      "commits reported usage",
			gen:       &usageGenerator{content: "[]", in: 1200, out: 300},
			wantCalls: 1,
			wantSpend: proposer.Cost(1200, 300),
		},
		{
			name:      "failed call with usage is billed",
			gen:       &usageGenerator{in: 40, err: errors.New("empty generation response")},
			wantErr:   true,
			wantCalls: 1,
			wantSpend: proposer.Cost(40, 0),
		},
		{
			name:      "failed call without usage is cancelled",
			gen:       &usageGenerator{err: errors.New("connection reset")},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:    "refused reservation skips the call",
			gen:     &usageGenerator{content: "[]", in: 1, out: 1},
			limit:   1e-9,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := budget.NewMemory(tt.limit)
			p := NewBudgetedPlanner(tt.gen, svc, proposer)

			content, err := p.Complete(ctx, "Estimate this specification")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && content != tt.gen.content {
				t.Errorf("content = %q", content)
			}
			if tt.gen.calls != tt.wantCalls {
				t.Errorf("generator calls = %d, want %d", tt.gen.calls, tt.wantCalls)
			}

			spend, _ := svc.DailySpend(ctx)
			if diff := spend - tt.wantSpend; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("spend = %v, want %v", spend, tt.wantSpend)
			}
			if _, _, cost := p.Usage(); cost != spend {
				t.Errorf("usage cost %v != ledger spend %v", cost, spend)
			}
		})
	}
}

func TestBudgetedPlanner_RefusalIsBudgetError(t *testing.T) {
	p := NewBudgetedPlanner(&usageGenerator{}, budget.NewMemory(1e-9), plannerProposer(t))
	if _, err := p.Complete(context.Background(), "plan"); !errors.Is(err, errBudgetRefused) {
		t.Errorf("err = %v, want budget refusal", err)
	}
}
