package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ShayCichocki/dispatch/internal/budget"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// BudgetedPlanner answers estimation and decomposition prompts through the
// generation service. Every call reserves its estimated cost first and is
// settled with the usage the service reports.
type BudgetedPlanner struct {
	gen      Generator
	budget   budget.Service
	proposer models.ProposerProfile

	mu          sync.Mutex
	inputUnits  int
	outputUnits int
	cost        float64
}

// NewBudgetedPlanner creates a planner that generates with proposer and
// charges svc.
func NewBudgetedPlanner(gen Generator, svc budget.Service, proposer models.ProposerProfile) *BudgetedPlanner {
	return &BudgetedPlanner{gen: gen, budget: svc, proposer: proposer}
}

// Complete implements decompose.Generator.
func (p *BudgetedPlanner) Complete(ctx context.Context, prompt string) (string, error) {
	est := EstimateAttemptCost(p.proposer, prompt, nil)
	ok, resID, total, err := p.budget.ReserveBudget(ctx, est)
	if err != nil {
		return "", fmt.Errorf("reserve budget: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: planner call of $%.4f with $%.2f already spent or held", errBudgetRefused, est, total)
	}

	settle := context.WithoutCancel(ctx)
	content, in, out, err := p.gen.Generate(settle, prompt, p.proposer)
	if err != nil && in+out == 0 {
		if cerr := p.budget.Cancel(settle, resID); cerr != nil {
			log.Printf("[planner] cancel reservation %s: %v", resID, cerr)
		}
		return "", err
	}

	actual := p.proposer.Cost(in, out)
	if cerr := p.budget.Commit(settle, resID, actual); cerr != nil {
		log.Printf("[planner] commit reservation %s: %v", resID, cerr)
	}
	p.mu.Lock()
	p.inputUnits += in
	p.outputUnits += out
	p.cost += actual
	p.mu.Unlock()

	if err != nil {
		return "", err
	}
	return content, nil
}

// Usage returns the units and committed cost of every planner call so far.
func (p *BudgetedPlanner) Usage() (inputUnits, outputUnits int, cost float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputUnits, p.outputUnits, p.cost
}
