// Package decompose turns a technical specification into a validated,
// dependency-ordered list of work orders.
package decompose

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Result is the outcome of a decomposition.
type Result struct {
	// Tasks is the validated task list.
	Tasks []*models.WorkOrder
	// Document is a human-readable rendering of the decomposition.
	Document string
	// EstimatedCost is the summed context budget converted to dollars.
	EstimatedCost float64
	// Validation is the dependency validator's report.
	Validation *ValidationResult
	// Batched is true when the batched path was taken.
	Batched bool
	// Warnings collects non-fatal findings such as cost variance.
	Warnings []string
}

// Decomposer breaks specifications into work orders.
type Decomposer struct {
	gen       Generator
	opts      Options
	validator *Validator
	debugLog  func(format string, args ...interface{})
}

// New creates a new Decomposer backed by gen.
func New(gen Generator, opts Options) *Decomposer {
	return &Decomposer{
		gen:       gen,
		opts:      opts.withDefaults(),
		validator: NewValidator(),
	}
}

// SetDebugLog sets a debug logging function for decomposition tracing.
func (d *Decomposer) SetDebugLog(fn func(format string, args ...interface{})) {
	d.debugLog = fn
	d.validator.SetDebugLog(fn)
}

func (d *Decomposer) logf(format string, args ...interface{}) {
	if d.debugLog != nil {
		d.debugLog(format, args...)
	}
}

// Decompose produces the validated task list for spec. A nil or unbatched
// estimate takes the single-call path, whose task count must fall within
// [MinTasks, MaxTasks]. Batches are generated strictly in order and any
// failed batch aborts the whole decomposition.
func (d *Decomposer) Decompose(ctx context.Context, spec *models.TechnicalSpecification, est *Estimate) (*Result, error) {
	var (
		tasks   []*models.WorkOrder
		err     error
		batched = est != nil && est.NeedsBatching
	)
	if batched {
		batches := est.Batches
		if len(batches) == 0 {
			batches = DefaultBatches(est.TotalTasks, d.opts.DefaultBatchSize)
		}
		tasks, err = d.decomposeBatched(ctx, spec, batches)
	} else {
		tasks, err = d.decomposeSingle(ctx, spec)
	}
	if err != nil {
		return nil, err
	}

	validation := d.validator.Validate(tasks, true)
	result := &Result{
		Tasks:      validation.Tasks,
		Validation: validation,
		Batched:    batched,
	}
	result.EstimatedCost = d.estimateCost(result.Tasks)

	if warning := d.checkCostVariance(spec, result.EstimatedCost); warning != "" {
		d.logf("[decompose] WARNING: %s", warning)
		result.Warnings = append(result.Warnings, warning)
	}
	for _, w := range validation.Warnings() {
		result.Warnings = append(result.Warnings, w.Message)
	}

	result.Document = RenderDocument(spec, result)
	d.logf("[decompose] %d tasks (batched=%v, valid=%v, fixes=%v, cost=$%.2f)",
		len(result.Tasks), batched, validation.Valid, validation.FixesApplied, result.EstimatedCost)
	return result, nil
}

func (d *Decomposer) decomposeSingle(ctx context.Context, spec *models.TechnicalSpecification) ([]*models.WorkOrder, error) {
	resp, err := d.gen.Complete(ctx, BuildDecompositionPrompt(spec, d.opts))
	if err != nil {
		return nil, fmt.Errorf("generate decomposition: %w", err)
	}
	tasks, err := ParseWorkOrders(resp, nil)
	if err != nil {
		return nil, fmt.Errorf("parse decomposition response: %w", err)
	}
	if n := len(tasks); n < d.opts.MinTasks || n > d.opts.MaxTasks {
		return nil, fmt.Errorf("%w: got %d tasks, want %d-%d", ErrTaskCountOutOfBand, n, d.opts.MinTasks, d.opts.MaxTasks)
	}
	return tasks, nil
}

func (d *Decomposer) decomposeBatched(ctx context.Context, spec *models.TechnicalSpecification, batches []models.Batch) ([]*models.WorkOrder, error) {
	var all []*models.WorkOrder
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		summary := BuildSummary(all)
		prompt := BuildBatchPrompt(spec, batch, i+1, len(batches), summary)
		d.logf("[decompose] batch %d/%d %q: %d prior tasks, prompt %d chars", i+1, len(batches), batch.Name, len(all), len(prompt))

		resp, err := d.gen.Complete(ctx, prompt)
		if err != nil {
			return nil, &BatchError{Index: i + 1, Name: batch.Name, Err: err}
		}
		tasks, err := ParseWorkOrders(resp, all)
		if err != nil {
			return nil, &BatchError{Index: i + 1, Name: batch.Name, Err: err}
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// estimateCost converts summed context budgets to dollars.
func (d *Decomposer) estimateCost(tasks []*models.WorkOrder) float64 {
	return EstimateCost(tasks, d.opts.ContextUnitsPerDollar)
}

// EstimateCost sums the context budgets of tasks and divides by unitsPerDollar.
func EstimateCost(tasks []*models.WorkOrder, unitsPerDollar float64) float64 {
	if unitsPerDollar <= 0 {
		unitsPerDollar = ContextUnitsPerDollar
	}
	total := 0
	for _, t := range tasks {
		total += t.ContextBudget
	}
	return float64(total) / unitsPerDollar
}

// checkCostVariance compares the computed cost with the specification's
// budget estimate. It returns a warning, never an error.
func (d *Decomposer) checkCostVariance(spec *models.TechnicalSpecification, cost float64) string {
	if spec.BudgetEstimate == nil || *spec.BudgetEstimate <= 0 {
		return ""
	}
	expected := *spec.BudgetEstimate
	variance := math.Abs(cost-expected) / expected
	if variance <= d.opts.CostVarianceTolerance {
		return ""
	}
	return fmt.Sprintf("estimated cost $%.2f differs from budget estimate $%.2f by %.0f%%", cost, expected, variance*100)
}

// RenderDocument renders a decomposition as markdown.
func RenderDocument(spec *models.TechnicalSpecification, r *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Decomposition: %s\n\n", spec.FeatureName)
	fmt.Fprintf(&sb, "%d tasks, estimated cost $%.2f", len(r.Tasks), r.EstimatedCost)
	if r.Batched {
		sb.WriteString(" (batched)")
	}
	sb.WriteString("\n\n")

	for _, p := range ToPositional(r.Tasks) {
		fmt.Fprintf(&sb, "## %d. %s\n\n", p.Index, p.Title)
		fmt.Fprintf(&sb, "- Risk: %s\n- Context budget: %d\n", p.RiskLevel, p.ContextBudget)
		if len(p.FilesInScope) > 0 {
			fmt.Fprintf(&sb, "- Files: %s\n", strings.Join(p.FilesInScope, ", "))
		}
		if len(p.Dependencies) > 0 {
			deps := make([]string, len(p.Dependencies))
			for i, dep := range p.Dependencies {
				deps[i] = fmt.Sprint(dep)
			}
			fmt.Fprintf(&sb, "- Depends on: %s\n", strings.Join(deps, ", "))
		}
		if p.Description != "" {
			fmt.Fprintf(&sb, "\n%s\n", p.Description)
		}
		if len(p.AcceptanceCriteria) > 0 {
			sb.WriteString("\nAcceptance criteria:\n")
			for _, c := range p.AcceptanceCriteria {
				fmt.Fprintf(&sb, "- [ ] %s\n", c)
			}
		}
		sb.WriteString("\n")
	}

	if r.Validation != nil && len(r.Validation.Issues) > 0 {
		sb.WriteString("## Validation\n\n")
		for _, issue := range r.Validation.Issues {
			status := "open"
			if issue.Fixed {
				status = "fixed"
			}
			fmt.Fprintf(&sb, "- [%s/%s] %s (%s)\n", issue.Severity, issue.Type, issue.Message, status)
		}
	}
	return sb.String()
}
