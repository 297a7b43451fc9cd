package models

import "time"

// TaskStatus represents the execution outcome of a work order.
type TaskStatus string

const (
	// TaskStatusPending indicates the work order has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the work order is being routed or refined.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusSucceeded indicates the artifact converged with no residual errors.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusPartial indicates refinement ended with residual diagnostics or violations.
	TaskStatusPartial TaskStatus = "partial"
	// TaskStatusEscalated indicates the retry ladder gave up on the work order.
	TaskStatusEscalated TaskStatus = "escalated"
	// TaskStatusBudgetRefused indicates the budget service refused a reservation.
	TaskStatusBudgetRefused TaskStatus = "budget_refused"
	// TaskStatusSkipped indicates a prerequisite did not succeed.
	TaskStatusSkipped TaskStatus = "skipped"
	// TaskStatusCancelled indicates execution was cancelled before completion.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusSucceeded, TaskStatusPartial,
		TaskStatusEscalated, TaskStatusBudgetRefused, TaskStatusSkipped, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further work will happen for the work order.
func (s TaskStatus) Terminal() bool {
	return s != TaskStatusPending && s != TaskStatusInProgress
}

// Completed returns true if dependents of a work order in this state may run.
// Partial results still produce an artifact, so dependents are released.
func (s TaskStatus) Completed() bool {
	return s == TaskStatusSucceeded || s == TaskStatusPartial
}

// TechnicalSpecification is the immutable input to decomposition.
type TechnicalSpecification struct {
	// FeatureName names the feature being specified.
	FeatureName string `json:"feature_name" yaml:"feature_name"`
	// Objectives lists what the feature must achieve, in order.
	Objectives []string `json:"objectives" yaml:"objectives"`
	// Constraints lists limits the implementation must respect, in order.
	Constraints []string `json:"constraints" yaml:"constraints"`
	// AcceptanceCriteria lists how the feature is judged complete, in order.
	AcceptanceCriteria []string `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	// BudgetEstimate is an optional expected cost in dollars.
	BudgetEstimate *float64 `json:"budget_estimate,omitempty" yaml:"budget_estimate,omitempty"`
	// TimeEstimate is an optional free-text time estimate.
	TimeEstimate string `json:"time_estimate,omitempty" yaml:"time_estimate,omitempty"`
}

// WorkOrder is one atomic implementation task.
type WorkOrder struct {
	// ID is the stable identifier assigned when the work order is created.
	ID string `json:"id"`
	// Title is the short description of the work order.
	Title string `json:"title"`
	// Description provides detailed information about the work order.
	Description string `json:"description"`
	// AcceptanceCriteria defines the criteria for completion, in order.
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	// FilesInScope lists the files this work order may create or modify.
	FilesInScope []string `json:"files_in_scope"`
	// ContextBudget is the estimated token budget for generation.
	ContextBudget int `json:"context_budget"`
	// RiskLevel classifies how risky the change is.
	RiskLevel RiskLevel `json:"risk_level"`
	// DependsOn lists IDs of work orders that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`
	// UnresolvedDeps holds raw dependency references that could not be
	// translated to an ID when the work order was parsed.
	UnresolvedDeps []string `json:"unresolved_deps,omitempty"`
	// Status is the execution outcome.
	Status TaskStatus `json:"status"`
	// CreatedAt is when the work order was created.
	CreatedAt time.Time `json:"created_at"`
}

// PrimaryFile returns the first file in scope, or an empty string.
func (w *WorkOrder) PrimaryFile() string {
	if len(w.FilesInScope) == 0 {
		return ""
	}
	return w.FilesInScope[0]
}

// Clone returns a deep copy of the work order.
func (w *WorkOrder) Clone() *WorkOrder {
	c := *w
	c.AcceptanceCriteria = append([]string(nil), w.AcceptanceCriteria...)
	c.FilesInScope = append([]string(nil), w.FilesInScope...)
	c.DependsOn = append([]string(nil), w.DependsOn...)
	c.UnresolvedDeps = append([]string(nil), w.UnresolvedDeps...)
	return &c
}

// Batch is a named subdivision of a large decomposition job.
// Batches only exist during planning.
type Batch struct {
	// Name is the batch label.
	Name string `json:"name"`
	// EstimatedTasks is the number of tasks this batch should produce.
	EstimatedTasks int `json:"estimated_tasks"`
	// FocusAreas lists what the batch covers.
	FocusAreas []string `json:"focus_areas"`
}
