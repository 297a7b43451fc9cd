package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/dispatch/internal/decompose"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// TaskOutcome is the execution record of one work order.
type TaskOutcome struct {
	TaskID   string            `json:"task_id"`
	Position int               `json:"position"`
	Title    string            `json:"title"`
	Status   models.TaskStatus `json:"status"`
	// Proposer is the proposer of the last attempt.
	Proposer string `json:"proposer,omitempty"`
	Attempts int    `json:"attempts"`
	// Cost is the committed spend of all attempts and refinement cycles.
	Cost        float64 `json:"cost"`
	InputUnits  int     `json:"input_units"`
	OutputUnits int     `json:"output_units"`
	// Decisions holds one routing decision per attempt, in order.
	Decisions []*models.RoutingDecision `json:"decisions"`
	// Retries holds the ladder verdicts for failed attempts.
	Retries    []models.RetryStrategy   `json:"retries,omitempty"`
	Refinement *models.RefinementResult `json:"refinement,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// Totals summarizes a run.
type Totals struct {
	Tasks         int     `json:"tasks"`
	Succeeded     int     `json:"succeeded"`
	Partial       int     `json:"partial"`
	Escalated     int     `json:"escalated"`
	BudgetRefused int     `json:"budget_refused"`
	Skipped       int     `json:"skipped"`
	Cancelled     int     `json:"cancelled"`
	Cost          float64 `json:"cost"`
	InputUnits    int     `json:"input_units"`
	OutputUnits   int     `json:"output_units"`
}

// Report is the plain-data result of a run.
type Report struct {
	RunID      string                          `json:"run_id"`
	Feature    string                          `json:"feature"`
	Estimate   *decompose.Estimate             `json:"estimate,omitempty"`
	WorkOrders []decompose.PositionalWorkOrder `json:"work_orders"`
	Validation *decompose.ValidationResult     `json:"validation,omitempty"`
	// EstimatedCost is the decomposition's context-budget cost estimate.
	EstimatedCost float64                   `json:"estimated_cost"`
	Decisions     []*models.RoutingDecision `json:"decisions"`
	Outcomes      []*TaskOutcome            `json:"outcomes"`
	Totals        Totals                    `json:"totals"`
	Warnings      []string                  `json:"warnings,omitempty"`
	Document      string                    `json:"document"`
	StartedAt     time.Time                 `json:"started_at"`
	FinishedAt    time.Time                 `json:"finished_at"`
}

// Outcome returns the outcome for a task ID, or nil.
func (r *Report) Outcome(taskID string) *TaskOutcome {
	for _, o := range r.Outcomes {
		if o.TaskID == taskID {
			return o
		}
	}
	return nil
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// summarize fills Decisions and Totals from Outcomes.
func (r *Report) summarize() {
	r.Decisions = []*models.RoutingDecision{}
	t := Totals{Tasks: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		r.Decisions = append(r.Decisions, o.Decisions...)
		t.Cost += o.Cost
		t.InputUnits += o.InputUnits
		t.OutputUnits += o.OutputUnits
		switch o.Status {
		case models.TaskStatusSucceeded:
			t.Succeeded++
		case models.TaskStatusPartial:
			t.Partial++
		case models.TaskStatusEscalated:
			t.Escalated++
		case models.TaskStatusBudgetRefused:
			t.BudgetRefused++
		case models.TaskStatusSkipped:
			t.Skipped++
		case models.TaskStatusCancelled:
			t.Cancelled++
		}
	}
	r.Totals = t
}
