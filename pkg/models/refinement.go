package models

import "fmt"

// Diagnostic is one structured compiler error.
type Diagnostic struct {
	File    string `json:"file,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// String formats the diagnostic the way compilers print it.
func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%d:%d %s: %s", d.Line, d.Column, d.Code, d.Message)
}

// BreakingChange is one contract violation.
type BreakingChange struct {
	// Type is the violation kind (e.g. removed_operation).
	Type string `json:"type"`
	// Path is the affected contract path.
	Path string `json:"path"`
	// Method is the affected HTTP method, if any.
	Method string `json:"method,omitempty"`
	// Severity is low, medium or high.
	Severity string `json:"severity"`
	// Description explains the violation.
	Description string `json:"description"`
}

// CycleRecord is the history entry for one refinement cycle.
type CycleRecord struct {
	Cycle              int     `json:"cycle"`
	ErrorsBefore       int     `json:"errors_before"`
	ErrorsAfter        int     `json:"errors_after"`
	ImprovementRate    float64 `json:"improvement_rate"`
	Strategy           string  `json:"strategy"`
	ContractViolations int     `json:"contract_violations"`
}

// RefinementResult is the outcome of driving one artifact through refinement.
type RefinementResult struct {
	// FinalContent is the artifact after the last cycle.
	FinalContent string `json:"final_content"`
	// RefinementCount is the number of cycles executed.
	RefinementCount int `json:"refinement_count"`
	// InitialErrors is the diagnostic count before the first cycle.
	InitialErrors int `json:"initial_errors"`
	// FinalErrors is the diagnostic count after the last cycle.
	FinalErrors int `json:"final_errors"`
	// Success is true when no diagnostics or contract violations remain.
	Success bool `json:"success"`
	// RemainingDiagnostics lists residual diagnostics.
	RemainingDiagnostics []Diagnostic `json:"remaining_diagnostics,omitempty"`
	// ContractViolations holds the violation count per cycle, starting with the
	// initial check. Nil when no contract checker was supplied.
	ContractViolations []int `json:"contract_violations,omitempty"`
	// RemainingViolations lists residual contract violations.
	RemainingViolations []BreakingChange `json:"remaining_violations,omitempty"`
	// History has one entry per executed cycle.
	History []CycleRecord `json:"history"`
}

// Partial returns true if refinement ended with residual errors.
func (r *RefinementResult) Partial() bool {
	return !r.Success
}
