package decompose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// IssueType classifies a dependency graph problem.
type IssueType string

const (
	IssueMissingDependency  IssueType = "missing_dependency"
	IssueCircularDependency IssueType = "circular_dependency"
	IssueDuplicateFile      IssueType = "duplicate_file"
	IssueInvalidReference   IssueType = "invalid_reference"
)

// Severity of an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a task list.
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	// TaskID and TaskIndex identify the offending task at the time of the check.
	TaskID    string `json:"task_id"`
	TaskIndex int    `json:"task_index"`
	// Reference is the dependency reference or file path involved.
	Reference   string `json:"reference,omitempty"`
	Message     string `json:"message"`
	AutoFixable bool   `json:"auto_fixable"`
	Fixed       bool   `json:"fixed"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// ValidationResult is the outcome of validating a task list.
type ValidationResult struct {
	// Valid is true when no unfixed error remains.
	Valid bool `json:"valid"`
	// Issues lists everything found, with Fixed set on repaired issues.
	Issues []Issue `json:"issues"`
	// FixesApplied is true when the task list was changed.
	FixesApplied bool `json:"fixes_applied"`
	// Tasks is the validated list. Input tasks are never mutated.
	Tasks []*models.WorkOrder `json:"-"`
}

// Errors returns issues with error severity that were not fixed.
func (r *ValidationResult) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError && !i.Fixed {
			out = append(out, i)
		}
	}
	return out
}

// Warnings returns issues with warning severity.
func (r *ValidationResult) Warnings() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			out = append(out, i)
		}
	}
	return out
}

// Validator checks task lists for dependency problems.
type Validator struct {
	debugLog func(format string, args ...interface{})
}

// NewValidator creates a new dependency validator.
func NewValidator() *Validator {
	return &Validator{}
}

// SetDebugLog sets a debug logging function for validation tracing.
func (v *Validator) SetDebugLog(fn func(format string, args ...interface{})) {
	v.debugLog = fn
}

func (v *Validator) logf(format string, args ...interface{}) {
	if v.debugLog != nil {
		v.debugLog(format, args...)
	}
}

// Validate runs every check. With autoFix, missing dependencies are replaced
// by synthesized prerequisites inserted before the dependent task and cycles
// are broken by removing their closing back-edge; the missing-dependency
// check is then re-run against the fixed list.
func (v *Validator) Validate(tasks []*models.WorkOrder, autoFix bool) *ValidationResult {
	work := make([]*models.WorkOrder, len(tasks))
	for i, t := range tasks {
		work[i] = t.Clone()
	}

	result := &ValidationResult{Tasks: work}
	missing := checkMissing(work)
	invalid := checkInvalid(work)
	cycles := detectCycles(work, false)
	dups := checkDuplicateFiles(work)

	if autoFix {
		if len(missing) > 0 {
			work = v.fixMissing(work)
			for i := range missing {
				missing[i].Fixed = true
			}
			result.FixesApplied = true
		}
		if len(cycles) > 0 {
			detectCycles(work, true)
			for i := range cycles {
				cycles[i].Fixed = true
			}
			result.FixesApplied = true
			v.logf("[validator] removed %d back-edge(s)", len(cycles))
		}
		result.Tasks = work

		remaining := checkMissing(work)
		for _, r := range remaining {
			v.logf("[validator] missing dependency survived fix: task %s ref %s", r.TaskID, r.Reference)
		}
		missing = append(missing, remaining...)
	}

	result.Issues = append(result.Issues, missing...)
	result.Issues = append(result.Issues, cycles...)
	result.Issues = append(result.Issues, dups...)
	result.Issues = append(result.Issues, invalid...)
	result.Valid = len(result.Errors()) == 0
	return result
}

// classifyUnresolved reports whether a raw reference names a position that
// does not exist (missing) rather than being malformed.
func classifyUnresolved(ref string) IssueType {
	n, err := strconv.Atoi(ref)
	if err != nil || n < 0 {
		return IssueInvalidReference
	}
	return IssueMissingDependency
}

func checkMissing(tasks []*models.WorkOrder) []Issue {
	ids := indexByID(tasks)
	var issues []Issue
	for i, t := range tasks {
		for _, ref := range t.UnresolvedDeps {
			if classifyUnresolved(ref) == IssueMissingDependency {
				issues = append(issues, missingIssue(t, i, ref))
			}
		}
		for _, dep := range t.DependsOn {
			if _, ok := ids[dep]; !ok {
				issues = append(issues, missingIssue(t, i, dep))
			}
		}
	}
	return issues
}

func missingIssue(t *models.WorkOrder, index int, ref string) Issue {
	return Issue{
		Type:        IssueMissingDependency,
		Severity:    SeverityError,
		TaskID:      t.ID,
		TaskIndex:   index,
		Reference:   ref,
		Message:     fmt.Sprintf("task %d %q depends on %s, which is not an earlier task in the list", index, t.Title, ref),
		AutoFixable: true,
		Suggestion:  "insert a prerequisite task before the dependent task",
	}
}

func checkInvalid(tasks []*models.WorkOrder) []Issue {
	var issues []Issue
	for i, t := range tasks {
		for _, ref := range t.UnresolvedDeps {
			if classifyUnresolved(ref) != IssueInvalidReference {
				continue
			}
			issues = append(issues, Issue{
				Type:      IssueInvalidReference,
				Severity:  SeverityError,
				TaskID:    t.ID,
				TaskIndex: i,
				Reference: ref,
				Message:   fmt.Sprintf("task %d %q has malformed dependency reference %q", i, t.Title, ref),
			})
		}
		for _, dep := range t.DependsOn {
			if dep != t.ID {
				continue
			}
			issues = append(issues, Issue{
				Type:      IssueInvalidReference,
				Severity:  SeverityError,
				TaskID:    t.ID,
				TaskIndex: i,
				Reference: strconv.Itoa(i),
				Message:   fmt.Sprintf("task %d %q depends on itself", i, t.Title),
			})
		}
	}
	return issues
}

func checkDuplicateFiles(tasks []*models.WorkOrder) []Issue {
	owners := make(map[string][]int)
	var order []string
	for i, t := range tasks {
		for _, f := range t.FilesInScope {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, seen := owners[f]; !seen {
				order = append(order, f)
			}
			if n := len(owners[f]); n > 0 && owners[f][n-1] == i {
				continue
			}
			owners[f] = append(owners[f], i)
		}
	}

	var issues []Issue
	for _, f := range order {
		idx := owners[f]
		if len(idx) < 2 {
			continue
		}
		labels := make([]string, len(idx))
		for j, n := range idx {
			labels[j] = strconv.Itoa(n)
		}
		last := idx[len(idx)-1]
		issues = append(issues, Issue{
			Type:       IssueDuplicateFile,
			Severity:   SeverityWarning,
			TaskID:     tasks[last].ID,
			TaskIndex:  last,
			Reference:  f,
			Message:    fmt.Sprintf("file %s is in scope of tasks %s", f, strings.Join(labels, ", ")),
			Suggestion: fmt.Sprintf("consider merging tasks %s", strings.Join(labels, ", ")),
		})
	}
	return issues
}

// detectCycles runs a depth-first search in list order, visiting
// dependencies in declared order. Every back-edge closes a cycle; with
// remove set, the edge from the last node visited back to the first node of
// the cycle is deleted. Self references are left to checkInvalid.
func detectCycles(tasks []*models.WorkOrder, remove bool) []Issue {
	ids := indexByID(tasks)
	state := make(map[string]int) // 0=unvisited, 1=visiting, 2=visited
	var issues []Issue

	var visit func(t *models.WorkOrder, path []string)
	visit = func(t *models.WorkOrder, path []string) {
		state[t.ID] = 1
		path = append(path, t.ID)

		kept := t.DependsOn[:0:0]
		for _, dep := range t.DependsOn {
			pos, ok := ids[dep]
			if !ok || dep == t.ID {
				kept = append(kept, dep)
				continue
			}
			switch state[dep] {
			case 1:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				for _, p := range path[start:] {
					cycle = append(cycle, strconv.Itoa(ids[p]))
				}
				cycle = append(cycle, strconv.Itoa(pos))
				issues = append(issues, Issue{
					Type:        IssueCircularDependency,
					Severity:    SeverityError,
					TaskID:      t.ID,
					TaskIndex:   ids[t.ID],
					Reference:   strconv.Itoa(pos),
					Message:     fmt.Sprintf("circular dependency: %s", strings.Join(cycle, " -> ")),
					AutoFixable: true,
					Suggestion:  fmt.Sprintf("remove dependency of task %d on task %d", ids[t.ID], pos),
				})
				if remove {
					continue
				}
			case 0:
				visit(tasks[pos], path)
			}
			kept = append(kept, dep)
		}
		if remove {
			t.DependsOn = kept
		}
		state[t.ID] = 2
	}

	for _, t := range tasks {
		if state[t.ID] == 0 {
			visit(t, nil)
		}
	}
	return issues
}

// HasCycle reports whether the task list contains a dependency cycle.
func HasCycle(tasks []*models.WorkOrder) bool {
	return len(detectCycles(tasks, false)) > 0
}

// fixMissing inserts one synthesized prerequisite before every task with
// missing dependencies and points those references at it.
func (v *Validator) fixMissing(tasks []*models.WorkOrder) []*models.WorkOrder {
	ids := indexByID(tasks)
	out := make([]*models.WorkOrder, 0, len(tasks))
	for _, t := range tasks {
		var refs []string
		var unresolved []string
		for _, ref := range t.UnresolvedDeps {
			if classifyUnresolved(ref) == IssueMissingDependency {
				refs = append(refs, ref)
			} else {
				unresolved = append(unresolved, ref)
			}
		}
		var deps []string
		for _, dep := range t.DependsOn {
			if _, ok := ids[dep]; ok {
				deps = append(deps, dep)
			} else {
				refs = append(refs, dep)
			}
		}

		if len(refs) == 0 {
			out = append(out, t)
			continue
		}

		pre := synthesizePrerequisite(t, refs)
		v.logf("[validator] inserted prerequisite %q before %q for refs %v", pre.Title, t.Title, refs)
		t.UnresolvedDeps = unresolved
		t.DependsOn = append(deps, pre.ID)
		out = append(out, pre, t)
	}
	return out
}

// synthesizePrerequisite builds a minimal task from the dependent's needs.
func synthesizePrerequisite(dependent *models.WorkOrder, refs []string) *models.WorkOrder {
	need := statedNeed(dependent)
	sorted := append([]string(nil), refs...)
	sort.Strings(sorted)
	return &models.WorkOrder{
		ID:    uuid.New().String(),
		Title: fmt.Sprintf("Prerequisite for %s", dependent.Title),
		Description: fmt.Sprintf("Provide what %q needs before it can start: %s. Replaces missing dependency reference(s) %s.",
			dependent.Title, need, strings.Join(sorted, ", ")),
		AcceptanceCriteria: []string{fmt.Sprintf("%q can start without unmet prerequisites", dependent.Title)},
		ContextBudget:      SynthesizedContextBudget,
		RiskLevel:          models.RiskLow,
		Status:             models.TaskStatusPending,
		CreatedAt:          time.Now(),
	}
}

// statedNeed picks the first acceptance criterion, else the first sentence
// of the description, else the title.
func statedNeed(t *models.WorkOrder) string {
	for _, c := range t.AcceptanceCriteria {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	desc := strings.TrimSpace(t.Description)
	if desc != "" {
		if i := strings.IndexAny(desc, ".\n"); i > 0 {
			return desc[:i]
		}
		return desc
	}
	return t.Title
}
