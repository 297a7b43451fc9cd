package decompose

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func countIssues(issues []Issue, taskID string) int {
	n := 0
	for _, i := range issues {
		if i.TaskID == taskID && (i.Type == IssueMissingDependency || i.Type == IssueInvalidReference) {
			n++
		}
	}
	return n
}

// B points at C, which comes after it; C points back at B.
func forwardReferenceScenario(t *testing.T) []*models.WorkOrder {
	t.Helper()
	tasks, err := ParseWorkOrders(`[
		{"title": "A", "acceptance_criteria": ["A done"], "dependencies": []},
		{"title": "B", "acceptance_criteria": ["Session store exists"], "dependencies": [2]},
		{"title": "C", "dependencies": [1]}
	]`, nil)
	if err != nil {
		t.Fatal(err)
	}
	return tasks
}

func TestValidate_ForwardReference(t *testing.T) {
	tasks := forwardReferenceScenario(t)

	result := NewValidator().Validate(tasks, false)
	if result.Valid {
		t.Error("list with a missing dependency should be invalid")
	}
	if got := countIssues(result.Issues, tasks[1].ID); got != 1 {
		t.Errorf("issues for B = %d, want 1: %+v", got, result.Issues)
	}
	if got := countIssues(result.Issues, tasks[2].ID); got != 0 {
		t.Errorf("issues for C = %d, want 0", got)
	}
	if result.Issues[0].Type != IssueMissingDependency || !result.Issues[0].AutoFixable {
		t.Errorf("issue = %+v, want auto-fixable missing_dependency", result.Issues[0])
	}
	if result.FixesApplied {
		t.Error("no fixes should be applied without autoFix")
	}
	if len(result.Tasks) != 3 {
		t.Errorf("task list changed without autoFix: %d tasks", len(result.Tasks))
	}
	for _, i := range result.Issues {
		if i.Type == IssueCircularDependency {
			t.Errorf("forward reference reported as a cycle: %+v", i)
		}
	}
}

func TestValidate_PositionalListFromFile(t *testing.T) {
	tasks, err := UnmarshalPositional([]byte(`[
		{"title": "A", "dependencies": []},
		{"title": "B", "dependencies": [2]},
		{"title": "C", "dependencies": [1]}
	]`))
	if err != nil {
		t.Fatal(err)
	}

	result := NewValidator().Validate(tasks, false)
	if got := countIssues(result.Issues, tasks[1].ID); got != 1 {
		t.Errorf("issues for B = %d, want 1: %+v", got, result.Issues)
	}
	if got := countIssues(result.Issues, tasks[2].ID); got != 0 {
		t.Errorf("issues for C = %d, want 0", got)
	}
	if HasCycle(tasks) {
		t.Error("forward reference should not resolve into a cycle")
	}
}

func TestValidate_AutoFixInsertsPrerequisite(t *testing.T) {
	tasks := forwardReferenceScenario(t)

	result := NewValidator().Validate(tasks, true)
	if !result.Valid {
		t.Fatalf("auto-fixed list should be valid: %+v", result.Errors())
	}
	if !result.FixesApplied {
		t.Error("FixesApplied should be true")
	}
	if len(result.Tasks) != 4 {
		t.Fatalf("got %d tasks, want 4", len(result.Tasks))
	}

	pre := result.Tasks[1]
	if pre.Title != "Prerequisite for B" {
		t.Errorf("prerequisite title = %q", pre.Title)
	}
	if pre.RiskLevel != models.RiskLow || pre.ContextBudget != SynthesizedContextBudget {
		t.Errorf("prerequisite = %+v", pre)
	}
	if !contains(pre.Description, "Session store exists") {
		t.Errorf("prerequisite should carry the dependent's need: %q", pre.Description)
	}

	// Renumbered: B is now at 2 and depends on 1; C follows B.
	want := [][]int{{}, {}, {1}, {2}}
	if got := positions(result.Tasks); !reflect.DeepEqual(got, want) {
		t.Errorf("positional deps = %v, want %v", got, want)
	}
	if len(result.Tasks[2].UnresolvedDeps) != 0 {
		t.Errorf("B still has unresolved deps: %v", result.Tasks[2].UnresolvedDeps)
	}

	// Input is untouched.
	if len(tasks[1].UnresolvedDeps) != 1 || len(tasks[1].DependsOn) != 0 {
		t.Errorf("input task mutated: %+v", tasks[1])
	}
}

func TestValidate_MissingID(t *testing.T) {
	tasks := []*models.WorkOrder{mkTask("a"), mkTask("b", "a", "ghost")}

	result := NewValidator().Validate(tasks, true)
	if !result.Valid {
		t.Fatalf("expected valid after fix: %+v", result.Issues)
	}
	if len(result.Tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(result.Tasks))
	}
	if got := positions(result.Tasks); !reflect.DeepEqual(got, [][]int{{}, {}, {0, 1}}) {
		t.Errorf("positional deps = %v", got)
	}
}

func TestValidate_CycleRemovesBackEdge(t *testing.T) {
	// a -> b -> c -> a; DFS from a reaches c last, so c's edge to a goes.
	tasks := []*models.WorkOrder{mkTask("a", "b"), mkTask("b", "c"), mkTask("c", "a")}

	before := NewValidator().Validate(tasks, false)
	if before.Valid {
		t.Error("cyclic list should be invalid")
	}
	var cycles []Issue
	for _, i := range before.Issues {
		if i.Type == IssueCircularDependency {
			cycles = append(cycles, i)
		}
	}
	if len(cycles) != 1 {
		t.Fatalf("got %d cycle issues, want 1", len(cycles))
	}
	if cycles[0].TaskID != "c" || cycles[0].Reference != "0" {
		t.Errorf("cycle issue = %+v, want back-edge c -> 0", cycles[0])
	}

	after := NewValidator().Validate(tasks, true)
	if !after.Valid {
		t.Fatalf("auto-fixed list should be valid: %+v", after.Errors())
	}
	if HasCycle(after.Tasks) {
		t.Error("cycle remains after fix")
	}
	if got := positions(after.Tasks); !reflect.DeepEqual(got, [][]int{{1}, {2}, {}}) {
		t.Errorf("positional deps = %v, want [[1] [2] []]", got)
	}
}

func TestValidate_InvalidReferences(t *testing.T) {
	a := mkTask("a")
	a.UnresolvedDeps = []string{"-1", "setup"}
	b := mkTask("b", "b")

	result := NewValidator().Validate([]*models.WorkOrder{a, b}, true)
	if result.Valid {
		t.Error("invalid references are not fixable")
	}
	if result.FixesApplied {
		t.Error("no fixes expected")
	}
	errs := result.Errors()
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %+v", len(errs), errs)
	}
	for _, e := range errs {
		if e.Type != IssueInvalidReference || e.AutoFixable {
			t.Errorf("issue = %+v, want non-fixable invalid_reference", e)
		}
	}
	if HasCycle(result.Tasks) {
		t.Error("self references are not cycles")
	}
}

func TestValidate_DuplicateFiles(t *testing.T) {
	a := mkTask("a")
	a.FilesInScope = []string{"src/app.ts", "src/a.ts"}
	b := mkTask("b")
	b.FilesInScope = []string{"src/app.ts"}
	c := mkTask("c")
	c.FilesInScope = []string{"src/app.ts", "src/app.ts"}

	result := NewValidator().Validate([]*models.WorkOrder{a, b, c}, true)
	if !result.Valid {
		t.Error("duplicate files are warnings only")
	}
	if result.FixesApplied {
		t.Error("duplicate files are never auto-fixed")
	}
	warnings := result.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if warnings[0].Reference != "src/app.ts" || warnings[0].Suggestion != "consider merging tasks 0, 1, 2" {
		t.Errorf("warning = %+v", warnings[0])
	}
}

func TestValidate_DebugLog(t *testing.T) {
	var lines []string
	v := NewValidator()
	v.SetDebugLog(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})
	v.Validate([]*models.WorkOrder{mkTask("a", "missing")}, true)
	if len(lines) == 0 {
		t.Error("expected debug output for inserted prerequisite")
	}
}

// Random lists with out-of-range references and cycles must come back
// acyclic with every positional index in range.
func TestValidate_AutoFixProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(12)
		tasks := make([]*models.WorkOrder, n)
		for i := range tasks {
			tasks[i] = mkTask(fmt.Sprintf("t%d", i))
		}
		for i := range tasks {
			for k := rng.Intn(4); k > 0; k-- {
				switch target := rng.Intn(n + 3); {
				case target >= n:
					tasks[i].UnresolvedDeps = append(tasks[i].UnresolvedDeps, fmt.Sprint(target))
				case target != i:
					tasks[i].DependsOn = appendUnique(tasks[i].DependsOn, tasks[target].ID)
				}
			}
		}

		result := NewValidator().Validate(tasks, true)
		if !result.Valid {
			t.Fatalf("iteration %d: invalid after fix: %+v", iter, result.Errors())
		}
		if HasCycle(result.Tasks) {
			t.Fatalf("iteration %d: cycle after fix", iter)
		}
		for i, p := range ToPositional(result.Tasks) {
			if len(p.UnresolvedDependencies) > 0 {
				t.Fatalf("iteration %d: task %d unresolved %v", iter, i, p.UnresolvedDependencies)
			}
			for _, d := range p.Dependencies {
				if d < 0 || d >= len(result.Tasks) {
					t.Fatalf("iteration %d: task %d index %d out of range", iter, i, d)
				}
			}
		}
	}
}
