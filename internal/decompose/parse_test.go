package decompose

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func TestParseWorkOrders_Valid(t *testing.T) {
	response := `[
		{
			"title": "Task 1",
			"description": "Description 1",
			"acceptance_criteria": ["Criteria 1"],
			"files_in_scope": ["a.ts"],
			"context_budget": 4000,
			"risk_level": "high",
			"dependencies": []
		},
		{
			"title": "Task 2",
			"description": "Description 2",
			"acceptance_criteria": "Criteria 2",
			"dependencies": [0]
		}
	]`

	tasks, err := ParseWorkOrders(response, nil)
	if err != nil {
		t.Fatalf("ParseWorkOrders failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID == "" || tasks[0].ID == tasks[1].ID {
		t.Errorf("tasks should get distinct IDs: %q, %q", tasks[0].ID, tasks[1].ID)
	}
	if tasks[0].RiskLevel != models.RiskHigh {
		t.Errorf("RiskLevel = %q, want high", tasks[0].RiskLevel)
	}
	if tasks[1].RiskLevel != models.RiskMedium {
		t.Errorf("missing risk should default to medium, got %q", tasks[1].RiskLevel)
	}
	if !reflect.DeepEqual(tasks[1].AcceptanceCriteria, []string{"Criteria 2"}) {
		t.Errorf("string acceptance criteria = %v", tasks[1].AcceptanceCriteria)
	}
	if !reflect.DeepEqual(tasks[1].DependsOn, []string{tasks[0].ID}) {
		t.Errorf("Task 2 should depend on Task 1's ID, got %v", tasks[1].DependsOn)
	}
	if tasks[0].Status != models.TaskStatusPending {
		t.Errorf("Status = %q, want pending", tasks[0].Status)
	}
}

func TestParseWorkOrders_WithPriorBatch(t *testing.T) {
	prior, err := ParseWorkOrders(taskJSON("core", 2, nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Indices continue from the prior batch: 2 is this batch's first task.
	next, err := ParseWorkOrders(taskJSON("api", 2, map[int][]int{0: {1}, 1: {2, 0}}), prior)
	if err != nil {
		t.Fatalf("ParseWorkOrders failed: %v", err)
	}
	if !reflect.DeepEqual(next[0].DependsOn, []string{prior[1].ID}) {
		t.Errorf("api 0 deps = %v, want [%s]", next[0].DependsOn, prior[1].ID)
	}
	if !reflect.DeepEqual(next[1].DependsOn, []string{next[0].ID, prior[0].ID}) {
		t.Errorf("api 1 deps = %v", next[1].DependsOn)
	}

	all := append(prior, next...)
	if got := positions(all); !reflect.DeepEqual(got, [][]int{{}, {}, {1}, {2, 0}}) {
		t.Errorf("positional deps = %v", got)
	}
}

func TestParseWorkOrders_References(t *testing.T) {
	response := `[
		{"title": "Schema", "dependencies": []},
		{"title": "Repo", "dependencies": ["Schema", "7", -1, "later", 1.5]},
		{"title": "Self", "dependencies": [2, 3, 0]}
	]`

	tasks, err := ParseWorkOrders(response, nil)
	if err != nil {
		t.Fatalf("ParseWorkOrders failed: %v", err)
	}
	if !reflect.DeepEqual(tasks[1].DependsOn, []string{tasks[0].ID}) {
		t.Errorf("title reference not resolved: %v", tasks[1].DependsOn)
	}
	if !reflect.DeepEqual(tasks[1].UnresolvedDeps, []string{"7", "-1", "later", "1.5"}) {
		t.Errorf("UnresolvedDeps = %v", tasks[1].UnresolvedDeps)
	}
	if !reflect.DeepEqual(tasks[2].DependsOn, []string{tasks[0].ID}) {
		t.Errorf("only earlier positions resolve, got %v", tasks[2].DependsOn)
	}
	if !reflect.DeepEqual(tasks[2].UnresolvedDeps, []string{"2", "3"}) {
		t.Errorf("self and forward positions should stay unresolved, got %v", tasks[2].UnresolvedDeps)
	}
}

func TestParseWorkOrders_WithExtraText(t *testing.T) {
	response := "Here are the tasks:\n" + taskJSON("t", 1, nil) + "\nEnd of response."

	tasks, err := ParseWorkOrders(response, nil)
	if err != nil {
		t.Fatalf("ParseWorkOrders failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("Expected 1 task, got %d", len(tasks))
	}
}

func TestParseWorkOrders_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		contains string
	}{
		{"no array", "No JSON here", "no valid JSON array found"},
		{"invalid json", "[{invalid json}]", "unmarshal JSON"},
		{"empty array", "[]", "empty task list"},
		{"missing title", `[{"description": "x"}]`, "has no title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkOrders(tt.response, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Error = %q, should contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestPositionalRoundTrip(t *testing.T) {
	tasks, err := ParseWorkOrders(taskJSON("t", 3, map[int][]int{1: {0}, 2: {0, 1}}), nil)
	if err != nil {
		t.Fatal(err)
	}
	tasks[2].UnresolvedDeps = []string{"9"}

	data, err := MarshalPositional(tasks)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseWorkOrders(string(data), nil)
	if err != nil {
		t.Fatalf("re-parse positional output: %v", err)
	}
	if got := positions(back); !reflect.DeepEqual(got, [][]int{{}, {0}, {0, 1}}) {
		t.Errorf("round-trip deps = %v", got)
	}
	if !reflect.DeepEqual(back[2].UnresolvedDeps, []string{"9"}) {
		t.Errorf("round-trip unresolved = %v", back[2].UnresolvedDeps)
	}
}
