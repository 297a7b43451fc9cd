package decompose

import (
	"reflect"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func TestFromPositional(t *testing.T) {
	list := []PositionalWorkOrder{
		{Title: "A", Dependencies: []int{}},
		{Title: "B", Dependencies: []int{5}},
		{Title: "C", Dependencies: []int{1, 0, 1}, RiskLevel: "high"},
		{Title: "D", Dependencies: []int{-1}, UnresolvedDependencies: []string{"auth"}},
	}

	tasks := FromPositional(list)
	if len(tasks) != 4 {
		t.Fatalf("got %d tasks, want 4", len(tasks))
	}
	for _, task := range tasks {
		if task.ID == "" {
			t.Errorf("%s has no ID", task.Title)
		}
	}

	if len(tasks[1].DependsOn) != 0 || !reflect.DeepEqual(tasks[1].UnresolvedDeps, []string{"5"}) {
		t.Errorf("B deps = %v unresolved = %v", tasks[1].DependsOn, tasks[1].UnresolvedDeps)
	}
	if !reflect.DeepEqual(tasks[2].DependsOn, []string{tasks[1].ID, tasks[0].ID}) {
		t.Errorf("C deps = %v, want [B A] without duplicates", tasks[2].DependsOn)
	}
	if tasks[2].RiskLevel != models.RiskHigh {
		t.Errorf("C risk = %s", tasks[2].RiskLevel)
	}
	if !reflect.DeepEqual(tasks[3].UnresolvedDeps, []string{"auth", "-1"}) {
		t.Errorf("D unresolved = %v", tasks[3].UnresolvedDeps)
	}
}

func TestFromPositional_ForwardReferences(t *testing.T) {
	tasks := FromPositional([]PositionalWorkOrder{
		{Title: "A", Dependencies: []int{1}},
		{Title: "B", Dependencies: []int{1}},
		{ID: "c", Title: "C", Dependencies: []int{4}},
		{ID: "d", Title: "D", Dependencies: []int{2}},
		{ID: "e", Title: "E"},
	})

	if len(tasks[0].DependsOn) != 0 || !reflect.DeepEqual(tasks[0].UnresolvedDeps, []string{"1"}) {
		t.Errorf("new entry forward ref: deps = %v unresolved = %v", tasks[0].DependsOn, tasks[0].UnresolvedDeps)
	}
	if len(tasks[1].DependsOn) != 0 || !reflect.DeepEqual(tasks[1].UnresolvedDeps, []string{"1"}) {
		t.Errorf("new entry self ref: deps = %v unresolved = %v", tasks[1].DependsOn, tasks[1].UnresolvedDeps)
	}
	if !reflect.DeepEqual(tasks[3].DependsOn, []string{"c"}) {
		t.Errorf("D deps = %v", tasks[3].DependsOn)
	}
	// Rendered entries keep forward edges, such as those left by cycle repair.
	if !reflect.DeepEqual(tasks[2].DependsOn, []string{"e"}) || len(tasks[2].UnresolvedDeps) != 0 {
		t.Errorf("C deps = %v unresolved = %v", tasks[2].DependsOn, tasks[2].UnresolvedDeps)
	}
}

func TestPositionalRoundTripKeepsIDs(t *testing.T) {
	tasks := FromPositional([]PositionalWorkOrder{
		{ID: "first", Title: "First"},
		{ID: "second", Title: "Second", Dependencies: []int{0}},
	})

	data, err := MarshalPositional(tasks)
	if err != nil {
		t.Fatalf("MarshalPositional failed: %v", err)
	}
	back, err := UnmarshalPositional(data)
	if err != nil {
		t.Fatalf("UnmarshalPositional failed: %v", err)
	}

	if back[0].ID != "first" || back[1].ID != "second" {
		t.Errorf("IDs = %s, %s", back[0].ID, back[1].ID)
	}
	if !reflect.DeepEqual(back[1].DependsOn, []string{"first"}) {
		t.Errorf("deps = %v", back[1].DependsOn)
	}

	if _, err := UnmarshalPositional([]byte("{not json")); err == nil {
		t.Error("expected error for malformed input")
	}
}
