package graph

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func wo(id string, deps ...string) *models.WorkOrder {
	return &models.WorkOrder{ID: id, Title: "task " + id, DependsOn: deps}
}

func ids(tasks []*models.WorkOrder) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []*models.WorkOrder
		wantErr error
		anyErr  bool
	}{
		{"linear", []*models.WorkOrder{wo("a"), wo("b", "a"), wo("c", "b")}, nil, false},
		{"cycle", []*models.WorkOrder{wo("a", "c"), wo("b", "a"), wo("c", "b")}, ErrCycleDetected, true},
		{"self", []*models.WorkOrder{wo("a", "a")}, ErrCycleDetected, true},
		{"unknown dep", []*models.WorkOrder{wo("a", "zzz")}, nil, true},
		{"duplicate id", []*models.WorkOrder{wo("a"), wo("a")}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Build(tt.tasks)
			if (err != nil) != tt.anyErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.anyErr)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTopologicalSort(t *testing.T) {
	g := New()
	if err := g.Build([]*models.WorkOrder{wo("c", "b"), wo("a"), wo("b", "a")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort failed: %v", err)
	}
	if !equal(order, []string{"a", "b", "c"}) {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

func TestReadyAndFinish(t *testing.T) {
	g := New()
	tasks := []*models.WorkOrder{wo("a"), wo("b"), wo("c", "a", "b"), wo("d", "c")}
	if err := g.Build(tasks); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := ids(g.Ready()); !equal(got, []string{"a", "b"}) {
		t.Fatalf("Ready() = %v, want [a b]", got)
	}
	if got := g.Ready(); len(got) != 0 {
		t.Errorf("Ready() handed out started tasks: %v", ids(got))
	}

	g.MarkFinished("a", models.TaskStatusSucceeded)
	if got := g.Ready(); len(got) != 0 {
		t.Errorf("c released before b finished: %v", ids(got))
	}

	g.MarkFinished("b", models.TaskStatusPartial)
	if got := ids(g.Ready()); !equal(got, []string{"c"}) {
		t.Errorf("Ready() = %v, want [c]", got)
	}

	if g.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", g.Pending())
	}
}

func TestBlocked(t *testing.T) {
	g := New()
	tasks := []*models.WorkOrder{wo("a"), wo("b", "a"), wo("c", "b"), wo("d")}
	if err := g.Build(tasks); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	g.Ready()
	g.MarkFinished("a", models.TaskStatusEscalated)

	if got := ids(g.Blocked()); !equal(got, []string{"b", "c"}) {
		t.Errorf("Blocked() = %v, want [b c]", got)
	}
	if got := g.Ready(); len(got) != 0 {
		t.Errorf("Ready() after block = %v", ids(got))
	}

	g.MarkFinished("d", models.TaskStatusSucceeded)
	if g.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", g.Pending())
	}
}

func TestDependents(t *testing.T) {
	g := New()
	if err := g.Build([]*models.WorkOrder{wo("a"), wo("b", "a"), wo("c", "a")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := g.Dependents("a"); !equal(got, []string{"b", "c"}) {
		t.Errorf("Dependents(a) = %v", got)
	}
	if got := g.Dependencies("b"); !equal(got, []string{"a"}) {
		t.Errorf("Dependencies(b) = %v", got)
	}
	if g.Task("c") == nil || g.Size() != 3 {
		t.Error("Task/Size mismatch")
	}
	if got := ids(g.Unstarted()); !equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Unstarted() = %v", got)
	}
}
