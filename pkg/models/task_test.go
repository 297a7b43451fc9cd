package models

import "testing"

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"succeeded is valid", TaskStatusSucceeded, true},
		{"partial is valid", TaskStatusPartial, true},
		{"escalated is valid", TaskStatusEscalated, true},
		{"budget_refused is valid", TaskStatusBudgetRefused, true},
		{"skipped is valid", TaskStatusSkipped, true},
		{"cancelled is valid", TaskStatusCancelled, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"done is invalid", TaskStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Completed(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		complete bool
		terminal bool
	}{
		{TaskStatusPending, false, false},
		{TaskStatusInProgress, false, false},
		{TaskStatusSucceeded, true, true},
		{TaskStatusPartial, true, true},
		{TaskStatusEscalated, false, true},
		{TaskStatusBudgetRefused, false, true},
		{TaskStatusSkipped, false, true},
		{TaskStatusCancelled, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Completed(); got != tt.complete {
				t.Errorf("Completed() = %v, want %v", got, tt.complete)
			}
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestWorkOrder_PrimaryFile(t *testing.T) {
	w := &WorkOrder{}
	if got := w.PrimaryFile(); got != "" {
		t.Errorf("PrimaryFile() on empty scope = %q, want empty", got)
	}
	w.FilesInScope = []string{"internal/auth/login.go", "internal/auth/login_test.go"}
	if got := w.PrimaryFile(); got != "internal/auth/login.go" {
		t.Errorf("PrimaryFile() = %q, want internal/auth/login.go", got)
	}
}

func TestWorkOrder_Clone(t *testing.T) {
	orig := &WorkOrder{
		ID:           "a",
		FilesInScope: []string{"a.go"},
		DependsOn:    []string{"b"},
	}
	c := orig.Clone()
	c.FilesInScope[0] = "changed.go"
	c.DependsOn = append(c.DependsOn, "c")

	if orig.FilesInScope[0] != "a.go" {
		t.Errorf("Clone shares FilesInScope backing array")
	}
	if len(orig.DependsOn) != 1 {
		t.Errorf("Clone shares DependsOn, got %v", orig.DependsOn)
	}
}
