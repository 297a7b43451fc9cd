package decompose

import (
	"context"
	"errors"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func TestDefaultBatches_FortyFive(t *testing.T) {
	est := PlanBatches(45, nil, "", DefaultOptions())
	if !est.NeedsBatching {
		t.Fatal("45 tasks should need batching")
	}

	want := []int{10, 10, 10, 10, 5}
	if len(est.Batches) != len(want) {
		t.Fatalf("got %d batches, want %d", len(est.Batches), len(want))
	}
	for i, b := range est.Batches {
		if b.EstimatedTasks != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, b.EstimatedTasks, want[i])
		}
	}
	if est.Batches[4].Name != "Batch 5" {
		t.Errorf("last batch name = %q, want %q", est.Batches[4].Name, "Batch 5")
	}
}

func TestPlanBatches_Threshold(t *testing.T) {
	tests := []struct {
		total int
		want  bool
	}{
		{1, false},
		{20, false},
		{21, true},
		{100, true},
	}
	for _, tt := range tests {
		if got := PlanBatches(tt.total, nil, "", DefaultOptions()).NeedsBatching; got != tt.want {
			t.Errorf("PlanBatches(%d).NeedsBatching = %v, want %v", tt.total, got, tt.want)
		}
	}
}

func TestPlanBatches_UnbatchedDropsProposal(t *testing.T) {
	est := PlanBatches(6, []models.Batch{{Name: "x", EstimatedTasks: 6}}, "small", DefaultOptions())
	if est.NeedsBatching || len(est.Batches) != 0 {
		t.Errorf("small estimate should carry no batches, got %+v", est)
	}
}

func TestSplitBatches(t *testing.T) {
	in := []models.Batch{
		{Name: "Data", EstimatedTasks: 4, FocusAreas: []string{"schema"}},
		{Name: "API", EstimatedTasks: 12, FocusAreas: []string{"handlers"}},
		{Name: "UI", EstimatedTasks: 6},
	}
	got := SplitBatches(in, 5)

	wantSizes := []int{4, 4, 4, 4, 3, 3}
	if len(got) != len(wantSizes) {
		t.Fatalf("got %d batches, want %d", len(got), len(wantSizes))
	}
	for i, b := range got {
		if b.EstimatedTasks != wantSizes[i] {
			t.Errorf("batch %d (%s) size = %d, want %d", i, b.Name, b.EstimatedTasks, wantSizes[i])
		}
		if b.EstimatedTasks > 5 {
			t.Errorf("batch %d exceeds cap: %d", i, b.EstimatedTasks)
		}
	}
	if got[1].Name != "API (part 1/3)" {
		t.Errorf("split name = %q", got[1].Name)
	}
	if len(got[2].FocusAreas) != 1 || got[2].FocusAreas[0] != "handlers" {
		t.Errorf("split batch lost focus areas: %v", got[2].FocusAreas)
	}
}

func TestParseEstimate(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantErr    bool
		wantTotal  int
		wantBatch  bool
		numBatches int
	}{
		{
			name:      "small",
			response:  `{"total_tasks": 6, "rationale": "simple", "batches": []}`,
			wantTotal: 6,
		},
		{
			name:       "large with proposal and prose",
			response:   "Sure!\n" + `{"total_tasks": 24, "batches": [{"name": "core", "estimated_tasks": 5}, {"name": "api", "estimated_tasks": 19}]}` + "\nDone.",
			wantTotal:  24,
			wantBatch:  true,
			numBatches: 5,
		},
		{
			name:       "large without proposal",
			response:   `{"total_tasks": 45}`,
			wantTotal:  45,
			wantBatch:  true,
			numBatches: 5,
		},
		{name: "no object", response: "I cannot estimate this", wantErr: true},
		{name: "malformed", response: `{"total_tasks": "many"}`, wantErr: true},
		{name: "zero tasks", response: `{"total_tasks": 0}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := ParseEstimate(tt.response, DefaultOptions())
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEstimate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if est.TotalTasks != tt.wantTotal {
				t.Errorf("TotalTasks = %d, want %d", est.TotalTasks, tt.wantTotal)
			}
			if est.NeedsBatching != tt.wantBatch {
				t.Errorf("NeedsBatching = %v, want %v", est.NeedsBatching, tt.wantBatch)
			}
			if len(est.Batches) != tt.numBatches {
				t.Errorf("len(Batches) = %d, want %d", len(est.Batches), tt.numBatches)
			}
		})
	}
}

func TestEstimator_FailuresAreFatal(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"generator error", &fakeGenerator{failAt: 1}},
		{"malformed output", &fakeGenerator{responses: []string{"no json"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEstimator(tt.gen, DefaultOptions()).Estimate(context.Background(), &models.TechnicalSpecification{FeatureName: "x"})
			var estErr *EstimationError
			if !errors.As(err, &estErr) {
				t.Fatalf("Estimate() error = %v, want *EstimationError", err)
			}
		})
	}
}

func TestEstimator_PromptMentionsLimits(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"total_tasks": 5}`}}
	spec := &models.TechnicalSpecification{FeatureName: "Login", Objectives: []string{"Let users sign in"}}

	est, err := NewEstimator(gen, DefaultOptions()).Estimate(context.Background(), spec)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if est.NeedsBatching {
		t.Error("5 tasks should not need batching")
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"Login", "Let users sign in", "exceeds 20", "at most 5"} {
		if !contains(prompt, want) {
			t.Errorf("estimation prompt missing %q", want)
		}
	}
}
