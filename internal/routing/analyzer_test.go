package routing

import (
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func TestAnalyzer_Score(t *testing.T) {
	a := NewAnalyzer(nil)

	simple := &models.WorkOrder{
		Title:              "Fix label",
		FilesInScope:       []string{"src/label.ts"},
		AcceptanceCriteria: []string{"label reads Save"},
		ContextBudget:      2000,
		RiskLevel:          models.RiskLow,
	}
	complex := &models.WorkOrder{
		Title:              "Concurrent cache refactor",
		Description:        "Refactor the cache for concurrent access and improve performance of the protocol parser",
		FilesInScope:       []string{"a", "b", "c", "d", "e", "f"},
		AcceptanceCriteria: []string{"1", "2", "3", "4", "5", "6"},
		ContextBudget:      40000,
		RiskLevel:          models.RiskHigh,
	}

	s1, s2 := a.Score(simple), a.Score(complex)
	if s1 >= 0.3 {
		t.Errorf("simple score = %.2f, want < 0.3", s1)
	}
	if s2 != 1 {
		t.Errorf("saturated score = %.2f, want 1", s2)
	}
	if got := a.Score(&models.WorkOrder{}); got < 0 || got > 1 {
		t.Errorf("empty task score %.2f out of range", got)
	}
}

type fakeWeights struct{ w Weights }

func (f fakeWeights) Weights() Weights { return f.w }

func TestAnalyzer_WeightSource(t *testing.T) {
	task := &models.WorkOrder{RiskLevel: models.RiskHigh, FilesInScope: []string{"a"}}

	riskOnly := NewAnalyzer(fakeWeights{Weights{Risk: 1}})
	if got := riskOnly.Score(task); got != 1 {
		t.Errorf("risk-only score = %v, want 1", got)
	}

	filesOnly := NewAnalyzer(StaticWeights(Weights{Files: 2}))
	if got := filesOnly.Score(task); got != 0.2 {
		t.Errorf("files-only score = %v, want 0.2", got)
	}

	zero := NewAnalyzer(StaticWeights(Weights{}))
	if got := zero.Score(task); got != 0 {
		t.Errorf("zero weights score = %v, want 0", got)
	}
}
