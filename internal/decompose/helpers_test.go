package decompose

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// fakeGenerator replays scripted responses and records prompts.
type fakeGenerator struct {
	responses []string
	failAt    int // 1-based call that fails; 0 never fails
	prompts   []string
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.prompts = append(f.prompts, prompt)
	n := len(f.prompts)
	if n == f.failAt {
		return "", errors.New("provider unavailable")
	}
	if n > len(f.responses) {
		return "", fmt.Errorf("unexpected call %d", n)
	}
	return f.responses[n-1], nil
}

// taskJSON renders n simple tasks. deps maps a local position to its
// dependency indices.
func taskJSON(prefix string, n int, deps map[int][]int) string {
	s := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		d := "[]"
		if ds, ok := deps[i]; ok {
			d = "["
			for j, x := range ds {
				if j > 0 {
					d += ","
				}
				d += fmt.Sprint(x)
			}
			d += "]"
		}
		s += fmt.Sprintf(`{"title":"%s %d","description":"Implement %s%dHandler()","acceptance_criteria":["works"],"files_in_scope":["src/%s_%d.ts"],"context_budget":1000,"risk_level":"low","dependencies":%s}`,
			prefix, i, prefix, i, prefix, i, d)
	}
	return s + "]"
}

func positions(tasks []*models.WorkOrder) [][]int {
	out := make([][]int, len(tasks))
	for i, p := range ToPositional(tasks) {
		out[i] = p.Dependencies
	}
	return out
}

func mkTask(id string, deps ...string) *models.WorkOrder {
	return &models.WorkOrder{ID: id, Title: "task " + id, DependsOn: deps}
}
