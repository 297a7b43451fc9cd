package decompose

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// PositionalWorkOrder is the serialized form of a work order. Dependencies
// are indices into the list it was rendered with.
type PositionalWorkOrder struct {
	Index                  int              `json:"index"`
	ID                     string           `json:"id"`
	Title                  string           `json:"title"`
	Description            string           `json:"description"`
	AcceptanceCriteria     []string         `json:"acceptance_criteria"`
	FilesInScope           []string         `json:"files_in_scope"`
	ContextBudget          int              `json:"context_budget"`
	RiskLevel              models.RiskLevel `json:"risk_level"`
	Dependencies           []int            `json:"dependencies"`
	UnresolvedDependencies []string         `json:"unresolved_dependencies,omitempty"`
}

// ToPositional renders tasks with positional dependencies. IDs that are not
// in the list are reported as unresolved dependencies.
func ToPositional(tasks []*models.WorkOrder) []PositionalWorkOrder {
	index := indexByID(tasks)
	out := make([]PositionalWorkOrder, len(tasks))
	for i, t := range tasks {
		p := PositionalWorkOrder{
			Index:              i,
			ID:                 t.ID,
			Title:              t.Title,
			Description:        t.Description,
			AcceptanceCriteria: t.AcceptanceCriteria,
			FilesInScope:       t.FilesInScope,
			ContextBudget:      t.ContextBudget,
			RiskLevel:          t.RiskLevel,
			Dependencies:       []int{},
		}
		for _, dep := range t.DependsOn {
			if pos, ok := index[dep]; ok {
				p.Dependencies = append(p.Dependencies, pos)
			} else {
				p.UnresolvedDependencies = append(p.UnresolvedDependencies, dep)
			}
		}
		p.UnresolvedDependencies = append(p.UnresolvedDependencies, t.UnresolvedDeps...)
		out[i] = p
	}
	return out
}

// MarshalPositional renders tasks as an indented positional JSON array.
func MarshalPositional(tasks []*models.WorkOrder) ([]byte, error) {
	data, err := json.MarshalIndent(ToPositional(tasks), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal work orders: %w", err)
	}
	return data, nil
}

// FromPositional converts a positional list back into work orders. Entries
// without an ID are new: they get a fresh ID and may only depend on entries
// listed before them. Entries with an ID were rendered by ToPositional and
// keep any in-range index. Other indices are kept as unresolved references
// for the validator.
func FromPositional(list []PositionalWorkOrder) []*models.WorkOrder {
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.ID
		if ids[i] == "" {
			ids[i] = uuid.New().String()
		}
	}

	now := time.Now()
	tasks := make([]*models.WorkOrder, len(list))
	for i, p := range list {
		t := &models.WorkOrder{
			ID:                 ids[i],
			Title:              p.Title,
			Description:        p.Description,
			AcceptanceCriteria: p.AcceptanceCriteria,
			FilesInScope:       p.FilesInScope,
			ContextBudget:      p.ContextBudget,
			RiskLevel:          models.ParseRiskLevel(string(p.RiskLevel)),
			UnresolvedDeps:     append([]string(nil), p.UnresolvedDependencies...),
			Status:             models.TaskStatusPending,
			CreatedAt:          now,
		}
		limit := len(ids)
		if p.ID == "" {
			limit = i
		}
		for _, dep := range p.Dependencies {
			if dep >= 0 && dep < limit {
				t.DependsOn = appendUnique(t.DependsOn, ids[dep])
				continue
			}
			t.UnresolvedDeps = append(t.UnresolvedDeps, strconv.Itoa(dep))
		}
		tasks[i] = t
	}
	return tasks
}

// UnmarshalPositional parses a positional JSON array.
func UnmarshalPositional(data []byte) ([]*models.WorkOrder, error) {
	var list []PositionalWorkOrder
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unmarshal work orders: %w", err)
	}
	return FromPositional(list), nil
}

func indexByID(tasks []*models.WorkOrder) map[string]int {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}
	return index
}
