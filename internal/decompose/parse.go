package decompose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Generator produces text for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// rawWorkOrder is the JSON structure the generator returns for a single task.
// Dependencies are positional indices into the combined task list, though
// titles are tolerated.
type rawWorkOrder struct {
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	AcceptanceCriteria flexibleList      `json:"acceptance_criteria"`
	FilesInScope       []string          `json:"files_in_scope"`
	ContextBudget      int               `json:"context_budget"`
	RiskLevel          string            `json:"risk_level"`
	Dependencies       []json.RawMessage `json:"dependencies"`
	Unresolved         []string          `json:"unresolved_dependencies"`
}

// flexibleList accepts either a JSON string or an array of strings.
type flexibleList []string

func (f *flexibleList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != "" {
			*f = []string{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*f = list
	return nil
}

// extractArray returns the JSON array between the first '[' and the last ']'.
func extractArray(response string) (string, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return "", fmt.Errorf("no valid JSON array found in response (got %d chars): %q", len(response), preview)
	}
	return response[start : end+1], nil
}

// ParseWorkOrders parses generator output into work orders with stable IDs.
// prior holds tasks already emitted by earlier batches: new tasks are
// numbered after them and positional references may point into them.
// A positional reference resolves only to a task listed before the one
// making it. Anything else is kept in UnresolvedDeps.
func ParseWorkOrders(response string, prior []*models.WorkOrder) ([]*models.WorkOrder, error) {
	jsonStr, err := extractArray(response)
	if err != nil {
		return nil, err
	}

	var raws []rawWorkOrder
	if err := json.Unmarshal([]byte(jsonStr), &raws); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("empty task list returned")
	}

	offset := len(prior)
	table := make([]string, 0, offset+len(raws))
	titleToID := make(map[string]string)
	for _, p := range prior {
		table = append(table, p.ID)
		titleToID[strings.ToLower(p.Title)] = p.ID
	}

	tasks := make([]*models.WorkOrder, len(raws))
	now := time.Now()
	for i, r := range raws {
		if strings.TrimSpace(r.Title) == "" {
			return nil, fmt.Errorf("task %d has no title", offset+i)
		}
		id := uuid.New().String()
		table = append(table, id)
		if _, dup := titleToID[strings.ToLower(r.Title)]; !dup {
			titleToID[strings.ToLower(r.Title)] = id
		}
		tasks[i] = &models.WorkOrder{
			ID:                 id,
			Title:              r.Title,
			Description:        r.Description,
			AcceptanceCriteria: []string(r.AcceptanceCriteria),
			FilesInScope:       r.FilesInScope,
			ContextBudget:      r.ContextBudget,
			RiskLevel:          models.ParseRiskLevel(r.RiskLevel),
			UnresolvedDeps:     append([]string(nil), r.Unresolved...),
			Status:             models.TaskStatusPending,
			CreatedAt:          now,
		}
	}

	for i, r := range raws {
		for _, dep := range r.Dependencies {
			ref := strings.TrimSpace(string(dep))
			if s, err := strconv.Unquote(ref); err == nil {
				ref = strings.TrimSpace(s)
			}
			if id, ok := resolveRef(ref, table[:offset+i], titleToID); ok {
				tasks[i].DependsOn = appendUnique(tasks[i].DependsOn, id)
				continue
			}
			tasks[i].UnresolvedDeps = append(tasks[i].UnresolvedDeps, ref)
		}
	}

	return tasks, nil
}

// resolveRef translates a positional index into table, or a task title,
// into an ID.
func resolveRef(ref string, table []string, titleToID map[string]string) (string, bool) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 0 && n < len(table) {
			return table[n], true
		}
		return "", false
	}
	id, ok := titleToID[strings.ToLower(ref)]
	return id, ok
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
