package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Estimate is the complexity estimator's verdict for a specification.
type Estimate struct {
	TotalTasks    int            `json:"total_tasks"`
	NeedsBatching bool           `json:"needs_batching"`
	Batches       []models.Batch `json:"batches,omitempty"`
	Rationale     string         `json:"rationale"`
}

// rawEstimate is the JSON object the generator returns for an estimate.
type rawEstimate struct {
	TotalTasks int            `json:"total_tasks"`
	Batches    []models.Batch `json:"batches"`
	Rationale  string         `json:"rationale"`
}

// Estimator predicts how many tasks a specification needs and how to batch them.
type Estimator struct {
	gen  Generator
	opts Options
}

// NewEstimator creates an estimator backed by gen.
func NewEstimator(gen Generator, opts Options) *Estimator {
	return &Estimator{gen: gen, opts: opts.withDefaults()}
}

// Estimate asks the generator for a task count and batch plan. Malformed
// output is an EstimationError; there is no fallback to an unbatched plan.
func (e *Estimator) Estimate(ctx context.Context, spec *models.TechnicalSpecification) (*Estimate, error) {
	resp, err := e.gen.Complete(ctx, BuildEstimationPrompt(spec, e.opts))
	if err != nil {
		return nil, &EstimationError{Err: err}
	}
	est, err := ParseEstimate(resp, e.opts)
	if err != nil {
		return nil, &EstimationError{Err: err}
	}
	return est, nil
}

// ParseEstimate parses estimator output and applies batching rules.
func ParseEstimate(response string, opts Options) (*Estimate, error) {
	opts = opts.withDefaults()

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in estimator response")
	}

	var raw rawEstimate
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal estimate: %w", err)
	}
	if raw.TotalTasks <= 0 {
		return nil, fmt.Errorf("estimated task count must be positive, got %d", raw.TotalTasks)
	}

	return PlanBatches(raw.TotalTasks, raw.Batches, raw.Rationale, opts), nil
}

// PlanBatches decides whether batching is needed and normalizes the batch
// plan. Proposed batches larger than MaxTasksPerBatch are split; without a
// proposal the total is chunked by DefaultBatchSize.
func PlanBatches(total int, proposed []models.Batch, rationale string, opts Options) *Estimate {
	opts = opts.withDefaults()
	est := &Estimate{
		TotalTasks:    total,
		NeedsBatching: total > opts.BatchThreshold,
		Rationale:     rationale,
	}
	if !est.NeedsBatching {
		return est
	}

	var usable []models.Batch
	for _, b := range proposed {
		if b.EstimatedTasks > 0 {
			usable = append(usable, b)
		}
	}
	if len(usable) == 0 {
		est.Batches = DefaultBatches(total, opts.DefaultBatchSize)
		return est
	}
	est.Batches = SplitBatches(usable, opts.MaxTasksPerBatch)
	return est
}

// DefaultBatches divides total into chunks of size, the last one holding the
// remainder.
func DefaultBatches(total, size int) []models.Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches []models.Batch
	for start := 0; start < total; start += size {
		n := size
		if start+n > total {
			n = total - start
		}
		batches = append(batches, models.Batch{
			Name:           fmt.Sprintf("Batch %d", len(batches)+1),
			EstimatedTasks: n,
			FocusAreas:     []string{fmt.Sprintf("tasks %d-%d", start+1, start+n)},
		})
	}
	return batches
}

// SplitBatches splits any batch targeting more than limit tasks into evenly
// sized parts that keep the batch's focus areas.
func SplitBatches(batches []models.Batch, limit int) []models.Batch {
	if limit <= 0 {
		limit = MaxTasksPerBatch
	}
	var out []models.Batch
	for _, b := range batches {
		if b.EstimatedTasks <= limit {
			out = append(out, b)
			continue
		}
		parts := (b.EstimatedTasks + limit - 1) / limit
		base := b.EstimatedTasks / parts
		extra := b.EstimatedTasks % parts
		for i := 0; i < parts; i++ {
			n := base
			if i < extra {
				n++
			}
			out = append(out, models.Batch{
				Name:           fmt.Sprintf("%s (part %d/%d)", b.Name, i+1, parts),
				EstimatedTasks: n,
				FocusAreas:     append([]string(nil), b.FocusAreas...),
			})
		}
	}
	return out
}
