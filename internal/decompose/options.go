package decompose

// Tuned constants. They are exported so configuration can override them.
const (
	// BatchThreshold is the task count above which decomposition is batched.
	BatchThreshold = 20
	// MaxTasksPerBatch caps how many tasks one generation call is asked for.
	MaxTasksPerBatch = 5
	// DefaultBatchSize is the chunk size used when the estimator proposes no batches.
	DefaultBatchSize = 10
	// MinTasks and MaxTasks bound the task count of an unbatched decomposition.
	MinTasks = 3
	MaxTasks = 8
	// ContextUnitsPerDollar converts summed context budgets into dollars.
	ContextUnitsPerDollar = 100000.0
	// CostVarianceTolerance is the allowed relative difference between the
	// computed cost and the specification's budget estimate.
	CostVarianceTolerance = 0.5
	// SynthesizedContextBudget is the context budget of generated prerequisites.
	SynthesizedContextBudget = 2000
	// MaxSummaryExports caps exports listed per task in a context summary.
	MaxSummaryExports = 3
)

// Options tunes estimation and decomposition.
type Options struct {
	BatchThreshold        int
	MaxTasksPerBatch      int
	DefaultBatchSize      int
	MinTasks              int
	MaxTasks              int
	ContextUnitsPerDollar float64
	CostVarianceTolerance float64
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		BatchThreshold:        BatchThreshold,
		MaxTasksPerBatch:      MaxTasksPerBatch,
		DefaultBatchSize:      DefaultBatchSize,
		MinTasks:              MinTasks,
		MaxTasks:              MaxTasks,
		ContextUnitsPerDollar: ContextUnitsPerDollar,
		CostVarianceTolerance: CostVarianceTolerance,
	}
}

// withDefaults fills zero fields with the tuned defaults.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchThreshold <= 0 {
		o.BatchThreshold = d.BatchThreshold
	}
	if o.MaxTasksPerBatch <= 0 {
		o.MaxTasksPerBatch = d.MaxTasksPerBatch
	}
	if o.DefaultBatchSize <= 0 {
		o.DefaultBatchSize = d.DefaultBatchSize
	}
	if o.MinTasks <= 0 {
		o.MinTasks = d.MinTasks
	}
	if o.MaxTasks <= 0 {
		o.MaxTasks = d.MaxTasks
	}
	if o.ContextUnitsPerDollar <= 0 {
		o.ContextUnitsPerDollar = d.ContextUnitsPerDollar
	}
	if o.CostVarianceTolerance <= 0 {
		o.CostVarianceTolerance = d.CostVarianceTolerance
	}
	return o
}
