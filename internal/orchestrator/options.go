// Package orchestrator runs the full pipeline for a specification: estimate,
// decompose, validate, then route, generate and refine every work order in
// dependency order with bounded parallelism and serialized budget
// reservation.
package orchestrator

import (
	"context"

	"github.com/ShayCichocki/dispatch/internal/budget"
	"github.com/ShayCichocki/dispatch/internal/decompose"
	"github.com/ShayCichocki/dispatch/internal/diagnostic"
	"github.com/ShayCichocki/dispatch/internal/metrics"
	"github.com/ShayCichocki/dispatch/internal/refine"
	"github.com/ShayCichocki/dispatch/internal/routing"
	"github.com/ShayCichocki/dispatch/internal/state"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Generator is the generation service boundary.
type Generator interface {
	Generate(ctx context.Context, prompt string, proposer models.ProposerProfile) (content string, inputUnits int, outputUnits int, err error)
}

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Planner answers estimation and decomposition prompts.
	Planner decompose.Generator
	// Generator produces and refines artifacts.
	Generator Generator
	// Router selects proposers and drives the retry ladder.
	Router *routing.Manager
	// Budget reserves and settles spend for every generation call.
	Budget budget.Service
	// Checker produces diagnostics for artifacts.
	Checker diagnostic.Checker
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxParallel    int
	maxAttempts    int
	maxCycles      int
	lowImprovement float64
	decomposeOpts  decompose.Options
	capacity       Capacity
	contracts      refine.ContractCheckFunc
	logger         *DebugLogger
	metrics        *metrics.Metrics
	runs           state.RunStore
	onEvent        EventHandler
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		maxParallel:    3,
		maxAttempts:    routing.MaxAttempts,
		maxCycles:      refine.DefaultMaxCycles,
		lowImprovement: refine.DefaultLowImprovement,
		decomposeOpts:  decompose.DefaultOptions(),
	}
}

// WithMaxParallel sets the maximum number of work orders executed at once.
func WithMaxParallel(n int) Option {
	return func(o *orchestratorOptions) { o.maxParallel = n }
}

// WithMaxAttempts caps generation attempts per work order. The retry ladder
// escalates on its own after routing.MaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(o *orchestratorOptions) { o.maxAttempts = n }
}

// WithMaxCycles sets the refinement cycle limit.
func WithMaxCycles(n int) Option {
	return func(o *orchestratorOptions) { o.maxCycles = n }
}

// WithLowImprovementThreshold sets the refinement warning threshold.
func WithLowImprovementThreshold(rate float64) Option {
	return func(o *orchestratorOptions) { o.lowImprovement = rate }
}

// WithDecomposeOptions overrides the tuned decomposition constants.
func WithDecomposeOptions(opts decompose.Options) Option {
	return func(o *orchestratorOptions) { o.decomposeOpts = opts }
}

// WithCapacity sets the external worktree capacity pool.
func WithCapacity(c Capacity) Option {
	return func(o *orchestratorOptions) { o.capacity = c }
}

// WithContracts enables contract checking during refinement.
func WithContracts(fn refine.ContractCheckFunc) Option {
	return func(o *orchestratorOptions) { o.contracts = fn }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestratorOptions) { o.metrics = m }
}

// WithRunStore persists run records.
func WithRunStore(s state.RunStore) Option {
	return func(o *orchestratorOptions) { o.runs = s }
}

// WithEventHandler sets the progress callback.
func WithEventHandler(h EventHandler) Option {
	return func(o *orchestratorOptions) { o.onEvent = h }
}
