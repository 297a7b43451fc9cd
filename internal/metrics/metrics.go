// Package metrics provides Prometheus instrumentation for routing, budget,
// generation and refinement events. Metrics live on a private registry and
// are exported to a textfile at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

const namespace = "dispatch"

// Reservation outcomes.
const (
	ReservationAccepted  = "accepted"
	ReservationRefused   = "refused"
	ReservationCommitted = "committed"
	ReservationCancelled = "cancelled"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RoutingDecisions    *prometheus.CounterVec
	BudgetReservations  *prometheus.CounterVec
	BudgetSpend         prometheus.Counter
	GenerationTokens    *prometheus.CounterVec
	RefinementCycles    *prometheus.CounterVec
	RefinementOutcomes  *prometheus.CounterVec
	ResidualDiagnostics prometheus.Histogram
	TaskOutcomes        *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.RoutingDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Routing decisions by strategy and selected proposer",
		},
		[]string{"strategy", "proposer"},
	)

	m.BudgetReservations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "reservations_total",
			Help:      "Budget reservation events by outcome",
		},
		[]string{"outcome"},
	)

	m.BudgetSpend = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "committed_dollars_total",
			Help:      "Dollars committed to the budget ledger",
		},
	)

	m.GenerationTokens = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "tokens_total",
			Help:      "Tokens used by proposer and direction",
		},
		[]string{"proposer", "direction"},
	)

	m.RefinementCycles = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refinement",
			Name:      "cycles_total",
			Help:      "Refinement cycles executed by strategy",
		},
		[]string{"strategy"},
	)

	m.RefinementOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refinement",
			Name:      "outcomes_total",
			Help:      "Refinement results by outcome",
		},
		[]string{"outcome"},
	)

	m.ResidualDiagnostics = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refinement",
			Name:      "residual_diagnostics",
			Help:      "Diagnostics remaining after refinement",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	m.TaskOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "tasks_total",
			Help:      "Work order outcomes by status",
		},
		[]string{"status"},
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRouting records a routing decision.
func (m *Metrics) ObserveRouting(d *models.RoutingDecision) {
	if m == nil || d == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(d.Metadata.Strategy, d.SelectedProposer).Inc()
}

// ObserveReservation records a budget reservation event.
func (m *Metrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.BudgetReservations.WithLabelValues(outcome).Inc()
}

// ObserveCommit records committed spend.
func (m *Metrics) ObserveCommit(cost float64) {
	if m == nil {
		return
	}
	m.BudgetReservations.WithLabelValues(ReservationCommitted).Inc()
	if cost > 0 {
		m.BudgetSpend.Add(cost)
	}
}

// ObserveGeneration records token usage for one generation call.
func (m *Metrics) ObserveGeneration(proposer string, in, out int) {
	if m == nil {
		return
	}
	m.GenerationTokens.WithLabelValues(proposer, "input").Add(float64(in))
	m.GenerationTokens.WithLabelValues(proposer, "output").Add(float64(out))
}

// ObserveRefinement records a refinement result and its cycles.
func (m *Metrics) ObserveRefinement(r *models.RefinementResult) {
	if m == nil || r == nil {
		return
	}
	for _, c := range r.History {
		m.RefinementCycles.WithLabelValues(c.Strategy).Inc()
	}
	outcome := "success"
	if r.Partial() {
		outcome = "partial"
	}
	m.RefinementOutcomes.WithLabelValues(outcome).Inc()
	m.ResidualDiagnostics.Observe(float64(r.FinalErrors))
}

// ObserveTask records a work order's final status.
func (m *Metrics) ObserveTask(status models.TaskStatus) {
	if m == nil {
		return
	}
	m.TaskOutcomes.WithLabelValues(string(status)).Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
