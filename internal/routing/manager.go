package routing

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Manager wires the routing policy, retry ladder, hard-stop detector and
// complexity analyzer around one proposer set. It is constructed once and
// shared by reference.
type Manager struct {
	policy    *Policy
	ladder    *Ladder
	detector  *HardStopDetector
	analyzer  *Analyzer
	proposers []models.ProposerProfile
	limits    models.BudgetLimits
	debugLog  func(format string, args ...interface{})
}

// ManagerConfig configures a Manager. Nil components get defaults.
type ManagerConfig struct {
	Proposers        []models.ProposerProfile
	Limits           models.BudgetLimits
	HardStopProposer string
	Detector         *HardStopDetector
	Weights          WeightSource
}

// NewManager validates the configuration and builds a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	proposers := cfg.Proposers
	if len(proposers) == 0 {
		proposers = DefaultProposers()
	}
	if err := ValidateProposers(proposers); err != nil {
		return nil, fmt.Errorf("invalid proposers: %w", err)
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid budget limits: %w", err)
	}

	detector := cfg.Detector
	if detector == nil {
		detector = NewHardStopDetector()
	}

	return &Manager{
		policy:    NewPolicy(cfg.HardStopProposer),
		ladder:    NewLadder(proposers),
		detector:  detector,
		analyzer:  NewAnalyzer(cfg.Weights),
		proposers: append([]models.ProposerProfile(nil), proposers...),
		limits:    cfg.Limits,
	}, nil
}

// SetDebugLog sets a debug logging function for routing tracing.
func (m *Manager) SetDebugLog(fn func(format string, args ...interface{})) {
	m.debugLog = fn
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.debugLog != nil {
		m.debugLog(format, args...)
	}
}

// Limits returns the configured budget limits.
func (m *Manager) Limits() models.BudgetLimits {
	return m.limits
}

// Proposers returns a copy of the proposer profiles.
func (m *Manager) Proposers() []models.ProposerProfile {
	return append([]models.ProposerProfile(nil), m.proposers...)
}

// Proposer looks up a profile by name.
func (m *Manager) Proposer(name string) (models.ProposerProfile, bool) {
	for _, p := range m.proposers {
		if p.Name == name {
			return p, true
		}
	}
	return models.ProposerProfile{}, false
}

// BuildContext constructs a fresh routing context for a work order.
func (m *Manager) BuildContext(task *models.WorkOrder, spend float64) models.RoutingContext {
	text := TaskText(task)
	required, why := m.detector.Detect(text)
	if required {
		m.logf("[routing] task %s hard stop (%s)", task.ID, why)
	}
	return models.RoutingContext{
		TaskDescription:     text,
		ComplexityScore:     m.analyzer.Score(task),
		ContextRequirements: append([]string(nil), task.FilesInScope...),
		HardStopRequired:    required,
		CurrentDailySpend:   spend,
	}
}

// Route routes a routing context with the manager's proposers and limits.
func (m *Manager) Route(rc models.RoutingContext) (*models.RoutingDecision, error) {
	decision, err := m.policy.Route(rc, m.proposers, m.limits)
	if err != nil {
		m.logf("[routing] refused: %v", err)
		return nil, err
	}
	m.logf("[routing] selected %s (strategy=%s, complexity=%.2f, budget=%s)",
		decision.SelectedProposer, decision.Metadata.Strategy, rc.ComplexityScore, decision.Metadata.BudgetStatus)
	return decision, nil
}

// RouteTask builds a context for task and routes it.
func (m *Manager) RouteTask(task *models.WorkOrder, spend float64) (*models.RoutingDecision, error) {
	decision, err := m.Route(m.BuildContext(task, spend))
	if err != nil {
		return nil, err
	}
	decision.TaskID = task.ID
	return decision, nil
}

// NextAttempt delegates to the retry ladder.
func (m *Manager) NextAttempt(proposer string, attempt int, reason string) models.RetryStrategy {
	return m.ladder.NextAttempt(proposer, attempt, reason)
}

// TaskText is the text the hard-stop detector inspects for a work order.
func TaskText(task *models.WorkOrder) string {
	parts := []string{task.Title, task.Description}
	parts = append(parts, task.AcceptanceCriteria...)
	return strings.Join(parts, "\n")
}
