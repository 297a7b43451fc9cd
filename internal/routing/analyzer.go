package routing

import (
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Weights control how task signals combine into a complexity score.
type Weights struct {
	Files         float64 `json:"files" mapstructure:"files"`
	Criteria      float64 `json:"criteria" mapstructure:"criteria"`
	ContextBudget float64 `json:"context_budget" mapstructure:"context_budget"`
	Risk          float64 `json:"risk" mapstructure:"risk"`
	Description   float64 `json:"description" mapstructure:"description"`
}

// DefaultWeights are used when no weight source is supplied.
var DefaultWeights = Weights{
	Files:         0.25,
	Criteria:      0.15,
	ContextBudget: 0.25,
	Risk:          0.25,
	Description:   0.10,
}

// WeightSource supplies scoring weights. A recalibration job implements it
// to feed learned weights into routing.
type WeightSource interface {
	Weights() Weights
}

// StaticWeights is a fixed WeightSource.
type StaticWeights Weights

// Weights returns the fixed weights.
func (s StaticWeights) Weights() Weights { return Weights(s) }

// Saturation points for each signal.
const (
	filesSaturation    = 5
	criteriaSaturation = 6
	budgetSaturation   = 32000
	signalSaturation   = 3
)

// complexitySignals are description terms that suggest harder work.
var complexitySignals = []string{
	"concurren",
	"distributed",
	"refactor",
	"algorithm",
	"performance",
	"integration",
	"protocol",
	"transaction",
	"cache",
	"parser",
}

// Analyzer scores work orders into [0,1].
type Analyzer struct {
	source WeightSource
}

// NewAnalyzer creates an analyzer. A nil source uses DefaultWeights.
func NewAnalyzer(source WeightSource) *Analyzer {
	if source == nil {
		source = StaticWeights(DefaultWeights)
	}
	return &Analyzer{source: source}
}

// Score returns the complexity score of a work order.
func (a *Analyzer) Score(w *models.WorkOrder) float64 {
	weights := a.source.Weights()
	total := weights.Files + weights.Criteria + weights.ContextBudget + weights.Risk + weights.Description
	if total <= 0 {
		return 0
	}

	score := weights.Files*ratio(len(w.FilesInScope), filesSaturation) +
		weights.Criteria*ratio(len(w.AcceptanceCriteria), criteriaSaturation) +
		weights.ContextBudget*ratio(w.ContextBudget, budgetSaturation) +
		weights.Risk*riskFactor(w.RiskLevel) +
		weights.Description*ratio(countSignals(w.Title+" "+w.Description), signalSaturation)

	return clamp(score / total)
}

func ratio(n, saturation int) float64 {
	if n <= 0 {
		return 0
	}
	if n >= saturation {
		return 1
	}
	return float64(n) / float64(saturation)
}

func riskFactor(r models.RiskLevel) float64 {
	switch r {
	case models.RiskHigh:
		return 1.0
	case models.RiskMedium:
		return 0.5
	default:
		return 0.1
	}
}

func countSignals(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, s := range complexitySignals {
		if strings.Contains(lower, s) {
			n++
		}
	}
	return n
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
