package refine

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/dispatch/internal/diagnostic"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

const (
	// DefaultMaxCycles is the number of refinement cycles when none is given.
	DefaultMaxCycles = 3
	// DefaultLowImprovement is the improvement rate under which a cycle is
	// logged as a warning.
	DefaultLowImprovement = 0.25
	// MaxZeroImprovementCycles consecutive cycles without net reduction
	// abort the loop.
	MaxZeroImprovementCycles = 2
)

// ProposeFunc regenerates an artifact from a cycle prompt.
type ProposeFunc func(ctx context.Context, prompt string) (string, error)

// ContractCheckFunc returns the contract violations of an artifact and the
// overall risk level.
type ContractCheckFunc func(artifact string) ([]models.BreakingChange, string)

// Loop drives an artifact through diagnostic-guided regeneration cycles.
type Loop struct {
	checker        diagnostic.Checker
	lowImprovement float64
	debugLog       func(format string, args ...interface{})
}

// NewLoop creates a refinement loop that checks artifacts with checker.
func NewLoop(checker diagnostic.Checker) *Loop {
	return &Loop{
		checker:        checker,
		lowImprovement: DefaultLowImprovement,
	}
}

// SetDebugLog sets the debug logging function.
func (l *Loop) SetDebugLog(fn func(format string, args ...interface{})) {
	l.debugLog = fn
}

// SetLowImprovementThreshold overrides the low-improvement warning threshold.
func (l *Loop) SetLowImprovementThreshold(rate float64) {
	if rate > 0 {
		l.lowImprovement = rate
	}
}

func (l *Loop) logf(format string, args ...interface{}) {
	if l.debugLog != nil {
		l.debugLog(format, args...)
	}
}

// Refine sanitizes the artifact and, while diagnostics or contract violations
// remain, regenerates it through propose for up to maxCycles cycles.
// maxCycles <= 0 means DefaultMaxCycles. contracts may be nil, in which case
// contract checking is skipped.
//
// The result always carries the cycle history. A non-empty residual is
// reported in the result, not as an error. On cancellation the partial result
// is returned together with the context error.
func (l *Loop) Refine(
	ctx context.Context,
	initial string,
	task *models.WorkOrder,
	propose ProposeFunc,
	maxCycles int,
	contracts ContractCheckFunc,
) (*models.RefinementResult, error) {
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}

	result := &models.RefinementResult{History: []models.CycleRecord{}}
	artifact := Sanitize(initial)

	diags, err := l.diagnose(ctx, artifact)
	if err != nil {
		l.finish(result, artifact, nil, nil, contracts != nil)
		result.Success = false
		return result, err
	}
	violations := checkContracts(contracts, artifact)
	result.InitialErrors = len(diags)
	if contracts != nil {
		result.ContractViolations = []int{len(violations)}
	}

	if len(diags) == 0 && len(violations) == 0 {
		l.finish(result, artifact, diags, violations, contracts != nil)
		return result, nil
	}

	zeroStreak := 0
	prior := -1.0
	for cycle := 1; cycle <= maxCycles; cycle++ {
		select {
		case <-ctx.Done():
			l.logf("[refine] cancelled before cycle %d", cycle)
			l.finish(result, artifact, diags, violations, contracts != nil)
			return result, ctx.Err()
		default:
		}

		strategy := StrategyFor(cycle)
		prompt := BuildCyclePrompt(CycleInput{
			Cycle:            cycle,
			MaxCycles:        maxCycles,
			Task:             task,
			Artifact:         artifact,
			Diagnostics:      diags,
			Violations:       violations,
			PriorImprovement: prior,
		})

		out, err := propose(ctx, prompt)
		if err != nil {
			l.finish(result, artifact, diags, violations, contracts != nil)
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, fmt.Errorf("refinement cycle %d: %w", cycle, err)
		}

		next := Sanitize(out)
		nextDiags, err := l.diagnose(ctx, next)
		if err != nil {
			l.finish(result, artifact, diags, violations, contracts != nil)
			return result, err
		}
		nextViolations := checkContracts(contracts, next)

		before := len(diags) + len(violations)
		after := len(nextDiags) + len(nextViolations)
		rate := improvementRate(before, after)

		result.History = append(result.History, models.CycleRecord{
			Cycle:              cycle,
			ErrorsBefore:       len(diags),
			ErrorsAfter:        len(nextDiags),
			ImprovementRate:    rate,
			Strategy:           strategy,
			ContractViolations: len(nextViolations),
		})
		if contracts != nil {
			result.ContractViolations = append(result.ContractViolations, len(nextViolations))
		}
		l.logf("[refine] cycle %d (%s): %d -> %d (%.0f%%)", cycle, strategy, before, after, rate*100)

		artifact, diags, violations = next, nextDiags, nextViolations
		prior = rate

		if after == 0 {
			break
		}

		if after >= before {
			zeroStreak++
		} else {
			zeroStreak = 0
		}
		if zeroStreak >= MaxZeroImprovementCycles {
			l.logf("[refine] aborting after %d consecutive cycles without improvement", zeroStreak)
			break
		}
		if rate < l.lowImprovement {
			l.logf("[refine] WARNING: cycle %d improvement %.0f%% below %.0f%%", cycle, rate*100, l.lowImprovement*100)
		}
	}

	l.finish(result, artifact, diags, violations, contracts != nil)
	return result, nil
}

// diagnose runs the checker. Checker failures other than cancellation become
// a single unknown diagnostic so the loop keeps going.
func (l *Loop) diagnose(ctx context.Context, artifact string) ([]models.Diagnostic, error) {
	diags, err := l.checker.CheckDiagnostics(ctx, artifact)
	if err == nil {
		return diags, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	l.logf("[refine] diagnostic check failed: %v", err)
	return []models.Diagnostic{diagnostic.Unknown(err.Error())}, nil
}

func (l *Loop) finish(result *models.RefinementResult, artifact string, diags []models.Diagnostic, violations []models.BreakingChange, contractAware bool) {
	result.FinalContent = artifact
	result.RefinementCount = len(result.History)
	result.FinalErrors = len(diags)
	result.RemainingDiagnostics = diags
	result.RemainingViolations = violations
	result.Success = len(diags) == 0 && len(violations) == 0
	if !contractAware {
		result.ContractViolations = nil
	}
}

func checkContracts(fn ContractCheckFunc, artifact string) []models.BreakingChange {
	if fn == nil {
		return nil
	}
	violations, _ := fn(artifact)
	return violations
}

// improvementRate is the fraction of problems resolved by a cycle. It is
// negative when a cycle made things worse.
func improvementRate(before, after int) float64 {
	if before == 0 {
		return 0
	}
	return float64(before-after) / float64(before)
}
