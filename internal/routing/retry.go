package routing

import (
	"fmt"
	"log"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// MaxAttempts is the number of attempts after which the ladder escalates.
const MaxAttempts = 3

// Ladder decides what happens after a failed attempt:
//   - attempt 1 failed: retry the same proposer with failure context
//   - attempt 2 failed: switch to the next strictly higher-ceiling proposer,
//     or escalate when none exists
//   - attempt 3 or later failed: escalate
type Ladder struct {
	proposers []models.ProposerProfile
}

// NewLadder creates a ladder over the given proposer profiles.
func NewLadder(proposers []models.ProposerProfile) *Ladder {
	return &Ladder{proposers: append([]models.ProposerProfile(nil), proposers...)}
}

// NextAttempt returns the strategy after attempt (1-indexed) failed on
// proposer for reason.
func (l *Ladder) NextAttempt(proposer string, attempt int, reason string) models.RetryStrategy {
	failure := fmt.Sprintf("Attempt %d with %s failed: %s", attempt, proposer, reason)
	next := attempt + 1

	switch {
	case attempt <= 1:
		log.Printf("[retry] %s: attempt %d failed, retrying same proposer", proposer, attempt)
		return models.RetryStrategy{
			Action:         models.RetrySameProposer,
			Proposer:       proposer,
			NextAttempt:    next,
			FailureContext: failure,
			Reason:         "first failure: retry with failure context",
		}
	case attempt == 2:
		if higher, ok := l.higherCeiling(proposer); ok {
			log.Printf("[retry] %s: attempt %d failed, switching to %s", proposer, attempt, higher.Name)
			return models.RetryStrategy{
				Action:         models.RetrySwitchProposer,
				Proposer:       higher.Name,
				NextAttempt:    next,
				FailureContext: failure,
				Reason:         fmt.Sprintf("second failure: switching to higher-ceiling proposer %s", higher.Name),
			}
		}
		log.Printf("[retry] %s: attempt %d failed, no higher-ceiling proposer, escalating", proposer, attempt)
		return models.RetryStrategy{
			Action:         models.RetryEscalate,
			NextAttempt:    next,
			FailureContext: failure,
			Reason:         "second failure: no higher-ceiling proposer available",
		}
	default:
		log.Printf("[retry] %s: attempt %d failed, escalating to human", proposer, attempt)
		return models.RetryStrategy{
			Action:         models.RetryEscalate,
			NextAttempt:    next,
			FailureContext: failure,
			Reason:         fmt.Sprintf("attempt %d failed: escalating", attempt),
		}
	}
}

// higherCeiling finds the active proposer with the smallest ceiling strictly
// above the current proposer's, preferring the cheaper one on ties.
func (l *Ladder) higherCeiling(current string) (models.ProposerProfile, bool) {
	var cur *models.ProposerProfile
	for i := range l.proposers {
		if l.proposers[i].Name == current {
			cur = &l.proposers[i]
			break
		}
	}
	if cur == nil {
		return models.ProposerProfile{}, false
	}

	var best *models.ProposerProfile
	for _, p := range byCost(activeProposers(l.proposers)) {
		if p.ComplexityCeiling <= cur.ComplexityCeiling {
			continue
		}
		if best == nil || p.ComplexityCeiling < best.ComplexityCeiling {
			p := p
			best = &p
		}
	}
	if best == nil {
		return models.ProposerProfile{}, false
	}
	return *best, true
}
