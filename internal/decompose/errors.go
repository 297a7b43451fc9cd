package decompose

import (
	"errors"
	"fmt"
)

// ErrTaskCountOutOfBand is returned when an unbatched decomposition produces
// too few or too many tasks.
var ErrTaskCountOutOfBand = errors.New("task count outside allowed range")

// EstimationError reports malformed estimator output. It is fatal to the
// whole decomposition.
type EstimationError struct {
	Err error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("complexity estimation failed: %v", e.Err)
}

func (e *EstimationError) Unwrap() error { return e.Err }

// BatchError reports a failed batch. Results of earlier batches are discarded.
type BatchError struct {
	// Index is the 1-based position of the batch in the plan.
	Index int
	// Name is the batch label.
	Name string
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%s) failed: %v", e.Index, e.Name, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
