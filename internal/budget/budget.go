// Package budget implements the atomic daily-spend reservation service.
//
// Every generation attempt reserves its estimated cost before it runs and
// either commits the actual cost or cancels the hold afterwards. A
// reservation is refused when it would push the day's committed spend plus
// outstanding holds over the limit.
package budget

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownReservation is returned when committing or cancelling a
// reservation that does not exist or was already settled.
var ErrUnknownReservation = errors.New("unknown budget reservation")

// Service is the budget boundary used by the orchestrator.
type Service interface {
	// ReserveBudget atomically checks the day's spend and holds
	// estimatedCost when it fits. currentTotal is the day's spend including
	// outstanding holds (and this one, when accepted).
	ReserveBudget(ctx context.Context, estimatedCost float64) (canProceed bool, reservationID string, currentTotal float64, err error)
	// Commit settles a reservation with the actual cost.
	Commit(ctx context.Context, reservationID string, actualCost float64) error
	// Cancel releases a reservation.
	Cancel(ctx context.Context, reservationID string) error
	// DailySpend returns the day's committed spend plus outstanding holds.
	DailySpend(ctx context.Context) (float64, error)
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
