package budget

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/dispatch/internal/state"
)

// Ledger is a Service persisted in the state database, so spend survives
// across processes.
type Ledger struct {
	store state.ReservationStore
	limit float64
	now   Clock
}

// NewLedger creates a ledger over store with the given daily limit.
// A limit <= 0 means unlimited.
func NewLedger(store state.ReservationStore, limit float64) *Ledger {
	return &Ledger{store: store, limit: limit, now: time.Now}
}

// SetClock overrides the clock used to pick the ledger day.
func (l *Ledger) SetClock(c Clock) {
	l.now = c
}

// ReserveBudget implements Service.
func (l *Ledger) ReserveBudget(ctx context.Context, estimatedCost float64) (bool, string, float64, error) {
	if err := ctx.Err(); err != nil {
		return false, "", 0, err
	}

	now := l.now()
	r := &state.Reservation{
		ID:        uuid.NewString(),
		Day:       dayOf(now),
		Estimated: estimatedCost,
		CreatedAt: now,
	}
	ok, total, err := l.store.Reserve(r, l.limit)
	if err != nil {
		return false, "", 0, fmt.Errorf("reserve budget: %w", err)
	}
	if !ok {
		log.Printf("[budget] refused $%.4f: spend $%.4f, limit $%.2f", estimatedCost, total, l.limit)
		return false, "", total, nil
	}
	return true, r.ID, total, nil
}

// Commit implements Service.
func (l *Ledger) Commit(ctx context.Context, reservationID string, actualCost float64) error {
	return l.settle(reservationID, state.ReservationCommitted, actualCost)
}

// Cancel implements Service.
func (l *Ledger) Cancel(ctx context.Context, reservationID string) error {
	return l.settle(reservationID, state.ReservationCancelled, 0)
}

func (l *Ledger) settle(id string, status state.ReservationStatus, actual float64) error {
	err := l.store.SettleReservation(id, status, actual)
	if errors.Is(err, state.ErrNotFound) || errors.Is(err, state.ErrAlreadySettled) {
		return fmt.Errorf("%w: %s", ErrUnknownReservation, id)
	}
	if err != nil {
		return fmt.Errorf("settle reservation %s: %w", id, err)
	}
	return nil
}

// DailySpend implements Service.
func (l *Ledger) DailySpend(ctx context.Context) (float64, error) {
	committed, pending, err := l.store.DailySpend(dayOf(l.now()))
	if err != nil {
		return 0, err
	}
	return committed + pending, nil
}

var (
	_ Service = (*Memory)(nil)
	_ Service = (*Ledger)(nil)
)
