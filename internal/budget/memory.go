package budget

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type hold struct {
	day    string
	amount float64
}

// Memory is an in-process Service. Spend resets at each UTC day boundary.
type Memory struct {
	mu        sync.Mutex
	limit     float64
	now       Clock
	committed map[string]float64
	holds     map[string]hold
}

// NewMemory creates an in-memory budget with the given daily limit.
// A limit <= 0 means unlimited.
func NewMemory(limit float64) *Memory {
	return &Memory{
		limit:     limit,
		now:       time.Now,
		committed: make(map[string]float64),
		holds:     make(map[string]hold),
	}
}

// SetClock overrides the clock used to pick the ledger day.
func (m *Memory) SetClock(c Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = c
}

// Seed adds already committed spend for today.
func (m *Memory) Seed(spent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed[dayOf(m.now())] += spent
}

func (m *Memory) total(day string) float64 {
	total := m.committed[day]
	for _, h := range m.holds {
		if h.day == day {
			total += h.amount
		}
	}
	return total
}

// ReserveBudget implements Service.
func (m *Memory) ReserveBudget(ctx context.Context, estimatedCost float64) (bool, string, float64, error) {
	if err := ctx.Err(); err != nil {
		return false, "", 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayOf(m.now())
	total := m.total(day)
	if m.limit > 0 && total+estimatedCost > m.limit {
		log.Printf("[budget] refused $%.4f: spend $%.4f, limit $%.2f", estimatedCost, total, m.limit)
		return false, "", total, nil
	}

	id := uuid.NewString()
	m.holds[id] = hold{day: day, amount: estimatedCost}
	return true, id, total + estimatedCost, nil
}

// Commit implements Service.
func (m *Memory) Commit(ctx context.Context, reservationID string, actualCost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holds[reservationID]
	if !ok {
		return ErrUnknownReservation
	}
	delete(m.holds, reservationID)
	m.committed[h.day] += actualCost
	return nil
}

// Cancel implements Service.
func (m *Memory) Cancel(ctx context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.holds[reservationID]; !ok {
		return ErrUnknownReservation
	}
	delete(m.holds, reservationID)
	return nil
}

// DailySpend implements Service.
func (m *Memory) DailySpend(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total(dayOf(m.now())), nil
}
