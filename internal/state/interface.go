package state

import "io"

// ReservationStore handles the budget reservation ledger.
type ReservationStore interface {
	Reserve(r *Reservation, limit float64) (bool, float64, error)
	SettleReservation(id string, status ReservationStatus, actual float64) error
	GetReservation(id string) (*Reservation, error)
	DailySpend(day string) (committed, pending float64, err error)
}

// RunStore handles run records.
type RunStore interface {
	CreateRun(r *Run) error
	FinishRun(id string, status RunStatus, taskCount int, totalCost float64) error
	GetRun(id string) (*Run, error)
	SaveRunTask(t *RunTask) error
	ListRunTasks(runID string) ([]RunTask, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes the persistence interfaces the orchestrator and budget
// ledger depend on.
type StateStore interface {
	io.Closer
	Migrator
	ReservationStore
	RunStore
}

var (
	_ StateStore       = (*DB)(nil)
	_ ReservationStore = (*DB)(nil)
	_ RunStore         = (*DB)(nil)
)
