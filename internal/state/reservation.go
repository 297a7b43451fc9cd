package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReservationStatus represents the lifecycle state of a budget reservation.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCommitted ReservationStatus = "committed"
	ReservationCancelled ReservationStatus = "cancelled"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadySettled is returned when a reservation was already committed
	// or cancelled.
	ErrAlreadySettled = errors.New("reservation already settled")
)

// Reservation is one pending or settled budget hold.
type Reservation struct {
	ID        string            `json:"id"`
	Day       string            `json:"day"`
	TaskID    string            `json:"task_id"`
	Estimated float64           `json:"estimated"`
	Actual    float64           `json:"actual"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	SettledAt *time.Time        `json:"settled_at"`
}

// spendQuery sums committed actual cost and outstanding estimates for a day.
const spendQuery = `
	SELECT
		COALESCE(SUM(CASE WHEN status = 'committed' THEN actual ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'reserved' THEN estimated ELSE 0 END), 0)
	FROM reservations WHERE day = ?
`

// Reserve atomically reads the day's spend and records r when the spend plus
// r.Estimated stays within limit. A limit <= 0 means no limit. The returned
// total includes r when it was accepted.
func (db *DB) Reserve(r *Reservation, limit float64) (bool, float64, error) {
	if r.Status == "" {
		r.Status = ReservationReserved
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Day == "" {
		r.Day = DayKey(r.CreatedAt)
	}

	var ok bool
	var total float64
	err := db.Transaction(func(tx *sql.Tx) error {
		var committed, pending float64
		if err := tx.QueryRow(spendQuery, r.Day).Scan(&committed, &pending); err != nil {
			return fmt.Errorf("read daily spend: %w", err)
		}
		total = committed + pending

		if limit > 0 && total+r.Estimated > limit {
			return nil
		}

		_, err := tx.Exec(`
			INSERT INTO reservations (id, day, task_id, estimated, actual, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Day, r.TaskID, r.Estimated, r.Actual, string(r.Status), formatTime(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		ok = true
		total += r.Estimated
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return ok, total, nil
}

// SettleReservation moves a reserved hold to committed or cancelled.
func (db *DB) SettleReservation(id string, status ReservationStatus, actual float64) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRow(`SELECT status FROM reservations WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get reservation: %w", err)
		}
		if ReservationStatus(current) != ReservationReserved {
			return ErrAlreadySettled
		}

		_, err = tx.Exec(`
			UPDATE reservations SET status = ?, actual = ?, settled_at = ? WHERE id = ?
		`, string(status), actual, formatTime(time.Now()), id)
		if err != nil {
			return fmt.Errorf("settle reservation: %w", err)
		}
		return nil
	})
}

// GetReservation retrieves a reservation by ID.
func (db *DB) GetReservation(id string) (*Reservation, error) {
	row := db.QueryRow(`
		SELECT id, day, task_id, estimated, actual, status, created_at, settled_at
		FROM reservations WHERE id = ?
	`, id)

	var r Reservation
	var taskID, settledAt sql.NullString
	var createdAt string
	err := row.Scan(&r.ID, &r.Day, &taskID, &r.Estimated, &r.Actual, &r.Status, &createdAt, &settledAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	r.TaskID = taskID.String
	r.CreatedAt, _ = parseTime(createdAt)
	r.SettledAt = parseNullableTime(settledAt)
	return &r, nil
}

// DailySpend returns the committed cost and outstanding reservations for a day.
func (db *DB) DailySpend(day string) (committed, pending float64, err error) {
	if err := db.QueryRow(spendQuery, day).Scan(&committed, &pending); err != nil {
		return 0, 0, fmt.Errorf("read daily spend: %w", err)
	}
	return committed, pending, nil
}

// ExpireReservations cancels holds still reserved after the given age, which
// are left behind by interrupted runs. Returns the number cancelled.
func (db *DB) ExpireReservations(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(`
		UPDATE reservations SET status = 'cancelled', settled_at = ?
		WHERE status = 'reserved' AND created_at < ?
	`, formatTime(time.Now()), cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire reservations: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
