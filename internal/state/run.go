package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the status of a pipeline run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunCancelled   RunStatus = "cancelled"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one execution of the pipeline for a specification.
type Run struct {
	ID         string     `json:"id"`
	Feature    string     `json:"feature"`
	Status     RunStatus  `json:"status"`
	TaskCount  int        `json:"task_count"`
	TotalCost  float64    `json:"total_cost"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// RunTask is the persisted outcome of one work order within a run.
type RunTask struct {
	RunID            string  `json:"run_id"`
	TaskID           string  `json:"task_id"`
	Position         int     `json:"position"`
	Title            string  `json:"title"`
	Status           string  `json:"status"`
	Proposer         string  `json:"proposer"`
	Attempts         int     `json:"attempts"`
	Cost             float64 `json:"cost"`
	RefinementCycles int     `json:"refinement_cycles"`
	ResidualErrors   int     `json:"residual_errors"`
}

// CreateRun records a new run.
func (db *DB) CreateRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, feature, status, task_count, total_cost, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Feature, string(r.Status), r.TaskCount, r.TotalCost, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the final state of a run.
func (db *DB) FinishRun(id string, status RunStatus, taskCount int, totalCost float64) error {
	result, err := db.Exec(`
		UPDATE runs SET status = ?, task_count = ?, total_cost = ?, finished_at = ? WHERE id = ?
	`, string(status), taskCount, totalCost, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, feature, status, task_count, total_cost, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, feature, status, task_count, total_cost, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// MarkInterrupted flags runs left in the running state by a previous process.
// Returns the number of runs updated.
func (db *DB) MarkInterrupted() (int64, error) {
	result, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE status = ?
	`, string(RunInterrupted), formatTime(time.Now()), string(RunRunning))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

// SaveRunTask inserts or replaces a task outcome.
func (db *DB) SaveRunTask(t *RunTask) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO run_tasks
			(run_id, task_id, position, title, status, proposer, attempts, cost, refinement_cycles, residual_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.RunID, t.TaskID, t.Position, t.Title, t.Status, t.Proposer, t.Attempts, t.Cost, t.RefinementCycles, t.ResidualErrors)
	if err != nil {
		return fmt.Errorf("save run task: %w", err)
	}
	return nil
}

// ListRunTasks returns a run's task outcomes in position order.
func (db *DB) ListRunTasks(runID string) ([]RunTask, error) {
	rows, err := db.Query(`
		SELECT run_id, task_id, position, title, status, proposer, attempts, cost, refinement_cycles, residual_errors
		FROM run_tasks WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []RunTask
	for rows.Next() {
		var t RunTask
		var proposer sql.NullString
		if err := rows.Scan(&t.RunID, &t.TaskID, &t.Position, &t.Title, &t.Status, &proposer,
			&t.Attempts, &t.Cost, &t.RefinementCycles, &t.ResidualErrors); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		t.Proposer = proposer.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&r.ID, &r.Feature, &r.Status, &r.TaskCount, &r.TotalCost, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}
