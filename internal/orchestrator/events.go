package orchestrator

import (
	"time"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPlanned indicates decomposition and validation finished.
	EventPlanned EventType = "planned"
	// EventTaskStarted indicates a work order was released for execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskRouted indicates a proposer was selected for an attempt.
	EventTaskRouted EventType = "task_routed"
	// EventTaskRetry indicates an attempt failed and the ladder chose to retry.
	EventTaskRetry EventType = "task_retry"
	// EventTaskFinished indicates a work order reached a terminal status.
	EventTaskFinished EventType = "task_finished"
	// EventTaskSkipped indicates a prerequisite did not complete.
	EventTaskSkipped EventType = "task_skipped"
	// EventRunDone indicates the entire run is complete.
	EventRunDone EventType = "run_done"
)

// Event is emitted by the orchestrator as the run progresses.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related work order, if applicable.
	TaskID string
	// TaskTitle is the title of the related work order, if applicable.
	TaskTitle string
	// Proposer is the proposer involved, if applicable.
	Proposer string
	// Attempt is the attempt number, if applicable.
	Attempt int
	// Status is the terminal status for finish events.
	Status models.TaskStatus
	// Message provides additional context about the event.
	Message string
	// Cost is the run's accumulated cost when the event was emitted.
	Cost float64
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventHandler receives orchestrator events. Handlers are called from
// worker goroutines and must be safe for concurrent use.
type EventHandler func(Event)
