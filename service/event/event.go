// Package event publishes scheduler lifecycle events (task submitted,
// rescheduled, completed, failed) over a messaging queue so that host
// applications can observe task progress without coupling to the scheduler
// internals.
package event

import (
	"time"

	"github.com/runlet/runlet/internal/clock"
	"github.com/runlet/runlet/internal/idgen"
)

// Kind identifies a lifecycle event type.
type Kind string

const (
	// KindSubmitted - a task was accepted and its first poll enqueued.
	KindSubmitted Kind = "submitted"
	// KindRescheduled - a wake during an in-flight poll triggered a re-poll.
	KindRescheduled Kind = "rescheduled"
	// KindCompleted - the task's future reported ready.
	KindCompleted Kind = "completed"
	// KindFailed - the task completed with an error.
	KindFailed Kind = "failed"
)

// Event describes one lifecycle transition of a task.
type Event struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskID"`
	Kind      Kind      `json:"kind"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEvent creates a lifecycle event for the given task.
func NewEvent(taskID string, kind Kind) *Event {
	return &Event{
		ID:        idgen.New(),
		TaskID:    taskID,
		Kind:      kind,
		CreatedAt: clock.Now(),
	}
}

// WithError records the task error on the event.
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
