// Package queue defines the boundary to the external push work queue.
// The service never executes tagging work itself; it hands each task to
// the queue, which calls back into the API as the task progresses.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDispatchRejected indicates the work queue refused to accept a task.
// The dispatcher records the task as failed and moves on; a rejected
// dispatch never aborts the surrounding explosion loop.
var ErrDispatchRejected = errors.New("work queue rejected dispatch")

// Dispatch is one task submission to the work queue. TaskID doubles as
// the queue-level deduplication name, so resubmitting the same dispatch
// cannot run the work twice.
type Dispatch struct {
	TaskID    uuid.UUID `json:"task_id"`
	TargetURL string    `json:"target_url"`
	Payload   any       `json:"payload,omitempty"`
}

// WorkQueue submits tasks for asynchronous execution.
type WorkQueue interface {
	// Enqueue submits one dispatch. A duplicate TaskID is not an error.
	// Returns an error wrapping ErrDispatchRejected when the queue turns
	// the task away.
	Enqueue(ctx context.Context, d Dispatch) error
}
