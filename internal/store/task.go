package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
//
// The three Mark methods are conditional writes covering the legal task
// transitions. Each reports whether the transition was applied; a false
// result means the task was not in an allowed prior state — typically a
// duplicate queue delivery — and the caller must not adjust shard
// counters for it.
type TaskStore interface {
	// Create saves a new PENDING task to the store.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task within its shard.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, shardID, taskID uuid.UUID) (*domain.Task, error)

	// MarkRunning transitions PENDING -> RUNNING and stamps start_time.
	MarkRunning(ctx context.Context, shardID, taskID uuid.UUID, startedAt time.Time) (bool, error)

	// MarkCompleted transitions RUNNING -> SUCCESS or RUNNING -> ERROR and
	// stamps end_time. status must be one of the two terminal statuses.
	MarkCompleted(
		ctx context.Context,
		shardID, taskID uuid.UUID,
		status domain.TaskStatus,
		endedAt time.Time,
	) (bool, error)

	// MarkDispatchFailed transitions PENDING -> ERROR and stamps end_time,
	// for tasks the work queue rejected before they ever ran.
	MarkDispatchFailed(ctx context.Context, shardID, taskID uuid.UUID, endedAt time.Time) (bool, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}
