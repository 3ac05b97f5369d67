package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
)

// ShardStore defines the interface for shard data persistence.
type ShardStore interface {
	// Create saves a shard record. Shard IDs are derived deterministically
	// from (job, index), so re-creating an existing shard is a no-op
	// rather than an error.
	Create(ctx context.Context, shard *domain.Shard) error

	// GetByID retrieves a shard by its derived ID.
	// Returns ErrShardNotFound if the shard does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Shard, error)

	// SetTaskCount records how many tasks were assigned to the shard,
	// once its quota of work items is known.
	SetTaskCount(ctx context.Context, id uuid.UUID, count int) error

	// ApplyDelta adjusts the shard's rollup counters by the given signed
	// amounts in a single atomic relative update. This is the only write
	// path for shard counters; absolute overwrites would lose updates
	// under concurrent task transitions.
	ApplyDelta(ctx context.Context, id uuid.UUID, delta domain.ShardDelta) error

	// SumByJob aggregates tasks_success and tasks_failed across every
	// shard of a job. The result is eventually consistent with in-flight
	// task transitions; repeated polling converges.
	SumByJob(ctx context.Context, jobID uuid.UUID) (success, failed int, err error)

	// WithTx returns a new ShardStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ShardStore
}
