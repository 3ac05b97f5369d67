package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
)

// JobStore defines the interface for job data persistence.
type JobStore interface {
	// Create saves a new job to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, job *domain.Job) error

	// CreateMetadata persists the optional caller-supplied metadata record
	// for a job. Called at most once, at job-creation time.
	CreateMetadata(ctx context.Context, meta *domain.JobMetadata) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListByConfig retrieves the job history for a configuration, most
	// recently completed first.
	ListByConfig(ctx context.Context, configID uuid.UUID) ([]*domain.Job, error)

	// SetTaskCount records the expected task total after explosion.
	// Returns ErrJobNotFound if the job does not exist.
	SetTaskCount(ctx context.Context, id uuid.UUID, count int) error

	// SetStatus overwrites the job status.
	// Returns ErrJobNotFound if the job does not exist.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error

	// UpdateProgress writes the rolled-up counters for a still-running job
	// and keeps its status at RUNNING. Never touches completion time.
	UpdateProgress(ctx context.Context, id uuid.UUID, ran, success, failed int) error

	// Complete transitions a job to the given terminal status, writes the
	// final counters, and stamps the completion time. The write is
	// conditional on the job not already being terminal; it reports false
	// when a concurrent or earlier completion got there first, in which
	// case nothing was mutated.
	Complete(
		ctx context.Context,
		id uuid.UUID,
		status domain.JobStatus,
		ran, success, failed int,
		completedAt time.Time,
	) (bool, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) JobStore
}
