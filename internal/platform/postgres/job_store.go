package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/store"
)

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx returns a new JobStore that runs on the given transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.JobStore.Create
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query, args, err := NewRecord().
		Set("job_uuid", ID(job.ID)).
		Set("config_uuid", ID(job.ConfigID)).
		Set("config_type", String(string(job.ConfigType))).
		Set("job_status", String(string(job.Status))).
		Set("task_count", Int(job.TaskCount)).
		Set("tasks_ran", Int(job.TasksRan)).
		Set("tasks_success", Int(job.TasksSuccess)).
		Set("tasks_failed", Int(job.TasksFailed)).
		Set("creation_time", Timestamp(job.CreationTime)).
		Insert("jobs")
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	return nil
}

// CreateMetadata implements store.JobStore.CreateMetadata
func (s *PostgresJobStore) CreateMetadata(ctx context.Context, meta *domain.JobMetadata) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := NewRecord().
		Set("job_uuid", ID(meta.JobID)).
		Set("config_uuid", ID(meta.ConfigID)).
		Set("config_type", String(string(meta.ConfigType))).
		Set("metadata", JSON(meta.Metadata)).
		Set("creation_time", Timestamp(meta.CreationTime)).
		Insert("job_metadata")
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to create job metadata",
			slog.String("error", err.Error()),
			slog.String("job_id", meta.JobID.String()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT job_uuid, config_uuid, config_type, job_status, task_count,
		       tasks_ran, tasks_success, tasks_failed, creation_time, completion_time
		FROM jobs
		WHERE job_uuid = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return job, nil
}

// ListByConfig implements store.JobStore.ListByConfig
func (s *PostgresJobStore) ListByConfig(ctx context.Context, configID uuid.UUID) ([]*domain.Job, error) {
	query := `
		SELECT job_uuid, config_uuid, config_type, job_status, task_count,
		       tasks_ran, tasks_success, tasks_failed, creation_time, completion_time
		FROM jobs
		WHERE config_uuid = $1
		ORDER BY completion_time DESC NULLS FIRST, creation_time DESC
	`

	rows, err := s.db.QueryContext(ctx, query, configID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return jobs, nil
}

// SetTaskCount implements store.JobStore.SetTaskCount
func (s *PostgresJobStore) SetTaskCount(ctx context.Context, id uuid.UUID, count int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET task_count = $1 WHERE job_uuid = $2`,
		count, id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "job")
}

// SetStatus implements store.JobStore.SetStatus
func (s *PostgresJobStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET job_status = $1 WHERE job_uuid = $2`,
		string(status), id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "job")
}

// UpdateProgress implements store.JobStore.UpdateProgress
func (s *PostgresJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, ran, success, failed int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET job_status = $1, tasks_ran = $2, tasks_success = $3, tasks_failed = $4
		WHERE job_uuid = $5
	`, string(domain.JobStatusRunning), ran, success, failed, id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "job")
}

// Complete implements store.JobStore.Complete. The status update is
// conditional on the job not already being terminal, which is what keeps
// completion_time stable under repeated or concurrent completion
// computations.
func (s *PostgresJobStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	ran, success, failed int,
	completedAt time.Time,
) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET job_status = $1, tasks_ran = $2, tasks_success = $3, tasks_failed = $4,
		    completion_time = $5
		WHERE job_uuid = $6 AND job_status NOT IN ($7, $8)
	`,
		string(status), ran, success, failed, completedAt.UTC(), id,
		string(domain.JobStatusSuccess), string(domain.JobStatusError))
	if err != nil {
		return false, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Debug("job already terminal, completion left untouched",
			slog.String("job_id", id.String()))
		return false, nil
	}

	return true, nil
}

// scanJob reads one job row from either a *sql.Row or *sql.Rows.
func scanJob(row interface{ Scan(dest ...any) error }) (*domain.Job, error) {
	var job domain.Job
	var configType string
	var status string
	var completionTime sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.ConfigID,
		&configType,
		&status,
		&job.TaskCount,
		&job.TasksRan,
		&job.TasksSuccess,
		&job.TasksFailed,
		&job.CreationTime,
		&completionTime,
	)
	if err != nil {
		return nil, err
	}

	job.ConfigType = domain.ConfigType(configType)
	job.Status = domain.JobStatus(status)
	if completionTime.Valid {
		t := completionTime.Time
		job.CompletionTime = &t
	}

	return &job, nil
}
