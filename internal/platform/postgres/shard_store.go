package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/store"
)

// PostgresShardStore implements the store.ShardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresShardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresShardStore creates a new PostgreSQL implementation of the ShardStore interface.
func NewPostgresShardStore(db store.DBTX, logger *slog.Logger) *PostgresShardStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresShardStore{
		db:     db,
		logger: logger.With(slog.String("component", "shard_store")),
	}
}

// Ensure PostgresShardStore implements store.ShardStore interface
var _ store.ShardStore = (*PostgresShardStore)(nil)

// WithTx returns a new ShardStore that runs on the given transaction.
func (s *PostgresShardStore) WithTx(tx *sql.Tx) store.ShardStore {
	return &PostgresShardStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.ShardStore.Create. Shard IDs are derived from
// (job, index), so a conflicting insert means the shard already exists
// from an earlier explosion attempt and the create is treated as done.
func (s *PostgresShardStore) Create(ctx context.Context, shard *domain.Shard) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := shard.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO shards (shard_uuid, job_uuid, task_count, tasks_ran,
		                    tasks_running, tasks_success, tasks_failed, creation_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (shard_uuid) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		shard.ID,
		shard.JobID,
		shard.TaskCount,
		shard.TasksRan,
		shard.TasksRunning,
		shard.TasksSuccess,
		shard.TasksFailed,
		shard.CreationTime,
	)
	if err != nil {
		log.Error("failed to create shard",
			slog.String("error", err.Error()),
			slog.String("shard_id", shard.ID.String()),
			slog.String("job_id", shard.JobID.String()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.ShardStore.GetByID
func (s *PostgresShardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Shard, error) {
	query := `
		SELECT shard_uuid, job_uuid, task_count, tasks_ran, tasks_running,
		       tasks_success, tasks_failed, creation_time
		FROM shards
		WHERE shard_uuid = $1
	`

	var shard domain.Shard
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&shard.ID,
		&shard.JobID,
		&shard.TaskCount,
		&shard.TasksRan,
		&shard.TasksRunning,
		&shard.TasksSuccess,
		&shard.TasksFailed,
		&shard.CreationTime,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrShardNotFound
		}
		return nil, MapError(err)
	}

	return &shard, nil
}

// SetTaskCount implements store.ShardStore.SetTaskCount
func (s *PostgresShardStore) SetTaskCount(ctx context.Context, id uuid.UUID, count int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE shards SET task_count = $1 WHERE shard_uuid = $2`,
		count, id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "shard")
}

// ApplyDelta implements store.ShardStore.ApplyDelta. The counters move by
// relative amounts in one statement; tasks_ran tracks the terminal
// outcomes so it always equals tasks_success + tasks_failed.
func (s *PostgresShardStore) ApplyDelta(ctx context.Context, id uuid.UUID, delta domain.ShardDelta) error {
	if delta == (domain.ShardDelta{}) {
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE shards
		SET tasks_running = tasks_running + $1,
		    tasks_success = tasks_success + $2,
		    tasks_failed  = tasks_failed + $3,
		    tasks_ran     = tasks_ran + $4
		WHERE shard_uuid = $5
	`, delta.Running, delta.Success, delta.Failed, delta.Success+delta.Failed, id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "shard")
}

// SumByJob implements store.ShardStore.SumByJob
func (s *PostgresShardStore) SumByJob(ctx context.Context, jobID uuid.UUID) (int, int, error) {
	query := `
		SELECT COALESCE(SUM(tasks_success), 0), COALESCE(SUM(tasks_failed), 0)
		FROM shards
		WHERE job_uuid = $1
	`

	var success, failed int
	if err := s.db.QueryRowContext(ctx, query, jobID).Scan(&success, &failed); err != nil {
		return 0, 0, MapError(err)
	}

	return success, failed, nil
}
