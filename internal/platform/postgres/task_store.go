package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new TaskStore that runs on the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	record := NewRecord().
		Set("task_uuid", ID(task.ID)).
		Set("task_id", ID(task.DispatchID)).
		Set("shard_uuid", ID(task.ShardID)).
		Set("job_uuid", ID(task.JobID)).
		Set("config_uuid", ID(task.ConfigID)).
		Set("config_type", String(string(task.ConfigType))).
		Set("status", String(string(task.Status))).
		Set("creation_time", Timestamp(task.CreationTime))

	// The payload lands in whichever column matches its form.
	if task.Item.URI != "" {
		record.Set("uri", String(task.Item.URI))
	} else {
		record.Set("extract", JSON(task.Item.Extract))
	}

	query, args, err := record.Insert("tasks")
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("shard_id", task.ShardID.String()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, shardID, taskID uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT task_uuid, task_id, shard_uuid, job_uuid, config_uuid, config_type,
		       uri, extract, status, start_time, end_time, creation_time
		FROM tasks
		WHERE shard_uuid = $1 AND task_uuid = $2
	`

	var task domain.Task
	var configType, status string
	var taskURI sql.NullString
	var extract []byte
	var startTime, endTime sql.NullTime

	err := s.db.QueryRowContext(ctx, query, shardID, taskID).Scan(
		&task.ID,
		&task.DispatchID,
		&task.ShardID,
		&task.JobID,
		&task.ConfigID,
		&configType,
		&taskURI,
		&extract,
		&status,
		&startTime,
		&endTime,
		&task.CreationTime,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	task.ConfigType = domain.ConfigType(configType)
	task.Status = domain.TaskStatus(status)
	task.Item.URI = taskURI.String
	if len(extract) > 0 {
		if err := json.Unmarshal(extract, &task.Item.Extract); err != nil {
			return nil, fmt.Errorf("failed to decode task extract: %w", err)
		}
	}
	if startTime.Valid {
		t := startTime.Time
		task.StartTime = &t
	}
	if endTime.Valid {
		t := endTime.Time
		task.EndTime = &t
	}

	return &task, nil
}

// MarkRunning implements store.TaskStore.MarkRunning
func (s *PostgresTaskStore) MarkRunning(ctx context.Context, shardID, taskID uuid.UUID, startedAt time.Time) (bool, error) {
	return s.transition(ctx, shardID, taskID, `
		UPDATE tasks
		SET status = $1, start_time = $2
		WHERE shard_uuid = $3 AND task_uuid = $4 AND status = $5
	`,
		string(domain.TaskStatusRunning), startedAt.UTC(), shardID, taskID,
		string(domain.TaskStatusPending))
}

// MarkCompleted implements store.TaskStore.MarkCompleted
func (s *PostgresTaskStore) MarkCompleted(
	ctx context.Context,
	shardID, taskID uuid.UUID,
	status domain.TaskStatus,
	endedAt time.Time,
) (bool, error) {
	if status != domain.TaskStatusSuccess && status != domain.TaskStatusError {
		return false, fmt.Errorf("%w: cannot complete task with status %s", store.ErrInvalidEntity, status)
	}

	return s.transition(ctx, shardID, taskID, `
		UPDATE tasks
		SET status = $1, end_time = $2
		WHERE shard_uuid = $3 AND task_uuid = $4 AND status = $5
	`,
		string(status), endedAt.UTC(), shardID, taskID,
		string(domain.TaskStatusRunning))
}

// MarkDispatchFailed implements store.TaskStore.MarkDispatchFailed
func (s *PostgresTaskStore) MarkDispatchFailed(ctx context.Context, shardID, taskID uuid.UUID, endedAt time.Time) (bool, error) {
	return s.transition(ctx, shardID, taskID, `
		UPDATE tasks
		SET status = $1, end_time = $2
		WHERE shard_uuid = $3 AND task_uuid = $4 AND status = $5
	`,
		string(domain.TaskStatusError), endedAt.UTC(), shardID, taskID,
		string(domain.TaskStatusPending))
}

// transition runs a conditional status update and reports whether it
// matched a row. Zero rows means the task was not in the allowed prior
// state — a duplicate delivery or an out-of-order callback — and the
// caller skips the shard delta.
func (s *PostgresTaskStore) transition(ctx context.Context, shardID, taskID uuid.UUID, query string, args ...any) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Debug("task transition did not apply",
			slog.String("shard_id", shardID.String()),
			slog.String("task_id", taskID.String()))
		return false, nil
	}

	return true, nil
}
