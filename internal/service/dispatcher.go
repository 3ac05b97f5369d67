package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/queue"
	"github.com/tagworks/tagworks-api/internal/store"
)

// Dispatcher explodes a job into shards and tasks, hands each task to
// the work queue, and applies the status transitions reported back by
// the workers. It is the sole writer of shard rollup counters.
type Dispatcher struct {
	jobStore    store.JobStore
	shardStore  store.ShardStore
	taskStore   store.TaskStore
	workQueue   queue.WorkQueue
	taskURL     string
	parallelism int
	logger      *slog.Logger
	timeFunc    func() time.Time // Injectable for testing
}

// NewDispatcher creates a Dispatcher. taskURL is the callback endpoint
// dispatched tasks target; parallelism bounds concurrent enqueues within
// one shard.
func NewDispatcher(
	jobStore store.JobStore,
	shardStore store.ShardStore,
	taskStore store.TaskStore,
	workQueue queue.WorkQueue,
	taskURL string,
	parallelism int,
	log *slog.Logger,
) (*Dispatcher, error) {
	if jobStore == nil {
		return nil, errors.New("jobStore cannot be nil")
	}
	if shardStore == nil {
		return nil, errors.New("shardStore cannot be nil")
	}
	if taskStore == nil {
		return nil, errors.New("taskStore cannot be nil")
	}
	if workQueue == nil {
		return nil, errors.New("workQueue cannot be nil")
	}
	if parallelism <= 0 {
		parallelism = 1
	}

	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		jobStore:    jobStore,
		shardStore:  shardStore,
		taskStore:   taskStore,
		workQueue:   workQueue,
		taskURL:     taskURL,
		parallelism: parallelism,
		logger:      log.With(slog.String("component", "dispatcher")),
		timeFunc:    time.Now,
	}, nil
}

// ExplodeAndDispatch splits the work items into shards of at most
// domain.ShardSize tasks, persists the shard and task records, records
// the job's task total, and enqueues every task. An enqueue failure
// marks that task ERROR and rolls the failure into its shard, then the
// loop continues; one bad item never aborts the job. Returns the number
// of tasks dispatched to the queue.
func (d *Dispatcher) ExplodeAndDispatch(ctx context.Context, job *domain.Job, items []domain.WorkItem) (int, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if err := d.jobStore.SetTaskCount(ctx, job.ID, len(items)); err != nil {
		return 0, NewJobServiceError("explode", "failed to record task count", err)
	}

	if err := d.jobStore.SetStatus(ctx, job.ID, domain.JobStatusRunning); err != nil {
		return 0, NewJobServiceError("explode", "failed to mark job running", err)
	}

	if len(items) == 0 {
		log.Warn("job has no work items", slog.String("job_id", job.ID.String()))
		return 0, nil
	}

	dispatched := 0
	for start := 0; start < len(items); start += domain.ShardSize {
		end := start + domain.ShardSize
		if end > len(items) {
			end = len(items)
		}

		n, err := d.dispatchShard(ctx, job, start/domain.ShardSize, items[start:end])
		if err != nil {
			return dispatched, err
		}
		dispatched += n
	}

	log.Info("job exploded",
		slog.String("job_id", job.ID.String()),
		slog.Int("task_count", len(items)),
		slog.Int("dispatched", dispatched))

	return dispatched, nil
}

// dispatchShard persists one shard and its tasks, then enqueues the
// tasks on a bounded group.
func (d *Dispatcher) dispatchShard(ctx context.Context, job *domain.Job, index int, items []domain.WorkItem) (int, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	shard, err := domain.NewShard(job.ID, index)
	if err != nil {
		return 0, NewJobServiceError("explode", "invalid shard", err)
	}

	if err := d.shardStore.Create(ctx, shard); err != nil {
		return 0, NewJobServiceError("explode", "failed to save shard", err)
	}

	tasks := make([]*domain.Task, 0, len(items))
	for _, item := range items {
		task, err := domain.NewTask(job.ID, shard.ID, job.ConfigID, job.ConfigType, item)
		if err != nil {
			return 0, NewJobServiceError("explode", "invalid work item", err)
		}

		if err := d.taskStore.Create(ctx, task); err != nil {
			return 0, NewJobServiceError("explode", "failed to save task", err)
		}
		tasks = append(tasks, task)
	}

	if err := d.shardStore.SetTaskCount(ctx, shard.ID, len(tasks)); err != nil {
		return 0, NewJobServiceError("explode", "failed to record shard task count", err)
	}

	var dispatched int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	results := make([]bool, len(tasks))

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			dispatch := queue.Dispatch{
				TaskID:    task.DispatchID,
				TargetURL: d.taskURL,
				Payload: TaskPayload{
					JobID:      task.JobID,
					ShardID:    task.ShardID,
					TaskID:     task.ID,
					ConfigID:   task.ConfigID,
					ConfigType: task.ConfigType,
					URI:        task.Item.URI,
					Extract:    task.Item.Extract,
				},
			}

			if err := d.workQueue.Enqueue(gctx, dispatch); err != nil {
				log.Warn("dispatch rejected, failing task",
					slog.String("error", err.Error()),
					slog.String("task_id", task.ID.String()),
					slog.String("shard_id", task.ShardID.String()))
				return d.failDispatch(gctx, task)
			}

			results[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	for _, ok := range results {
		if ok {
			dispatched++
		}
	}

	return dispatched, nil
}

// failDispatch records a queue rejection: the task goes PENDING -> ERROR
// and the shard's failure rollup moves by one.
func (d *Dispatcher) failDispatch(ctx context.Context, task *domain.Task) error {
	applied, err := d.taskStore.MarkDispatchFailed(ctx, task.ShardID, task.ID, d.timeFunc().UTC())
	if err != nil {
		return NewJobServiceError("explode", "failed to mark dispatch failure", err)
	}
	if !applied {
		return nil
	}

	delta := domain.DeltaForTransition(domain.TaskStatusError, true)
	if err := d.shardStore.ApplyDelta(ctx, task.ShardID, delta); err != nil {
		return NewJobServiceError("explode", "failed to roll up dispatch failure", err)
	}

	return nil
}

// UpdateTaskStatus applies one reported task transition: the task row is
// stamped conditionally, and only an applied transition moves the
// shard's rollup counters. Duplicate or out-of-order reports come back
// applied=false and change nothing.
func (d *Dispatcher) UpdateTaskStatus(ctx context.Context, shardID, taskID uuid.UUID, status domain.TaskStatus) (bool, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)
	now := d.timeFunc().UTC()

	var applied bool
	var err error
	var delta domain.ShardDelta

	switch status {
	case domain.TaskStatusRunning:
		applied, err = d.taskStore.MarkRunning(ctx, shardID, taskID, now)
		delta = domain.DeltaForTransition(status, true)
	case domain.TaskStatusSuccess, domain.TaskStatusError:
		applied, err = d.taskStore.MarkCompleted(ctx, shardID, taskID, status, now)
		delta = domain.DeltaForTransition(status, false)
	default:
		return false, fmt.Errorf("%w: cannot transition task to %s", domain.ErrInvalidTransition, status)
	}

	if err != nil {
		return false, err
	}

	if !applied {
		log.Debug("ignoring duplicate task status report",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
		return false, nil
	}

	if err := d.shardStore.ApplyDelta(ctx, shardID, delta); err != nil {
		return false, NewJobServiceError("update_task_status", "failed to apply shard delta", err)
	}

	return true, nil
}
