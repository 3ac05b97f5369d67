package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/queue"
	"github.com/tagworks/tagworks-api/internal/store"
)

// In-memory store fakes shared by the service tests. They mirror the
// conditional-write semantics of the real Postgres stores so transition
// and completion behavior can be exercised without a database.

type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*domain.Job
	metadata map[uuid.UUID]*domain.JobMetadata
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:     make(map[uuid.UUID]*domain.Job),
		metadata: make(map[uuid.UUID]*domain.JobMetadata),
	}
}

func (f *fakeJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) CreateMetadata(ctx context.Context, meta *domain.JobMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata[meta.JobID] = meta
	return nil
}

func (f *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStore) ListByConfig(ctx context.Context, configID uuid.UUID) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []*domain.Job
	for _, job := range f.jobs {
		if job.ConfigID == configID {
			copied := *job
			jobs = append(jobs, &copied)
		}
	}
	return jobs, nil
}

func (f *fakeJobStore) SetTaskCount(ctx context.Context, id uuid.UUID, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.TaskCount = count
	return nil
}

func (f *fakeJobStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = status
	return nil
}

func (f *fakeJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, ran, success, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = domain.JobStatusRunning
	job.TasksRan = ran
	job.TasksSuccess = success
	job.TasksFailed = failed
	return nil
}

func (f *fakeJobStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	ran, success, failed int,
	completedAt time.Time,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return false, store.ErrJobNotFound
	}
	if job.IsTerminal() {
		return false, nil
	}
	job.Status = status
	job.TasksRan = ran
	job.TasksSuccess = success
	job.TasksFailed = failed
	t := completedAt
	job.CompletionTime = &t
	return true, nil
}

func (f *fakeJobStore) WithTx(tx *sql.Tx) store.JobStore { return f }

type fakeShardStore struct {
	mu     sync.Mutex
	shards map[uuid.UUID]*domain.Shard
}

func newFakeShardStore() *fakeShardStore {
	return &fakeShardStore{shards: make(map[uuid.UUID]*domain.Shard)}
}

func (f *fakeShardStore) Create(ctx context.Context, shard *domain.Shard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.shards[shard.ID]; exists {
		return nil
	}
	copied := *shard
	f.shards[shard.ID] = &copied
	return nil
}

func (f *fakeShardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Shard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shard, ok := f.shards[id]
	if !ok {
		return nil, store.ErrShardNotFound
	}
	copied := *shard
	return &copied, nil
}

func (f *fakeShardStore) SetTaskCount(ctx context.Context, id uuid.UUID, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	shard, ok := f.shards[id]
	if !ok {
		return store.ErrShardNotFound
	}
	shard.TaskCount = count
	return nil
}

func (f *fakeShardStore) ApplyDelta(ctx context.Context, id uuid.UUID, delta domain.ShardDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	shard, ok := f.shards[id]
	if !ok {
		return store.ErrShardNotFound
	}
	shard.TasksRunning += delta.Running
	shard.TasksSuccess += delta.Success
	shard.TasksFailed += delta.Failed
	shard.TasksRan += delta.Success + delta.Failed
	return nil
}

func (f *fakeShardStore) SumByJob(ctx context.Context, jobID uuid.UUID) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var success, failed int
	for _, shard := range f.shards {
		if shard.JobID == jobID {
			success += shard.TasksSuccess
			failed += shard.TasksFailed
		}
	}
	return success, failed, nil
}

func (f *fakeShardStore) WithTx(tx *sql.Tx) store.ShardStore { return f }

// byJob returns the shards of a job, for assertions.
func (f *fakeShardStore) byJob(jobID uuid.UUID) []*domain.Shard {
	f.mu.Lock()
	defer f.mu.Unlock()
	var shards []*domain.Shard
	for _, shard := range f.shards {
		if shard.JobID == jobID {
			copied := *shard
			shards = append(shards, &copied)
		}
	}
	return shards
}

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (f *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, shardID, taskID uuid.UUID) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.ShardID != shardID {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) transition(shardID, taskID uuid.UUID, from []domain.TaskStatus, to domain.TaskStatus, stamp func(*domain.Task)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.ShardID != shardID {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if task.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	task.Status = to
	stamp(task)
	return true, nil
}

func (f *fakeTaskStore) MarkRunning(ctx context.Context, shardID, taskID uuid.UUID, startedAt time.Time) (bool, error) {
	return f.transition(shardID, taskID,
		[]domain.TaskStatus{domain.TaskStatusPending}, domain.TaskStatusRunning,
		func(t *domain.Task) { t.StartTime = &startedAt })
}

func (f *fakeTaskStore) MarkCompleted(ctx context.Context, shardID, taskID uuid.UUID, status domain.TaskStatus, endedAt time.Time) (bool, error) {
	return f.transition(shardID, taskID,
		[]domain.TaskStatus{domain.TaskStatusRunning}, status,
		func(t *domain.Task) { t.EndTime = &endedAt })
}

func (f *fakeTaskStore) MarkDispatchFailed(ctx context.Context, shardID, taskID uuid.UUID, endedAt time.Time) (bool, error) {
	return f.transition(shardID, taskID,
		[]domain.TaskStatus{domain.TaskStatusPending}, domain.TaskStatusError,
		func(t *domain.Task) { t.EndTime = &endedAt })
}

func (f *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return f }

// byShard returns the tasks of a shard, for assertions.
func (f *fakeTaskStore) byShard(shardID uuid.UUID) []*domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tasks []*domain.Task
	for _, task := range f.tasks {
		if task.ShardID == shardID {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}
	return tasks
}

type fakeConfigStore struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*domain.TagConfig

	deactivated []store.ConfigKey
	rescheduled map[uuid.UUID]time.Time
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{
		configs:     make(map[uuid.UUID]*domain.TagConfig),
		rescheduled: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeConfigStore) Create(ctx context.Context, cfg *domain.TagConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *cfg
	f.configs[cfg.ID] = &copied
	return nil
}

func (f *fakeConfigStore) DeactivateMatching(ctx context.Context, key store.ConfigKey) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, key)
	count := 0
	for _, cfg := range f.configs {
		if cfg.Status != domain.ConfigStatusInactive &&
			cfg.ServiceAccount == key.ServiceAccount &&
			cfg.TemplateID == key.TemplateID &&
			cfg.IncludedURIsHash == key.IncludedURIsHash &&
			cfg.Type == key.Type {
			cfg.Status = domain.ConfigStatusInactive
			count++
		}
	}
	return count, nil
}

func (f *fakeConfigStore) GetByID(ctx context.Context, configType domain.ConfigType, id uuid.UUID) (*domain.TagConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[id]
	if !ok || cfg.Type != configType {
		return nil, store.ErrConfigNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (f *fakeConfigStore) ListByOwner(ctx context.Context, serviceAccount string, configType domain.ConfigType, templateID uuid.UUID) ([]*domain.TagConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var configs []*domain.TagConfig
	for _, cfg := range f.configs {
		if cfg.ServiceAccount != serviceAccount || cfg.Status == domain.ConfigStatusInactive {
			continue
		}
		if configType != "" && cfg.Type != configType {
			continue
		}
		if templateID != uuid.Nil && cfg.TemplateID != templateID {
			continue
		}
		copied := *cfg
		configs = append(configs, &copied)
	}
	return configs, nil
}

func (f *fakeConfigStore) ListReady(ctx context.Context, now time.Time) ([]*domain.TagConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ready []*domain.TagConfig
	for _, cfg := range f.configs {
		if cfg.ReadyAt(now) {
			copied := *cfg
			ready = append(ready, &copied)
		}
	}
	return ready, nil
}

func (f *fakeConfigStore) Reschedule(ctx context.Context, configType domain.ConfigType, id uuid.UUID, version int, nextRun time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[id]
	if !ok {
		return store.ErrConfigNotFound
	}
	cfg.Version = version
	t := nextRun
	cfg.NextRun = &t
	f.rescheduled[id] = nextRun
	return nil
}

func (f *fakeConfigStore) SetSchedulingStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.SchedulingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[id]
	if !ok {
		return store.ErrConfigNotFound
	}
	cfg.SchedulingStatus = status
	return nil
}

func (f *fakeConfigStore) SetConfigStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.ConfigStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[id]
	if !ok {
		return store.ErrConfigNotFound
	}
	cfg.Status = status
	return nil
}

func (f *fakeConfigStore) Delete(ctx context.Context, configType domain.ConfigType, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.configs[id]; !ok {
		return store.ErrConfigNotFound
	}
	delete(f.configs, id)
	return nil
}

func (f *fakeConfigStore) PurgeInactive(ctx context.Context, serviceAccount string, configType domain.ConfigType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, cfg := range f.configs {
		if cfg.ServiceAccount != serviceAccount || cfg.Status != domain.ConfigStatusInactive {
			continue
		}
		if configType != "" && cfg.Type != configType {
			continue
		}
		delete(f.configs, id)
		count++
	}
	return count, nil
}

func (f *fakeConfigStore) WithTx(tx *sql.Tx) store.ConfigStore { return f }

// fakeWorkQueue records dispatches and can be told to reject specific
// payloads.
type fakeWorkQueue struct {
	mu         sync.Mutex
	dispatches []queue.Dispatch
	rejectFn   func(d queue.Dispatch) bool
}

func newFakeWorkQueue() *fakeWorkQueue {
	return &fakeWorkQueue{}
}

func (f *fakeWorkQueue) Enqueue(ctx context.Context, d queue.Dispatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectFn != nil && f.rejectFn(d) {
		return queue.ErrDispatchRejected
	}
	f.dispatches = append(f.dispatches, d)
	return nil
}

func (f *fakeWorkQueue) all() []queue.Dispatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.Dispatch, len(f.dispatches))
	copy(out, f.dispatches)
	return out
}
