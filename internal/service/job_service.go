package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/queue"
	"github.com/tagworks/tagworks-api/internal/store"
)

// JobStatusReport is the externally visible progress view of a job,
// derived from its rolled-up counters.
type JobStatusReport struct {
	JobID           uuid.UUID         `json:"job_uuid"`
	ConfigID        uuid.UUID         `json:"config_uuid"`
	ConfigType      domain.ConfigType `json:"config_type"`
	Status          domain.JobStatus  `json:"job_status"`
	TaskCount       int               `json:"task_count"`
	TasksRan        int               `json:"tasks_ran"`
	TasksSuccess    int               `json:"tasks_success"`
	TasksFailed     int               `json:"tasks_failed"`
	PercentComplete float64           `json:"percent_complete"`
	CompletionTime  *time.Time        `json:"completion_time,omitempty"`
}

// JobService provides job lifecycle operations.
type JobService interface {
	// CreateJob creates a PENDING job for a configuration, persists the
	// optional metadata payload, and enqueues the work-split task that
	// will later explode the job into shards and tasks.
	CreateJob(ctx context.Context, cfg *domain.TagConfig, metadata map[string]any) (*domain.Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// GetStatus retrieves the current progress view of a job.
	GetStatus(ctx context.Context, jobID uuid.UUID) (*JobStatusReport, error)

	// SetStatus overwrites a job's status.
	SetStatus(ctx context.Context, jobID uuid.UUID, status domain.JobStatus) error

	// ComputeCompletion re-derives a job's progress from its shard rollups
	// and transitions the job to a terminal status once every expected
	// task has run. Safe to call repeatedly and concurrently.
	ComputeCompletion(ctx context.Context, jobID uuid.UUID) (*JobStatusReport, error)

	// ListByConfig returns the job history for a configuration.
	ListByConfig(ctx context.Context, configID uuid.UUID) ([]*domain.Job, error)

	// GetConfigByJob resolves the configuration a job was created from.
	GetConfigByJob(ctx context.Context, jobID uuid.UUID) (*domain.TagConfig, error)
}

// jobServiceImpl implements the JobService interface.
type jobServiceImpl struct {
	jobStore    store.JobStore
	shardStore  store.ShardStore
	configStore store.ConfigStore
	workQueue   queue.WorkQueue
	splitURL    string
	logger      *slog.Logger
	timeFunc    func() time.Time // Injectable for testing
}

// NewJobService creates a new JobService. splitURL is the callback
// endpoint of the work-split handler targeted by job-creation dispatches.
func NewJobService(
	jobStore store.JobStore,
	shardStore store.ShardStore,
	configStore store.ConfigStore,
	workQueue queue.WorkQueue,
	splitURL string,
	log *slog.Logger,
) (JobService, error) {
	if jobStore == nil {
		return nil, errors.New("jobStore cannot be nil")
	}
	if shardStore == nil {
		return nil, errors.New("shardStore cannot be nil")
	}
	if configStore == nil {
		return nil, errors.New("configStore cannot be nil")
	}
	if workQueue == nil {
		return nil, errors.New("workQueue cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &jobServiceImpl{
		jobStore:    jobStore,
		shardStore:  shardStore,
		configStore: configStore,
		workQueue:   workQueue,
		splitURL:    splitURL,
		logger:      log.With(slog.String("component", "job_service")),
		timeFunc:    time.Now,
	}, nil
}

// CreateJob implements JobService.CreateJob
func (s *jobServiceImpl) CreateJob(ctx context.Context, cfg *domain.TagConfig, metadata map[string]any) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	job, err := domain.NewJob(cfg.ID, cfg.Type)
	if err != nil {
		return nil, NewJobServiceError("create_job", "invalid job", err)
	}

	if err := s.jobStore.Create(ctx, job); err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("config_id", cfg.ID.String()))
		return nil, NewJobServiceError("create_job", "failed to save job", err)
	}

	if len(metadata) > 0 {
		meta := domain.NewJobMetadata(job.ID, cfg.ID, cfg.Type, metadata)
		if err := s.jobStore.CreateMetadata(ctx, meta); err != nil {
			log.Error("failed to save job metadata",
				slog.String("error", err.Error()),
				slog.String("job_id", job.ID.String()))
			return nil, NewJobServiceError("create_job", "failed to save job metadata", err)
		}
	}

	// One split task per job; the job ID doubles as the queue dedup name
	// so a retried create cannot fan the same job out twice.
	dispatch := queue.Dispatch{
		TaskID:    job.ID,
		TargetURL: s.splitURL,
		Payload: SplitWorkPayload{
			JobID:      job.ID,
			ConfigID:   cfg.ID,
			ConfigType: cfg.Type,
		},
	}

	if err := s.workQueue.Enqueue(ctx, dispatch); err != nil {
		log.Error("failed to enqueue work-split task",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return nil, NewJobServiceError("create_job", "failed to enqueue work split", err)
	}

	log.Info("created job",
		slog.String("job_id", job.ID.String()),
		slog.String("config_id", cfg.ID.String()),
		slog.String("config_type", string(cfg.Type)))

	return job, nil
}

// GetJob implements JobService.GetJob
func (s *jobServiceImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return s.jobStore.GetByID(ctx, jobID)
}

// GetStatus implements JobService.GetStatus
func (s *jobServiceImpl) GetStatus(ctx context.Context, jobID uuid.UUID) (*JobStatusReport, error) {
	job, err := s.jobStore.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return reportFor(job), nil
}

// SetStatus implements JobService.SetStatus
func (s *jobServiceImpl) SetStatus(ctx context.Context, jobID uuid.UUID, status domain.JobStatus) error {
	return s.jobStore.SetStatus(ctx, jobID, status)
}

// ComputeCompletion implements JobService.ComputeCompletion
func (s *jobServiceImpl) ComputeCompletion(ctx context.Context, jobID uuid.UUID) (*JobStatusReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	job, err := s.jobStore.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.IsTerminal() {
		return reportFor(job), nil
	}

	success, failed, err := s.shardStore.SumByJob(ctx, jobID)
	if err != nil {
		return nil, NewJobServiceError("compute_completion", "failed to sum shards", err)
	}
	ran := success + failed

	// A job whose explosion has not recorded a task count yet can never
	// be terminal, whatever its shard sums say.
	if job.TaskCount > 0 && ran >= job.TaskCount {
		status := domain.JobStatusSuccess
		if failed > 0 {
			status = domain.JobStatusError
		}

		applied, err := s.jobStore.Complete(ctx, jobID, status, ran, success, failed, s.timeFunc().UTC())
		if err != nil {
			return nil, NewJobServiceError("compute_completion", "failed to complete job", err)
		}

		if !applied {
			// Lost the race to a concurrent completion; the stored row is
			// authoritative.
			job, err = s.jobStore.GetByID(ctx, jobID)
			if err != nil {
				return nil, err
			}
			return reportFor(job), nil
		}

		log.Info("job completed",
			slog.String("job_id", jobID.String()),
			slog.String("job_status", string(status)),
			slog.Int("tasks_ran", ran),
			slog.Int("tasks_failed", failed))

		job, err = s.jobStore.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		return reportFor(job), nil
	}

	if err := s.jobStore.UpdateProgress(ctx, jobID, ran, success, failed); err != nil {
		return nil, NewJobServiceError("compute_completion", "failed to update progress", err)
	}

	job.Status = domain.JobStatusRunning
	job.TasksRan = ran
	job.TasksSuccess = success
	job.TasksFailed = failed
	return reportFor(job), nil
}

// ListByConfig implements JobService.ListByConfig
func (s *jobServiceImpl) ListByConfig(ctx context.Context, configID uuid.UUID) ([]*domain.Job, error) {
	return s.jobStore.ListByConfig(ctx, configID)
}

// GetConfigByJob implements JobService.GetConfigByJob
func (s *jobServiceImpl) GetConfigByJob(ctx context.Context, jobID uuid.UUID) (*domain.TagConfig, error) {
	job, err := s.jobStore.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return s.configStore.GetByID(ctx, job.ConfigType, job.ConfigID)
}

// reportFor builds the progress view of a job.
func reportFor(job *domain.Job) *JobStatusReport {
	return &JobStatusReport{
		JobID:           job.ID,
		ConfigID:        job.ConfigID,
		ConfigType:      job.ConfigType,
		Status:          job.Status,
		TaskCount:       job.TaskCount,
		TasksRan:        job.TasksRan,
		TasksSuccess:    job.TasksSuccess,
		TasksFailed:     job.TasksFailed,
		PercentComplete: job.PercentComplete(),
		CompletionTime:  job.CompletionTime,
	}
}
