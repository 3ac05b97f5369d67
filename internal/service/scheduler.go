package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/store"
)

// SchedulerService triggers jobs for configs whose scheduled re-run is
// due. One tick lists every AUTO + READY + ACTIVE config with
// next_run at or before now, starts a job for each, and pushes its next
// run forward.
type SchedulerService struct {
	configStore   store.ConfigStore
	jobService    JobService
	configService ConfigService
	logger        *slog.Logger
}

// NewSchedulerService creates a SchedulerService.
func NewSchedulerService(
	configStore store.ConfigStore,
	jobService JobService,
	configService ConfigService,
	log *slog.Logger,
) (*SchedulerService, error) {
	if configStore == nil {
		return nil, errors.New("configStore cannot be nil")
	}
	if jobService == nil {
		return nil, errors.New("jobService cannot be nil")
	}
	if configService == nil {
		return nil, errors.New("configService cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &SchedulerService{
		configStore:   configStore,
		jobService:    jobService,
		configService: configService,
		logger:        log.With(slog.String("component", "scheduler")),
	}, nil
}

// RunReady performs one scheduler tick and returns how many jobs it
// started. A failure on one config is logged and skipped; the rest of
// the tick proceeds, and the failed config stays due for the next tick.
func (s *SchedulerService) RunReady(ctx context.Context, now time.Time) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ready, err := s.configStore.ListReady(ctx, now)
	if err != nil {
		return 0, NewConfigServiceError("run_ready", "failed to list ready configs", err)
	}

	started := 0
	for _, cfg := range ready {
		job, err := s.jobService.CreateJob(ctx, cfg, nil)
		if err != nil {
			log.Error("failed to start scheduled job",
				slog.String("error", err.Error()),
				slog.String("config_id", cfg.ID.String()))
			continue
		}

		if err := s.configService.IncrementVersionAndReschedule(ctx, cfg, now); err != nil {
			log.Error("failed to reschedule config",
				slog.String("error", err.Error()),
				slog.String("config_id", cfg.ID.String()),
				slog.String("job_id", job.ID.String()))
			continue
		}

		log.Info("started scheduled job",
			slog.String("config_id", cfg.ID.String()),
			slog.String("job_id", job.ID.String()))
		started++
	}

	return started, nil
}
