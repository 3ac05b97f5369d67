package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tagworks/tagworks-api/internal/api/shared"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
)

// SchedulerRunner performs one scheduler sweep over the due configs.
type SchedulerRunner interface {
	RunReady(ctx context.Context, now time.Time) (int, error)
}

// SchedulerHandler exposes the scheduler tick as an HTTP endpoint, meant
// to be hit by an external cron trigger.
type SchedulerHandler struct {
	scheduler SchedulerRunner
	timeFunc  func() time.Time // Injectable for testing
	logger    *slog.Logger
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(scheduler SchedulerRunner, logger *slog.Logger) *SchedulerHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SchedulerHandler")
	}

	return &SchedulerHandler{
		scheduler: scheduler,
		timeFunc:  time.Now,
		logger:    logger.With(slog.String("component", "scheduler_handler")),
	}
}

// Run handles POST /scheduler/run requests, sweeping every due AUTO
// config once and reporting how many jobs were started.
func (h *SchedulerHandler) Run(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	started, err := h.scheduler.RunReady(r.Context(), h.timeFunc().UTC())
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("scheduler tick complete", slog.Int("jobs_started", started))
	shared.RespondWithJSON(w, r, http.StatusOK, SchedulerRunResponse{JobsStarted: started})
}
