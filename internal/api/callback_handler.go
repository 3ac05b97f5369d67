package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/api/shared"
	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/service"
)

// TaskCoordinator is the slice of the dispatcher the callbacks need:
// exploding a job into dispatched tasks and applying reported task
// transitions.
type TaskCoordinator interface {
	ExplodeAndDispatch(ctx context.Context, job *domain.Job, items []domain.WorkItem) (int, error)
	UpdateTaskStatus(ctx context.Context, shardID, taskID uuid.UUID, status domain.TaskStatus) (bool, error)
}

// CallbackHandler handles the endpoints the work queue delivers tasks
// to: the work-split callback that explodes a job into shards and tasks,
// and the task-status callback workers report their progress through.
// Both routes authenticate with the queue's identity token, not a client
// credential.
type CallbackHandler struct {
	jobService service.JobService
	dispatcher TaskCoordinator
	resolver   service.WorkItemResolver
	logger     *slog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(
	jobService service.JobService,
	dispatcher TaskCoordinator,
	resolver service.WorkItemResolver,
	logger *slog.Logger,
) *CallbackHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CallbackHandler")
	}

	return &CallbackHandler{
		jobService: jobService,
		dispatcher: dispatcher,
		resolver:   resolver,
		logger:     logger.With(slog.String("component", "callback_handler")),
	}
}

// SplitWork handles POST /callbacks/split requests. It resolves the
// config's work items and explodes the job into shards and dispatched
// tasks. Queue redelivery is safe: shard IDs are derived from the job
// ID, so a repeated explosion recreates nothing, and a job that already
// finished is acknowledged without doing any work.
func (h *CallbackHandler) SplitWork(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SplitWorkRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	job, err := h.jobService.GetJob(r.Context(), req.JobID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if job.IsTerminal() {
		log.Info("split redelivered for finished job, acknowledging",
			slog.String("job_id", job.ID.String()),
			slog.String("job_status", string(job.Status)))
		shared.RespondWithJSON(w, r, http.StatusOK, SplitWorkResponse{
			JobID:     job.ID,
			TaskCount: job.TaskCount,
		})
		return
	}

	cfg, err := h.jobService.GetConfigByJob(r.Context(), job.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	items, err := h.resolver.Resolve(r.Context(), cfg)
	if err != nil {
		log.Error("failed to resolve work items",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()),
			slog.String("config_id", cfg.ID.String()))
		shared.RespondWithErrorAndLog(
			w, r, http.StatusInternalServerError, "Failed to resolve work items", err)
		return
	}

	dispatched, err := h.dispatcher.ExplodeAndDispatch(r.Context(), job, items)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// An empty explosion completes the job immediately; there is no task
	// callback left to trigger the roll-up.
	if len(items) == 0 {
		if _, err := h.jobService.ComputeCompletion(r.Context(), job.ID); err != nil {
			shared.RespondWithErrorAndLog(
				w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}
	}

	log.Info("split processed",
		slog.String("job_id", job.ID.String()),
		slog.Int("task_count", len(items)),
		slog.Int("dispatched", dispatched))
	shared.RespondWithJSON(w, r, http.StatusOK, SplitWorkResponse{
		JobID:      job.ID,
		TaskCount:  len(items),
		Dispatched: dispatched,
	})
}

// ReportTaskStatus handles POST /callbacks/tasks requests. The reported
// transition is applied conditionally, the shard rollup moves only when
// the transition applied, and the job's completion is re-derived so the
// final report flips the job terminal. Duplicate reports are
// acknowledged without moving any counter.
func (h *CallbackHandler) ReportTaskStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req TaskCallbackRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	status := domain.TaskStatus(req.Status)
	applied, err := h.dispatcher.UpdateTaskStatus(r.Context(), req.ShardID, req.TaskID, status)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if !applied {
		log.Debug("ignoring duplicate task report",
			slog.String("task_id", req.TaskID.String()),
			slog.String("status", req.Status))
	}

	report, err := h.jobService.ComputeCompletion(r.Context(), req.JobID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, report)
}
