package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/api/shared"
	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/service"
)

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	jobService    service.JobService
	configService service.ConfigService
	logger        *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(
	jobService service.JobService,
	configService service.ConfigService,
	logger *slog.Logger,
) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}

	return &JobHandler{
		jobService:    jobService,
		configService: configService,
		logger:        logger.With(slog.String("component", "job_handler")),
	}
}

// TriggerJob handles POST /jobs requests. It creates a PENDING job for
// the named config and enqueues the work-split task; the explosion into
// shards and tasks happens asynchronously via the split callback.
func (h *JobHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		log.Warn("service account not found in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	var req TriggerJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	configType, err := domain.ParseConfigType(req.ConfigType)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	cfg, err := h.configService.GetConfig(r.Context(), serviceAccount, configType, req.ConfigID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if cfg == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Config not found")
		return
	}

	job, err := h.jobService.CreateJob(r.Context(), cfg, req.Metadata)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("job triggered",
		slog.String("job_id", job.ID.String()),
		slog.String("config_id", cfg.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, TriggerJobResponse{
		JobID:     job.ID,
		ConfigID:  job.ConfigID,
		JobStatus: string(job.Status),
	})
}

// GetJobStatus handles GET /jobs/{id} requests, returning the job's
// rolled-up progress counters and completion percentage.
func (h *JobHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job UUID")
		return
	}

	if !h.callerOwnsJob(w, r, serviceAccount, jobID) {
		return
	}

	report, err := h.jobService.GetStatus(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// ListJobs handles GET /configs/{type}/{id}/jobs requests, returning the
// config's job history.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	configType, err := domain.ParseConfigType(chi.URLParam(r, "type"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	configID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid config UUID")
		return
	}

	cfg, err := h.configService.GetConfig(r.Context(), serviceAccount, configType, configID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if cfg == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Config not found")
		return
	}

	jobs, err := h.jobService.ListByConfig(r.Context(), configID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobSummary, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, NewJobSummary(job))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// callerOwnsJob resolves the job's config and checks that the caller owns
// it. Jobs belonging to another service account are reported as not
// found. On failure it writes the error response and returns false.
func (h *JobHandler) callerOwnsJob(
	w http.ResponseWriter,
	r *http.Request,
	serviceAccount string,
	jobID uuid.UUID,
) bool {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	cfg, err := h.jobService.GetConfigByJob(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return false
	}

	if cfg == nil || cfg.ServiceAccount != serviceAccount {
		log.Warn("job read denied for non-owner",
			slog.String("job_id", jobID.String()),
			slog.String("requested_by", serviceAccount))
		shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
		return false
	}

	return true
}
