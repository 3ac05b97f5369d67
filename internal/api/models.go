package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/domain"
)

// Common request/response structures

// CreateConfigRequest defines the payload for the config creation endpoint.
// The owning service account comes from the verified identity token, never
// from the body.
type CreateConfigRequest struct {
	ConfigType       string         `json:"config_type"       validate:"required"`
	Fields           map[string]any `json:"fields"`
	IncludedURIs     string         `json:"included_uris"     validate:"required"`
	ExcludedURIs     string         `json:"excluded_uris"`
	TemplateID       uuid.UUID      `json:"template_uuid"     validate:"required"`
	TemplateName     string         `json:"template_id"`
	TemplateProject  string         `json:"template_project"`
	TemplateRegion   string         `json:"template_region"`
	RefreshMode      string         `json:"refresh_mode"      validate:"required,oneof=AUTO ON_DEMAND"`
	RefreshFrequency int            `json:"refresh_frequency" validate:"min=0"`
	RefreshUnit      string         `json:"refresh_unit"      validate:"omitempty,oneof=minutes hours days"`
}

// ConfigResponse is the external view of a stored configuration.
type ConfigResponse struct {
	ConfigID         uuid.UUID      `json:"config_uuid"`
	ConfigType       string         `json:"config_type"`
	ConfigStatus     string         `json:"config_status"`
	Fields           map[string]any `json:"fields"`
	IncludedURIs     string         `json:"included_uris"`
	IncludedURIsHash string         `json:"included_uris_hash"`
	ExcludedURIs     string         `json:"excluded_uris,omitempty"`
	TemplateID       uuid.UUID      `json:"template_uuid"`
	TemplateName     string         `json:"template_id,omitempty"`
	TemplateProject  string         `json:"template_project,omitempty"`
	TemplateRegion   string         `json:"template_region,omitempty"`
	RefreshMode      string         `json:"refresh_mode"`
	RefreshFrequency int            `json:"refresh_frequency,omitempty"`
	RefreshUnit      string         `json:"refresh_unit,omitempty"`
	SchedulingStatus string         `json:"scheduling_status,omitempty"`
	NextRun          *time.Time     `json:"next_run,omitempty"`
	Version          int            `json:"version"`
	CreationTime     time.Time      `json:"creation_time"`
}

// NewConfigResponse converts a domain config to its external view.
func NewConfigResponse(cfg *domain.TagConfig) ConfigResponse {
	return ConfigResponse{
		ConfigID:         cfg.ID,
		ConfigType:       string(cfg.Type),
		ConfigStatus:     string(cfg.Status),
		Fields:           cfg.Fields,
		IncludedURIs:     cfg.IncludedURIs,
		IncludedURIsHash: cfg.IncludedURIsHash,
		ExcludedURIs:     cfg.ExcludedURIs,
		TemplateID:       cfg.TemplateID,
		TemplateName:     cfg.TemplateName,
		TemplateProject:  cfg.TemplateProject,
		TemplateRegion:   cfg.TemplateRegion,
		RefreshMode:      string(cfg.RefreshMode),
		RefreshFrequency: cfg.RefreshFrequency,
		RefreshUnit:      string(cfg.RefreshUnit),
		SchedulingStatus: string(cfg.SchedulingStatus),
		NextRun:          cfg.NextRun,
		Version:          cfg.Version,
		CreationTime:     cfg.CreationTime,
	}
}

// ListConfigsResponse wraps a page of configurations.
type ListConfigsResponse struct {
	Configs []ConfigResponse `json:"configs"`
}

// PurgeConfigsResponse reports how many INACTIVE configs were removed.
type PurgeConfigsResponse struct {
	Purged int `json:"purged"`
}

// SetSchedulingStatusRequest pauses or resumes scheduled re-runs.
type SetSchedulingStatusRequest struct {
	SchedulingStatus string `json:"scheduling_status" validate:"required,oneof=READY PAUSED"`
}

// TriggerJobRequest defines the payload for the job creation endpoint.
type TriggerJobRequest struct {
	ConfigType string         `json:"config_type" validate:"required"`
	ConfigID   uuid.UUID      `json:"config_uuid" validate:"required"`
	Metadata   map[string]any `json:"metadata"`
}

// TriggerJobResponse acknowledges an accepted job.
type TriggerJobResponse struct {
	JobID     uuid.UUID `json:"job_uuid"`
	ConfigID  uuid.UUID `json:"config_uuid"`
	JobStatus string    `json:"job_status"`
}

// JobSummary is one entry of a config's job history.
type JobSummary struct {
	JobID           uuid.UUID  `json:"job_uuid"`
	JobStatus       string     `json:"job_status"`
	TaskCount       int        `json:"task_count"`
	TasksRan        int        `json:"tasks_ran"`
	TasksSuccess    int        `json:"tasks_success"`
	TasksFailed     int        `json:"tasks_failed"`
	PercentComplete float64    `json:"percent_complete"`
	CreationTime    time.Time  `json:"creation_time"`
	CompletionTime  *time.Time `json:"completion_time,omitempty"`
}

// NewJobSummary converts a domain job to its history entry.
func NewJobSummary(job *domain.Job) JobSummary {
	return JobSummary{
		JobID:           job.ID,
		JobStatus:       string(job.Status),
		TaskCount:       job.TaskCount,
		TasksRan:        job.TasksRan,
		TasksSuccess:    job.TasksSuccess,
		TasksFailed:     job.TasksFailed,
		PercentComplete: job.PercentComplete(),
		CreationTime:    job.CreationTime,
		CompletionTime:  job.CompletionTime,
	}
}

// ListJobsResponse wraps a config's job history, newest first.
type ListJobsResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// TaskCallbackRequest is the status report a remote worker posts back
// after picking up or finishing a dispatched task.
type TaskCallbackRequest struct {
	JobID   uuid.UUID `json:"job_uuid"   validate:"required"`
	ShardID uuid.UUID `json:"shard_uuid" validate:"required"`
	TaskID  uuid.UUID `json:"task_uuid"  validate:"required"`
	Status  string    `json:"status"     validate:"required,oneof=RUNNING SUCCESS ERROR"`
}

// SplitWorkRequest is the body of the work-split callback, delivered by
// the queue for the task enqueued at job creation.
type SplitWorkRequest struct {
	JobID      uuid.UUID `json:"job_uuid"    validate:"required"`
	ConfigID   uuid.UUID `json:"config_uuid" validate:"required"`
	ConfigType string    `json:"config_type" validate:"required"`
}

// SplitWorkResponse reports the outcome of a job explosion.
type SplitWorkResponse struct {
	JobID      uuid.UUID `json:"job_uuid"`
	TaskCount  int       `json:"task_count"`
	Dispatched int       `json:"dispatched"`
}

// SchedulerRunResponse reports one scheduler sweep.
type SchedulerRunResponse struct {
	JobsStarted int `json:"jobs_started"`
}
