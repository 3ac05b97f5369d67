package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

// Possible job status values. SUCCESS and ERROR are terminal.
const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusError   JobStatus = "ERROR"
)

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobConfigID = errors.New("job config ID cannot be empty")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrNegativeCounter  = errors.New("task counters cannot be negative")
)

// Job represents one logical unit of bulk tagging work derived from a
// configuration. The task counters are aggregates rolled up from the
// job's shards; they are recomputed by the job service and must satisfy
// TasksRan == TasksSuccess + TasksFailed at every observation point.
type Job struct {
	ID             uuid.UUID  `json:"job_uuid"`
	ConfigID       uuid.UUID  `json:"config_uuid"`
	ConfigType     ConfigType `json:"config_type"`
	Status         JobStatus  `json:"job_status"`
	TaskCount      int        `json:"task_count"`
	TasksRan       int        `json:"tasks_ran"`
	TasksSuccess   int        `json:"tasks_success"`
	TasksFailed    int        `json:"tasks_failed"`
	CreationTime   time.Time  `json:"creation_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
}

// NewJob creates a new Job for the given configuration with zero counters
// and PENDING status. TaskCount stays zero until the work-item explosion
// records the real total.
func NewJob(configID uuid.UUID, configType ConfigType) (*Job, error) {
	job := &Job{
		ID:           uuid.New(),
		ConfigID:     configID,
		ConfigType:   configType,
		Status:       JobStatusPending,
		CreationTime: time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.ConfigID == uuid.Nil {
		return ErrEmptyJobConfigID
	}

	if !j.ConfigType.Valid() {
		return ErrUnknownConfigType
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.TaskCount < 0 || j.TasksRan < 0 || j.TasksSuccess < 0 || j.TasksFailed < 0 {
		return ErrNegativeCounter
	}

	return nil
}

// IsTerminal reports whether the job has reached SUCCESS or ERROR.
// Terminal jobs are immutable; completion time is never rewritten.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusError
}

// PercentComplete derives the completion percentage from the rolled-up
// counters, rounded to two decimal places. A job with TaskCount == 0 has
// not been exploded yet and reports zero rather than dividing by zero.
func (j *Job) PercentComplete() float64 {
	if j.TaskCount <= 0 {
		return 0
	}
	if j.TasksRan >= j.TaskCount {
		return 100
	}
	pct := float64(j.TasksRan) / float64(j.TaskCount) * 100
	return math.Round(pct*100) / 100
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusRunning, JobStatusSuccess, JobStatusError:
		return true
	default:
		return false
	}
}

// JobMetadata is an optional caller-supplied payload persisted alongside
// a job at creation time, 1:1 with the owning job.
type JobMetadata struct {
	JobID        uuid.UUID      `json:"job_uuid"`
	ConfigID     uuid.UUID      `json:"config_uuid"`
	ConfigType   ConfigType     `json:"config_type"`
	Metadata     map[string]any `json:"metadata"`
	CreationTime time.Time      `json:"creation_time"`
}

// NewJobMetadata builds the metadata record for a job. The payload is
// stored as-is; callers own its shape.
func NewJobMetadata(jobID, configID uuid.UUID, configType ConfigType, metadata map[string]any) *JobMetadata {
	return &JobMetadata{
		JobID:        jobID,
		ConfigID:     configID,
		ConfigType:   configType,
		Metadata:     metadata,
		CreationTime: time.Now().UTC(),
	}
}
