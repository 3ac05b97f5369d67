package domain

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a dispatched task.
type TaskStatus string

// Possible task status values. Transitions are monotonic:
// PENDING -> RUNNING -> {SUCCESS, ERROR}, with PENDING -> ERROR allowed
// when the work queue rejects the dispatch. Terminal states absorb.
const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusError   TaskStatus = "ERROR"
)

// Common validation errors for Task and WorkItem
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskShardID = errors.New("task shard ID cannot be empty")
	ErrEmptyTaskJobID   = errors.New("task job ID cannot be empty")
	ErrInvalidTaskState = errors.New("invalid task status")
	ErrEmptyWorkItem    = errors.New("work item must carry a URI or an extract")
)

// WorkItem is one unit of tagging work: either a bare asset URI or a
// structured extracted record supplied by the caller. Exactly one of the
// two forms is populated.
type WorkItem struct {
	URI     string         `json:"uri,omitempty"`
	Extract map[string]any `json:"extract,omitempty"`
}

// Validate checks that the work item carries exactly one payload form.
func (w WorkItem) Validate() error {
	if w.URI == "" && len(w.Extract) == 0 {
		return ErrEmptyWorkItem
	}
	return nil
}

// Identity returns a stable byte representation of the item's payload,
// used when deriving the task dispatch ID. Extract keys are serialized in
// sorted order so the same record always hashes the same way.
func (w WorkItem) Identity() []byte {
	if w.URI != "" {
		return []byte(w.URI)
	}

	keys := make([]string, 0, len(w.Extract))
	for k := range w.Extract {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, k...)
		if v, err := json.Marshal(w.Extract[k]); err == nil {
			buf = append(buf, v...)
		}
	}
	return buf
}

// Task is the smallest dispatchable unit of work: one remote call per
// task. DispatchID is the idempotency key handed to the work queue; it is
// a content hash of the job ID, the work-item identity, and the dispatch
// timestamp, so retried explosions do not collide on queue task names.
type Task struct {
	ID           uuid.UUID  `json:"task_uuid"`
	DispatchID   uuid.UUID  `json:"task_id"`
	ShardID      uuid.UUID  `json:"shard_uuid"`
	JobID        uuid.UUID  `json:"job_uuid"`
	ConfigID     uuid.UUID  `json:"config_uuid"`
	ConfigType   ConfigType `json:"config_type"`
	Item         WorkItem   `json:"item"`
	Status       TaskStatus `json:"status"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	CreationTime time.Time  `json:"creation_time"`
}

// TaskDispatchID derives the queue-facing idempotency key for a work item
// dispatched at the given moment.
func TaskDispatchID(jobID uuid.UUID, item WorkItem, at time.Time) uuid.UUID {
	data := append(item.Identity(), []byte(at.UTC().Format(time.RFC3339Nano))...)
	return uuid.NewMD5(jobID, data)
}

// NewTask creates a PENDING task for a work item in the given shard.
func NewTask(jobID, shardID, configID uuid.UUID, configType ConfigType, item WorkItem) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:           uuid.New(),
		DispatchID:   TaskDispatchID(jobID, item, now),
		ShardID:      shardID,
		JobID:        jobID,
		ConfigID:     configID,
		ConfigType:   configType,
		Item:         item,
		Status:       TaskStatusPending,
		CreationTime: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.ShardID == uuid.Nil {
		return ErrEmptyTaskShardID
	}

	if t.JobID == uuid.Nil {
		return ErrEmptyTaskJobID
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskState
	}

	return t.Item.Validate()
}

// IsTerminal reports whether the task has reached SUCCESS or ERROR.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusSuccess || t.Status == TaskStatusError
}

// AllowedPriorStatuses returns the statuses a task may hold immediately
// before entering the given one. Used by the store layer to make status
// updates conditional, which is what keeps duplicate queue deliveries
// from double-counting shard rollups.
func AllowedPriorStatuses(to TaskStatus) []TaskStatus {
	switch to {
	case TaskStatusRunning:
		return []TaskStatus{TaskStatusPending}
	case TaskStatusSuccess:
		return []TaskStatus{TaskStatusRunning}
	case TaskStatusError:
		return []TaskStatus{TaskStatusPending, TaskStatusRunning}
	default:
		return nil
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSuccess, TaskStatusError:
		return true
	default:
		return false
	}
}
