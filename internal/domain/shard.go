package domain

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ShardSize is the maximum number of tasks grouped into one shard.
// Shards exist for rollup bookkeeping only; they carry no ordering
// guarantee.
const ShardSize = 1000

// Common validation errors for Shard
var (
	ErrEmptyShardID     = errors.New("shard ID cannot be empty")
	ErrEmptyShardJobID  = errors.New("shard job ID cannot be empty")
	ErrShardCounterOver = errors.New("shard counters exceed task count")
)

// Shard is a fixed-capacity batch of tasks belonging to one job. Its
// counters are only ever adjusted by single-unit relative deltas as task
// status transitions arrive, never overwritten wholesale, so concurrent
// updates for sibling tasks cannot lose writes.
type Shard struct {
	ID           uuid.UUID `json:"shard_uuid"`
	JobID        uuid.UUID `json:"job_uuid"`
	TaskCount    int       `json:"task_count"`
	TasksRan     int       `json:"tasks_ran"`
	TasksRunning int       `json:"tasks_running"`
	TasksSuccess int       `json:"tasks_success"`
	TasksFailed  int       `json:"tasks_failed"`
	CreationTime time.Time `json:"creation_time"`
}

// ShardID derives the deterministic identifier for the shard at the given
// index of a job. The ID is a content hash of the job ID plus the index,
// so re-running the explosion for the same job yields the same shard IDs
// and shard creation stays idempotent.
func ShardID(jobID uuid.UUID, index int) uuid.UUID {
	return uuid.NewMD5(jobID, []byte(strconv.Itoa(index)))
}

// NewShard creates the shard record at the given index of a job with zero
// counters. TaskCount is recorded separately once the shard's quota of
// work items is known.
func NewShard(jobID uuid.UUID, index int) (*Shard, error) {
	shard := &Shard{
		ID:           ShardID(jobID, index),
		JobID:        jobID,
		CreationTime: time.Now().UTC(),
	}

	if err := shard.Validate(); err != nil {
		return nil, err
	}

	return shard, nil
}

// Validate checks if the Shard has valid data.
func (s *Shard) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptyShardID
	}

	if s.JobID == uuid.Nil {
		return ErrEmptyShardJobID
	}

	if s.TaskCount < 0 || s.TasksRan < 0 || s.TasksRunning < 0 ||
		s.TasksSuccess < 0 || s.TasksFailed < 0 {
		return ErrNegativeCounter
	}

	if s.TaskCount > 0 && s.TasksRunning+s.TasksSuccess+s.TasksFailed > s.TaskCount {
		return ErrShardCounterOver
	}

	return nil
}

// ShardDelta is a signed adjustment applied atomically to a shard's
// rollup counters. Each task status transition maps to exactly one delta;
// applying deltas is the sole write path for shard counters.
type ShardDelta struct {
	Running int
	Success int
	Failed  int
}

// DeltaForTransition returns the shard counter adjustment implied by a
// task entering the given status. Dispatch rejection moves a task from
// PENDING straight to ERROR without ever incrementing the running count,
// which is why the failed delta carries no running decrement.
func DeltaForTransition(to TaskStatus, fromPending bool) ShardDelta {
	switch to {
	case TaskStatusRunning:
		return ShardDelta{Running: 1}
	case TaskStatusSuccess:
		return ShardDelta{Success: 1, Running: -1}
	case TaskStatusError:
		if fromPending {
			return ShardDelta{Failed: 1}
		}
		return ShardDelta{Failed: 1, Running: -1}
	default:
		return ShardDelta{}
	}
}
