package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/domain"
)

// WorkItemResolver expands a configuration into the concrete work items
// to tag. Resolution happens against external catalogs and data stores
// and lives behind this boundary; the coordination layer only sees the
// resulting items.
type WorkItemResolver interface {
	Resolve(ctx context.Context, cfg *domain.TagConfig) ([]domain.WorkItem, error)
}

// SplitWorkPayload is the body of the single work-split task enqueued at
// job creation. Its callback resolves the config's work items and runs
// the explosion.
type SplitWorkPayload struct {
	JobID      uuid.UUID         `json:"job_uuid"`
	ConfigID   uuid.UUID         `json:"config_uuid"`
	ConfigType domain.ConfigType `json:"config_type"`
}

// TaskPayload is the body of one per-item task handed to the work queue.
// The remote worker receives it along with the queue's identity token.
type TaskPayload struct {
	JobID      uuid.UUID         `json:"job_uuid"`
	ShardID    uuid.UUID         `json:"shard_uuid"`
	TaskID     uuid.UUID         `json:"task_uuid"`
	ConfigID   uuid.UUID         `json:"config_uuid"`
	ConfigType domain.ConfigType `json:"config_type"`
	URI        string            `json:"uri,omitempty"`
	Extract    map[string]any    `json:"extract,omitempty"`
}
