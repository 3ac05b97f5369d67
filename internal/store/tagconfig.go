package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
)

// ConfigKey is the dedup key under which at most one tag config may be
// ACTIVE at a time. Writing a new config for the same key supersedes any
// prior ACTIVE match.
type ConfigKey struct {
	ServiceAccount   string
	TemplateID       uuid.UUID
	IncludedURIsHash string
	Type             domain.ConfigType
}

// ConfigStore defines the interface for tag configuration persistence.
// Each config variant lives in its own table; implementations own a
// closed ConfigType-to-table mapping and reject unknown types.
type ConfigStore interface {
	// Create saves a new config row in the variant's table.
	Create(ctx context.Context, cfg *domain.TagConfig) error

	// DeactivateMatching flips every ACTIVE config for the given dedup key
	// to INACTIVE and reports how many rows it touched. Combined with
	// Create inside one transaction this implements supersede-on-write
	// without the crash window of a two-step sequence.
	DeactivateMatching(ctx context.Context, key ConfigKey) (int, error)

	// GetByID retrieves a config by type and ID without any owner filter.
	// Callers enforcing the authorization boundary check the owner and
	// return empty results on mismatch.
	GetByID(ctx context.Context, configType domain.ConfigType, id uuid.UUID) (*domain.TagConfig, error)

	// ListByOwner retrieves non-INACTIVE configs for a service account,
	// optionally narrowed to one variant (empty configType means all) and
	// to one template.
	ListByOwner(
		ctx context.Context,
		serviceAccount string,
		configType domain.ConfigType,
		templateID uuid.UUID,
	) ([]*domain.TagConfig, error)

	// ListReady retrieves every config due for a scheduled re-run:
	// refresh_mode AUTO, scheduling_status READY, config_status ACTIVE,
	// next_run at or before now. Scans all variant tables.
	ListReady(ctx context.Context, now time.Time) ([]*domain.TagConfig, error)

	// Reschedule writes an advanced version and the recomputed next_run
	// for a config after the scheduler has triggered it.
	Reschedule(ctx context.Context, configType domain.ConfigType, id uuid.UUID, version int, nextRun time.Time) error

	// SetSchedulingStatus updates the scheduling gate (READY/PAUSED).
	SetSchedulingStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.SchedulingStatus) error

	// SetConfigStatus updates the config status (ACTIVE/INACTIVE).
	SetConfigStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.ConfigStatus) error

	// Delete removes a config row.
	// Returns ErrConfigNotFound if no row matches.
	Delete(ctx context.Context, configType domain.ConfigType, id uuid.UUID) error

	// PurgeInactive deletes every INACTIVE config owned by the service
	// account, across all variants when configType is empty, and reports
	// how many rows were removed.
	PurgeInactive(ctx context.Context, serviceAccount string, configType domain.ConfigType) (int, error)

	// WithTx returns a new ConfigStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ConfigStore
}
