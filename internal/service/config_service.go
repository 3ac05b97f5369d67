package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/store"
)

// ConfigService provides tag configuration operations. Reads and deletes
// enforce the ownership boundary: a config belonging to another service
// account behaves as if it did not match, never as a distinguishable
// "exists but forbidden" answer.
type ConfigService interface {
	// CreateConfig persists a new config and supersedes any prior ACTIVE
	// config with the same dedup key. Deactivation and insert run in one
	// transaction so no crash can leave the key with zero or two ACTIVE
	// rows.
	CreateConfig(ctx context.Context, cfg *domain.TagConfig) (*domain.TagConfig, error)

	// GetConfig retrieves a config by type and ID for the given owner.
	// An owner mismatch returns (nil, nil), indistinguishable from an
	// empty result.
	GetConfig(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) (*domain.TagConfig, error)

	// ListConfigs returns the owner's non-INACTIVE configs, newest first,
	// optionally narrowed to one variant and one template.
	ListConfigs(ctx context.Context, serviceAccount string, configType domain.ConfigType, templateID uuid.UUID) ([]*domain.TagConfig, error)

	// DeleteConfig removes a config owned by the service account. An
	// owner mismatch reports ErrConfigNotFound, same as a missing row.
	DeleteConfig(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) error

	// PurgeInactiveConfigs deletes the owner's INACTIVE configs and
	// reports how many were removed.
	PurgeInactiveConfigs(ctx context.Context, serviceAccount string, configType domain.ConfigType) (int, error)

	// SetSchedulingStatus pauses or resumes scheduled re-runs of a config.
	SetSchedulingStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.SchedulingStatus) error

	// IncrementVersionAndReschedule advances a config's version and
	// computes its next run from now, after the scheduler has triggered
	// it.
	IncrementVersionAndReschedule(ctx context.Context, cfg *domain.TagConfig, now time.Time) error
}

// configServiceImpl implements the ConfigService interface.
type configServiceImpl struct {
	db          *sql.DB
	configStore store.ConfigStore
	logger      *slog.Logger
}

// NewConfigService creates a new ConfigService. The database handle is
// used to open the supersede transaction.
func NewConfigService(db *sql.DB, configStore store.ConfigStore, log *slog.Logger) (ConfigService, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if configStore == nil {
		return nil, errors.New("configStore cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &configServiceImpl{
		db:          db,
		configStore: configStore,
		logger:      log.With(slog.String("component", "config_service")),
	}, nil
}

// CreateConfig implements ConfigService.CreateConfig
func (s *configServiceImpl) CreateConfig(ctx context.Context, cfg *domain.TagConfig) (*domain.TagConfig, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := cfg.Validate(); err != nil {
		return nil, NewConfigServiceError("create_config", "invalid config", err)
	}

	key := store.ConfigKey{
		ServiceAccount:   cfg.ServiceAccount,
		TemplateID:       cfg.TemplateID,
		IncludedURIsHash: cfg.IncludedURIsHash,
		Type:             cfg.Type,
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txConfigStore := s.configStore.WithTx(tx)

		superseded, err := txConfigStore.DeactivateMatching(ctx, key)
		if err != nil {
			return NewConfigServiceError("create_config", "failed to supersede prior configs", err)
		}

		if superseded > 0 {
			log.Info("superseded prior configs",
				slog.Int("count", superseded),
				slog.String("config_type", string(cfg.Type)),
				slog.String("template_id", cfg.TemplateID.String()))
		}

		if err := txConfigStore.Create(ctx, cfg); err != nil {
			return NewConfigServiceError("create_config", "failed to save config", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("created config",
		slog.String("config_id", cfg.ID.String()),
		slog.String("config_type", string(cfg.Type)))

	return cfg, nil
}

// GetConfig implements ConfigService.GetConfig
func (s *configServiceImpl) GetConfig(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) (*domain.TagConfig, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cfg, err := s.configStore.GetByID(ctx, configType, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	if cfg.ServiceAccount != serviceAccount {
		log.Warn("config read denied for non-owner",
			slog.String("config_id", id.String()),
			slog.String("requested_by", serviceAccount))
		return nil, nil
	}

	return cfg, nil
}

// ListConfigs implements ConfigService.ListConfigs
func (s *configServiceImpl) ListConfigs(ctx context.Context, serviceAccount string, configType domain.ConfigType, templateID uuid.UUID) ([]*domain.TagConfig, error) {
	return s.configStore.ListByOwner(ctx, serviceAccount, configType, templateID)
}

// DeleteConfig implements ConfigService.DeleteConfig
func (s *configServiceImpl) DeleteConfig(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) error {
	cfg, err := s.GetConfig(ctx, serviceAccount, configType, id)
	if err != nil {
		return err
	}
	if cfg == nil {
		return store.ErrConfigNotFound
	}

	return s.configStore.Delete(ctx, configType, id)
}

// PurgeInactiveConfigs implements ConfigService.PurgeInactiveConfigs
func (s *configServiceImpl) PurgeInactiveConfigs(ctx context.Context, serviceAccount string, configType domain.ConfigType) (int, error) {
	return s.configStore.PurgeInactive(ctx, serviceAccount, configType)
}

// SetSchedulingStatus implements ConfigService.SetSchedulingStatus
func (s *configServiceImpl) SetSchedulingStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.SchedulingStatus) error {
	return s.configStore.SetSchedulingStatus(ctx, configType, id, status)
}

// IncrementVersionAndReschedule implements ConfigService.IncrementVersionAndReschedule
func (s *configServiceImpl) IncrementVersionAndReschedule(ctx context.Context, cfg *domain.TagConfig, now time.Time) error {
	freq, unit := domain.NormalizeRefresh(cfg.RefreshFrequency, cfg.RefreshUnit)
	nextRun := domain.NextRunAfter(now.UTC(), freq, unit)

	return s.configStore.Reschedule(ctx, cfg.Type, cfg.ID, cfg.Version+1, nextRun)
}
