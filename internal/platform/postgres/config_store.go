package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
	"github.com/tagworks/tagworks-api/internal/store"
)

// configTables is the closed mapping from config variant to its table.
// Every table shares the same column layout; only the variant differs.
// Unknown types are rejected before any SQL is built.
var configTables = map[domain.ConfigType]string{
	domain.ConfigTypeStaticAsset:     "static_asset_configs",
	domain.ConfigTypeDynamicTable:    "dynamic_table_configs",
	domain.ConfigTypeDynamicColumn:   "dynamic_column_configs",
	domain.ConfigTypeEntryCreate:     "entry_configs",
	domain.ConfigTypeGlossaryAsset:   "glossary_asset_configs",
	domain.ConfigTypeSensitiveColumn: "sensitive_column_configs",
	domain.ConfigTypeRestore:         "restore_configs",
	domain.ConfigTypeImport:          "import_configs",
	domain.ConfigTypeExport:          "export_configs",
}

// configTable resolves the table for a variant.
func configTable(configType domain.ConfigType) (string, error) {
	table, ok := configTables[configType]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownConfigType, configType)
	}
	return table, nil
}

// configColumns is the shared select list for every variant table.
const configColumns = `config_uuid, config_type, config_status, fields,
	included_uris, included_uris_hash, excluded_uris, template_uuid,
	template_id, template_project, template_region, refresh_mode,
	refresh_frequency, refresh_unit, scheduling_status, next_run,
	version, service_account, creation_time`

// PostgresConfigStore implements the store.ConfigStore interface
// using a PostgreSQL database as the storage backend.
type PostgresConfigStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresConfigStore creates a new PostgreSQL implementation of the ConfigStore interface.
func NewPostgresConfigStore(db store.DBTX, logger *slog.Logger) *PostgresConfigStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresConfigStore{
		db:     db,
		logger: logger.With(slog.String("component", "config_store")),
	}
}

// Ensure PostgresConfigStore implements store.ConfigStore interface
var _ store.ConfigStore = (*PostgresConfigStore)(nil)

// WithTx returns a new ConfigStore that runs on the given transaction.
func (s *PostgresConfigStore) WithTx(tx *sql.Tx) store.ConfigStore {
	return &PostgresConfigStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.ConfigStore.Create
func (s *PostgresConfigStore) Create(ctx context.Context, cfg *domain.TagConfig) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	table, err := configTable(cfg.Type)
	if err != nil {
		return err
	}

	query, args, err := NewRecord().
		Set("config_uuid", ID(cfg.ID)).
		Set("config_type", String(string(cfg.Type))).
		Set("config_status", String(string(cfg.Status))).
		Set("fields", JSON(cfg.Fields)).
		Set("included_uris", String(cfg.IncludedURIs)).
		Set("included_uris_hash", String(cfg.IncludedURIsHash)).
		Set("excluded_uris", String(cfg.ExcludedURIs)).
		Set("template_uuid", ID(cfg.TemplateID)).
		Set("template_id", String(cfg.TemplateName)).
		Set("template_project", String(cfg.TemplateProject)).
		Set("template_region", String(cfg.TemplateRegion)).
		Set("refresh_mode", String(string(cfg.RefreshMode))).
		Set("refresh_frequency", Int(cfg.RefreshFrequency)).
		Set("refresh_unit", String(string(cfg.RefreshUnit))).
		Set("scheduling_status", String(string(cfg.SchedulingStatus))).
		Set("next_run", NullableTimestamp(cfg.NextRun)).
		Set("version", Int(cfg.Version)).
		Set("service_account", String(cfg.ServiceAccount)).
		Set("creation_time", Timestamp(cfg.CreationTime)).
		Insert(table)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to create config",
			slog.String("error", err.Error()),
			slog.String("config_id", cfg.ID.String()),
			slog.String("config_type", string(cfg.Type)))
		return MapError(err)
	}

	return nil
}

// DeactivateMatching implements store.ConfigStore.DeactivateMatching
func (s *PostgresConfigStore) DeactivateMatching(ctx context.Context, key store.ConfigKey) (int, error) {
	table, err := configTable(key.Type)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET config_status = $1
		WHERE template_uuid = $2
		  AND included_uris_hash = $3
		  AND service_account = $4
		  AND config_type = $5
		  AND config_status != $6
	`, table)

	result, err := s.db.ExecContext(ctx, query,
		string(domain.ConfigStatusInactive),
		key.TemplateID,
		key.IncludedURIsHash,
		key.ServiceAccount,
		string(key.Type),
		string(domain.ConfigStatusInactive),
	)
	if err != nil {
		return 0, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// GetByID implements store.ConfigStore.GetByID
func (s *PostgresConfigStore) GetByID(ctx context.Context, configType domain.ConfigType, id uuid.UUID) (*domain.TagConfig, error) {
	table, err := configTable(configType)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE config_uuid = $1`, configColumns, table)

	cfg, err := scanConfig(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrConfigNotFound
		}
		return nil, MapError(err)
	}

	return cfg, nil
}

// ListByOwner implements store.ConfigStore.ListByOwner
func (s *PostgresConfigStore) ListByOwner(
	ctx context.Context,
	serviceAccount string,
	configType domain.ConfigType,
	templateID uuid.UUID,
) ([]*domain.TagConfig, error) {
	types := []domain.ConfigType{configType}
	if configType == "" {
		types = domain.ConfigTypes
	}

	var configs []*domain.TagConfig
	for _, ct := range types {
		table, err := configTable(ct)
		if err != nil {
			return nil, err
		}

		query := fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE service_account = $1 AND config_status != $2
		`, configColumns, table)
		args := []any{serviceAccount, string(domain.ConfigStatusInactive)}

		if templateID != uuid.Nil {
			query += ` AND template_uuid = $3`
			args = append(args, templateID)
		}
		query += ` ORDER BY creation_time DESC`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, MapError(err)
		}

		batch, err := scanConfigs(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, batch...)
	}

	return configs, nil
}

// ListReady implements store.ConfigStore.ListReady. The scan fans out
// over every variant table; each hit is due for a scheduled re-run.
func (s *PostgresConfigStore) ListReady(ctx context.Context, now time.Time) ([]*domain.TagConfig, error) {
	var ready []*domain.TagConfig
	for _, ct := range domain.ConfigTypes {
		table, err := configTable(ct)
		if err != nil {
			return nil, err
		}

		query := fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE refresh_mode = $1
			  AND scheduling_status = $2
			  AND config_status = $3
			  AND next_run <= $4
		`, configColumns, table)

		rows, err := s.db.QueryContext(ctx, query,
			string(domain.RefreshModeAuto),
			string(domain.SchedulingStatusReady),
			string(domain.ConfigStatusActive),
			now.UTC(),
		)
		if err != nil {
			return nil, MapError(err)
		}

		batch, err := scanConfigs(rows)
		if err != nil {
			return nil, err
		}
		ready = append(ready, batch...)
	}

	return ready, nil
}

// Reschedule implements store.ConfigStore.Reschedule
func (s *PostgresConfigStore) Reschedule(ctx context.Context, configType domain.ConfigType, id uuid.UUID, version int, nextRun time.Time) error {
	table, err := configTable(configType)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE %s SET version = $1, next_run = $2 WHERE config_uuid = $3`, table)

	result, err := s.db.ExecContext(ctx, query, version, nextRun.UTC(), id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "config")
}

// SetSchedulingStatus implements store.ConfigStore.SetSchedulingStatus
func (s *PostgresConfigStore) SetSchedulingStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.SchedulingStatus) error {
	table, err := configTable(configType)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE %s SET scheduling_status = $1 WHERE config_uuid = $2`, table)

	result, err := s.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "config")
}

// SetConfigStatus implements store.ConfigStore.SetConfigStatus
func (s *PostgresConfigStore) SetConfigStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.ConfigStatus) error {
	table, err := configTable(configType)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE %s SET config_status = $1 WHERE config_uuid = $2`, table)

	result, err := s.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "config")
}

// Delete implements store.ConfigStore.Delete
func (s *PostgresConfigStore) Delete(ctx context.Context, configType domain.ConfigType, id uuid.UUID) error {
	table, err := configTable(configType)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE config_uuid = $1`, table)

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "config")
}

// PurgeInactive implements store.ConfigStore.PurgeInactive
func (s *PostgresConfigStore) PurgeInactive(ctx context.Context, serviceAccount string, configType domain.ConfigType) (int, error) {
	types := []domain.ConfigType{configType}
	if configType == "" {
		types = domain.ConfigTypes
	}

	total := 0
	for _, ct := range types {
		table, err := configTable(ct)
		if err != nil {
			return total, err
		}

		query := fmt.Sprintf(`
			DELETE FROM %s
			WHERE config_status = $1 AND service_account = $2
		`, table)

		result, err := s.db.ExecContext(ctx, query,
			string(domain.ConfigStatusInactive), serviceAccount)
		if err != nil {
			return total, MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += int(rowsAffected)
	}

	return total, nil
}

// scanConfig reads one config row from either a *sql.Row or *sql.Rows.
func scanConfig(row interface{ Scan(dest ...any) error }) (*domain.TagConfig, error) {
	var cfg domain.TagConfig
	var configType, status, refreshMode string
	var refreshUnit, schedulingStatus sql.NullString
	var fields []byte
	var nextRun sql.NullTime

	err := row.Scan(
		&cfg.ID,
		&configType,
		&status,
		&fields,
		&cfg.IncludedURIs,
		&cfg.IncludedURIsHash,
		&cfg.ExcludedURIs,
		&cfg.TemplateID,
		&cfg.TemplateName,
		&cfg.TemplateProject,
		&cfg.TemplateRegion,
		&refreshMode,
		&cfg.RefreshFrequency,
		&refreshUnit,
		&schedulingStatus,
		&nextRun,
		&cfg.Version,
		&cfg.ServiceAccount,
		&cfg.CreationTime,
	)
	if err != nil {
		return nil, err
	}

	cfg.Type = domain.ConfigType(configType)
	cfg.Status = domain.ConfigStatus(status)
	cfg.RefreshMode = domain.RefreshMode(refreshMode)
	cfg.RefreshUnit = domain.RefreshUnit(refreshUnit.String)
	cfg.SchedulingStatus = domain.SchedulingStatus(schedulingStatus.String)
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &cfg.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode config fields: %w", err)
		}
	}
	if nextRun.Valid {
		t := nextRun.Time
		cfg.NextRun = &t
	}

	return &cfg, nil
}

// scanConfigs drains a result set into configs, closing the rows.
func scanConfigs(rows *sql.Rows) ([]*domain.TagConfig, error) {
	defer func() { _ = rows.Close() }()

	var configs []*domain.TagConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, MapError(err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return configs, nil
}
