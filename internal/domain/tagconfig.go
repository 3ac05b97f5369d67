package domain

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ConfigType identifies one of the supported configuration variants.
// The set is closed: store components map each variant to its own table.
type ConfigType string

// Supported configuration variants.
const (
	ConfigTypeStaticAsset     ConfigType = "STATIC_TAG_ASSET"
	ConfigTypeDynamicTable    ConfigType = "DYNAMIC_TAG_TABLE"
	ConfigTypeDynamicColumn   ConfigType = "DYNAMIC_TAG_COLUMN"
	ConfigTypeEntryCreate     ConfigType = "ENTRY_CREATE"
	ConfigTypeGlossaryAsset   ConfigType = "GLOSSARY_TAG_ASSET"
	ConfigTypeSensitiveColumn ConfigType = "SENSITIVE_TAG_COLUMN"
	ConfigTypeRestore         ConfigType = "TAG_RESTORE"
	ConfigTypeImport          ConfigType = "TAG_IMPORT"
	ConfigTypeExport          ConfigType = "TAG_EXPORT"
)

// ConfigTypes lists every supported variant, in a fixed order. Callers
// that fan out across all variant tables iterate this slice rather than
// any mutable registry.
var ConfigTypes = []ConfigType{
	ConfigTypeStaticAsset,
	ConfigTypeDynamicTable,
	ConfigTypeDynamicColumn,
	ConfigTypeEntryCreate,
	ConfigTypeGlossaryAsset,
	ConfigTypeSensitiveColumn,
	ConfigTypeRestore,
	ConfigTypeImport,
	ConfigTypeExport,
}

// Valid reports whether the value names a supported variant.
func (c ConfigType) Valid() bool {
	switch c {
	case ConfigTypeStaticAsset, ConfigTypeDynamicTable, ConfigTypeDynamicColumn,
		ConfigTypeEntryCreate, ConfigTypeGlossaryAsset, ConfigTypeSensitiveColumn,
		ConfigTypeRestore, ConfigTypeImport, ConfigTypeExport:
		return true
	default:
		return false
	}
}

// ParseConfigType validates a caller-supplied config type string.
func ParseConfigType(s string) (ConfigType, error) {
	ct := ConfigType(s)
	if !ct.Valid() {
		return "", ErrUnknownConfigType
	}
	return ct, nil
}

// ConfigStatus marks whether a configuration is the live one for its
// dedup key. At most one ACTIVE config exists per key; writing a new
// config supersedes any prior ACTIVE match.
type ConfigStatus string

const (
	ConfigStatusActive   ConfigStatus = "ACTIVE"
	ConfigStatusInactive ConfigStatus = "INACTIVE"
)

// RefreshMode controls whether the scheduler re-runs a configuration.
type RefreshMode string

const (
	RefreshModeAuto     RefreshMode = "AUTO"
	RefreshModeOnDemand RefreshMode = "ON_DEMAND"
)

// RefreshUnit is the unit of a configuration's refresh frequency.
type RefreshUnit string

const (
	RefreshUnitMinutes RefreshUnit = "minutes"
	RefreshUnitHours   RefreshUnit = "hours"
	RefreshUnitDays    RefreshUnit = "days"
)

// SchedulingStatus gates whether the scheduler may pick up an AUTO config.
type SchedulingStatus string

const (
	SchedulingStatusReady  SchedulingStatus = "READY"
	SchedulingStatusPaused SchedulingStatus = "PAUSED"
)

// defaultRefreshFrequency is applied when a caller supplies a
// non-positive refresh frequency for an AUTO config.
const defaultRefreshFrequency = 24

// Common validation errors for TagConfig
var (
	ErrEmptyConfigID       = errors.New("config ID cannot be empty")
	ErrEmptyTemplateID     = errors.New("config template ID cannot be empty")
	ErrEmptyServiceAccount = errors.New("config service account cannot be empty")
	ErrEmptyIncludedURIs   = errors.New("config included URIs cannot be empty")
	ErrInvalidRefreshMode  = errors.New("invalid refresh mode")
)

// TagConfig is a persisted description of what tagging work to perform
// and how or when to repeat it. One row exists per write; superseded rows
// stay behind with INACTIVE status.
type TagConfig struct {
	ID               uuid.UUID        `json:"config_uuid"`
	Type             ConfigType       `json:"config_type"`
	Status           ConfigStatus     `json:"config_status"`
	Fields           map[string]any   `json:"fields"`
	IncludedURIs     string           `json:"included_uris"`
	IncludedURIsHash string           `json:"included_uris_hash"`
	ExcludedURIs     string           `json:"excluded_uris"`
	TemplateID       uuid.UUID        `json:"template_uuid"`
	TemplateName     string           `json:"template_id"`
	TemplateProject  string           `json:"template_project"`
	TemplateRegion   string           `json:"template_region"`
	RefreshMode      RefreshMode      `json:"refresh_mode"`
	RefreshFrequency int              `json:"refresh_frequency"`
	RefreshUnit      RefreshUnit      `json:"refresh_unit"`
	SchedulingStatus SchedulingStatus `json:"scheduling_status"`
	NextRun          *time.Time       `json:"next_run,omitempty"`
	Version          int              `json:"version"`
	ServiceAccount   string           `json:"service_account"`
	CreationTime     time.Time        `json:"creation_time"`
}

// HashURIs returns the content hash of an inclusion-filter string, the
// third component of a config's dedup key.
func HashURIs(uris string) string {
	sum := md5.Sum([]byte(uris))
	return hex.EncodeToString(sum[:])
}

// NewTagConfig creates an ACTIVE config with version 1. AUTO configs get
// a normalized refresh frequency, READY scheduling status, and a first
// NextRun computed from now; ON_DEMAND configs carry no schedule.
func NewTagConfig(
	configType ConfigType,
	serviceAccount string,
	fields map[string]any,
	includedURIs, excludedURIs string,
	templateID uuid.UUID,
	templateName, templateProject, templateRegion string,
	refreshMode RefreshMode,
	refreshFrequency int,
	refreshUnit RefreshUnit,
) (*TagConfig, error) {
	cfg := &TagConfig{
		ID:               uuid.New(),
		Type:             configType,
		Status:           ConfigStatusActive,
		Fields:           fields,
		IncludedURIs:     includedURIs,
		IncludedURIsHash: HashURIs(includedURIs),
		ExcludedURIs:     excludedURIs,
		TemplateID:       templateID,
		TemplateName:     templateName,
		TemplateProject:  templateProject,
		TemplateRegion:   templateRegion,
		RefreshMode:      refreshMode,
		Version:          1,
		ServiceAccount:   serviceAccount,
		CreationTime:     time.Now().UTC(),
	}

	if refreshMode == RefreshModeAuto {
		freq, unit := NormalizeRefresh(refreshFrequency, refreshUnit)
		cfg.RefreshFrequency = freq
		cfg.RefreshUnit = unit
		cfg.SchedulingStatus = SchedulingStatusReady
		next := NextRunAfter(time.Now().UTC(), freq, unit)
		cfg.NextRun = &next
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the TagConfig has valid data.
func (c *TagConfig) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyConfigID
	}

	if !c.Type.Valid() {
		return ErrUnknownConfigType
	}

	if c.ServiceAccount == "" {
		return ErrEmptyServiceAccount
	}

	if c.IncludedURIs == "" {
		return ErrEmptyIncludedURIs
	}

	if c.TemplateID == uuid.Nil {
		return ErrEmptyTemplateID
	}

	if c.RefreshMode != RefreshModeAuto && c.RefreshMode != RefreshModeOnDemand {
		return ErrInvalidRefreshMode
	}

	return nil
}

// ReadyAt reports whether the scheduler should pick this config up at the
// given instant.
func (c *TagConfig) ReadyAt(now time.Time) bool {
	return c.RefreshMode == RefreshModeAuto &&
		c.SchedulingStatus == SchedulingStatusReady &&
		c.Status == ConfigStatusActive &&
		c.NextRun != nil && !c.NextRun.After(now)
}

// NormalizeRefresh applies the scheduling defaults: a non-positive
// frequency becomes 24 and an unknown unit falls back to days.
func NormalizeRefresh(frequency int, unit RefreshUnit) (int, RefreshUnit) {
	if frequency <= 0 {
		frequency = defaultRefreshFrequency
	}
	switch unit {
	case RefreshUnitMinutes, RefreshUnitHours, RefreshUnitDays:
	default:
		unit = RefreshUnitDays
	}
	return frequency, unit
}

// NextRunAfter computes the next scheduled run relative to now.
func NextRunAfter(now time.Time, frequency int, unit RefreshUnit) time.Time {
	switch unit {
	case RefreshUnitMinutes:
		return now.Add(time.Duration(frequency) * time.Minute)
	case RefreshUnitHours:
		return now.Add(time.Duration(frequency) * time.Hour)
	default:
		return now.AddDate(0, 0, frequency)
	}
}
