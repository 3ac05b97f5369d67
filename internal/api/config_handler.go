// Package api provides HTTP handlers for the API.
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

// ConfigHandler handles tag-configuration HTTP requests.
type ConfigHandler struct {
	configService service.ConfigService
	logger        *slog.Logger
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(configService service.ConfigService, logger *slog.Logger) *ConfigHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ConfigHandler")
	}

	return &ConfigHandler{
		configService: configService,
		logger:        logger.With(slog.String("component", "config_handler")),
	}
}

// CreateConfig handles POST /configs requests. Writing a config with the
// same owner, template, type, and inclusion-filter hash as an existing
// ACTIVE config supersedes the prior one.
func (h *ConfigHandler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		log.Warn("service account not found in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	var req CreateConfigRequest
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

	cfg, err := domain.NewTagConfig(
		configType,
		serviceAccount,
		req.Fields,
		req.IncludedURIs,
		req.ExcludedURIs,
		req.TemplateID,
		req.TemplateName,
		req.TemplateProject,
		req.TemplateRegion,
		domain.RefreshMode(req.RefreshMode),
		req.RefreshFrequency,
		domain.RefreshUnit(req.RefreshUnit),
	)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid config data", err)
		return
	}

	created, err := h.configService.CreateConfig(r.Context(), cfg)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("config created",
		slog.String("config_id", created.ID.String()),
		slog.String("config_type", string(created.Type)))
	shared.RespondWithJSON(w, r, http.StatusCreated, NewConfigResponse(created))
}

// GetConfig handles GET /configs/{type}/{id} requests. Configs owned by
// another service account are reported as not found.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	configType, configID, ok := h.configParams(w, r)
	if !ok {
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

	shared.RespondWithJSON(w, r, http.StatusOK, NewConfigResponse(cfg))
}

// ListConfigs handles GET /configs requests. The optional "type" and
// "template_uuid" query parameters narrow the listing; results are
// newest first and never include superseded (INACTIVE) configs.
func (h *ConfigHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	var configType domain.ConfigType
	if raw := r.URL.Query().Get("type"); raw != "" {
		ct, err := domain.ParseConfigType(raw)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
			return
		}
		configType = ct
	}

	var templateID uuid.UUID
	if raw := r.URL.Query().Get("template_uuid"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid template UUID")
			return
		}
		templateID = id
	}

	configs, err := h.configService.ListConfigs(r.Context(), serviceAccount, configType, templateID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := ListConfigsResponse{Configs: make([]ConfigResponse, 0, len(configs))}
	for _, cfg := range configs {
		resp.Configs = append(resp.Configs, NewConfigResponse(cfg))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// DeleteConfig handles DELETE /configs/{type}/{id} requests.
func (h *ConfigHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	configType, configID, ok := h.configParams(w, r)
	if !ok {
		return
	}

	if err := h.configService.DeleteConfig(r.Context(), serviceAccount, configType, configID); err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("config deleted",
		slog.String("config_id", configID.String()),
		slog.String("config_type", string(configType)))
	w.WriteHeader(http.StatusNoContent)
}

// PurgeInactiveConfigs handles POST /configs/purge requests, removing the
// caller's superseded configs. The optional "type" query parameter limits
// the purge to one variant.
func (h *ConfigHandler) PurgeInactiveConfigs(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	var configType domain.ConfigType
	if raw := r.URL.Query().Get("type"); raw != "" {
		ct, err := domain.ParseConfigType(raw)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
			return
		}
		configType = ct
	}

	purged, err := h.configService.PurgeInactiveConfigs(r.Context(), serviceAccount, configType)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("purged inactive configs", slog.Int("count", purged))
	shared.RespondWithJSON(w, r, http.StatusOK, PurgeConfigsResponse{Purged: purged})
}

// SetSchedulingStatus handles PUT /configs/{type}/{id}/scheduling
// requests, pausing or resuming scheduled re-runs of a config.
func (h *ConfigHandler) SetSchedulingStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceAccount := shared.GetServiceAccount(r.Context())
	if serviceAccount == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Caller identity not found")
		return
	}

	configType, configID, ok := h.configParams(w, r)
	if !ok {
		return
	}

	var req SetSchedulingStatusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	// Ownership gate: pausing someone else's config must look like a miss.
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

	status := domain.SchedulingStatus(req.SchedulingStatus)
	if err := h.configService.SetSchedulingStatus(r.Context(), configType, configID, status); err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("scheduling status updated",
		slog.String("config_id", configID.String()),
		slog.String("scheduling_status", req.SchedulingStatus))
	w.WriteHeader(http.StatusNoContent)
}

// configParams extracts and validates the {type} and {id} URL parameters.
// On failure it writes the error response and returns ok=false.
func (h *ConfigHandler) configParams(
	w http.ResponseWriter,
	r *http.Request,
) (domain.ConfigType, uuid.UUID, bool) {
	configType, err := domain.ParseConfigType(chi.URLParam(r, "type"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return "", uuid.Nil, false
	}

	configID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid config UUID")
		return "", uuid.Nil, false
	}

	return configType, configID, true
}
