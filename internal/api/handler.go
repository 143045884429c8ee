// Package api - локальный HTTP API демона для оболочки приложения.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"script-studio/internal/model"
	"script-studio/internal/routing"
	"script-studio/internal/secrets"
	"script-studio/internal/stream"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

// ActionService выполняет действия.
type ActionService interface {
	Perform(ctx context.Context, req model.ActionRequest) (model.ActionResult, error)
	Stream(ctx context.Context, req model.ActionRequest) (*stream.Stream, error)
	ParseStoryboard(result model.ActionResult, next int) []model.StoryboardEntry
}

// AuditLog - чтение и очистка журнала аудита.
type AuditLog interface {
	FetchRecent(ctx context.Context, limit int) ([]model.AuditLogEntry, error)
	ClearAll(ctx context.Context) error
}

// ModelLister получает список моделей ретранслятора.
type ModelLister interface {
	ListModels(ctx context.Context, relay model.RelaySnapshot) ([]string, error)
	Refresh(ctx context.Context, relay model.RelaySnapshot) ([]string, error)
}

// RouteSettingsStore хранит настройки маршрутов.
type RouteSettingsStore interface {
	Snapshot() model.RouteSettings
	Update(settings model.RouteSettings) error
}

// Deps - зависимости Handler.
type Deps struct {
	Actions  ActionService
	Audit    AuditLog
	Models   ModelLister
	Settings RouteSettingsStore
	Secrets  secrets.Store
}

// Handler обрабатывает запросы локального API.
type Handler struct {
	actions  ActionService
	audit    AuditLog
	models   ModelLister
	settings RouteSettingsStore
	secrets  secrets.Store
	ws       wsConfig
	logger   *zap.Logger
}

// NewHandler создает новый Handler. allowedOrigins ограничивает Origin потокового соединения.
func NewHandler(deps Deps, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		actions:  deps.Actions,
		audit:    deps.Audit,
		models:   deps.Models,
		settings: deps.Settings,
		secrets:  deps.Secrets,
		ws:       newWSConfig(allowedOrigins),
		logger:   logger.Named("APIHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")
	{
		v1.POST("/actions", h.performAction)
		v1.GET("/actions/stream", h.streamAction)

		v1.GET("/audit", h.listAudit)
		v1.DELETE("/audit", h.clearAudit)

		v1.GET("/relay/models", h.listRelayModels)

		v1.GET("/settings/routes", h.getRouteSettings)
		v1.PUT("/settings/routes", h.putRouteSettings)

		v1.GET("/secrets/official", h.getOfficialSecret)
		v1.PUT("/secrets/official", h.putOfficialSecret)
		v1.DELETE("/secrets/official", h.deleteOfficialSecret)
	}
}

func (h *Handler) performAction(c *gin.Context) {
	var dto ActionRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		h.handleError(c, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.actions.Perform(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ActionResponseDTO{
		Result:  result,
		Entries: h.entriesFor(req, result, dto.NextShotNumber),
	})
}

func (h *Handler) entriesFor(req model.ActionRequest, result model.ActionResult, next int) []model.StoryboardEntry {
	if req.Kind() != model.ActionStoryboard {
		return nil
	}
	return h.actions.ParseStoryboard(result, next)
}

func (h *Handler) listAudit(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.handleError(c, fmt.Errorf("%w: limit must be an integer", errInvalidParam))
			return
		}
		limit = n
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	entries, err := h.audit.FetchRecent(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}
	c.JSON(http.StatusOK, AuditListDTO{Entries: entries})
}

func (h *Handler) clearAudit(c *gin.Context) {
	if err := h.audit.ClearAll(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	h.logger.Info("Audit log cleared")
	c.Status(http.StatusNoContent)
}

func (h *Handler) listRelayModels(c *gin.Context) {
	ch := model.Channel(c.DefaultQuery("channel", string(model.ChannelText)))
	if !ch.Valid() {
		h.handleError(c, fmt.Errorf("%w: unknown channel %q", errInvalidParam, ch))
		return
	}
	relay := routing.SnapshotOf(h.settings.Snapshot().Relay(ch))

	var (
		models []string
		err    error
	)
	if isTruthy(c.Query("refresh")) {
		models, err = h.models.Refresh(c.Request.Context(), relay)
	} else {
		models, err = h.models.ListModels(c.Request.Context(), relay)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, RelayModelsDTO{Channel: ch, Models: models})
}

func (h *Handler) getRouteSettings(c *gin.Context) {
	c.JSON(http.StatusOK, settingsToDTO(h.settings.Snapshot()))
}

func (h *Handler) putRouteSettings(c *gin.Context) {
	var dto RouteSettingsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		h.handleError(c, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}
	next := dto.apply(h.settings.Snapshot())
	if err := h.settings.Update(next); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsToDTO(next))
}

func (h *Handler) getOfficialSecret(c *gin.Context) {
	_, err := h.secrets.FetchSecret(c.Request.Context())
	c.JSON(http.StatusOK, SecretStatusDTO{Configured: err == nil})
}

func (h *Handler) putOfficialSecret(c *gin.Context) {
	var dto OfficialSecretDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		h.handleError(c, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}
	if strings.TrimSpace(dto.APIKey) == "" {
		h.handleError(c, fmt.Errorf("%w: apiKey is empty", errInvalidParam))
		return
	}
	if err := h.secrets.Save(c.Request.Context(), dto.APIKey); err != nil {
		h.handleError(c, err)
		return
	}
	h.logger.Info("Official API key saved")
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteOfficialSecret(c *gin.Context) {
	if err := h.secrets.Clear(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	h.logger.Info("Official API key removed")
	c.Status(http.StatusNoContent)
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
