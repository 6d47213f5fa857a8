package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// DeploymentsHandler is the admin CRUD surface for deployment configs and
// their opt-out lists.
type DeploymentsHandler struct {
	logger   *slog.Logger
	store    *deployment.Store
	registry *deployment.Registry
}

func NewDeploymentsHandler(log *slog.Logger, store *deployment.Store, registry *deployment.Registry) *DeploymentsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DeploymentsHandler{
		logger:   log.With(slog.String("handler", "deployments")),
		store:    store,
		registry: registry,
	}
}

func (h *DeploymentsHandler) Register(e *echo.Echo) {
	e.GET("/api/platforms", h.ListPlatforms)
	e.GET("/api/bots/:botID/deployments", h.ListByBot)
	e.PUT("/api/bots/:botID/deployments", h.Upsert)
	e.GET("/api/deployments/:platform/:accountID", h.GetByPlatformAccount)
	e.POST("/api/deployments/:id/opt-outs", h.AddOptOut)
	e.DELETE("/api/deployments/:id/opt-outs/:conversationID", h.RemoveOptOut)
}

// ListPlatforms returns the registered platform descriptors.
func (h *DeploymentsHandler) ListPlatforms(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Descriptors())
}

func (h *DeploymentsHandler) ListByBot(c echo.Context) error {
	items, err := h.store.ListByBot(c.Request().Context(), c.Param("botID"))
	if err != nil {
		h.logger.Error("list deployments failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "list deployments failed")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *DeploymentsHandler) GetByPlatformAccount(c echo.Context) error {
	platform, err := h.registry.Parse(c.Param("platform"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.store.GetByPlatformAccount(c.Request().Context(), platform, c.Param("accountID"))
	if errors.Is(err, deployment.ErrDeploymentNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "deployment not found")
	}
	if err != nil {
		h.logger.Error("get deployment failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "get deployment failed")
	}
	return c.JSON(http.StatusOK, item)
}

type upsertDeploymentRequest struct {
	Platform          string               `json:"platform"`
	PlatformAccountID string               `json:"platform_account_id"`
	Channels          []deployment.Channel `json:"channels"`
	GlobalSettings    map[string]any       `json:"global_settings"`
}

func (h *DeploymentsHandler) Upsert(c echo.Context) error {
	var req upsertDeploymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	platform, err := h.registry.Parse(req.Platform)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PlatformAccountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "platform_account_id is required")
	}
	item, err := h.store.Upsert(c.Request().Context(), deployment.UpsertRequest{
		BotID:             c.Param("botID"),
		Platform:          platform,
		PlatformAccountID: req.PlatformAccountID,
		Channels:          req.Channels,
		GlobalSettings:    req.GlobalSettings,
	})
	if err != nil {
		h.logger.Error("upsert deployment failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "upsert deployment failed")
	}
	return c.JSON(http.StatusOK, item)
}

type optOutRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (h *DeploymentsHandler) AddOptOut(c echo.Context) error {
	var req optOutRequest
	if err := c.Bind(&req); err != nil || req.ConversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	if err := h.store.AddOptOut(c.Request().Context(), c.Param("id"), req.ConversationID); err != nil {
		h.logger.Error("add opt-out failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "add opt-out failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DeploymentsHandler) RemoveOptOut(c echo.Context) error {
	if err := h.store.RemoveOptOut(c.Request().Context(), c.Param("id"), c.Param("conversationID")); err != nil {
		h.logger.Error("remove opt-out failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "remove opt-out failed")
	}
	return c.NoContent(http.StatusNoContent)
}
