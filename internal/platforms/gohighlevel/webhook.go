package gohighlevel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// secretHeader carries the shared secret configured on the marketplace app's
// webhook subscription.
const secretHeader = "X-Webhook-Token"

// Webhook is the HTTP boundary for conversation webhooks. It verifies the
// shared secret, acknowledges immediately, and hands processing to the
// dispatcher.
type Webhook struct {
	logger     *slog.Logger
	secret     string
	handler    *Handler
	dispatcher *deployment.Dispatcher
}

// NewWebhook creates the webhook endpoint handler. An empty secret disables
// verification (local development only).
func NewWebhook(log *slog.Logger, secret string, handler *Handler, dispatcher *deployment.Dispatcher) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		logger:     log.With(slog.String("component", "gohighlevel_webhook")),
		secret:     secret,
		handler:    handler,
		dispatcher: dispatcher,
	}
}

// Register mounts the webhook route.
func (w *Webhook) Register(e *echo.Echo) {
	e.POST("/webhooks/gohighlevel", w.Handle)
}

// Handle is the echo route handler for POST /webhooks/gohighlevel.
func (w *Webhook) Handle(c echo.Context) error {
	if w.secret != "" {
		provided := c.Request().Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(w.secret)) != 1 {
			w.logger.Warn("rejected webhook with bad secret")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
		}
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	w.dispatcher.Submit(func(ctx context.Context) {
		w.handler.HandleEvent(ctx, payload)
	})
	return c.NoContent(http.StatusOK)
}
