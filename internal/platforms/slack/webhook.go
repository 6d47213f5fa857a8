package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// signatureVersion prefixes every Slack request signature.
const signatureVersion = "v0"

// signatureMaxAge bounds how stale a signed request may be before it is
// treated as a replay.
const signatureMaxAge = 5 * time.Minute

// Webhook is the Events API HTTP boundary. It verifies the request
// signature, answers url_verification challenges, and hands event callbacks
// to the dispatcher so the HTTP response is never held behind processing.
type Webhook struct {
	logger        *slog.Logger
	signingSecret string
	handler       *Handler
	dispatcher    *deployment.Dispatcher
	now           func() time.Time
}

// NewWebhook creates the Events API endpoint handler.
func NewWebhook(log *slog.Logger, signingSecret string, handler *Handler, dispatcher *deployment.Dispatcher) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		logger:        log.With(slog.String("component", "slack_webhook")),
		signingSecret: signingSecret,
		handler:       handler,
		dispatcher:    dispatcher,
		now:           time.Now,
	}
}

// Register mounts the webhook route.
func (w *Webhook) Register(e *echo.Echo) {
	e.POST("/webhooks/slack", w.Handle)
}

// Handle is the echo route handler for POST /webhooks/slack.
func (w *Webhook) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	if w.signingSecret != "" {
		timestamp := c.Request().Header.Get("X-Slack-Request-Timestamp")
		signature := c.Request().Header.Get("X-Slack-Signature")
		if !w.verifySignature(timestamp, signature, body) {
			w.logger.Warn("rejected slack request with bad signature")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
		}
	}

	var env EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if env.Type == envelopeURLVerification {
		return c.JSON(http.StatusOK, map[string]string{"challenge": env.Challenge})
	}

	// Acknowledge before processing: Slack retries on slow responses and a
	// retry storm is worse than a dropped event.
	w.dispatcher.Submit(func(ctx context.Context) {
		w.handler.HandleEvent(ctx, env)
	})
	return c.NoContent(http.StatusOK)
}

// verifySignature checks the v0 HMAC-SHA256 request signature and rejects
// timestamps outside the replay window.
func (w *Webhook) verifySignature(timestamp, signature string, body []byte) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := w.now().Sub(time.Unix(ts, 0))
	if age > signatureMaxAge || age < -signatureMaxAge {
		return false
	}
	mac := hmac.New(sha256.New, []byte(w.signingSecret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	expected := signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
