package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func signRequest(secret, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":" + body))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func postEvent(t *testing.T, webhook *Webhook, body string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sign {
		ts := fmt.Sprintf("%d", time.Now().Unix())
		req.Header.Set("X-Slack-Request-Timestamp", ts)
		req.Header.Set("X-Slack-Signature", signRequest(testSigningSecret, ts, body))
	}
	rec := httptest.NewRecorder()
	err := webhook.Handle(e.NewContext(req, rec))
	if err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestWebhook_URLVerificationChallenge(t *testing.T) {
	webhook := NewWebhook(nil, testSigningSecret, nil, nil)
	rec := postEvent(t, webhook, `{"type":"url_verification","challenge":"abc123"}`, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "abc123")
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	webhook := NewWebhook(nil, testSigningSecret, nil, nil)

	e := echo.New()
	body := `{"type":"event_callback"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", strings.NewReader(body))
	ts := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	rec := httptest.NewRecorder()

	err := webhook.Handle(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestWebhook_RejectsStaleTimestamp(t *testing.T) {
	webhook := NewWebhook(nil, testSigningSecret, nil, nil)

	e := echo.New()
	body := `{"type":"event_callback"}`
	ts := fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).Unix())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", signRequest(testSigningSecret, ts, body))
	rec := httptest.NewRecorder()

	err := webhook.Handle(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestWebhook_AcknowledgesWithoutWaitingForProcessing(t *testing.T) {
	// The dispatcher is never started: if the webhook waited on event
	// processing this request would hang instead of returning 200.
	dispatcher := deployment.NewDispatcher(nil, 1, 8)
	handler := NewHandler(nil, &fakeDeployments{err: deployment.ErrDeploymentNotFound}, &fakeCredentials{}, nil, &fakeRunner{})
	webhook := NewWebhook(nil, testSigningSecret, handler, dispatcher)

	body := `{"type":"event_callback","team_id":"T1","event":{"type":"message","channel":"C1","ts":"1.0","text":"hi","user":"U1","channel_type":"im"}}`
	rec := postEvent(t, webhook, body, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}
