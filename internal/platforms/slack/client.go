package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/botdeckhq/botdeck/internal/credentials"
)

// DefaultAPIBase is the Slack Web API host.
const DefaultAPIBase = "https://slack.com/api"

// Client wraps the Slack Web API methods this service calls. Bot-token
// calls go through the credential-aware HTTP client so an invalidated token
// gets one refresh-and-replay.
type Client struct {
	logger  *slog.Logger
	http    *credentials.Client
	apiBase string
}

// NewClient creates a Slack Web API client. apiBase is overridable for
// tests; empty selects the real host.
func NewClient(log *slog.Logger, httpClient *credentials.Client, apiBase string) *Client {
	if log == nil {
		log = slog.Default()
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		logger:  log.With(slog.String("component", "slack_client")),
		http:    httpClient,
		apiBase: apiBase,
	}
}

// apiResponse is the envelope every Web API method returns. Slack signals
// failure with ok=false and HTTP 200, so status-code checks are not enough.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// PostMessage posts a markdown message into a channel, threaded when
// threadTS is set.
func (c *Client) PostMessage(ctx context.Context, accessToken, channel, threadTS, text string) error {
	payload := map[string]any{
		"channel": channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": text},
			},
		},
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	return c.call(ctx, accessToken, "chat.postMessage", payload)
}

// SetAssistantStatus sets the "is thinking" indicator on an assistant
// thread. Empty status clears it.
func (c *Client) SetAssistantStatus(ctx context.Context, accessToken, channel, threadTS, status string) error {
	return c.call(ctx, accessToken, "assistant.threads.setStatus", map[string]any{
		"channel_id": channel,
		"thread_ts":  threadTS,
		"status":     status,
	})
}

// OpenSocketConnection calls apps.connections.open with the app-level token
// and returns the Socket Mode websocket URL.
func (c *Client) OpenSocketConnection(ctx context.Context, appToken string) (string, error) {
	resp, err := c.http.Do(ctx, credentials.Request{
		Method: http.MethodPost,
		URL:    c.apiBase + "/apps.connections.open",
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
	}, appToken)
	if err != nil {
		return "", fmt.Errorf("apps.connections.open: %w", err)
	}
	body, err := credentials.ReadJSONResponse(resp)
	if err != nil {
		return "", fmt.Errorf("apps.connections.open: %w", err)
	}
	var opened struct {
		apiResponse
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &opened); err != nil {
		return "", fmt.Errorf("decode apps.connections.open response: %w", err)
	}
	if !opened.OK {
		return "", fmt.Errorf("apps.connections.open: %s", opened.Error)
	}
	return opened.URL, nil
}

func (c *Client) call(ctx context.Context, accessToken, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}
	resp, err := c.http.Do(ctx, credentials.Request{
		Method: http.MethodPost,
		URL:    c.apiBase + "/" + method,
		Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:   body,
	}, accessToken)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	raw, err := credentials.ReadJSONResponse(resp)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("%s: %s", method, api.Error)
	}
	return nil
}
