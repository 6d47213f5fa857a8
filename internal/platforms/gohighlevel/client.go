// Package gohighlevel receives GoHighLevel conversation webhooks, applies
// the suppression gates (including the contact kill-switch tag), and replies
// through the LeadConnector REST API.
package gohighlevel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/botdeckhq/botdeck/internal/credentials"
)

// apiVersion is the Version header the LeadConnector API requires.
const apiVersion = "2021-04-15"

// SendMessageRequest is the outbound message payload for
// POST /conversations/messages.
type SendMessageRequest struct {
	Type           string `json:"type"`
	ContactID      string `json:"contactId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	LocationID     string `json:"locationId,omitempty"`
}

// Client wraps the LeadConnector API calls this service makes. All calls go
// through the credential-aware HTTP client for the one-shot 401 refresh.
type Client struct {
	logger  *slog.Logger
	http    *credentials.Client
	apiBase string
}

// NewClient creates a GoHighLevel API client. apiBase is overridable for
// tests.
func NewClient(log *slog.Logger, httpClient *credentials.Client, apiBase string) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		logger:  log.With(slog.String("component", "gohighlevel_client")),
		http:    httpClient,
		apiBase: apiBase,
	}
}

// SendMessage delivers one outbound message to a contact's conversation.
func (c *Client) SendMessage(ctx context.Context, accessToken string, req SendMessageRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal send message payload: %w", err)
	}
	resp, err := c.http.Do(ctx, credentials.Request{
		Method: http.MethodPost,
		URL:    c.apiBase + "/conversations/messages",
		Header: http.Header{
			"Content-Type": {"application/json"},
			"Version":      {apiVersion},
		},
		Body: body,
	}, accessToken)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if _, err := credentials.ReadJSONResponse(resp); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ListContactTags fetches the tags on one contact. The kill-switch gate is
// the only caller.
func (c *Client) ListContactTags(ctx context.Context, accessToken, contactID string) ([]string, error) {
	resp, err := c.http.Do(ctx, credentials.Request{
		Method: http.MethodGet,
		URL:    c.apiBase + "/contacts/" + url.PathEscape(contactID),
		Header: http.Header{"Version": {apiVersion}},
	}, accessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch contact: %w", err)
	}
	body, err := credentials.ReadJSONResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch contact: %w", err)
	}
	var payload struct {
		Contact struct {
			Tags []string `json:"tags"`
		} `json:"contact"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	return payload.Contact.Tags, nil
}
