// Package slack receives Slack Events API traffic (HTTP webhook or Socket
// Mode), routes actionable events through the suppression gates, and replies
// through the Slack Web API.
package slack

import (
	"encoding/json"
	"fmt"
)

// Envelope types from the Events API.
const (
	envelopeURLVerification = "url_verification"
	envelopeEventCallback   = "event_callback"
)

// Inner event types this handler acts on.
const (
	eventMessage                = "message"
	eventAssistantThreadStarted = "assistant_thread_started"
)

// EventEnvelope is the outer Events API payload.
type EventEnvelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// MessageEvent is a message posted in a channel the app can see.
type MessageEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	User        string `json:"user,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Text        string `json:"text,omitempty"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type,omitempty"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts,omitempty"`
}

// ThreadKey returns the timestamp that anchors the thread this message
// belongs to. A top-level message anchors its own thread.
func (e MessageEvent) ThreadKey() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

// AssistantThreadStartedEvent fires when a user opens an assistant thread
// with the app.
type AssistantThreadStartedEvent struct {
	Type            string `json:"type"`
	AssistantThread struct {
		UserID    string `json:"user_id"`
		ChannelID string `json:"channel_id"`
		ThreadTS  string `json:"thread_ts"`
	} `json:"assistant_thread"`
}

// eventType peeks at the inner event's type without committing to a shape.
func eventType(raw json.RawMessage) (string, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return "", fmt.Errorf("decode event type: %w", err)
	}
	return peek.Type, nil
}
