package gohighlevel

import (
	"context"
	"log/slog"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// Adapter delivers replies to one contact's conversation. It closes over the
// contact, conversation, and location of the inbound event, and replies on
// the same channel the message arrived on (SMS stays SMS, Email stays
// Email).
type Adapter struct {
	logger         *slog.Logger
	client         *Client
	accessToken    string
	messageType    string
	contactID      string
	conversationID string
	locationID     string
}

var _ deployment.Platform = (*Adapter)(nil)

// NewAdapter creates an adapter bound to one contact conversation.
func NewAdapter(log *slog.Logger, client *Client, accessToken, messageType, contactID, conversationID, locationID string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:         log.With(slog.String("component", "gohighlevel_adapter")),
		client:         client,
		accessToken:    accessToken,
		messageType:    messageType,
		contactID:      contactID,
		conversationID: conversationID,
		locationID:     locationID,
	}
}

func (a *Adapter) Type() deployment.PlatformType { return deployment.PlatformGoHighLevel }

// SupportsStreaming is false: SMS and email have no incremental delivery.
func (a *Adapter) SupportsStreaming() bool { return false }

// SendMessage posts the reply into the contact's conversation.
func (a *Adapter) SendMessage(ctx context.Context, content string) error {
	return a.client.SendMessage(ctx, a.accessToken, SendMessageRequest{
		Type:           a.messageType,
		ContactID:      a.contactID,
		Message:        content,
		ConversationID: a.conversationID,
		LocationID:     a.locationID,
	})
}
