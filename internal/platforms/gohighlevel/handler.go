package gohighlevel

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/botdeckhq/botdeck/internal/credentials"
	"github.com/botdeckhq/botdeck/internal/deployment"
	"github.com/botdeckhq/botdeck/internal/processor"
)

// ErrorReply is the best-effort message sent when processing fails after the
// webhook was accepted.
const ErrorReply = "Sorry, I encountered an error while processing your message. Please try again."

// directionInbound is the only message direction this handler acts on.
const directionInbound = "inbound"

// WebhookPayload is the conversation webhook body. Unknown fields are
// tolerated and ignored; only the listed ones matter here.
type WebhookPayload struct {
	Type           string `json:"type"`
	LocationID     string `json:"locationId" validate:"required"`
	Body           string `json:"body"`
	ContactID      string `json:"contactId" validate:"required"`
	ContentType    string `json:"contentType"`
	ConversationID string `json:"conversationId"`
	DateAdded      string `json:"dateAdded"`
	Direction      string `json:"direction"`
	MessageType    string `json:"messageType"`
	Status         string `json:"status"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
}

// DeploymentSource resolves the deployment serving a GoHighLevel location.
type DeploymentSource interface {
	GetByPlatformAccount(ctx context.Context, platform deployment.PlatformType, accountID string) (deployment.Deployment, error)
}

// CredentialSource resolves the access token for a GoHighLevel location.
type CredentialSource interface {
	GetByPlatformAccount(ctx context.Context, provider deployment.PlatformType, platformAccountID string) (credentials.Credential, error)
}

// Handler routes GoHighLevel webhook events into the shared processor.
type Handler struct {
	logger      *slog.Logger
	deployments DeploymentSource
	credentials CredentialSource
	client      *Client
	runner      processor.Runner
	validate    *validator.Validate
}

var _ deployment.Handler = (*Handler)(nil)

// NewHandler creates the GoHighLevel event handler.
func NewHandler(log *slog.Logger, deployments DeploymentSource, creds CredentialSource, client *Client, runner processor.Runner) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:      log.With(slog.String("component", "gohighlevel_handler")),
		deployments: deployments,
		credentials: creds,
		client:      client,
		runner:      runner,
		validate:    validator.New(),
	}
}

func (h *Handler) Platform() deployment.PlatformType { return deployment.PlatformGoHighLevel }

func (h *Handler) Descriptor() deployment.Descriptor {
	return deployment.Descriptor{
		Platform:          deployment.PlatformGoHighLevel,
		DisplayName:       "GoHighLevel",
		SupportsStreaming: false,
	}
}

// tagLister binds a token to the contact-tags call for the kill-switch gate.
type tagLister struct {
	client      *Client
	accessToken string
}

func (l tagLister) ListContactTags(ctx context.Context, contactID string) ([]string, error) {
	return l.client.ListContactTags(ctx, l.accessToken, contactID)
}

// HandleEvent processes one webhook payload. It runs on a dispatcher
// worker after the HTTP boundary has acknowledged the webhook.
func (h *Handler) HandleEvent(ctx context.Context, payload WebhookPayload) {
	// Not actionable: outbound echoes of our own replies, and bodies with
	// nothing to respond to.
	if !strings.EqualFold(payload.Direction, directionInbound) {
		return
	}
	if strings.TrimSpace(payload.Body) == "" {
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		h.logger.Warn("webhook payload missing required fields", slog.String("error", err.Error()))
		return
	}

	dep, err := h.deployments.GetByPlatformAccount(ctx, deployment.PlatformGoHighLevel, payload.LocationID)
	if err != nil {
		// Location not set up for any bot.
		return
	}
	conversationID := deployment.DeriveConversationID(deployment.PlatformGoHighLevel, payload.ContactID, payload.LocationID).String()

	// Opt-out before kill-switch: the list membership check is local and
	// must short-circuit before the contact-tags API round trip.
	if dep.IsOptedOut(conversationID) {
		return
	}

	cred, err := h.credentials.GetByPlatformAccount(ctx, deployment.PlatformGoHighLevel, payload.LocationID)
	if err != nil {
		h.logger.Error("no gohighlevel credential for location",
			slog.String("location_id", payload.LocationID),
			slog.String("error", err.Error()),
		)
		return
	}
	if deployment.CheckKillSwitch(ctx, h.logger, tagLister{client: h.client, accessToken: cred.AccessToken}, payload.ContactID) {
		return
	}

	if payload.MessageType != "" && !dep.ChannelActive(payload.MessageType) {
		return
	}

	adapter := NewAdapter(h.logger, h.client, cred.AccessToken,
		payload.MessageType, payload.ContactID, payload.ConversationID, payload.LocationID)
	req := processor.Request{
		BotID:          dep.BotID,
		UserID:         payload.ContactID,
		OrganizationID: dep.OrganizationID,
		Source:         deployment.PlatformGoHighLevel,
		DeploymentType: payload.MessageType,
		ConversationID: conversationID,
		Content:        payload.Body,
		Metadata: map[string]any{
			"location_id":     payload.LocationID,
			"contact_id":      payload.ContactID,
			"conversation_id": payload.ConversationID,
			"message_type":    payload.MessageType,
			"message_id":      payload.MessageID,
		},
		Platform: adapter,
	}
	if err := h.runner.Run(ctx, req); err != nil {
		h.logger.Error("message processing failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		if sendErr := adapter.SendMessage(ctx, ErrorReply); sendErr != nil {
			h.logger.Error("error reply failed", slog.String("error", sendErr.Error()))
		}
	}
}
