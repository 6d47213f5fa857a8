package slack

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/botdeckhq/botdeck/internal/credentials"
	"github.com/botdeckhq/botdeck/internal/deployment"
	"github.com/botdeckhq/botdeck/internal/processor"
)

// ErrorReply is the best-effort message posted when processing fails after
// the event was accepted.
const ErrorReply = "Sorry, I encountered an error while processing your message. Please try again."

// DefaultGreeting opens a new assistant thread when the deployment has no
// welcome message configured.
const DefaultGreeting = "Hi! How can I help you today?"

// DeploymentSource resolves the deployment serving a Slack workspace.
type DeploymentSource interface {
	GetByPlatformAccount(ctx context.Context, platform deployment.PlatformType, accountID string) (deployment.Deployment, error)
}

// CredentialSource resolves the bot token for a Slack workspace.
type CredentialSource interface {
	GetByPlatformAccount(ctx context.Context, provider deployment.PlatformType, platformAccountID string) (credentials.Credential, error)
}

// Handler routes Slack events into the shared processor.
type Handler struct {
	logger      *slog.Logger
	deployments DeploymentSource
	credentials CredentialSource
	client      *Client
	runner      processor.Runner
}

var _ deployment.Handler = (*Handler)(nil)

// NewHandler creates the Slack event handler.
func NewHandler(log *slog.Logger, deployments DeploymentSource, creds CredentialSource, client *Client, runner processor.Runner) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:      log.With(slog.String("component", "slack_handler")),
		deployments: deployments,
		credentials: creds,
		client:      client,
		runner:      runner,
	}
}

func (h *Handler) Platform() deployment.PlatformType { return deployment.PlatformSlack }

func (h *Handler) Descriptor() deployment.Descriptor {
	return deployment.Descriptor{
		Platform:          deployment.PlatformSlack,
		DisplayName:       "Slack",
		SupportsStreaming: false,
	}
}

// HandleEvent processes one Events API envelope. It runs on a dispatcher
// worker: the webhook has already been acknowledged, so every failure here
// is terminal for this delivery and surfaced as a best-effort chat message.
func (h *Handler) HandleEvent(ctx context.Context, env EventEnvelope) {
	if env.Type != envelopeEventCallback || len(env.Event) == 0 {
		return
	}
	kind, err := eventType(env.Event)
	if err != nil {
		h.logger.Warn("undecodable slack event", slog.String("error", err.Error()))
		return
	}
	switch kind {
	case eventMessage:
		h.handleMessage(ctx, env)
	case eventAssistantThreadStarted:
		h.handleThreadStarted(ctx, env)
	}
}

func (h *Handler) handleMessage(ctx context.Context, env EventEnvelope) {
	var ev MessageEvent
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		h.logger.Warn("undecodable message event", slog.String("error", err.Error()))
		return
	}
	// Not actionable: the bot's own messages, edits/joins and other
	// subtypes, and anything outside a DM.
	if ev.BotID != "" || ev.Subtype != "" || ev.User == "" || ev.Text == "" {
		return
	}
	if ev.ChannelType != "" && ev.ChannelType != "im" {
		return
	}

	dep, err := h.deployments.GetByPlatformAccount(ctx, deployment.PlatformSlack, env.TeamID)
	if err != nil {
		// Workspace not set up for any bot.
		return
	}
	conversationID := deployment.DeriveConversationID(deployment.PlatformSlack, ev.Channel, ev.ThreadKey()).String()
	if dep.IsOptedOut(conversationID) {
		return
	}
	// Slack has no contact-tag concept, so the kill-switch gate does not
	// apply here.
	if ev.ChannelType != "" && !dep.ChannelActive(ev.ChannelType) {
		return
	}

	adapter, ok := h.buildAdapter(ctx, env.TeamID, ev.Channel, ev.ThreadKey())
	if !ok {
		return
	}
	h.run(ctx, processor.Request{
		BotID:          dep.BotID,
		UserID:         ev.User,
		OrganizationID: dep.OrganizationID,
		Source:         deployment.PlatformSlack,
		DeploymentType: ev.ChannelType,
		ConversationID: conversationID,
		Content:        ev.Text,
		Metadata: map[string]any{
			"channel":      ev.Channel,
			"channel_type": ev.ChannelType,
			"team_id":      env.TeamID,
			"thread_ts":    ev.ThreadKey(),
		},
		Platform: adapter,
	})
}

func (h *Handler) handleThreadStarted(ctx context.Context, env EventEnvelope) {
	var ev AssistantThreadStartedEvent
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		h.logger.Warn("undecodable assistant_thread_started event", slog.String("error", err.Error()))
		return
	}
	thread := ev.AssistantThread
	if thread.ChannelID == "" || thread.ThreadTS == "" {
		return
	}
	dep, err := h.deployments.GetByPlatformAccount(ctx, deployment.PlatformSlack, env.TeamID)
	if err != nil {
		return
	}
	conversationID := deployment.DeriveConversationID(deployment.PlatformSlack, thread.ChannelID, thread.ThreadTS).String()
	if dep.IsOptedOut(conversationID) {
		return
	}
	adapter, ok := h.buildAdapter(ctx, env.TeamID, thread.ChannelID, thread.ThreadTS)
	if !ok {
		return
	}
	greeting := DefaultGreeting
	if custom, ok := dep.GlobalSettings["welcome_message"].(string); ok && custom != "" {
		greeting = custom
	}
	if err := adapter.SendMessage(ctx, greeting); err != nil {
		h.logger.Error("greeting failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}
}

func (h *Handler) buildAdapter(ctx context.Context, teamID, channel, threadTS string) (*Adapter, bool) {
	cred, err := h.credentials.GetByPlatformAccount(ctx, deployment.PlatformSlack, teamID)
	if err != nil {
		h.logger.Error("no slack credential for workspace",
			slog.String("team_id", teamID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return NewAdapter(h.logger, h.client, cred.AccessToken, channel, threadTS), true
}

// run invokes the processor and converts failures into a user-visible
// apology. It never propagates: the webhook is long since acknowledged.
func (h *Handler) run(ctx context.Context, req processor.Request) {
	if err := h.runner.Run(ctx, req); err != nil {
		h.logger.Error("message processing failed",
			slog.String("conversation_id", req.ConversationID),
			slog.String("error", err.Error()),
		)
		if sendErr := req.Platform.SendMessage(ctx, ErrorReply); sendErr != nil {
			h.logger.Error("error reply failed", slog.String("error", sendErr.Error()))
		}
		deployment.SetStatusIfSupported(ctx, req.Platform, "")
	}
}
