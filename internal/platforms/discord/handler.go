package discord

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/botdeckhq/botdeck/internal/deployment"
	"github.com/botdeckhq/botdeck/internal/processor"
)

// ErrorReply is the best-effort message sent when processing fails.
const ErrorReply = "Sorry, I encountered an error while processing your message. Please try again."

// DeploymentSource resolves the deployment serving a Discord application.
type DeploymentSource interface {
	GetByPlatformAccount(ctx context.Context, platform deployment.PlatformType, accountID string) (deployment.Deployment, error)
}

// Handler routes Discord direct messages into the shared processor.
type Handler struct {
	logger      *slog.Logger
	deployments DeploymentSource
	runner      processor.Runner
}

var _ deployment.Handler = (*Handler)(nil)

// NewHandler creates the Discord message handler.
func NewHandler(log *slog.Logger, deployments DeploymentSource, runner processor.Runner) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:      log.With(slog.String("component", "discord_handler")),
		deployments: deployments,
		runner:      runner,
	}
}

func (h *Handler) Platform() deployment.PlatformType { return deployment.PlatformDiscord }

func (h *Handler) Descriptor() deployment.Descriptor {
	return deployment.Descriptor{
		Platform:          deployment.PlatformDiscord,
		DisplayName:       "Discord",
		SupportsStreaming: true,
	}
}

// HandleMessage processes one gateway MessageCreate. accountID is the
// application id the deployment was registered under; botUserID is the
// session's own user, filtered to avoid reply loops.
func (h *Handler) HandleMessage(ctx context.Context, session Sender, botUserID, accountID string, m *discordgo.MessageCreate) {
	// Not actionable: bot messages (our own included), guild traffic, and
	// empty bodies (attachments, stickers).
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == botUserID {
		return
	}
	if m.GuildID != "" {
		return
	}
	if strings.TrimSpace(m.Content) == "" {
		return
	}

	dep, err := h.deployments.GetByPlatformAccount(ctx, deployment.PlatformDiscord, accountID)
	if err != nil {
		return
	}
	// A DM channel is already a private 1:1 thread, so the channel id alone
	// is the natural key.
	conversationID := deployment.DeriveConversationID(deployment.PlatformDiscord, m.ChannelID).String()
	if dep.IsOptedOut(conversationID) {
		return
	}
	// Discord has no contact-tag concept; the kill-switch gate does not
	// apply.
	if !dep.ChannelActive("dm") {
		return
	}

	adapter := NewAdapter(h.logger, session, m.ChannelID)
	req := processor.Request{
		BotID:          dep.BotID,
		UserID:         m.Author.ID,
		OrganizationID: dep.OrganizationID,
		Source:         deployment.PlatformDiscord,
		DeploymentType: "dm",
		ConversationID: conversationID,
		Content:        m.Content,
		Metadata: map[string]any{
			"channel_id": m.ChannelID,
			"message_id": m.ID,
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
