package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/botdeckhq/botdeck/internal/credentials"
	"github.com/botdeckhq/botdeck/internal/deployment"
)

// DeploymentLister enumerates the Discord deployments to open sessions for.
type DeploymentLister interface {
	ListByPlatform(ctx context.Context, platform deployment.PlatformType) ([]deployment.Deployment, error)
}

// CredentialSource resolves the bot token for a Discord application.
type CredentialSource interface {
	GetByPlatformAccount(ctx context.Context, provider deployment.PlatformType, platformAccountID string) (credentials.Credential, error)
}

// Receiver opens one gateway session per Discord deployment and feeds
// MessageCreate events through the dispatcher into the handler.
type Receiver struct {
	logger      *slog.Logger
	deployments DeploymentLister
	credentials CredentialSource
	handler     *Handler
	dispatcher  *deployment.Dispatcher

	sessions []*discordgo.Session
}

// NewReceiver creates the gateway receiver.
func NewReceiver(log *slog.Logger, deployments DeploymentLister, creds CredentialSource, handler *Handler, dispatcher *deployment.Dispatcher) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{
		logger:      log.With(slog.String("component", "discord_receiver")),
		deployments: deployments,
		credentials: creds,
		handler:     handler,
		dispatcher:  dispatcher,
	}
}

// Start opens sessions for all configured Discord deployments. A deployment
// without a credential, or one whose gateway connect fails, is logged and
// skipped; the others still come up.
func (r *Receiver) Start(ctx context.Context) error {
	deps, err := r.deployments.ListByPlatform(ctx, deployment.PlatformDiscord)
	if err != nil {
		return fmt.Errorf("list discord deployments: %w", err)
	}
	for _, dep := range deps {
		if err := r.openSession(ctx, dep); err != nil {
			r.logger.Error("discord session failed to start",
				slog.String("deployment_id", dep.ID),
				slog.String("account_id", dep.PlatformAccountID),
				slog.String("error", err.Error()),
			)
		}
	}
	r.logger.Info("discord receiver started", slog.Int("sessions", len(r.sessions)))
	return nil
}

// Stop closes all open sessions.
func (r *Receiver) Stop() {
	for _, session := range r.sessions {
		if err := session.Close(); err != nil {
			r.logger.Warn("closing discord session", slog.String("error", err.Error()))
		}
	}
	r.sessions = nil
}

func (r *Receiver) openSession(ctx context.Context, dep deployment.Deployment) error {
	cred, err := r.credentials.GetByPlatformAccount(ctx, deployment.PlatformDiscord, dep.PlatformAccountID)
	if err != nil {
		return fmt.Errorf("credential lookup: %w", err)
	}
	session, err := discordgo.New("Bot " + cred.AccessToken)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	accountID := dep.PlatformAccountID
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		botUserID := ""
		if s.State != nil && s.State.User != nil {
			botUserID = s.State.User.ID
		}
		r.dispatcher.Submit(func(taskCtx context.Context) {
			r.handler.HandleMessage(taskCtx, s, botUserID, accountID, m)
		})
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	r.sessions = append(r.sessions, session)
	return nil
}
