package slack

import (
	"context"
	"log/slog"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// Adapter delivers replies into one Slack thread. Constructed per inbound
// event; it closes over the channel and thread of that event.
type Adapter struct {
	logger      *slog.Logger
	client      *Client
	accessToken string
	channel     string
	threadTS    string
}

var (
	_ deployment.Platform     = (*Adapter)(nil)
	_ deployment.StatusSetter = (*Adapter)(nil)
)

// NewAdapter creates an adapter bound to one channel+thread.
func NewAdapter(log *slog.Logger, client *Client, accessToken, channel, threadTS string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:      log.With(slog.String("component", "slack_adapter")),
		client:      client,
		accessToken: accessToken,
		channel:     channel,
		threadTS:    threadTS,
	}
}

func (a *Adapter) Type() deployment.PlatformType { return deployment.PlatformSlack }

// SupportsStreaming is false: Slack replies are posted as complete messages.
func (a *Adapter) SupportsStreaming() bool { return false }

// SendMessage posts the reply into the thread.
func (a *Adapter) SendMessage(ctx context.Context, content string) error {
	return a.client.PostMessage(ctx, a.accessToken, a.channel, a.threadTS, content)
}

// SetStatus updates the assistant thread's "is thinking" indicator.
func (a *Adapter) SetStatus(ctx context.Context, status string) error {
	err := a.client.SetAssistantStatus(ctx, a.accessToken, a.channel, a.threadTS, status)
	if err != nil {
		a.logger.Debug("set status failed", slog.String("error", err.Error()))
	}
	return err
}
