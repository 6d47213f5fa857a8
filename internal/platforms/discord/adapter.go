// Package discord runs gateway sessions for Discord deployments and handles
// direct messages. It is the one streaming-capable platform: replies open as
// a short message and grow by edits as the model produces chunks.
package discord

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// Sender is the slice of the discordgo session the adapter needs. Narrowed
// for tests.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Adapter delivers replies into one Discord DM channel. SendMessage opens
// the reply; AppendToMessage grows it by editing the same message with the
// accumulated text.
type Adapter struct {
	logger    *slog.Logger
	session   Sender
	channelID string

	messageID string
	buffer    strings.Builder
}

var (
	_ deployment.Platform     = (*Adapter)(nil)
	_ deployment.Streamer     = (*Adapter)(nil)
	_ deployment.StatusSetter = (*Adapter)(nil)
)

// NewAdapter creates an adapter bound to one DM channel.
func NewAdapter(log *slog.Logger, session Sender, channelID string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:    log.With(slog.String("component", "discord_adapter")),
		session:   session,
		channelID: channelID,
	}
}

func (a *Adapter) Type() deployment.PlatformType { return deployment.PlatformDiscord }

func (a *Adapter) SupportsStreaming() bool { return true }

// SendMessage posts the reply (or its first chunk) and remembers the message
// id so later chunks can edit it.
func (a *Adapter) SendMessage(_ context.Context, content string) error {
	msg, err := a.session.ChannelMessageSend(a.channelID, content)
	if err != nil {
		return err
	}
	a.messageID = msg.ID
	a.buffer.Reset()
	a.buffer.WriteString(content)
	return nil
}

// AppendToMessage extends the open reply with another chunk.
func (a *Adapter) AppendToMessage(_ context.Context, chunk string) error {
	if a.messageID == "" {
		// No open message yet: the chunk becomes the opener.
		return a.SendMessage(context.Background(), chunk)
	}
	a.buffer.WriteString(chunk)
	_, err := a.session.ChannelMessageEdit(a.channelID, a.messageID, a.buffer.String())
	return err
}

// SetStatus surfaces the typing indicator. Discord has no free-text status;
// any non-empty status maps to typing and empty is a no-op (the indicator
// expires on its own).
func (a *Adapter) SetStatus(_ context.Context, status string) error {
	if status == "" {
		return nil
	}
	err := a.session.ChannelTyping(a.channelID)
	if err != nil {
		a.logger.Debug("typing indicator failed", slog.String("error", err.Error()))
	}
	return err
}
