package deployment

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTagLister struct {
	tags  []string
	err   error
	calls int
}

func (f *fakeTagLister) ListContactTags(ctx context.Context, contactID string) ([]string, error) {
	f.calls++
	return f.tags, f.err
}

func TestCheckKillSwitch_TagPresent(t *testing.T) {
	lister := &fakeTagLister{tags: []string{"vip", "Kill_Switch"}}
	assert.True(t, CheckKillSwitch(context.Background(), slog.Default(), lister, "contact-1"))
}

func TestCheckKillSwitch_TagAbsent(t *testing.T) {
	lister := &fakeTagLister{tags: []string{"vip", "lead"}}
	assert.False(t, CheckKillSwitch(context.Background(), slog.Default(), lister, "contact-1"))
}

func TestCheckKillSwitch_FailsOpen(t *testing.T) {
	lister := &fakeTagLister{err: errors.New("api degraded")}
	suppressed := CheckKillSwitch(context.Background(), slog.Default(), lister, "contact-1")
	assert.False(t, suppressed, "lookup failure must not suppress processing")
	assert.Equal(t, 1, lister.calls)
}

func TestCheckKillSwitch_EmptyContact(t *testing.T) {
	lister := &fakeTagLister{tags: []string{KillSwitchTag}}
	assert.False(t, CheckKillSwitch(context.Background(), slog.Default(), lister, ""))
	assert.Equal(t, 0, lister.calls, "no lookup without a contact id")
}

func TestIsOptedOut(t *testing.T) {
	d := Deployment{OptedOutConversations: []string{"conv-a", "conv-b"}}
	assert.True(t, d.IsOptedOut("conv-a"))
	assert.True(t, d.IsOptedOut("CONV-B"))
	assert.False(t, d.IsOptedOut("conv-c"))
	assert.False(t, d.IsOptedOut(""))
}

func TestChannelActive(t *testing.T) {
	d := Deployment{Channels: []Channel{
		{Type: "SMS", Active: true},
		{Type: "Email", Active: false},
	}}
	assert.True(t, d.ChannelActive("SMS"))
	assert.True(t, d.ChannelActive("sms"))
	assert.False(t, d.ChannelActive("Email"))
	assert.False(t, d.ChannelActive("WhatsApp"), "unlisted channels are inactive when a list is configured")

	unrestricted := Deployment{}
	assert.True(t, unrestricted.ChannelActive("SMS"), "no channel list means no restriction")
}
