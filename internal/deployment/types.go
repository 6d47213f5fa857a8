// Package deployment provides the platform-agnostic contracts of the message
// routing layer: the Platform adapter interface, conversation identity
// derivation, suppression gates, and a registry for platform event handlers.
package deployment

import (
	"fmt"
	"strings"
	"time"
)

// PlatformType identifies a supported chat platform. The set is closed:
// Parse rejects anything that is not one of the declared constants.
type PlatformType string

const (
	PlatformSlack       PlatformType = "slack"
	PlatformGoHighLevel PlatformType = "gohighlevel"
	PlatformDiscord     PlatformType = "discord"
)

// String returns the platform type as a plain string.
func (p PlatformType) String() string {
	return string(p)
}

// ParsePlatformType validates a raw string into a PlatformType.
func ParsePlatformType(raw string) (PlatformType, error) {
	switch PlatformType(strings.ToLower(strings.TrimSpace(raw))) {
	case PlatformSlack:
		return PlatformSlack, nil
	case PlatformGoHighLevel:
		return PlatformGoHighLevel, nil
	case PlatformDiscord:
		return PlatformDiscord, nil
	}
	return "", fmt.Errorf("unsupported platform: %s", raw)
}

// Role labels one turn in a normalized conversation. User, assistant, and
// system are the roles this layer produces; stored assistant turns may carry
// additional roles (e.g. "tool") which pass through normalization untouched.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// NormalizedMessage is the platform-agnostic turn format handed to the
// shared message processor.
type NormalizedMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Channel is one delivery channel within a deployment (e.g. SMS, Email for
// GoHighLevel; im for Slack) and whether it is enabled.
type Channel struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// Deployment binds one bot to one external platform account and carries the
// routing configuration the event handlers consult.
type Deployment struct {
	ID                    string         `json:"id"`
	BotID                 string         `json:"bot_id"`
	OwnerID               string         `json:"owner_id"`
	OrganizationID        string         `json:"organization_id,omitempty"`
	Platform              PlatformType   `json:"platform"`
	PlatformAccountID     string         `json:"platform_account_id"`
	Channels              []Channel      `json:"channels"`
	GlobalSettings        map[string]any `json:"global_settings,omitempty"`
	OptedOutConversations []string       `json:"opted_out_conversations,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// ChannelActive reports whether the given channel type is enabled. An empty
// channel list means the deployment has no per-channel restriction.
func (d Deployment) ChannelActive(channelType string) bool {
	if len(d.Channels) == 0 {
		return true
	}
	for _, ch := range d.Channels {
		if strings.EqualFold(strings.TrimSpace(ch.Type), strings.TrimSpace(channelType)) {
			return ch.Active
		}
	}
	return false
}

// IsOptedOut reports whether the conversation is on the deployment's
// opt-out list. This is the cheapest suppression gate and is checked before
// any external API call.
func (d Deployment) IsOptedOut(conversationID string) bool {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return false
	}
	for _, id := range d.OptedOutConversations {
		if strings.EqualFold(strings.TrimSpace(id), conversationID) {
			return true
		}
	}
	return false
}

// UpsertRequest is the input for creating or updating a deployment.
type UpsertRequest struct {
	BotID             string       `json:"bot_id"`
	OwnerID           string       `json:"owner_id"`
	OrganizationID    string       `json:"organization_id,omitempty"`
	Platform          PlatformType `json:"platform"`
	PlatformAccountID string       `json:"platform_account_id"`
	Channels          []Channel    `json:"channels"`
	GlobalSettings    map[string]any `json:"global_settings,omitempty"`
}
