// Package conversation persists conversations and their message history and
// normalizes stored rows into the processor's turn format.
package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// StatusActive marks a conversation that is receiving inbound events. Every
// inbound event flips the conversation back to active.
const StatusActive = "ACTIVE"

// Conversation is one external chat thread mapped to a stable internal id.
type Conversation struct {
	ID             string                  `json:"id"`
	BotID          string                  `json:"bot_id"`
	ExternalUserID string                  `json:"external_user_id,omitempty"`
	Source         deployment.PlatformType `json:"source"`
	Status         string                  `json:"status"`
	Metadata       map[string]any          `json:"metadata,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// Message is a single persisted conversation turn. ResponseMessages carries
// the structured assistant parts when the turn was produced by the
// processor.
type Message struct {
	ID               string          `json:"id"`
	ConversationID   string          `json:"conversation_id"`
	Role             deployment.Role `json:"role"`
	Content          string          `json:"content"`
	ResponseMessages json.RawMessage `json:"response_messages,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AppendInput is the input for appending a message to a conversation.
type AppendInput struct {
	ConversationID   string
	Role             deployment.Role
	Content          string
	ResponseMessages json.RawMessage
}

// Service defines the conversation persistence behavior the routing layer
// depends on.
type Service interface {
	Upsert(ctx context.Context, conv Conversation) (Conversation, error)
	AppendMessage(ctx context.Context, input AppendInput) (Message, error)
	// ListLatest returns up to limit messages, newest first.
	ListLatest(ctx context.Context, conversationID string, limit int32) ([]Message, error)
}

// History converts stored messages (newest first, as ListLatest returns
// them) into oldest-first normalized turns. User and system turns pass
// through; assistant turns replay their structured parts when present.
func History(messages []Message) []deployment.NormalizedMessage {
	history := make([]deployment.NormalizedMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == deployment.RoleAssistant {
			history = append(history, deployment.DecodeAssistantTurns(msg.Content, msg.ResponseMessages)...)
			continue
		}
		history = append(history, deployment.NormalizedMessage{Role: msg.Role, Content: msg.Content})
	}
	return history
}
