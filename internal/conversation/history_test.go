package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

func TestHistory_ReversesToOldestFirst(t *testing.T) {
	// ListLatest order: newest first.
	stored := []Message{
		{Role: deployment.RoleAssistant, Content: "second"},
		{Role: deployment.RoleUser, Content: "first"},
	}
	history := History(stored)
	assert.Equal(t, []deployment.NormalizedMessage{
		{Role: deployment.RoleUser, Content: "first"},
		{Role: deployment.RoleAssistant, Content: "second"},
	}, history)
}

func TestHistory_ReplaysStructuredAssistantTurns(t *testing.T) {
	stored := []Message{
		{
			Role:             deployment.RoleAssistant,
			Content:          "hello",
			ResponseMessages: json.RawMessage(`[{"role":"assistant","content":"hello"},{"role":"tool","content":"..."}]`),
		},
		{Role: deployment.RoleUser, Content: "hi"},
	}
	history := History(stored)
	assert.Equal(t, []deployment.NormalizedMessage{
		{Role: deployment.RoleUser, Content: "hi"},
		{Role: deployment.RoleAssistant, Content: "hello"},
		{Role: deployment.Role("tool"), Content: "..."},
	}, history, "structured assistant parts must be replayed in order")
}

func TestHistory_CorruptAssistantRowFallsBack(t *testing.T) {
	stored := []Message{
		{Role: deployment.RoleAssistant, Content: "plain", ResponseMessages: json.RawMessage(`{broken`)},
	}
	history := History(stored)
	assert.Equal(t, []deployment.NormalizedMessage{
		{Role: deployment.RoleAssistant, Content: "plain"},
	}, history)
}

func TestHistory_Empty(t *testing.T) {
	assert.Empty(t, History(nil))
}
