package deployment

import (
	"encoding/json"
	"strings"
)

// DecodeAssistantTurns reconstructs the structured messages of a stored
// assistant turn. responseMessages holds the JSON-encoded array the
// processor produced (multi-part replies, tool calls); when it is absent or
// does not parse as a usable array, the turn degrades to its plain content.
// A single corrupt row must never block a whole history load.
func DecodeAssistantTurns(content string, responseMessages []byte) []NormalizedMessage {
	fallback := []NormalizedMessage{{Role: RoleAssistant, Content: content}}
	if len(responseMessages) == 0 {
		return fallback
	}
	var parts []NormalizedMessage
	if err := json.Unmarshal(responseMessages, &parts); err != nil {
		return fallback
	}
	decoded := make([]NormalizedMessage, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(string(part.Role)) == "" {
			part.Role = RoleAssistant
		}
		decoded = append(decoded, part)
	}
	if len(decoded) == 0 {
		return fallback
	}
	return decoded
}

// EncodeAssistantTurns serializes structured assistant messages for storage
// alongside the flattened content.
func EncodeAssistantTurns(parts []NormalizedMessage) ([]byte, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	return json.Marshal(parts)
}
