package deployment

import (
	"strings"

	"github.com/google/uuid"
)

// conversationNamespace anchors name-based conversation IDs. Changing it
// would orphan every existing conversation row.
var conversationNamespace = uuid.MustParse("9f2c1f14-7a3b-4a43-9b1e-5d8f0c6b2a77")

// DeriveConversationID maps a platform's natural thread key onto a stable
// conversation UUID. It is a pure function: redelivery of the same platform
// event (webhooks are at-least-once) lands on the same conversation without
// a prior lookup. Key parts are joined verbatim, so empty parts are a caller
// bug rather than a runtime failure.
func DeriveConversationID(platform PlatformType, parts ...string) uuid.UUID {
	name := make([]string, 0, len(parts)+1)
	name = append(name, platform.String())
	name = append(name, parts...)
	return uuid.NewSHA1(conversationNamespace, []byte(strings.Join(name, ":")))
}
