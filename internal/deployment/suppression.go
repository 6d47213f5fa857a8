package deployment

import (
	"context"
	"log/slog"
	"strings"
)

// KillSwitchTag is the platform-side contact tag that disables automated
// replies for that contact.
const KillSwitchTag = "kill_switch"

// ContactTagLister fetches the tags attached to a platform contact. One
// external API round trip per check.
type ContactTagLister interface {
	ListContactTags(ctx context.Context, contactID string) ([]string, error)
}

// CheckKillSwitch reports whether the contact carries the kill-switch tag.
// On lookup failure it fails open (returns false): a degraded platform API
// must not stop message processing. That trades strict suppression for
// availability; the failed lookup is logged at warn so the tradeoff is
// visible in operation.
func CheckKillSwitch(ctx context.Context, log *slog.Logger, lister ContactTagLister, contactID string) bool {
	if lister == nil || strings.TrimSpace(contactID) == "" {
		return false
	}
	tags, err := lister.ListContactTags(ctx, contactID)
	if err != nil {
		if log != nil {
			log.Warn("kill switch lookup failed, continuing",
				slog.String("contact_id", contactID),
				slog.Any("error", err),
			)
		}
		return false
	}
	for _, tag := range tags {
		if strings.EqualFold(strings.TrimSpace(tag), KillSwitchTag) {
			return true
		}
	}
	return false
}
