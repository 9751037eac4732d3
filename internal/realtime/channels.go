package realtime

import (
	"fmt"

	"github.com/aeroframe-io/core/internal/auth"
)

func baselineChannels(p auth.Principal) []string {
	channels := []string{
		fmt.Sprintf("user:%s:updates", p.UserID),
		fmt.Sprintf("user:%s:apikeys", p.UserID),
	}

	if p.TenantID != nil {
		channels = append(channels, fmt.Sprintf("tenant:%s:updates", *p.TenantID))
	}

	return channels
}

// channelAllowed implements the channel whitelist (spec.md §4.10, P7):
// PlatformAdmin's broader subscriptions are explicitly deferred, so the
// check is identical across roles — it only ever looks at the principal's
// own identifiers.
func channelAllowed(p auth.Principal, channel string) bool {
	for _, c := range baselineChannels(p) {
		if c == channel {
			return true
		}
	}

	return false
}
