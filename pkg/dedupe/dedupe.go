// Package dedupe provides the two suppression stores used by the funnel
// runtime: a time-windowed cache for internal funnel events and an unbounded
// once-only set for outbound analytics events.
package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"time"
)

// DefaultWindow is the suppression interval for internal funnel events. Repeats
// inside the window are render-loop duplicates; repeats after it are legitimate
// re-emissions (for example a retried network call).
const DefaultWindow = 10 * time.Second

// NoLead is the lead-id placeholder used in event keys before a lead exists.
const NoLead = "no_lead"

// Window suppresses repeated emissions of an event key within a fixed interval.
type Window interface {
	// Allow records the key and reports whether the event may fire. A key seen
	// within the window is suppressed; after the window it fires again.
	Allow(ctx context.Context, key string) bool
}

// EventKey builds the internal funnel event key for the windowed store.
func EventKey(funnelID, stepID, intent, leadID string) string {
	if leadID == "" {
		leadID = NoLead
	}

	return fmt.Sprintf("%s:%s:%s:%s", funnelID, stepID, intent, leadID)
}

// FallbackKey derives a dedupe key from the event type and payload for callers
// that did not supply one. Payload keys are sorted so the hash is stable.
func FallbackKey(eventType string, payload map[string]any) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(eventType))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		encoded, err := json.Marshal(payload[k])
		if err != nil {
			continue
		}

		_, _ = h.Write([]byte(k))
		_, _ = h.Write(encoded)
	}

	return fmt.Sprintf("%s:%x", eventType, h.Sum64())
}
