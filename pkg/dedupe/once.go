package dedupe

import "sync"

// Once is the unbounded suppression set for outbound analytics events. A key is
// suppressed forever once seen: re-firing conversion pixels corrupts ad-platform
// attribution, so this store is never time-windowed. Entries are session-scoped
// and vanish with the runtime instance.
type Once struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewOnce creates an empty once-only set.
func NewOnce() *Once {
	return &Once{seen: make(map[string]struct{})}
}

// First records the key and reports whether this was its first occurrence.
func (o *Once) First(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.seen[key]; ok {
		return false
	}

	o.seen[key] = struct{}{}

	return true
}
