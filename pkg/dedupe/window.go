package dedupe

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow is the in-memory Window implementation. Entries expire after the
// configured interval and are removed by Sweep, which the server schedules
// periodically so a long-lived session cannot grow the map without bound.
type MemoryWindow struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	interval time.Duration
	now      func() time.Time
}

// NewMemoryWindow creates a windowed store with the given suppression interval.
func NewMemoryWindow(interval time.Duration) *MemoryWindow {
	return &MemoryWindow{
		lastSeen: make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow implements Window.
func (w *MemoryWindow) Allow(_ context.Context, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()

	if seen, ok := w.lastSeen[key]; ok && now.Sub(seen) < w.interval {
		return false
	}

	w.lastSeen[key] = now

	return true
}

// Sweep drops entries older than the suppression interval and returns how many
// were removed.
func (w *MemoryWindow) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	removed := 0

	for key, seen := range w.lastSeen {
		if now.Sub(seen) >= w.interval {
			delete(w.lastSeen, key)

			removed++
		}
	}

	return removed
}

// Len returns the current number of tracked keys.
func (w *MemoryWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.lastSeen)
}
