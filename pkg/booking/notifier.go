// Package booking bridges the embedded scheduling widget's asynchronous
// completion reports into the funnel runtime.
package booking

import (
	"context"

	"github.com/leadrail/leadrail/pkg/models"
)

// Handler receives the booking payload captured for a session.
type Handler func(payload models.BookingPayload)

// Notifier delivers at most one scheduling completion per subscription. The
// widget may report the same completion several times; only the first delivery
// within a subscription's lifetime reaches the handler.
type Notifier interface {
	// Subscribe registers a handler for one session and returns an unsubscribe
	// function. After unsubscribe, no further callbacks fire for that session.
	Subscribe(ctx context.Context, sessionID string, onComplete Handler) (func(), error)
}
