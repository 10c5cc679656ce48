package booking

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/events"
)

// DefaultWidgetDomain is the scheduling widget origin accepted by default.
const DefaultWidgetDomain = "calendly.com"

// DefaultDelay gives the visitor a moment to see the widget's own confirmation
// screen before the funnel advances.
const DefaultDelay = 1500 * time.Millisecond

type subscription struct {
	handler   Handler
	handled   bool
	cancelled bool
}

// BusNotifier implements Notifier on top of the internal event bus. The
// scheduling webhook receiver publishes BookingReceived events onto the booking
// topic; the notifier fans them out to per-session subscriptions, enforcing the
// origin check and the single-shot rule.
type BusNotifier struct {
	bus          eventbus.EventBus
	widgetDomain string
	delay        time.Duration
	logger       *slog.Logger

	mu            sync.Mutex
	subscriptions map[string]*subscription
}

// NewBusNotifier creates a notifier reading from the given bus. Start must be
// called once before subscriptions are served.
func NewBusNotifier(bus eventbus.EventBus, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{
		bus:           bus,
		widgetDomain:  DefaultWidgetDomain,
		delay:         DefaultDelay,
		logger:        logger.With("module", "booking_notifier"),
		subscriptions: make(map[string]*subscription),
	}
}

// WithWidgetDomain overrides the accepted widget origin.
func (n *BusNotifier) WithWidgetDomain(domain string) *BusNotifier {
	n.widgetDomain = domain

	return n
}

// WithDelay overrides the delay between receipt and callback.
func (n *BusNotifier) WithDelay(delay time.Duration) *BusNotifier {
	n.delay = delay

	return n
}

// Start registers the bus handler and begins consuming booking events.
func (n *BusNotifier) Start(ctx context.Context) error {
	err := n.bus.Handle(events.BookingReceivedEvent, func(ctx context.Context, event any) error {
		received, ok := event.(*events.BookingReceived)
		if !ok {
			return nil
		}

		n.dispatch(ctx, received)

		return nil
	})
	if err != nil {
		return err
	}

	return n.bus.Subscribe(ctx)
}

// Subscribe implements Notifier.
func (n *BusNotifier) Subscribe(_ context.Context, sessionID string, onComplete Handler) (func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.subscriptions[sessionID] = &subscription{handler: onComplete}

	unsubscribe := func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		if sub, ok := n.subscriptions[sessionID]; ok {
			sub.cancelled = true

			delete(n.subscriptions, sessionID)
		}
	}

	return unsubscribe, nil
}

func (n *BusNotifier) dispatch(ctx context.Context, received *events.BookingReceived) {
	if !strings.Contains(received.Origin, n.widgetDomain) {
		n.logger.WarnContext(ctx, "Ignoring booking from unexpected origin",
			"origin", received.Origin, "session_id", received.SessionID)

		return
	}

	n.mu.Lock()

	sub, ok := n.subscriptions[received.SessionID]
	if !ok || sub.handled {
		n.mu.Unlock()

		return
	}

	sub.handled = true
	payload := received.Booking
	handler := sub.handler

	n.mu.Unlock()

	n.logger.InfoContext(ctx, "Booking received, scheduling callback",
		"session_id", received.SessionID, "delay", n.delay)

	time.AfterFunc(n.delay, func() {
		n.mu.Lock()
		cancelled := sub.cancelled
		n.mu.Unlock()

		if cancelled {
			return
		}

		handler(payload)
	})
}
