package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/leadrail/leadrail/pkg/channels/gochannel"
	"github.com/leadrail/leadrail/pkg/events"
)

func TestWatermillEventBusRoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	bus := NewWatermillEventBus(pub, sub, events.Topic)

	received := make(chan *events.StepCompleted, 1)

	err = bus.Handle(events.StepCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.StepCompleted)

		return nil
	})
	if err != nil {
		t.Fatalf("failed to register handler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.Subscribe(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	event := events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, "funnel-1"),
		SessionID: "session-1",
		StepID:    "step-1",
		Intent:    "collect",
		DedupeKey: "funnel-1:step-1:collect:no_lead",
	}

	if err := bus.Publish(ctx, event.DedupeKey, event); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case got := <-received:
		if got.SessionID != "session-1" || got.StepID != "step-1" {
			t.Errorf("unexpected event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusIgnoresUnhandledTypes(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	bus := NewWatermillEventBus(pub, sub, events.Topic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.Subscribe(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	event := events.FunnelViewed{
		BaseEvent: events.NewBaseEvent(events.FunnelViewedEvent, "funnel-1"),
		SessionID: "session-1",
	}

	// No handler registered: publish must still succeed and the message is acked.
	if err := bus.Publish(ctx, "funnel-1", event); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
}
