package events

import (
	"encoding/json"
	"testing"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(StepCompletedEvent, "funnel-1")

	if event.ID == "" {
		t.Error("expected generated event ID")
	}

	if event.Type != StepCompletedEvent {
		t.Errorf("expected type %s, got %s", StepCompletedEvent, event.Type)
	}

	if event.FunnelID != "funnel-1" {
		t.Errorf("expected funnel ID funnel-1, got %s", event.FunnelID)
	}

	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestScheduledAlwaysCarriesBooking(t *testing.T) {
	event := Scheduled{
		BaseEvent: NewBaseEvent(ScheduledEvent, "funnel-1"),
		SessionID: "session-1",
	}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	// Schedule steps without widget data still record an empty booking object,
	// so consumers never branch on field presence.
	if _, ok := decoded["booking"]; !ok {
		t.Error("expected booking field to be present even when empty")
	}
}

func TestEventTypes(t *testing.T) {
	cases := []struct {
		event    interface{ GetType() EventType }
		expected EventType
	}{
		{FunnelViewed{}, FunnelViewedEvent},
		{StepCompleted{}, StepCompletedEvent},
		{LeadSubmitted{}, LeadSubmittedEvent},
		{Scheduled{}, ScheduledEvent},
		{FunnelCompleted{}, FunnelCompletedEvent},
		{BookingReceived{}, BookingReceivedEvent},
	}

	for _, c := range cases {
		if got := c.event.GetType(); got != c.expected {
			t.Errorf("GetType() = %s, expected %s", got, c.expected)
		}
	}
}
