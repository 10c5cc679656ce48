// Package recorder subscribes to the internal funnel event stream and forwards
// each event to the remote event-recording endpoint.
package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/events"
)

// Record is the wire shape sent to the recording endpoint.
type Record struct {
	TeamID    string `json:"team_id,omitempty"`
	FunnelID  string `json:"funnel_id"`
	EventType string `json:"event_type"`
	DedupeKey string `json:"dedupe_key,omitempty"`
	Payload   any    `json:"payload"`
}

// Recorder consumes funnel events and posts them downstream. Delivery is fire
// and forget: recording never feeds back into the visitor path.
type Recorder struct {
	bus      eventbus.EventSubscriber
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewRecorder creates a recorder posting to the given endpoint.
func NewRecorder(bus eventbus.EventSubscriber, endpoint, apiKey string, logger *slog.Logger) *Recorder {
	return &Recorder{
		bus:      bus,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With("module", "recorder"),
	}
}

// Start registers the event handlers and begins consuming.
func (r *Recorder) Start(ctx context.Context) error {
	for _, eventType := range []events.EventType{
		events.FunnelViewedEvent,
		events.StepCompletedEvent,
		events.LeadSubmittedEvent,
		events.ScheduledEvent,
		events.FunnelCompletedEvent,
	} {
		err := r.bus.Handle(eventType, r.handleEvent)
		if err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return r.bus.Subscribe(ctx)
}

// handleEvent forwards one event. Errors are logged and swallowed so the bus
// never retries into a duplicate record.
func (r *Recorder) handleEvent(ctx context.Context, event any) error {
	record, ok := r.toRecord(event)
	if !ok {
		r.logger.WarnContext(ctx, "Dropping event of unexpected type", "event", fmt.Sprintf("%T", event))

		return nil
	}

	err := r.post(ctx, record)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to record event",
			"event_type", record.EventType, "funnel_id", record.FunnelID, "error", err)
	}

	return nil
}

func (r *Recorder) toRecord(event any) (Record, bool) {
	switch e := event.(type) {
	case *events.FunnelViewed:
		return Record{TeamID: e.TeamID, FunnelID: e.FunnelID, EventType: string(e.GetType()), Payload: e}, true
	case *events.StepCompleted:
		return Record{TeamID: e.TeamID, FunnelID: e.FunnelID, EventType: string(e.GetType()), DedupeKey: e.DedupeKey, Payload: e}, true
	case *events.LeadSubmitted:
		return Record{TeamID: e.TeamID, FunnelID: e.FunnelID, EventType: string(e.GetType()), DedupeKey: e.DedupeKey, Payload: e}, true
	case *events.Scheduled:
		return Record{TeamID: e.TeamID, FunnelID: e.FunnelID, EventType: string(e.GetType()), DedupeKey: e.DedupeKey, Payload: e}, true
	case *events.FunnelCompleted:
		return Record{TeamID: e.TeamID, FunnelID: e.FunnelID, EventType: string(e.GetType()), Payload: e}, true
	default:
		return Record{}, false
	}
}

func (r *Recorder) post(ctx context.Context, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build record request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("record request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("recording endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
