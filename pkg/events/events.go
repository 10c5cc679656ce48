// Package events defines the internal funnel event vocabulary emitted by the
// runtime and recorded by the event pipeline.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/leadrail/leadrail/pkg/models"
)

type EventType string

// Topics.
const Topic = "leadrail.funnel.events"         // Internal funnel events
const BookingTopic = "leadrail.booking.events" // Scheduling-widget completions

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Funnel session lifecycle events.
	FunnelViewedEvent    EventType = "funnel.viewed"
	StepCompletedEvent   EventType = "funnel.step.completed"
	LeadSubmittedEvent   EventType = "funnel.lead.submitted"
	ScheduledEvent       EventType = "funnel.scheduled"
	FunnelCompletedEvent EventType = "funnel.completed"

	// External booking channel.
	BookingReceivedEvent EventType = "funnel.booking.received"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FunnelID  string         `json:"funnel_id"`
	TeamID    string         `json:"team_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type FunnelViewed struct {
	BaseEvent

	SessionID string `json:"session_id"`
	StepID    string `json:"step_id"`
}

func (e FunnelViewed) GetType() EventType {
	return FunnelViewedEvent
}

// StepCompleted is emitted once per (step, intent, lead) inside the dedup
// window, regardless of which persistence branch the sequencer took.
type StepCompleted struct {
	BaseEvent

	SessionID string         `json:"session_id"`
	StepID    string         `json:"step_id"`
	StepType  string         `json:"step_type"`
	Intent    string         `json:"intent"`
	LeadID    string         `json:"lead_id,omitempty"`
	DedupeKey string         `json:"dedupe_key"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type LeadSubmitted struct {
	BaseEvent

	SessionID string `json:"session_id"`
	StepID    string `json:"step_id"`
	LeadID    string `json:"lead_id,omitempty"`
	DedupeKey string `json:"dedupe_key"`
}

func (e LeadSubmitted) GetType() EventType {
	return LeadSubmittedEvent
}

type Scheduled struct {
	BaseEvent

	SessionID string                `json:"session_id"`
	StepID    string                `json:"step_id"`
	LeadID    string                `json:"lead_id,omitempty"`
	DedupeKey string                `json:"dedupe_key"`
	Booking   models.BookingPayload `json:"booking"`
}

func (e Scheduled) GetType() EventType {
	return ScheduledEvent
}

type FunnelCompleted struct {
	BaseEvent

	SessionID      string `json:"session_id"`
	LeadID         string `json:"lead_id,omitempty"`
	StepsCompleted int    `json:"steps_completed"`
}

func (e FunnelCompleted) GetType() EventType {
	return FunnelCompletedEvent
}

// BookingReceived is published by the scheduling webhook receiver and consumed
// by the booking notifier. Origin is the reported widget origin, checked by the
// notifier before the payload is accepted.
type BookingReceived struct {
	BaseEvent

	SessionID string                `json:"session_id"`
	Origin    string                `json:"origin"`
	Booking   models.BookingPayload `json:"booking"`
}

func (e BookingReceived) GetType() EventType {
	return BookingReceivedEvent
}

func NewBaseEvent(eventType EventType, funnelID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FunnelID:  funnelID,
		Metadata:  make(map[string]any),
	}
}
