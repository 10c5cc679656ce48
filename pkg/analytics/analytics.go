// Package analytics fans the runtime's small event vocabulary out to the
// configured external tracking providers.
package analytics

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leadrail/leadrail/pkg/dedupe"
)

// EventType is the internal cross-provider event vocabulary.
type EventType string

const (
	EventViewContent          EventType = "ViewContent"
	EventLead                 EventType = "Lead"
	EventCompleteRegistration EventType = "CompleteRegistration"
	EventSchedule             EventType = "Schedule"
)

// Payload is the normalized event payload shared by all providers.
type Payload struct {
	Currency        string  `json:"currency,omitempty"`
	Value           float64 `json:"value,omitempty"`
	ContentName     string  `json:"content_name,omitempty"`
	ContentCategory string  `json:"content_category,omitempty"`
	Email           string  `json:"email,omitempty"`
	Phone           string  `json:"phone,omitempty"`
}

// ProviderEvent is one mapped emission toward a single provider.
type ProviderEvent struct {
	Name          string // Provider-native event name
	CorrelationID string // Shared across providers for provider-side dedup
	Payload       Payload
}

// Provider is one external tracking destination. Providers are independent: a
// failing or unconfigured provider never affects the others.
type Provider interface {
	Name() string
	Configured() bool
	Send(ctx context.Context, event ProviderEvent) error
}

// Adapter applies once-only deduplication and per-provider event-name mapping
// before dispatch. Outbound pixels fire at most once per semantic occurrence:
// re-firing conversion events corrupts ad-platform attribution.
type Adapter struct {
	providers []Provider
	once      *dedupe.Once
	logger    *slog.Logger
}

// NewAdapter creates an adapter over the given providers.
func NewAdapter(providers []Provider, logger *slog.Logger) *Adapter {
	return &Adapter{
		providers: providers,
		once:      dedupe.NewOnce(),
		logger:    logger.With("module", "analytics"),
	}
}

// Fire emits one event toward every configured provider. An empty dedupeKey
// falls back to a hash of the event type and payload.
func (a *Adapter) Fire(ctx context.Context, eventType EventType, payload Payload, dedupeKey string) {
	if dedupeKey == "" {
		dedupeKey = dedupe.FallbackKey(string(eventType), map[string]any{
			"currency":     payload.Currency,
			"value":        payload.Value,
			"content_name": payload.ContentName,
			"email":        payload.Email,
			"phone":        payload.Phone,
		})
	}

	if !a.once.First(dedupeKey) {
		a.logger.DebugContext(ctx, "Suppressing duplicate analytics event",
			"event_type", eventType, "dedupe_key", dedupeKey)

		return
	}

	if payload.Currency == "" {
		payload.Currency = "USD"
	}

	correlationID := uuid.New().String()

	for _, provider := range a.providers {
		if !provider.Configured() {
			continue
		}

		name, ok := eventName(provider.Name(), eventType)
		if !ok {
			continue
		}

		event := ProviderEvent{
			Name:          name,
			CorrelationID: correlationID,
			Payload:       payload,
		}

		err := provider.Send(ctx, event)
		if err != nil {
			a.logger.ErrorContext(ctx, "Provider dispatch failed",
				"provider", provider.Name(), "event_type", eventType, "error", err)
		}
	}
}

// eventNames maps the internal vocabulary to each provider's native event name.
var eventNames = map[string]map[EventType]string{
	ProviderMeta: {
		EventViewContent:          "ViewContent",
		EventLead:                 "Lead",
		EventCompleteRegistration: "CompleteRegistration",
		EventSchedule:             "Schedule",
	},
	ProviderGoogleAds: {
		EventViewContent:          "page_view",
		EventLead:                 "generate_lead",
		EventCompleteRegistration: "sign_up",
		EventSchedule:             "book_appointment",
	},
	ProviderTikTok: {
		EventViewContent:          "ViewContent",
		EventLead:                 "SubmitForm",
		EventCompleteRegistration: "CompleteRegistration",
		EventSchedule:             "Schedule",
	},
	ProviderLinkedIn: {
		EventViewContent:          "page_view",
		EventLead:                 "lead",
		EventCompleteRegistration: "sign_up",
		EventSchedule:             "book_appointment",
	},
}

func eventName(provider string, eventType EventType) (string, bool) {
	table, ok := eventNames[provider]
	if !ok {
		return "", false
	}

	name, ok := table[eventType]

	return name, ok
}
