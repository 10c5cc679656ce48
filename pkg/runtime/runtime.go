// Package runtime drives an anonymous visitor through a published funnel's
// ordered steps, deciding when partial answers become a durable lead record.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/leadrail/leadrail/pkg/analytics"
	"github.com/leadrail/leadrail/pkg/consent"
	"github.com/leadrail/leadrail/pkg/dedupe"
	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/events"
	"github.com/leadrail/leadrail/pkg/lead"
	"github.com/leadrail/leadrail/pkg/models"
)

// ErrPolicyNotConfigured blocks capture-intent submission when no consent
// policy document resolves for the step. This is an operator mistake, not a
// visitor one: the message is surfaced as a blocking configuration error and
// progression halts until the funnel is fixed.
var ErrPolicyNotConfigured = errors.New("no privacy policy configured for identity capture step")

// ErrAnswerRequired is the inline validation error for required steps
// submitted without a usable answer.
var ErrAnswerRequired = errors.New("an answer is required for this step")

// Tracker is the outbound analytics surface consumed by the sequencer.
type Tracker interface {
	Fire(ctx context.Context, eventType analytics.EventType, payload analytics.Payload, dedupeKey string)
}

// Saver is the progressive lead persistence surface consumed by the sequencer.
type Saver interface {
	Save(ctx context.Context, input lead.SaveInput) lead.Outcome
	LeadID() string
}

// Config assembles one runtime instance's collaborators.
type Config struct {
	Funnel    *models.Funnel
	Team      *models.Team
	SessionID string
	Saver     Saver
	Tracker   Tracker
	Publisher eventbus.EventPublisher
	Window    dedupe.Window
	Logger    *slog.Logger
}

// Runtime is the per-session step state machine. Every mutable field below is
// owned by this single instance and touched only under mu: the HTTP advance
// handler and the booking callback are the only writers, and a writer that
// finds the lock taken drops its call rather than queueing (spec'd behavior
// for rapid double-submits).
type Runtime struct {
	funnel    *models.Funnel
	team      *models.Team
	steps     []*models.Step
	sessionID string
	saver     Saver
	tracker   Tracker
	publisher eventbus.EventPublisher
	window    dedupe.Window
	logger    *slog.Logger

	mu             sync.Mutex
	index          int
	complete       bool
	answers        models.AnswerSet
	booking        models.BookingPayload
	consentChecked bool
	consentErr     string
}

// New creates a runtime positioned at the funnel's first visible step.
func New(cfg Config) *Runtime {
	r := &Runtime{
		funnel:    cfg.Funnel,
		team:      cfg.Team,
		steps:     cfg.Funnel.VisibleSteps(),
		sessionID: cfg.SessionID,
		saver:     cfg.Saver,
		tracker:   cfg.Tracker,
		publisher: cfg.Publisher,
		window:    cfg.Window,
		answers:   make(models.AnswerSet),
		logger: cfg.Logger.With(
			"module", "funnel_runtime",
			"funnel_id", cfg.Funnel.ID,
			"session_id", cfg.SessionID,
		),
	}

	r.resetConsentLocked()

	return r
}

// Begin records the funnel view: one internal event and one ViewContent pixel,
// both deduplicated for the session.
func (r *Runtime) Begin(ctx context.Context) {
	r.mu.Lock()
	step := r.currentStepLocked()
	r.mu.Unlock()

	if step == nil {
		return
	}

	event := events.FunnelViewed{
		BaseEvent: events.NewBaseEvent(events.FunnelViewedEvent, r.funnel.ID),
		SessionID: r.sessionID,
		StepID:    step.ID,
	}
	event.TeamID = r.funnel.TeamID

	r.emit(ctx, dedupe.EventKey(r.funnel.ID, step.ID, "viewed", r.saver.LeadID()), event)

	r.tracker.Fire(ctx, analytics.EventViewContent, analytics.Payload{
		ContentName:     r.funnel.Name,
		ContentCategory: "funnel",
		Currency:        r.funnel.Settings.Tracking.Currency,
	}, "ViewContent:"+r.funnel.ID+":"+r.sessionID)
}

// SetConsent records the consent checkbox state for the active step.
func (r *Runtime) SetConsent(checked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consentChecked = checked

	if checked {
		r.consentErr = ""
	}
}

// HandleBooking stores the widget's booking payload in the single slot
// (overwriting, never queueing) and pushes it through the regular advance path.
func (r *Runtime) HandleBooking(ctx context.Context, payload models.BookingPayload) AdvanceResult {
	r.mu.Lock()
	r.booking = payload
	r.mu.Unlock()

	return r.Advance(ctx, map[string]any{
		"event_uri":     payload.EventURI,
		"invitee_uri":   payload.InviteeURI,
		"invitee_email": payload.InviteeEmail,
	})
}

// CurrentStep returns the active step, nil once the funnel is complete or empty.
func (r *Runtime) CurrentStep() *models.Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.currentStepLocked()
}

// StepIndex returns the current step index.
func (r *Runtime) StepIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.index
}

// IsComplete reports whether the terminal state has been reached.
func (r *Runtime) IsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.complete
}

// ConsentError returns the pending consent validation message, empty when none.
func (r *Runtime) ConsentError() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.consentErr
}

// Window returns the event dedup window backing this runtime.
func (r *Runtime) Window() dedupe.Window {
	return r.window
}

// Answers returns a copy of the accumulated answer set.
func (r *Runtime) Answers() models.AnswerSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.answers.Clone()
}

func (r *Runtime) currentStepLocked() *models.Step {
	if r.complete || r.index >= len(r.steps) {
		return nil
	}

	return r.steps[r.index]
}

func (r *Runtime) policyURLLocked(step *models.Step) string {
	return consent.ResolvePolicyURL(step, r.funnel, r.team)
}

// resetConsentLocked applies the re-entry rule: consent is re-affirmed per
// step, never carried over.
func (r *Runtime) resetConsentLocked() {
	step := r.currentStepLocked()
	if step == nil {
		r.consentChecked = false
		r.consentErr = ""

		return
	}

	if consent.RequiresCheckbox(step, r.policyURLLocked(step)) {
		r.consentChecked = false
	}

	r.consentErr = ""
}

// emit publishes one internal funnel event, suppressed inside the dedup
// window. Publish failures are logged and swallowed: event recording must
// never block the visitor.
func (r *Runtime) emit(ctx context.Context, key string, event eventbus.Event) {
	if !r.window.Allow(ctx, key) {
		return
	}

	err := r.publisher.Publish(ctx, key, event)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish funnel event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}
