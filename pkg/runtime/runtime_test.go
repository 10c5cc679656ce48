package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadrail/leadrail/pkg/analytics"
	"github.com/leadrail/leadrail/pkg/dedupe"
	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/events"
	"github.com/leadrail/leadrail/pkg/lead"
	"github.com/leadrail/leadrail/pkg/models"
)

type fakeSaver struct {
	mu      sync.Mutex
	calls   []lead.SaveInput
	outcome lead.Outcome
	leadID  string
	saved   chan lead.SaveInput
	block   chan struct{}
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{
		outcome: lead.SaveApplied,
		saved:   make(chan lead.SaveInput, 16),
	}
}

func (s *fakeSaver) Save(_ context.Context, input lead.SaveInput) lead.Outcome {
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	s.calls = append(s.calls, input)

	if input.Mode == lead.ModeSubmit && s.outcome == lead.SaveApplied {
		s.leadID = "lead-42"
	}
	s.mu.Unlock()

	s.saved <- input

	return s.outcome
}

func (s *fakeSaver) LeadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.leadID
}

func (s *fakeSaver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

type trackedEvent struct {
	eventType analytics.EventType
	payload   analytics.Payload
	key       string
}

type fakeTracker struct {
	mu     sync.Mutex
	events []trackedEvent
}

func (t *fakeTracker) Fire(_ context.Context, eventType analytics.EventType, payload analytics.Payload, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, trackedEvent{eventType, payload, key})
}

func (t *fakeTracker) byType(eventType analytics.EventType) []trackedEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []trackedEvent

	for _, e := range t.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}

	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *fakePublisher) byType(eventType events.EventType) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []eventbus.Event

	for _, e := range p.events {
		if e.GetType() == eventType {
			out = append(out, e)
		}
	}

	return out
}

func testFunnel(steps ...*models.Step) *models.Funnel {
	return &models.Funnel{
		ID:     "funnel-1",
		TeamID: "team-1",
		Name:   "Demo Funnel",
		Status: models.FunnelStatusPublished,
		Steps:  steps,
	}
}

func newTestRuntime(t *testing.T, funnel *models.Funnel) (*Runtime, *fakeSaver, *fakeTracker, *fakePublisher) {
	t.Helper()

	saver := newFakeSaver()
	tracker := &fakeTracker{}
	publisher := &fakePublisher{}

	r := New(Config{
		Funnel:    funnel,
		Team:      &models.Team{ID: "team-1"},
		SessionID: "session-1",
		Saver:     saver,
		Tracker:   tracker,
		Publisher: publisher,
		Window:    dedupe.NewMemoryWindow(dedupe.DefaultWindow),
		Logger:    slog.Default(),
	})

	return r, saver, tracker, publisher
}

func awaitSave(t *testing.T, saver *fakeSaver) lead.SaveInput {
	t.Helper()

	select {
	case input := <-saver.saved:
		return input
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a save call")

		return lead.SaveInput{}
	}
}

func TestAdvanceThroughCollectSteps(t *testing.T) {
	funnel := testFunnel(
		&models.Step{ID: "s1", OrderIndex: 0, Type: models.StepTypeWelcome},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeTextQuestion},
		&models.Step{ID: "s3", OrderIndex: 2, Type: models.StepTypeThankYou},
	)

	r, saver, _, publisher := newTestRuntime(t, funnel)

	result := r.Advance(context.Background(), nil)
	require.Equal(t, StatusAdvanced, result.Status)
	assert.Equal(t, 1, result.StepIndex)

	result = r.Advance(context.Background(), "blue")
	require.Equal(t, StatusAdvanced, result.Status)

	awaitSave(t, saver)
	assert.Equal(t, lead.ModeDraft, saver.calls[0].Mode)

	result = r.Advance(context.Background(), nil)
	require.Equal(t, StatusCompleted, result.Status)
	assert.True(t, result.IsComplete)

	completed := r.Advance(context.Background(), nil)
	assert.Equal(t, StatusNoop, completed.Status)

	assert.Len(t, publisher.byType(events.StepCompletedEvent), 3)
	assert.Len(t, publisher.byType(events.FunnelCompletedEvent), 1)
}

func TestWelcomeWithoutAnswerSkipsPersistence(t *testing.T) {
	funnel := testFunnel(
		&models.Step{ID: "s1", OrderIndex: 0, Type: models.StepTypeWelcome},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, _, _ := newTestRuntime(t, funnel)

	result := r.Advance(context.Background(), nil)
	require.Equal(t, StatusAdvanced, result.Status)
	assert.Zero(t, saver.callCount())
}

func TestConsentGateBlocksCaptureUntilChecked(t *testing.T) {
	funnel := testFunnel(
		&models.Step{
			ID: "s1", OrderIndex: 0, Type: models.StepTypeOptIn,
			Content: map[string]any{"privacy_link": "https://example.com/privacy"},
		},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, _, _ := newTestRuntime(t, funnel)

	result := r.Advance(context.Background(), "yes")
	require.Equal(t, StatusConsentRequired, result.Status)
	assert.Equal(t, 0, result.StepIndex)
	assert.NotEmpty(t, r.ConsentError())
	assert.Zero(t, saver.callCount(), "an aborted advance must never touch persistence")

	// The value merged before the abort survives for the retry.
	answers := r.Answers()
	require.Contains(t, answers, "s1")
	assert.Equal(t, "yes", answers["s1"].Value)

	r.SetConsent(true)
	assert.Empty(t, r.ConsentError())

	result = r.Advance(context.Background(), "yes")
	require.Equal(t, StatusAdvanced, result.Status)

	input := awaitSave(t, saver)
	assert.Equal(t, lead.ModeSubmit, input.Mode)

	legal, ok := input.Answers[models.LegalAnswerKey]
	require.True(t, ok, "consent metadata must ride along with the submit")

	record, ok := legal.Value.(models.ConsentRecord)
	require.True(t, ok)
	assert.True(t, record.Accepted)
	assert.Equal(t, "https://example.com/privacy", record.PrivacyPolicyURL)
}

func TestCaptureWithoutPolicyIsConfigurationError(t *testing.T) {
	funnel := testFunnel(
		&models.Step{ID: "s1", OrderIndex: 0, Type: models.StepTypeEmailCapture},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, tracker, _ := newTestRuntime(t, funnel)

	result := r.Advance(context.Background(), "a@example.com")
	require.Equal(t, StatusConfigError, result.Status)
	assert.Equal(t, 0, result.StepIndex)
	assert.Zero(t, saver.callCount())
	assert.Empty(t, tracker.byType(analytics.EventLead))

	// Fixing the funnel-level policy unblocks the step.
	funnel.Settings.PrivacyPolicyURL = "https://example.com/privacy"

	r.SetConsent(true)

	result = r.Advance(context.Background(), "a@example.com")
	require.Equal(t, StatusAdvanced, result.Status)
}

func TestCaptureSubmitFiresLeadPixelWithIdentityKey(t *testing.T) {
	funnel := testFunnel(
		&models.Step{
			ID: "s1", OrderIndex: 0, Type: models.StepTypeEmailCapture,
			Content: map[string]any{"privacy_link": "https://example.com/privacy"},
		},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, tracker, publisher := newTestRuntime(t, funnel)

	r.SetConsent(true)

	result := r.Advance(context.Background(), "a@example.com")
	require.Equal(t, StatusAdvanced, result.Status)
	assert.Equal(t, lead.SaveApplied, result.SaveOutcome)

	awaitSave(t, saver)

	leads := tracker.byType(analytics.EventLead)
	require.Len(t, leads, 1)
	assert.Equal(t, "Lead:a@example.com", leads[0].key)
	assert.Equal(t, "a@example.com", leads[0].payload.Email)

	submitted := publisher.byType(events.LeadSubmittedEvent)
	require.Len(t, submitted, 1)
	assert.Equal(t, "lead-42", submitted[0].(events.LeadSubmitted).LeadID)
}

func TestRapidDoubleAdvanceIsDropped(t *testing.T) {
	funnel := testFunnel(
		&models.Step{
			ID: "s1", OrderIndex: 0, Type: models.StepTypeEmailCapture,
			Content: map[string]any{"privacy_link": "https://example.com/privacy"},
		},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, _, _ := newTestRuntime(t, funnel)

	saver.block = make(chan struct{})

	r.SetConsent(true)

	first := make(chan AdvanceResult, 1)

	go func() {
		first <- r.Advance(context.Background(), "a@example.com")
	}()

	// Wait until the first advance is parked inside the awaited submit.
	require.Eventually(t, func() bool {
		if r.mu.TryLock() {
			r.mu.Unlock()

			return false
		}

		return true
	}, time.Second, 5*time.Millisecond)

	second := r.Advance(context.Background(), "a@example.com")
	assert.Equal(t, StatusDropped, second.Status)

	close(saver.block)

	result := <-first
	assert.Equal(t, StatusAdvanced, result.Status)
	assert.Equal(t, 1, saver.callCount(), "only one network call for the double click")
}

func TestBookingAdvancesScheduleStep(t *testing.T) {
	funnel := testFunnel(
		&models.Step{
			ID: "s1", OrderIndex: 0, Type: models.StepTypeEmbed,
			Content: map[string]any{"embed_url": "https://calendly.com/acme/intro"},
		},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, tracker, publisher := newTestRuntime(t, funnel)

	booking := models.BookingPayload{
		EventURI:     "https://api.calendly.com/scheduled_events/ev1",
		InviteeURI:   "https://api.calendly.com/invitees/in1",
		InviteeEmail: "a@example.com",
	}

	result := r.HandleBooking(context.Background(), booking)
	require.Equal(t, StatusAdvanced, result.Status)
	assert.Equal(t, 1, result.StepIndex)

	input := awaitSave(t, saver)
	assert.Equal(t, lead.ModeDraft, input.Mode)
	require.NotNil(t, input.Booking)
	assert.Equal(t, booking.EventURI, input.Booking.EventURI)

	schedules := tracker.byType(analytics.EventSchedule)
	require.Len(t, schedules, 1)
	assert.Equal(t, "Schedule:"+booking.InviteeURI, schedules[0].key)

	scheduled := publisher.byType(events.ScheduledEvent)
	require.Len(t, scheduled, 1)
	assert.Equal(t, booking, scheduled[0].(events.Scheduled).Booking)
}

func TestRequiredStepRejectsEmptyAnswer(t *testing.T) {
	funnel := testFunnel(
		&models.Step{
			ID: "s1", OrderIndex: 0, Type: models.StepTypeTextQuestion,
			Content: map[string]any{"is_required": true},
		},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, _, _ := newTestRuntime(t, funnel)

	result := r.Advance(context.Background(), "   ")
	require.Equal(t, StatusValidationError, result.Status)
	assert.Equal(t, 0, result.StepIndex)
	assert.Zero(t, saver.callCount())

	result = r.Advance(context.Background(), "a real answer")
	require.Equal(t, StatusAdvanced, result.Status)
}

func TestConsentResetsPerStep(t *testing.T) {
	funnel := testFunnel(
		&models.Step{
			ID: "s1", OrderIndex: 0, Type: models.StepTypeEmailCapture,
			Content: map[string]any{"privacy_link": "https://example.com/privacy"},
		},
		&models.Step{
			ID: "s2", OrderIndex: 1, Type: models.StepTypeOptIn,
			Content: map[string]any{"privacy_link": "https://example.com/terms"},
		},
		&models.Step{ID: "s3", OrderIndex: 2, Type: models.StepTypeThankYou},
	)

	r, saver, _, _ := newTestRuntime(t, funnel)

	r.SetConsent(true)

	result := r.Advance(context.Background(), "a@example.com")
	require.Equal(t, StatusAdvanced, result.Status)
	awaitSave(t, saver)

	// Consent does not carry over to the next consent-gated step.
	result = r.Advance(context.Background(), true)
	assert.Equal(t, StatusConsentRequired, result.Status)
}

func TestDeferredSaveStillAdvances(t *testing.T) {
	funnel := testFunnel(
		&models.Step{
			ID: "s1", OrderIndex: 0, Type: models.StepTypeEmailCapture,
			Content: map[string]any{"privacy_link": "https://example.com/privacy"},
		},
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
	)

	r, saver, _, _ := newTestRuntime(t, funnel)

	saver.outcome = lead.SaveDeferred

	r.SetConsent(true)

	result := r.Advance(context.Background(), "a@example.com")
	require.Equal(t, StatusAdvanced, result.Status)
	assert.Equal(t, lead.SaveDeferred, result.SaveOutcome)
	assert.Equal(t, 1, result.StepIndex, "a backend failure never blocks progression")
}

func TestCompletionHappensExactlyOnce(t *testing.T) {
	funnel := testFunnel(
		&models.Step{ID: "s1", OrderIndex: 0, Type: models.StepTypeThankYou},
	)

	r, _, tracker, publisher := newTestRuntime(t, funnel)

	result := r.Advance(context.Background(), nil)
	require.Equal(t, StatusCompleted, result.Status)
	assert.True(t, r.IsComplete())

	for i := 0; i < 3; i++ {
		again := r.Advance(context.Background(), nil)
		assert.Equal(t, StatusNoop, again.Status)
	}

	assert.Len(t, publisher.byType(events.FunnelCompletedEvent), 1)
	assert.Len(t, tracker.byType(analytics.EventCompleteRegistration), 1)
}

func TestBeginEmitsViewOnce(t *testing.T) {
	funnel := testFunnel(
		&models.Step{ID: "s1", OrderIndex: 0, Type: models.StepTypeWelcome},
	)

	r, _, tracker, publisher := newTestRuntime(t, funnel)

	r.Begin(context.Background())
	r.Begin(context.Background())

	assert.Len(t, publisher.byType(events.FunnelViewedEvent), 1, "second view inside the window is suppressed")
	assert.Len(t, tracker.byType(analytics.EventViewContent), 2, "pixel dedup is the adapter's job, not the runtime's")
}

func TestStepsOrderedByOrderIndex(t *testing.T) {
	funnel := testFunnel(
		&models.Step{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
		&models.Step{ID: "s1", OrderIndex: 0, Type: models.StepTypeWelcome},
	)

	r, _, _, _ := newTestRuntime(t, funnel)

	require.NotNil(t, r.CurrentStep())
	assert.Equal(t, "s1", r.CurrentStep().ID)
}
