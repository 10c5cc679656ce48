package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadrail/leadrail/pkg/booking"
	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/lead"
	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/runtime"
)

type stubClient struct{}

func (stubClient) UpsertLead(_ context.Context, _ lead.UpsertRequest) (string, error) {
	return "lead-1", nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error { return nil }

type stubNotifier struct {
	handlers      map[string]booking.Handler
	unsubscribed  int
	subscribeErrs int
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{handlers: make(map[string]booking.Handler)}
}

func (n *stubNotifier) Subscribe(_ context.Context, sessionID string, onComplete booking.Handler) (func(), error) {
	n.handlers[sessionID] = onComplete

	return func() {
		delete(n.handlers, sessionID)
		n.unsubscribed++
	}, nil
}

func testManager(notifier booking.Notifier, ttl time.Duration) *Manager {
	return NewManager(Config{
		LeadClient: stubClient{},
		IDStore:    lead.NewMemoryRequestIDStore(),
		Publisher:  nopPublisher{},
		Notifier:   notifier,
		IdleTTL:    ttl,
		Logger:     slog.Default(),
	})
}

func publishedFunnel() *models.Funnel {
	return &models.Funnel{
		ID:     "funnel-1",
		TeamID: "team-1",
		Name:   "Demo",
		Status: models.FunnelStatusPublished,
		Steps: []*models.Step{
			{ID: "s1", OrderIndex: 0, Type: models.StepTypeEmbed,
				Content: map[string]any{"embed_url": "https://calendly.com/acme"}},
			{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
		},
	}
}

func TestCreateAndGetSession(t *testing.T) {
	notifier := newStubNotifier()
	manager := testManager(notifier, time.Minute)

	session, err := manager.Create(context.Background(), publishedFunnel(), &models.Team{ID: "team-1"}, lead.UTM{})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)

	got, ok := manager.Get(session.ID)
	require.True(t, ok)
	assert.Same(t, session, got)

	_, ok = manager.Get("missing")
	assert.False(t, ok)

	assert.Contains(t, notifier.handlers, session.ID, "session must be subscribed to booking events")
}

func TestBookingHandlerDrivesRuntime(t *testing.T) {
	notifier := newStubNotifier()
	manager := testManager(notifier, time.Minute)

	session, err := manager.Create(context.Background(), publishedFunnel(), &models.Team{ID: "team-1"}, lead.UTM{})
	require.NoError(t, err)

	notifier.handlers[session.ID](models.BookingPayload{
		EventURI:     "https://api.calendly.com/scheduled_events/ev1",
		InviteeEmail: "a@example.com",
	})

	assert.Equal(t, 1, session.Runtime.StepIndex(), "booking must advance past the embed step")
}

func TestSweepDropsIdleSessions(t *testing.T) {
	notifier := newStubNotifier()
	manager := testManager(notifier, 10*time.Millisecond)

	session, err := manager.Create(context.Background(), publishedFunnel(), &models.Team{ID: "team-1"}, lead.UTM{})
	require.NoError(t, err)

	fresh, err := manager.Create(context.Background(), publishedFunnel(), &models.Team{ID: "team-1"}, lead.UTM{})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	fresh.Touch()

	removed := manager.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, manager.Len())
	assert.Equal(t, 1, notifier.unsubscribed, "sweeping must tear down the booking subscription")

	_, ok := manager.Get(session.ID)
	assert.False(t, ok)
}

func TestRemoveUnsubscribes(t *testing.T) {
	notifier := newStubNotifier()
	manager := testManager(notifier, time.Minute)

	session, err := manager.Create(context.Background(), publishedFunnel(), &models.Team{ID: "team-1"}, lead.UTM{})
	require.NoError(t, err)

	manager.Remove(session.ID)

	assert.Zero(t, manager.Len())
	assert.Equal(t, 1, notifier.unsubscribed)
	assert.NotContains(t, notifier.handlers, session.ID)
}

func TestSessionAdvanceEndToEnd(t *testing.T) {
	manager := testManager(newStubNotifier(), time.Minute)

	funnel := &models.Funnel{
		ID:     "funnel-2",
		TeamID: "team-1",
		Name:   "Capture",
		Status: models.FunnelStatusPublished,
		Steps: []*models.Step{
			{ID: "s1", OrderIndex: 0, Type: models.StepTypeEmailCapture,
				Content: map[string]any{"privacy_link": "https://example.com/privacy"}},
			{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
		},
	}

	session, err := manager.Create(context.Background(), funnel, &models.Team{ID: "team-1"}, lead.UTM{})
	require.NoError(t, err)

	session.Runtime.SetConsent(true)

	result := session.Runtime.Advance(context.Background(), "a@example.com")
	require.Equal(t, runtime.StatusAdvanced, result.Status)
	assert.Equal(t, lead.SaveApplied, result.SaveOutcome)
	assert.Equal(t, "a@example.com", session.Runtime.Answers().CapturedEmail())
}
