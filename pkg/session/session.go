// Package session hosts one funnel runtime per visitor session and reaps
// sessions that go idle.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadrail/leadrail/pkg/analytics"
	"github.com/leadrail/leadrail/pkg/booking"
	"github.com/leadrail/leadrail/pkg/dedupe"
	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/lead"
	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/runtime"
)

// DefaultIdleTTL is how long a session survives without an advance call.
const DefaultIdleTTL = 30 * time.Minute

// Session is one visitor's live runtime plus its booking subscription.
type Session struct {
	ID      string
	Runtime *runtime.Runtime

	funnelID    string
	unsubscribe func()

	mu        sync.Mutex
	lastTouch time.Time
}

// Touch refreshes the idle deadline.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTouch = time.Now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastTouch
}

// Config assembles the manager's collaborators.
type Config struct {
	LeadClient lead.Client
	IDStore    lead.RequestIDStore
	Publisher  eventbus.EventPublisher
	Notifier   booking.Notifier

	// Providers builds the analytics providers for one funnel's tracking
	// settings. Left nil, sessions run without outbound analytics.
	Providers func(models.TrackingSettings) []analytics.Provider

	// Windows builds the dedup window for one session. Left nil, each session
	// gets its own in-memory window.
	Windows func() dedupe.Window

	IdleTTL time.Duration
	Logger  *slog.Logger
}

// Manager owns the live sessions.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}

	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger.With("module", "session_manager"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session on a published funnel, wires the booking
// subscription, and emits the funnel view.
func (m *Manager) Create(ctx context.Context, funnel *models.Funnel, team *models.Team, utm lead.UTM) (*Session, error) {
	sessionID := uuid.New().String()

	saver := lead.NewSaver(m.cfg.LeadClient, m.cfg.IDStore, funnel.ID, funnel.TeamID, utm, m.logger)

	var providers []analytics.Provider
	if m.cfg.Providers != nil {
		providers = m.cfg.Providers(funnel.Settings.Tracking)
	}

	window := dedupe.Window(dedupe.NewMemoryWindow(dedupe.DefaultWindow))
	if m.cfg.Windows != nil {
		window = m.cfg.Windows()
	}

	rt := runtime.New(runtime.Config{
		Funnel:    funnel,
		Team:      team,
		SessionID: sessionID,
		Saver:     saver,
		Tracker:   analytics.NewAdapter(providers, m.logger),
		Publisher: m.cfg.Publisher,
		Window:    window,
		Logger:    m.logger,
	})

	session := &Session{
		ID:        sessionID,
		Runtime:   rt,
		funnelID:  funnel.ID,
		lastTouch: time.Now(),
	}

	if m.cfg.Notifier != nil {
		unsubscribe, err := m.cfg.Notifier.Subscribe(ctx, sessionID, func(payload models.BookingPayload) {
			session.Touch()
			rt.HandleBooking(context.Background(), payload)
		})
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to subscribe session to booking events",
				"session_id", sessionID, "error", err)
		} else {
			session.unsubscribe = unsubscribe
		}
	}

	m.mu.Lock()
	m.sessions[sessionID] = session
	m.mu.Unlock()

	rt.Begin(ctx)

	m.logger.InfoContext(ctx, "Session created",
		"session_id", sessionID, "funnel_id", funnel.ID)

	return session, nil
}

// Get returns a live session and refreshes its idle deadline.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok {
		session.Touch()
	}

	return session, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// Remove drops a session and its booking subscription.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok && session.unsubscribe != nil {
		session.unsubscribe()
	}
}

type windowSweeper interface {
	Sweep() int
}

// Sweep removes sessions idle past the TTL and compacts the surviving
// sessions' dedup windows. The server runs this on a schedule.
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()

	var expired []*Session

	for id, session := range m.sessions {
		if session.idleSince().Before(cutoff) {
			expired = append(expired, session)

			delete(m.sessions, id)

			continue
		}

		if sweeper, ok := session.Runtime.Window().(windowSweeper); ok {
			sweeper.Sweep()
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		if session.unsubscribe != nil {
			session.unsubscribe()
		}

		m.logger.Info("Session expired",
			"session_id", session.ID, "funnel_id", session.funnelID)
	}

	return len(expired)
}
