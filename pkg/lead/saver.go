package lead

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Outcome is the named result of a save attempt. Failures below the validation
// layer never surface as errors to the visitor, so callers branch on the
// outcome instead of an error value.
type Outcome string

const (
	// SaveApplied means the upsert succeeded and any returned lead id was adopted.
	SaveApplied Outcome = "applied"

	// SaveDropped means another save was in flight; this one was discarded
	// entirely, not queued. The caller re-triggers on the next user action.
	SaveDropped Outcome = "dropped"

	// SaveDeferred means the remote endpoint failed. The failure is logged and
	// swallowed: funnel progression must never be blocked by a backend hiccup
	// once consent and validation have passed.
	SaveDeferred Outcome = "deferred"
)

// UTM is the attribution captured at session start.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
}

// SaveInput describes one answer-set flush.
type SaveInput struct {
	Answers   models.AnswerSet
	Mode      Mode
	StepID    string
	StepType  models.StepType
	Intent    models.Intent
	StepIndex int
	Booking   *models.BookingPayload
}

// Saver owns the progressive persistence of one visitor session. A single
// in-flight mutex serializes calls; the adopted lead id is reused for every
// subsequent upsert.
type Saver struct {
	client   Client
	store    RequestIDStore
	funnelID string
	teamID   string
	utm      UTM
	logger   *slog.Logger

	inFlight sync.Mutex

	leadMu sync.RWMutex
	leadID string
}

// NewSaver creates the saver for one session.
func NewSaver(client Client, store RequestIDStore, funnelID, teamID string, utm UTM, logger *slog.Logger) *Saver {
	return &Saver{
		client:   client,
		store:    store,
		funnelID: funnelID,
		teamID:   teamID,
		utm:      utm,
		logger: logger.With(
			"module", "lead_saver",
			"funnel_id", funnelID,
		),
	}
}

// LeadID returns the lead identifier adopted from the first successful upsert,
// empty until then.
func (s *Saver) LeadID() string {
	s.leadMu.RLock()
	defer s.leadMu.RUnlock()

	return s.leadID
}

// Save flushes the answer set to the remote endpoint. A call arriving while
// another is in flight returns SaveDropped without touching the network.
func (s *Saver) Save(ctx context.Context, input SaveInput) Outcome {
	if !s.inFlight.TryLock() {
		s.logger.InfoContext(ctx, "Save already in flight, dropping call",
			"step_id", input.StepID, "mode", input.Mode)

		return SaveDropped
	}
	defer s.inFlight.Unlock()

	tracer := otel.Tracer("leadrail/lead")

	ctx, span := otelhelper.StartSpan(ctx, tracer, "lead.save",
		attribute.String("funnel.id", s.funnelID),
		attribute.String("step.id", input.StepID),
		attribute.String("save.mode", string(input.Mode)),
	)
	defer span.End()

	requestID := s.requestID(ctx, input)

	req := UpsertRequest{
		FunnelID:        s.funnelID,
		TeamID:          s.teamID,
		LeadID:          s.LeadID(),
		Answers:         input.Answers.Clone(),
		UTMSource:       s.utm.Source,
		UTMMedium:       s.utm.Medium,
		UTMCampaign:     s.utm.Campaign,
		CalendlyBooking: input.Booking,
		SubmitMode:      input.Mode,
		ClientRequestID: requestID,
		StepID:          input.StepID,
		StepType:        string(input.StepType),
		StepIntent:      string(input.Intent),
	}

	leadID, err := s.client.UpsertLead(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "Lead upsert failed, deferring",
			"step_id", input.StepID, "mode", input.Mode, "error", err)
		otelhelper.SetError(span, err)

		return SaveDeferred
	}

	if leadID != "" {
		s.leadMu.Lock()
		s.leadID = leadID
		s.leadMu.Unlock()
	}

	return SaveApplied
}

// requestID picks the idempotency key: stable per (funnel, step index) for
// submits, fresh for drafts. A store failure falls back to a random id rather
// than blocking the save.
func (s *Saver) requestID(ctx context.Context, input SaveInput) string {
	if input.Mode != ModeSubmit {
		return uuid.New().String()
	}

	id, err := s.store.SubmitID(ctx, s.funnelID, input.StepIndex)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to resolve submit request id, using random",
			"step_index", input.StepIndex, "error", err)

		return uuid.New().String()
	}

	return id
}
