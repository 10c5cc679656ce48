package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/leadrail/leadrail/pkg/analytics"
	"github.com/leadrail/leadrail/pkg/consent"
	"github.com/leadrail/leadrail/pkg/dedupe"
	"github.com/leadrail/leadrail/pkg/events"
	"github.com/leadrail/leadrail/pkg/lead"
	"github.com/leadrail/leadrail/pkg/models"
)

// AdvanceStatus names the observable outcome of one advance call.
type AdvanceStatus string

const (
	// StatusAdvanced means the step completed and the runtime moved forward.
	StatusAdvanced AdvanceStatus = "advanced"

	// StatusCompleted means this advance reached the terminal state.
	StatusCompleted AdvanceStatus = "completed"

	// StatusConsentRequired means the consent checkbox gate aborted the advance.
	// The submitted value was still merged and is re-usable on retry.
	StatusConsentRequired AdvanceStatus = "consent_required"

	// StatusConfigError means a capture step has no resolvable policy document.
	StatusConfigError AdvanceStatus = "configuration_error"

	// StatusValidationError means a required step was submitted without a
	// usable answer.
	StatusValidationError AdvanceStatus = "validation_error"

	// StatusDropped means another advance held the runtime; this call was
	// discarded without touching any state.
	StatusDropped AdvanceStatus = "dropped"

	// StatusNoop means the funnel was already complete.
	StatusNoop AdvanceStatus = "noop"
)

// AdvanceResult reports one advance call back to the transport layer.
type AdvanceResult struct {
	Status      AdvanceStatus `json:"status"`
	StepIndex   int           `json:"step_index"`
	IsComplete  bool          `json:"is_complete"`
	Message     string        `json:"message,omitempty"`
	SaveOutcome lead.Outcome  `json:"save_outcome,omitempty"`
}

// Advance processes the submitted value against the active step and, when the
// step's obligations are met, moves the runtime to the next step. It never
// returns an error: every failure mode is a named status, and backend failures
// below the validation layer are logged and swallowed.
func (r *Runtime) Advance(ctx context.Context, value any) AdvanceResult {
	if !r.mu.TryLock() {
		r.logger.InfoContext(ctx, "Advance already in progress, dropping call")

		return AdvanceResult{Status: StatusDropped}
	}
	defer r.mu.Unlock()

	step := r.currentStepLocked()
	if step == nil {
		return AdvanceResult{Status: StatusNoop, StepIndex: r.index, IsComplete: r.complete}
	}

	// The value is merged before any gate runs so an aborted advance never
	// loses what the visitor typed.
	r.answers.Merge(step, value)

	intent := step.Intent()
	policyURL := r.policyURLLocked(step)

	if consent.RequiresCheckbox(step, policyURL) && !r.consentChecked {
		r.consentErr = "please accept the privacy policy to continue"

		return AdvanceResult{
			Status:    StatusConsentRequired,
			StepIndex: r.index,
			Message:   r.consentErr,
		}
	}

	if step.IsRequired() && !step.MeaningfulAnswer(value) {
		return AdvanceResult{
			Status:    StatusValidationError,
			StepIndex: r.index,
			Message:   ErrAnswerRequired.Error(),
		}
	}

	var outcome lead.Outcome

	switch intent {
	case models.IntentCapture:
		if policyURL == "" {
			r.logger.WarnContext(ctx, "Capture step has no resolvable policy URL",
				"step_id", step.ID, "step_type", step.Type)

			return AdvanceResult{
				Status:    StatusConfigError,
				StepIndex: r.index,
				Message:   ErrPolicyNotConfigured.Error(),
			}
		}

		r.recordConsentLocked(step, policyURL)
		outcome = r.captureLocked(ctx, step)
	case models.IntentSchedule:
		r.scheduleLocked(ctx, step, value)
	case models.IntentCollect, models.IntentComplete:
		r.draftLocked(ctx, step, value)
	}

	r.emitStepCompletedLocked(ctx, step, intent, value)

	result := AdvanceResult{Status: StatusAdvanced, SaveOutcome: outcome}

	if r.index == len(r.steps)-1 {
		r.completeLocked(ctx)

		result.Status = StatusCompleted
	} else {
		r.index++
		r.resetConsentLocked()
	}

	result.StepIndex = r.index
	result.IsComplete = r.complete

	return result
}

// recordConsentLocked stores the affirmed consent metadata in the answer set
// so it rides along with the next upsert.
func (r *Runtime) recordConsentLocked(step *models.Step, policyURL string) {
	if !consent.RequiresCheckbox(step, policyURL) {
		return
	}

	r.answers.SetConsent(models.ConsentRecord{
		Accepted:         true,
		AcceptedAt:       time.Now().UTC(),
		PrivacyPolicyURL: policyURL,
		ConsentMode:      step.ConsentMode(),
	})
}

// captureLocked runs the durable submit path: the upsert is awaited, the Lead
// pixel fires once, and a lead_submitted event is recorded.
func (r *Runtime) captureLocked(ctx context.Context, step *models.Step) lead.Outcome {
	outcome := r.saver.Save(ctx, lead.SaveInput{
		Answers:   r.answers.Clone(),
		Mode:      lead.ModeSubmit,
		StepID:    step.ID,
		StepType:  step.Type,
		Intent:    models.IntentCapture,
		StepIndex: r.index,
	})

	tracking := r.funnel.Settings.Tracking

	r.tracker.Fire(ctx, analytics.EventLead, analytics.Payload{
		Currency:    tracking.Currency,
		Value:       tracking.ConversionValue,
		ContentName: r.funnel.Name,
		Email:       r.answers.CapturedEmail(),
		Phone:       r.answers.CapturedPhone(),
	}, r.leadDedupeKeyLocked())

	leadID := r.saver.LeadID()

	event := events.LeadSubmitted{
		BaseEvent: events.NewBaseEvent(events.LeadSubmittedEvent, r.funnel.ID),
		SessionID: r.sessionID,
		StepID:    step.ID,
		LeadID:    leadID,
		DedupeKey: dedupe.EventKey(r.funnel.ID, step.ID, "lead_submitted", leadID),
	}
	event.TeamID = r.funnel.TeamID

	r.emit(ctx, event.DedupeKey, event)

	return outcome
}

// scheduleLocked runs the scheduling path: a draft flush when the widget
// delivered data, plus the Schedule pixel and internal event regardless.
func (r *Runtime) scheduleLocked(ctx context.Context, step *models.Step, value any) {
	var booking *models.BookingPayload

	if !r.booking.Empty() {
		b := r.booking
		booking = &b
	}

	if step.MeaningfulAnswer(value) {
		r.saveDraftLocked(ctx, step, booking)
	}

	tracking := r.funnel.Settings.Tracking

	r.tracker.Fire(ctx, analytics.EventSchedule, analytics.Payload{
		Currency:    tracking.Currency,
		Value:       tracking.ConversionValue,
		ContentName: r.funnel.Name,
		Email:       r.answers.CapturedEmail(),
	}, r.scheduleDedupeKeyLocked())

	leadID := r.saver.LeadID()

	event := events.Scheduled{
		BaseEvent: events.NewBaseEvent(events.ScheduledEvent, r.funnel.ID),
		SessionID: r.sessionID,
		StepID:    step.ID,
		LeadID:    leadID,
		DedupeKey: dedupe.EventKey(r.funnel.ID, step.ID, "scheduled", leadID),
		Booking:   r.booking,
	}
	event.TeamID = r.funnel.TeamID

	r.emit(ctx, event.DedupeKey, event)
}

// draftLocked flushes a draft for collect and complete steps that carry a
// meaningful answer. Steps without one advance without touching persistence.
func (r *Runtime) draftLocked(ctx context.Context, step *models.Step, value any) {
	if !step.MeaningfulAnswer(value) {
		return
	}

	r.saveDraftLocked(ctx, step, nil)
}

// saveDraftLocked fires a background draft flush. Drafts are best effort and
// never block the advance; a concurrent submit simply drops them via the
// saver's in-flight lock.
func (r *Runtime) saveDraftLocked(ctx context.Context, step *models.Step, booking *models.BookingPayload) {
	input := lead.SaveInput{
		Answers:   r.answers.Clone(),
		Mode:      lead.ModeDraft,
		StepID:    step.ID,
		StepType:  step.Type,
		Intent:    step.Intent(),
		StepIndex: r.index,
		Booking:   booking,
	}

	go func(ctx context.Context) {
		r.saver.Save(ctx, input)
	}(context.WithoutCancel(ctx))
}

func (r *Runtime) emitStepCompletedLocked(ctx context.Context, step *models.Step, intent models.Intent, value any) {
	leadID := r.saver.LeadID()
	key := dedupe.EventKey(r.funnel.ID, step.ID, string(intent), leadID)

	event := events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, r.funnel.ID),
		SessionID: r.sessionID,
		StepID:    step.ID,
		StepType:  string(step.Type),
		Intent:    string(intent),
		LeadID:    leadID,
		DedupeKey: key,
	}
	event.TeamID = r.funnel.TeamID

	if step.MeaningfulAnswer(value) && value != nil {
		event.Payload = map[string]any{"value": value}
	}

	r.emit(ctx, key, event)
}

// completeLocked reaches the terminal state. The transition happens exactly
// once per session: the complete flag makes every later advance a no-op.
func (r *Runtime) completeLocked(ctx context.Context) {
	r.complete = true
	r.consentChecked = false
	r.consentErr = ""

	leadID := r.saver.LeadID()

	event := events.FunnelCompleted{
		BaseEvent:      events.NewBaseEvent(events.FunnelCompletedEvent, r.funnel.ID),
		SessionID:      r.sessionID,
		LeadID:         leadID,
		StepsCompleted: len(r.steps),
	}
	event.TeamID = r.funnel.TeamID

	r.emit(ctx, dedupe.EventKey(r.funnel.ID, "", "completed", leadID), event)

	tracking := r.funnel.Settings.Tracking

	r.tracker.Fire(ctx, analytics.EventCompleteRegistration, analytics.Payload{
		Currency:    tracking.Currency,
		Value:       tracking.ConversionValue,
		ContentName: r.funnel.Name,
		Email:       r.answers.CapturedEmail(),
	}, "CompleteRegistration:"+r.funnel.ID+":"+r.sessionID)
}

// leadDedupeKeyLocked prefers the captured identity so retries across sessions
// still collapse; without one it falls back to the funnel position.
func (r *Runtime) leadDedupeKeyLocked() string {
	if email := r.answers.CapturedEmail(); email != "" {
		return "Lead:" + email
	}

	if phone := r.answers.CapturedPhone(); phone != "" {
		return "Lead:" + phone
	}

	return fmt.Sprintf("Lead:%s:%d", r.funnel.ID, r.index)
}

func (r *Runtime) scheduleDedupeKeyLocked() string {
	if !r.booking.Empty() && r.booking.InviteeURI != "" {
		return "Schedule:" + r.booking.InviteeURI
	}

	if email := r.answers.CapturedEmail(); email != "" {
		return "Schedule:" + email
	}

	return fmt.Sprintf("Schedule:%s:%s", r.funnel.ID, r.sessionID)
}
