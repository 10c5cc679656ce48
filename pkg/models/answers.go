package models

import "time"

// LegalAnswerKey is the reserved AnswerSet key holding consent metadata.
const LegalAnswerKey = "legal"

// Answer is one accumulated response, keyed by step id in an AnswerSet.
type Answer struct {
	Value    any            `json:"value"`
	StepType StepType       `json:"step_type"`
	Content  map[string]any `json:"content,omitempty"`
}

// ConsentRecord is stored under LegalAnswerKey once the visitor affirms consent.
type ConsentRecord struct {
	Accepted         bool      `json:"accepted"`
	AcceptedAt       time.Time `json:"accepted_at"`
	PrivacyPolicyURL string    `json:"privacy_policy_url"`
	ConsentMode      string    `json:"consent_mode,omitempty"`
}

// AnswerSet accumulates a visitor's answers monotonically across the session.
// It is owned exclusively by the step sequencer.
type AnswerSet map[string]Answer

// Merge records a value for a step, replacing any earlier answer for the same
// step. A nil value is a no-op.
func (a AnswerSet) Merge(step *Step, value any) {
	if value == nil {
		return
	}

	a[step.ID] = Answer{
		Value:    value,
		StepType: step.Type,
		Content:  step.Content,
	}
}

// SetConsent stores the consent record under the reserved legal key.
func (a AnswerSet) SetConsent(record ConsentRecord) {
	a[LegalAnswerKey] = Answer{Value: record}
}

// Clone returns a shallow copy safe to hand to the persistence layer while the
// sequencer keeps mutating the original.
func (a AnswerSet) Clone() AnswerSet {
	clone := make(AnswerSet, len(a))
	for k, v := range a {
		clone[k] = v
	}

	return clone
}

// CapturedEmail returns the first email-capture answer, used to derive stable
// analytics dedupe keys.
func (a AnswerSet) CapturedEmail() string {
	return a.capturedValue(StepTypeEmailCapture)
}

// CapturedPhone returns the first phone-capture answer.
func (a AnswerSet) CapturedPhone() string {
	return a.capturedValue(StepTypePhoneCapture)
}

func (a AnswerSet) capturedValue(stepType StepType) string {
	for _, answer := range a {
		if answer.StepType != stepType {
			continue
		}

		if value, ok := answer.Value.(string); ok {
			return value
		}
	}

	return ""
}
