package models

import "strings"

// StepType identifies one screen kind in a published funnel.
type StepType string

const (
	StepTypeWelcome      StepType = "welcome"
	StepTypeTextQuestion StepType = "text_question"
	StepTypeMultiChoice  StepType = "multi_choice"
	StepTypeEmailCapture StepType = "email_capture"
	StepTypePhoneCapture StepType = "phone_capture"
	StepTypeOptIn        StepType = "opt_in"
	StepTypeVideo        StepType = "video"
	StepTypeEmbed        StepType = "embed"
	StepTypeThankYou     StepType = "thank_you"
)

// Intent is the semantic classification of a step. It is the single source of
// truth for whether completing a step is a durable submit or an ephemeral draft.
type Intent string

const (
	IntentCollect  Intent = "collect"  // Visible progress only, no automation trigger
	IntentCapture  Intent = "capture"  // Identity capture, idempotent submit
	IntentSchedule Intent = "schedule" // Embedded scheduling widget
	IntentComplete Intent = "complete" // Terminal screen
)

// stepIntents is the static classification table. Step types missing from the
// table classify as collect.
var stepIntents = map[StepType]Intent{
	StepTypeWelcome:      IntentCollect,
	StepTypeTextQuestion: IntentCollect,
	StepTypeMultiChoice:  IntentCollect,
	StepTypeEmailCapture: IntentCapture,
	StepTypePhoneCapture: IntentCapture,
	StepTypeOptIn:        IntentCapture,
	StepTypeVideo:        IntentCollect,
	StepTypeEmbed:        IntentSchedule,
	StepTypeThankYou:     IntentComplete,
}

// Step is one screen in a published funnel. Content is a free-form configuration
// bag owned by the builder; the runtime reads only a few well-known keys and
// defaults safely when they are missing.
type Step struct {
	ID         string         `json:"id"         validate:"required"`
	OrderIndex int            `json:"order_index"`
	Type       StepType       `json:"step_type"  validate:"required"`
	Content    map[string]any `json:"content"`
}

// Intent classifies the step. Pure and total: unknown types are collect.
func (t StepType) Intent() Intent {
	if intent, ok := stepIntents[t]; ok {
		return intent
	}

	return IntentCollect
}

// Known reports whether the step type belongs to the closed vocabulary.
func (t StepType) Known() bool {
	_, ok := stepIntents[t]

	return ok
}

// Intent classifies the step by its type.
func (s *Step) Intent() Intent {
	return s.Type.Intent()
}

// IsRequired reports whether the builder marked the step as required.
func (s *Step) IsRequired() bool {
	required, _ := s.Content["is_required"].(bool)

	return required
}

// PolicyLink returns the step-level consent document URL, checking the field
// aliases the builder has used over time.
func (s *Step) PolicyLink() string {
	for _, key := range []string{"privacy_link", "terms_url", "terms_link"} {
		if link, ok := s.Content[key].(string); ok && strings.TrimSpace(link) != "" {
			return strings.TrimSpace(link)
		}
	}

	return ""
}

// ConsentMode returns the builder-configured consent mode, empty when unset.
func (s *Step) ConsentMode() string {
	mode, _ := s.Content["consent_mode"].(string)

	return mode
}

// EmbedURL returns the scheduling-widget URL for embed steps.
func (s *Step) EmbedURL() string {
	url, _ := s.Content["embed_url"].(string)

	return url
}

// MeaningfulAnswer reports whether a submitted value is worth persisting as a
// draft. Identity-capture steps are always meaningful, free text must be
// non-blank, and choice selections always count.
func (s *Step) MeaningfulAnswer(value any) bool {
	switch s.Intent() {
	case IntentCapture:
		return true
	case IntentSchedule:
		return value != nil
	case IntentCollect, IntentComplete:
	}

	switch v := value.(type) {
	case nil:
		return false
	case string:
		if s.Type == StepTypeMultiChoice {
			return true
		}

		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}
