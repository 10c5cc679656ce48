package web

import (
	"encoding/json"

	"github.com/leadrail/leadrail/pkg/lead"
	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/runtime"
)

// CreateFunnelRequest is the payload for creating a funnel.
type CreateFunnelRequest struct {
	TeamID   string                `json:"team_id"  validate:"required"`
	Name     string                `json:"name"     validate:"required,min=3"`
	Slug     string                `json:"slug"     validate:"required,lowercase"`
	Steps    []*models.Step        `json:"steps"`
	Settings models.FunnelSettings `json:"settings"`
	Metadata map[string]any        `json:"metadata,omitempty"`
}

// UpdateFunnelRequest is the payload for partially updating a funnel.
type UpdateFunnelRequest struct {
	Name     *string                `json:"name,omitempty"     validate:"omitempty,min=3"`
	Slug     *string                `json:"slug,omitempty"     validate:"omitempty,lowercase"`
	Steps    []*models.Step         `json:"steps,omitempty"`
	Settings *models.FunnelSettings `json:"settings,omitempty"`
	Metadata map[string]any         `json:"metadata,omitempty"`
}

// StartSessionRequest carries the attribution captured when a visitor lands.
type StartSessionRequest struct {
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
}

// UTM converts the request to the persistence attribution shape.
func (r StartSessionRequest) UTM() lead.UTM {
	return lead.UTM{
		Source:   r.UTMSource,
		Medium:   r.UTMMedium,
		Campaign: r.UTMCampaign,
	}
}

// StartSessionResponse returns the new session and its first step.
type StartSessionResponse struct {
	SessionID  string                `json:"session_id"`
	FunnelID   string                `json:"funnel_id"`
	FunnelName string                `json:"funnel_name"`
	Settings   models.FunnelSettings `json:"settings"`
	StepIndex  int                   `json:"step_index"`
	Step       *models.Step          `json:"step,omitempty"`
	StepCount  int                   `json:"step_count"`
}

// AdvanceRequest is one step submission. ConsentAccepted mirrors the consent
// checkbox and is applied before the advance runs.
type AdvanceRequest struct {
	Value           any   `json:"value"`
	ConsentAccepted *bool `json:"consent_accepted,omitempty"`
}

// AdvanceResponse reports the advance outcome and the step now active.
type AdvanceResponse struct {
	runtime.AdvanceResult

	Step         *models.Step `json:"step,omitempty"`
	ConsentError string       `json:"consent_error,omitempty"`
}

// SchedulingWebhookRequest relays one cross-origin widget message captured by
// the funnel page.
type SchedulingWebhookRequest struct {
	SessionID string          `json:"session_id" validate:"required"`
	Origin    string          `json:"origin"     validate:"required"`
	Message   json.RawMessage `json:"message"    validate:"required"`
}
