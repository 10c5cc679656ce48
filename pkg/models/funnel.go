// Package models defines the core domain models for published-funnel execution.
package models

import (
	"sort"
	"time"
)

// FunnelStatus represents the lifecycle state of a funnel.
type FunnelStatus string

const (
	FunnelStatusDraft     FunnelStatus = "draft"     // Editable in the builder, not servable
	FunnelStatusPublished FunnelStatus = "published" // Live, servable to visitors
	FunnelStatusArchived  FunnelStatus = "archived"  // Historical, not servable
)

// Funnel represents a published multi-step lead-capture flow. The runtime treats
// a funnel as immutable: it is loaded once per session and never mutated.
type Funnel struct {
	ID          string         `json:"id"`
	TeamID      string         `json:"team_id"            validate:"required"`
	Name        string         `json:"name"               validate:"required,min=3"`
	Slug        string         `json:"slug"               validate:"required,lowercase"`
	Status      FunnelStatus   `json:"status"             validate:"required"`
	Steps       []*Step        `json:"steps"`
	Settings    FunnelSettings `json:"settings"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// FunnelSettings holds per-funnel display and tracking configuration.
type FunnelSettings struct {
	Tracking         TrackingSettings `json:"tracking"`
	ShowProgressBar  bool             `json:"show_progress_bar"`
	PrivacyPolicyURL string           `json:"privacy_policy_url,omitempty"` // Funnel-level consent fallback
}

// TrackingSettings carries the identifiers for the outbound analytics providers.
// Any empty identifier disables that provider only.
type TrackingSettings struct {
	MetaPixelID       string  `json:"meta_pixel_id,omitempty"`
	GoogleAdsID       string  `json:"google_ads_id,omitempty"`
	GoogleAdsLabel    string  `json:"google_ads_label,omitempty"`
	TikTokPixelID     string  `json:"tiktok_pixel_id,omitempty"`
	LinkedInPartnerID string  `json:"linkedin_partner_id,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	ConversionValue   float64 `json:"conversion_value,omitempty"`
}

// Team is the owning tenant. The runtime only reads the team-level consent fallback.
type Team struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	PrivacyPolicyURL string `json:"privacy_policy_url,omitempty"`
}

// VisibleSteps returns the funnel's steps ordered by index, excluding steps whose
// type is not part of the known vocabulary. Unknown step types render nothing and
// never fail the funnel.
func (f *Funnel) VisibleSteps() []*Step {
	visible := make([]*Step, 0, len(f.Steps))

	for _, step := range f.Steps {
		if step.Type.Known() {
			visible = append(visible, step)
		}
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].OrderIndex < visible[j].OrderIndex
	})

	return visible
}
