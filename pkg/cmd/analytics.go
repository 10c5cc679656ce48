package cmd

import (
	"github.com/leadrail/leadrail/pkg/analytics"
	"github.com/leadrail/leadrail/pkg/models"
)

// AnalyticsTokens holds the server-side API credentials for the ad platforms.
// Pixel and account ids come from each funnel's tracking settings; the tokens
// are deployment-wide.
type AnalyticsTokens struct {
	Meta     string
	TikTok   string
	LinkedIn string
}

// NewProviderFactory builds the per-funnel analytics provider list from the
// funnel's tracking settings. Platforms without an id configured on the funnel
// are skipped.
func NewProviderFactory(tokens AnalyticsTokens) func(models.TrackingSettings) []analytics.Provider {
	return func(tracking models.TrackingSettings) []analytics.Provider {
		var providers []analytics.Provider

		if tracking.MetaPixelID != "" {
			providers = append(providers, analytics.NewMetaProvider(tracking.MetaPixelID, tokens.Meta))
		}

		if tracking.GoogleAdsID != "" {
			providers = append(providers, analytics.NewGoogleAdsProvider(tracking.GoogleAdsID, tracking.GoogleAdsLabel))
		}

		if tracking.TikTokPixelID != "" {
			providers = append(providers, analytics.NewTikTokProvider(tracking.TikTokPixelID, tokens.TikTok))
		}

		if tracking.LinkedInPartnerID != "" {
			providers = append(providers, analytics.NewLinkedInProvider(tracking.LinkedInPartnerID, tokens.LinkedIn))
		}

		return providers
	}
}
