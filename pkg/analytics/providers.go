package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Provider names used as event-table keys.
const (
	ProviderMeta      = "meta"
	ProviderGoogleAds = "google_ads"
	ProviderTikTok    = "tiktok"
	ProviderLinkedIn  = "linkedin"
)

// httpSender is the shared server-side dispatch used by every provider: a JSON
// POST to the provider's conversion endpoint. Endpoint is overridable in tests.
type httpSender struct {
	client   *http.Client
	endpoint string
}

func newHTTPSender(endpoint string) httpSender {
	return httpSender{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
	}
}

func (s httpSender) post(ctx context.Context, body any, headers map[string]string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal provider payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider call failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	return nil
}

// MetaProvider sends events to the Meta Conversions API.
type MetaProvider struct {
	PixelID     string
	AccessToken string

	sender httpSender
}

// NewMetaProvider creates the Meta provider. An empty pixel id disables it.
func NewMetaProvider(pixelID, accessToken string) *MetaProvider {
	endpoint := fmt.Sprintf("https://graph.facebook.com/v19.0/%s/events", pixelID)

	return &MetaProvider{
		PixelID:     pixelID,
		AccessToken: accessToken,
		sender:      newHTTPSender(endpoint),
	}
}

func (p *MetaProvider) Name() string     { return ProviderMeta }
func (p *MetaProvider) Configured() bool { return p.PixelID != "" && p.AccessToken != "" }

func (p *MetaProvider) Send(ctx context.Context, event ProviderEvent) error {
	body := map[string]any{
		"data": []map[string]any{{
			"event_name": event.Name,
			"event_id":   event.CorrelationID,
			"event_time": time.Now().Unix(),
			"custom_data": map[string]any{
				"currency":         event.Payload.Currency,
				"value":            event.Payload.Value,
				"content_name":     event.Payload.ContentName,
				"content_category": event.Payload.ContentCategory,
			},
		}},
		"access_token": p.AccessToken,
	}

	return p.sender.post(ctx, body, nil)
}

// GoogleAdsProvider sends conversion events to Google Ads.
type GoogleAdsProvider struct {
	ConversionID    string
	ConversionLabel string

	sender httpSender
}

// NewGoogleAdsProvider creates the Google Ads provider.
func NewGoogleAdsProvider(conversionID, conversionLabel string) *GoogleAdsProvider {
	return &GoogleAdsProvider{
		ConversionID:    conversionID,
		ConversionLabel: conversionLabel,
		sender:          newHTTPSender("https://www.googleadservices.com/pagead/conversion/" + conversionID),
	}
}

func (p *GoogleAdsProvider) Name() string     { return ProviderGoogleAds }
func (p *GoogleAdsProvider) Configured() bool { return p.ConversionID != "" }

func (p *GoogleAdsProvider) Send(ctx context.Context, event ProviderEvent) error {
	body := map[string]any{
		"conversion_id":    p.ConversionID,
		"conversion_label": p.ConversionLabel,
		"event_name":       event.Name,
		"order_id":         event.CorrelationID,
		"currency_code":    event.Payload.Currency,
		"value":            event.Payload.Value,
	}

	return p.sender.post(ctx, body, nil)
}

// TikTokProvider sends events to the TikTok Events API.
type TikTokProvider struct {
	PixelID     string
	AccessToken string

	sender httpSender
}

// NewTikTokProvider creates the TikTok provider.
func NewTikTokProvider(pixelID, accessToken string) *TikTokProvider {
	return &TikTokProvider{
		PixelID:     pixelID,
		AccessToken: accessToken,
		sender:      newHTTPSender("https://business-api.tiktok.com/open_api/v1.3/event/track/"),
	}
}

func (p *TikTokProvider) Name() string     { return ProviderTikTok }
func (p *TikTokProvider) Configured() bool { return p.PixelID != "" && p.AccessToken != "" }

func (p *TikTokProvider) Send(ctx context.Context, event ProviderEvent) error {
	body := map[string]any{
		"event_source":    "web",
		"event_source_id": p.PixelID,
		"data": []map[string]any{{
			"event":    event.Name,
			"event_id": event.CorrelationID,
			"properties": map[string]any{
				"currency":     event.Payload.Currency,
				"value":        event.Payload.Value,
				"content_name": event.Payload.ContentName,
			},
		}},
	}

	return p.sender.post(ctx, body, map[string]string{"Access-Token": p.AccessToken})
}

// LinkedInProvider sends events to the LinkedIn Conversions API.
type LinkedInProvider struct {
	PartnerID   string
	AccessToken string

	sender httpSender
}

// NewLinkedInProvider creates the LinkedIn provider.
func NewLinkedInProvider(partnerID, accessToken string) *LinkedInProvider {
	return &LinkedInProvider{
		PartnerID:   partnerID,
		AccessToken: accessToken,
		sender:      newHTTPSender("https://api.linkedin.com/rest/conversionEvents"),
	}
}

func (p *LinkedInProvider) Name() string     { return ProviderLinkedIn }
func (p *LinkedInProvider) Configured() bool { return p.PartnerID != "" && p.AccessToken != "" }

func (p *LinkedInProvider) Send(ctx context.Context, event ProviderEvent) error {
	body := map[string]any{
		"conversion":           p.PartnerID,
		"eventId":              event.CorrelationID,
		"conversionHappenedAt": time.Now().UnixMilli(),
		"conversionValue": map[string]any{
			"currencyCode": event.Payload.Currency,
			"amount":       fmt.Sprintf("%.2f", event.Payload.Value),
		},
		"eventName": event.Name,
	}

	return p.sender.post(ctx, body, map[string]string{
		"Authorization":             "Bearer " + p.AccessToken,
		"LinkedIn-Version":          "202401",
		"X-Restli-Protocol-Version": "2.0.0",
	})
}
