// Package lead serializes funnel answer mutations into idempotent upsert calls
// against the remote lead-record endpoint.
package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadrail/leadrail/pkg/models"
)

// Mode distinguishes automation-silent partial saves from idempotent submits.
type Mode string

const (
	ModeDraft  Mode = "draft"  // Fresh random request id per call
	ModeSubmit Mode = "submit" // Stable request id per (funnel, step index)
)

// UpsertRequest is the wire payload sent to the remote lead-upsert endpoint.
type UpsertRequest struct {
	FunnelID        string                 `json:"funnel_id"`
	TeamID          string                 `json:"team_id"`
	LeadID          string                 `json:"lead_id,omitempty"`
	Answers         models.AnswerSet       `json:"answers"`
	UTMSource       string                 `json:"utm_source,omitempty"`
	UTMMedium       string                 `json:"utm_medium,omitempty"`
	UTMCampaign     string                 `json:"utm_campaign,omitempty"`
	CalendlyBooking *models.BookingPayload `json:"calendly_booking,omitempty"`
	SubmitMode      Mode                   `json:"submitMode"`
	ClientRequestID string                 `json:"clientRequestId"`
	StepID          string                 `json:"step_id"`
	StepType        string                 `json:"step_type"`
	StepIntent      string                 `json:"step_intent"`
}

// Client is the remote lead-upsert endpoint contract. It returns the lead
// identifier adopted for all subsequent calls in the session.
type Client interface {
	UpsertLead(ctx context.Context, req UpsertRequest) (string, error)
}

// HTTPClient calls the lead-upsert endpoint over HTTP.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPClient creates a client for the given endpoint. An empty apiKey skips
// the Authorization header.
func NewHTTPClient(endpoint, apiKey string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("module", "lead_client"),
	}
}

// UpsertLead implements Client.
func (c *HTTPClient) UpsertLead(ctx context.Context, req UpsertRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal upsert request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build upsert request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("upsert call failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upsert response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("upsert endpoint returned status %d", resp.StatusCode)
	}

	leadID := extractLeadID(body)
	if leadID == "" {
		c.logger.WarnContext(ctx, "Upsert response carried no lead identifier",
			"funnel_id", req.FunnelID, "step_id", req.StepID)
	}

	return leadID, nil
}

// extractLeadID reads the lead identifier from the response. The canonical
// field is lead_id; the remaining aliases are a compatibility shim for older
// endpoint revisions and will be removed once those are retired.
func extractLeadID(body []byte) string {
	var resp struct {
		LeadID string `json:"lead_id"`
		Lead   struct {
			ID string `json:"id"`
		} `json:"lead"`
		LeadIDCamel string `json:"leadId"`
		ID          string `json:"id"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}

	for _, candidate := range []string{resp.LeadID, resp.Lead.ID, resp.LeadIDCamel, resp.ID} {
		if candidate != "" {
			return candidate
		}
	}

	return ""
}
