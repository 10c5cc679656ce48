package lead

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadrail/leadrail/pkg/models"
)

func TestHTTPClientUpsertLead(t *testing.T) {
	var received UpsertRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lead_id": "lead-7"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", slog.Default())

	answers := models.AnswerSet{}
	answers.Merge(&models.Step{ID: "s1", Type: models.StepTypeEmailCapture}, "a@example.com")

	leadID, err := client.UpsertLead(context.Background(), UpsertRequest{
		FunnelID:        "funnel-1",
		TeamID:          "team-1",
		Answers:         answers,
		SubmitMode:      ModeSubmit,
		ClientRequestID: "req-1",
		StepID:          "s1",
		StepType:        string(models.StepTypeEmailCapture),
		StepIntent:      string(models.IntentCapture),
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if leadID != "lead-7" {
		t.Errorf("expected lead-7, got %q", leadID)
	}

	if received.FunnelID != "funnel-1" || received.SubmitMode != ModeSubmit {
		t.Errorf("unexpected request: %+v", received)
	}

	if received.ClientRequestID != "req-1" {
		t.Errorf("expected client request id to be forwarded, got %q", received.ClientRequestID)
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", slog.Default())

	_, err := client.UpsertLead(context.Background(), UpsertRequest{FunnelID: "funnel-1"})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestExtractLeadIDAliases(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		expected string
	}{
		{"canonical", `{"lead_id": "a"}`, "a"},
		{"nested", `{"lead": {"id": "b"}}`, "b"},
		{"camel", `{"leadId": "c"}`, "c"},
		{"bare id", `{"id": "d"}`, "d"},
		{"canonical wins", `{"lead_id": "a", "id": "d"}`, "a"},
		{"nested beats camel", `{"lead": {"id": "b"}, "leadId": "c"}`, "b"},
		{"none", `{"ok": true}`, ""},
		{"malformed", `nope`, ""},
	}

	for _, c := range cases {
		if got := extractLeadID([]byte(c.body)); got != c.expected {
			t.Errorf("%s: extractLeadID = %q, expected %q", c.name, got, c.expected)
		}
	}
}
