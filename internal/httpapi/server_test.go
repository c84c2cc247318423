package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veracitylabs/veracity/internal/metrics"
	"github.com/veracitylabs/veracity/internal/model"
)

type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, content string, reqCtx map[string]string) (*model.VerificationRecord, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, model.ErrEmptyContent
	}
	return &model.VerificationRecord{
		RequestID:  "req-test",
		Content:    content,
		Outcome:    model.OutcomeAccepted,
		Confidence: 0.9999,
	}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *metrics.Aggregator) {
	t.Helper()
	agg := metrics.NewAggregator(10)
	t.Cleanup(agg.Stop)

	registry := prometheus.NewRegistry()
	if err := metrics.RegisterCollectors(registry, agg); err != nil {
		t.Fatalf("RegisterCollectors failed: %v", err)
	}

	handler := NewHandler(&fakeVerifier{}, agg, registry, slog.New(slog.DiscardHandler))
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, agg
}

func TestVerifyEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/v1/verify", "application/json",
		strings.NewReader(`{"content":"The Eiffel Tower stands in Paris."}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var record model.VerificationRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if record.Outcome != model.OutcomeAccepted {
		t.Errorf("Expected accepted outcome, got %s", record.Outcome)
	}
	if record.Confidence != 0.9999 {
		t.Errorf("Expected confidence 0.9999, got %v", record.Confidence)
	}
}

func TestVerifyEndpoint_EmptyContent(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/v1/verify", "application/json",
		strings.NewReader(`{"content":""}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty content, got %d", resp.StatusCode)
	}
}

func TestVerifyEndpoint_MalformedBody(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/v1/verify", "application/json",
		strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server, agg := newTestServer(t)

	agg.Observe(model.VerificationRecord{Outcome: model.OutcomeAccepted})
	agg.Observe(model.VerificationRecord{Outcome: model.OutcomeRejected, HallucinationDetected: true})
	agg.Stop() // flush the writer before asserting

	resp, err := http.Get(server.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var snap metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.TotalVerifications != 2 {
		t.Errorf("Expected 2 verifications, got %d", snap.TotalVerifications)
	}
	if snap.SuccessRate != 0.5 {
		t.Errorf("Expected success rate 0.5, got %v", snap.SuccessRate)
	}
	if snap.HallucinationRate != 0.5 {
		t.Errorf("Expected hallucination rate 0.5, got %v", snap.HallucinationRate)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
