// Package httpapi exposes the verification gateway over HTTP. The wire
// shapes are the VerificationRequest/VerificationRecord JSON forms; the
// in-process interface stays authoritative.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veracitylabs/veracity/internal/metrics"
	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/worker"
)

type verifyRequest struct {
	Content string            `json:"content"`
	Context map[string]string `json:"context,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler builds the gateway router.
func NewHandler(verifier worker.Verifier, agg *metrics.Aggregator, registry *prometheus.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/v1/verify", func(w http.ResponseWriter, req *http.Request) {
		var body verifyRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: expected {\"content\":\"...\"}"})
			return
		}

		record, err := verifier.Verify(req.Context(), body.Content, body.Context)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, model.ErrEmptyContent) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	r.Get("/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, agg.Snapshot())
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
