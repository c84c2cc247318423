package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationRequest is the immutable input to the pipeline. The ID is a
// caller-opaque correlation id generated at intake; the orchestrator owns the
// request for its lifetime.
type VerificationRequest struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`               // The claim text under verification
	Context     map[string]string `json:"context,omitempty"`     // Caller-supplied hints
	SubmittedAt time.Time         `json:"submitted_at"`
}

// NewRequest creates a request with a fresh correlation id.
func NewRequest(content string, context map[string]string) VerificationRequest {
	return VerificationRequest{
		ID:          uuid.NewString(),
		Content:     content,
		Context:     context,
		SubmittedAt: time.Now().UTC(),
	}
}

// Evidence is one supporting excerpt retrieved for a claim. A request holds
// an ordered list of Evidence; insertion order is retrieval order.
type Evidence struct {
	SourceID    string  `json:"source_id"`           // Which knowledge source produced it
	Reliability float64 `json:"reliability"`         // Source reliability in [0,1]
	Excerpt     string  `json:"excerpt"`             // The supporting text
	Relevance   float64 `json:"relevance,omitempty"` // Excerpt relevance to the claim in [0,1]
}
