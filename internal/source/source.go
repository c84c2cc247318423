package source

import (
	"context"

	"github.com/veracitylabs/veracity/internal/model"
)

// Source is a pluggable knowledge source. Implementations retrieve
// supporting excerpts for a claim; they never judge the claim. Deterministic
// fakes substitute for real sources in tests.
type Source interface {
	// ID identifies the source in Evidence records.
	ID() string

	// Retrieve returns supporting excerpts for the claim, best match first.
	// An empty result with nil error means the source responded but found
	// nothing; only transport-level failures return an error.
	Retrieve(ctx context.Context, claim string) ([]model.Evidence, error)
}
