// Package rater defines the independent raters queried by the consensus
// builder. Raters are pluggable strategies so deterministic fakes can stand
// in for model-backed raters in tests.
package rater

import (
	"context"

	"github.com/veracitylabs/veracity/internal/model"
)

// Rater answers the verification question for one claim against its
// evidence. Implementations must be safe for concurrent use: the pool
// queries all raters in parallel.
type Rater interface {
	// ID identifies the rater in opinions.
	ID() string

	// Rate returns the rater's verdict and confidence. The pool treats an
	// error or a timeout as a non-response, absent from quorum counting.
	Rate(ctx context.Context, content string, evidence []model.Evidence) (model.RaterOpinion, error)
}
