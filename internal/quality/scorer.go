// Package quality computes the final composite confidence score. It is the
// sole accept/reject authority in the pipeline: no earlier stage makes a
// final acceptance decision.
package quality

import (
	"math"

	"github.com/veracitylabs/veracity/internal/crossval"
	"github.com/veracitylabs/veracity/internal/detect"
	"github.com/veracitylabs/veracity/internal/model"
)

// Input carries the stage outputs the sub-scores derive from.
type Input struct {
	SourceReliability float64
	PreScreen         detect.PreScreenResult
	Consensus         *model.ConsensusResult
	PostCheck         detect.PostCheckResult
	CrossValidation   *crossval.Result
}

// Result is the scoring breakdown.
type Result struct {
	Accuracy    float64 `json:"accuracy"`
	Precision   float64 `json:"precision"`
	Consistency float64 `json:"consistency"`
	Composite   float64 `json:"composite"`
	Confidence  float64 `json:"confidence"`
	MeetsTarget bool    `json:"meets_target"`
}

// Scorer is a pluggable scoring strategy.
type Scorer interface {
	Score(in Input) Result
}

// CompositeScorer combines accuracy, precision and consistency sub-scores
// into an unweighted mean and clamps confidence to the target accuracy.
type CompositeScorer struct {
	targetAccuracy float64
}

// NewCompositeScorer creates the default scorer for the given accept floor.
func NewCompositeScorer(targetAccuracy float64) *CompositeScorer {
	if targetAccuracy <= 0 || targetAccuracy > 1 {
		targetAccuracy = 0.9999
	}
	return &CompositeScorer{targetAccuracy: targetAccuracy}
}

// Score implements Scorer.
func (s *CompositeScorer) Score(in Input) Result {
	res := Result{
		Accuracy:    accuracy(in.Consensus),
		Precision:   precision(in),
		Consistency: consistency(in),
	}

	res.Composite = (res.Accuracy + res.Precision + res.Consistency) / 3
	res.Confidence = math.Min(res.Composite, s.targetAccuracy)
	res.MeetsTarget = res.Confidence >= s.targetAccuracy
	return res
}

// accuracy reads the consensus: how strongly the rater pool believes the
// content is true. A reject-leaning consensus inverts the ratio.
func accuracy(consensus *model.ConsensusResult) float64 {
	if consensus == nil {
		return 0
	}
	if consensus.Verdict == model.VerdictAccept {
		return consensus.AgreementRatio
	}
	return 1 - consensus.AgreementRatio
}

// precision weighs the provenance: how reliable the evidence is and how
// much of the content it actually covers statement by statement.
func precision(in Input) float64 {
	return in.SourceReliability * in.PostCheck.SupportedFraction()
}

// consistency combines the pre-screen agreement with the independent
// cross-validation path.
func consistency(in Input) float64 {
	cross := 0.0
	if in.CrossValidation != nil {
		cross = in.CrossValidation.PassedFraction()
	}
	return in.PreScreen.Consistency * cross
}
