package rater

import (
	"context"

	"github.com/veracitylabs/veracity/internal/detect"
	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/util"
)

// LexicalRater judges a claim by token overlap with its evidence. It is
// deterministic and needs no external service, which makes it the default
// pool member and the reference implementation for tests.
type LexicalRater struct {
	id               string
	supportThreshold float64
}

// NewLexicalRater creates a lexical rater. supportThreshold is the overlap
// a statement needs to count as supported.
func NewLexicalRater(id string, supportThreshold float64) *LexicalRater {
	if supportThreshold <= 0 {
		supportThreshold = 0.5
	}
	return &LexicalRater{id: id, supportThreshold: supportThreshold}
}

// ID implements Rater.
func (r *LexicalRater) ID() string { return r.id }

// Rate implements Rater. The verdict follows the majority of atomic
// statements; confidence scales with how far the supported share sits from
// the 50% decision boundary.
func (r *LexicalRater) Rate(ctx context.Context, content string, evidence []model.Evidence) (model.RaterOpinion, error) {
	if err := ctx.Err(); err != nil {
		return model.RaterOpinion{}, err
	}

	statements := detect.Decompose(content)
	if len(statements) == 0 {
		return model.RaterOpinion{RaterID: r.id, Verdict: model.VerdictReject, Confidence: 1}, nil
	}

	supported := 0
	for _, statement := range statements {
		for _, ev := range evidence {
			if util.Containment(statement, ev.Excerpt) >= r.supportThreshold &&
				util.SamePolarity(statement, ev.Excerpt) {
				supported++
				break
			}
		}
	}

	fraction := float64(supported) / float64(len(statements))
	opinion := model.RaterOpinion{RaterID: r.id}
	if fraction >= 0.5 {
		opinion.Verdict = model.VerdictAccept
		opinion.Confidence = (fraction - 0.5) * 2
	} else {
		opinion.Verdict = model.VerdictReject
		opinion.Confidence = (0.5 - fraction) * 2
	}
	return opinion, nil
}
