// Package crossval re-checks a consensus verdict against an independent
// evidence path. It guards against the failure mode where the raters and the
// first retrieval pass share a common blind spot.
package crossval

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/source"
	"github.com/veracitylabs/veracity/internal/util"
)

// Check is one named cross-check. Any single failed check is sufficient to
// fail the whole validation.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the cross validator's output.
type Result struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
}

// PassedFraction returns the share of checks that passed.
func (r Result) PassedFraction() float64 {
	if len(r.Checks) == 0 {
		return 0
	}
	passed := 0
	for _, c := range r.Checks {
		if c.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Checks))
}

// Validator re-derives evidence over sources independent of the primary
// retrieval path and checks agreement with the original evidence set.
type Validator struct {
	sources          []source.Source
	timeout          time.Duration
	supportThreshold float64
	reliabilityDelta float64
}

// NewValidator creates a cross validator over an independent source set.
func NewValidator(independent []source.Source, timeout time.Duration, supportThreshold float64) *Validator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if supportThreshold <= 0 {
		supportThreshold = 0.5
	}
	return &Validator{
		sources:          independent,
		timeout:          timeout,
		supportThreshold: supportThreshold,
		reliabilityDelta: 0.35,
	}
}

// Validate re-derives evidence for the consensus verdict and compares it to
// the original evidence. Retrieval failure of the whole independent path is
// a pipeline failure; a disagreeing but reachable path is a failed check.
func (v *Validator) Validate(ctx context.Context, verdict model.Verdict, content string, original []model.Evidence) (*Result, error) {
	if len(v.sources) == 0 {
		return nil, fmt.Errorf("cross validation: no independent sources configured")
	}

	crossCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var mu sync.Mutex
	var cross []model.Evidence
	responded := 0

	g, gctx := errgroup.WithContext(crossCtx)
	for _, src := range v.sources {
		g.Go(func() error {
			evidence, err := src.Retrieve(gctx, content)
			if err != nil {
				return nil // Tolerated unless every source fails
			}
			mu.Lock()
			responded++
			cross = append(cross, evidence...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if responded == 0 {
		return nil, fmt.Errorf("cross validation: %w", model.ErrSourceUnavailable)
	}

	checks := []Check{
		v.checkIndependentEvidence(cross),
		v.checkVerdictSupport(verdict, content, cross),
		v.checkReliabilityAgreement(original, cross),
	}

	result := &Result{Passed: true, Checks: checks}
	for _, c := range checks {
		if !c.Passed {
			result.Passed = false
		}
	}
	return result, nil
}

// checkIndependentEvidence requires the independent path to surface any
// evidence at all for an accepted-leaning verdict to be trustworthy.
func (v *Validator) checkIndependentEvidence(cross []model.Evidence) Check {
	c := Check{Name: "independent_evidence", Passed: len(cross) > 0}
	if !c.Passed {
		c.Detail = "independent path produced no excerpts"
	}
	return c
}

// checkVerdictSupport requires the independent evidence to point the same
// way as the consensus verdict.
func (v *Validator) checkVerdictSupport(verdict model.Verdict, content string, cross []model.Evidence) Check {
	supporting := 0
	for _, ev := range cross {
		if util.Containment(content, ev.Excerpt) >= v.supportThreshold &&
			util.SamePolarity(content, ev.Excerpt) {
			supporting++
		}
	}

	var fraction float64
	if len(cross) > 0 {
		fraction = float64(supporting) / float64(len(cross))
	}

	supportsAccept := fraction >= 0.5
	passed := (verdict == model.VerdictAccept) == supportsAccept
	return Check{
		Name:   "verdict_support",
		Passed: passed,
		Detail: fmt.Sprintf("%.0f%% of independent excerpts support the content", fraction*100),
	}
}

// checkReliabilityAgreement compares aggregate reliability across the two
// retrieval paths; a large gap suggests one path drew on much weaker
// provenance.
func (v *Validator) checkReliabilityAgreement(original, cross []model.Evidence) Check {
	origRel := meanReliability(original)
	crossRel := meanReliability(cross)
	gap := math.Abs(origRel - crossRel)
	return Check{
		Name:   "reliability_agreement",
		Passed: gap <= v.reliabilityDelta,
		Detail: fmt.Sprintf("reliability gap %.2f (original %.2f, independent %.2f)", gap, origRel, crossRel),
	}
}

func meanReliability(evidence []model.Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	var sum float64
	for _, ev := range evidence {
		sum += ev.Reliability
	}
	return sum / float64(len(evidence))
}
