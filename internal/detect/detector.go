// Package detect implements the two-pass hallucination detector. Pass 1 is
// a cheap pre-consensus screen that short-circuits obviously unsupported or
// contradicted content before any rater budget is spent. Pass 2 decomposes
// content into atomic statements and checks each against evidence; it runs
// only after consensus so its O(k) lookups are paid solely by requests that
// already cleared the cheaper filters.
package detect

import (
	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/util"
)

// Detector checks content against retrieved evidence.
type Detector struct {
	relevanceThreshold   float64
	consistencyThreshold float64
	supportThreshold     float64
}

// NewDetector creates a detector with the configured thresholds.
func NewDetector(cfg model.DetectorConfig) *Detector {
	d := &Detector{
		relevanceThreshold:   cfg.RelevanceThreshold,
		consistencyThreshold: cfg.ConsistencyThreshold,
		supportThreshold:     cfg.SupportThreshold,
	}
	if d.relevanceThreshold <= 0 {
		d.relevanceThreshold = 0.35
	}
	if d.consistencyThreshold <= 0 {
		d.consistencyThreshold = 0.60
	}
	if d.supportThreshold <= 0 {
		d.supportThreshold = 0.50
	}
	return d
}

// PreScreenResult is the output of Pass 1.
type PreScreenResult struct {
	Relevance      float64 `json:"relevance"`
	Consistency    float64 `json:"consistency"`
	NeedsFiltering bool    `json:"needs_filtering"`
}

// PreScreen computes how relevant the evidence is to the content and how
// consistent the content is with it. Either score below its threshold sets
// NeedsFiltering and the orchestrator short-circuits to rejection.
func (d *Detector) PreScreen(content string, evidence []model.Evidence) PreScreenResult {
	res := PreScreenResult{}

	if len(evidence) == 0 {
		res.NeedsFiltering = true
		return res
	}

	// Relevance: the best evidence coverage of the claim vocabulary.
	for _, ev := range evidence {
		if m := util.Containment(content, ev.Excerpt); m > res.Relevance {
			res.Relevance = m
		}
	}

	// Consistency: share of topically related excerpts that agree with the
	// content's polarity. An excerpt that shares the claim's vocabulary but
	// negates it counts as a contradiction.
	compared, agreeing := 0, 0
	for _, ev := range evidence {
		if util.Containment(content, ev.Excerpt) < d.relevanceThreshold {
			continue
		}
		compared++
		if util.SamePolarity(content, ev.Excerpt) {
			agreeing++
		}
	}
	if compared > 0 {
		res.Consistency = float64(agreeing) / float64(compared)
	}

	res.NeedsFiltering = res.Relevance < d.relevanceThreshold ||
		res.Consistency < d.consistencyThreshold
	return res
}

// StatementCheck is the outcome of checking one atomic statement.
type StatementCheck struct {
	Text       string  `json:"text"`
	Supported  bool    `json:"supported"`
	BestMatch  float64 `json:"best_match"`
	BestSource string  `json:"best_source,omitempty"`
}

// PostCheckResult is the output of Pass 2.
type PostCheckResult struct {
	Statements         []StatementCheck `json:"statements"`
	HallucinationFound bool             `json:"hallucination_found"`
}

// SupportedFraction returns the share of statements with evidentiary
// support. An empty decomposition counts as fully unsupported.
func (r PostCheckResult) SupportedFraction() float64 {
	if len(r.Statements) == 0 {
		return 0
	}
	supported := 0
	for _, st := range r.Statements {
		if st.Supported {
			supported++
		}
	}
	return float64(supported) / float64(len(r.Statements))
}

// PostCheck decomposes content into atomic statements and checks each one
// independently. Any statement without support flags a hallucination.
func (d *Detector) PostCheck(content string, evidence []model.Evidence) PostCheckResult {
	res := PostCheckResult{}

	for _, statement := range Decompose(content) {
		check := StatementCheck{Text: statement}
		for _, ev := range evidence {
			match := util.Containment(statement, ev.Excerpt)
			if match > check.BestMatch {
				check.BestMatch = match
				check.BestSource = ev.SourceID
			}
			if match >= d.supportThreshold && util.SamePolarity(statement, ev.Excerpt) {
				check.Supported = true
			}
		}
		if !check.Supported {
			res.HallucinationFound = true
		}
		res.Statements = append(res.Statements, check)
	}

	return res
}
