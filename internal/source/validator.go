package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/util"
)

// Result is the Source Validator's output: the ordered evidence list and the
// aggregate reliability of its provenance.
type Result struct {
	Evidence    []model.Evidence
	Reliability float64
	Responded   int // Sources that answered within their timeout
}

// Validator gathers and scores supporting evidence for a claim. It only
// gathers; the decision to reject low-reliability content is made
// downstream.
type Validator struct {
	sources         []Source
	timeout         time.Duration
	minRelevance    float64
	maxEvidence     int
	dedupeThreshold float64
	logger          *slog.Logger
}

// NewValidator creates a validator over the given knowledge sources.
// timeout bounds each source's retrieval independently.
func NewValidator(sources []Source, timeout time.Duration, cfg *model.SourcesConfig, logger *slog.Logger) *Validator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := &Validator{
		sources:         sources,
		timeout:         timeout,
		minRelevance:    0.2,
		maxEvidence:     20,
		dedupeThreshold: 0.9,
		logger:          logger,
	}
	if cfg != nil {
		if cfg.MinRelevance > 0 {
			v.minRelevance = cfg.MinRelevance
		}
		if cfg.MaxExcerpts > 0 {
			v.maxEvidence = cfg.MaxExcerpts
		}
		if cfg.DedupeThreshold > 0 {
			v.dedupeThreshold = cfg.DedupeThreshold
		}
	}
	return v
}

// Validate retrieves evidence for the claim from every source concurrently.
// A source that errors or exceeds its timeout is a non-response; when no
// source responds the call fails with ErrSourceUnavailable. Zero evidence
// from responding sources is not an error: reliability comes back low and
// judgment happens downstream.
func (v *Validator) Validate(ctx context.Context, content string, _ map[string]string) (*Result, error) {
	if len(v.sources) == 0 {
		return nil, model.ErrSourceUnavailable
	}

	type retrieval struct {
		idx      int
		evidence []model.Evidence
		err      error
	}

	results := make([]retrieval, len(v.sources))
	var wg sync.WaitGroup

	for i, src := range v.sources {
		wg.Add(1)
		go func(idx int, src Source) {
			defer wg.Done()

			srcCtx, cancel := context.WithTimeout(ctx, v.timeout)
			defer cancel()

			evidence, err := src.Retrieve(srcCtx, content)
			results[idx] = retrieval{idx: idx, evidence: evidence, err: err}
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Insertion order = retrieval order: source order, then each source's
	// own best-first ordering.
	var evidence []model.Evidence
	responded := 0
	for i, res := range results {
		if res.err != nil {
			v.logger.Warn("knowledge source did not respond",
				"source", v.sources[i].ID(), "error", res.err)
			continue
		}
		responded++
		evidence = append(evidence, res.evidence...)
	}

	if responded == 0 {
		return nil, model.ErrSourceUnavailable
	}

	evidence = v.score(content, evidence)
	evidence = v.dedupe(evidence)
	if len(evidence) > v.maxEvidence {
		evidence = evidence[:v.maxEvidence]
	}

	return &Result{
		Evidence:    evidence,
		Reliability: aggregateReliability(evidence),
		Responded:   responded,
	}, nil
}

// score fills in excerpt relevance and drops excerpts below the floor.
func (v *Validator) score(content string, evidence []model.Evidence) []model.Evidence {
	kept := evidence[:0]
	for _, ev := range evidence {
		if ev.Relevance == 0 {
			ev.Relevance = util.Containment(content, ev.Excerpt)
		}
		if ev.Relevance < v.minRelevance {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

// dedupe removes near-identical excerpts, keeping the first occurrence so
// retrieval order is preserved.
func (v *Validator) dedupe(evidence []model.Evidence) []model.Evidence {
	var unique []model.Evidence
	for _, ev := range evidence {
		duplicate := false
		for _, kept := range unique {
			if util.Jaccard(ev.Excerpt, kept.Excerpt) >= v.dedupeThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, ev)
		}
	}
	return unique
}

// aggregateReliability is the weighted mean of source reliabilities, with
// excerpt relevance as the weight.
func aggregateReliability(evidence []model.Evidence) float64 {
	var weighted, weights float64
	for _, ev := range evidence {
		weighted += ev.Reliability * ev.Relevance
		weights += ev.Relevance
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}
