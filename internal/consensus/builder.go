// Package consensus dispatches the verification question to a pool of
// independent raters and aggregates their opinions into a quorum-gated
// consensus decision.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/rater"
)

// Builder fans a claim out to N raters concurrently and fans their opinions
// back in. A rater that errors or times out is a non-response: it is absent
// from quorum counting, never a vote.
type Builder struct {
	raters       []rater.Rater
	quorum       int
	threshold    float64
	raterTimeout time.Duration
	poolTimeout  time.Duration
	retrySlow    bool
	logger       *slog.Logger
}

// NewBuilder creates a consensus builder over the given rater pool. The
// quorum may not exceed the pool size; setting it strictly below the pool
// leaves headroom for slow or failed raters, while quorum == pool requires
// every rater to respond.
func NewBuilder(raters []rater.Rater, cfg model.ConsensusConfig, logger *slog.Logger) (*Builder, error) {
	if len(raters) == 0 {
		return nil, fmt.Errorf("consensus: empty rater pool")
	}
	if cfg.Quorum <= 0 || cfg.Quorum > len(raters) {
		return nil, fmt.Errorf("consensus: quorum %d invalid for pool of %d", cfg.Quorum, len(raters))
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("consensus: threshold %v outside (0,1]", cfg.Threshold)
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Builder{
		raters:       raters,
		quorum:       cfg.Quorum,
		threshold:    cfg.Threshold,
		raterTimeout: cfg.RaterTimeout,
		poolTimeout:  cfg.PoolTimeout,
		retrySlow:    cfg.RetrySlowRaters,
		logger:       logger,
	}
	if b.raterTimeout <= 0 {
		b.raterTimeout = 10 * time.Second
	}
	if b.poolTimeout <= 0 {
		b.poolTimeout = 30 * time.Second
	}
	return b, nil
}

type raterReply struct {
	opinion model.RaterOpinion
	err     error
}

// Build queries all raters concurrently and aggregates the responses. It
// fails with ErrInsufficientQuorum when fewer than quorum raters respond
// before the pool-wide timeout; it never converts an inconclusive pool into
// a verdict. A below-threshold agreement ratio is reported on the result,
// not as an error — the orchestrator decides what an unachieved consensus
// means.
func (b *Builder) Build(ctx context.Context, content string, evidence []model.Evidence) (*model.ConsensusResult, error) {
	poolCtx, cancel := context.WithTimeout(ctx, b.poolTimeout)
	defer cancel()

	// Buffered so abandoned raters can finish without a reader. In-flight
	// queries for a cancelled request are dropped, not awaited.
	replies := make(chan raterReply, len(b.raters))

	for _, rt := range b.raters {
		go func(rt rater.Rater) {
			replies <- b.query(poolCtx, rt, content, evidence)
		}(rt)
	}

	var opinions []model.RaterOpinion
	pending := len(b.raters)

collect:
	for pending > 0 {
		select {
		case <-poolCtx.Done():
			break collect
		case reply := <-replies:
			pending--
			if reply.err != nil {
				b.logger.Debug("rater non-response", "error", reply.err)
				continue
			}
			opinions = append(opinions, reply.opinion)
		}
	}

	// A cancelled request propagates as a failure, not a quorum verdict.
	if err := ctx.Err(); err != nil && len(opinions) < b.quorum {
		return nil, err
	}

	if len(opinions) < b.quorum {
		return nil, fmt.Errorf("%w: %d of %d raters responded, quorum %d",
			model.ErrInsufficientQuorum, len(opinions), len(b.raters), b.quorum)
	}

	return b.aggregate(opinions), nil
}

// query runs one rater with its own timeout, retrying a slow rater once
// while the pool budget allows.
func (b *Builder) query(poolCtx context.Context, rt rater.Rater, content string, evidence []model.Evidence) raterReply {
	attempt := func() raterReply {
		raterCtx, cancel := context.WithTimeout(poolCtx, b.raterTimeout)
		defer cancel()

		start := time.Now()
		opinion, err := rt.Rate(raterCtx, content, evidence)
		if err != nil {
			return raterReply{err: fmt.Errorf("rater %s: %w", rt.ID(), err)}
		}
		opinion.RaterID = rt.ID()
		opinion.Latency = time.Since(start)
		return raterReply{opinion: opinion}
	}

	reply := attempt()
	if reply.err != nil && b.retrySlow &&
		errors.Is(reply.err, context.DeadlineExceeded) && poolCtx.Err() == nil {
		reply = attempt()
	}
	return reply
}

// aggregate computes the majority verdict and the confidence-weighted
// agreement ratio over the responding raters.
func (b *Builder) aggregate(opinions []model.RaterOpinion) *model.ConsensusResult {
	var acceptCount, rejectCount int
	var acceptConf, rejectConf, totalConf float64

	for _, op := range opinions {
		totalConf += op.Confidence
		switch op.Verdict {
		case model.VerdictAccept:
			acceptCount++
			acceptConf += op.Confidence
		default:
			rejectCount++
			rejectConf += op.Confidence
		}
	}

	// Majority by count; confidence breaks ties, and a dead tie resolves to
	// reject: an even split is no basis for acceptance.
	majority := model.VerdictReject
	if acceptCount > rejectCount ||
		(acceptCount == rejectCount && acceptConf > rejectConf) {
		majority = model.VerdictAccept
	}

	var ratio float64
	if totalConf > 0 {
		if majority == model.VerdictAccept {
			ratio = acceptConf / totalConf
		} else {
			ratio = rejectConf / totalConf
		}
	} else {
		// All-zero confidence degenerates to a plain head count.
		matching := rejectCount
		if majority == model.VerdictAccept {
			matching = acceptCount
		}
		ratio = float64(matching) / float64(len(opinions))
	}

	return &model.ConsensusResult{
		AgreementRatio: ratio,
		Verdict:        majority,
		Achieved:       ratio >= b.threshold,
		Responded:      len(opinions),
		Opinions:       opinions,
	}
}
