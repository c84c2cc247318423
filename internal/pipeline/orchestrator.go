// Package pipeline drives a verification request through source validation,
// two-pass hallucination detection, consensus, cross-validation, quality
// scoring and — on failure — rollback. The orchestrator owns the per-request
// state machine and is the only component exposed to external collaborators.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/veracitylabs/veracity/internal/cache"
	"github.com/veracitylabs/veracity/internal/consensus"
	"github.com/veracitylabs/veracity/internal/crossval"
	"github.com/veracitylabs/veracity/internal/detect"
	"github.com/veracitylabs/veracity/internal/metrics"
	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/quality"
	"github.com/veracitylabs/veracity/internal/rater"
	"github.com/veracitylabs/veracity/internal/rollback"
	"github.com/veracitylabs/veracity/internal/source"
)

// StagingHook provisionally applies accepted-track content to a downstream
// system before quality scoring commits it. The returned undo reverts the
// provisional write and is registered with the rollback controller.
type StagingHook func(req model.VerificationRequest, consensus *model.ConsensusResult) (undo func() error, err error)

// Options wires the orchestrator's collaborators. Sources and Raters are
// required; everything else has a sensible default.
type Options struct {
	Sources      []source.Source
	CrossSources []source.Source // Independent retrieval path; defaults to Sources
	Raters       []rater.Rater
	Scorer       quality.Scorer
	Staging      StagingHook
	Metrics      *metrics.Aggregator
	Logger       *slog.Logger
}

// Orchestrator runs the verification pipeline. Requests are independent and
// execute in parallel up to the configured in-flight limit; within a request
// only the rater pool fans out.
type Orchestrator struct {
	cfg *model.Config

	validator *source.Validator
	detector  *detect.Detector
	consensus *consensus.Builder
	crossval  *crossval.Validator
	scorer    quality.Scorer
	rollback  *rollback.Controller
	incidents *IncidentLog
	metrics   *metrics.Aggregator
	repeats   *gocache.Cache
	staging   StagingHook

	sem    chan struct{}
	logger *slog.Logger
}

// New builds an orchestrator from configuration and collaborators.
func New(cfg *model.Config, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("pipeline: at least one knowledge source is required")
	}
	if len(opts.Raters) == 0 {
		return nil, fmt.Errorf("pipeline: at least one rater is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Scorer == nil {
		opts.Scorer = quality.NewCompositeScorer(cfg.Verification.TargetAccuracy)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewAggregator(cfg.Metrics.WindowSize)
	}
	crossSources := opts.CrossSources
	if len(crossSources) == 0 {
		crossSources = opts.Sources
	}

	builder, err := consensus.NewBuilder(opts.Raters, cfg.Consensus, opts.Logger)
	if err != nil {
		return nil, err
	}

	maxInFlight := cfg.Concurrency.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 16
	}
	repeatTTL := cfg.Verification.RepeatedRejectTTL
	if repeatTTL <= 0 {
		repeatTTL = 10 * time.Minute
	}

	return &Orchestrator{
		cfg:       cfg,
		validator: source.NewValidator(opts.Sources, cfg.Verification.SourceTimeout, &cfg.Sources, opts.Logger),
		detector:  detect.NewDetector(cfg.Detector),
		consensus: builder,
		crossval:  crossval.NewValidator(crossSources, cfg.Verification.CrossCheckTimeout, cfg.Detector.SupportThreshold),
		scorer:    opts.Scorer,
		rollback:  rollback.NewController(opts.Logger),
		incidents: NewIncidentLog(opts.Logger),
		metrics:   opts.Metrics,
		repeats:   gocache.New(repeatTTL, repeatTTL),
		staging:   opts.Staging,
		sem:       make(chan struct{}, maxInFlight),
		logger:    opts.Logger,
	}, nil
}

// Incidents exposes the append-only incident log.
func (o *Orchestrator) Incidents() *IncidentLog { return o.incidents }

// Metrics exposes the quality metrics aggregator.
func (o *Orchestrator) Metrics() *metrics.Aggregator { return o.metrics }

// Rollback exposes the rollback controller so collaborators can register
// request-scoped side effects.
func (o *Orchestrator) Rollback() *rollback.Controller { return o.rollback }

// Verify drives one request through the pipeline. Every submitted request
// yields exactly one VerificationRecord; the error return is reserved for
// intake failures (empty content, cancelled before admission), which produce
// no record.
func (o *Orchestrator) Verify(ctx context.Context, content string, reqCtx map[string]string) (*model.VerificationRecord, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, model.ErrEmptyContent
	}

	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	st := newRequestState(model.NewRequest(content, reqCtx))
	o.logger.Info("verification started", "request_id", st.req.ID)

	record := o.run(ctx, st)
	o.metrics.Observe(*record)
	o.logger.Info("verification terminated",
		"request_id", record.RequestID,
		"outcome", string(record.Outcome),
		"confidence", record.Confidence)
	return record, nil
}

// run executes the stages in strict pipeline order and translates every
// failure into a terminal record.
func (o *Orchestrator) run(ctx context.Context, st *requestState) *model.VerificationRecord {
	// Source validation.
	if err := st.advance(model.StageSourceCheck); err != nil {
		return o.failPipeline(st, err)
	}
	src, err := o.validator.Validate(ctx, st.req.Content, st.req.Context)
	if err != nil {
		return o.failPipeline(st, err)
	}
	st.setSource(src)

	// Pass 1: cheap pre-screen before any rater budget is spent.
	if err := st.advance(model.StagePreCheck); err != nil {
		return o.failPipeline(st, err)
	}
	st.pre = o.detector.PreScreen(st.req.Content, st.evidence)
	if st.pre.NeedsFiltering {
		detail := fmt.Sprintf("pre-screen filtered content: relevance %.2f, consistency %.2f",
			st.pre.Relevance, st.pre.Consistency)
		return o.rejectHallucination(st, detail)
	}

	// Consensus over the rater pool.
	if err := st.advance(model.StageConsensus); err != nil {
		return o.failPipeline(st, err)
	}
	cres, err := o.consensus.Build(ctx, st.req.Content, st.evidence)
	if err != nil {
		return o.failPipeline(st, err)
	}
	st.consensus = cres
	if !cres.Achieved {
		return o.failPipeline(st, fmt.Errorf("%w: agreement ratio %.3f below threshold %.3f over %d responses",
			model.ErrConsensusNotReached, cres.AgreementRatio, o.cfg.Consensus.Threshold, cres.Responded))
	}

	// Provisional downstream write, reverted on any later failure.
	if o.staging != nil {
		undo, err := o.staging(st.req, cres)
		if err != nil {
			return o.failPipeline(st, fmt.Errorf("staging: %w", err))
		}
		if err := o.rollback.Register(st.req.ID, "staging", undo); err != nil {
			return o.failPipeline(st, err)
		}
	}

	// Pass 2: atomic statement checks, paid only by requests that cleared
	// the cheaper filters and the consensus stage.
	if err := st.advance(model.StagePostCheck); err != nil {
		return o.failPipeline(st, err)
	}
	st.post = o.detector.PostCheck(st.req.Content, st.evidence)
	if st.post.HallucinationFound {
		unsupported := 0
		for _, check := range st.post.Statements {
			if !check.Supported {
				unsupported++
			}
		}
		detail := fmt.Sprintf("post-check found %d of %d statements without support",
			unsupported, len(st.post.Statements))
		return o.rejectHallucination(st, detail)
	}

	// Cross-validate the consensus verdict over the independent path.
	if err := st.advance(model.StageCrossCheck); err != nil {
		return o.failPipeline(st, err)
	}
	cross, err := o.crossval.Validate(ctx, cres.Verdict, st.req.Content, st.evidence)
	if err != nil {
		return o.failPipeline(st, err)
	}
	st.cross = cross

	// Quality scoring: the sole accept/reject authority.
	if err := st.advance(model.StageQualityScore); err != nil {
		return o.failPipeline(st, err)
	}
	st.score = o.scorer.Score(quality.Input{
		SourceReliability: st.reliability,
		PreScreen:         st.pre,
		Consensus:         st.consensus,
		PostCheck:         st.post,
		CrossValidation:   st.cross,
	})

	if !st.score.MeetsTarget {
		o.trackRepeatedRejection(st)
		detail := fmt.Sprintf("%v: confidence %.4f below target %.4f",
			model.ErrQualityBelowTarget, st.score.Confidence, o.cfg.Verification.TargetAccuracy)
		return o.reject(st, detail)
	}

	if err := st.advance(model.StageAccepted); err != nil {
		return o.failPipeline(st, err)
	}
	o.rollback.Discard(st.req.ID)
	return o.finalize(st, model.OutcomeAccepted, st.score.Confidence, "")
}

// rejectHallucination records the incident the taxonomy requires and then
// rejects.
func (o *Orchestrator) rejectHallucination(st *requestState, detail string) *model.VerificationRecord {
	st.hallucination = true
	o.incidents.Record(st.req.ID, st.stage, detail, false)
	return o.reject(st, detail)
}

// reject terminates the request as a judgment rejection. When side effects
// were applied, they are reverted and the outcome becomes rolledBack.
func (o *Orchestrator) reject(st *requestState, detail string) *model.VerificationRecord {
	if err := st.advance(model.StageRejected); err != nil {
		return o.failPipeline(st, err)
	}

	if !o.rollback.HasEffects(st.req.ID) {
		return o.finalize(st, model.OutcomeRejected, st.score.Confidence, detail)
	}

	rb := o.rollback.Rollback(st.req.ID, detail)
	if rb.Err != nil {
		o.incidents.Record(st.req.ID, st.stage,
			fmt.Sprintf("%v: %v", model.ErrRollbackFailure, rb.Err), true)
		return o.finalize(st, model.OutcomeErrored, 0, detail)
	}
	_ = st.advance(model.StageRolledBack)
	return o.finalize(st, model.OutcomeRolledBack, st.score.Confidence, detail)
}

// failPipeline handles unexpected stage failures: incident, transition to
// errored, rollback, terminate. An inconclusive result is never interpreted
// as accept or reject.
func (o *Orchestrator) failPipeline(st *requestState, cause error) *model.VerificationRecord {
	stageErr := model.NewStageError(st.stage, cause)
	o.incidents.Record(st.req.ID, st.stage, stageErr.Error(), false)

	st.stage = model.StageErrored

	rb := o.rollback.Rollback(st.req.ID, stageErr.Error())
	if rb.Err != nil {
		o.incidents.Record(st.req.ID, model.StageErrored,
			fmt.Sprintf("%v: %v", model.ErrRollbackFailure, rb.Err), true)
		return o.finalize(st, model.OutcomeErrored, 0, stageErr.Error())
	}

	_ = st.advance(model.StageRolledBack)
	return o.finalize(st, model.OutcomeRolledBack, 0, stageErr.Error())
}

// finalize builds the immutable terminal record.
func (o *Orchestrator) finalize(st *requestState, outcome model.Outcome, confidence float64, detail string) *model.VerificationRecord {
	return &model.VerificationRecord{
		RequestID:             st.req.ID,
		Content:               st.req.Content,
		Outcome:               outcome,
		Stage:                 st.stage,
		Detail:                detail,
		Confidence:            confidence,
		HallucinationDetected: st.hallucination,
		Evidence:              st.evidence,
		Consensus:             st.consensus,
		SubmittedAt:           st.req.SubmittedAt,
		CompletedAt:           time.Now().UTC(),
	}
}

// trackRepeatedRejection raises an incident when the same content is
// rejected for quality more than once within the tracking TTL.
func (o *Orchestrator) trackRepeatedRejection(st *requestState) {
	key := cache.ContentKey(st.req.Content)
	if _, repeated := o.repeats.Get(key); repeated {
		o.incidents.Record(st.req.ID, model.StageQualityScore,
			"repeated quality rejection of identical content", false)
		return
	}
	o.repeats.Set(key, struct{}{}, gocache.DefaultExpiration)
}
