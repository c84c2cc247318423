package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/quality"
	"github.com/veracitylabs/veracity/internal/rater"
	"github.com/veracitylabs/veracity/internal/source"
)

type fakeSource struct {
	id       string
	evidence []model.Evidence
	err      error
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) Retrieve(ctx context.Context, claim string) ([]model.Evidence, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.evidence, nil
}

type stubRater struct {
	id         string
	verdict    model.Verdict
	confidence float64
}

func (s *stubRater) ID() string { return s.id }

func (s *stubRater) Rate(ctx context.Context, content string, evidence []model.Evidence) (model.RaterOpinion, error) {
	return model.RaterOpinion{Verdict: s.verdict, Confidence: s.confidence}, nil
}

type stubScorer struct {
	result quality.Result
}

func (s *stubScorer) Score(in quality.Input) quality.Result { return s.result }

const supportedClaim = "The Eiffel Tower stands in Paris."

func supportingSource(id string, reliability float64) source.Source {
	return &fakeSource{id: id, evidence: []model.Evidence{
		{SourceID: id, Reliability: reliability, Excerpt: "The Eiffel Tower stands in Paris beside the Seine."},
	}}
}

func acceptPool(n int) []rater.Rater {
	raters := make([]rater.Rater, n)
	for i := range raters {
		raters[i] = &stubRater{id: "accept", verdict: model.VerdictAccept, confidence: 1.0}
	}
	return raters
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Consensus.PoolSize = 8
	cfg.Consensus.Quorum = 5
	cfg.Consensus.Threshold = 0.9
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *model.Config, opts Options) *Orchestrator {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	orch, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { orch.Metrics().Stop() })
	return orch
}

func TestOrchestrator_AcceptsFullySupportedContent(t *testing.T) {
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources:      []source.Source{supportingSource("primary", 1.0)},
		CrossSources: []source.Source{supportingSource("independent", 1.0)},
		Raters:       acceptPool(8),
	})

	record, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeAccepted, record.Outcome)
	assert.Equal(t, model.StageAccepted, record.Stage)
	assert.Equal(t, 0.9999, record.Confidence, "confidence is clamped to the target accuracy")
	assert.False(t, record.HallucinationDetected)
	require.NotNil(t, record.Consensus)
	assert.True(t, record.Consensus.Achieved)
	assert.Empty(t, orch.Incidents().ByRequest(record.RequestID))
}

func TestOrchestrator_RejectsHallucinatedContent(t *testing.T) {
	// Evidence exists but is about something else entirely: the pre-screen
	// filters the content before any rater is consulted.
	offTopic := &fakeSource{id: "primary", evidence: []model.Evidence{
		{SourceID: "primary", Reliability: 0.9, Excerpt: "Tokyo Skytree dominates the Sumida skyline."},
	}}
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{offTopic},
		Raters:  acceptPool(8),
	})

	record, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRejected, record.Outcome)
	assert.True(t, record.HallucinationDetected)
	assert.Equal(t, 0.0, record.Confidence)

	incidents := orch.Incidents().ByRequest(record.RequestID)
	require.Len(t, incidents, 1, "every detected hallucination must log an incident")
	assert.False(t, incidents[0].Fatal)
}

type countingRater struct {
	calls *atomic.Int64
}

func (c *countingRater) ID() string { return "counting" }

func (c *countingRater) Rate(ctx context.Context, content string, evidence []model.Evidence) (model.RaterOpinion, error) {
	c.calls.Add(1)
	return model.RaterOpinion{Verdict: model.VerdictAccept, Confidence: 1.0}, nil
}

func TestOrchestrator_PreScreenRejectionDispatchesNoRaters(t *testing.T) {
	// The pre-consensus screen exists to save rater budget: content it
	// filters must terminate without a single rater query.
	var calls atomic.Int64
	raters := make([]rater.Rater, 8)
	for i := range raters {
		raters[i] = &countingRater{calls: &calls}
	}

	offTopic := &fakeSource{id: "primary", evidence: []model.Evidence{
		{SourceID: "primary", Reliability: 0.9, Excerpt: "Tokyo Skytree dominates the Sumida skyline."},
	}}
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{offTopic},
		Raters:  raters,
	})

	record, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRejected, record.Outcome)
	assert.True(t, record.HallucinationDetected)
	assert.Equal(t, int64(0), calls.Load(), "a filtered request must spend no rater budget")
	assert.Nil(t, record.Consensus, "no consensus result exists when no rater was consulted")
}

func TestOrchestrator_PostCheckCatchesUnsupportedStatement(t *testing.T) {
	// The second sentence has no evidentiary support; it survives the
	// pre-screen on the strength of the first and is caught by the
	// statement-level post-check.
	content := "The Eiffel Tower stands in Paris. The tower secretly relocates every decade."
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{supportingSource("primary", 1.0)},
		Raters:  acceptPool(8),
	})

	record, err := orch.Verify(context.Background(), content, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRejected, record.Outcome)
	assert.True(t, record.HallucinationDetected)
	assert.Equal(t, model.StageRejected, record.Stage)
	assert.Contains(t, record.Detail, "without support")
	require.Len(t, orch.Incidents().ByRequest(record.RequestID), 1)
}

func TestOrchestrator_SplitConsensusTerminatesWithoutVerdict(t *testing.T) {
	// 3 accept vs 5 reject at equal confidence: quorum is met but agreement
	// lands at 0.625, far below the 0.9 threshold. The request must not be
	// interpreted as accepted or rejected.
	raters := append(acceptPool(3),
		&stubRater{id: "r1", verdict: model.VerdictReject, confidence: 1.0},
		&stubRater{id: "r2", verdict: model.VerdictReject, confidence: 1.0},
		&stubRater{id: "r3", verdict: model.VerdictReject, confidence: 1.0},
		&stubRater{id: "r4", verdict: model.VerdictReject, confidence: 1.0},
		&stubRater{id: "r5", verdict: model.VerdictReject, confidence: 1.0},
	)
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{supportingSource("primary", 1.0)},
		Raters:  raters,
	})

	record, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRolledBack, record.Outcome)
	assert.False(t, record.HallucinationDetected)
	assert.Contains(t, record.Detail, "consensus not reached")
	assert.Contains(t, record.Detail, "0.625")
	require.Len(t, orch.Incidents().ByRequest(record.RequestID), 1)
}

type failingRater struct{}

func (f *failingRater) ID() string { return "failing" }

func (f *failingRater) Rate(ctx context.Context, content string, evidence []model.Evidence) (model.RaterOpinion, error) {
	return model.RaterOpinion{}, errors.New("backend down")
}

func TestOrchestrator_InsufficientQuorumIsAFailure(t *testing.T) {
	// Pool of 5 with quorum 5: a single failing rater leaves the pool one
	// response short.
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{supportingSource("primary", 1.0)},
		Raters:  append(acceptPool(4), &failingRater{}),
	})

	record, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRolledBack, record.Outcome)
	assert.Contains(t, record.Detail, "insufficient quorum")
}

func TestOrchestrator_SourceFailureRollsBack(t *testing.T) {
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{&fakeSource{id: "down", err: errors.New("connection refused")}},
		Raters:  acceptPool(8),
	})

	record, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRolledBack, record.Outcome)
	assert.Contains(t, record.Detail, "source unavailable")
	assert.Contains(t, record.Detail, string(model.StageSourceCheck))
}

func TestOrchestrator_RejectionWithEffectsRollsBackOnce(t *testing.T) {
	content := "The Eiffel Tower stands in Paris. The tower secretly relocates every decade."

	undoCalls := 0
	staging := func(req model.VerificationRequest, consensus *model.ConsensusResult) (func() error, error) {
		return func() error {
			undoCalls++
			return nil
		}, nil
	}

	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{supportingSource("primary", 1.0)},
		Raters:  acceptPool(8),
		Staging: staging,
	})

	record, err := orch.Verify(context.Background(), content, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRolledBack, record.Outcome,
		"a rejection after side effects must surface as rolledBack")
	assert.True(t, record.HallucinationDetected)
	assert.Equal(t, 1, undoCalls, "the staged effect must be reverted exactly once")
}

func TestOrchestrator_FailedRollbackIsFatal(t *testing.T) {
	content := "The Eiffel Tower stands in Paris. The tower secretly relocates every decade."
	staging := func(req model.VerificationRequest, consensus *model.ConsensusResult) (func() error, error) {
		return func() error { return errors.New("downstream write is stuck") }, nil
	}

	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{supportingSource("primary", 1.0)},
		Raters:  acceptPool(8),
		Staging: staging,
	})

	record, err := orch.Verify(context.Background(), content, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeErrored, record.Outcome)

	var fatal bool
	for _, inc := range orch.Incidents().ByRequest(record.RequestID) {
		if inc.Fatal {
			fatal = true
		}
	}
	assert.True(t, fatal, "a failed rollback must log a fatal incident")
}

func TestOrchestrator_AcceptedContentDiscardsJournal(t *testing.T) {
	staged := false
	staging := func(req model.VerificationRequest, consensus *model.ConsensusResult) (func() error, error) {
		staged = true
		return func() error {
			t.Error("undo must not run for accepted content")
			return nil
		}, nil
	}

	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources:      []source.Source{supportingSource("primary", 1.0)},
		CrossSources: []source.Source{supportingSource("independent", 1.0)},
		Raters:       acceptPool(8),
		Staging:      staging,
	})

	record, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeAccepted, record.Outcome)
	assert.True(t, staged)
	assert.False(t, orch.Rollback().HasEffects(record.RequestID))
}

func TestOrchestrator_RepeatedQualityRejectionLogsIncident(t *testing.T) {
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{supportingSource("primary", 1.0)},
		Raters:  acceptPool(8),
		Scorer:  &stubScorer{result: quality.Result{Confidence: 0.5}},
	})

	first, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, first.Outcome)
	assert.Empty(t, orch.Incidents().ByRequest(first.RequestID),
		"a single quality rejection logs no incident")

	second, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, second.Outcome)

	incidents := orch.Incidents().ByRequest(second.RequestID)
	require.Len(t, incidents, 1)
	assert.Contains(t, incidents[0].Detail, "repeated")
}

func TestOrchestrator_EmptyContentIsAnIntakeError(t *testing.T) {
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources: []source.Source{supportingSource("primary", 1.0)},
		Raters:  acceptPool(8),
	})

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := orch.Verify(context.Background(), content, nil)
		assert.ErrorIs(t, err, model.ErrEmptyContent)
	}
}

func TestOrchestrator_EveryTerminationIsObserved(t *testing.T) {
	orch := newTestOrchestrator(t, testConfig(), Options{
		Sources:      []source.Source{supportingSource("primary", 1.0)},
		CrossSources: []source.Source{supportingSource("independent", 1.0)},
		Raters:       acceptPool(8),
	})

	_, err := orch.Verify(context.Background(), supportedClaim, nil)
	require.NoError(t, err)
	_, err = orch.Verify(context.Background(), "The moon is made of cheese and nothing else.", nil)
	require.NoError(t, err)

	orch.Metrics().Stop()
	snap := orch.Metrics().Snapshot()
	assert.Equal(t, uint64(2), snap.TotalVerifications)
	assert.Equal(t, 0.5, snap.SuccessRate)
}

func TestStateMachine_Transitions(t *testing.T) {
	valid := []struct{ from, to model.Stage }{
		{model.StagePending, model.StageSourceCheck},
		{model.StageSourceCheck, model.StagePreCheck},
		{model.StagePreCheck, model.StageConsensus},
		{model.StageConsensus, model.StagePostCheck},
		{model.StagePostCheck, model.StageCrossCheck},
		{model.StageCrossCheck, model.StageQualityScore},
		{model.StageQualityScore, model.StageAccepted},
		{model.StageQualityScore, model.StageRejected},
		{model.StageRejected, model.StageRolledBack},
		{model.StageErrored, model.StageRolledBack},
	}
	for _, tr := range valid {
		if !canTransition(tr.from, tr.to) {
			t.Errorf("Expected %s -> %s to be valid", tr.from, tr.to)
		}
	}

	invalid := []struct{ from, to model.Stage }{
		{model.StagePending, model.StageAccepted},
		{model.StageAccepted, model.StageRejected},
		{model.StageConsensus, model.StageRejected},
		{model.StageRolledBack, model.StagePending},
		{model.StageRejected, model.StageAccepted},
	}
	for _, tr := range invalid {
		if canTransition(tr.from, tr.to) {
			t.Errorf("Expected %s -> %s to be invalid", tr.from, tr.to)
		}
	}
}

func TestIncidentLog_AppendOnly(t *testing.T) {
	log := NewIncidentLog(slog.New(slog.DiscardHandler))

	log.Record("req-1", model.StagePreCheck, "first", false)
	log.Record("req-2", model.StagePostCheck, "second", true)
	log.Record("req-1", model.StageErrored, "third", true)

	all := log.All()
	if len(all) != 3 {
		t.Fatalf("Expected 3 incidents, got %d", len(all))
	}
	byReq := log.ByRequest("req-1")
	if len(byReq) != 2 {
		t.Fatalf("Expected 2 incidents for req-1, got %d", len(byReq))
	}
	if byReq[0].Detail != "first" || byReq[1].Detail != "third" {
		t.Errorf("Expected insertion order to be preserved: %+v", byReq)
	}
	if !strings.HasPrefix(byReq[1].Detail, "third") {
		t.Errorf("Unexpected detail %q", byReq[1].Detail)
	}
}
