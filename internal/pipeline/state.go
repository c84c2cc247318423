package pipeline

import (
	"fmt"

	"github.com/veracitylabs/veracity/internal/crossval"
	"github.com/veracitylabs/veracity/internal/detect"
	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/quality"
	"github.com/veracitylabs/veracity/internal/source"
)

// transitions is the per-request state machine. No state is revisited; the
// only retry point inside a stage is the consensus builder's internal
// re-query of slow raters, and rollback-then-terminate on failure.
var transitions = map[model.Stage][]model.Stage{
	model.StagePending:      {model.StageSourceCheck, model.StageErrored},
	model.StageSourceCheck:  {model.StagePreCheck, model.StageErrored},
	model.StagePreCheck:     {model.StageConsensus, model.StageRejected, model.StageErrored},
	model.StageConsensus:    {model.StagePostCheck, model.StageErrored},
	model.StagePostCheck:    {model.StageCrossCheck, model.StageRejected, model.StageErrored},
	model.StageCrossCheck:   {model.StageQualityScore, model.StageErrored},
	model.StageQualityScore: {model.StageAccepted, model.StageRejected, model.StageErrored},
	model.StageRejected:     {model.StageRolledBack},
	model.StageErrored:      {model.StageRolledBack},
}

func canTransition(from, to model.Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// requestState is the request-scoped arena passed through the pipeline. It
// replaces shared maps keyed by generated ids: nothing here outlives the
// request, and no other request can see it.
type requestState struct {
	req   model.VerificationRequest
	stage model.Stage

	evidence    []model.Evidence
	reliability float64

	pre       detect.PreScreenResult
	consensus *model.ConsensusResult
	post      detect.PostCheckResult
	cross     *crossval.Result
	score     quality.Result

	hallucination bool
}

func newRequestState(req model.VerificationRequest) *requestState {
	return &requestState{req: req, stage: model.StagePending}
}

// advance moves the state machine, rejecting any transition the machine
// does not define.
func (st *requestState) advance(to model.Stage) error {
	if !canTransition(st.stage, to) {
		return fmt.Errorf("invalid transition %s -> %s", st.stage, to)
	}
	st.stage = to
	return nil
}

// setSource records the source validation output.
func (st *requestState) setSource(res *source.Result) {
	st.evidence = res.Evidence
	st.reliability = res.Reliability
}
