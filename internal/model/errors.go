package model

import (
	"errors"
	"fmt"
)

// Error taxonomy. Stage-local errors never escape to the caller as raw
// values; the orchestrator translates every failure into one terminal
// VerificationRecord outcome. These sentinels drive that translation.
var (
	// ErrSourceUnavailable: no knowledge source responded within its
	// timeout. Recoverable; the pipeline aborts to rollback and the caller
	// may retry.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInsufficientQuorum: fewer raters responded than the configured
	// quorum. Recoverable; same treatment as ErrSourceUnavailable. An
	// inconclusive consensus must never be read as accept or reject.
	ErrInsufficientQuorum = errors.New("insufficient quorum")

	// ErrConsensusNotReached: quorum was met but the agreement ratio fell
	// below the consensus threshold. Treated like quorum failure: the
	// result is inconclusive, not a rejection.
	ErrConsensusNotReached = errors.New("consensus not reached")

	// ErrHallucinationDetected: terminal. Content rejected, an Incident is
	// logged, no retry.
	ErrHallucinationDetected = errors.New("hallucination detected")

	// ErrQualityBelowTarget: terminal rejection. No Incident unless the
	// same content is rejected repeatedly.
	ErrQualityBelowTarget = errors.New("quality below target")

	// ErrRollbackFailure: fatal. An Incident is logged and the outcome is
	// errored; requires operator attention.
	ErrRollbackFailure = errors.New("rollback failure")

	// ErrEmptyContent is an intake failure: there is nothing to verify and
	// no record is produced.
	ErrEmptyContent = errors.New("empty content")
)

// StageError wraps a stage-local failure with the stage it occurred in so
// the orchestrator can attribute incidents and rollback reasons.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the stage it failed in.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
