package model

import "time"

// Stage identifies a state of the per-request verification state machine.
type Stage string

const (
	StagePending       Stage = "pending"
	StageSourceCheck   Stage = "source_validating"
	StagePreCheck      Stage = "pre_hallucination_check"
	StageConsensus     Stage = "consensus_building"
	StagePostCheck     Stage = "post_hallucination_check"
	StageCrossCheck    Stage = "cross_validating"
	StageQualityScore  Stage = "quality_scoring"
	StageAccepted      Stage = "accepted"
	StageRejected      Stage = "rejected"
	StageRolledBack    Stage = "rolled_back"
	StageErrored       Stage = "errored"
)

// Outcome is the terminal disposition of a verification request. Every
// VerificationRecord has exactly one.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeRejected   Outcome = "rejected"
	OutcomeRolledBack Outcome = "rolledBack"
	OutcomeErrored    Outcome = "errored"
)

// Terminal reports whether the outcome is one of the four terminal states.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeAccepted, OutcomeRejected, OutcomeRolledBack, OutcomeErrored:
		return true
	}
	return false
}

// VerificationRecord is the terminal artifact of a verification. Created
// only at pipeline termination and never mutated afterward. The metrics
// aggregator retains records in a bounded window.
type VerificationRecord struct {
	RequestID string  `json:"request_id"`
	Content   string  `json:"content"`
	Outcome   Outcome `json:"outcome"`
	Stage     Stage   `json:"stage"`  // Stage at which the pipeline terminated
	Detail    string  `json:"detail,omitempty"`

	Confidence            float64          `json:"confidence"`
	HallucinationDetected bool             `json:"hallucination_detected"`
	Evidence              []Evidence       `json:"evidence,omitempty"`
	Consensus             *ConsensusResult `json:"consensus,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Incident records a detected hallucination or an unexpected stage failure.
// Incidents are append-only and never deleted within the process lifetime.
type Incident struct {
	RequestID string    `json:"request_id"`
	Stage     Stage     `json:"stage"`
	Detail    string    `json:"detail"`
	Fatal     bool      `json:"fatal"`
	Timestamp time.Time `json:"timestamp"`
}
