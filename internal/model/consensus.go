package model

import "time"

// Verdict is a rater's judgment on a claim.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictReject Verdict = "reject"
)

// RaterOpinion is one rater's answer to the verification question. Opinions
// are owned by the consensus builder and discarded after consensus is
// computed; only the ones contributing to a ConsensusResult survive.
type RaterOpinion struct {
	RaterID    string        `json:"rater_id"`
	Verdict    Verdict       `json:"verdict"`
	Confidence float64       `json:"confidence"` // In [0,1]
	Latency    time.Duration `json:"latency"`
}

// ConsensusResult is the aggregate of rater opinions. Immutable once
// computed. AgreementRatio is only meaningful when Responded >= the
// configured quorum; the builder refuses to produce a result otherwise.
type ConsensusResult struct {
	AgreementRatio float64        `json:"agreement_ratio"` // Confidence-weighted share matching the majority verdict
	Verdict        Verdict        `json:"verdict"`
	Achieved       bool           `json:"achieved"` // AgreementRatio >= consensus threshold
	Responded      int            `json:"responded"`
	Opinions       []RaterOpinion `json:"opinions"`
}
