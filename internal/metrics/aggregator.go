// Package metrics maintains a bounded sliding window of verification
// outcomes and derives running reliability rates from it.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/veracitylabs/veracity/internal/model"
)

// Snapshot is a consistent point-in-time copy of the running rates.
type Snapshot struct {
	SuccessRate        float64 `json:"success_rate"`
	HallucinationRate  float64 `json:"hallucination_rate"`
	ConsensusRate      float64 `json:"consensus_rate"`
	TotalVerifications uint64  `json:"total_verifications"`
	WindowCount        int     `json:"window_count"`
	Dropped            uint64  `json:"dropped_observations"`
}

// Aggregator observes terminated VerificationRecords in a bounded sliding
// window, oldest evicted first. Observation is fire-and-forget: a single
// writer goroutine serializes all window mutation and the orchestrator is
// never blocked — if the intake buffer is full the update is dropped and
// counted.
type Aggregator struct {
	capacity int
	intake   chan model.VerificationRecord
	done     chan struct{}
	stopOnce sync.Once

	dropped atomic.Uint64

	mu      sync.RWMutex
	window  []model.VerificationRecord
	counts  windowCounts
	total   uint64
	stopped bool
}

type windowCounts struct {
	accepted       int
	hallucinations int
	consensus      int
}

// NewAggregator creates an aggregator retaining at most windowSize records
// and starts its writer goroutine.
func NewAggregator(windowSize int) *Aggregator {
	if windowSize <= 0 {
		windowSize = 1000
	}
	a := &Aggregator{
		capacity: windowSize,
		intake:   make(chan model.VerificationRecord, 4*windowSize),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Observe records a terminated verification. It never blocks: the record is
// handed to the writer goroutine, or dropped (and counted) when the intake
// buffer is full or the aggregator is stopped.
func (a *Aggregator) Observe(record model.VerificationRecord) {
	// The read lock is held across the send so Stop cannot close the intake
	// under a sender; the send itself never blocks.
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stopped {
		a.dropped.Add(1)
		return
	}
	select {
	case a.intake <- record:
	default:
		a.dropped.Add(1)
	}
}

// Stop drains the intake and stops the writer. Records observed after Stop
// are dropped.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()
		close(a.intake)
		<-a.done
	})
}

func (a *Aggregator) run() {
	defer close(a.done)
	for record := range a.intake {
		a.append(record)
	}
}

// append applies one record: window counters reflect termination order.
func (a *Aggregator) append(record model.VerificationRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.window) == a.capacity {
		a.subtract(a.window[0])
		a.window = a.window[1:]
	}
	a.window = append(a.window, record)
	a.add(record)
	a.total++
}

func (a *Aggregator) add(record model.VerificationRecord) {
	if record.Outcome == model.OutcomeAccepted {
		a.counts.accepted++
	}
	if record.HallucinationDetected {
		a.counts.hallucinations++
	}
	if record.Consensus != nil && record.Consensus.Achieved {
		a.counts.consensus++
	}
}

func (a *Aggregator) subtract(record model.VerificationRecord) {
	if record.Outcome == model.OutcomeAccepted {
		a.counts.accepted--
	}
	if record.HallucinationDetected {
		a.counts.hallucinations--
	}
	if record.Consensus != nil && record.Consensus.Achieved {
		a.counts.consensus--
	}
}

// Snapshot returns the current rates without blocking the writer beyond a
// read lock. The caller sees a copy, never a live-mutating reference.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{
		TotalVerifications: a.total,
		WindowCount:        len(a.window),
		Dropped:            a.dropped.Load(),
	}
	if n := len(a.window); n > 0 {
		snap.SuccessRate = float64(a.counts.accepted) / float64(n)
		snap.HallucinationRate = float64(a.counts.hallucinations) / float64(n)
		snap.ConsensusRate = float64(a.counts.consensus) / float64(n)
	}
	return snap
}

// Window returns a copy of the retained records, oldest first.
func (a *Aggregator) Window() []model.VerificationRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.VerificationRecord, len(a.window))
	copy(out, a.window)
	return out
}
