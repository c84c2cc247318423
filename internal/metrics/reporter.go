package metrics

import (
	"log/slog"
	"sync"
	"time"
)

// Reporter emits the aggregator's snapshot as a structured event at a fixed
// interval for external consumption (log sink, dashboard, alerting). One
// reporter runs per process, separate from per-request concurrency, so
// shutdown semantics stay clean.
type Reporter struct {
	agg      *Aggregator
	interval time.Duration
	logger   *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewReporter creates a reporter; Start launches it.
func NewReporter(agg *Aggregator, interval time.Duration, logger *slog.Logger) *Reporter {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		agg:      agg,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic report loop.
func (r *Reporter) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.emit()
			}
		}
	}()
}

// Stop halts the loop after emitting one final report.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
		r.emit()
	})
}

func (r *Reporter) emit() {
	snap := r.agg.Snapshot()
	r.logger.Info("quality report",
		"success_rate", snap.SuccessRate,
		"hallucination_rate", snap.HallucinationRate,
		"consensus_rate", snap.ConsensusRate,
		"total_verifications", snap.TotalVerifications,
		"window_count", snap.WindowCount,
		"dropped_observations", snap.Dropped,
	)
}
