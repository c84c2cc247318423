package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterCollectors exposes the aggregator's rates to a Prometheus
// registry. Collection reads a snapshot, so scrapes never block the writer.
func RegisterCollectors(reg prometheus.Registerer, agg *Aggregator) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "veracity",
			Name:      "success_rate",
			Help:      "Share of accepted records in the sliding window.",
		}, func() float64 { return agg.Snapshot().SuccessRate }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "veracity",
			Name:      "hallucination_rate",
			Help:      "Share of hallucination-flagged records in the sliding window.",
		}, func() float64 { return agg.Snapshot().HallucinationRate }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "veracity",
			Name:      "consensus_rate",
			Help:      "Share of records with achieved consensus in the sliding window.",
		}, func() float64 { return agg.Snapshot().ConsensusRate }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "veracity",
			Name:      "verifications_total",
			Help:      "Verifications terminated since process start.",
		}, func() float64 { return float64(agg.Snapshot().TotalVerifications) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "veracity",
			Name:      "dropped_observations_total",
			Help:      "Metric observations dropped because the intake buffer was full.",
		}, func() float64 { return float64(agg.Snapshot().Dropped) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
