package planner

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricOptionsScored = "shard_planner_options_scored_total"
	metricScoringErrors = "shard_planner_scoring_errors_total"
	metricShardCost     = "shard_planner_shard_cost"

	labelShardingType = "sharding_type"
	labelReason       = "reason"
)

// CostMetrics exposes scoring activity as Prometheus collectors.
// A nil *CostMetrics is valid and records nothing.
type CostMetrics struct {
	optionsScored *prometheus.CounterVec
	scoringErrors *prometheus.CounterVec
	shardCost     prometheus.Histogram
}

// NewCostMetrics creates the collectors and registers them with registry.
// An AlreadyRegisteredError for an identical collector is tolerated, so several
// calculators may share one registry.
func NewCostMetrics(registry prometheus.Registerer) (*CostMetrics, error) {
	m := &CostMetrics{
		optionsScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricOptionsScored,
				Help: "Total number of sharding options whose shards were assigned a cost",
			},
			[]string{labelShardingType},
		),
		scoringErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricScoringErrors,
				Help: "Total number of sharding options that could not be scored",
			},
			[]string{labelReason},
		),
		shardCost: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricShardCost,
				Help:    "Distribution of estimated per-shard wall-time cost",
				Buckets: prometheus.ExponentialBuckets(1e-6, 10, 12),
			},
		),
	}

	if err := register(registry, &m.optionsScored); err != nil {
		return nil, err
	}
	if err := register(registry, &m.scoringErrors); err != nil {
		return nil, err
	}
	if err := registry.Register(m.shardCost); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		m.shardCost = are.ExistingCollector.(prometheus.Histogram)
	}
	return m, nil
}

func register(registry prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := registry.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		*c = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return nil
}

func (m *CostMetrics) observeOption(st ShardingType, costs []float64) {
	if m == nil {
		return
	}
	m.optionsScored.WithLabelValues(st.String()).Inc()
	for _, c := range costs {
		m.shardCost.Observe(c)
	}
}

func (m *CostMetrics) observeError(err error) {
	if m == nil {
		return
	}
	m.scoringErrors.WithLabelValues(errorReason(err)).Inc()
}
