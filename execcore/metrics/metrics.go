// Package metrics exposes the execution core's counters/gauges/histograms
// as Prometheus collectors, grounded on observability/metrics.go's
// lazily-initialized CounterVec/HistogramVec registry pattern.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nhbchain/execcore/types"
)

// Registry holds every collector the execution core reports and mirrors the
// process-wide types.Stats counters into Prometheus form for /metrics.
type Registry struct {
	opportunities  *prometheus.CounterVec
	executions     *prometheus.CounterVec
	executionTime  prometheus.Histogram
	circuitState   *prometheus.GaugeVec
	dlqDepth       *prometheus.GaugeVec
	inflight       prometheus.Gauge
}

var (
	once     sync.Once
	registry *Registry

	statsOnce sync.Once
)

// New lazily constructs and registers the collector set exactly once per
// process, matching ModuleMetrics()'s sync.Once pattern.
func New() *Registry {
	once.Do(func() {
		registry = &Registry{
			opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "execcore",
				Name:      "opportunities_total",
				Help:      "Opportunities seen by the consumer, segmented by decision.",
			}, []string{"decision"}), // received | rejected
			executions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "execcore",
				Name:      "executions_total",
				Help:      "Strategy dispatch outcomes, segmented by strategy and outcome.",
			}, []string{"strategy", "outcome"}), // succeeded | failed | timed_out
			executionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "execcore",
				Name:      "execution_duration_seconds",
				Help:      "Wall-clock time spent in strategy dispatch.",
				Buckets:   prometheus.DefBuckets,
			}),
			circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "execcore",
				Name:      "circuit_breaker_state",
				Help:      "Per-chain circuit breaker state (0=closed, 1=half-open, 2=open).",
			}, []string{"chain"}),
			dlqDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "execcore",
				Name:      "dlq_depth",
				Help:      "Dead-letter queue depth by error code, from the last scan sample.",
			}, []string{"code"}),
			inflight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "execcore",
				Name:      "inflight_executions",
				Help:      "Currently in-flight strategy dispatches.",
			}),
		}
		prometheus.MustRegister(
			registry.opportunities,
			registry.executions,
			registry.executionTime,
			registry.circuitState,
			registry.dlqDepth,
			registry.inflight,
		)
	})
	return registry
}

// ObserveOpportunity increments the received/rejected counter.
func (r *Registry) ObserveOpportunity(decision string) {
	if r == nil {
		return
	}
	r.opportunities.WithLabelValues(decision).Inc()
}

// ObserveExecution records one strategy-dispatch outcome and its duration.
func (r *Registry) ObserveExecution(strategyName, outcome string, durationSeconds float64) {
	if r == nil {
		return
	}
	r.executions.WithLabelValues(strategyName, outcome).Inc()
	r.executionTime.Observe(durationSeconds)
}

// circuitStateValue maps a breaker state name to the gauge encoding used
// above (closed=0, half-open=1, open=2).
func circuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// SetCircuitState records the current breaker state for chain.
func (r *Registry) SetCircuitState(chain, state string) {
	if r == nil {
		return
	}
	r.circuitState.WithLabelValues(chain).Set(circuitStateValue(state))
}

// SetDLQDepth records the sampled per-code depth from the last DLQ scan.
func (r *Registry) SetDLQDepth(code string, depth int64) {
	if r == nil {
		return
	}
	r.dlqDepth.WithLabelValues(code).Set(float64(depth))
}

// SetInflight records the orchestrator's current in-flight execution count.
func (r *Registry) SetInflight(n int) {
	if r == nil {
		return
	}
	r.inflight.Set(float64(n))
}

// RegisterStatsCollector exposes every types.Stats counter directly as a
// Prometheus CounterFunc, read at scrape time, so the atomic.Int64 fields
// stay the single source of truth instead of being double-tracked through
// Observe* calls scattered across the codebase.
func RegisterStatsCollector(stats *types.Stats) {
	statsOnce.Do(func() { registerStatsCollector(stats) })
}

func registerStatsCollector(stats *types.Stats) {
	counters := map[string]func() float64{
		"received":                     func() float64 { return float64(stats.Received.Load()) },
		"rejected":                     func() float64 { return float64(stats.Rejected.Load()) },
		"attempted":                    func() float64 { return float64(stats.Attempted.Load()) },
		"succeeded":                    func() float64 { return float64(stats.Succeeded.Load()) },
		"failed":                       func() float64 { return float64(stats.Failed.Load()) },
		"timed_out":                    func() float64 { return float64(stats.TimedOut.Load()) },
		"simulated":                    func() float64 { return float64(stats.Simulated.Load()) },
		"simulation_skipped":           func() float64 { return float64(stats.SimulationSkipped.Load()) },
		"simulation_predicted_revert":  func() float64 { return float64(stats.SimulationPredictedRevert.Load()) },
		"circuit_breaker_trips":        func() float64 { return float64(stats.CircuitBreakerTrips.Load()) },
		"circuit_breaker_blocks":       func() float64 { return float64(stats.CircuitBreakerBlocks.Load()) },
		"risk_caution":                 func() float64 { return float64(stats.RiskCaution.Load()) },
		"lock_conflicts":               func() float64 { return float64(stats.LockConflicts.Load()) },
		"queue_rejects":                func() float64 { return float64(stats.QueueRejects.Load()) },
	}
	for name, read := range counters {
		prometheus.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "execcore",
			Subsystem: "stats",
			Name:      name,
			Help:      "Mirrors execcore/types.Stats." + name,
		}, read))
	}
}
