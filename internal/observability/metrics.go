package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// hazard core.
type Metrics struct {
	EngineInvocations prometheus.Counter
	EngineFailures    prometheus.Counter
	RecordsCoded      *prometheus.CounterVec // label: action
	ProductsIssued    *prometheus.CounterVec // label: pil

	StoreReads     *prometheus.CounterVec // label: store={event,vtec}
	StoreWrites    *prometheus.CounterVec // label: store
	StoreConflicts *prometheus.CounterVec // label: store

	RecommenderRuns     *prometheus.CounterVec // labels: recommender, outcome={merged,blocked,failed,cancelled}
	RecommenderDuration *prometheus.HistogramVec

	CycleDuration    prometheus.Histogram
	LockHoldDuration prometheus.Histogram
	CycleRunning     prometheus.Gauge
}

// NewMetrics creates and registers all core metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.EngineInvocations,
		m.EngineFailures,
		m.RecordsCoded,
		m.ProductsIssued,
		m.StoreReads,
		m.StoreWrites,
		m.StoreConflicts,
		m.RecommenderRuns,
		m.RecommenderDuration,
		m.CycleDuration,
		m.LockHoldDuration,
		m.CycleRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EngineInvocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "engine_invocations_total",
			Help:      "Total VTEC engine merge invocations.",
		}),
		EngineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "engine_failures_total",
			Help:      "Engine invocations rejected with no records persisted.",
		}),
		RecordsCoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "records_coded_total",
			Help:      "VTEC records produced, by action code.",
		}, []string{"action"}),
		ProductsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "products_issued_total",
			Help:      "Products handed to dissemination, by product id.",
		}, []string{"pil"}),
		StoreReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "store_reads_total",
			Help:      "Store file reads, by store kind.",
		}, []string{"store"}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "store_writes_total",
			Help:      "Store file writes, by store kind.",
		}, []string{"store"}),
		StoreConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "store_conflicts_total",
			Help:      "Writes rejected by the revision guard, by store kind.",
		}, []string{"store"}),
		RecommenderRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_core",
			Name:      "recommender_runs_total",
			Help:      "Recommender executions by name and outcome.",
		}, []string{"recommender", "outcome"}),
		RecommenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_core",
			Name:      "recommender_duration_seconds",
			Help:      "Recommender compute duration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"recommender"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_core",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete product cycle (engine through dissemination).",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		LockHoldDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_core",
			Name:      "lock_hold_duration_seconds",
			Help:      "Time a store lock was held per acquisition.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_core",
			Name:      "cycle_running",
			Help:      "1 while a product cycle is executing, 0 otherwise.",
		}),
	}
}
