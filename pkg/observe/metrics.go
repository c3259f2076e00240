package observe

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/weft-dev/weft/pkg/weft"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "weft").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for evaluation duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the evaluation duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "weft",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics is an Observer exporting runtime activity as Prometheus
// metrics. One instance may observe any number of runtimes; construct
// separate instances with separate registries for test isolation.
//
// Metrics collected:
//   - weft_evaluations_total: counter of evaluations by node kind and status
//   - weft_evaluation_duration_seconds: histogram of evaluation duration by kind
//   - weft_evaluation_errors_total: counter of failures by kind and error type
//   - weft_evaluations_skipped_total: counter of settles that found sources unchanged
//   - weft_writes_total: counter of effective writes (equal writes never emit)
//   - weft_flushes_total: counter of completed flushes
//   - weft_flush_duration_seconds: histogram of flush duration
//   - weft_flush_evaluations: histogram of evaluations per flush
//   - weft_batches_total: counter of top-level batches
//   - weft_live_nodes, weft_live_scopes: gauges of arena population
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	evaluationErrors   *prometheus.CounterVec
	skipsTotal         prometheus.Counter
	writesTotal        prometheus.Counter
	flushesTotal       prometheus.Counter
	flushDuration      prometheus.Histogram
	flushEvaluations   prometheus.Histogram
	batchesTotal       prometheus.Counter
	liveNodes          prometheus.Gauge
	liveScopes         prometheus.Gauge
}

// NewMetrics creates and registers the metric set.
//
// Example:
//
//	metrics := observe.NewMetrics(observe.WithNamespace("myapp"))
//	rt := weft.NewRuntime(weft.WithObserver(metrics))
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		evaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluations_total",
			Help:        "Total number of node evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "status"}),

		evaluationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluation_duration_seconds",
			Help:        "Node evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		evaluationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluation_errors_total",
			Help:        "Total number of evaluation failures",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "error_type"}),

		skipsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluations_skipped_total",
			Help:        "Total number of settles that found all sources unchanged",
			ConstLabels: config.ConstLabels,
		}),

		writesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of effective signal writes",
			ConstLabels: config.ConstLabels,
		}),

		flushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of completed flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushEvaluations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_evaluations",
			Help:        "Evaluations performed per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),

		batchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batches_total",
			Help:        "Total number of top-level batches",
			ConstLabels: config.ConstLabels,
		}),

		liveNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_nodes",
			Help:        "Number of live reactive nodes",
			ConstLabels: config.ConstLabels,
		}),

		liveScopes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_scopes",
			Help:        "Number of live scopes",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Observe implements weft.Observer.
func (m *Metrics) Observe(ev weft.Event) {
	switch ev.Kind {
	case weft.EventNodeCreated:
		m.liveNodes.Inc()
	case weft.EventNodeDisposed:
		m.liveNodes.Dec()
	case weft.EventScopeCreated:
		m.liveScopes.Inc()
	case weft.EventScopeDisposed:
		m.liveScopes.Dec()
	case weft.EventWrite:
		m.writesTotal.Inc()
	case weft.EventSkip:
		m.skipsTotal.Inc()
	case weft.EventEval:
		kind := ev.NodeKind.String()
		m.evaluationDuration.WithLabelValues(kind).Observe(ev.Dur.Seconds())
		status := "success"
		if ev.Err != nil {
			status = "error"
			m.evaluationErrors.WithLabelValues(kind, categorizeError(ev.Err)).Inc()
		}
		m.evaluationsTotal.WithLabelValues(kind, status).Inc()
	case weft.EventError:
		// Failures reported outside an evaluation: cycles and budget
		// aborts.
		m.evaluationErrors.WithLabelValues(ev.NodeKind.String(), categorizeError(ev.Err)).Inc()
	case weft.EventFlush:
		m.flushesTotal.Inc()
		m.flushDuration.Observe(ev.Dur.Seconds())
		m.flushEvaluations.Observe(float64(ev.Evals))
	case weft.EventBatchStart:
		m.batchesTotal.Inc()
	}
}

// categorizeError buckets an error by its sentinel so label cardinality
// stays bounded regardless of panic payloads or message text.
func categorizeError(err error) string {
	var ee *weft.EvalError
	switch {
	case errors.Is(err, weft.ErrDisposed):
		return "disposed"
	case errors.Is(err, weft.ErrCyclicDependency):
		return "cycle"
	case errors.Is(err, weft.ErrBorrowConflict):
		return "borrow_conflict"
	case errors.Is(err, weft.ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.As(err, &ee):
		return "panic"
	default:
		return "internal"
	}
}
