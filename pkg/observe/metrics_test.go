package observe

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/weft-dev/weft/pkg/weft"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsObserver_CountsActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	rt := weft.NewRuntime(weft.WithObserver(m))

	s, set := weft.CreateSignal(rt, 0)
	total := weft.CreateMemo(rt, func() int { return s.Get() * 2 })
	weft.CreateEffect(rt, func() weft.Cleanup {
		_ = total.Get()
		return nil
	})

	set.Set(1)
	set.Set(1) // equal value, no write event

	if got := metricCounterValue(t, m.writesTotal); got != 1 {
		t.Fatalf("writes_total=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.evaluationsTotal.WithLabelValues("memo", "success")); got != 2 {
		t.Fatalf("evaluations_total(memo,success)=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.evaluationsTotal.WithLabelValues("effect", "success")); got != 2 {
		t.Fatalf("evaluations_total(effect,success)=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.flushesTotal); got != 1 {
		t.Fatalf("flushes_total=%v, want 1", got)
	}
	if got := metricHistogramCount(t, m.evaluationDuration.WithLabelValues("memo")); got == 0 {
		t.Fatal("expected evaluation_duration_seconds samples for memos")
	}
	if got := metricGaugeValue(t, m.liveNodes); got != 3 {
		t.Fatalf("live_nodes=%v, want 3", got)
	}
	if got := metricGaugeValue(t, m.liveScopes); got != 1 {
		t.Fatalf("live_scopes=%v, want 1", got)
	}

	rt.Batch(func() {
		set.Set(5)
		set.Set(6)
	})
	if got := metricCounterValue(t, m.batchesTotal); got != 1 {
		t.Fatalf("batches_total=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.writesTotal); got != 3 {
		t.Fatalf("writes_total after batch=%v, want 3", got)
	}

	rt.Dispose()
	if got := metricGaugeValue(t, m.liveNodes); got != 0 {
		t.Fatalf("live_nodes after dispose=%v, want 0", got)
	}
	if got := metricGaugeValue(t, m.liveScopes); got != 0 {
		t.Fatalf("live_scopes after dispose=%v, want 0", got)
	}
}

func TestMetricsObserver_ErrorsAreCategorized(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))
	rt := weft.NewRuntime(weft.WithObserver(m), weft.WithLogger(discardLogger()))
	defer rt.Dispose()

	s, set := weft.CreateSignal(rt, 1)
	weft.CreateEffect(rt, func() weft.Cleanup {
		if s.Get() < 0 {
			panic("negative input")
		}
		return nil
	})

	set.Set(-1)

	if got := metricCounterValue(t, m.evaluationsTotal.WithLabelValues("effect", "error")); got != 1 {
		t.Fatalf("evaluations_total(effect,error)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.evaluationErrors.WithLabelValues("effect", "panic")); got != 1 {
		t.Fatalf("evaluation_errors_total(effect,panic)=%v, want 1", got)
	}
}

func TestMetricsObserver_SkipsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	rt := weft.NewRuntime(weft.WithObserver(m))
	defer rt.Dispose()

	s, set := weft.CreateSignal(rt, 5)
	abs := weft.CreateMemo(rt, func() int {
		v := s.Get()
		if v < 0 {
			return -v
		}
		return v
	})
	weft.CreateEffect(rt, func() weft.Cleanup {
		_ = abs.Get()
		return nil
	})

	// abs recomputes to the same value, so the effect settles without
	// running.
	set.Set(-5)

	if got := metricCounterValue(t, m.skipsTotal); got == 0 {
		t.Fatal("expected evaluations_skipped_total > 0")
	}
	if got := metricCounterValue(t, m.evaluationsTotal.WithLabelValues("effect", "success")); got != 1 {
		t.Fatalf("evaluations_total(effect,success)=%v, want 1 (creation only)", got)
	}
}

func TestCategorizeError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"disposed", weft.ErrDisposed, "disposed"},
		{"wrapped disposed", &weft.NodeError{Op: "get", Err: weft.ErrDisposed}, "disposed"},
		{"cycle", weft.ErrCyclicDependency, "cycle"},
		{"borrow", weft.ErrBorrowConflict, "borrow_conflict"},
		{"budget", weft.ErrBudgetExceeded, "budget_exceeded"},
		{"panic", &weft.EvalError{Value: "boom"}, "panic"},
		{"wrapped panic", &weft.NodeError{Op: "evaluate", Err: &weft.EvalError{Value: 1}}, "panic"},
		{"other", errors.New("socket closed"), "internal"},
	}
	for _, tc := range cases {
		if got := categorizeError(tc.err); got != tc.want {
			t.Errorf("%s: categorizeError=%q, want %q", tc.name, got, tc.want)
		}
	}
}
