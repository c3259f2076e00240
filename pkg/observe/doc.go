// Package observe exports runtime instrumentation to Prometheus and
// OpenTelemetry.
//
// Both exporters are plain weft.Observer implementations: attach them
// with weft.WithObserver at construction or rt.AddObserver later.
//
// # Metrics
//
//	metrics := observe.NewMetrics(
//	    observe.WithNamespace("myapp"),
//	)
//	rt := weft.NewRuntime(weft.WithObserver(metrics))
//
//	// Expose the default registry
//	http.Handle("/metrics", promhttp.Handler())
//
// # Tracing
//
// Tracer reconstructs runtime activity as spans: one span per flush and
// one child span per evaluation, nested when an evaluation pulls a memo.
//
//	tracer := observe.NewTracer(
//	    observe.WithTracerName("myapp"),
//	)
//	rt := weft.NewRuntime(weft.WithObserver(tracer))
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before creating runtimes:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	)
//	otel.SetTracerProvider(tp)
//
// A Tracer holds per-flush state and must observe exactly one Runtime;
// a Metrics instance may be shared by any number of runtimes.
package observe
