package observe

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/weft-dev/weft/pkg/weft"
)

// Default tracer name for weft runtimes.
const defaultTracerName = "weft"

// TracerConfig configures the OpenTelemetry observer.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "weft").
	TracerName string

	// Context is the parent context for root spans.
	// Default: context.Background().
	Context context.Context

	// Filter determines which evaluations get spans. Return true to
	// trace the evaluation, false to skip it. If nil, all evaluations
	// are traced. Flush spans are always created.
	Filter func(ev weft.Event) bool

	// AttributeExtractor extracts custom attributes from an event.
	// Called for each traced evaluation.
	AttributeExtractor func(ev weft.Event) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TracerOption configures the OpenTelemetry observer.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithTraceContext sets the parent context for root spans, so runtime
// spans attach under an enclosing request or job span.
func WithTraceContext(ctx context.Context) TracerOption {
	return func(c *TracerConfig) {
		c.Context = ctx
	}
}

// WithTraceFilter sets a filter function for evaluation spans.
func WithTraceFilter(filter func(ev weft.Event) bool) TracerOption {
	return func(c *TracerConfig) {
		c.Filter = filter
	}
}

// WithTraceAttributes sets a custom attribute extractor.
func WithTraceAttributes(extractor func(ev weft.Event) []attribute.KeyValue) TracerOption {
	return func(c *TracerConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultTracerConfig returns the default tracer configuration.
func defaultTracerConfig() TracerConfig {
	return TracerConfig{
		TracerName: defaultTracerName,
		Context:    context.Background(),
	}
}

// traceFrame is one open span on the reconstruction stack. A nil span
// marks an evaluation the filter skipped; the frame still occupies its
// stack slot so start and finish events stay paired.
type traceFrame struct {
	ctx  context.Context
	span trace.Span
	kind weft.EventKind
}

// Tracer is an Observer that reconstructs runtime activity as spans:
// one span per flush, one child span per evaluation, nested when an
// evaluation pulls a memo. Evaluations outside a flush (creation runs,
// lazy pulls) become root spans.
//
// Events arrive synchronously under the runtime lock, so the frame
// stack needs no locking, but one Tracer must observe exactly one
// Runtime.
type Tracer struct {
	config TracerConfig
	stack  []traceFrame
}

// NewTracer creates the observer, resolving the tracer from the global
// OpenTelemetry tracer provider.
//
// Example:
//
//	tracer := observe.NewTracer(observe.WithTracerName("my-app"))
//	rt := weft.NewRuntime(weft.WithObserver(tracer))
func NewTracer(opts ...TracerOption) *Tracer {
	config := defaultTracerConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return &Tracer{config: config}
}

// Observe implements weft.Observer.
func (tr *Tracer) Observe(ev weft.Event) {
	switch ev.Kind {
	case weft.EventFlushStart:
		ctx, span := tr.config.tracer.Start(tr.parentContext(), "weft.flush",
			trace.WithTimestamp(ev.Time))
		tr.stack = append(tr.stack, traceFrame{ctx: ctx, span: span, kind: weft.EventFlushStart})

	case weft.EventFlush:
		// Close everything down to and including the flush frame. Eval
		// frames above it can only remain after an abort.
		for len(tr.stack) > 0 {
			frame := tr.pop()
			if frame.span != nil {
				if frame.kind == weft.EventFlushStart {
					frame.span.SetAttributes(
						attribute.Int("weft.waves", ev.Wave),
						attribute.Int("weft.evaluations", ev.Evals),
					)
					frame.span.SetStatus(codes.Ok, "")
				}
				frame.span.End(trace.WithTimestamp(ev.Time))
			}
			if frame.kind == weft.EventFlushStart {
				break
			}
		}

	case weft.EventEvalStart:
		if tr.config.Filter != nil && !tr.config.Filter(ev) {
			tr.stack = append(tr.stack, traceFrame{ctx: tr.parentContext(), kind: weft.EventEvalStart})
			return
		}
		attrs := []attribute.KeyValue{
			attribute.String("weft.node", ev.Node.String()),
			attribute.String("weft.node_kind", ev.NodeKind.String()),
		}
		if ev.Name != "" {
			attrs = append(attrs, attribute.String("weft.name", ev.Name))
		}
		if ev.Wave > 0 {
			attrs = append(attrs, attribute.Int("weft.wave", ev.Wave))
		}
		if tr.config.AttributeExtractor != nil {
			attrs = append(attrs, tr.config.AttributeExtractor(ev)...)
		}
		ctx, span := tr.config.tracer.Start(tr.parentContext(), evalSpanName(ev),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(ev.Time))
		tr.stack = append(tr.stack, traceFrame{ctx: ctx, span: span, kind: weft.EventEvalStart})

	case weft.EventEval:
		if len(tr.stack) == 0 {
			return
		}
		frame := tr.pop()
		if frame.span == nil {
			return
		}
		if ev.Err != nil {
			frame.span.RecordError(ev.Err)
			frame.span.SetStatus(codes.Error, ev.Err.Error())
		} else {
			frame.span.SetStatus(codes.Ok, "")
		}
		frame.span.End(trace.WithTimestamp(ev.Time))

	case weft.EventError:
		// Cycle reports and budget aborts attach to whatever span is
		// open, usually the flush.
		if len(tr.stack) > 0 {
			if top := tr.stack[len(tr.stack)-1]; top.span != nil {
				top.span.RecordError(ev.Err)
			}
		}
	}
}

func (tr *Tracer) pop() traceFrame {
	frame := tr.stack[len(tr.stack)-1]
	tr.stack = tr.stack[:len(tr.stack)-1]
	return frame
}

// parentContext returns the context spans should start under: the
// innermost open frame, or the configured base context.
func (tr *Tracer) parentContext() context.Context {
	if len(tr.stack) > 0 {
		return tr.stack[len(tr.stack)-1].ctx
	}
	if tr.config.Context != nil {
		return tr.config.Context
	}
	return context.Background()
}

// evalSpanName creates a span name from the evaluation event.
func evalSpanName(ev weft.Event) string {
	if ev.Name != "" {
		return fmt.Sprintf("weft.eval %s", ev.Name)
	}
	return fmt.Sprintf("weft.eval %s", ev.NodeKind)
}
