package rtest

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/weft-dev/weft/pkg/weft"
)

// New creates a runtime wired for a test: events flow into the returned
// Recorder, log output goes through t, and the runtime is disposed when
// the test ends. Extra options are applied after the test wiring.
//
// Example:
//
//	rt, rec := rtest.New(t)
//	s, set := weft.CreateSignal(rt, 0)
func New(t *testing.T, opts ...weft.RuntimeOption) (*weft.Runtime, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	all := append([]weft.RuntimeOption{
		weft.WithLogger(Logger(t)),
		weft.WithObserver(rec),
	}, opts...)
	rt := weft.NewRuntime(all...)
	t.Cleanup(rt.Dispose)
	return rt, rec
}

// Logger returns a slog.Logger that writes through t.Logf.
func Logger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", bytes.TrimRight(p, "\n"))
	return len(p), nil
}

// ExpectNoErrors asserts that no observed event carries an error.
//
// Example:
//
//	rtest.ExpectNoErrors(t, rec)
func ExpectNoErrors(t *testing.T, rec *Recorder) {
	t.Helper()
	errs := rec.Errors()
	if len(errs) > 0 {
		t.Errorf("expected no error events, got %d (first: %v)", len(errs), errs[0].Err)
	}
}

// ExpectEvals asserts that the named node completed exactly want
// successful evaluations.
//
// Example:
//
//	rtest.ExpectEvals(t, rec, "total", 2)
func ExpectEvals(t *testing.T, rec *Recorder, name string, want int) {
	t.Helper()
	if got := rec.EvalsOf(name); got != want {
		t.Errorf("expected %d evaluations of %q, got %d", want, name, got)
	}
}

// ExpectWrites asserts that the named node received exactly want
// effective writes. Equal-value writes do not count: the runtime
// short-circuits them before any event is emitted.
//
// Example:
//
//	rtest.ExpectWrites(t, rec, "n", 1)
func ExpectWrites(t *testing.T, rec *Recorder, name string, want int) {
	t.Helper()
	if got := rec.WritesOf(name); got != want {
		t.Errorf("expected %d writes of %q, got %d", want, name, got)
	}
}

// ExpectKindCount asserts that exactly want events of the given kind
// were observed.
func ExpectKindCount(t *testing.T, rec *Recorder, kind weft.EventKind, want int) {
	t.Helper()
	if got := rec.CountKind(kind); got != want {
		t.Errorf("expected %d %s events, got %d", want, kind, got)
	}
}
