// Package rtest provides testing helpers for reactive runtimes.
//
// The rtest package reduces boilerplate in packages that test against a
// live runtime: it wires a per-test runtime with recorded events and
// test-bound log output, and ships assertion helpers over the recording.
//
// # Quick Start
//
//	func TestCounter(t *testing.T) {
//	    rt, rec := rtest.New(t)
//	    n, setN := weft.CreateSignal(rt, 0, weft.SignalName[int]("n"))
//	    weft.CreateEffect(rt, func() weft.Cleanup {
//	        _ = n.Get()
//	        return nil
//	    })
//
//	    setN.Set(1)
//	    rtest.ExpectNoErrors(t, rec)
//	    rtest.ExpectWrites(t, rec, "n", 1)
//	}
//
// # Recording Events
//
// Recorder retains every instrumentation event a runtime emits. Query
// it directly for fine-grained assertions:
//
//	evals := rec.OfKind(weft.EventEval)
//	if evals[0].Name != "total" {
//	    t.Errorf("expected total to evaluate first, got %q", evals[0].Name)
//	}
//
// # Log Output
//
// Logger(t) returns a slog.Logger that writes through t.Logf, so
// runtime diagnostics show up attached to the failing test instead of
// interleaved on stderr.
package rtest
