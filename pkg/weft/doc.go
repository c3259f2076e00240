// Package weft is a fine-grained reactive runtime: signals hold state,
// memos derive from it, effects react to it, and the dependency graph
// between them is discovered by running the code and watching what it
// reads.
//
// # Core Types
//
// Signals are split into a read handle and a write handle:
//
//	count, setCount := weft.CreateSignal(rt, 0)
//	v := count.Get()   // subscribes the running evaluation, if any
//	setCount.Set(5)    // re-runs whatever read count
//
// Memo[T] caches a derived computation and recomputes lazily, on the
// next read after a source changed:
//
//	doubled := weft.CreateMemo(rt, func() int { return count.Get() * 2 })
//	v := doubled.Get()
//
// CreateEffect runs a side effect now and again whenever a source
// changes. The returned Cleanup runs before each re-run and at
// disposal:
//
//	weft.CreateEffect(rt, func() weft.Cleanup {
//		fmt.Println("count is", count.Get())
//		return nil
//	})
//
// Dependencies are re-discovered on every run, so a read behind a
// branch not taken this time is not a dependency this time.
//
// # Scheduling
//
// Writes outside a batch propagate immediately. Batches coalesce:
//
//	rt.Batch(func() {
//		setA.Set(1)
//		setB.Set(2)
//	}) // everything downstream runs once, at the close
//
// Within a flush, nodes run in dependency order, so a node that fans in
// from several changed sources still runs once per wave.
//
// # Ownership
//
// Every node belongs to a scope. Disposing a scope disposes its
// children, then its nodes, then runs cleanups registered with
// OnCleanup in reverse order. Handles into a disposed scope fail with
// ErrDisposed; they are never reused for younger nodes.
//
// # Concurrency
//
// A Runtime admits one evaluation at a time. Calls from other
// goroutines block until the running one finishes, so user code never
// observes a half-propagated graph. Calls the running evaluation makes
// re-enter freely.
package weft
