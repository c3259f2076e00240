package weft

// StartBatch opens a batch. Writes inside a batch mark and queue as
// usual, but nothing runs until the outermost batch closes, so several
// writes to one fan-in coalesce into a single evaluation. Batches nest:
// only the outermost EndBatch flushes.
func (rt *Runtime) StartBatch() {
	rt.lk.lock()
	defer rt.lk.unlock()
	rt.batchDepth++
	if rt.batchDepth == 1 {
		rt.emit(Event{Kind: EventBatchStart})
	}
}

// EndBatch closes the innermost open batch, flushing if it was the
// outermost. EndBatch with no open batch is a no-op.
func (rt *Runtime) EndBatch() {
	rt.lk.lock()
	defer rt.lk.unlock()
	if rt.batchDepth == 0 {
		return
	}
	rt.batchDepth--
	if rt.batchDepth == 0 {
		rt.emit(Event{Kind: EventBatchEnd})
		rt.maybeFlush()
	}
}

// Batch runs fn with a batch open and closes it on every exit path. If
// fn panics the batch still closes and queued work still flushes before
// the panic continues.
func (rt *Runtime) Batch(fn func()) {
	rt.StartBatch()
	defer rt.EndBatch()
	fn()
}

// Untracked runs fn with read tracking suspended: Gets inside fn return
// values without subscribing the surrounding evaluation. Writes inside
// fn behave normally but flush only after fn returns.
func (rt *Runtime) Untracked(fn func()) {
	rt.lk.lock()
	defer rt.lk.unlock()
	rt.obsStack = append(rt.obsStack, 0)
	defer func() {
		rt.obsStack = rt.obsStack[:len(rt.obsStack)-1]
		rt.maybeFlush()
	}()
	fn()
}

// Untrack is Untracked for a producing fn: it returns fn's result.
func Untrack[T any](rt *Runtime, fn func() T) T {
	var v T
	rt.Untracked(func() { v = fn() })
	return v
}
