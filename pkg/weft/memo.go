package weft

// memoConfig collects per-memo options.
type memoConfig[T any] struct {
	equals func(a, b T) bool
	name   string
	eager  bool
}

// MemoOption configures a memo at creation.
type MemoOption[T any] func(*memoConfig[T])

// MemoEquals overrides the memo's equality. A recompute whose result is
// equal to the cached value does not propagate to dependents.
func MemoEquals[T any](eq func(a, b T) bool) MemoOption[T] {
	return func(c *memoConfig[T]) { c.equals = eq }
}

// MemoName names the memo for logs, dumps and state snapshots.
func MemoName[T any](name string) MemoOption[T] {
	return func(c *memoConfig[T]) { c.name = name }
}

// Eager switches the memo from the default pull policy to push: it
// evaluates at creation and recomputes during every flush that marks
// it, whether or not anything reads it.
func Eager[T any]() MemoOption[T] {
	return func(c *memoConfig[T]) { c.eager = true }
}

// Memo is the read handle of a cached derived value.
//
// Memos are lazy by default: a dirty memo recomputes on its next read,
// not at write time, so a memo nothing reads costs nothing when its
// sources change. Use Eager to opt into recomputation on write.
type Memo[T any] struct {
	rt *Runtime
	id NodeID
}

// CreateMemo creates a memo owned by the runtime's current scope.
// compute runs with the memo on the observer stack, so its reads become
// the memo's sources; each recompute re-tracks from scratch. It panics
// with a *NodeError when the runtime or current scope is disposed.
func CreateMemo[T any](rt *Runtime, compute func() T, opts ...MemoOption[T]) Memo[T] {
	rt.lk.lock()
	defer rt.lk.unlock()

	cfg := memoConfig[T]{equals: DefaultEquals[T]}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := &node{
		kind:    KindMemo,
		name:    cfg.name,
		state:   stateDirty,
		equals:  wrapEquals(cfg.equals),
		compute: func() any { return compute() },
		eager:   cfg.eager,
	}
	id, nerr := rt.createNode(n)
	if nerr != nil {
		panic(nerr)
	}
	if cfg.eager {
		if err := rt.settleNode(id, n); err != nil {
			rt.Logger().Error("eager memo failed at creation", "node", id.String(), "name", n.name, "error", err)
		}
		rt.maybeFlush()
	}
	return Memo[T]{rt: rt, id: id}
}

// ID returns the underlying node id.
func (m Memo[T]) ID() NodeID { return m.id }

// Get returns the memo's value, recomputing first if any source changed
// since the last evaluation. When an evaluation is running, the read
// subscribes it to this memo. Get panics with a *NodeError on a
// disposed handle or a cycle; use TryGet for the error form.
func (m Memo[T]) Get() T {
	v, err := m.TryGet()
	if err != nil {
		panic(err)
	}
	return v
}

// TryGet is Get with an error instead of a panic.
func (m Memo[T]) TryGet() (T, error) {
	var zero T
	m.rt.lk.lock()
	defer m.rt.lk.unlock()

	n, nerr := m.rt.resolveNode("get", m.id)
	if nerr != nil {
		return zero, nerr
	}
	if err := m.rt.settleNode(m.id, n); err != nil {
		return zero, err
	}
	m.rt.trackRead(m.id, n)
	v := n.value.(T)
	m.rt.maybeFlush()
	return v, nil
}

// Peek returns the memo's current value without subscribing. A dirty
// memo still recomputes first: peeking never returns a stale value.
func (m Memo[T]) Peek() T {
	v, err := m.TryPeek()
	if err != nil {
		panic(err)
	}
	return v
}

// TryPeek is Peek with an error instead of a panic.
func (m Memo[T]) TryPeek() (T, error) {
	var zero T
	m.rt.lk.lock()
	defer m.rt.lk.unlock()

	n, nerr := m.rt.resolveNode("peek", m.id)
	if nerr != nil {
		return zero, nerr
	}
	if err := m.rt.settleNode(m.id, n); err != nil {
		return zero, err
	}
	v := n.value.(T)
	m.rt.maybeFlush()
	return v, nil
}
