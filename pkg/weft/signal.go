package weft

// signalConfig collects per-signal options.
type signalConfig[T any] struct {
	equals func(a, b T) bool
	name   string
}

// SignalOption configures a signal at creation.
type SignalOption[T any] func(*signalConfig[T])

// SignalEquals overrides the signal's equality. Writes of an equal
// value are complete no-ops: no version bump, no propagation. Pass
// NeverEqual to force propagation on every write.
func SignalEquals[T any](eq func(a, b T) bool) SignalOption[T] {
	return func(c *signalConfig[T]) { c.equals = eq }
}

// SignalName names the signal for logs, dumps and state snapshots.
func SignalName[T any](name string) SignalOption[T] {
	return func(c *signalConfig[T]) { c.name = name }
}

// ReadSignal is the read half of a signal. It is a small value handle:
// copy it freely, pass it anywhere. Holding one does not keep the
// signal alive — once the owning scope is disposed, every access fails
// with ErrDisposed.
type ReadSignal[T any] struct {
	rt *Runtime
	id NodeID
}

// WriteSignal is the write half of a signal.
type WriteSignal[T any] struct {
	rt *Runtime
	id NodeID
}

// RWSignal combines both halves of one signal.
type RWSignal[T any] struct {
	ReadSignal[T]
	WriteSignal[T]
}

// ID returns the underlying node id.
func (s RWSignal[T]) ID() NodeID { return s.ReadSignal.ID() }

// Split returns the two halves.
func (s RWSignal[T]) Split() (ReadSignal[T], WriteSignal[T]) {
	return s.ReadSignal, s.WriteSignal
}

// CreateSignal creates a signal owned by the runtime's current scope
// and returns its read and write handles. It panics with a *NodeError
// when the runtime or current scope is disposed.
func CreateSignal[T any](rt *Runtime, initial T, opts ...SignalOption[T]) (ReadSignal[T], WriteSignal[T]) {
	rt.lk.lock()
	defer rt.lk.unlock()

	cfg := signalConfig[T]{equals: DefaultEquals[T]}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := &node{
		kind:   KindSignal,
		name:   cfg.name,
		state:  stateClean,
		hasRun: true,
		value:  initial,
		equals: wrapEquals(cfg.equals),
	}
	id, nerr := rt.createNode(n)
	if nerr != nil {
		panic(nerr)
	}
	return ReadSignal[T]{rt: rt, id: id}, WriteSignal[T]{rt: rt, id: id}
}

// CreateRWSignal creates a signal and returns the combined handle.
func CreateRWSignal[T any](rt *Runtime, initial T, opts ...SignalOption[T]) RWSignal[T] {
	r, w := CreateSignal(rt, initial, opts...)
	return RWSignal[T]{ReadSignal: r, WriteSignal: w}
}

// ID returns the underlying node id.
func (s ReadSignal[T]) ID() NodeID { return s.id }

// Get returns the current value. When an evaluation is running, the
// read subscribes it to this signal. Get panics with a *NodeError on a
// disposed handle or a borrow conflict; use TryGet for the error form.
func (s ReadSignal[T]) Get() T {
	v, err := s.TryGet()
	if err != nil {
		panic(err)
	}
	return v
}

// TryGet is Get with an error instead of a panic.
func (s ReadSignal[T]) TryGet() (T, error) {
	var zero T
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	n, nerr := s.rt.resolveNode("get", s.id)
	if nerr != nil {
		return zero, nerr
	}
	if n.borrowed {
		return zero, nodeErr("get", s.id, n.kind, ErrBorrowConflict)
	}
	s.rt.trackRead(s.id, n)
	return n.value.(T), nil
}

// Peek returns the current value without subscribing, regardless of any
// running evaluation. This is the untracked read used to snapshot state
// across a render boundary.
func (s ReadSignal[T]) Peek() T {
	v, err := s.TryPeek()
	if err != nil {
		panic(err)
	}
	return v
}

// TryPeek is Peek with an error instead of a panic.
func (s ReadSignal[T]) TryPeek() (T, error) {
	var zero T
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	n, nerr := s.rt.resolveNode("peek", s.id)
	if nerr != nil {
		return zero, nerr
	}
	if n.borrowed {
		return zero, nodeErr("peek", s.id, n.kind, ErrBorrowConflict)
	}
	return n.value.(T), nil
}

// ID returns the underlying node id.
func (s WriteSignal[T]) ID() NodeID { return s.id }

// Set replaces the value. Writes of an equal value (under the signal's
// configured equality) are no-ops. Outside a batch an effective write
// synchronously propagates to every affected memo and effect before
// returning. Set panics with a *NodeError on a disposed handle; use
// TrySet for the error form.
func (s WriteSignal[T]) Set(v T) {
	if err := s.TrySet(v); err != nil {
		panic(err)
	}
}

// TrySet is Set with an error instead of a panic.
func (s WriteSignal[T]) TrySet(v T) error {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	n, nerr := s.rt.resolveNode("set", s.id)
	if nerr != nil {
		return nerr
	}
	if n.borrowed {
		return nodeErr("set", s.id, n.kind, ErrBorrowConflict)
	}
	s.rt.writeNode(s.id, n, v)
	return nil
}

// Update replaces the value through fn, which receives the current
// value. The node is exclusively borrowed while fn runs: any read or
// write of this same signal from inside fn fails with ErrBorrowConflict.
func (s WriteSignal[T]) Update(fn func(T) T) {
	if err := s.TryUpdate(fn); err != nil {
		panic(err)
	}
}

// TryUpdate is Update with an error instead of a panic.
func (s WriteSignal[T]) TryUpdate(fn func(T) T) error {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	n, nerr := s.rt.resolveNode("update", s.id)
	if nerr != nil {
		return nerr
	}
	if n.borrowed {
		return nodeErr("update", s.id, n.kind, ErrBorrowConflict)
	}
	cur := n.value.(T)
	var next T
	func() {
		n.borrowed = true
		defer func() { n.borrowed = false }()
		next = fn(cur)
	}()
	s.rt.writeNode(s.id, n, next)
	return nil
}
