package weft

// Setter is the write half of anything that accepts a T. WriteSignal
// and Stored both satisfy it; MapSetter builds derived ones.
type Setter[T any] interface {
	Set(T)
	TrySet(T) error
}

// SetterFunc adapts a plain function to Setter. TrySet always reports
// nil.
type SetterFunc[T any] func(T)

func (f SetterFunc[T]) Set(v T)          { f(v) }
func (f SetterFunc[T]) TrySet(v T) error { f(v); return nil }

type mappedSetter[T, U any] struct {
	dst Setter[U]
	fn  func(T) U
}

func (m mappedSetter[T, U]) Set(v T)          { m.dst.Set(m.fn(v)) }
func (m mappedSetter[T, U]) TrySet(v T) error { return m.dst.TrySet(m.fn(v)) }

// MapSetter derives a Setter[T] that projects each write through fn
// before handing it to dst.
func MapSetter[T, U any](dst Setter[U], fn func(T) U) Setter[T] {
	return mappedSetter[T, U]{dst: dst, fn: fn}
}

var (
	_ Setter[int] = WriteSignal[int]{}
	_ Setter[int] = Stored[int]{}
	_ Setter[int] = SetterFunc[int](nil)
)

// Stored is an arena-owned box outside the graph: reads never
// subscribe and writes never propagate. It exists for values that want
// scope-tied lifetime, disposed with their owner, without reactivity.
type Stored[T any] struct {
	rt *Runtime
	id NodeID
}

// CreateStored boxes v in the current scope. Panics with a *NodeError
// if the runtime or current scope is disposed.
func CreateStored[T any](rt *Runtime, v T) Stored[T] {
	return createStored(rt, "", v)
}

// CreateStoredNamed is CreateStored with a name, making the box
// addressable in dumps, visits and named writes.
func CreateStoredNamed[T any](rt *Runtime, name string, v T) Stored[T] {
	return createStored(rt, name, v)
}

func createStored[T any](rt *Runtime, name string, v T) Stored[T] {
	rt.lk.lock()
	defer rt.lk.unlock()

	n := &node{
		kind:   KindStored,
		name:   name,
		state:  stateClean,
		hasRun: true,
		value:  v,
	}
	id, nerr := rt.createNode(n)
	if nerr != nil {
		panic(nerr)
	}
	return Stored[T]{rt: rt, id: id}
}

// ID returns the underlying node id.
func (s Stored[T]) ID() NodeID { return s.id }

// Get returns the stored value. Panics with a *NodeError after the
// owning scope is disposed.
func (s Stored[T]) Get() T {
	v, err := s.TryGet()
	if err != nil {
		panic(err)
	}
	return v
}

// TryGet is Get with an error instead of a panic.
func (s Stored[T]) TryGet() (T, error) {
	var zero T
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	n, nerr := s.rt.resolveNode("get", s.id)
	if nerr != nil {
		return zero, nerr
	}
	return n.value.(T), nil
}

// Set replaces the stored value. Nothing observes the change.
func (s Stored[T]) Set(v T) {
	if err := s.TrySet(v); err != nil {
		panic(err)
	}
}

// TrySet is Set with an error instead of a panic.
func (s Stored[T]) TrySet(v T) error {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	n, nerr := s.rt.resolveNode("set", s.id)
	if nerr != nil {
		return nerr
	}
	n.value = v
	return nil
}

// Update applies fn to the stored value in place.
func (s Stored[T]) Update(fn func(T) T) {
	if err := s.TryUpdate(fn); err != nil {
		panic(err)
	}
}

// TryUpdate is Update with an error instead of a panic. Re-entering the
// same box from inside fn fails with ErrBorrowConflict.
func (s Stored[T]) TryUpdate(fn func(T) T) error {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	n, nerr := s.rt.resolveNode("update", s.id)
	if nerr != nil {
		return nerr
	}
	if n.borrowed {
		return nodeErr("update", s.id, n.kind, ErrBorrowConflict)
	}
	n.borrowed = true
	v := func() T {
		defer func() { n.borrowed = false }()
		return fn(n.value.(T))
	}()
	n.value = v
	return nil
}
