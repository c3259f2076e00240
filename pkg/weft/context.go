package weft

import "reflect"

// ProvideContext associates key with value on sc. A zero sc means the
// current scope. Values provided on a scope shadow the same key on any
// ancestor for everything created under that scope.
func (rt *Runtime) ProvideContext(sc ScopeID, key, value any) error {
	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.disposed {
		return ErrDisposed
	}
	if sc.IsZero() {
		sc = rt.current
	}
	s, ok := rt.lookupScope(sc)
	if !ok || s.disposing {
		return ErrDisposed
	}
	if s.ctx == nil {
		s.ctx = make(map[any]any)
	}
	s.ctx[key] = value
	return nil
}

// UseContext resolves key on sc or the nearest ancestor that provides
// it. A zero sc means the current scope. Lookups never subscribe:
// re-providing a key does not re-run consumers that already read it.
func (rt *Runtime) UseContext(sc ScopeID, key any) (any, bool) {
	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.disposed {
		return nil, false
	}
	if sc.IsZero() {
		sc = rt.current
	}
	for !sc.IsZero() {
		s, ok := rt.lookupScope(sc)
		if !ok {
			return nil, false
		}
		if v, ok := s.ctx[key]; ok {
			return v, true
		}
		sc = s.parent
	}
	return nil, false
}

func ctxKeyFor[T any]() any {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Provide publishes v on the current scope, keyed by its static type.
// One value per type per scope; providing again overwrites.
func Provide[T any](rt *Runtime, v T) error {
	return rt.ProvideContext(0, ctxKeyFor[T](), v)
}

// ProvideAt is Provide on an explicit scope.
func ProvideAt[T any](rt *Runtime, sc ScopeID, v T) error {
	return rt.ProvideContext(sc, ctxKeyFor[T](), v)
}

// Use retrieves the nearest T provided at or above the current scope.
func Use[T any](rt *Runtime) (T, bool) {
	v, ok := rt.UseContext(0, ctxKeyFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// UseAt is Use starting from an explicit scope.
func UseAt[T any](rt *Runtime, sc ScopeID) (T, bool) {
	v, ok := rt.UseContext(sc, ctxKeyFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}
