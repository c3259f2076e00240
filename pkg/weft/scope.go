package weft

import "github.com/weft-dev/weft/internal/arena"

// scope is one node in the ownership tree. Every reactive node belongs
// to exactly one scope; disposing the scope retires the node.
type scope struct {
	parent    ScopeID
	children  []ScopeID
	owned     []NodeID
	cleanups  []func()
	ctx       map[any]any
	disposing bool
}

// CreateScope creates a child of parent and returns its id. A zero
// parent means the root scope. The new scope does not become current;
// use WithScope to run code under it.
func (rt *Runtime) CreateScope(parent ScopeID) (ScopeID, error) {
	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.disposed {
		return 0, ErrDisposed
	}
	if parent.IsZero() {
		parent = rt.root
	}
	p, ok := rt.lookupScope(parent)
	if !ok || p.disposing {
		return 0, ErrDisposed
	}
	id := ScopeID(rt.scopes.Insert(&scope{parent: parent}))
	p.children = append(p.children, id)
	rt.emit(Event{Kind: EventScopeCreated, Scope: id})
	return id, nil
}

// WithScope makes sc the current scope for the duration of fn, so
// nodes and child scopes created inside attach to it. The previous
// current scope is restored on every exit path, panics included.
func (rt *Runtime) WithScope(sc ScopeID, fn func()) error {
	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.disposed {
		return ErrDisposed
	}
	s, ok := rt.lookupScope(sc)
	if !ok || s.disposing {
		return ErrDisposed
	}
	prev := rt.current
	rt.current = sc
	defer func() { rt.current = prev }()
	fn()
	return nil
}

// OnCleanup registers fn on the current scope, to run when that scope
// is disposed. If the current scope is already gone, fn runs
// immediately.
func (rt *Runtime) OnCleanup(fn func()) {
	rt.lk.lock()
	defer rt.lk.unlock()

	s, ok := rt.lookupScope(rt.current)
	if rt.disposed || !ok || s.disposing {
		rt.invokeScopeCleanup(rt.current, fn)
		rt.maybeFlush()
		return
	}
	s.cleanups = append(s.cleanups, fn)
}

// RegisterCleanup registers fn on an explicit scope. Unlike OnCleanup
// it fails with ErrDisposed instead of running fn when the scope is
// gone.
func (rt *Runtime) RegisterCleanup(sc ScopeID, fn func()) error {
	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.disposed {
		return ErrDisposed
	}
	s, ok := rt.lookupScope(sc)
	if !ok || s.disposing {
		return ErrDisposed
	}
	s.cleanups = append(s.cleanups, fn)
	return nil
}

// DisposeScope disposes sc: children first (most recent first), then
// owned nodes (running effect cleanups and severing every edge from
// surviving nodes), then the scope's cleanups in reverse registration
// order, then storage. Disposing an already-disposed scope is a no-op.
func (rt *Runtime) DisposeScope(sc ScopeID) {
	rt.lk.lock()
	defer rt.lk.unlock()
	if rt.disposed {
		return
	}
	rt.disposeScopeLocked(sc)
	rt.maybeFlush() // writes made by cleanups were deferred until here
}

func (rt *Runtime) disposeScopeLocked(sc ScopeID) {
	s, ok := rt.lookupScope(sc)
	if !ok || s.disposing {
		return
	}
	s.disposing = true

	for i := len(s.children) - 1; i >= 0; i-- {
		rt.disposeScopeLocked(s.children[i])
	}

	for _, nid := range s.owned {
		n, ok := rt.lookupNode(nid)
		if !ok {
			continue
		}
		rt.severNode(nid, n)
		rt.emitNode(EventNodeDisposed, nid, n)
		rt.nodes.Remove(arena.Handle(nid))
	}

	for i := len(s.cleanups) - 1; i >= 0; i-- {
		rt.invokeScopeCleanup(sc, s.cleanups[i])
	}

	// The root scope is cleared, not reclaimed: the runtime stays usable
	// and later nodes attach to the same root.
	if sc == rt.root {
		s.children = nil
		s.owned = nil
		s.cleanups = nil
		s.ctx = nil
		s.disposing = false
		rt.emit(Event{Kind: EventScopeDisposed, Scope: sc})
		return
	}

	if p, ok := rt.lookupScope(s.parent); ok && !p.disposing {
		for i, c := range p.children {
			if c == sc {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}

	rt.scopes.Remove(arena.Handle(sc))
	rt.emit(Event{Kind: EventScopeDisposed, Scope: sc})
}

func (rt *Runtime) invokeScopeCleanup(sc ScopeID, fn func()) {
	rt.cleanupDepth++
	defer func() {
		rt.cleanupDepth--
		if r := recover(); r != nil {
			rt.Logger().Error("scope cleanup panicked", "scope", sc.String(), "panic", r)
		}
	}()
	fn()
}
