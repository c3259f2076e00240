package weft

import "github.com/weft-dev/weft/internal/arena"

// effectConfig collects per-effect options.
type effectConfig struct {
	name string
}

// EffectOption configures an effect at creation.
type EffectOption func(*effectConfig)

// EffectName names the effect for logs, dumps and instrumentation.
func EffectName(name string) EffectOption {
	return func(c *effectConfig) { c.name = name }
}

// Effect is the handle of a side-effecting computation. Effects are
// graph sinks: they track what they read and re-run when it changes,
// but nothing can subscribe to them.
type Effect struct {
	rt *Runtime
	id NodeID
}

// CreateEffect creates an effect owned by the runtime's current scope
// and runs it once immediately, establishing its sources. The body may
// return a Cleanup (or nil), which runs before the next re-run and at
// disposal.
//
// Effects re-run only when a source actually changed value; writes that
// short-circuit on equality never wake an effect. A body that panics is
// contained: the failure is logged, the effect stays dirty, and the
// rest of the propagation pass continues.
func CreateEffect(rt *Runtime, fn func() Cleanup, opts ...EffectOption) Effect {
	rt.lk.lock()
	defer rt.lk.unlock()

	cfg := effectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := &node{
		kind:  KindEffect,
		name:  cfg.name,
		state: stateDirty,
		run:   fn,
	}
	id, nerr := rt.createNode(n)
	if nerr != nil {
		panic(nerr)
	}
	if err := rt.settleNode(id, n); err != nil {
		rt.Logger().Error("effect failed at creation", "node", id.String(), "name", n.name, "error", err)
	}
	rt.maybeFlush()
	return Effect{rt: rt, id: id}
}

// ID returns the underlying node id.
func (e Effect) ID() NodeID { return e.id }

// Dispose retires just this effect ahead of its owning scope: the
// pending cleanup runs, its edges are severed, and the node is
// reclaimed. Any id still queued for evaluation is skipped. Idempotent.
func (e Effect) Dispose() {
	e.rt.lk.lock()
	defer e.rt.lk.unlock()

	n, ok := e.rt.lookupNode(e.id)
	if !ok {
		return
	}
	e.rt.severNode(e.id, n)
	e.rt.emitNode(EventNodeDisposed, e.id, n)
	e.rt.nodes.Remove(arena.Handle(e.id))
	e.rt.maybeFlush()
}
