package weft

import (
	"runtime/debug"
	"time"
)

// idQueue is the scheduler's pending set: FIFO over node ids with
// duplicate suppression. A node can be marked many times between
// flush waves but runs at most once per wave.
type idQueue struct {
	ids  []NodeID
	seen map[NodeID]struct{}
}

func (q *idQueue) push(id NodeID) {
	if q.seen == nil {
		q.seen = make(map[NodeID]struct{})
	}
	if _, ok := q.seen[id]; ok {
		return
	}
	q.seen[id] = struct{}{}
	q.ids = append(q.ids, id)
}

// take drains the queue. The seen set resets with it so a node that is
// marked again by a later wave re-enters the queue.
func (q *idQueue) take() []NodeID {
	ids := q.ids
	q.ids = nil
	q.seen = nil
	return ids
}

func (q *idQueue) len() int { return len(q.ids) }

// writeNode installs a new value on a signal or stored node. Equal
// values short-circuit: no version bump, no marking, nothing runs.
func (rt *Runtime) writeNode(id NodeID, n *node, v any) {
	if n.equals != nil && n.equals(n.value, v) {
		return
	}
	n.value = v
	n.version++
	rt.emitNode(EventWrite, id, n)
	for _, subID := range n.subs {
		if sub, ok := rt.lookupNode(subID); ok {
			rt.markNode(subID, sub, stateDirty)
		}
	}
	rt.maybeFlush()
}

// markNode raises a node's staleness and schedules it if it is the kind
// that runs on its own (effects and eager memos). Direct subscribers of
// a write are marked dirty, everything downstream only check: a check
// node re-verifies its sources before recomputing, which is what lets
// an equality short-circuit upstream stop the wave. Scheduling happens
// even when the node is already stale (a node whose last run failed is
// stale but no longer queued); the staleness walk itself stops at
// already-stale nodes, so repeated writes stay cheap.
func (rt *Runtime) markNode(id NodeID, n *node, st nodeState) {
	if n.kind == KindEffect || (n.kind == KindMemo && n.eager) {
		rt.pending.push(id)
	}
	if n.state >= st {
		return
	}
	wasClean := n.state == stateClean
	n.state = st
	if wasClean {
		for _, subID := range n.subs {
			if sub, ok := rt.lookupNode(subID); ok {
				rt.markNode(subID, sub, stateCheck)
			}
		}
	}
}

// maybeFlush runs the pending queue unless something is holding it
// back: an open batch, a flush already in progress, a disposal running
// user cleanups, or an evaluation on the stack. Whatever holds it back
// calls maybeFlush again when it unwinds.
func (rt *Runtime) maybeFlush() {
	if rt.batchDepth > 0 || rt.flushing || rt.cleanupDepth > 0 || len(rt.obsStack) > 0 {
		return
	}
	if rt.pending.len() == 0 {
		return
	}
	rt.flush()
}

// flush drains the pending queue in waves. Each wave takes the queued
// nodes, orders them so dependencies settle before dependents, and
// settles each one. Effects that write during their run queue the next
// wave. A failed node is logged, skipped, and parked for the next
// flush; nodes that do not depend on it still run. The flush budget
// caps evaluations per flush so a write storm degrades into an error
// instead of a hang.
func (rt *Runtime) flush() {
	rt.flushing = true
	rt.evalCount = 0
	defer func() {
		rt.flushing = false
		rt.curWave = 0
	}()

	start := time.Now()
	rt.emit(Event{Kind: EventFlushStart})

	wave := 0
	aborted := false
	var failed []NodeID
	for rt.pending.len() > 0 && !aborted {
		wave++
		rt.curWave = wave
		order := rt.topoOrder(rt.pending.take())
		for i, id := range order {
			n, ok := rt.lookupNode(id)
			if !ok {
				// Disposed after it was queued. Queued ids are not
				// unqueued on disposal; liveness is checked here.
				continue
			}
			if n.state == stateClean && n.hasRun {
				continue
			}
			if rt.budget > 0 && rt.evalCount >= rt.budget {
				for _, rest := range order[i:] {
					rt.pending.push(rest)
				}
				err := nodeErr("flush", id, n.kind, ErrBudgetExceeded)
				rt.emit(Event{Kind: EventError, Node: id, NodeKind: n.kind, Scope: n.scope, Name: n.name, Wave: wave, Err: err})
				rt.Logger().Error("flush budget exceeded, leaving remaining nodes stale",
					"budget", rt.budget, "wave", wave, "remaining", len(order)-i)
				aborted = true
				break
			}
			if err := rt.settleNode(id, n); err != nil {
				// Already logged at the failure point. Independent
				// nodes keep going; this one retries next flush.
				failed = append(failed, id)
				continue
			}
		}
	}
	for _, id := range failed {
		rt.pending.push(id)
	}

	rt.emit(Event{Kind: EventFlush, Wave: wave, Evals: rt.evalCount, Dur: time.Since(start)})
}

// topoOrder sorts the scheduled ids so every node comes after the
// scheduled nodes it depends on. Depth-first postorder over source
// edges restricted to the scheduled set; ties keep queue order, so the
// result is deterministic for a given write sequence.
func (rt *Runtime) topoOrder(ids []NodeID) []NodeID {
	if len(ids) <= 1 {
		return ids
	}
	inSet := make(map[NodeID]struct{}, len(ids))
	for _, id := range ids {
		inSet[id] = struct{}{}
	}
	visited := make(map[NodeID]struct{}, len(ids))
	order := make([]NodeID, 0, len(ids))
	var visit func(id NodeID)
	visit = func(id NodeID) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		if n, ok := rt.lookupNode(id); ok {
			for _, ref := range n.sources {
				if _, in := inSet[ref.id]; in {
					visit(ref.id)
				}
			}
		}
		order = append(order, id)
	}
	for _, id := range ids {
		visit(id)
	}
	return order
}

// settleNode brings a node up to date, recomputing only if it has to.
// A check node first settles its stale memo sources, then compares the
// version it last read against each source's current version; if none
// moved, the node is clean again without running. The settling flag
// catches evaluation re-entering itself through a dependency cycle.
// An error from a source settle propagates and leaves this node stale,
// so its dependents stay marked rather than reading a bad value.
func (rt *Runtime) settleNode(id NodeID, n *node) error {
	if n.settling {
		err := nodeErr("evaluate", id, n.kind, ErrCyclicDependency)
		rt.emit(Event{Kind: EventError, Node: id, NodeKind: n.kind, Scope: n.scope, Name: n.name, Wave: rt.curWave, Err: err})
		rt.Logger().Error("dependency cycle detected", "node", id.String(), "kind", n.kind.String(), "name", n.name)
		return err
	}
	if n.state == stateClean && n.hasRun {
		return nil
	}
	n.settling = true
	defer func() { n.settling = false }()

	// A failed run recorded its edges mid-evaluation, stamping the
	// sources' already-advanced versions, so version comparison alone
	// would wrongly conclude nothing changed. The failed flag forces
	// the re-run the versions can no longer justify.
	need := !n.hasRun || n.failed
	if !need {
		for _, ref := range n.sources {
			src, ok := rt.lookupNode(ref.id)
			if !ok {
				continue
			}
			if src.kind == KindMemo && (src.state != stateClean || !src.hasRun) {
				if err := rt.settleNode(ref.id, src); err != nil {
					return err
				}
			}
			if src.version != ref.version {
				need = true
				break
			}
		}
	}
	if !need {
		n.state = stateClean
		rt.emitNode(EventSkip, id, n)
		return nil
	}
	return rt.evaluateNode(id, n)
}

// evaluateNode reruns a node's user code. Sources recorded by the
// previous run are severed first and rebuilt from whatever this run
// actually reads. An effect's pending cleanup runs before its body.
// The node's owning scope is current for the duration, so context
// lookups and nodes created by the body attach where this node lives,
// not where the triggering write happened.
// Panics out of user code are contained here: a NodeError panic (a Get
// inside the body hit a disposed or conflicted node) surfaces as that
// error, anything else is wrapped with its stack. Either way the node
// stays stale and its dependents stay marked.
func (rt *Runtime) evaluateNode(id NodeID, n *node) error {
	prevScope := rt.current
	rt.current = n.scope
	defer func() { rt.current = prevScope }()

	if n.kind == KindEffect && n.cleanup != nil {
		cl := n.cleanup
		n.cleanup = nil
		rt.invokeCleanup(id, cl)
	}
	rt.severSources(id, n)

	first := !n.hasRun
	prev := n.value

	// Clean before running, not after: a body that writes one of its
	// own sources re-marks this node during the run, and that mark
	// must survive so the next wave picks it up.
	n.state = stateClean
	rt.evalCount++

	rt.obsStack = append(rt.obsStack, id)
	rt.emitNode(EventEvalStart, id, n)
	startedAt := time.Now()

	var result any
	var cleanup Cleanup
	var evalErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if ne, ok := r.(*NodeError); ok {
					evalErr = ne
				} else {
					evalErr = &EvalError{Value: r, Stack: debug.Stack()}
				}
			}
		}()
		switch n.kind {
		case KindMemo:
			result = n.compute()
		case KindEffect:
			cleanup = n.run()
		}
	}()

	rt.obsStack = rt.obsStack[:len(rt.obsStack)-1]
	dur := time.Since(startedAt)

	if evalErr != nil {
		n.state = stateDirty
		n.failed = true
		rt.emit(Event{Kind: EventEval, Node: id, NodeKind: n.kind, Scope: n.scope, Name: n.name, Wave: rt.curWave, Dur: dur, Err: evalErr})
		rt.Logger().Error("evaluation failed",
			"node", id.String(), "kind", n.kind.String(), "name", n.name, "error", evalErr)
		if ne, ok := evalErr.(*NodeError); ok {
			return ne
		}
		return nodeErr("evaluate", id, n.kind, evalErr)
	}

	if _, alive := rt.lookupNode(id); !alive {
		// The body disposed its own scope. The node is gone; all that
		// is left to honor is the cleanup this final run returned.
		if cleanup != nil {
			rt.invokeCleanup(id, cleanup)
		}
		rt.emit(Event{Kind: EventEval, Node: id, NodeKind: n.kind, Scope: n.scope, Name: n.name, Wave: rt.curWave, Dur: dur})
		return nil
	}

	n.hasRun = true
	n.failed = false
	switch n.kind {
	case KindMemo:
		if first || n.equals == nil || !n.equals(prev, result) {
			n.value = result
			n.version++
		}
	case KindEffect:
		n.cleanup = cleanup
	}
	rt.emit(Event{Kind: EventEval, Node: id, NodeKind: n.kind, Scope: n.scope, Name: n.name, Wave: rt.curWave, Dur: dur})
	return nil
}
