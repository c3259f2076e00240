package weft

import "github.com/weft-dev/weft/internal/arena"

// NodeID is an opaque generation-tagged handle to a reactive node. The
// zero NodeID is invalid. A NodeID outlives its node only as a key: once
// the owning scope is disposed, every operation through it fails with
// ErrDisposed.
type NodeID arena.Handle

// IsZero reports whether the id is the invalid zero handle.
func (id NodeID) IsZero() bool { return arena.Handle(id).IsZero() }

func (id NodeID) String() string {
	if id.IsZero() {
		return "n0"
	}
	return "n" + arena.Handle(id).String()
}

// ScopeID is an opaque generation-tagged handle to a scope.
type ScopeID arena.Handle

// IsZero reports whether the id is the invalid zero handle.
func (id ScopeID) IsZero() bool { return arena.Handle(id).IsZero() }

func (id ScopeID) String() string {
	if id.IsZero() {
		return "s0"
	}
	return "s" + arena.Handle(id).String()
}

// NodeKind identifies the behavior of a node. The set is closed: the
// scheduler dispatches on it directly.
type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	KindSignal
	KindMemo
	KindEffect
	KindStored
)

func (k NodeKind) String() string {
	switch k {
	case KindSignal:
		return "signal"
	case KindMemo:
		return "memo"
	case KindEffect:
		return "effect"
	case KindStored:
		return "stored"
	default:
		return "invalid"
	}
}

// Cleanup is returned by effect bodies to release per-run resources.
// It runs before the next re-run and when the effect is disposed.
// Returning nil means no cleanup.
type Cleanup func()

// nodeState tracks where a node sits in the dirty protocol.
//
//	clean: cached value/last run is consistent with sources
//	check: some transitive source may have changed
//	dirty: a direct source changed (or the node never evaluated)
type nodeState uint8

const (
	stateClean nodeState = iota
	stateCheck
	stateDirty
)

// sourceRef is one dependency edge with the source version observed at
// the subscriber's last evaluation. Version comparison decides staleness.
type sourceRef struct {
	id      NodeID
	version uint64
}

type node struct {
	kind  NodeKind
	name  string
	scope ScopeID

	state    nodeState
	version  uint64 // bumped on every effective value change
	hasRun   bool   // evaluated at least once
	failed   bool   // last evaluation failed; the next settle must re-run
	borrowed bool   // exclusive Update in progress
	settling bool   // on the current settle path; re-entry is a cycle

	value   any
	equals  func(a, b any) bool // signals, memos
	compute func() any          // memos
	run     func() Cleanup      // effects
	cleanup Cleanup             // pending effect cleanup
	eager   bool                // memo recompute policy

	sources []sourceRef
	subs    []NodeID
}

// addEdge links obs as a subscriber of src, recording src's current
// version. Duplicate reads within one evaluation keep the first edge.
func (rt *Runtime) addEdge(srcID NodeID, src *node, obsID NodeID, obs *node) {
	for _, ref := range obs.sources {
		if ref.id == srcID {
			return
		}
	}
	obs.sources = append(obs.sources, sourceRef{id: srcID, version: src.version})
	for _, s := range src.subs {
		if s == obsID {
			return
		}
	}
	src.subs = append(src.subs, obsID)
}

// severSources drops every edge from obs to its sources, removing obs
// from each surviving source's subscriber list. Runs before every
// re-evaluation and at disposal, so the graph never holds edges from
// branches no longer taken.
func (rt *Runtime) severSources(obsID NodeID, obs *node) {
	for _, ref := range obs.sources {
		if src, ok := rt.lookupNode(ref.id); ok {
			removeSub(src, obsID)
		}
	}
	obs.sources = obs.sources[:0]
}

func removeSub(src *node, id NodeID) {
	for i, s := range src.subs {
		if s == id {
			src.subs[i] = src.subs[len(src.subs)-1]
			src.subs = src.subs[:len(src.subs)-1]
			return
		}
	}
}

// severNode removes every reference to id from surviving nodes, in both
// directions, and runs the node's pending effect cleanup.
func (rt *Runtime) severNode(id NodeID, n *node) {
	if n.cleanup != nil {
		cl := n.cleanup
		n.cleanup = nil
		rt.invokeCleanup(id, cl)
	}
	rt.severSources(id, n)
	for _, subID := range n.subs {
		if sub, ok := rt.lookupNode(subID); ok {
			for i, ref := range sub.sources {
				if ref.id == id {
					sub.sources[i] = sub.sources[len(sub.sources)-1]
					sub.sources = sub.sources[:len(sub.sources)-1]
					break
				}
			}
		}
	}
	n.subs = nil
}

// invokeCleanup runs a cleanup callback, containing panics so disposal
// always completes.
func (rt *Runtime) invokeCleanup(id NodeID, cl Cleanup) {
	rt.cleanupDepth++
	defer func() {
		rt.cleanupDepth--
		if r := recover(); r != nil {
			rt.Logger().Error("cleanup panicked", "node", id.String(), "panic", r)
		}
	}()
	cl()
}
