package weft

import (
	"log/slog"

	"github.com/weft-dev/weft/internal/arena"
)

// Runtime owns all reactive node and scope storage for one execution
// context: one per server request, one per page, one per test. Runtimes
// share nothing; independent Runtimes may be used from different
// goroutines with no coordination.
//
// Within one Runtime, at most one evaluation is active at a time. All
// entry points serialize on an internal lock that the owning goroutine
// may re-enter, so user computations can freely read and write through
// the runtime that is evaluating them. Goroutines other than the holder
// block until the current propagation pass completes; they never
// observe a partially propagated graph.
type Runtime struct {
	lk        reentrantLock
	logger    *slog.Logger
	observers []Observer
	eventSeq  uint64

	nodes  arena.Arena[*node]
	scopes arena.Arena[*scope]

	root    ScopeID
	current ScopeID

	// obsStack records the node currently evaluating; reads attribute
	// themselves to the top entry. A zero entry is an untracked barrier.
	obsStack []NodeID

	pending      idQueue
	batchDepth   int
	flushing     bool
	budget       int // max evaluations per flush, 0 = unlimited
	curWave      int // wave number while flushing, 0 outside
	evalCount    int // evaluations in the current flush
	cleanupDepth int // user cleanups on the stack; writes inside them defer

	disposed bool
}

// RuntimeOption configures a Runtime at construction.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger used for evaluation failures, cycle
// reports and budget aborts. Defaults to slog.Default().
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(rt *Runtime) { rt.logger = l }
}

// WithObserver registers an instrumentation observer. May be given more
// than once; observers are notified in registration order.
func WithObserver(obs Observer) RuntimeOption {
	return func(rt *Runtime) { rt.observers = append(rt.observers, obs) }
}

// WithFlushBudget caps the number of node evaluations a single flush
// may perform before aborting with ErrBudgetExceeded. Zero means no
// cap. A tripped budget leaves the unprocessed nodes dirty.
func WithFlushBudget(n int) RuntimeOption {
	return func(rt *Runtime) { rt.budget = n }
}

// NewRuntime creates an empty runtime with a live root scope.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{}
	for _, opt := range opts {
		opt(rt)
	}
	root := &scope{}
	rt.root = ScopeID(rt.scopes.Insert(root))
	rt.current = rt.root
	rt.emit(Event{Kind: EventScopeCreated, Scope: rt.root})
	return rt
}

// Logger returns the runtime's logger, falling back to slog.Default().
func (rt *Runtime) Logger() *slog.Logger {
	if rt.logger != nil {
		return rt.logger
	}
	return slog.Default()
}

// AddObserver registers an observer after construction.
func (rt *Runtime) AddObserver(obs Observer) {
	rt.lk.lock()
	defer rt.lk.unlock()
	rt.observers = append(rt.observers, obs)
}

// RootScope returns the root scope id. Disposing it via DisposeScope
// empties the runtime but keeps it usable; use Dispose to retire the
// runtime itself.
func (rt *Runtime) RootScope() ScopeID {
	rt.lk.lock()
	defer rt.lk.unlock()
	return rt.root
}

// CurrentScope returns the scope that newly created nodes and child
// scopes attach to.
func (rt *Runtime) CurrentScope() ScopeID {
	rt.lk.lock()
	defer rt.lk.unlock()
	return rt.current
}

// Dispose tears the runtime down: the root scope is disposed (running
// all cleanups, severing all edges) and every later operation fails
// with ErrDisposed. Idempotent.
func (rt *Runtime) Dispose() {
	rt.lk.lock()
	defer rt.lk.unlock()
	if rt.disposed {
		return
	}
	rt.disposeScopeLocked(rt.root)
	rt.pending.take() // everything queued is gone now
	rt.disposed = true
}

// lookupNode resolves id against the node arena.
func (rt *Runtime) lookupNode(id NodeID) (*node, bool) {
	pp, ok := rt.nodes.Get(arena.Handle(id))
	if !ok {
		return nil, false
	}
	return *pp, true
}

// resolveNode resolves id or reports why it cannot: a disposed runtime
// or a stale generation both surface ErrDisposed.
func (rt *Runtime) resolveNode(op string, id NodeID) (*node, *NodeError) {
	if rt.disposed {
		return nil, nodeErr(op, id, KindInvalid, ErrDisposed)
	}
	n, ok := rt.lookupNode(id)
	if !ok {
		return nil, nodeErr(op, id, KindInvalid, ErrDisposed)
	}
	return n, nil
}

func (rt *Runtime) lookupScope(id ScopeID) (*scope, bool) {
	pp, ok := rt.scopes.Get(arena.Handle(id))
	if !ok {
		return nil, false
	}
	return *pp, true
}

// createNode inserts n under the current scope.
func (rt *Runtime) createNode(n *node) (NodeID, *NodeError) {
	if rt.disposed {
		return 0, nodeErr("create", 0, n.kind, ErrDisposed)
	}
	sc, ok := rt.lookupScope(rt.current)
	if !ok || sc.disposing {
		return 0, nodeErr("create", 0, n.kind, ErrDisposed)
	}
	n.scope = rt.current
	id := NodeID(rt.nodes.Insert(n))
	sc.owned = append(sc.owned, id)
	rt.emitNode(EventNodeCreated, id, n)
	return id, nil
}

// trackRead links the node being read to the evaluation on top of the
// observer stack. No observer, or an untracked barrier, means no edge:
// that is how consumers peek without subscribing.
func (rt *Runtime) trackRead(srcID NodeID, src *node) {
	if len(rt.obsStack) == 0 {
		return
	}
	obsID := rt.obsStack[len(rt.obsStack)-1]
	if obsID.IsZero() {
		return
	}
	obs, ok := rt.lookupNode(obsID)
	if !ok {
		return
	}
	rt.addEdge(srcID, src, obsID, obs)
}

