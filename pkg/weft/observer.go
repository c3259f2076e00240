package weft

import "time"

// EventKind classifies instrumentation events emitted by a Runtime.
type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventNodeCreated
	EventNodeDisposed
	EventScopeCreated
	EventScopeDisposed
	EventWrite
	EventEvalStart
	EventEval // evaluation finished; Dur and Err are set
	EventSkip // node settled without recomputing
	EventFlushStart
	EventFlush // flush finished; Evals and Dur are set
	EventBatchStart
	EventBatchEnd
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNodeCreated:
		return "node_created"
	case EventNodeDisposed:
		return "node_disposed"
	case EventScopeCreated:
		return "scope_created"
	case EventScopeDisposed:
		return "scope_disposed"
	case EventWrite:
		return "write"
	case EventEvalStart:
		return "eval_start"
	case EventEval:
		return "eval"
	case EventSkip:
		return "skip"
	case EventFlushStart:
		return "flush_start"
	case EventFlush:
		return "flush"
	case EventBatchStart:
		return "batch_start"
	case EventBatchEnd:
		return "batch_end"
	case EventError:
		return "error"
	default:
		return "invalid"
	}
}

// Event is one instrumentation record. Fields beyond Time, Kind and Seq
// are populated when they apply to the kind.
type Event struct {
	Time     time.Time
	Seq      uint64 // per-runtime, monotonically increasing
	Kind     EventKind
	Node     NodeID
	NodeKind NodeKind
	Scope    ScopeID
	Name     string        // node name, when named
	Wave     int           // flush wave the event belongs to
	Dur      time.Duration // eval / flush kinds
	Evals    int           // flush kind: evaluations performed
	Err      error         // eval / error kinds
}

// Observer consumes runtime events. Events are delivered synchronously
// while the runtime lock is held: implementations must return quickly
// and must not call back into the runtime. Hand off to a channel or
// buffer for anything heavier.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

func (rt *Runtime) emit(ev Event) {
	if len(rt.observers) == 0 {
		return
	}
	rt.eventSeq++
	ev.Time = time.Now()
	ev.Seq = rt.eventSeq
	for _, obs := range rt.observers {
		obs.Observe(ev)
	}
}

func (rt *Runtime) emitNode(kind EventKind, id NodeID, n *node) {
	if len(rt.observers) == 0 {
		return
	}
	rt.emit(Event{Kind: kind, Node: id, NodeKind: n.kind, Scope: n.scope, Name: n.name, Wave: rt.curWave})
}
