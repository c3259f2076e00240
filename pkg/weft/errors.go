package weft

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned when an operation goes through a handle whose
// node or scope has been torn down. Handles are generation-tagged, so a
// disposed id never silently resolves to a reused slot.
//
// Callers should treat this as a lifetime bug: the owning scope was
// disposed while something still held the handle. Typical handling is
// log-and-drop; the value behind the handle is gone.
var ErrDisposed = errors.New("weft: disposed")

// ErrCyclicDependency is returned when bringing a node up to date
// (transitively) requires the node's own result, such as a memo that
// reads itself through other memos. The engine reports the cycle
// instead of looping.
var ErrCyclicDependency = errors.New("weft: cyclic dependency")

// ErrBorrowConflict is returned on re-entrant exclusive access to one
// node's value, such as reading a signal from inside its own Update
// callback.
var ErrBorrowConflict = errors.New("weft: borrow conflict")

// ErrBudgetExceeded is returned when a flush evaluates more nodes than
// the configured budget allows. Remaining work is left dirty for the
// next flush. This usually means effects are feeding writes back into
// their own sources.
var ErrBudgetExceeded = errors.New("weft: flush budget exceeded")

// NodeError describes a failed node operation. It wraps one of the
// sentinel errors above so callers can match with errors.Is.
type NodeError struct {
	Op   string   // operation that failed: "get", "set", "evaluate", ...
	Node NodeID   // node the operation targeted
	Kind NodeKind // node kind, when known
	Err  error    // sentinel or evaluation error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.Kind == KindInvalid {
		return fmt.Sprintf("weft: %s %s: %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("weft: %s %s %s: %v", e.Op, e.Kind, e.Node, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// EvalError carries a panic recovered from a user computation, together
// with the stack captured at the recovery point. Evaluation failures
// never abort the runtime; the failing node stays dirty and its
// dependents are not marked clean.
type EvalError struct {
	Value any    // recovered panic value
	Stack []byte // stack captured via debug.Stack
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("weft: evaluation panicked: %v", e.Value)
}

func nodeErr(op string, id NodeID, kind NodeKind, err error) *NodeError {
	return &NodeError{Op: op, Node: id, Kind: kind, Err: err}
}
