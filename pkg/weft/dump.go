package weft

import (
	"fmt"
	"reflect"

	"github.com/weft-dev/weft/internal/arena"
)

func (s nodeState) String() string {
	switch s {
	case stateClean:
		return "clean"
	case stateCheck:
		return "check"
	case stateDirty:
		return "dirty"
	default:
		return fmt.Sprintf("nodeState(%d)", uint8(s))
	}
}

// NodeDump is one node in a GraphDump.
type NodeDump struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Name    string   `json:"name,omitempty"`
	Scope   string   `json:"scope"`
	State   string   `json:"state"`
	Version uint64   `json:"version"`
	Eager   bool     `json:"eager,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Subs    []string `json:"subs,omitempty"`
	Value   string   `json:"value,omitempty"`
}

// ScopeDump is one scope in a GraphDump.
type ScopeDump struct {
	ID       string   `json:"id"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children,omitempty"`
	Owned    []string `json:"owned,omitempty"`
	Cleanups int      `json:"cleanups,omitempty"`
}

// GraphDump is a point-in-time snapshot of the whole graph, shaped for
// JSON. Inspection tools consume it; nothing inside the runtime does.
type GraphDump struct {
	Nodes  []NodeDump  `json:"nodes"`
	Scopes []ScopeDump `json:"scopes"`
}

// Dump snapshots the graph in slot order, so output is stable for a
// given creation sequence. Values render with fmt and are never
// evaluated: a stale memo dumps its stale value and state says so.
func (rt *Runtime) Dump() GraphDump {
	rt.lk.lock()
	defer rt.lk.unlock()

	var d GraphDump
	rt.nodes.Each(func(h arena.Handle, pn **node) bool {
		n := *pn
		nd := NodeDump{
			ID:      NodeID(h).String(),
			Kind:    n.kind.String(),
			Name:    n.name,
			Scope:   n.scope.String(),
			State:   n.state.String(),
			Version: n.version,
			Eager:   n.eager,
		}
		for _, ref := range n.sources {
			nd.Sources = append(nd.Sources, ref.id.String())
		}
		for _, sub := range n.subs {
			nd.Subs = append(nd.Subs, sub.String())
		}
		if n.kind != KindEffect && n.hasRun {
			nd.Value = fmt.Sprint(n.value)
		}
		d.Nodes = append(d.Nodes, nd)
		return true
	})
	rt.scopes.Each(func(h arena.Handle, ps **scope) bool {
		s := *ps
		sd := ScopeDump{
			ID:       ScopeID(h).String(),
			Cleanups: len(s.cleanups),
		}
		if !s.parent.IsZero() {
			sd.Parent = s.parent.String()
		}
		for _, c := range s.children {
			sd.Children = append(sd.Children, c.String())
		}
		for _, o := range s.owned {
			sd.Owned = append(sd.Owned, o.String())
		}
		d.Scopes = append(d.Scopes, sd)
		return true
	})
	return d
}

// EachNamed visits every named signal, memo, and stored box in slot
// order. Memos settle before they are visited, so fn sees current
// values; reads here never subscribe. Return false to stop the walk.
func (rt *Runtime) EachNamed(fn func(name string, id NodeID, v any) bool) {
	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.disposed {
		return
	}
	var ids []NodeID
	rt.nodes.Each(func(h arena.Handle, pn **node) bool {
		if n := *pn; n.name != "" && n.kind != KindEffect {
			ids = append(ids, NodeID(h))
		}
		return true
	})
	for _, id := range ids {
		n, ok := rt.lookupNode(id)
		if !ok {
			continue
		}
		if n.kind == KindMemo {
			if err := rt.settleNode(id, n); err != nil {
				rt.Logger().Error("settle during visit failed",
					"node", id.String(), "name", n.name, "error", err)
				continue
			}
		}
		if !fn(n.name, id, n.value) {
			break
		}
	}
	rt.maybeFlush()
}

// WriteNamedAny writes v to the named signal or stored box. Values
// whose dynamic type differs from what the node holds are converted
// when possible, which is what lets decoded snapshots restore typed
// nodes. Signal writes propagate as usual.
func (rt *Runtime) WriteNamedAny(name string, v any) error {
	rt.lk.lock()
	defer rt.lk.unlock()

	if rt.disposed {
		return ErrDisposed
	}
	var id NodeID
	var target *node
	rt.nodes.Each(func(h arena.Handle, pn **node) bool {
		n := *pn
		if n.name == name && (n.kind == KindSignal || n.kind == KindStored) {
			id, target = NodeID(h), n
			return false
		}
		return true
	})
	if target == nil {
		return fmt.Errorf("weft: no writable node named %q", name)
	}
	if target.value != nil && v != nil {
		want := reflect.TypeOf(target.value)
		have := reflect.TypeOf(v)
		if have != want {
			if !have.ConvertibleTo(want) {
				return fmt.Errorf("weft: node %q holds %s, cannot write %s", name, want, have)
			}
			v = reflect.ValueOf(v).Convert(want).Interface()
		}
	}
	switch target.kind {
	case KindSignal:
		rt.writeNode(id, target, v)
	case KindStored:
		target.value = v
	}
	return nil
}
