package weft

import (
	"errors"
	"testing"
)

func TestScopeOwnsNodes(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	sc, err := rt.CreateScope(0)
	if err != nil {
		t.Fatal(err)
	}

	var inner ReadSignal[int]
	rt.WithScope(sc, func() {
		inner, _ = CreateSignal(rt, 1)
	})
	outer, _ := CreateSignal(rt, 2)

	rt.DisposeScope(sc)

	if _, err := inner.TryGet(); !errors.Is(err, ErrDisposed) {
		t.Errorf("owned node survived disposal: %v", err)
	}
	if got := outer.Get(); got != 2 {
		t.Errorf("node outside the scope was damaged: %d", got)
	}
}

func TestScopeDisposalIsDeep(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	parent, _ := rt.CreateScope(0)
	child, _ := rt.CreateScope(parent)

	var inChild ReadSignal[int]
	rt.WithScope(child, func() {
		inChild, _ = CreateSignal(rt, 1)
	})

	rt.DisposeScope(parent)

	if _, err := inChild.TryGet(); !errors.Is(err, ErrDisposed) {
		t.Errorf("grandchild node survived: %v", err)
	}
}

func TestScopeCleanupOrder(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	var order []string

	parent, _ := rt.CreateScope(0)
	rt.WithScope(parent, func() {
		rt.OnCleanup(func() { order = append(order, "parent-1") })
		rt.OnCleanup(func() { order = append(order, "parent-2") })
	})
	childA, _ := rt.CreateScope(parent)
	rt.WithScope(childA, func() {
		rt.OnCleanup(func() { order = append(order, "childA") })
	})
	childB, _ := rt.CreateScope(parent)
	rt.WithScope(childB, func() {
		rt.OnCleanup(func() { order = append(order, "childB") })
	})

	rt.DisposeScope(parent)

	// Children before parent, most recent child first; within a scope,
	// reverse registration order.
	want := []string{"childB", "childA", "parent-2", "parent-1"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestScopeDisposalIdempotent(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	sc, _ := rt.CreateScope(0)
	ran := 0
	rt.RegisterCleanup(sc, func() { ran++ })

	rt.DisposeScope(sc)
	rt.DisposeScope(sc)
	rt.DisposeScope(sc)

	if ran != 1 {
		t.Errorf("cleanup ran %d times", ran)
	}
}

func TestScopeEdgesSeveredAtDisposal(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	src, setSrc := CreateSignal(rt, 1)

	sc, _ := rt.CreateScope(0)
	runs := 0
	rt.WithScope(sc, func() {
		CreateEffect(rt, func() Cleanup {
			_ = src.Get()
			runs++
			return nil
		})
	})
	if runs != 1 {
		t.Fatalf("expected initial run, got %d", runs)
	}

	rt.DisposeScope(sc)

	// No surviving node may still hold an edge to the disposed effect.
	for _, nd := range rt.Dump().Nodes {
		if len(nd.Subs) != 0 {
			t.Errorf("node %s still has subscribers %v after disposal", nd.ID, nd.Subs)
		}
	}

	setSrc.Set(2)
	if runs != 1 {
		t.Errorf("disposed effect re-ran: %d", runs)
	}
}

func TestWithScopeRestoresCurrent(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	root := rt.CurrentScope()
	sc, _ := rt.CreateScope(0)

	rt.WithScope(sc, func() {
		if rt.CurrentScope() != sc {
			t.Error("current scope not switched")
		}
	})
	if rt.CurrentScope() != root {
		t.Error("current scope not restored")
	}

	// Restored on panic too.
	func() {
		defer func() { _ = recover() }()
		rt.WithScope(sc, func() { panic("boom") })
	}()
	if rt.CurrentScope() != root {
		t.Error("current scope not restored after panic")
	}
}

func TestWithScopeNesting(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	outer, _ := rt.CreateScope(0)
	inner, _ := rt.CreateScope(outer)

	var ids []ScopeID
	rt.WithScope(outer, func() {
		rt.WithScope(inner, func() {
			ids = append(ids, rt.CurrentScope())
		})
		ids = append(ids, rt.CurrentScope())
	})

	if ids[0] != inner || ids[1] != outer {
		t.Errorf("nesting broken: %v (inner %v outer %v)", ids, inner, outer)
	}
}

func TestWithScopeOnDisposedScope(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	sc, _ := rt.CreateScope(0)
	rt.DisposeScope(sc)

	if err := rt.WithScope(sc, func() {
		t.Error("body must not run under a disposed scope")
	}); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}

func TestRegisterCleanupOnDisposedScope(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	sc, _ := rt.CreateScope(0)
	rt.DisposeScope(sc)

	err := rt.RegisterCleanup(sc, func() {
		t.Error("cleanup must not be registered on a dead scope")
	})
	if !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}

func TestOnCleanupRunsImmediatelyWhenScopeGone(t *testing.T) {
	rt := NewRuntime()
	rt.Dispose()

	ran := false
	rt.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("expected immediate run on a disposed runtime")
	}
}

func TestCreateScopeUnderDisposedParent(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	sc, _ := rt.CreateScope(0)
	rt.DisposeScope(sc)

	if _, err := rt.CreateScope(sc); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}

func TestCleanupWritesApplyAfterDisposal(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	status, setStatus := CreateSignal(rt, "open")

	var seen []string
	CreateEffect(rt, func() Cleanup {
		seen = append(seen, status.Get())
		return nil
	})

	sc, _ := rt.CreateScope(0)
	rt.RegisterCleanup(sc, func() {
		setStatus.Set("closed")
	})

	rt.DisposeScope(sc)

	// The write happened inside a cleanup; it propagates once disposal
	// completes.
	if got := seen[len(seen)-1]; got != "closed" {
		t.Errorf("expected final observation %q, got %q (seen %v)", "closed", got, seen)
	}
}

func TestRuntimeDisposeIsTerminal(t *testing.T) {
	rt := NewRuntime()

	sig, setSig := CreateSignal(rt, 1)

	rt.Dispose()
	rt.Dispose() // idempotent

	if _, err := sig.TryGet(); !errors.Is(err, ErrDisposed) {
		t.Errorf("read after runtime dispose: %v", err)
	}
	if err := setSig.TrySet(2); !errors.Is(err, ErrDisposed) {
		t.Errorf("write after runtime dispose: %v", err)
	}
	if _, err := rt.CreateScope(0); !errors.Is(err, ErrDisposed) {
		t.Errorf("create scope after runtime dispose: %v", err)
	}
}
