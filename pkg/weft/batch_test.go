package weft

import "testing"

func TestUntrackedReadInsideEffect(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	tracked, setTracked := CreateSignal(rt, 0)
	ignored, setIgnored := CreateSignal(rt, 0)

	runs := 0
	var sum int
	CreateEffect(rt, func() Cleanup {
		v := tracked.Get()
		rt.Untracked(func() {
			sum = v + ignored.Get()
		})
		runs++
		return nil
	})

	setIgnored.Set(10)
	if runs != 1 {
		t.Errorf("untracked read subscribed: %d runs", runs)
	}

	// The untracked value is still read fresh on the next real run.
	setTracked.Set(1)
	if runs != 2 || sum != 11 {
		t.Errorf("expected runs=2 sum=11, got runs=%d sum=%d", runs, sum)
	}
}

func TestUntrackReturnsValue(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	s, _ := CreateSignal(rt, 7)

	got := Untrack(rt, func() int { return s.Get() * 2 })
	if got != 14 {
		t.Errorf("expected 14, got %d", got)
	}
}

func TestUntrackedWritesFlushOnExit(t *testing.T) {
	rt := NewRuntime()
	defer rt.Dispose()

	a, setA := CreateSignal(rt, 0)
	runs := 0
	CreateEffect(rt, func() Cleanup {
		_ = a.Get()
		runs++
		return nil
	})

	rt.Untracked(func() {
		setA.Set(1)
		if runs != 1 {
			t.Errorf("flush ran inside the untracked region: %d runs", runs)
		}
	})
	if runs != 2 {
		t.Errorf("expected flush when the region exited, got %d runs", runs)
	}
}
