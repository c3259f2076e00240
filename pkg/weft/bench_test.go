package weft

import (
	"fmt"
	"testing"
)

func BenchmarkSignalGetUntracked(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	s, _ := CreateSignal(rt, 42)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = s.Get()
	}
}

func BenchmarkSignalPeek(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	s, _ := CreateSignal(rt, 42)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = s.Peek()
	}
}

func BenchmarkSignalSetNoSubscribers(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	_, set := CreateSignal(rt, 0)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkSignalSetOneEffect(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	s, set := CreateSignal(rt, 0)
	CreateEffect(rt, func() Cleanup {
		_ = s.Get()
		return nil
	})
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkSignalSetTenEffects(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	s, set := CreateSignal(rt, 0)
	for i := 0; i < 10; i++ {
		CreateEffect(rt, func() Cleanup {
			_ = s.Get()
			return nil
		})
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkMemoGetCached(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	s, _ := CreateSignal(rt, 21)
	m := CreateMemo(rt, func() int { return s.Get() * 2 })
	_ = m.Get()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = m.Get()
	}
}

func BenchmarkMemoChainInvalidate(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	s, set := CreateSignal(rt, 0)

	prev := CreateMemo(rt, func() int { return s.Get() + 1 })
	for i := 0; i < 10; i++ {
		inner := prev
		prev = CreateMemo(rt, func() int { return inner.Get() + 1 })
	}
	last := prev
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		set.Set(i)
		_ = last.Get()
	}
}

func BenchmarkBatch100Writes(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()

	sets := make([]WriteSignal[int], 100)
	for i := range sets {
		var s ReadSignal[int]
		s, sets[i] = CreateSignal(rt, 0)
		CreateEffect(rt, func() Cleanup {
			_ = s.Get()
			return nil
		})
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		rt.Batch(func() {
			for j := range sets {
				sets[j].Set(i + j)
			}
		})
	}
}

func BenchmarkDiamondPropagation(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()

	src, set := CreateSignal(rt, 0)
	left := CreateMemo(rt, func() int { return src.Get() + 1 })
	right := CreateMemo(rt, func() int { return src.Get() * 2 })
	CreateEffect(rt, func() Cleanup {
		_ = left.Get() + right.Get()
		return nil
	})
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkCreateDisposeScope(b *testing.B) {
	rt := NewRuntime()
	defer rt.Dispose()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sc, _ := rt.CreateScope(0)
		rt.WithScope(sc, func() {
			for j := 0; j < 10; j++ {
				CreateSignal(rt, j, SignalName[int](fmt.Sprintf("s%d", j)))
			}
		})
		rt.DisposeScope(sc)
	}
}
