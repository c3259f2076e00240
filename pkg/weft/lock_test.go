package weft

import (
	"sync"
	"testing"
)

func TestReentrantLockSameGoroutine(t *testing.T) {
	var l reentrantLock

	l.lock()
	l.lock() // must not deadlock
	l.unlock()
	l.unlock()

	// Fully released: another goroutine can take it.
	done := make(chan struct{})
	go func() {
		l.lock()
		l.unlock()
		close(done)
	}()
	<-done
}

func TestReentrantLockExcludesOthers(t *testing.T) {
	var l reentrantLock
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l.lock()
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				l.unlock()
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("lock admitted %d goroutines at once", maxInside)
	}
}

func TestGoroutineIDStable(t *testing.T) {
	a := goroutineID()
	b := goroutineID()
	if a == 0 || a != b {
		t.Errorf("expected a stable nonzero id, got %d and %d", a, b)
	}

	ch := make(chan uint64)
	go func() { ch <- goroutineID() }()
	if other := <-ch; other == a {
		t.Error("two goroutines reported the same id")
	}
}
