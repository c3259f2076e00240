package weft

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// reentrantLock serializes runtime access across goroutines while
// letting the goroutine that already holds the lock re-enter freely.
// Re-entry is the normal case: user computations run under the lock and
// call straight back into the runtime through reads and writes.
type reentrantLock struct {
	mu    sync.Mutex
	owner atomic.Uint64 // goroutine id of the holder, 0 when free
	depth int           // re-entry depth, guarded by mu ownership
}

// lock acquires the runtime lock, or increases the depth when the
// calling goroutine already holds it.
func (l *reentrantLock) lock() {
	gid := goroutineID()
	if l.owner.Load() == gid {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(gid)
	l.depth = 1
}

func (l *reentrantLock) unlock() {
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}

// goroutineID extracts the current goroutine's id from the runtime
// stack header ("goroutine <id> ..."). Implementation detail; never
// exposed.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ { // skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
