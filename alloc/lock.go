package alloc

import (
	"runtime"
	"sync/atomic"
)

// activeSpin is how many failed acquisition attempts are retried back to back
// before the goroutine yields its P.
const activeSpin = 32

// spinLock is a test-and-test-and-set lock. It never allocates and never parks
// on a runtime structure, so it is safe to take from inside Allocate and
// Deallocate no matter what state the allocator is in.
type spinLock struct {
	state atomic.Uint32
}

func (l *spinLock) Lock() {
	for spins := 0; ; spins++ {
		if l.state.Load() == 0 && l.state.CompareAndSwap(0, 1) {
			return
		}
		if spins >= activeSpin {
			runtime.Gosched()
		}
	}
}

func (l *spinLock) TryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

func (l *spinLock) Unlock() {
	if l.state.Swap(0) == 0 {
		panic("alloc: unlock of unlocked spinLock")
	}
}
