package cell

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a simple CAS spinlock, used for the allocator's shared
// head/tail exactly as spec.md §4.1 calls for ("one shared head/tail
// protected by a spinlock"); a plain sync.Mutex would also satisfy the
// contract, but a spinlock keeps the rare shared-pool path from parking
// a goroutine for what is meant to be a handful of pointer swaps.
type spinlock struct {
	state int32
}

func (s *spinlock) Lock() {
	for !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	atomic.StoreInt32(&s.state, 0)
}
