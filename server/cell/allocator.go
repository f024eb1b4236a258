// Package cell implements the slab-allocated fixed-cell pool described in
// spec.md §4.1: one shared free list protected by a spinlock, with
// per-thread cached blocks so that the common single-cell request never
// takes the lock. Grounded on the young/old split and free-list idiom of
// the teacher's server/innodb/manager/buffer_pool_manager.go, generalized
// from page slabs to generic fixed cells.
package cell

import (
	"fmt"

	"go.uber.org/atomic"
)

const noCell = ^uint32(0)

// Allocator is a pre-sized array of N fixed-size cells plus a parallel
// next-offset free list. Cells are not necessarily physically contiguous
// within a run; callers traverse Next to walk a chain.
type Allocator struct {
	next      []uint32 // next_offset[i]; noCell terminates a chain
	spin      spinlock
	sharedHead uint32
	sharedTail uint32
	sharedLen  atomic.Uint32

	blockSize uint32 // B
	locals    []localBlock

	hits   atomic.Uint64 // lock-free get() calls
	misses atomic.Uint64 // gets that had to touch the shared pool
}

type localBlock struct {
	head uint32
	tail uint32
	len  uint32
}

// New creates an Allocator with n cells and per-thread blocks of
// blockSize cells (the teacher's buffer pool defaults its LRU regions the
// same way: a fixed total size split into per-purpose chunks).
// threadCount bounds the tid values callers may pass to Get/Free.
func New(n int, blockSize uint32, threadCount int) *Allocator {
	if blockSize == 0 {
		blockSize = 1024
	}
	a := &Allocator{
		next:      make([]uint32, n),
		blockSize: blockSize,
		locals:    make([]localBlock, threadCount),
	}
	for i := 0; i < n; i++ {
		if i == n-1 {
			a.next[i] = noCell
		} else {
			a.next[i] = uint32(i + 1)
		}
	}
	a.sharedHead = 0
	a.sharedTail = uint32(n - 1)
	a.sharedLen.Store(uint32(n))
	return a
}

// Next returns the cell linked after offset within whatever chain it
// belongs to (free or allocated — callers that hold an allocated run are
// responsible for not confusing the two).
func (a *Allocator) Next(offset uint32) uint32 { return a.next[offset] }

// Get returns the head offset of a linked run of count cells. tid must be
// a caller-unique integer in [0, threadCount).
func (a *Allocator) Get(count uint32, tid int) uint32 {
	if count == 0 {
		panic("cell: Get(0) is not allowed")
	}
	lb := &a.locals[tid]
	if lb.len < count+2 {
		pull := a.blockSize
		if count > a.blockSize {
			pull = count
		}
		a.pullFromShared(lb, pull)
	} else {
		a.hits.Inc()
	}
	head := lb.head
	offset := head
	for i := uint32(1); i < count; i++ {
		offset = a.next[offset]
	}
	tail := offset
	newHead := a.next[tail]
	a.next[tail] = noCell
	lb.head = newHead
	lb.len -= count
	if lb.len == 0 {
		lb.tail = noCell
	}
	return head
}

// Free returns a run of count cells starting at headOffset (already
// linked via Next) to the head of tid's local block, so the next Get on
// tid reuses it first, spilling to the shared pool if the local block
// grows past 2*blockSize.
func (a *Allocator) Free(headOffset uint32, count uint32, tid int) {
	if count == 0 {
		return
	}
	lb := &a.locals[tid]
	tail := headOffset
	for i := uint32(1); i < count; i++ {
		tail = a.next[tail]
	}

	if lb.len == 0 {
		lb.head, lb.tail = headOffset, tail
		a.next[tail] = noCell
	} else {
		a.next[tail] = lb.head
		lb.head = headOffset
	}
	lb.len += count

	if lb.len > 2*a.blockSize {
		a.pushToShared(lb, a.blockSize)
	}
}

func (a *Allocator) pullFromShared(lb *localBlock, want uint32) {
	a.spin.Lock()
	defer a.spin.Unlock()

	avail := a.sharedLen.Load()
	if avail < want {
		if avail == 0 {
			panic(fmt.Sprintf("cell: allocator exhausted, requested %d cells", want))
		}
		want = avail
	}

	head := a.sharedHead
	tail := head
	for i := uint32(1); i < want; i++ {
		tail = a.next[tail]
	}
	newSharedHead := a.next[tail]
	a.next[tail] = noCell

	if lb.len == 0 {
		lb.head, lb.tail = head, tail
	} else {
		a.next[lb.tail] = head
		lb.tail = tail
	}
	lb.len += want

	a.sharedHead = newSharedHead
	if a.sharedLen.Sub(want) == 0 {
		a.sharedTail = noCell
	}
	a.misses.Inc()
}

func (a *Allocator) pushToShared(lb *localBlock, want uint32) {
	a.spin.Lock()
	defer a.spin.Unlock()

	head := lb.head
	tail := head
	for i := uint32(1); i < want; i++ {
		tail = a.next[tail]
	}
	newLocalHead := a.next[tail]

	// Prepend [head..tail] to the shared free list; order within a free
	// list carries no meaning.
	if a.sharedLen.Load() == 0 {
		a.sharedTail = tail
	}
	a.next[tail] = a.sharedHead
	a.sharedHead = head
	a.sharedLen.Add(want)

	lb.head = newLocalHead
	lb.len -= want
	if lb.len == 0 {
		lb.tail = noCell
	}
}

// Stats reports lock-free-vs-shared-pool get() counts, useful for sizing
// blockSize the way the teacher's buffer pool manager reports
// hits/misses for LRU tuning.
func (a *Allocator) Stats() (hits, misses uint64) {
	return a.hits.Load(), a.misses.Load()
}
