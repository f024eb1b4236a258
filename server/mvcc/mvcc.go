// Package mvcc implements the singly-linked (doubly-linked for backward
// traversal) per-item version chain of spec.md §3.2/§4.3: append, commit,
// abort, and timestamp visibility, generic over the four payload variants
// (vertex existence, edge version, vertex-/edge-property header) that the
// storage, property-row, and topology-row packages plumb through it.
//
// Grounded on the teacher's server/innodb/storage/wrapper/mvcc package
// shape (a per-record version chain walked under a page-level lock) and
// server/innodb/storage/store/mvcc's read-view/isolation split, generalized
// from page-record versions to arbitrary typed payloads via a Go generic
// parameter instead of the teacher's btree-record-specific struct.
package mvcc

import (
	"sync"

	"github.com/xgraph-db/xgraph-server/server/common"
)

type (
	TrxID      = common.TrxID
	Timestamp  = common.Timestamp
)

// Value is the payload carried by one chain item. ValueGC releases
// whatever backing storage (value-store cells, nested row lists) the
// payload owns; it is called once per item as that item is retired,
// either on abort or on self-garbage-collection. tid is the calling
// thread's allocator slot, forwarded to whatever cell.Allocator/
// valuestore.Store the payload frees its cells through.
type Value interface {
	ValueGC(tid int)
}

type item[T Value] struct {
	value T

	// visBegin/visEnd are the committed visibility window; meaningless
	// until committed is true.
	visBegin Timestamp
	visEnd   Timestamp

	// trxBegin/trx are only valid while the item is an uncommitted tail:
	// trxBegin is the owning transaction's begin timestamp (used for the
	// pre-read ordering check), trx is its id.
	trxBegin  Timestamp
	trx       TrxID
	committed bool

	prev *item[T]
	next *item[T]
}

// List is one logical item's MVCC chain. All public methods take the
// list's spinlock-equivalent mutex; spec.md §4.3 calls for a spinlock but
// the critical sections here are pointer-chasing only, so a plain mutex
// serves the same contract without a busy-wait.
type List[T Value] struct {
	mu   sync.Mutex
	head *item[T]
	tail *item[T]
}

func NewList[T Value]() *List[T] {
	return &List[T]{}
}

// AppendInitialVersion installs value as the chain's sole, already-visible
// [MIN, MAX) version. Load-time only: never call this on a list that has
// already been appended to.
func (l *List[T]) AppendInitialVersion(value T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	it := &item[T]{
		value:     value,
		visBegin:  common.MinTimestamp,
		visEnd:    common.MaxTimestamp,
		committed: true,
	}
	l.head = it
	l.tail = it
}

// AppendVersion links a new uncommitted tail carrying value after the
// current tail, on behalf of trxID. It fails (ok=false) if the current
// tail is uncommitted by a different transaction: the caller must treat
// this as a write-write conflict and abort. oldValue/oldExists describe
// the chain's previous current value, for callers that need to log an
// undo record.
func (l *List[T]) AppendVersion(trxID TrxID, beginTime Timestamp, value T) (ok bool, oldValue T, oldExists bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tail != nil && !l.tail.committed && l.tail.trx != trxID {
		var zero T
		return false, zero, false
	}

	if l.tail != nil {
		oldValue, oldExists = l.tail.value, true
	}

	it := &item[T]{
		value:    value,
		trxBegin: beginTime,
		trx:      trxID,
		visEnd:   common.MaxTimestamp,
		prev:     l.tail,
	}
	if l.tail != nil {
		l.tail.next = it
	} else {
		l.head = it
	}
	l.tail = it
	return true, oldValue, oldExists
}

// CommitVersion promotes the uncommitted tail belonging to trxID to a
// visible version starting at commitTime, closing off the previous tail's
// window at the same instant. It is idempotent: calling it again once the
// tail is already committed is a no-op.
func (l *List[T]) CommitVersion(trxID TrxID, commitTime Timestamp) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail := l.tail
	if tail == nil || tail.committed || tail.trx != trxID {
		return
	}

	tail.visBegin = commitTime
	tail.visEnd = common.MaxTimestamp
	tail.committed = true
	tail.trx = 0

	if tail.prev != nil {
		tail.prev.visEnd = commitTime
	}
}

// AbortVersion detaches the uncommitted tail belonging to trxID, runs its
// value's GC, and restores the prior tail's end to MAX.
func (l *List[T]) AbortVersion(trxID TrxID, tid int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail := l.tail
	if tail == nil || tail.committed || tail.trx != trxID {
		return
	}

	tail.value.ValueGC(tid)

	prev := tail.prev
	if prev != nil {
		prev.visEnd = common.MaxTimestamp
		prev.next = nil
		l.tail = prev
	} else {
		l.head = nil
		l.tail = nil
	}
}

// Visibility classifies the outcome of GetVisibleVersion.
type Visibility int

const (
	// VisibleNone means no version of this item is visible at all (e.g.
	// the item did not yet exist at begin_time) — callers treat this as
	// NOTFOUND, not as an abort.
	VisibleNone Visibility = iota
	// VisibleCommitted is an ordinary committed read.
	VisibleCommitted
	// VisiblePreReadHomo means the tail was pre-read from WriterTrx: the
	// reading transaction must only commit if WriterTrx also commits.
	VisiblePreReadHomo
	// VisiblePreReadHetero means a read-only reader used the last
	// committed value instead of pre-reading WriterTrx's uncommitted
	// tail: the reader must only commit if WriterTrx aborts.
	VisiblePreReadHetero
)

// VisibleResult is the outcome of a visibility query. WriterTrx is
// populated only for the two pre-read variants; the caller is responsible
// for registering the corresponding dependency in the transaction's
// dependency table before using Value.
type VisibleResult[T Value] struct {
	Visibility Visibility
	Value      T
	WriterTrx  TrxID
}

// GetVisibleVersion resolves visibility under serializable policy: a
// pending write by another transaction that began before beginTime is
// pre-read (HOMO dependency) unless the reader is read-only, in which
// case the reader instead falls back to the last committed value and
// registers a HETERO dependency on the writer.
func (l *List[T]) GetVisibleVersion(trxID TrxID, beginTime Timestamp, readOnly bool) VisibleResult[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail := l.tail
	if tail == nil {
		return VisibleResult[T]{Visibility: VisibleNone}
	}

	if !tail.committed {
		if tail.trx == trxID {
			return VisibleResult[T]{Visibility: VisibleCommitted, Value: tail.value}
		}
		if tail.trxBegin < beginTime {
			if readOnly {
				v, ok := lastCommitted(tail.prev, beginTime)
				if !ok {
					return VisibleResult[T]{Visibility: VisibleNone}
				}
				return VisibleResult[T]{Visibility: VisiblePreReadHetero, Value: v, WriterTrx: tail.trx}
			}
			return VisibleResult[T]{Visibility: VisiblePreReadHomo, Value: tail.value, WriterTrx: tail.trx}
		}
		// The tail's writer began after us and cannot be part of our
		// snapshot; resolve against whatever is already committed.
		v, ok := lastCommitted(tail.prev, beginTime)
		if !ok {
			return VisibleResult[T]{Visibility: VisibleNone}
		}
		return VisibleResult[T]{Visibility: VisibleCommitted, Value: v}
	}

	v, ok := lastCommitted(tail, beginTime)
	if !ok {
		return VisibleResult[T]{Visibility: VisibleNone}
	}
	return VisibleResult[T]{Visibility: VisibleCommitted, Value: v}
}

// GetVisibleSnapshot resolves visibility under snapshot isolation: it
// never pre-reads an uncommitted tail, always returning the last
// committed-and-visible value.
func (l *List[T]) GetVisibleSnapshot(beginTime Timestamp) VisibleResult[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.tail
	if cur != nil && !cur.committed {
		cur = cur.prev
	}
	v, ok := lastCommitted(cur, beginTime)
	if !ok {
		return VisibleResult[T]{Visibility: VisibleNone}
	}
	return VisibleResult[T]{Visibility: VisibleCommitted, Value: v}
}

// lastCommitted walks backward from `from` for the first committed item
// whose [visBegin, visEnd) contains beginTime. Caller must hold l.mu.
func lastCommitted[T Value](from *item[T], beginTime Timestamp) (T, bool) {
	for it := from; it != nil; it = it.prev {
		if it.committed && it.visBegin <= beginTime && beginTime < it.visEnd {
			return it.value, true
		}
	}
	var zero T
	return zero, false
}

// SelfGarbageCollect releases every item's value via its variant's
// ValueGC and drops the chain. It is the caller's responsibility to
// ensure nothing still holds a pointer to this list (e.g. an edge map
// entry) before calling this.
func (l *List[T]) SelfGarbageCollect(tid int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for it := l.head; it != nil; {
		it.value.ValueGC(tid)
		next := it.next
		it.prev = nil
		it.next = nil
		it = next
	}
	l.head = nil
	l.tail = nil
}

// PeekTailValue returns the chain's current tail value regardless of
// commit status, for callers that need to resolve a payload-owned
// substructure (e.g. an edge version's property row list) without
// re-deriving a transaction's visibility over it.
func (l *List[T]) PeekTailValue() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tail == nil {
		var zero T
		return zero, false
	}
	return l.tail.value, true
}

// Len reports the number of items currently on the chain, used by
// defragmentation heuristics upstream. It takes the lock, so callers on
// a hot path should cache the result rather than polling it.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for it := l.head; it != nil; it = it.next {
		n++
	}
	return n
}
