// Package rct implements the Recent-Action Table (spec.md §4.8): a
// two-level concurrent map, primitive -> trx_id -> records, that every
// write primitive appends to at write time and the validation expert
// scans at validation time.
//
// Grounded on the teacher's server/innodb/manager/lock_manager.go
// two-level lock table (resource -> requests, trx -> held resources),
// generalized from lock bookkeeping to write-record bookkeeping: one
// shard per primitive kind instead of one shard per resource type.
package rct

import (
	"sync"

	"github.com/xgraph-db/xgraph-server/server/common"
)

// Record is one write's bookkeeping entry: which element and which
// property (pid == common.LabelPID for a structural vertex/edge record)
// the write touched.
type Record struct {
	ItemID  uint64 // common.VID or common.EID, widened
	PID     common.PID
	ElemKind common.ElemType
}

type trxBucket struct {
	mu      sync.RWMutex
	records map[common.TrxID][]Record
}

// Table is the per-primitive sharded write log. Records logged under a
// transaction are visible immediately to validation; Commit copies them
// into a separate committed-by-time index and clears the live bucket.
type Table struct {
	buckets []trxBucket

	committedMu sync.RWMutex
	committed   map[common.Timestamp][]committedEntry
}

type committedEntry struct {
	Primitive common.Primitive
	Record    Record
}

// New creates an empty table, one bucket per common.Primitive.
func New() *Table {
	all := common.AllPrimitives()
	t := &Table{
		buckets:   make([]trxBucket, len(all)),
		committed: make(map[common.Timestamp][]committedEntry),
	}
	for i := range t.buckets {
		t.buckets[i].records = make(map[common.TrxID][]Record)
	}
	return t
}

// Record appends rec under (primitive, trxID), called by every
// successful write primitive in the storage façade.
func (t *Table) Record(primitive common.Primitive, trxID common.TrxID, rec Record) {
	b := &t.buckets[primitive]
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[trxID] = append(b.records[trxID], rec)
}

// Records returns trxID's recorded writes for primitive, for validation
// to scan. The returned slice is a copy; callers must not rely on it
// reflecting later writes.
func (t *Table) Records(primitive common.Primitive, trxID common.TrxID) []Record {
	b := &t.buckets[primitive]
	b.mu.RLock()
	defer b.mu.RUnlock()
	recs := b.records[trxID]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out
}

// Commit copies trxID's records across every primitive into the
// committed-by-time index keyed by commitTime, then clears trxID's live
// buckets. Called once per transaction by the commit expert.
func (t *Table) Commit(trxID common.TrxID, commitTime common.Timestamp) {
	var moved []committedEntry
	for p := range t.buckets {
		b := &t.buckets[p]
		b.mu.Lock()
		recs := b.records[trxID]
		for _, r := range recs {
			moved = append(moved, committedEntry{Primitive: common.Primitive(p), Record: r})
		}
		delete(b.records, trxID)
		b.mu.Unlock()
	}

	t.committedMu.Lock()
	t.committed[commitTime] = append(t.committed[commitTime], moved...)
	t.committedMu.Unlock()
}

// Abort discards trxID's live records across every primitive bucket
// without copying them into the committed index.
func (t *Table) Abort(trxID common.TrxID) {
	for p := range t.buckets {
		b := &t.buckets[p]
		b.mu.Lock()
		delete(b.records, trxID)
		b.mu.Unlock()
	}
}

// CommittedRecord is one entry returned by CommittedSince.
type CommittedRecord struct {
	Primitive  common.Primitive
	Record     Record
	CommitTime common.Timestamp
}

// CommittedSince returns every committed record with commit time in
// (since, now], for validation's "was this item touched by a
// concurrent committer" scan.
func (t *Table) CommittedSince(since, now common.Timestamp) []CommittedRecord {
	t.committedMu.RLock()
	defer t.committedMu.RUnlock()

	var out []CommittedRecord
	for ts, entries := range t.committed {
		if ts <= since || ts > now {
			continue
		}
		for _, e := range entries {
			out = append(out, CommittedRecord{Primitive: e.Primitive, Record: e.Record, CommitTime: ts})
		}
	}
	return out
}
