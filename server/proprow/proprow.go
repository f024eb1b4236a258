// Package proprow implements the Property Row List (spec.md §4.4): an
// unbounded chain of fixed-capacity rows of (pid, MVCCList) cells, with
// an overflow hash index once the chain outgrows one row, guarded by a
// sync.RWMutex for the structural fields and a separate writer-preferred
// lock for garbage collection. The structural lock is not reader-priority:
// sync.RWMutex blocks new readers once a writer is waiting.
//
// Grounded on the teacher's server/innodb/storage/wrapper/mvcc/mvcc_page.go
// (a fixed page holding a `records map[uint16]*RecordVersion`, locked by
// a page-level mutex) generalized to a chained, capacity-bounded cell
// list per spec.md's row/overflow-index design, and on
// server/net/decoupled_handler.go's rwlock-guarded registry for the
// reader-priority-by-convention RWMutex usage.
package proprow

import (
	"sync"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/mvcc"
	"github.com/xgraph-db/xgraph-server/server/valuestore"
)

// rowCapacity is the number of cells per row; spec.md §4.4 calls for
// "typically 10-14".
const rowCapacity = 12

// PropertyValue is the mvcc.Value payload for one property version: a
// Value Store header, or the empty/tombstone header left by a drop.
type PropertyValue struct {
	store  *valuestore.Store
	header valuestore.Header
}

// ValueGC frees the underlying Value Store cells, if any.
func (p PropertyValue) ValueGC(tid int) {
	if !p.header.IsTombstone() {
		p.store.Free(p.header, tid)
	}
}

func (p PropertyValue) read() basic.Value {
	if p.header.IsTombstone() {
		return basic.Null()
	}
	tag, payload := p.store.Read(p.header)
	return basic.Decode(tag, payload)
}

type cell struct {
	pid  common.PID
	list *mvcc.List[PropertyValue]
}

type row struct {
	cells [rowCapacity]cell
	count int
	next  *row
}

// ReadStat is the outcome of a property read.
type ReadStat int

const (
	ReadSuccess ReadStat = iota
	ReadNotFound
	ReadAbort
)

// RowList is one vertex's or edge's property cell chain.
type RowList struct {
	store *valuestore.Store

	rwlock  sync.RWMutex // guards head, tail, count, cellMap
	head    *row
	tail    *row
	count   int
	cellMap map[common.PID]*cell // nil until count exceeds one row's capacity

	gcRwlock sync.RWMutex // writer-preferred; held in write mode by GC helpers
}

// New creates an empty row list backed by store for its property values.
func New(store *valuestore.Store) *RowList {
	return &RowList{store: store}
}

// PropertyCount returns the number of live cells (including ones whose
// current MVCC version is a drop tombstone — defragmentation reclaims
// those later, per spec.md §4.4).
func (rl *RowList) PropertyCount() int {
	rl.rwlock.RLock()
	defer rl.rwlock.RUnlock()
	return rl.count
}

// InsertInitialCell installs pid=value with no MVCC history, for
// load-time population.
func (rl *RowList) InsertInitialCell(pid common.PID, value basic.Value, tid int) {
	rl.rwlock.Lock()
	defer rl.rwlock.Unlock()

	c := rl.appendCellLocked(pid)
	tag, payload := basic.Encode(value)
	header := rl.store.Insert(tag, payload, tid)
	c.list.AppendInitialVersion(PropertyValue{store: rl.store, header: header})
}

// ReadProperty resolves pid's visible value for (trxID, beginTime).
func (rl *RowList) ReadProperty(pid common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (ReadStat, basic.Value, common.Dep) {
	c := rl.findCell(pid)
	if c == nil {
		return ReadNotFound, basic.Null(), common.Dep{}
	}
	return resolveRead(c.list, trxID, beginTime, readOnly)
}

// ReadPropertyByKeyList batches ReadProperty over pids, omitting entries
// that are NOTFOUND (callers distinguish "absent" from "present" purely
// by list membership, matching the has()/values() expert's needs).
func (rl *RowList) ReadPropertyByKeyList(pids []common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (map[common.PID]basic.Value, ReadStat) {
	out := make(map[common.PID]basic.Value, len(pids))
	for _, pid := range pids {
		stat, v, _ := rl.ReadProperty(pid, trxID, beginTime, readOnly)
		switch stat {
		case ReadAbort:
			return nil, ReadAbort
		case ReadSuccess:
			out[pid] = v
		}
	}
	return out, ReadSuccess
}

// ReadAllProperty returns every live pid -> value visible to (trxID,
// beginTime).
func (rl *RowList) ReadAllProperty(trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (map[common.PID]basic.Value, ReadStat) {
	pids := rl.ReadPidList()
	return rl.ReadPropertyByKeyList(pids, trxID, beginTime, readOnly)
}

// ReadPidList returns every pid this row list has ever held a cell for,
// independent of visibility (used by ReadAllProperty, and so by
// properties(), to list keys before filtering by visibility).
func (rl *RowList) ReadPidList() []common.PID {
	rl.rwlock.RLock()
	defer rl.rwlock.RUnlock()

	out := make([]common.PID, 0, rl.count)
	for r := rl.head; r != nil; r = r.next {
		for i := 0; i < r.count; i++ {
			out = append(out, r.cells[i].pid)
		}
	}
	return out
}

// ProcessModifyProperty appends a new version of pid, allocating a cell
// for it first if one doesn't exist yet. isModify is false when this
// call created a brand-new cell rather than versioning an existing one.
// ok is false on a write-write conflict; the caller must abort.
func (rl *RowList) ProcessModifyProperty(pid common.PID, value basic.Value, trxID common.TrxID, beginTime common.Timestamp, tid int) (ok bool, isModify bool, oldValue basic.Value, oldExists bool) {
	c := rl.findCell(pid)
	isModify = c != nil
	if c == nil {
		rl.rwlock.Lock()
		c = rl.findCellLocked(pid)
		if c == nil {
			c = rl.appendCellLocked(pid)
		} else {
			isModify = true
		}
		rl.rwlock.Unlock()
	}

	tag, payload := basic.Encode(value)
	header := rl.store.Insert(tag, payload, tid)
	pv := PropertyValue{store: rl.store, header: header}

	appended, old, exists := c.list.AppendVersion(trxID, beginTime, pv)
	if !appended {
		pv.ValueGC(tid)
		return false, isModify, basic.Value{}, false
	}
	if exists {
		oldValue = old.read()
	}
	return true, isModify, oldValue, exists
}

// ProcessDropProperty appends a tombstoned version of pid. ok is false
// on a write-write conflict.
func (rl *RowList) ProcessDropProperty(pid common.PID, trxID common.TrxID, beginTime common.Timestamp) (ok bool, oldValue basic.Value, oldExists bool) {
	c := rl.findCell(pid)
	if c == nil {
		return true, basic.Null(), false
	}
	appended, old, exists := c.list.AppendVersion(trxID, beginTime, PropertyValue{store: rl.store, header: valuestore.Tombstone()})
	if !appended {
		return false, basic.Value{}, false
	}
	if exists {
		oldValue = old.read()
	}
	return true, oldValue, exists
}

// CommitProperty promotes pid's uncommitted tail owned by trxID, for the
// commit path finalizing a transaction's writes cell by cell. A missing
// pid is a no-op (the cell's owner already committed it, or it never
// existed under this pid).
func (rl *RowList) CommitProperty(pid common.PID, trxID common.TrxID, commitTime common.Timestamp) {
	c := rl.findCell(pid)
	if c == nil {
		return
	}
	c.list.CommitVersion(trxID, commitTime)
}

// AbortProperty detaches pid's uncommitted tail owned by trxID.
func (rl *RowList) AbortProperty(pid common.PID, trxID common.TrxID, tid int) {
	c := rl.findCell(pid)
	if c == nil {
		return
	}
	c.list.AbortVersion(trxID, tid)
}

// SelfGarbageCollect releases every cell's value-store cells. Held under
// gcRwlock in write mode so no reader observes a half-freed chain.
func (rl *RowList) SelfGarbageCollect(tid int) {
	rl.gcRwlock.Lock()
	defer rl.gcRwlock.Unlock()

	rl.rwlock.RLock()
	defer rl.rwlock.RUnlock()

	for r := rl.head; r != nil; r = r.next {
		for i := 0; i < r.count; i++ {
			r.cells[i].list.SelfGarbageCollect(tid)
		}
	}
}

// SelfDefragment is a placeholder compaction pass: today it is a no-op
// beyond taking the gc lock, since rows are never physically repacked —
// a future pass can walk rows whose cells are all tombstoned-and-GC'd
// and unlink them, matching spec.md §4.4's "self_defragment()" contract
// without yet implementing physical compaction.
func (rl *RowList) SelfDefragment() {
	rl.gcRwlock.Lock()
	defer rl.gcRwlock.Unlock()
}

func (rl *RowList) findCell(pid common.PID) *cell {
	rl.rwlock.RLock()
	defer rl.rwlock.RUnlock()
	return rl.findCellLocked(pid)
}

func (rl *RowList) findCellLocked(pid common.PID) *cell {
	if rl.cellMap != nil {
		return rl.cellMap[pid]
	}
	for r := rl.head; r != nil; r = r.next {
		for i := 0; i < r.count; i++ {
			if r.cells[i].pid == pid {
				return &r.cells[i]
			}
		}
	}
	return nil
}

// appendCellLocked requires rl.rwlock held for write.
func (rl *RowList) appendCellLocked(pid common.PID) *cell {
	if rl.tail == nil || rl.tail.count == rowCapacity {
		newRow := &row{}
		if rl.head == nil {
			rl.head = newRow
		} else {
			rl.tail.next = newRow
		}
		rl.tail = newRow
	}

	c := &rl.tail.cells[rl.tail.count]
	c.pid = pid
	c.list = mvcc.NewList[PropertyValue]()
	rl.tail.count++
	rl.count++

	if rl.cellMap == nil && rl.count > rowCapacity {
		rl.buildIndexLocked()
	} else if rl.cellMap != nil {
		rl.cellMap[pid] = c
	}
	return c
}

func (rl *RowList) buildIndexLocked() {
	rl.cellMap = make(map[common.PID]*cell, rl.count)
	for r := rl.head; r != nil; r = r.next {
		for i := 0; i < r.count; i++ {
			rl.cellMap[r.cells[i].pid] = &r.cells[i]
		}
	}
}

func resolveRead(list *mvcc.List[PropertyValue], trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (ReadStat, basic.Value, common.Dep) {
	res := list.GetVisibleVersion(trxID, beginTime, readOnly)
	switch res.Visibility {
	case mvcc.VisibleNone:
		return ReadNotFound, basic.Null(), common.Dep{}
	case mvcc.VisiblePreReadHomo:
		if res.Value.header.IsTombstone() {
			return ReadNotFound, basic.Null(), common.Dep{Kind: common.DepHomo, Writer: res.WriterTrx}
		}
		return ReadSuccess, res.Value.read(), common.Dep{Kind: common.DepHomo, Writer: res.WriterTrx}
	case mvcc.VisiblePreReadHetero:
		if res.Value.header.IsTombstone() {
			return ReadNotFound, basic.Null(), common.Dep{Kind: common.DepHetero, Writer: res.WriterTrx}
		}
		return ReadSuccess, res.Value.read(), common.Dep{Kind: common.DepHetero, Writer: res.WriterTrx}
	default: // VisibleCommitted
		if res.Value.header.IsTombstone() {
			return ReadNotFound, basic.Null(), common.Dep{}
		}
		return ReadSuccess, res.Value.read(), common.Dep{}
	}
}
