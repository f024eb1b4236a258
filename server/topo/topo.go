// Package topo implements the Topology Row List (spec.md §4.5): one
// chain per vertex of incident-edge cells. The authoritative MVCC chain
// for an edge version lives in the Data Storage façade's out/in edge
// maps (spec.md §4.6: "out_edge_map and in_edge_map: Concurrent<eid ->
// MVCCList<EdgeVersion>>"); a topology row list cell holds a pointer
// into whichever of those two chains corresponds to this vertex's side
// of the edge, so that direction-scoped traversal never has to consult
// the global map. Versioning (append/commit/abort) therefore happens on
// the list itself, driven by the storage façade — this package only
// structures and indexes the pointers.
//
// Grounded on the same row-chaining idiom as server/proprow (itself
// grounded on the teacher's mvcc_page.go fixed-slot page), specialized
// to the {is_out, other_vid, mvcc_list<EdgeVersion>} cell shape of
// spec.md §4.5 instead of proprow's {pid, mvcc_list<PropertyValue>}.
package topo

import (
	"sync"

	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/mvcc"
	"github.com/xgraph-db/xgraph-server/server/proprow"
)

const rowCapacity = 12

// EdgeVersion is the mvcc.Value payload for one edge's version chain.
// Props is only non-nil on the out side (spec.md §3.2: "Property row
// list lives only on the out side"); Empty marks a dropped edge.
type EdgeVersion struct {
	Label common.PID
	Props *proprow.RowList
	Empty bool
}

// ValueGC frees the edge's property row list, if this version owns one.
func (e EdgeVersion) ValueGC(tid int) {
	if e.Props != nil {
		e.Props.SelfGarbageCollect(tid)
	}
}

type cell struct {
	isOut    bool
	otherVID common.VID
	list     *mvcc.List[EdgeVersion]
}

type row struct {
	cells [rowCapacity]cell
	count int
	next  *row
}

// RowList is one vertex's incident-edge index.
type RowList struct {
	rwlock sync.RWMutex
	head   *row
	tail   *row
	count  int // edge_count: monotone for additions only
}

// New creates an empty topology row list.
func New() *RowList {
	return &RowList{}
}

// EdgeCount returns the monotone-on-insert edge count (drops do not
// decrement it — they tombstone the cell's current version instead).
func (rl *RowList) EdgeCount() int {
	rl.rwlock.RLock()
	defer rl.rwlock.RUnlock()
	return rl.count
}

// InsertInitialCell indexes an already-initial-versioned edge chain
// under (isOut, otherVID), for load-time population.
func (rl *RowList) InsertInitialCell(isOut bool, otherVID common.VID, list *mvcc.List[EdgeVersion]) {
	rl.rwlock.Lock()
	defer rl.rwlock.Unlock()
	rl.appendCellLocked(isOut, otherVID, list)
}

// AddCell indexes a brand-new edge chain under (isOut, otherVID). The
// caller guarantees at most one AddCell call per distinct eid per
// vertex (spec.md §4.5) and has already appended the chain's first
// (uncommitted) version via the mvcc.List directly.
func (rl *RowList) AddCell(isOut bool, otherVID common.VID, list *mvcc.List[EdgeVersion]) {
	rl.rwlock.Lock()
	defer rl.rwlock.Unlock()
	rl.appendCellLocked(isOut, otherVID, list)
}

// FindList returns the MVCC chain indexed under (isOut, otherVID), or
// nil if no such cell exists, for callers (the storage façade) that
// need to append a drop/modify version directly onto it.
func (rl *RowList) FindList(isOut bool, otherVID common.VID) *mvcc.List[EdgeVersion] {
	c := rl.findCell(isOut, otherVID)
	if c == nil {
		return nil
	}
	return c.list
}

// EdgeInfo describes one visible incident edge.
type EdgeInfo struct {
	OtherVID common.VID
	Label    common.PID
	IsOut    bool
}

// ReadConnectedEdges walks the chain (snapshotting edge_count first, per
// spec.md §4.5), honoring visibility and direction/label filters and
// skipping empty (dropped) versions. labelFilter == nil matches any
// label. Non-VisibleNone pre-read dependencies are returned alongside so
// C6 can register them.
func (rl *RowList) ReadConnectedEdges(direction common.Direction, labelFilter *common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) ([]EdgeInfo, []common.Dep) {
	cells := rl.snapshotCells()

	var out []EdgeInfo
	var deps []common.Dep
	for _, c := range cells {
		if !directionMatches(direction, c.isOut) {
			continue
		}
		res := c.list.GetVisibleVersion(trxID, beginTime, readOnly)
		dep := depFromVisibility(res.Visibility, res.WriterTrx)
		if dep.Kind != common.DepNone {
			deps = append(deps, dep)
		}
		if res.Visibility == mvcc.VisibleNone {
			continue
		}
		if res.Value.Empty {
			continue
		}
		if labelFilter != nil && res.Value.Label != *labelFilter {
			continue
		}
		out = append(out, EdgeInfo{OtherVID: c.otherVID, Label: res.Value.Label, IsOut: c.isOut})
	}
	return out, deps
}

// ReadConnectedVertex is ReadConnectedEdges projected down to the
// neighboring vertex ids.
func (rl *RowList) ReadConnectedVertex(direction common.Direction, labelFilter *common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) ([]common.VID, []common.Dep) {
	edges, deps := rl.ReadConnectedEdges(direction, labelFilter, trxID, beginTime, readOnly)
	out := make([]common.VID, len(edges))
	for i, e := range edges {
		out[i] = e.OtherVID
	}
	return out, deps
}

func directionMatches(direction common.Direction, isOut bool) bool {
	switch direction {
	case common.DirOut:
		return isOut
	case common.DirIn:
		return !isOut
	default: // DirBoth
		return true
	}
}

func depFromVisibility(v mvcc.Visibility, writer common.TrxID) common.Dep {
	switch v {
	case mvcc.VisiblePreReadHomo:
		return common.Dep{Kind: common.DepHomo, Writer: writer}
	case mvcc.VisiblePreReadHetero:
		return common.Dep{Kind: common.DepHetero, Writer: writer}
	default:
		return common.Dep{}
	}
}

func (rl *RowList) snapshotCells() []*cell {
	rl.rwlock.RLock()
	defer rl.rwlock.RUnlock()

	out := make([]*cell, 0, rl.count)
	remaining := rl.count
	for r := rl.head; r != nil && remaining > 0; r = r.next {
		n := r.count
		if n > remaining {
			n = remaining
		}
		for i := 0; i < n; i++ {
			out = append(out, &r.cells[i])
		}
		remaining -= n
	}
	return out
}

func (rl *RowList) findCell(isOut bool, otherVID common.VID) *cell {
	rl.rwlock.RLock()
	defer rl.rwlock.RUnlock()

	for r := rl.head; r != nil; r = r.next {
		for i := 0; i < r.count; i++ {
			c := &r.cells[i]
			if c.isOut == isOut && c.otherVID == otherVID {
				return c
			}
		}
	}
	return nil
}

// appendCellLocked requires rl.rwlock held for write.
func (rl *RowList) appendCellLocked(isOut bool, otherVID common.VID, list *mvcc.List[EdgeVersion]) *cell {
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
	c.isOut = isOut
	c.otherVID = otherVID
	c.list = list
	rl.tail.count++
	rl.count++
	return c
}
