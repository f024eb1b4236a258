// Package storage implements the Data Storage façade (spec.md §4.6): the
// vertex map, the paired out/in edge maps, and the CRUD/read API every
// write and traversal primitive goes through. It owns the two value
// stores (vertex-property and edge-property) and wires each successful
// write into the Recent-Action Table, and it is the one place that
// resolves a C3 pre-read outcome into a transaction's dependency set.
//
// Grounded on the teacher's server/innodb/manager/transaction_manager.go
// Transaction/ReadView construction and active-transaction bookkeeping,
// generalized from row-level transactions to graph primitives, and on
// server/innodb/manager/buffer_pool_manager.go's sharded-map idiom for
// the vertex/edge maps themselves (here sharded with util.HashCode, the
// same xxhash wrapper the teacher keeps in util/hash_utils.go, rather
// than a single big RWMutex-guarded map).
package storage

import (
	"encoding/binary"
	"sync"

	"go.uber.org/atomic"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/mvcc"
	"github.com/xgraph-db/xgraph-server/server/proprow"
	"github.com/xgraph-db/xgraph-server/server/rct"
	"github.com/xgraph-db/xgraph-server/server/topo"
	"github.com/xgraph-db/xgraph-server/server/valuestore"
	"github.com/xgraph-db/xgraph-server/util"
)

const shardCount = 32

// VertexExistence is the mvcc.Value payload of a vertex's existence
// chain (spec.md §3.3: "vertex deletion is expressed as a false
// existence version"). It owns nothing, so ValueGC is a no-op.
type VertexExistence bool

func (VertexExistence) ValueGC(int) {}

// Vertex is one vertex's structural state. Label is set once at
// creation and is not itself versioned — unlike an edge's label, which
// rides along inside its EdgeVersion chain.
type Vertex struct {
	ID     common.VID
	Label  common.PID
	Exists *mvcc.List[VertexExistence]
	Props  *proprow.RowList
	Topo   *topo.RowList
}

// IdMapper reports whether an element is owned by the local worker.
// Non-local elements are filtered out before any MVCC access, per
// spec.md §4.6.
type IdMapper interface {
	VertexIsLocal(vid common.VID) bool
	EdgeIsLocal(eid common.EID) bool
}

// AllLocal is the trivial IdMapper for a single-worker deployment or a
// test, where every element is local.
type AllLocal struct{}

func (AllLocal) VertexIsLocal(common.VID) bool { return true }
func (AllLocal) EdgeIsLocal(common.EID) bool   { return true }

// ReadStat is the outcome of a read primitive.
type ReadStat int

const (
	ReadSuccess ReadStat = iota
	ReadNotFound
	ReadAbort
)

// ProcessStat is the outcome of a write primitive.
type ProcessStat int

const (
	ProcessSuccess ProcessStat = iota
	ProcessAbort
)

type vertexShard struct {
	mu sync.RWMutex
	m  map[common.VID]*Vertex
}

type edgeShard struct {
	mu sync.RWMutex
	m  map[common.EID]*mvcc.List[topo.EdgeVersion]
}

// Store is the Data Storage façade.
type Store struct {
	idMapper IdMapper
	rct      *rct.Table

	vpStore *valuestore.Store
	epStore *valuestore.Store

	vertexShards [shardCount]vertexShard
	outShards    [shardCount]edgeShard // out_edge_map, keyed by eid
	inShards     [shardCount]edgeShard // in_edge_map, keyed by eid

	nextVID atomic.Uint32

	deps depTrxMap
}

// New creates an empty Store. vpStore and epStore back the vertex- and
// edge-property row lists respectively; rctTable receives every
// successful write.
func New(idMapper IdMapper, rctTable *rct.Table, vpStore, epStore *valuestore.Store) *Store {
	s := &Store{
		idMapper: idMapper,
		rct:      rctTable,
		vpStore:  vpStore,
		epStore:  epStore,
	}
	for i := range s.vertexShards {
		s.vertexShards[i].m = make(map[common.VID]*Vertex)
	}
	for i := range s.outShards {
		s.outShards[i].m = make(map[common.EID]*mvcc.List[topo.EdgeVersion])
	}
	for i := range s.inShards {
		s.inShards[i].m = make(map[common.EID]*mvcc.List[topo.EdgeVersion])
	}
	s.deps.m = make(map[common.TrxID]*depSet)
	return s
}

func vidShard(vid common.VID) int {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(vid))
	return int(util.HashCode(buf[:]) % shardCount)
}

func eidShard(eid common.EID) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(eid))
	return int(util.HashCode(buf[:]) % shardCount)
}

func (s *Store) getVertex(vid common.VID) (*Vertex, bool) {
	sh := &s.vertexShards[vidShard(vid)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[vid]
	return v, ok
}

func (s *Store) putVertex(v *Vertex) {
	sh := &s.vertexShards[vidShard(v.ID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[v.ID] = v
}

// GetVertex exposes a vertex's structural handle, for callers (future
// expert kernels) that walk Topo/Props directly once they already hold
// a visible vid.
func (s *Store) GetVertex(vid common.VID) (*Vertex, bool) { return s.getVertex(vid) }

// AllVertexIDs returns every vertex id allocated locally, for the init
// expert's full-scan mode and the property index's build_index scan.
// Visibility is the caller's responsibility: this enumerates allocation,
// not existence as of any particular snapshot.
func (s *Store) AllVertexIDs() []common.VID {
	var out []common.VID
	for i := range s.vertexShards {
		sh := &s.vertexShards[i]
		sh.mu.RLock()
		for vid := range sh.m {
			out = append(out, vid)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *Store) getOutEdgeList(eid common.EID) (*mvcc.List[topo.EdgeVersion], bool) {
	sh := &s.outShards[eidShard(eid)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	l, ok := sh.m[eid]
	return l, ok
}

func (s *Store) putOutEdgeList(eid common.EID, l *mvcc.List[topo.EdgeVersion]) {
	sh := &s.outShards[eidShard(eid)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[eid] = l
}

func (s *Store) getInEdgeList(eid common.EID) (*mvcc.List[topo.EdgeVersion], bool) {
	sh := &s.inShards[eidShard(eid)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	l, ok := sh.m[eid]
	return l, ok
}

func (s *Store) putInEdgeList(eid common.EID, l *mvcc.List[topo.EdgeVersion]) {
	sh := &s.inShards[eidShard(eid)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[eid] = l
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

func convPropStat(s proprow.ReadStat) ReadStat {
	switch s {
	case proprow.ReadSuccess:
		return ReadSuccess
	case proprow.ReadAbort:
		return ReadAbort
	default:
		return ReadNotFound
	}
}

// resolveVertexExistence checks v's existence chain for (trxID,
// beginTime, readOnly), registering any pre-read dependency along the
// way.
func (s *Store) resolveVertexExistence(v *Vertex, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (ReadStat, bool) {
	res := v.Exists.GetVisibleVersion(trxID, beginTime, readOnly)
	s.deps.record(trxID, depFromVisibility(res.Visibility, res.WriterTrx))
	if res.Visibility == mvcc.VisibleNone {
		return ReadNotFound, false
	}
	if !bool(res.Value) {
		return ReadNotFound, false
	}
	return ReadSuccess, true
}

func (s *Store) recordWrite(primitive common.Primitive, trxID common.TrxID, itemID uint64, pid common.PID, kind common.ElemType) {
	s.rct.Record(primitive, trxID, rct.Record{ItemID: itemID, PID: pid, ElemKind: kind})
}

// ---- write primitives ----

// ProcessAddVertex creates a new vertex under a fresh vid, visible only
// to trxID until commit.
func (s *Store) ProcessAddVertex(label common.PID, trxID common.TrxID, beginTime common.Timestamp, tid int) (common.VID, ProcessStat) {
	vid := common.NewVID(s.nextVID.Add(1))
	v := &Vertex{
		ID:     vid,
		Label:  label,
		Exists: mvcc.NewList[VertexExistence](),
		Props:  proprow.New(s.vpStore),
		Topo:   topo.New(),
	}
	ok, _, _ := v.Exists.AppendVersion(trxID, beginTime, true)
	if !ok {
		// Unreachable: the chain was just created and has no tail yet.
		return 0, ProcessAbort
	}
	s.putVertex(v)
	s.recordWrite(common.PrimIV, trxID, uint64(vid), common.LabelPID, common.ElemVertex)
	return vid, ProcessSuccess
}

// ProcessAddEdge adds (or reuses, after a prior drop) a directed edge
// src -> dst. It aborts if either endpoint is invisible or deleted, or
// if the edge already exists in any visible-or-uncommitted version.
func (s *Store) ProcessAddEdge(srcVID, dstVID common.VID, label common.PID, trxID common.TrxID, beginTime common.Timestamp, tid int) (common.EID, ProcessStat) {
	eid := common.NewEID(dstVID, srcVID)
	if !s.idMapper.VertexIsLocal(srcVID) || !s.idMapper.VertexIsLocal(dstVID) {
		return eid, ProcessAbort
	}

	srcV, ok := s.getVertex(srcVID)
	if !ok {
		return eid, ProcessAbort
	}
	dstV, ok := s.getVertex(dstVID)
	if !ok {
		return eid, ProcessAbort
	}
	if stat, exists := s.resolveVertexExistence(srcV, trxID, beginTime, false); stat != ReadSuccess || !exists {
		return eid, ProcessAbort
	}
	if stat, exists := s.resolveVertexExistence(dstV, trxID, beginTime, false); stat != ReadSuccess || !exists {
		return eid, ProcessAbort
	}

	outList, hasOut := s.getOutEdgeList(eid)
	if hasOut {
		vis := outList.GetVisibleVersion(trxID, beginTime, false)
		s.deps.record(trxID, depFromVisibility(vis.Visibility, vis.WriterTrx))
		if vis.Visibility != mvcc.VisibleNone && !vis.Value.Empty {
			return eid, ProcessAbort
		}
	} else {
		outList = mvcc.NewList[topo.EdgeVersion]()
	}
	inList, hasIn := s.getInEdgeList(eid)
	if !hasIn {
		inList = mvcc.NewList[topo.EdgeVersion]()
	}

	okOut, _, _ := outList.AppendVersion(trxID, beginTime, topo.EdgeVersion{Label: label, Props: proprow.New(s.epStore)})
	if !okOut {
		return eid, ProcessAbort
	}
	okIn, _, _ := inList.AppendVersion(trxID, beginTime, topo.EdgeVersion{Label: label})
	if !okIn {
		outList.AbortVersion(trxID, tid)
		return eid, ProcessAbort
	}

	if !hasOut {
		s.putOutEdgeList(eid, outList)
		srcV.Topo.AddCell(true, dstVID, outList)
	}
	if !hasIn {
		s.putInEdgeList(eid, inList)
		dstV.Topo.AddCell(false, srcVID, inList)
	}

	s.recordWrite(common.PrimIE, trxID, uint64(eid), common.LabelPID, common.ElemEdge)
	return eid, ProcessSuccess
}

// ProcessDropVertex appends a false existence version and drops every
// edge visible to trxID incident to vid.
func (s *Store) ProcessDropVertex(vid common.VID, trxID common.TrxID, beginTime common.Timestamp, tid int) ProcessStat {
	if !s.idMapper.VertexIsLocal(vid) {
		return ProcessAbort
	}
	v, ok := s.getVertex(vid)
	if !ok {
		return ProcessAbort
	}
	if stat, exists := s.resolveVertexExistence(v, trxID, beginTime, false); stat != ReadSuccess || !exists {
		return ProcessAbort
	}

	edges, deps := v.Topo.ReadConnectedEdges(common.DirBoth, nil, trxID, beginTime, false)
	for _, d := range deps {
		s.deps.record(trxID, d)
	}
	for _, e := range edges {
		srcVID, dstVID := vid, e.OtherVID
		if !e.IsOut {
			srcVID, dstVID = e.OtherVID, vid
		}
		if stat := s.dropEdgeBothSides(srcVID, dstVID, trxID, beginTime, tid); stat != ProcessSuccess {
			return ProcessAbort
		}
		s.recordWrite(common.PrimDE, trxID, uint64(common.NewEID(dstVID, srcVID)), common.LabelPID, common.ElemEdge)
	}

	// TODO: a concurrent write-write conflict on v.Exists here leaves the
	// edges already dropped above uncommitted-but-unrolled-back; this
	// races only against another transaction dropping/modifying the same
	// vertex concurrently, a case the validation path (once RCT's
	// CommittedSince cross-check is wired into an expert kernel) should
	// reject before it reaches here.
	ok2, _, _ := v.Exists.AppendVersion(trxID, beginTime, false)
	if !ok2 {
		return ProcessAbort
	}
	s.recordWrite(common.PrimDV, trxID, uint64(vid), common.LabelPID, common.ElemVertex)
	return ProcessSuccess
}

// ProcessDropEdge drops the edge identified by eid.
func (s *Store) ProcessDropEdge(eid common.EID, trxID common.TrxID, beginTime common.Timestamp, tid int) ProcessStat {
	if !s.idMapper.EdgeIsLocal(eid) {
		return ProcessAbort
	}
	stat := s.dropEdgeBothSides(eid.Src(), eid.Dst(), trxID, beginTime, tid)
	if stat == ProcessSuccess {
		s.recordWrite(common.PrimDE, trxID, uint64(eid), common.LabelPID, common.ElemEdge)
	}
	return stat
}

// dropEdgeBothSides appends an Empty version to the out and in chains of
// src->dst, aborting the out-side append if the in-side append loses a
// write-write race.
func (s *Store) dropEdgeBothSides(srcVID, dstVID common.VID, trxID common.TrxID, beginTime common.Timestamp, tid int) ProcessStat {
	srcV, ok := s.getVertex(srcVID)
	if !ok {
		return ProcessAbort
	}
	dstV, ok := s.getVertex(dstVID)
	if !ok {
		return ProcessAbort
	}

	outList := srcV.Topo.FindList(true, dstVID)
	if outList == nil {
		return ProcessAbort
	}
	vis := outList.GetVisibleVersion(trxID, beginTime, false)
	s.deps.record(trxID, depFromVisibility(vis.Visibility, vis.WriterTrx))
	if vis.Visibility == mvcc.VisibleNone || vis.Value.Empty {
		return ProcessAbort
	}

	inList := dstV.Topo.FindList(false, srcVID)
	if inList == nil {
		return ProcessAbort
	}

	okOut, _, _ := outList.AppendVersion(trxID, beginTime, topo.EdgeVersion{Empty: true})
	if !okOut {
		return ProcessAbort
	}
	okIn, _, _ := inList.AppendVersion(trxID, beginTime, topo.EdgeVersion{Empty: true})
	if !okIn {
		outList.AbortVersion(trxID, tid)
		return ProcessAbort
	}
	return ProcessSuccess
}

// ProcessModifyVP versions pid on vid's property row list.
func (s *Store) ProcessModifyVP(vid common.VID, pid common.PID, value basic.Value, trxID common.TrxID, beginTime common.Timestamp, tid int) ProcessStat {
	if !s.idMapper.VertexIsLocal(vid) {
		return ProcessAbort
	}
	v, ok := s.getVertex(vid)
	if !ok {
		return ProcessAbort
	}
	if stat, exists := s.resolveVertexExistence(v, trxID, beginTime, false); stat != ReadSuccess || !exists {
		return ProcessAbort
	}
	ok2, _, _, _ := v.Props.ProcessModifyProperty(pid, value, trxID, beginTime, tid)
	if !ok2 {
		return ProcessAbort
	}
	s.recordWrite(common.PrimMVP, trxID, uint64(vid), pid, common.ElemVertex)
	return ProcessSuccess
}

// ProcessDropVP tombstones pid on vid's property row list.
func (s *Store) ProcessDropVP(vid common.VID, pid common.PID, trxID common.TrxID, beginTime common.Timestamp) ProcessStat {
	if !s.idMapper.VertexIsLocal(vid) {
		return ProcessAbort
	}
	v, ok := s.getVertex(vid)
	if !ok {
		return ProcessAbort
	}
	if stat, exists := s.resolveVertexExistence(v, trxID, beginTime, false); stat != ReadSuccess || !exists {
		return ProcessAbort
	}
	ok2, _, _ := v.Props.ProcessDropProperty(pid, trxID, beginTime)
	if !ok2 {
		return ProcessAbort
	}
	s.recordWrite(common.PrimDVP, trxID, uint64(vid), pid, common.ElemVertex)
	return ProcessSuccess
}

// edgePropsFor resolves eid's current (possibly this trx's own
// uncommitted) out-side property row list, the only side that owns one.
func (s *Store) edgePropsFor(eid common.EID, trxID common.TrxID, beginTime common.Timestamp) (*proprow.RowList, ProcessStat) {
	if !s.idMapper.EdgeIsLocal(eid) {
		return nil, ProcessAbort
	}
	srcV, ok := s.getVertex(eid.Src())
	if !ok {
		return nil, ProcessAbort
	}
	outList := srcV.Topo.FindList(true, eid.Dst())
	if outList == nil {
		return nil, ProcessAbort
	}
	vis := outList.GetVisibleVersion(trxID, beginTime, false)
	s.deps.record(trxID, depFromVisibility(vis.Visibility, vis.WriterTrx))
	if vis.Visibility == mvcc.VisibleNone || vis.Value.Empty || vis.Value.Props == nil {
		return nil, ProcessAbort
	}
	return vis.Value.Props, ProcessSuccess
}

// ProcessModifyEP versions pid on eid's edge-property row list.
func (s *Store) ProcessModifyEP(eid common.EID, pid common.PID, value basic.Value, trxID common.TrxID, beginTime common.Timestamp, tid int) ProcessStat {
	props, stat := s.edgePropsFor(eid, trxID, beginTime)
	if stat != ProcessSuccess {
		return stat
	}
	ok, _, _, _ := props.ProcessModifyProperty(pid, value, trxID, beginTime, tid)
	if !ok {
		return ProcessAbort
	}
	s.recordWrite(common.PrimMEP, trxID, uint64(eid), pid, common.ElemEdge)
	return ProcessSuccess
}

// ProcessDropEP tombstones pid on eid's edge-property row list.
func (s *Store) ProcessDropEP(eid common.EID, pid common.PID, trxID common.TrxID, beginTime common.Timestamp) ProcessStat {
	props, stat := s.edgePropsFor(eid, trxID, beginTime)
	if stat != ProcessSuccess {
		return stat
	}
	ok, _, _ := props.ProcessDropProperty(pid, trxID, beginTime)
	if !ok {
		return ProcessAbort
	}
	s.recordWrite(common.PrimDEP, trxID, uint64(eid), pid, common.ElemEdge)
	return ProcessSuccess
}

// ---- read primitives ----

// ReadVertexExists reports whether vid is visible to (trxID, beginTime).
func (s *Store) ReadVertexExists(vid common.VID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) ReadStat {
	v, ok := s.getVertex(vid)
	if !ok {
		return ReadNotFound
	}
	stat, exists := s.resolveVertexExistence(v, trxID, beginTime, readOnly)
	if stat != ReadSuccess || !exists {
		return ReadNotFound
	}
	return ReadSuccess
}

// ReadVertexLabel returns vid's label.
func (s *Store) ReadVertexLabel(vid common.VID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (common.PID, ReadStat) {
	v, ok := s.getVertex(vid)
	if !ok {
		return 0, ReadNotFound
	}
	stat, exists := s.resolveVertexExistence(v, trxID, beginTime, readOnly)
	if stat != ReadSuccess || !exists {
		return 0, ReadNotFound
	}
	return v.Label, ReadSuccess
}

// ReadVertexProperty resolves pid's visible value on vid.
func (s *Store) ReadVertexProperty(vid common.VID, pid common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (basic.Value, ReadStat) {
	v, ok := s.getVertex(vid)
	if !ok {
		return basic.Null(), ReadNotFound
	}
	stat, exists := s.resolveVertexExistence(v, trxID, beginTime, readOnly)
	if stat != ReadSuccess || !exists {
		return basic.Null(), ReadNotFound
	}
	pstat, val, dep := v.Props.ReadProperty(pid, trxID, beginTime, readOnly)
	s.deps.record(trxID, dep)
	return val, convPropStat(pstat)
}

// ReadVertexAllProperties returns every live pid -> value on vid.
func (s *Store) ReadVertexAllProperties(vid common.VID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (map[common.PID]basic.Value, ReadStat) {
	v, ok := s.getVertex(vid)
	if !ok {
		return nil, ReadNotFound
	}
	stat, exists := s.resolveVertexExistence(v, trxID, beginTime, readOnly)
	if stat != ReadSuccess || !exists {
		return nil, ReadNotFound
	}
	props, pstat := v.Props.ReadAllProperty(trxID, beginTime, readOnly)
	return props, convPropStat(pstat)
}

// ReadConnectedVertices lists the neighboring vids reachable from vid in
// direction, optionally filtered by label.
func (s *Store) ReadConnectedVertices(vid common.VID, direction common.Direction, labelFilter *common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) ([]common.VID, ReadStat) {
	v, ok := s.getVertex(vid)
	if !ok {
		return nil, ReadNotFound
	}
	stat, exists := s.resolveVertexExistence(v, trxID, beginTime, readOnly)
	if stat != ReadSuccess || !exists {
		return nil, ReadNotFound
	}
	out, deps := v.Topo.ReadConnectedVertex(direction, labelFilter, trxID, beginTime, readOnly)
	for _, d := range deps {
		s.deps.record(trxID, d)
	}
	return out, ReadSuccess
}

// ReadConnectedEdges lists the incident edges of vid in direction,
// optionally filtered by label.
func (s *Store) ReadConnectedEdges(vid common.VID, direction common.Direction, labelFilter *common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) ([]topo.EdgeInfo, ReadStat) {
	v, ok := s.getVertex(vid)
	if !ok {
		return nil, ReadNotFound
	}
	stat, exists := s.resolveVertexExistence(v, trxID, beginTime, readOnly)
	if stat != ReadSuccess || !exists {
		return nil, ReadNotFound
	}
	out, deps := v.Topo.ReadConnectedEdges(direction, labelFilter, trxID, beginTime, readOnly)
	for _, d := range deps {
		s.deps.record(trxID, d)
	}
	return out, ReadSuccess
}

// ReadEdgeLabel resolves eid's visible label.
func (s *Store) ReadEdgeLabel(eid common.EID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (common.PID, ReadStat) {
	srcV, ok := s.getVertex(eid.Src())
	if !ok {
		return 0, ReadNotFound
	}
	outList := srcV.Topo.FindList(true, eid.Dst())
	if outList == nil {
		return 0, ReadNotFound
	}
	res := outList.GetVisibleVersion(trxID, beginTime, readOnly)
	s.deps.record(trxID, depFromVisibility(res.Visibility, res.WriterTrx))
	if res.Visibility == mvcc.VisibleNone || res.Value.Empty {
		return 0, ReadNotFound
	}
	return res.Value.Label, ReadSuccess
}

// ReadEdgeProperty resolves pid's visible value on eid.
func (s *Store) ReadEdgeProperty(eid common.EID, pid common.PID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (basic.Value, ReadStat) {
	props, stat := s.edgePropsFor(eid, trxID, beginTime)
	if stat != ProcessSuccess {
		return basic.Null(), ReadNotFound
	}
	pstat, val, dep := props.ReadProperty(pid, trxID, beginTime, readOnly)
	s.deps.record(trxID, dep)
	return val, convPropStat(pstat)
}

// ReadEdgeAllProperties returns every live pid -> value on eid.
func (s *Store) ReadEdgeAllProperties(eid common.EID, trxID common.TrxID, beginTime common.Timestamp, readOnly bool) (map[common.PID]basic.Value, ReadStat) {
	props, stat := s.edgePropsFor(eid, trxID, beginTime)
	if stat != ProcessSuccess {
		return nil, ReadNotFound
	}
	out, pstat := props.ReadAllProperty(trxID, beginTime, readOnly)
	return out, convPropStat(pstat)
}

// ---- dependency bookkeeping ----

type depSet struct {
	mu     sync.Mutex
	homo   map[common.TrxID]struct{}
	hetero map[common.TrxID]struct{}
}

// depTrxMap is dep_trx_map from spec.md §4.6: trx_id -> {homo_dep,
// hetero_dep}, populated as a side effect of every C3 pre-read resolved
// by the read/write primitives above.
type depTrxMap struct {
	mu sync.RWMutex
	m  map[common.TrxID]*depSet
}

func (d *depTrxMap) record(trxID common.TrxID, dep common.Dep) {
	if dep.Kind == common.DepNone {
		return
	}
	d.mu.RLock()
	ds, ok := d.m[trxID]
	d.mu.RUnlock()
	if !ok {
		d.mu.Lock()
		ds, ok = d.m[trxID]
		if !ok {
			ds = &depSet{homo: make(map[common.TrxID]struct{}), hetero: make(map[common.TrxID]struct{})}
			d.m[trxID] = ds
		}
		d.mu.Unlock()
	}

	ds.mu.Lock()
	switch dep.Kind {
	case common.DepHomo:
		ds.homo[dep.Writer] = struct{}{}
	case common.DepHetero:
		ds.hetero[dep.Writer] = struct{}{}
	}
	ds.mu.Unlock()
}

func (d *depTrxMap) clear(trxID common.TrxID) {
	d.mu.Lock()
	delete(d.m, trxID)
	d.mu.Unlock()
}

// Dependencies returns trxID's accumulated HOMO and HETERO writer sets,
// for the validation expert to check against RCT's committed index.
func (s *Store) Dependencies(trxID common.TrxID) (homo, hetero []common.TrxID) {
	s.deps.mu.RLock()
	ds, ok := s.deps.m[trxID]
	s.deps.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	for w := range ds.homo {
		homo = append(homo, w)
	}
	for w := range ds.hetero {
		hetero = append(hetero, w)
	}
	return homo, hetero
}

// ---- commit / abort ----

// CommitTransaction finalizes every MVCC version trxID appended, using
// its RCT writes to resolve which lists to commit, moves those writes
// into RCT's committed-by-time index, and clears trxID's dependency set.
func (s *Store) CommitTransaction(trxID common.TrxID, commitTime common.Timestamp) {
	for _, p := range common.AllPrimitives() {
		for _, rec := range s.rct.Records(p, trxID) {
			s.commitRecord(p, rec, trxID, commitTime)
		}
	}
	s.rct.Commit(trxID, commitTime)
	s.deps.clear(trxID)
}

// AbortTransaction detaches every uncommitted version trxID appended and
// discards its RCT writes and dependency set.
func (s *Store) AbortTransaction(trxID common.TrxID, tid int) {
	for _, p := range common.AllPrimitives() {
		for _, rec := range s.rct.Records(p, trxID) {
			s.abortRecord(p, rec, trxID, tid)
		}
	}
	s.rct.Abort(trxID)
	s.deps.clear(trxID)
}

func (s *Store) commitRecord(p common.Primitive, rec rct.Record, trxID common.TrxID, commitTime common.Timestamp) {
	switch p {
	case common.PrimIV, common.PrimDV:
		if v, ok := s.getVertex(common.VID(rec.ItemID)); ok {
			v.Exists.CommitVersion(trxID, commitTime)
		}
	case common.PrimIE, common.PrimDE:
		eid := common.EID(rec.ItemID)
		if l, ok := s.getOutEdgeList(eid); ok {
			l.CommitVersion(trxID, commitTime)
		}
		if l, ok := s.getInEdgeList(eid); ok {
			l.CommitVersion(trxID, commitTime)
		}
	case common.PrimIVP, common.PrimMVP, common.PrimDVP:
		if v, ok := s.getVertex(common.VID(rec.ItemID)); ok {
			v.Props.CommitProperty(rec.PID, trxID, commitTime)
		}
	case common.PrimIEP, common.PrimMEP, common.PrimDEP:
		if props, ok := s.edgePropsForFinalize(common.EID(rec.ItemID)); ok {
			props.CommitProperty(rec.PID, trxID, commitTime)
		}
	}
}

func (s *Store) abortRecord(p common.Primitive, rec rct.Record, trxID common.TrxID, tid int) {
	switch p {
	case common.PrimIV, common.PrimDV:
		if v, ok := s.getVertex(common.VID(rec.ItemID)); ok {
			v.Exists.AbortVersion(trxID, tid)
		}
	case common.PrimIE, common.PrimDE:
		eid := common.EID(rec.ItemID)
		if l, ok := s.getOutEdgeList(eid); ok {
			l.AbortVersion(trxID, tid)
		}
		if l, ok := s.getInEdgeList(eid); ok {
			l.AbortVersion(trxID, tid)
		}
	case common.PrimIVP, common.PrimMVP, common.PrimDVP:
		if v, ok := s.getVertex(common.VID(rec.ItemID)); ok {
			v.Props.AbortProperty(rec.PID, trxID, tid)
		}
	case common.PrimIEP, common.PrimMEP, common.PrimDEP:
		if props, ok := s.edgePropsForFinalize(common.EID(rec.ItemID)); ok {
			props.AbortProperty(rec.PID, trxID, tid)
		}
	}
}

// edgePropsForFinalize resolves eid's out-side property row list from
// its current tail regardless of commit status, for the commit/abort
// path where the calling transaction's own write may still be pending.
func (s *Store) edgePropsForFinalize(eid common.EID) (*proprow.RowList, bool) {
	l, ok := s.getOutEdgeList(eid)
	if !ok {
		return nil, false
	}
	v, ok := l.PeekTailValue()
	if !ok || v.Props == nil {
		return nil, false
	}
	return v.Props, true
}
