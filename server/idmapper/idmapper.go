// Package idmapper implements the cluster's static ownership mapping
// (spec.md §4.14): which node a vertex or edge id belongs to, and
// whether a given id is local to this worker. Grounded on the teacher's
// server/innodb/manager/lock_manager.go makeResourceID sharding idiom
// (hash the id down to a fixed bucket count), generalized from a lock
// table's resource buckets to a node count.
package idmapper

import (
	"github.com/xgraph-db/xgraph-server/server/common"
)

// Mapper assigns every vertex/edge id a fixed owning node by hash-mod,
// the static partitioning scheme good enough to drive locality-aware
// dispatch in C10's CreateInitMessages and C6's write filtering: no
// rebalancing, no migration, one node count decided at cluster startup.
type Mapper struct {
	nodeCount int
	selfNID   int
}

// New builds a Mapper for a cluster of nodeCount nodes, where selfNID is
// this worker's own index — VertexIsLocal/EdgeIsLocal compare an id's
// owner against selfNID.
func New(nodeCount, selfNID int) *Mapper {
	if nodeCount <= 0 {
		nodeCount = 1
	}
	return &Mapper{nodeCount: nodeCount, selfNID: selfNID}
}

// OwnerOf returns the node index that owns vid, in [0, nodeCount).
func (m *Mapper) OwnerOf(vid common.VID) int {
	return int(uint32(vid) % uint32(m.nodeCount))
}

// OwnerOfEdge returns the node index that owns eid, keyed off its source
// vertex so an edge and its tail always co-locate (the teacher's own
// resource-id convention keys a row lock by the owning page, not by a
// derived id that could land elsewhere).
func (m *Mapper) OwnerOfEdge(eid common.EID) int {
	return m.OwnerOf(eid.Src())
}

// Owns reports whether node nid owns vid.
func (m *Mapper) Owns(vid common.VID, nid int) bool {
	return m.OwnerOf(vid) == nid
}

// VertexIsLocal satisfies storage.IdMapper: whether vid belongs to this
// Mapper's own node.
func (m *Mapper) VertexIsLocal(vid common.VID) bool {
	return m.OwnerOf(vid) == m.selfNID
}

// EdgeIsLocal satisfies storage.IdMapper: whether eid belongs to this
// Mapper's own node.
func (m *Mapper) EdgeIsLocal(eid common.EID) bool {
	return m.OwnerOfEdge(eid) == m.selfNID
}

// Locality adapts Mapper into a protocol.LocalityFunc over a raw wire
// value carrying either a vid or a tagged eid, for CreateInitMessages'
// inline-param partitioning. isEdge reports how to interpret raw (the
// caller already knows this from the init expert's element-kind param,
// so it's supplied rather than re-derived from a value convention that
// belongs to the experts package, not this one).
func (m *Mapper) Locality(raw int64, isEdge bool) int {
	if isEdge {
		return m.OwnerOfEdge(common.EID(uint64(raw)))
	}
	return m.OwnerOf(common.VID(uint32(raw)))
}
