package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/rct"
	"github.com/xgraph-db/xgraph-server/server/valuestore"
)

func newTestStore() *Store {
	vp := valuestore.New(1024, 16, 64, 4)
	ep := valuestore.New(1024, 16, 64, 4)
	return New(AllLocal{}, rct.New(), vp, ep)
}

func TestAddVertexThenReadLabelAndExists(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)

	vid, stat := s.ProcessAddVertex(common.NewPID(9), trx, 10, 0)
	require.Equal(t, ProcessSuccess, stat, "expected success adding vertex")

	assert.Equal(t, ReadSuccess, s.ReadVertexExists(vid, trx, 10, false), "expected own uncommitted vertex visible")
	label, stat2 := s.ReadVertexLabel(vid, trx, 10, false)
	require.Equal(t, ReadSuccess, stat2)
	assert.Equal(t, common.NewPID(9), label)

	s.CommitTransaction(trx, 11)

	other := common.NewTrxID(2)
	assert.Equal(t, ReadSuccess, s.ReadVertexExists(vid, other, 12, true), "expected committed vertex visible to a later reader")
}

func TestAddEdgeThenReadConnectedVertices(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)

	src, _ := s.ProcessAddVertex(common.NewPID(1), trx, 10, 0)
	dst, _ := s.ProcessAddVertex(common.NewPID(2), trx, 10, 0)

	_, stat := s.ProcessAddEdge(src, dst, common.NewPID(5), trx, 10, 0)
	require.Equal(t, ProcessSuccess, stat, "expected edge add to succeed")

	neighbors, rstat := s.ReadConnectedVertices(src, common.DirOut, nil, trx, 10, false)
	require.Equal(t, ReadSuccess, rstat)
	require.Len(t, neighbors, 1)
	assert.Equal(t, dst, neighbors[0], "expected [dst] out-neighbors")

	inNeighbors, _ := s.ReadConnectedVertices(dst, common.DirIn, nil, trx, 10, false)
	require.Len(t, inNeighbors, 1)
	assert.Equal(t, src, inNeighbors[0], "expected [src] in-neighbors")
}

func TestAddEdgeAbortsOnDuplicate(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)
	src, _ := s.ProcessAddVertex(0, trx, 10, 0)
	dst, _ := s.ProcessAddVertex(0, trx, 10, 0)
	s.ProcessAddEdge(src, dst, common.NewPID(1), trx, 10, 0)

	_, stat := s.ProcessAddEdge(src, dst, common.NewPID(1), trx, 10, 0)
	assert.Equal(t, ProcessAbort, stat, "expected duplicate edge add to abort")
}

func TestAddEdgeAbortsOnMissingEndpoint(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)
	src, _ := s.ProcessAddVertex(0, trx, 10, 0)

	_, stat := s.ProcessAddEdge(src, common.NewVID(999), common.NewPID(1), trx, 10, 0)
	assert.Equal(t, ProcessAbort, stat, "expected add-edge to abort on a nonexistent destination")
}

func TestModifyThenDropVertexProperty(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)
	vid, _ := s.ProcessAddVertex(0, trx, 10, 0)

	require.Equal(t, ProcessSuccess, s.ProcessModifyVP(vid, common.NewPID(3), basic.NewInt64(42), trx, 10, 0), "expected modify vp to succeed")
	val, rstat := s.ReadVertexProperty(vid, common.NewPID(3), trx, 10, false)
	require.Equal(t, ReadSuccess, rstat)
	assert.Equal(t, int64(42), val.I)

	require.Equal(t, ProcessSuccess, s.ProcessDropVP(vid, common.NewPID(3), trx, 10), "expected drop vp to succeed")
	_, rstat2 := s.ReadVertexProperty(vid, common.NewPID(3), trx, 10, false)
	assert.Equal(t, ReadNotFound, rstat2, "expected dropped property to read back NOTFOUND")
}

func TestModifyEdgeProperty(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)
	src, _ := s.ProcessAddVertex(0, trx, 10, 0)
	dst, _ := s.ProcessAddVertex(0, trx, 10, 0)
	eid, _ := s.ProcessAddEdge(src, dst, common.NewPID(7), trx, 10, 0)

	require.Equal(t, ProcessSuccess, s.ProcessModifyEP(eid, common.NewPID(4), basic.NewString("hi"), trx, 10, 0), "expected modify ep to succeed")
	val, rstat := s.ReadEdgeProperty(eid, common.NewPID(4), trx, 10, false)
	require.Equal(t, ReadSuccess, rstat)
	assert.Equal(t, "hi", val.S)

	label, lstat := s.ReadEdgeLabel(eid, trx, 10, false)
	require.Equal(t, ReadSuccess, lstat)
	assert.Equal(t, common.NewPID(7), label)
}

func TestDropVertexAlsoDropsIncidentEdges(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)
	src, _ := s.ProcessAddVertex(0, trx, 10, 0)
	dst, _ := s.ProcessAddVertex(0, trx, 10, 0)
	s.ProcessAddEdge(src, dst, common.NewPID(1), trx, 10, 0)
	s.CommitTransaction(trx, 11)

	trx2 := common.NewTrxID(2)
	require.Equal(t, ProcessSuccess, s.ProcessDropVertex(src, trx2, 20, 0), "expected drop vertex to succeed")
	assert.Equal(t, ReadNotFound, s.ReadVertexExists(src, trx2, 20, false), "expected dropped vertex to read back NOTFOUND within its own trx")

	neighbors, _ := s.ReadConnectedVertices(dst, common.DirIn, nil, trx2, 20, false)
	assert.Empty(t, neighbors, "expected the incident edge to have been dropped too")
}

func TestDropEdgeThenReAddReusesMapEntries(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)
	src, _ := s.ProcessAddVertex(0, trx, 10, 0)
	dst, _ := s.ProcessAddVertex(0, trx, 10, 0)
	eid, _ := s.ProcessAddEdge(src, dst, common.NewPID(1), trx, 10, 0)
	s.CommitTransaction(trx, 11)

	trx2 := common.NewTrxID(2)
	require.Equal(t, ProcessSuccess, s.ProcessDropEdge(eid, trx2, 20, 0), "expected drop edge to succeed")
	s.CommitTransaction(trx2, 21)

	trx3 := common.NewTrxID(3)
	newEid, stat := s.ProcessAddEdge(src, dst, common.NewPID(2), trx3, 30, 0)
	require.Equal(t, ProcessSuccess, stat)
	assert.Equal(t, eid, newEid, "expected re-adding the edge to reuse its eid")

	label, _ := s.ReadEdgeLabel(eid, trx3, 30, false)
	assert.Equal(t, common.NewPID(2), label, "expected the re-added edge's new label")
}

func TestAbortTransactionDetachesUncommittedWrites(t *testing.T) {
	s := newTestStore()
	trx := common.NewTrxID(1)
	vid, _ := s.ProcessAddVertex(0, trx, 10, 0)

	s.AbortTransaction(trx, 0)

	other := common.NewTrxID(2)
	assert.Equal(t, ReadNotFound, s.ReadVertexExists(vid, other, 20, true), "expected aborted vertex to never become visible")
}

func TestDependenciesRecordHomoOnPreRead(t *testing.T) {
	s := newTestStore()
	writer := common.NewTrxID(1)
	vid, _ := s.ProcessAddVertex(0, writer, 10, 0)
	s.CommitTransaction(writer, 11)

	modifier := common.NewTrxID(2)
	s.ProcessModifyVP(vid, common.NewPID(1), basic.NewInt64(1), modifier, 20, 0)

	reader := common.NewTrxID(3)
	_, stat := s.ReadVertexProperty(vid, common.NewPID(1), reader, 25, false)
	require.Equal(t, ReadSuccess, stat, "expected a non-read-only reader to pre-read the uncommitted write")

	homo, hetero := s.Dependencies(reader)
	require.Len(t, homo, 1, "expected a HOMO dependency on the modifier")
	assert.Equal(t, modifier, homo[0])
	assert.Empty(t, hetero)
}
