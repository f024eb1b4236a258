package idmapper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xgraph-db/xgraph-server/server/common"
)

func TestOwnerOfIsStableAcrossNodeViews(t *testing.T) {
	vid := common.NewVID(42)
	a := New(4, 0)
	b := New(4, 3)
	assert.Equal(t, a.OwnerOf(vid), b.OwnerOf(vid), "expected OwnerOf to be independent of selfNID")
}

func TestOwnsAgreesWithOwnerOf(t *testing.T) {
	m := New(4, 0)
	vid := common.NewVID(42)
	owner := m.OwnerOf(vid)
	for nid := 0; nid < 4; nid++ {
		assert.Equal(t, nid == owner, m.Owns(vid, nid), "Owns(%d)", nid)
	}
}

func TestEdgeOwnershipFollowsSourceVertex(t *testing.T) {
	m := New(4, 0)
	src := common.NewVID(7)
	dst := common.NewVID(99)
	eid := common.NewEID(dst, src)
	assert.Equal(t, m.OwnerOf(src), m.OwnerOfEdge(eid), "expected an edge to co-locate with its source vertex")
}

func TestVertexIsLocalMatchesSelfNID(t *testing.T) {
	m := New(4, 2)
	for i := uint32(0); i < 20; i++ {
		vid := common.NewVID(i)
		assert.Equal(t, m.OwnerOf(vid) == 2, m.VertexIsLocal(vid), "VertexIsLocal(%d)", vid)
	}
}

func TestLocalityDistinguishesEdgeFromVertexRaw(t *testing.T) {
	m := New(4, 0)
	src := common.NewVID(7)
	dst := common.NewVID(99)
	eid := common.NewEID(dst, src)

	assert.Equal(t, m.OwnerOf(src), m.Locality(int64(src), false), "expected vertex-mode Locality to match OwnerOf")
	assert.Equal(t, m.OwnerOfEdge(eid), m.Locality(int64(eid), true), "expected edge-mode Locality to match OwnerOfEdge")
}
