package topo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/mvcc"
)

func newCommittedList(label common.PID) *mvcc.List[EdgeVersion] {
	l := mvcc.NewList[EdgeVersion]()
	l.AppendInitialVersion(EdgeVersion{Label: label})
	return l
}

func TestInsertInitialCellThenReadConnectedVertex(t *testing.T) {
	rl := New()
	label := common.NewPID(3)
	rl.InsertInitialCell(true, common.NewVID(5), newCommittedList(label))
	rl.InsertInitialCell(false, common.NewVID(6), newCommittedList(label))

	out, deps := rl.ReadConnectedVertex(common.DirOut, nil, common.NewTrxID(1), 10, true)
	require.Len(t, out, 1)
	assert.Equal(t, common.NewVID(5), out[0])
	assert.Empty(t, deps, "expected no dependency for committed reads")

	both, _ := rl.ReadConnectedVertex(common.DirBoth, nil, common.NewTrxID(1), 10, true)
	assert.Len(t, both, 2, "expected both neighbors")
}

func TestLabelFilter(t *testing.T) {
	rl := New()
	labelA := common.NewPID(1)
	labelB := common.NewPID(2)
	rl.InsertInitialCell(true, common.NewVID(5), newCommittedList(labelA))
	rl.InsertInitialCell(true, common.NewVID(6), newCommittedList(labelB))

	filtered, _ := rl.ReadConnectedVertex(common.DirOut, &labelA, common.NewTrxID(1), 10, true)
	require.Len(t, filtered, 1)
	assert.Equal(t, common.NewVID(5), filtered[0], "expected only the labelA neighbor")
}

func TestAddCellThenDropThroughFindList(t *testing.T) {
	rl := New()
	label := common.NewPID(1)
	trxA := common.NewTrxID(1)

	list := mvcc.NewList[EdgeVersion]()
	list.AppendVersion(trxA, 10, EdgeVersion{Label: label})
	rl.AddCell(true, common.NewVID(9), list)
	list.CommitVersion(trxA, 20)

	out, _ := rl.ReadConnectedVertex(common.DirOut, nil, common.NewTrxID(2), 25, true)
	assert.Len(t, out, 1, "expected the committed edge to be visible")

	found := rl.FindList(true, common.NewVID(9))
	require.NotNil(t, found, "expected FindList to locate the indexed chain")

	trxB := common.NewTrxID(2)
	ok, _, _ := found.AppendVersion(trxB, 30, EdgeVersion{Empty: true})
	require.True(t, ok, "expected drop version append to succeed")
	found.CommitVersion(trxB, 40)

	after, _ := rl.ReadConnectedVertex(common.DirOut, nil, common.NewTrxID(3), 45, true)
	assert.Empty(t, after, "expected dropped edge to no longer be visible")

	assert.Equal(t, 1, rl.EdgeCount(), "expected edge_count to remain monotone at 1 after a drop")
}

func TestFindListMissingReturnsNil(t *testing.T) {
	rl := New()
	assert.Nil(t, rl.FindList(true, common.NewVID(1)), "expected nil for an unindexed cell")
}
