package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
)

func TestCreateInitMessagesPartitionsByLocality(t *testing.T) {
	pl := &Plan{
		TrxID:   common.NewTrxID(1),
		TrxType: TrxReadonly,
		Experts: []Expert{{
			Type:   ExpertInit,
			Params: []basic.Value{basic.NewInt64(10), basic.NewInt64(21), basic.NewInt64(12)},
		}},
	}
	locality := func(v basic.Value) int { return int(v.I % 2) }

	msgs := CreateInitMessages(7, 1, NodeThread{}, 2, 0, pl, locality)
	require.Len(t, msgs, 2, "expected one message per node")
	assert.Equal(t, MsgInit, msgs[0].Meta.MsgType)
	assert.Same(t, pl, msgs[0].Meta.Plan, "expected INIT messages carrying the plan")

	var node0, node1 []int64
	for _, hv := range msgs[0].Data {
		for _, v := range hv.Values {
			node0 = append(node0, v.I)
		}
	}
	for _, hv := range msgs[1].Data {
		for _, v := range hv.Values {
			node1 = append(node1, v.I)
		}
	}
	assert.Len(t, node0, 2, "expected 2 params on node0")
	assert.Len(t, node1, 1, "expected 1 param on node1")
}

func TestCreateNextMsgSplitsAcrossBudget(t *testing.T) {
	meta := Meta{QID: 1, Step: 1, RecverNID: 2, RecverTID: 0}
	data := []HistoryValueList{{Values: []basic.Value{basic.NewInt64(1), basic.NewInt64(2), basic.NewInt64(3)}}}

	out := CreateNextMsg(meta, 2, MsgSpawn, data, 18)
	require.Len(t, out, 2, "expected the oversized data to split into 2 messages")
	for _, m := range out {
		assert.Equal(t, 2, m.Meta.Step)
		assert.Equal(t, MsgSpawn, m.Meta.MsgType)
		assert.Equal(t, 2, m.Meta.RecverNID)
	}
}

func TestCreateBranchedMsgExtendsPath(t *testing.T) {
	meta := Meta{MsgPath: "3"}
	branch := BranchInfo{ParentQID: 1, BranchIndex: 0, ChildCount: 5}
	out := CreateBranchedMsg(meta, branch, nil, 0)
	require.Len(t, out, 1, "expected one branched message")
	assert.Equal(t, "3\t5", out[0].Meta.MsgPath)
	require.Len(t, out[0].Meta.BranchInfos, 1, "expected the branch recorded in BranchInfos")
	assert.EqualValues(t, 5, out[0].Meta.BranchInfos[0].ChildCount)
}

func TestCreateBranchedMsgWithHistoryLabelTagsEachValueList(t *testing.T) {
	meta := Meta{}
	branch := BranchInfo{ChildCount: 1}
	data := []HistoryValueList{{Values: []basic.Value{basic.NewInt64(9)}}}

	out := CreateBranchedMsgWithHistoryLabel(meta, branch, "x", basic.NewInt64(42), data, 0)
	require.Len(t, out, 1)
	require.Len(t, out[0].Data, 1, "expected one message with one history/value entry")

	hist := out[0].Data[0].History
	require.Len(t, hist, 1)
	assert.Equal(t, "x", hist[0].StepLabel, "expected the history labeled x=42")
	assert.EqualValues(t, 42, hist[0].Value.I)
}

func TestCreateBroadcastMsgTargetsEveryNode(t *testing.T) {
	out := CreateBroadcastMsg(Meta{QID: 1}, MsgExit, 3)
	require.Len(t, out, 3, "expected 3 broadcast messages")
	for i, m := range out {
		assert.Equal(t, MsgExit, m.Meta.MsgType)
		assert.Equal(t, i, m.Meta.RecverNID, "expected message %d addressed to node %d", i, i)
	}
}

func TestCreateAbortMsgRoutesToParent(t *testing.T) {
	meta := Meta{ParentNID: 4, ParentTID: 1, RecverNID: 9, RecverTID: 9}
	m := CreateAbortMsg(meta)
	assert.Equal(t, MsgAbort, m.Meta.MsgType)
	assert.Equal(t, 4, m.Meta.RecverNID)
	assert.Equal(t, 1, m.Meta.RecverTID)
}

func TestCreateFeedMsgOneSetPerNode(t *testing.T) {
	meta := Meta{Step: 3}
	data := []HistoryValueList{{Values: []basic.Value{basic.NewInt64(1)}}}
	out := CreateFeedMsg(meta, "gc-retire", []int{0, 2}, data, 0)
	require.Len(t, out, 2, "expected one feed message per listed node")
	assert.Equal(t, 0, out[0].Meta.RecverNID)
	assert.Equal(t, 2, out[1].Meta.RecverNID)
	for _, m := range out {
		assert.Equal(t, MsgFeed, m.Meta.MsgType)
	}
}
