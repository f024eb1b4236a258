package rct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/common"
)

func TestRecordThenRecords(t *testing.T) {
	tbl := New()
	trxA := common.NewTrxID(1)
	rec := Record{ItemID: 7, PID: common.NewPID(2), ElemKind: common.ElemVertex}

	tbl.Record(common.PrimMVP, trxA, rec)
	got := tbl.Records(common.PrimMVP, trxA)
	require.Len(t, got, 1, "expected to read back the recorded write")
	assert.Equal(t, rec, got[0])

	assert.Empty(t, tbl.Records(common.PrimIVP, trxA), "expected no records under a different primitive")
}

func TestCommitMovesRecordsToCommittedIndexAndClearsLiveBucket(t *testing.T) {
	tbl := New()
	trxA := common.NewTrxID(1)
	rec := Record{ItemID: 7, PID: common.LabelPID, ElemKind: common.ElemEdge}
	tbl.Record(common.PrimIE, trxA, rec)

	tbl.Commit(trxA, 100)

	assert.Empty(t, tbl.Records(common.PrimIE, trxA), "expected live bucket cleared after commit")

	since := tbl.CommittedSince(50, 150)
	require.Len(t, since, 1, "expected committed record visible in range")
	assert.Equal(t, rec, since[0].Record)
	assert.EqualValues(t, 100, since[0].CommitTime)
	assert.Equal(t, common.PrimIE, since[0].Primitive)

	assert.Empty(t, tbl.CommittedSince(150, 200), "expected no records outside the commit-time window")
}

func TestAbortDiscardsLiveRecordsWithoutCommitting(t *testing.T) {
	tbl := New()
	trxA := common.NewTrxID(1)
	tbl.Record(common.PrimDV, trxA, Record{ItemID: 1})

	tbl.Abort(trxA)

	assert.Empty(t, tbl.Records(common.PrimDV, trxA), "expected live bucket cleared after abort")
	assert.Empty(t, tbl.CommittedSince(0, 1000), "expected aborted writes to never reach the committed index")
}
