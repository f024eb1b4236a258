package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/common"
)

type testValue struct {
	n     int
	freed bool
	gcTid int
}

func (v *testValue) ValueGC(tid int) {
	v.freed = true
	v.gcTid = tid
}

func TestAppendInitialVersionIsImmediatelyVisible(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 1})

	res := l.GetVisibleVersion(common.NewTrxID(1), 5, true)
	require.Equal(t, VisibleCommitted, res.Visibility)
	assert.Equal(t, 1, res.Value.n)
}

func TestAppendVersionConflictsWithOtherUncommittedWriter(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	trxB := common.NewTrxID(2)

	ok, _, _ := l.AppendVersion(trxA, 10, &testValue{n: 1})
	require.True(t, ok, "expected first append to succeed")

	ok, _, _ = l.AppendVersion(trxB, 11, &testValue{n: 2})
	assert.False(t, ok, "expected second writer to conflict with A's uncommitted tail")
}

func TestAppendVersionSameTrxSucceedsAgain(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	ok, _, _ := l.AppendVersion(trxA, 10, &testValue{n: 1})
	require.True(t, ok, "expected first append to succeed")

	ok, old, exists := l.AppendVersion(trxA, 10, &testValue{n: 2})
	require.True(t, ok, "expected same-transaction re-append to succeed")
	require.True(t, exists)
	assert.Equal(t, 1, old.n)
}

func TestCommitPromotesTailAndClosesPrevious(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	l.AppendVersion(trxA, 10, &testValue{n: 1})
	l.CommitVersion(trxA, 20)

	before := l.GetVisibleVersion(common.NewTrxID(2), 15, true)
	require.Equal(t, VisibleCommitted, before.Visibility)
	assert.Equal(t, 0, before.Value.n, "expected old value visible before commit time")

	after := l.GetVisibleVersion(common.NewTrxID(2), 25, true)
	require.Equal(t, VisibleCommitted, after.Visibility)
	assert.Equal(t, 1, after.Value.n, "expected new value visible after commit time")
}

func TestCommitIsIdempotent(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	l.AppendVersion(trxA, 10, &testValue{n: 1})
	l.CommitVersion(trxA, 20)
	l.CommitVersion(trxA, 20)

	res := l.GetVisibleVersion(common.NewTrxID(2), 25, true)
	require.Equal(t, VisibleCommitted, res.Visibility)
	assert.Equal(t, 1, res.Value.n, "expected commit to remain stable")
}

func TestAbortRestoresChainToPreAppendState(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	newVal := &testValue{n: 1}
	l.AppendVersion(trxA, 10, newVal)
	l.AbortVersion(trxA, 3)

	require.True(t, newVal.freed, "expected aborted value to be GC'd")
	assert.Equal(t, 3, newVal.gcTid, "expected gc tid to be forwarded")

	res := l.GetVisibleVersion(common.NewTrxID(2), 100, true)
	require.Equal(t, VisibleCommitted, res.Visibility)
	assert.Equal(t, 0, res.Value.n, "expected chain restored to initial value")

	// A second writer must now be able to append again.
	trxB := common.NewTrxID(2)
	ok, _, _ := l.AppendVersion(trxB, 50, &testValue{n: 2})
	assert.True(t, ok, "expected append to succeed after abort released the tail")
}

func TestPreReadHomoForNonReadOnlyReader(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	l.AppendVersion(trxA, 10, &testValue{n: 1})

	res := l.GetVisibleVersion(common.NewTrxID(2), 20, false)
	require.Equal(t, VisiblePreReadHomo, res.Visibility)
	assert.Equal(t, 1, res.Value.n, "expected pre-read of A's tail")
	assert.Equal(t, trxA, res.WriterTrx)
}

func TestPreReadHeteroForReadOnlyReader(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	l.AppendVersion(trxA, 10, &testValue{n: 1})

	res := l.GetVisibleVersion(common.NewTrxID(2), 20, true)
	require.Equal(t, VisiblePreReadHetero, res.Visibility)
	assert.Equal(t, 0, res.Value.n, "expected fallback to last committed value")
	assert.Equal(t, trxA, res.WriterTrx)
}

func TestWriterThatBeganAfterReaderIsIgnored(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	l.AppendVersion(trxA, 100, &testValue{n: 1})

	// Reader's begin_time (20) predates the writer's begin_time (100): the
	// writer cannot be part of the reader's snapshot at all.
	res := l.GetVisibleVersion(common.NewTrxID(2), 20, false)
	require.Equal(t, VisibleCommitted, res.Visibility)
	assert.Equal(t, 0, res.Value.n, "expected fallback to last committed value")
}

func TestSnapshotIsolationNeverPreReads(t *testing.T) {
	l := NewList[*testValue]()
	l.AppendInitialVersion(&testValue{n: 0})

	trxA := common.NewTrxID(1)
	l.AppendVersion(trxA, 10, &testValue{n: 1})

	res := l.GetVisibleSnapshot(20)
	require.Equal(t, VisibleCommitted, res.Visibility)
	assert.Equal(t, 0, res.Value.n, "expected snapshot read to see only the last committed value")
}

func TestGetVisibleVersionBeforeAnyCommitIsNotFound(t *testing.T) {
	l := NewList[*testValue]()
	res := l.GetVisibleVersion(common.NewTrxID(1), 5, true)
	assert.Equal(t, VisibleNone, res.Visibility)
}

func TestSelfGarbageCollectFreesEveryValue(t *testing.T) {
	l := NewList[*testValue]()
	v0 := &testValue{n: 0}
	l.AppendInitialVersion(v0)

	trxA := common.NewTrxID(1)
	v1 := &testValue{n: 1}
	l.AppendVersion(trxA, 10, v1)
	l.CommitVersion(trxA, 20)

	l.SelfGarbageCollect(0)

	assert.True(t, v0.freed)
	assert.True(t, v1.freed)
	assert.Equal(t, 0, l.Len(), "expected chain length 0 after garbage collection")
}
