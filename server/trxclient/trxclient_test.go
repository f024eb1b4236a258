package trxclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/common"
)

func TestFakeMasterMonotoneTransitions(t *testing.T) {
	m := NewFakeMaster()
	ctx := context.Background()
	trx := common.NewTrxID(1)
	m.Begin(trx)

	status, err := m.ReadStatus(ctx, trx)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, status)

	require.NoError(t, m.UpdateStatus(ctx, trx, StatusValidating), "expected PROCESSING->VALIDATING to succeed")
	require.NoError(t, m.UpdateStatus(ctx, trx, StatusCommitted), "expected VALIDATING->COMMITTED to succeed")

	status, _ = m.ReadStatus(ctx, trx)
	assert.Equal(t, StatusCommitted, status)
}

func TestFakeMasterRejectsSkippedTransition(t *testing.T) {
	m := NewFakeMaster()
	ctx := context.Background()
	trx := common.NewTrxID(1)
	m.Begin(trx)

	assert.Equal(t, ErrNotTransitionable, m.UpdateStatus(ctx, trx, StatusCommitted), "expected ErrNotTransitionable skipping VALIDATING")
}

func TestFakeMasterRejectsTransitionFromTerminal(t *testing.T) {
	m := NewFakeMaster()
	ctx := context.Background()
	trx := common.NewTrxID(1)
	m.Begin(trx)
	m.UpdateStatus(ctx, trx, StatusValidating)
	m.UpdateStatus(ctx, trx, StatusAborted)

	assert.Equal(t, ErrNotTransitionable, m.UpdateStatus(ctx, trx, StatusCommitted), "expected terminal status to reject further transitions")
}

func TestReadCommitTimeRequiresCommitted(t *testing.T) {
	m := NewFakeMaster()
	ctx := context.Background()
	trx := common.NewTrxID(1)
	m.Begin(trx)

	_, err := m.ReadCommitTime(ctx, trx)
	require.Error(t, err, "expected an error reading commit time of a non-committed trx")

	m.UpdateStatus(ctx, trx, StatusValidating)
	m.UpdateStatus(ctx, trx, StatusCommitted)
	m.SetCommitTime(trx, 42)

	ts, err := m.ReadCommitTime(ctx, trx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, ts, "expected commit time 42")
}
