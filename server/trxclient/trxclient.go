// Package trxclient implements the Trx Client (spec.md §4.9): the
// worker-side view of a transaction's status as tracked by the cluster
// master, with local caching invalidated by asynchronous UPDATE_STATUS
// notifications rather than polling.
//
// Grounded on server/innodb/manager/transaction_manager.go's
// TRX_STATE_* state machine for the monotone status transitions, with
// the RPC transport modeled on google.golang.org/grpc (wired in from
// the tinySQL sibling example in the pack; the teacher itself never
// talks to a remote master). No .proto toolchain is available in this
// environment to generate a service stub, so requests are carried as
// gob-encoded Go structs over grpc's pluggable codec rather than
// protobuf messages — see DESIGN.md for the tradeoff.
package trxclient

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	jerrors "github.com/juju/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/xgraph-db/xgraph-server/server/common"
)

// Status is TRX_STAT from spec.md §4.9.
type Status int32

const (
	StatusProcessing Status = iota
	StatusValidating
	StatusAborted
	StatusCommitted
)

func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "PROCESSING"
	case StatusValidating:
		return "VALIDATING"
	case StatusAborted:
		return "ABORT"
	case StatusCommitted:
		return "COMMITTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is a final status (ABORT or COMMITTED).
func (s Status) Terminal() bool { return s == StatusAborted || s == StatusCommitted }

// ErrNotTransitionable is returned by an update that would violate the
// monotone PROCESSING -> VALIDATING -> {ABORT, COMMITTED} ordering.
var ErrNotTransitionable = fmt.Errorf("trxclient: status transition not allowed")

// Master is the worker-side view of the cluster's transaction master.
type Master interface {
	ReadStatus(ctx context.Context, trxID common.TrxID) (Status, error)
	UpdateStatus(ctx context.Context, trxID common.TrxID, newStatus Status) error
	ReadCommitTime(ctx context.Context, trxID common.TrxID) (common.Timestamp, error)
	// Invalidate drops trxID from the local cache; called when an
	// out-of-band UPDATE_STATUS notification arrives over the mailbox.
	Invalidate(trxID common.TrxID)
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return "gob" }

var gobCallOption = grpc.CallContentSubtype("gob")

type statusRequest struct{ TrxID uint64 }
type statusResponse struct{ Status int32 }
type updateRequest struct {
	TrxID     uint64
	NewStatus int32
}
type commitTimeRequest struct{ TrxID uint64 }
type commitTimeResponse struct{ CommitTime uint64 }

// GRPCMaster is the real master client: an RPC round trip on a cache
// miss, cached thereafter until explicitly invalidated.
type GRPCMaster struct {
	conn *grpc.ClientConn

	mu    sync.RWMutex
	cache map[common.TrxID]Status
}

// NewGRPCMaster wraps an already-dialed connection to the master.
func NewGRPCMaster(conn *grpc.ClientConn) *GRPCMaster {
	return &GRPCMaster{conn: conn, cache: make(map[common.TrxID]Status)}
}

func (c *GRPCMaster) ReadStatus(ctx context.Context, trxID common.TrxID) (Status, error) {
	c.mu.RLock()
	if s, ok := c.cache[trxID]; ok {
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	var resp statusResponse
	req := &statusRequest{TrxID: uint64(trxID)}
	if err := c.conn.Invoke(ctx, "/xgraph.TrxMaster/ReadStatus", req, &resp, gobCallOption); err != nil {
		return 0, jerrors.Annotatef(err, "trxclient: ReadStatus(trx %d)", trxID)
	}
	s := Status(resp.Status)

	c.mu.Lock()
	c.cache[trxID] = s
	c.mu.Unlock()
	return s, nil
}

func (c *GRPCMaster) UpdateStatus(ctx context.Context, trxID common.TrxID, newStatus Status) error {
	req := &updateRequest{TrxID: uint64(trxID), NewStatus: int32(newStatus)}
	var resp statusResponse
	if err := c.conn.Invoke(ctx, "/xgraph.TrxMaster/UpdateStatus", req, &resp, gobCallOption); err != nil {
		return jerrors.Annotatef(err, "trxclient: UpdateStatus(trx %d, %s)", trxID, newStatus)
	}
	c.mu.Lock()
	c.cache[trxID] = newStatus
	c.mu.Unlock()
	return nil
}

func (c *GRPCMaster) ReadCommitTime(ctx context.Context, trxID common.TrxID) (common.Timestamp, error) {
	req := &commitTimeRequest{TrxID: uint64(trxID)}
	var resp commitTimeResponse
	if err := c.conn.Invoke(ctx, "/xgraph.TrxMaster/ReadCommitTime", req, &resp, gobCallOption); err != nil {
		return 0, jerrors.Annotatef(err, "trxclient: ReadCommitTime(trx %d)", trxID)
	}
	return common.Timestamp(resp.CommitTime), nil
}

func (c *GRPCMaster) Invalidate(trxID common.TrxID) {
	c.mu.Lock()
	delete(c.cache, trxID)
	c.mu.Unlock()
}

// FakeMaster is an in-memory Master for tests and single-node demos: no
// RPC, no caching layer to invalidate, just the state machine itself.
type FakeMaster struct {
	mu          sync.Mutex
	status      map[common.TrxID]Status
	commitTimes map[common.TrxID]common.Timestamp
}

// NewFakeMaster creates an empty fake master.
func NewFakeMaster() *FakeMaster {
	return &FakeMaster{
		status:      make(map[common.TrxID]Status),
		commitTimes: make(map[common.TrxID]common.Timestamp),
	}
}

// Begin registers trxID as PROCESSING, the way a real master would on
// assigning a begin timestamp.
func (m *FakeMaster) Begin(trxID common.TrxID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[trxID] = StatusProcessing
}

func (m *FakeMaster) ReadStatus(_ context.Context, trxID common.TrxID) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[trxID], nil
}

func (m *FakeMaster) UpdateStatus(_ context.Context, trxID common.TrxID, newStatus Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.status[trxID]
	if !validTransition(cur, newStatus) {
		return ErrNotTransitionable
	}
	m.status[trxID] = newStatus
	return nil
}

// SetCommitTime is a test/master-side helper recording the commit
// timestamp a transaction was assigned.
func (m *FakeMaster) SetCommitTime(trxID common.TrxID, ts common.Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitTimes[trxID] = ts
}

func (m *FakeMaster) ReadCommitTime(_ context.Context, trxID common.TrxID) (common.Timestamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[trxID] != StatusCommitted {
		return 0, fmt.Errorf("trxclient: trx %d is not committed", trxID)
	}
	return m.commitTimes[trxID], nil
}

func (m *FakeMaster) Invalidate(common.TrxID) {}

func validTransition(cur, next Status) bool {
	switch cur {
	case StatusProcessing:
		return next == StatusValidating || next == StatusAborted
	case StatusValidating:
		return next == StatusAborted || next == StatusCommitted
	default:
		return false
	}
}
