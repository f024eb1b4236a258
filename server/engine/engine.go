// Package engine implements the execution engine (C13): a fixed pool of
// per-node worker threads, each draining its own mailbox endpoint with a
// sweep -> try_recv -> execute loop (spec.md §4.13), grounded on the
// teacher's server/innodb/manager background-thread shape
// (lock_manager.go's ticker-driven deadlockDetection loop and
// buffer_pool_manager.go's stopChan-gated Close), adapted from a fixed
// interval ticker to a tight poll loop since a worker's unit of work is
// one mailbox message rather than a periodic sweep. The per-transaction
// rwlock array reuses the teacher's server/innodb/latch.Latch, otherwise
// unwired in this tree, as its per-slot type.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/experts"
	"github.com/xgraph-db/xgraph-server/server/innodb/latch"
	"github.com/xgraph-db/xgraph-server/server/mailbox"
	"github.com/xgraph-db/xgraph-server/server/protocol"
	"github.com/xgraph-db/xgraph-server/server/trxclient"
)

// MsgLockNum sizes the per-transaction rwlock array (spec.md §4.13; each
// slot is a latch.Latch over sync.RWMutex, which is not reader-priority:
// it blocks new readers once a writer is waiting): a transaction's messages hash onto one of these slots
// by trx id, so unrelated transactions rarely contend while the table
// still bounds a convoy of messages on a single hot transaction to one
// lock's worth of contention rather than one per transaction.
const MsgLockNum = 64

// stealAfter bounds how long a thread waits on its own empty inbox
// before trying a sibling thread's inbox once. Without this window a
// freshly-drained thread would steal from a sibling mid-sweep instead of
// waiting for its own next delivery.
const stealAfter = 2 * time.Millisecond

// recvTimeout bounds each blocking Recv attempt so the loop keeps
// checking stopCh even when no traffic is arriving.
const recvTimeout = 5 * time.Millisecond

// terminalPollInterval is the spacing of Commit/Abort's poll-until-
// terminal wait before releasing the transaction's rwlock slot.
const terminalPollInterval = time.Millisecond

// terminalPollAttempts bounds the poll-until-terminal wait; past this
// the slot is released anyway rather than wedging a worker thread
// indefinitely on a master that never answers.
const terminalPollAttempts = 200

// Engine runs one node's worker pool against a shared experts.Context
// and Mailbox. Every node in a cluster runs its own Engine, dispatching
// whatever NID its Plan's locality function assigned to it.
type Engine struct {
	nid        int
	threads    int
	instanceID string
	mb         *mailbox.Mailbox
	ctx        *experts.Context
	master     trxclient.Master
	log        *logrus.Entry

	trxLocks [MsgLockNum]*latch.Latch

	plansMu sync.RWMutex
	plans   map[uint64]*protocol.Plan // qid -> plan, filled by each INIT message

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds an Engine for node nid with threads workers, dispatching
// against mb and ctx. ctx.Master (possibly nil for a single-node, no-
// validation setup) is consulted for the cancellation check.
func New(nid, threads int, mb *mailbox.Mailbox, ctx *experts.Context) *Engine {
	if threads <= 0 {
		threads = 1
	}
	instanceID := uuid.New().String()
	e := &Engine{
		nid:        nid,
		threads:    threads,
		instanceID: instanceID,
		mb:         mb,
		ctx:        ctx,
		master:     ctx.Master,
		log:        logrus.WithField("component", "engine").WithField("nid", nid).WithField("instance", instanceID),
		plans:      make(map[uint64]*protocol.Plan),
		stopCh:     make(chan struct{}),
	}
	for i := range e.trxLocks {
		e.trxLocks[i] = latch.NewLatch()
	}
	return e
}

func (e *Engine) trxLock(trxID common.TrxID) *latch.Latch {
	return e.trxLocks[uint64(trxID)%MsgLockNum]
}

// InstanceID is the uuid generated at New, stamped onto every log line
// this Engine emits so a cluster's logs can be told apart by which
// worker process produced them across restarts.
func (e *Engine) InstanceID() string { return e.instanceID }

// Admit dispatches a freshly admitted plan's INIT messages, caching pl
// under qid for subsequent steps and queuing each message to thread 0 of
// its owning node.
func (e *Engine) Admit(qid uint64, pl *protocol.Plan, nodeCount int, locality protocol.LocalityFunc) {
	e.plansMu.Lock()
	e.plans[qid] = pl
	e.plansMu.Unlock()

	msgs := protocol.CreateInitMessages(qid, pl.QueryCountInTrx, protocol.NodeThread{NID: e.nid, TID: 0}, nodeCount, 0, pl, locality)
	for _, m := range msgs {
		e.mb.Send(0, m)
	}
	e.mb.Sweep(0)
}

// Start launches the worker pool. Each thread runs until Stop.
func (e *Engine) Start() {
	for tid := 0; tid < e.threads; tid++ {
		e.wg.Add(1)
		go e.runThread(tid)
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Engine) runThread(tid int) {
	defer e.wg.Done()
	ep := mailbox.Endpoint{NID: e.nid, TID: tid}
	var idleSince time.Time

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		e.mb.Sweep(tid)

		msg, ok := e.mb.TryRecv(ep)
		if !ok && !idleSince.IsZero() && time.Since(idleSince) > stealAfter {
			msg, ok = e.steal(tid)
		}
		if !ok && idleSince.IsZero() {
			idleSince = time.Now()
		}
		if !ok {
			rctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
			msg, ok = e.mb.Recv(rctx, ep)
			cancel()
			if !ok {
				continue
			}
		}
		idleSince = time.Time{}
		e.execute(tid, msg)
	}
}

// steal tries every other local thread's inbox once, starting just past
// tid, rather than blocking this thread while a sibling's queue is
// backed up.
func (e *Engine) steal(tid int) (*protocol.Message, bool) {
	for i := 1; i < e.threads; i++ {
		other := (tid + i) % e.threads
		if msg, ok := e.mb.TryRecv(mailbox.Endpoint{NID: e.nid, TID: other}); ok {
			return msg, true
		}
	}
	return nil, false
}

func (e *Engine) rememberPlan(msg *protocol.Message) *protocol.Plan {
	if msg.Meta.Plan != nil {
		e.plansMu.Lock()
		e.plans[msg.Meta.QID] = msg.Meta.Plan
		e.plansMu.Unlock()
		return msg.Meta.Plan
	}
	e.plansMu.RLock()
	pl := e.plans[msg.Meta.QID]
	e.plansMu.RUnlock()
	return pl
}

func (e *Engine) forgetPlan(qid uint64) {
	e.plansMu.Lock()
	delete(e.plans, qid)
	e.plansMu.Unlock()
}

// execute runs one message to completion against its cached Plan:
// cancellation check, then kernel dispatch under the transaction's
// rwlock slot, then sweeping every kernel output back into the mailbox.
func (e *Engine) execute(tid int, msg *protocol.Message) {
	pl := e.rememberPlan(msg)
	if pl == nil {
		e.log.WithField("qid", msg.Meta.QID).Warn("no plan cached for message, dropping")
		return
	}

	if term := e.cancelledTerminate(pl, msg); term != nil {
		e.mb.Send(tid, term)
		return
	}

	if msg.Meta.Step >= len(pl.Experts) {
		err := errors.Errorf("step %d out of range for plan with %d experts", msg.Meta.Step, len(pl.Experts))
		e.log.WithError(err).Error("dispatch failed")
		return
	}
	kernel, ok := experts.Registry[pl.Experts[msg.Meta.Step].Type]
	if !ok {
		err := errors.Errorf("no kernel registered for expert type %v", pl.Experts[msg.Meta.Step].Type)
		e.log.WithError(err).Error("dispatch failed")
		return
	}

	lock := e.trxLock(pl.TrxID)
	teardown := msg.Meta.MsgType == protocol.MsgCommit || msg.Meta.MsgType == protocol.MsgAbort || msg.Meta.MsgType == protocol.MsgTerminate
	if teardown {
		lock.Lock()
		defer lock.Unlock()
	} else {
		lock.RLock()
		defer lock.RUnlock()
	}

	out, err := kernel(e.ctx, pl, msg)
	if err != nil {
		e.log.WithError(errors.Wrapf(err, "expert %v step %d", pl.Experts[msg.Meta.Step].Type, msg.Meta.Step)).Error("kernel failed")
		return
	}
	for _, m := range out {
		e.mb.Send(tid, m)
	}

	if teardown {
		e.waitForTerminal(pl.TrxID)
		e.forgetPlan(msg.Meta.QID)
	}
}

// cancelledTerminate reads trxID's status before running a non-teardown
// step; once the master has recorded it ABORTED, further steps stop
// doing real work. A transaction with more than one query still pending
// folds into a TERMINATE routed to the message's parent instead of
// running the kernel; a single-query transaction is left to run its own
// Commit/Abort path, since that's what actually records the abort.
func (e *Engine) cancelledTerminate(pl *protocol.Plan, msg *protocol.Message) *protocol.Message {
	if e.master == nil {
		return nil
	}
	switch msg.Meta.MsgType {
	case protocol.MsgCommit, protocol.MsgAbort, protocol.MsgTerminate:
		return nil
	}
	if pl.QueryCountInTrx <= 1 {
		return nil
	}
	status, err := e.master.ReadStatus(context.Background(), pl.TrxID)
	if err != nil || status != trxclient.StatusAborted {
		return nil
	}
	next := *msg
	next.Meta.MsgType = protocol.MsgTerminate
	next.Meta.RecverNID = msg.Meta.ParentNID
	next.Meta.RecverTID = msg.Meta.ParentTID
	next.Data = nil
	return &next
}

// waitForTerminal polls the master until trxID's status is terminal,
// bounding how long a Commit/Abort holds its exclusive rwlock slot: a
// concurrent message for the same transaction can only proceed once the
// master's record has actually settled, not merely once CommitTransaction
// returned locally.
func (e *Engine) waitForTerminal(trxID common.TrxID) {
	if e.master == nil {
		return
	}
	for i := 0; i < terminalPollAttempts; i++ {
		status, err := e.master.ReadStatus(context.Background(), trxID)
		if err == nil && status.Terminal() {
			return
		}
		time.Sleep(terminalPollInterval)
	}
}
