// Package mailbox implements the per-(node,thread) message queues the
// execution engine (C13) dispatches Plan/Message traffic through
// (spec.md §4.11), grounded on the teacher's server/protocol message-bus
// registration shape (message_bus.go's Subscribe/Publish) generalized
// from a type-keyed handler table to an endpoint-keyed channel table,
// since the execution engine's consumers are threads polling their own
// queue rather than handlers subscribing to a type.
package mailbox

import (
	"context"
	"sync"

	"github.com/golang/snappy"

	"github.com/xgraph-db/xgraph-server/server/protocol"
)

// Endpoint addresses one (node, thread) inbox.
type Endpoint struct {
	NID int
	TID int
}

// Mailbox holds every inbox and out-of-band notification channel lazily
// created so far, plus each source thread's not-yet-swept outbox.
type Mailbox struct {
	capacity int

	mu      sync.RWMutex
	inboxes map[Endpoint]chan *protocol.Message

	outboxMu sync.Mutex
	outbox   map[int][]*protocol.Message // keyed by source tid

	notifyMu sync.RWMutex
	notify   map[int]chan []byte // keyed by destination nid
}

// New creates a Mailbox whose inboxes and notification channels are
// buffered to capacity.
func New(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mailbox{
		capacity: capacity,
		inboxes:  make(map[Endpoint]chan *protocol.Message),
		outbox:   make(map[int][]*protocol.Message),
		notify:   make(map[int]chan []byte),
	}
}

func (m *Mailbox) inbox(ep Endpoint) chan *protocol.Message {
	m.mu.RLock()
	ch, ok := m.inboxes[ep]
	m.mu.RUnlock()
	if ok {
		return ch
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok = m.inboxes[ep]
	if !ok {
		ch = make(chan *protocol.Message, m.capacity)
		m.inboxes[ep] = ch
	}
	return ch
}

// Send queues msg for delivery to its Meta's (RecverNID, RecverTID),
// coalesced under srcTID until the caller's next Sweep(srcTID). Never
// blocks.
func (m *Mailbox) Send(srcTID int, msg *protocol.Message) {
	m.outboxMu.Lock()
	m.outbox[srcTID] = append(m.outbox[srcTID], msg)
	m.outboxMu.Unlock()
}

// Sweep flushes every message srcTID has queued since its last sweep,
// delivering each to its destination's inbox. Returns the count
// delivered. A full destination inbox blocks the sweeping thread, the
// same backpressure the teacher's buffered session writes apply.
func (m *Mailbox) Sweep(srcTID int) int {
	m.outboxMu.Lock()
	pending := m.outbox[srcTID]
	m.outbox[srcTID] = nil
	m.outboxMu.Unlock()

	for _, msg := range pending {
		ep := Endpoint{NID: msg.Meta.RecverNID, TID: msg.Meta.RecverTID}
		m.inbox(ep) <- msg
	}
	return len(pending)
}

// TryRecv is a non-blocking receive from ep's inbox.
func (m *Mailbox) TryRecv(ep Endpoint) (*protocol.Message, bool) {
	select {
	case msg := <-m.inbox(ep):
		return msg, true
	default:
		return nil, false
	}
}

// Recv blocks until a message arrives for ep or ctx is cancelled.
func (m *Mailbox) Recv(ctx context.Context, ep Endpoint) (*protocol.Message, bool) {
	select {
	case msg := <-m.inbox(ep):
		return msg, true
	case <-ctx.Done():
		return nil, false
	}
}

func (m *Mailbox) notifyChan(nid int) chan []byte {
	m.notifyMu.RLock()
	ch, ok := m.notify[nid]
	m.notifyMu.RUnlock()
	if ok {
		return ch
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	ch, ok = m.notify[nid]
	if !ok {
		ch = make(chan []byte, m.capacity)
		m.notify[nid] = ch
	}
	return ch
}

// SendNotification delivers a small out-of-band payload to dstNID's
// notification stream (used by the Trx Client's UPDATE_STATUS pushes
// and the GC producer's retire-hint stream), snappy-compressed the same
// way the teacher's connection.go wraps its wire in a snappy.Writer.
// Drops the payload rather than blocking if the stream is saturated,
// matching the "small messages" best-effort framing in spec.md §4.11.
func (m *Mailbox) SendNotification(dstNID int, payload []byte) bool {
	select {
	case m.notifyChan(dstNID) <- snappy.Encode(nil, payload):
		return true
	default:
		return false
	}
}

// RecvNotification blocks until a notification arrives for nid or ctx is
// cancelled, decompressing it back to the caller's original payload.
func (m *Mailbox) RecvNotification(ctx context.Context, nid int) ([]byte, bool) {
	select {
	case p := <-m.notifyChan(nid):
		decoded, err := snappy.Decode(nil, p)
		if err != nil {
			return nil, false
		}
		return decoded, true
	case <-ctx.Done():
		return nil, false
	}
}
