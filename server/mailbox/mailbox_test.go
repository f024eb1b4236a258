package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/protocol"
)

func TestSendIsCoalescedUntilSweep(t *testing.T) {
	mb := New(4)
	dst := Endpoint{NID: 1, TID: 2}
	msg := protocol.NewMessage(protocol.Meta{RecverNID: dst.NID, RecverTID: dst.TID}, 0)

	mb.Send(0, msg)
	_, ok := mb.TryRecv(dst)
	require.False(t, ok, "expected nothing delivered before Sweep")

	require.Equal(t, 1, mb.Sweep(0), "expected Sweep to report 1 delivered")
	got, ok := mb.TryRecv(dst)
	require.True(t, ok)
	assert.Same(t, msg, got, "expected the swept message to arrive at dst")
}

func TestTryRecvNonBlockingOnEmptyInbox(t *testing.T) {
	mb := New(4)
	_, ok := mb.TryRecv(Endpoint{NID: 0, TID: 0})
	assert.False(t, ok, "expected TryRecv on an empty inbox to report false")
}

func TestRecvBlocksUntilDelivered(t *testing.T) {
	mb := New(4)
	dst := Endpoint{NID: 0, TID: 0}
	msg := protocol.NewMessage(protocol.Meta{RecverNID: dst.NID, RecverTID: dst.TID}, 0)

	done := make(chan *protocol.Message, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		got, _ := mb.Recv(ctx, dst)
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	mb.Send(1, msg)
	mb.Sweep(1)

	select {
	case got := <-done:
		assert.Same(t, msg, got, "expected the sent message back from Recv")
	case <-time.After(time.Second):
		t.Fatal("Recv never returned")
	}
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	mb := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := mb.Recv(ctx, Endpoint{})
	assert.False(t, ok, "expected Recv on a cancelled context to report false")
}

func TestNotificationRoundTrip(t *testing.T) {
	mb := New(2)
	require.True(t, mb.SendNotification(5, []byte("hello")), "expected SendNotification to succeed with free capacity")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := mb.RecvNotification(ctx, 5)
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))
}

func TestSendNotificationDropsWhenSaturated(t *testing.T) {
	mb := New(1)
	mb.SendNotification(1, []byte("a"))
	assert.False(t, mb.SendNotification(1, []byte("b")), "expected SendNotification to report false once the stream is saturated")
}
