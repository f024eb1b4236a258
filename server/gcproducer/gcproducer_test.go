package gcproducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgraph-db/xgraph-server/server/common"
)

func TestRetireHintRoundTripsThroughHints(t *testing.T) {
	p := New(4)
	h := RetireHint{Kind: common.ElemVertex, ID: 7, CommitEnd: 100}
	p.RetireHint(h)

	select {
	case got := <-p.Hints():
		assert.Equal(t, h, got)
	default:
		t.Fatalf("expected the hint to be queued")
	}
}

func TestRetireHintDropsOldestWhenFull(t *testing.T) {
	p := New(2)
	p.RetireHint(RetireHint{ID: 1})
	p.RetireHint(RetireHint{ID: 2})
	p.RetireHint(RetireHint{ID: 3}) // buffer full, should evict ID 1

	var ids []uint64
	for _, h := range drainAll(p) {
		ids = append(ids, h.ID)
	}
	require.Len(t, ids, 2)
	assert.Equal(t, []uint64{2, 3}, ids, "expected [2 3] after eviction")
}

func drainAll(p *Producer) []RetireHint {
	var out []RetireHint
	for {
		select {
		case h := <-p.hints:
			out = append(out, h)
		default:
			return out
		}
	}
}

func TestDrainConsumesEverythingQueued(t *testing.T) {
	p := New(4)
	p.RetireHint(RetireHint{ID: 1})
	p.RetireHint(RetireHint{ID: 2})
	assert.Equal(t, 2, Drain(p), "expected Drain to report 2 hints consumed")
	assert.Equal(t, 0, Drain(p), "expected an already-empty buffer to drain 0")
}
