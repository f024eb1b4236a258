// Package gcproducer implements the out-of-process collaborator
// spec.md §4.14 names but leaves out of scope: a sink for retire hints
// emitted whenever a write supersedes an older MVCC version, so
// a background reclaimer elsewhere in the cluster can eventually free
// it. In scope here is the producer side and an in-memory test
// consumer, not the reclaimer itself.
package gcproducer

import (
	"github.com/xgraph-db/xgraph-server/server/common"
)

// RetireHint names one MVCC version that a commit has superseded and is
// now safe to reclaim once no open snapshot can still see it.
type RetireHint struct {
	Kind      common.ElemType
	ID        uint64
	PID       common.PID // 0 ("label") for a structural version, the property's pid otherwise
	CommitEnd common.Timestamp
}

// Producer is a buffered channel sink that the drop() and property()
// expert kernels push retire hints into at write time; the commit and
// terminate experts push none. A full buffer drops the oldest pending
// hint rather than blocking a writing transaction, since a missed hint
// only delays reclamation, never correctness.
type Producer struct {
	hints chan RetireHint
}

// New creates a Producer buffered to capacity.
func New(capacity int) *Producer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Producer{hints: make(chan RetireHint, capacity)}
}

// RetireHint pushes h, dropping the oldest queued hint to make room
// rather than blocking the caller when the buffer is full.
func (p *Producer) RetireHint(h RetireHint) {
	select {
	case p.hints <- h:
	default:
		select {
		case <-p.hints:
		default:
		}
		select {
		case p.hints <- h:
		default:
		}
	}
}

// Hints exposes the channel for a consumer (the real reclaimer, or a
// test) to drain.
func (p *Producer) Hints() <-chan RetireHint {
	return p.hints
}

// Drain is the no-op consumer standing in for the out-of-scope
// background reclaimer: it empties the buffer without acting on any
// hint, returning how many it discarded.
func Drain(p *Producer) int {
	n := 0
	for {
		select {
		case <-p.hints:
			n++
		default:
			return n
		}
	}
}
