package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetNeverReturnsSharedCellsTwice(t *testing.T) {
	a := New(64, 4, 2)

	seen := make(map[uint32]bool)
	for i := 0; i < 10; i++ {
		off := a.Get(1, 0)
		assert.False(t, seen[off], "cell %d handed out twice", off)
		seen[off] = true
	}
}

func TestFreeThenGetReusesCells(t *testing.T) {
	a := New(16, 4, 1)

	off := a.Get(3, 0)
	a.Free(off, 3, 0)

	off2 := a.Get(3, 0)
	assert.Equal(t, off, off2, "expected freed run to be reused immediately from the local block")
}

func TestGetZeroPanics(t *testing.T) {
	a := New(8, 4, 1)
	assert.Panics(t, func() { a.Get(0, 0) }, "expected panic on Get(0)")
}

func TestLargeRequestPullsExactCount(t *testing.T) {
	a := New(100, 4, 1)
	off := a.Get(10, 0)
	count := 1
	cur := off
	for a.Next(cur) != noCell && count < 10 {
		cur = a.Next(cur)
		count++
	}
	assert.Equal(t, 10, count, "expected a 10-cell chain")
}

func TestPerThreadIsolation(t *testing.T) {
	a := New(64, 4, 2)
	off0 := a.Get(2, 0)
	off1 := a.Get(2, 1)
	assert.NotEqual(t, off0, off1, "threads received overlapping cells")
}
