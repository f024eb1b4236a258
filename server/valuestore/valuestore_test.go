package valuestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertReadRoundTrip(t *testing.T) {
	s := New(64, 8, 4, 1)

	h := s.Insert(5, []byte("hello world, this spans more than one cell"), 0)
	tag, payload := s.Read(h)
	assert.EqualValues(t, 5, tag)
	assert.Equal(t, []byte("hello world, this spans more than one cell"), payload)
}

func TestTombstoneReadsEmpty(t *testing.T) {
	h := Tombstone()
	require.True(t, h.IsTombstone(), "expected tombstone header")

	s := New(8, 8, 4, 1)
	tag, payload := s.Read(h)
	assert.Zero(t, tag)
	assert.Nil(t, payload)
}

func TestFreeThenReuse(t *testing.T) {
	s := New(16, 8, 4, 1)
	h1 := s.Insert(1, []byte("abc"), 0)
	s.Free(h1, 0)
	h2 := s.Insert(2, []byte("xyz"), 0)
	assert.Equal(t, h1.HeadOffset, h2.HeadOffset, "expected cell reuse")
}
