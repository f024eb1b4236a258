// Package valuestore implements the variable-length value blob storage
// of spec.md §4.2: the same free-list mechanism as the Cell Allocator,
// but over byte-cells, addressed by a {head_offset, byte_count} header.
// No third-party byte-slab library exists anywhere in the example pack
// (the teacher's own util/buffer_reader.go|buffer_writer.go solve
// cursor-based byte assembly with plain stdlib slices too), so this
// component stays on top of server/cell plus stdlib byte slices.
package valuestore

import (
	"fmt"

	"github.com/xgraph-db/xgraph-server/server/cell"
)

// Header addresses a value: where its first cell is, and how many bytes
// (including the one-byte type tag) it spans. ByteCount == 0 tombstones
// a property per spec.md §4.2.
type Header struct {
	HeadOffset uint32
	ByteCount  uint32
}

// IsTombstone reports whether h marks a dropped property.
func (h Header) IsTombstone() bool { return h.ByteCount == 0 }

// Store is a byte-cell slab: cellSize bytes per cell (must be divisible
// by 8), backed by a cell.Allocator for free-list bookkeeping and a flat
// byte array for payload.
type Store struct {
	alloc    *cell.Allocator
	data     []byte
	cellSize uint32
}

// New allocates n cells of cellSize bytes each (cellSize must be
// divisible by 8) with per-thread blocks sized blockSize, for up to
// threadCount concurrent callers.
func New(n int, cellSize, blockSize uint32, threadCount int) *Store {
	if cellSize%8 != 0 {
		panic(fmt.Sprintf("valuestore: cell size %d is not a multiple of 8", cellSize))
	}
	return &Store{
		alloc:    cell.New(n, blockSize, threadCount),
		data:     make([]byte, uint64(n)*uint64(cellSize)),
		cellSize: cellSize,
	}
}

func (s *Store) cellsFor(byteCount uint32) uint32 {
	return (byteCount + s.cellSize - 1) / s.cellSize
}

// Insert lays out typeTag followed by payload across as many cells as
// needed and returns the resulting Header. tid is the caller's unique
// allocator thread id.
func (s *Store) Insert(typeTag byte, payload []byte, tid int) Header {
	total := uint32(1 + len(payload))
	n := s.cellsFor(total)
	head := s.alloc.Get(n, tid)

	buf := make([]byte, 0, total)
	buf = append(buf, typeTag)
	buf = append(buf, payload...)

	cur := head
	written := uint32(0)
	for written < total {
		chunk := s.cellSize
		if total-written < chunk {
			chunk = total - written
		}
		base := uint64(cur) * uint64(s.cellSize)
		copy(s.data[base:base+uint64(chunk)], buf[written:written+chunk])
		written += chunk
		if written < total {
			cur = s.alloc.Next(cur)
		}
	}
	return Header{HeadOffset: head, ByteCount: total}
}

// Read reassembles typeTag and payload for h by walking its cell chain.
// Reading a tombstoned header returns (0, nil).
func (s *Store) Read(h Header) (typeTag byte, payload []byte) {
	if h.IsTombstone() {
		return 0, nil
	}
	buf := make([]byte, h.ByteCount)
	cur := h.HeadOffset
	written := uint32(0)
	for written < h.ByteCount {
		chunk := s.cellSize
		if h.ByteCount-written < chunk {
			chunk = h.ByteCount - written
		}
		base := uint64(cur) * uint64(s.cellSize)
		copy(buf[written:written+chunk], s.data[base:base+uint64(chunk)])
		written += chunk
		if written < h.ByteCount {
			cur = s.alloc.Next(cur)
		}
	}
	return buf[0], buf[1:]
}

// Free returns every cell of h's chain to tid's local block.
func (s *Store) Free(h Header, tid int) {
	if h.IsTombstone() {
		return
	}
	n := s.cellsFor(h.ByteCount)
	s.alloc.Free(h.HeadOffset, n, tid)
}

// Tombstone returns the sentinel header for a dropped property.
func Tombstone() Header { return Header{} }
