// Package propindex implements the Property Index (spec.md §4.7): one
// sorted value->id-set map per (element_kind, pid), plus a no-key set
// for elements that never held that pid, supporting predicate-chain
// intersection for the has()/index() expert kernels.
//
// Grounded on the teacher's server/innodb/statistics package's
// per-column aggregate idea (one structure per column, built by a
// scan), generalized from a histogram sketch to an exact sorted
// value->ids index since the teacher has no secondary-index structure
// at this granularity. The sorted-slice-plus-binary-search shape orders
// buckets with basic.Compare, rather than reaching for a third-party
// sorted-map (no pack example carries one; see DESIGN.md).
package propindex

import (
	"sort"
	"sync"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
)

// Key identifies one index: a property on vertices, or on edges.
type Key struct {
	Kind common.ElemType
	PID  common.PID
}

// Entry is one (id, value) pair fed to BuildIndex/Insert. HasValue is
// false for an element that has no cell for pid at all, routing id into
// the no-key set instead of a value bucket.
type Entry struct {
	ID       uint64
	Value    basic.Value
	HasValue bool
}

type valueBucket struct {
	value basic.Value
	ids   []uint64 // sorted ascending
}

// Index is one (element_kind, pid)'s sorted value->ids map plus its
// no-key set.
type Index struct {
	mu      sync.RWMutex
	enabled bool
	buckets []valueBucket // sorted by basic.Compare(value)
	noKey   []uint64      // sorted ascending
}

// Table owns every index built so far, keyed by (kind, pid).
type Table struct {
	mu      sync.RWMutex
	indexes map[Key]*Index
}

// New creates an empty index table.
func New() *Table {
	return &Table{indexes: make(map[Key]*Index)}
}

func (t *Table) indexFor(key Key) *Index {
	t.mu.RLock()
	idx, ok := t.indexes[key]
	t.mu.RUnlock()
	if ok {
		return idx
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok = t.indexes[key]
	if !ok {
		idx = &Index{}
		t.indexes[key] = idx
	}
	return idx
}

// BuildIndex replaces key's index with the given entries, computed by
// the caller's scan of every live element of kind holding (or not
// holding) pid at whatever snapshot the caller chose.
func (t *Table) BuildIndex(key Key, entries []Entry) {
	idx := t.indexFor(key)

	byValue := make(map[string][]uint64)
	order := make([]basic.Value, 0)
	seen := make(map[string]bool)
	var noKey []uint64

	for _, e := range entries {
		if !e.HasValue {
			noKey = append(noKey, e.ID)
			continue
		}
		k := valueKey(e.Value)
		if !seen[k] {
			seen[k] = true
			order = append(order, e.Value)
		}
		byValue[k] = append(byValue[k], e.ID)
	}

	sort.Slice(order, func(i, j int) bool { return basic.Compare(order[i], order[j]) < 0 })
	buckets := make([]valueBucket, 0, len(order))
	for _, v := range order {
		ids := byValue[valueKey(v)]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		buckets = append(buckets, valueBucket{value: v, ids: ids})
	}
	sort.Slice(noKey, func(i, j int) bool { return noKey[i] < noKey[j] })

	idx.mu.Lock()
	idx.buckets = buckets
	idx.noKey = noKey
	idx.mu.Unlock()
}

// valueKey renders v as a map key for BuildIndex's grouping pass; values
// never mix Type within one (kind, pid) index in practice, but the type
// tag is included for safety since basic.Compare orders by Type first.
func valueKey(v basic.Value) string {
	return v.String() + "\x00" + string(rune(v.Type))
}

// SetEnable toggles whether key's index is consulted by GetElements; a
// disabled index still accepts Insert/Remove so it can be caught back up
// before being re-enabled.
func (t *Table) SetEnable(key Key, enabled bool) {
	idx := t.indexFor(key)
	idx.mu.Lock()
	idx.enabled = enabled
	idx.mu.Unlock()
}

// Enabled reports key's current enablement.
func (t *Table) Enabled(key Key) bool {
	idx := t.indexFor(key)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.enabled
}

// Insert adds id under value (or the no-key set) in key's index,
// maintaining sortedness. No kernel calls it on commit, so between
// rebuilds an index changes only through explicit Insert/Remove calls.
func (t *Table) Insert(key Key, e Entry) {
	idx := t.indexFor(key)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !e.HasValue {
		idx.noKey = insertSorted(idx.noKey, e.ID)
		return
	}
	i := sort.Search(len(idx.buckets), func(i int) bool {
		return basic.Compare(idx.buckets[i].value, e.Value) >= 0
	})
	if i < len(idx.buckets) && basic.Compare(idx.buckets[i].value, e.Value) == 0 {
		idx.buckets[i].ids = insertSorted(idx.buckets[i].ids, e.ID)
		return
	}
	idx.buckets = append(idx.buckets, valueBucket{})
	copy(idx.buckets[i+1:], idx.buckets[i:])
	idx.buckets[i] = valueBucket{value: e.Value, ids: []uint64{e.ID}}
}

// Remove drops id from wherever it's currently indexed under value (or
// the no-key set) in key's index.
func (t *Table) Remove(key Key, e Entry) {
	idx := t.indexFor(key)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !e.HasValue {
		idx.noKey = removeSorted(idx.noKey, e.ID)
		return
	}
	i := sort.Search(len(idx.buckets), func(i int) bool {
		return basic.Compare(idx.buckets[i].value, e.Value) >= 0
	})
	if i < len(idx.buckets) && basic.Compare(idx.buckets[i].value, e.Value) == 0 {
		idx.buckets[i].ids = removeSorted(idx.buckets[i].ids, e.ID)
	}
}

func insertSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}

// PredicateKind distinguishes an equality lookup from a range walk.
type PredicateKind int

const (
	PredEq PredicateKind = iota
	PredRange
	PredHasKey
	PredNoKey
)

// Predicate is one step of has()'s predicate chain over a single pid's
// index. For PredRange, LoBounded/HiBounded false means unbounded on
// that side, and Lo/Hi are then ignored (spec.md §4.7: "range predicates use
// lower/upper-bound walks").
type Predicate struct {
	Kind         PredicateKind
	Eq           basic.Value
	Lo, Hi       basic.Value
	LoBounded    bool
	HiBounded    bool
	LoInclusive  bool
	HiInclusive  bool
}

// GetElements intersects every predicate's matching id set for key,
// preserving sortedness across the chain so the result is a linear
// merge rather than a hash-based intersection. An empty chain returns
// every indexed id (both valued and no-key).
func (t *Table) GetElements(key Key, chain []Predicate) []uint64 {
	idx := t.indexFor(key)
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.enabled {
		return nil
	}

	if len(chain) == 0 {
		return idx.allIDsLocked()
	}

	result := idx.matchLocked(chain[0])
	for _, pred := range chain[1:] {
		result = intersectSorted(result, idx.matchLocked(pred))
		if len(result) == 0 {
			break
		}
	}
	return result
}

func (idx *Index) allIDsLocked() []uint64 {
	var out []uint64
	for _, b := range idx.buckets {
		out = append(out, b.ids...)
	}
	out = append(out, idx.noKey...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (idx *Index) matchLocked(pred Predicate) []uint64 {
	switch pred.Kind {
	case PredHasKey:
		var out []uint64
		for _, b := range idx.buckets {
			out = append(out, b.ids...)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	case PredNoKey:
		return append([]uint64(nil), idx.noKey...)
	case PredEq:
		i := sort.Search(len(idx.buckets), func(i int) bool {
			return basic.Compare(idx.buckets[i].value, pred.Eq) >= 0
		})
		if i < len(idx.buckets) && basic.Compare(idx.buckets[i].value, pred.Eq) == 0 {
			return append([]uint64(nil), idx.buckets[i].ids...)
		}
		return nil
	case PredRange:
		lo, hi := idx.rangeBoundsLocked(pred)
		var out []uint64
		for i := lo; i < hi; i++ {
			out = append(out, idx.buckets[i].ids...)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	default:
		return nil
	}
}

// rangeBoundsLocked returns the half-open [lo, hi) bucket index range
// satisfying pred's bounds.
func (idx *Index) rangeBoundsLocked(pred Predicate) (lo, hi int) {
	lo = 0
	if pred.LoBounded {
		lo = sort.Search(len(idx.buckets), func(i int) bool {
			cmp := basic.Compare(idx.buckets[i].value, pred.Lo)
			if pred.LoInclusive {
				return cmp >= 0
			}
			return cmp > 0
		})
	}
	hi = len(idx.buckets)
	if pred.HiBounded {
		hi = sort.Search(len(idx.buckets), func(i int) bool {
			cmp := basic.Compare(idx.buckets[i].value, pred.Hi)
			if pred.HiInclusive {
				return cmp > 0
			}
			return cmp >= 0
		})
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// intersectSorted merges two ascending, duplicate-free id slices into
// their intersection in one linear pass.
func intersectSorted(a, b []uint64) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
