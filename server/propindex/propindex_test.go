package propindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
)

func ageKey() Key { return Key{Kind: common.ElemVertex, PID: common.NewPID(1)} }

func TestBuildIndexThenEqPredicate(t *testing.T) {
	tbl := New()
	key := ageKey()
	tbl.BuildIndex(key, []Entry{
		{ID: 1, Value: basic.NewInt64(30), HasValue: true},
		{ID: 2, Value: basic.NewInt64(25), HasValue: true},
		{ID: 3, Value: basic.NewInt64(30), HasValue: true},
		{ID: 4, HasValue: false},
	})
	tbl.SetEnable(key, true)

	got := tbl.GetElements(key, []Predicate{{Kind: PredEq, Eq: basic.NewInt64(30)}})
	assert.Equal(t, []uint64{1, 3}, got)
}

func TestDisabledIndexReturnsNothing(t *testing.T) {
	tbl := New()
	key := ageKey()
	tbl.BuildIndex(key, []Entry{{ID: 1, Value: basic.NewInt64(30), HasValue: true}})

	got := tbl.GetElements(key, []Predicate{{Kind: PredEq, Eq: basic.NewInt64(30)}})
	assert.Nil(t, got, "expected nil from a disabled index")
}

func TestRangePredicateInclusiveBounds(t *testing.T) {
	tbl := New()
	key := ageKey()
	tbl.BuildIndex(key, []Entry{
		{ID: 1, Value: basic.NewInt64(10), HasValue: true},
		{ID: 2, Value: basic.NewInt64(20), HasValue: true},
		{ID: 3, Value: basic.NewInt64(30), HasValue: true},
		{ID: 4, Value: basic.NewInt64(40), HasValue: true},
	})
	tbl.SetEnable(key, true)

	got := tbl.GetElements(key, []Predicate{{
		Kind: PredRange,
		Lo:   basic.NewInt64(20), LoBounded: true, LoInclusive: true,
		Hi: basic.NewInt64(30), HiBounded: true, HiInclusive: true,
	}})
	assert.Equal(t, []uint64{2, 3}, got)
}

func TestRangePredicateExclusiveUpperBound(t *testing.T) {
	tbl := New()
	key := ageKey()
	tbl.BuildIndex(key, []Entry{
		{ID: 1, Value: basic.NewInt64(10), HasValue: true},
		{ID: 2, Value: basic.NewInt64(20), HasValue: true},
		{ID: 3, Value: basic.NewInt64(30), HasValue: true},
	})
	tbl.SetEnable(key, true)

	got := tbl.GetElements(key, []Predicate{{
		Kind: PredRange,
		Hi:   basic.NewInt64(30), HiBounded: true, HiInclusive: false,
	}})
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestPredicateChainIntersects(t *testing.T) {
	tbl := New()
	key := ageKey()
	tbl.BuildIndex(key, []Entry{
		{ID: 1, Value: basic.NewInt64(10), HasValue: true},
		{ID: 2, Value: basic.NewInt64(20), HasValue: true},
		{ID: 3, Value: basic.NewInt64(30), HasValue: true},
	})
	tbl.SetEnable(key, true)

	got := tbl.GetElements(key, []Predicate{
		{Kind: PredRange, Lo: basic.NewInt64(10), LoBounded: true, LoInclusive: true},
		{Kind: PredRange, Hi: basic.NewInt64(25), HiBounded: true, HiInclusive: true},
	})
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestNoKeyPredicate(t *testing.T) {
	tbl := New()
	key := ageKey()
	tbl.BuildIndex(key, []Entry{
		{ID: 1, Value: basic.NewInt64(10), HasValue: true},
		{ID: 2, HasValue: false},
	})
	tbl.SetEnable(key, true)

	got := tbl.GetElements(key, []Predicate{{Kind: PredNoKey}})
	assert.Equal(t, []uint64{2}, got)
}

func TestInsertThenRemoveKeepsSortedness(t *testing.T) {
	tbl := New()
	key := ageKey()
	tbl.SetEnable(key, true)
	tbl.Insert(key, Entry{ID: 5, Value: basic.NewInt64(10), HasValue: true})
	tbl.Insert(key, Entry{ID: 1, Value: basic.NewInt64(10), HasValue: true})
	tbl.Insert(key, Entry{ID: 3, Value: basic.NewInt64(20), HasValue: true})

	got := tbl.GetElements(key, nil)
	assert.Equal(t, []uint64{1, 3, 5}, got)

	tbl.Remove(key, Entry{ID: 1, Value: basic.NewInt64(10), HasValue: true})
	got = tbl.GetElements(key, nil)
	assert.Equal(t, []uint64{3, 5}, got)
}
