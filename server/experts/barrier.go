package experts

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/protocol"
)

// barrierKey identifies one barrier instance: the dispatch subtree a
// fan-out produced, addressed by (qid, msg_path) per spec.md §4.12 ("one
// barrier entry per (qid, parent_msg_id, branch_index)" — msg_path
// already encodes the parent/branch lineage, so it alone is the key).
type barrierKey struct {
	QID  uint64
	Path string
}

type barrierState struct {
	expected int
	arrived  int
	data     []protocol.HistoryValueList
}

// Barriers holds every barrier currently collecting children, across
// every barrier-family kernel on this node.
type Barriers struct {
	mu     sync.Mutex
	states map[barrierKey]*barrierState
}

func NewBarriers() *Barriers {
	return &Barriers{states: make(map[barrierKey]*barrierState)}
}

// Collect folds msg into its barrier, keyed by (qid, msg_path); the
// path's trailing dispatch component is the expected child count.
// Returns the merged data and true once every expected child has
// arrived, clearing the barrier; otherwise nil, false while still
// waiting for siblings.
func (b *Barriers) Collect(msg *protocol.Message) ([]protocol.HistoryValueList, bool) {
	expected, ok := protocol.DispatchStepCount(msg.Meta.MsgPath)
	if !ok || expected <= 0 {
		expected = 1
	}
	key := barrierKey{QID: msg.Meta.QID, Path: msg.Meta.MsgPath}

	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[key]
	if !ok {
		st = &barrierState{expected: expected}
		b.states[key] = st
	}
	st.arrived++
	st.data = append(st.data, msg.Data...)
	if st.arrived >= st.expected {
		delete(b.states, key)
		return st.data, true
	}
	return nil, false
}

// barrierAdvance strips one dispatch-tree component (the barrier just
// satisfied) before building the next step's messages.
func barrierAdvance(pl *protocol.Plan, msg *protocol.Message, data []protocol.HistoryValueList) []*protocol.Message {
	stripped, _ := protocol.StripDispatchStep(msg.Meta.MsgPath)
	next := *msg
	next.Meta.MsgPath = stripped
	return advance(pl, &next, data)
}

func flattenValues(data []protocol.HistoryValueList) []basic.Value {
	var out []basic.Value
	for _, hv := range data {
		out = append(out, hv.Values...)
	}
	return out
}

// Aggregate merges every child's data into one value list under this
// barrier, with no reduction — the shape cap()/group() build on top of.
func Aggregate(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	return barrierAdvance(pl, msg, data), nil
}

// Cap is a terminal aggregate: once the subtree is complete, its merged
// value list is what's shipped onward (typically to a REPLY destined
// for the query's originator).
func Cap(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	return Aggregate(ctx, pl, msg)
}

// Count reduces the barrier's merged values to their count.
func Count(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	n := 0
	for _, hv := range data {
		n += len(hv.Values)
	}
	out := []protocol.HistoryValueList{{Values: []basic.Value{basic.NewInt64(int64(n))}}}
	return barrierAdvance(pl, msg, out), nil
}

func valueKeyFor(v basic.Value) string { return v.String() + "\x00" + string(rune(v.Type)) }

// Dedup reduces the barrier's merged values to their distinct set,
// first-seen order.
func Dedup(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	seen := make(map[string]bool)
	var kept []basic.Value
	for _, v := range flattenValues(data) {
		k := valueKeyFor(v)
		if !seen[k] {
			seen[k] = true
			kept = append(kept, v)
		}
	}
	out := []protocol.HistoryValueList{{Values: kept}}
	return barrierAdvance(pl, msg, out), nil
}

// Range slices the barrier's merged values to [start, end). end == -1
// means unbounded (spec.md §8 boundary case).
func Range(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	start := int(paramInt(exp.Params, 0, 0))
	end := int(paramInt(exp.Params, 1, -1))

	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	vals := flattenValues(data)
	if start < 0 {
		start = 0
	}
	if start > len(vals) {
		start = len(vals)
	}
	if end < 0 || end > len(vals) {
		end = len(vals)
	}
	if end < start {
		end = start
	}
	out := []protocol.HistoryValueList{{Values: append([]basic.Value(nil), vals[start:end]...)}}
	return barrierAdvance(pl, msg, out), nil
}

// Coin keeps each merged value with independent probability p, seeded
// deterministically off the transaction id so re-running the identical
// plan against an unchanged snapshot reproduces the same sample.
// Params[0] = p as a TypeFloat64 value.
func Coin(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	p := 1.0
	if len(exp.Params) > 0 {
		p = exp.Params[0].F
	}

	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	rng := rand.New(rand.NewSource(int64(pl.TrxID)))
	var kept []basic.Value
	for _, v := range flattenValues(data) {
		if rng.Float64() < p {
			kept = append(kept, v)
		}
	}
	out := []protocol.HistoryValueList{{Values: kept}}
	return barrierAdvance(pl, msg, out), nil
}

// mathOp selector, Expert.Params[0].
const (
	mathSum int64 = iota
	mathMean
	mathMax
	mathMin
)

// Math reduces the barrier's merged numeric values with Params[0]'s
// operator. Sum/mean accumulate via decimal.Decimal rather than
// float64, the way the teacher carries exact numeric columns, so a long
// aggregation doesn't drift the way repeated float64 addition would.
func Math(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	op := paramInt(exp.Params, 0, mathSum)

	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	vals := flattenValues(data)
	var result float64
	switch op {
	case mathMax:
		first := true
		for _, v := range vals {
			if f := v.AsFloat64(); first || f > result {
				result, first = f, false
			}
		}
	case mathMin:
		first := true
		for _, v := range vals {
			if f := v.AsFloat64(); first || f < result {
				result, first = f, false
			}
		}
	case mathMean:
		sum := decimal.Zero
		for _, v := range vals {
			sum = sum.Add(decimal.NewFromFloat(v.AsFloat64()))
		}
		if len(vals) > 0 {
			result, _ = sum.Div(decimal.NewFromInt(int64(len(vals)))).Float64()
		}
	default: // mathSum
		sum := decimal.Zero
		for _, v := range vals {
			sum = sum.Add(decimal.NewFromFloat(v.AsFloat64()))
		}
		result, _ = sum.Float64()
	}
	out := []protocol.HistoryValueList{{Values: []basic.Value{basic.NewFloat64(result)}}}
	return barrierAdvance(pl, msg, out), nil
}

// Group buckets the barrier's merged entries by the history binding
// recorded under Params[0]'s label, emitting one value list per bucket
// whose own history carries a single "group_key" binding.
func Group(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	label := ""
	if len(exp.Params) > 0 {
		label = exp.Params[0].S
	}

	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}

	type bucket struct {
		key    basic.Value
		values []basic.Value
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)
	for _, hv := range data {
		var key basic.Value
		for _, b := range hv.History {
			if b.StepLabel == label {
				key = b.Value
			}
		}
		k := valueKeyFor(key)
		bk, ok := buckets[k]
		if !ok {
			bk = &bucket{key: key}
			buckets[k] = bk
			order = append(order, k)
		}
		bk.values = append(bk.values, hv.Values...)
	}

	out := make([]protocol.HistoryValueList, 0, len(order))
	for _, k := range order {
		bk := buckets[k]
		out = append(out, protocol.HistoryValueList{
			History: []protocol.HistoryBinding{{StepLabel: "group_key", Value: bk.key}},
			Values:  bk.values,
		})
	}
	return barrierAdvance(pl, msg, out), nil
}

// Order sorts the barrier's merged values ascending (or descending if
// Params[0] is a truthy bool).
func Order(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	descending := len(exp.Params) > 0 && exp.Params[0].Bool()

	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	vals := flattenValues(data)
	sort.Slice(vals, func(i, j int) bool {
		cmp := basic.Compare(vals[i], vals[j])
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	out := []protocol.HistoryValueList{{Values: vals}}
	return barrierAdvance(pl, msg, out), nil
}

// PostValidation is the barrier every node's validation expert replies
// into once a writing transaction's candidate conflicts have all been
// checked locally; once every node has reported in, the merged verdict
// (any "conflict" value makes the whole transaction abort) is passed to
// commit/terminate.
func PostValidation(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	data, ready := ctx.Barriers.Collect(msg)
	if !ready {
		return nil, nil
	}
	conflict := false
	for _, v := range flattenValues(data) {
		if v.Type == basic.TypeBool && v.Bool() {
			conflict = true
			break
		}
	}
	out := []protocol.HistoryValueList{{Values: []basic.Value{basic.NewBool(conflict)}}}
	return barrierAdvance(pl, msg, out), nil
}
