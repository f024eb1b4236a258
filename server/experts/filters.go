package experts

import (
	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/propindex"
	"github.com/xgraph-db/xgraph-server/server/protocol"
	"github.com/xgraph-db/xgraph-server/server/storage"
)

// Has filters elements by one property predicate. Expert.Params:
// Params[0] = pid, Params[1] = propindex.PredicateKind, Params[2] = eq
// value (PredEq) or Params[2]/Params[3] = lo/hi (PredRange, always
// inclusive-inclusive — the common case a planner lowers a between()
// step to).
func Has(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	pid := common.NewPID(uint16(paramInt(exp.Params, 0, 0)))
	predKind := propindex.PredicateKind(paramInt(exp.Params, 1, int64(propindex.PredEq)))
	readOnly := pl.TrxType == protocol.TrxReadonly

	in := allElements(msg.Data)
	ctx.Validate.Record(pl.TrxID, ValidationRecord{Step: step, Kind: elementsKind(in), Input: allIDs(in)})

	var out []Element
	for _, e := range in {
		val, stat := readProperty(ctx, pl, e, pid, readOnly)
		if stat != storage.ReadSuccess {
			if predKind == propindex.PredNoKey {
				out = append(out, e)
			}
			continue
		}
		if matchesPredicate(val, predKind, exp.Params) {
			out = append(out, e)
		}
	}
	return advance(pl, msg, wrapElements(out)), nil
}

func matchesPredicate(val basic.Value, kind propindex.PredicateKind, params []basic.Value) bool {
	switch kind {
	case propindex.PredHasKey:
		return true
	case propindex.PredNoKey:
		return false
	case propindex.PredEq:
		if len(params) < 3 {
			return false
		}
		return basic.Compare(val, params[2]) == 0
	case propindex.PredRange:
		if len(params) < 4 {
			return false
		}
		return basic.Compare(val, params[2]) >= 0 && basic.Compare(val, params[3]) <= 0
	default:
		return false
	}
}

func readProperty(ctx *Context, pl *protocol.Plan, e Element, pid common.PID, readOnly bool) (basic.Value, storage.ReadStat) {
	if e.Kind == common.ElemEdge {
		return ctx.Store.ReadEdgeProperty(common.EID(e.ID), pid, pl.TrxID, pl.BeginTimestamp, readOnly)
	}
	return ctx.Store.ReadVertexProperty(common.VID(e.ID), pid, pl.TrxID, pl.BeginTimestamp, readOnly)
}

func elementsKind(els []Element) common.ElemType {
	if len(els) > 0 {
		return els[0].Kind
	}
	return common.ElemVertex
}

// HasLabel filters by an element's structural label. Params[0] = label
// pid.
func HasLabel(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	want := common.NewPID(uint16(paramInt(exp.Params, 0, 0)))
	readOnly := pl.TrxType == protocol.TrxReadonly

	in := allElements(msg.Data)
	ctx.Validate.Record(pl.TrxID, ValidationRecord{Step: step, Kind: elementsKind(in), Input: allIDs(in)})

	var out []Element
	for _, e := range in {
		var label common.PID
		var stat storage.ReadStat
		if e.Kind == common.ElemEdge {
			label, stat = ctx.Store.ReadEdgeLabel(common.EID(e.ID), pl.TrxID, pl.BeginTimestamp, readOnly)
		} else {
			label, stat = ctx.Store.ReadVertexLabel(common.VID(e.ID), pl.TrxID, pl.BeginTimestamp, readOnly)
		}
		if stat == storage.ReadSuccess && label == want {
			out = append(out, e)
		}
	}
	return advance(pl, msg, wrapElements(out)), nil
}

// Values replaces the element stream with one property's raw value per
// element (elements that lack the property are dropped). Params[0] =
// pid.
func Values(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	pid := common.NewPID(uint16(paramInt(exp.Params, 0, 0)))
	readOnly := pl.TrxType == protocol.TrxReadonly

	in := allElements(msg.Data)
	ctx.Validate.Record(pl.TrxID, ValidationRecord{Step: step, Kind: elementsKind(in), Input: allIDs(in)})

	var vals []basic.Value
	for _, e := range in {
		v, stat := readProperty(ctx, pl, e, pid, readOnly)
		if stat == storage.ReadSuccess {
			vals = append(vals, v)
		}
	}
	var data []protocol.HistoryValueList
	if len(vals) > 0 {
		data = []protocol.HistoryValueList{{Values: vals}}
	}
	return advance(pl, msg, data), nil
}

// Properties tags each element's full property set onto its history
// (one binding per pid, labeled by pidLabel as "#" plus the decimal pid) and passes the
// element itself through unchanged, so a later step can still traverse
// from it.
func Properties(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	readOnly := pl.TrxType == protocol.TrxReadonly

	var out []protocol.HistoryValueList
	for _, hv := range msg.Data {
		for _, v := range hv.Values {
			e := elementFromValue(v)
			var props map[common.PID]basic.Value
			var stat storage.ReadStat
			if e.Kind == common.ElemEdge {
				props, stat = ctx.Store.ReadEdgeAllProperties(common.EID(e.ID), pl.TrxID, pl.BeginTimestamp, readOnly)
			} else {
				props, stat = ctx.Store.ReadVertexAllProperties(common.VID(e.ID), pl.TrxID, pl.BeginTimestamp, readOnly)
			}
			if stat != storage.ReadSuccess {
				continue
			}
			h := append([]protocol.HistoryBinding(nil), hv.History...)
			for pid, pv := range props {
				h = append(h, protocol.HistoryBinding{StepLabel: pidLabel(pid), Value: pv})
			}
			out = append(out, protocol.HistoryValueList{History: h, Values: []basic.Value{v}})
		}
	}
	return advance(pl, msg, out), nil
}

func pidLabel(pid common.PID) string {
	buf := make([]byte, 0, 6)
	buf = append(buf, '#')
	n := int(pid)
	if n == 0 {
		return "#0"
	}
	var digits []byte
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	for i := len(digits) - 1; i >= 0; i-- {
		buf = append(buf, digits[i])
	}
	return string(buf)
}

// Key emits each element's property pid (not its value) as a raw
// integer, for steps inspecting which properties exist rather than
// their contents. Params[0] = pid to check.
func Key(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	pid := common.NewPID(uint16(paramInt(exp.Params, 0, 0)))
	readOnly := pl.TrxType == protocol.TrxReadonly

	var vals []basic.Value
	for _, e := range allElements(msg.Data) {
		if _, stat := readProperty(ctx, pl, e, pid, readOnly); stat == storage.ReadSuccess {
			vals = append(vals, basic.NewInt64(int64(pid)))
		}
	}
	var data []protocol.HistoryValueList
	if len(vals) > 0 {
		data = []protocol.HistoryValueList{{Values: vals}}
	}
	return advance(pl, msg, data), nil
}

// Project extracts one or more labeled history bindings as the new
// output value stream. Params are TypeString labels to project, in
// order; only the first is used per value list (a planner wanting a
// tuple of several labels runs project once per label and recombines
// downstream via as()).
func Project(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	if len(exp.Params) == 0 {
		return advance(pl, msg, msg.Data), nil
	}
	label := exp.Params[0].S

	var vals []basic.Value
	for _, hv := range msg.Data {
		for _, b := range hv.History {
			if b.StepLabel == label {
				vals = append(vals, b.Value)
			}
		}
	}
	var data []protocol.HistoryValueList
	if len(vals) > 0 {
		data = []protocol.HistoryValueList{{Values: vals}}
	}
	return advance(pl, msg, data), nil
}

// Is filters the current raw value stream by a predicate over the value
// itself (not a property lookup). Params[0] = propindex.PredicateKind,
// Params[1]/Params[2] = eq or lo/hi per Has's convention.
func Is(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	predKind := propindex.PredicateKind(paramInt(exp.Params, 0, int64(propindex.PredEq)))

	var out []protocol.HistoryValueList
	for _, hv := range msg.Data {
		var kept []basic.Value
		for _, v := range hv.Values {
			if matchesValuePredicate(v, predKind, exp.Params) {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			out = append(out, protocol.HistoryValueList{History: hv.History, Values: kept})
		}
	}
	return advance(pl, msg, out), nil
}

// matchesValuePredicate is matchesPredicate shifted one param left (no
// leading pid), for kernels that predicate on the value itself.
func matchesValuePredicate(val basic.Value, kind propindex.PredicateKind, params []basic.Value) bool {
	shifted := make([]basic.Value, len(params)+1)
	copy(shifted[1:], params)
	return matchesPredicate(val, kind, shifted)
}

// Select replaces the value stream with the history binding recorded
// under Params[0]'s label.
func Select(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	if len(exp.Params) == 0 {
		return advance(pl, msg, msg.Data), nil
	}
	label := exp.Params[0].S

	var out []protocol.HistoryValueList
	for _, hv := range msg.Data {
		var bound basic.Value
		found := false
		for _, b := range hv.History {
			if b.StepLabel == label {
				bound = b.Value
				found = true
			}
		}
		if found {
			out = append(out, protocol.HistoryValueList{History: hv.History, Values: []basic.Value{bound}})
		}
	}
	return advance(pl, msg, out), nil
}

// As labels the current value onto history under Params[0]'s label,
// passing the value stream through unchanged.
func As(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	if len(exp.Params) == 0 {
		return advance(pl, msg, msg.Data), nil
	}
	label := exp.Params[0].S

	out := make([]protocol.HistoryValueList, 0, len(msg.Data))
	for _, hv := range msg.Data {
		for _, v := range hv.Values {
			h := append(append([]protocol.HistoryBinding(nil), hv.History...), protocol.HistoryBinding{StepLabel: label, Value: v})
			out = append(out, protocol.HistoryValueList{History: h, Values: []basic.Value{v}})
		}
	}
	return advance(pl, msg, out), nil
}
