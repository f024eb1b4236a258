package experts

import (
	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/gcproducer"
	"github.com/xgraph-db/xgraph-server/server/protocol"
	"github.com/xgraph-db/xgraph-server/server/storage"
)

// retireHint pushes a hint for the version e's primitive just replaced,
// a no-op if ctx has no GC producer wired up.
func retireHint(ctx *Context, e Element, pid common.PID, beginTime common.Timestamp) {
	if ctx.GC == nil {
		return
	}
	ctx.GC.RetireHint(gcproducer.RetireHint{Kind: e.Kind, ID: e.ID, PID: pid, CommitEnd: beginTime})
}

// AddV creates one new vertex per input value list (or a single vertex
// if the stream is empty, the g.addV() start-step case). Params[0] =
// label pid.
func AddV(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	label := common.NewPID(uint16(paramInt(exp.Params, 0, 0)))
	tid := msg.Meta.RecverTID

	spawnCount := 1
	if len(msg.Data) > 0 {
		spawnCount = 0
		for _, hv := range msg.Data {
			spawnCount += len(hv.Values)
		}
		if spawnCount == 0 {
			spawnCount = 1
		}
	}

	var out []Element
	for i := 0; i < spawnCount; i++ {
		vid, stat := ctx.Store.ProcessAddVertex(label, pl.TrxID, pl.BeginTimestamp, tid)
		if stat != storage.ProcessSuccess {
			return []*protocol.Message{protocol.CreateAbortMsg(msg.Meta)}, nil
		}
		out = append(out, Element{Kind: common.ElemVertex, ID: uint64(vid)})
	}
	return advance(pl, msg, wrapElements(out)), nil
}

// AddE creates one edge per value list, reading its endpoints from the
// "from"/"to" history bindings an earlier as() step recorded. Params[0]
// = label pid.
func AddE(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	label := common.NewPID(uint16(paramInt(exp.Params, 0, 0)))
	tid := msg.Meta.RecverTID

	var out []Element
	for _, hv := range msg.Data {
		var from, to *common.VID
		for _, b := range hv.History {
			switch b.StepLabel {
			case "from":
				v := common.VID(uint64(b.Value.I))
				from = &v
			case "to":
				v := common.VID(uint64(b.Value.I))
				to = &v
			}
		}
		if from == nil || to == nil {
			continue
		}
		eid, stat := ctx.Store.ProcessAddEdge(*from, *to, label, pl.TrxID, pl.BeginTimestamp, tid)
		if stat != storage.ProcessSuccess {
			return []*protocol.Message{protocol.CreateAbortMsg(msg.Meta)}, nil
		}
		out = append(out, Element{Kind: common.ElemEdge, ID: uint64(eid)})
	}
	return advance(pl, msg, wrapElements(out)), nil
}

// Drop removes every current element (vertex or edge).
func Drop(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	tid := msg.Meta.RecverTID
	for _, e := range allElements(msg.Data) {
		var stat storage.ProcessStat
		if e.Kind == common.ElemEdge {
			stat = ctx.Store.ProcessDropEdge(common.EID(e.ID), pl.TrxID, pl.BeginTimestamp, tid)
		} else {
			stat = ctx.Store.ProcessDropVertex(common.VID(e.ID), pl.TrxID, pl.BeginTimestamp, tid)
		}
		if stat != storage.ProcessSuccess {
			return []*protocol.Message{protocol.CreateAbortMsg(msg.Meta)}, nil
		}
		retireHint(ctx, e, 0, pl.BeginTimestamp)
	}
	return advance(pl, msg, nil), nil
}

// Property sets one property on every current element. Params[0] = pid,
// Params[1] = the value to set.
func Property(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	pid := common.NewPID(uint16(paramInt(exp.Params, 0, 0)))
	var value basic.Value
	if len(exp.Params) > 1 {
		value = exp.Params[1]
	}
	tid := msg.Meta.RecverTID

	for _, e := range allElements(msg.Data) {
		var stat storage.ProcessStat
		if e.Kind == common.ElemEdge {
			stat = ctx.Store.ProcessModifyEP(common.EID(e.ID), pid, value, pl.TrxID, pl.BeginTimestamp, tid)
		} else {
			stat = ctx.Store.ProcessModifyVP(common.VID(e.ID), pid, value, pl.TrxID, pl.BeginTimestamp, tid)
		}
		if stat != storage.ProcessSuccess {
			return []*protocol.Message{protocol.CreateAbortMsg(msg.Meta)}, nil
		}
		retireHint(ctx, e, pid, pl.BeginTimestamp)
	}
	return advance(pl, msg, msg.Data), nil
}
