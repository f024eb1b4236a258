package experts

import (
	"context"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/propindex"
	"github.com/xgraph-db/xgraph-server/server/protocol"
	"github.com/xgraph-db/xgraph-server/server/storage"
)

// index action selector, Expert.Params[2].
const (
	indexActionBuild int64 = iota
	indexActionEnable
	indexActionDisable
)

// Index drives the Property Index's admin operations. Params[0] =
// element kind, Params[1] = pid, Params[2] = action.
func Index(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]
	kind := elemKindFromParam(paramInt(exp.Params, 0, 0))
	pid := common.NewPID(uint16(paramInt(exp.Params, 1, 0)))
	action := paramInt(exp.Params, 2, indexActionBuild)
	key := propindex.Key{Kind: kind, PID: pid}

	switch action {
	case indexActionEnable:
		ctx.Index.SetEnable(key, true)
	case indexActionDisable:
		ctx.Index.SetEnable(key, false)
	default:
		entries := scanPropertyEntries(ctx, pl, kind, pid)
		ctx.Index.BuildIndex(key, entries)
		ctx.Index.SetEnable(key, true)
	}
	return advance(pl, msg, nil), nil
}

func scanPropertyEntries(ctx *Context, pl *protocol.Plan, kind common.ElemType, pid common.PID) []propindex.Entry {
	if kind != common.ElemVertex {
		return nil // edge full-scan has no enumeration primitive yet; see DESIGN.md
	}
	var entries []propindex.Entry
	for _, vid := range ctx.Store.AllVertexIDs() {
		if ctx.Store.ReadVertexExists(vid, pl.TrxID, pl.BeginTimestamp, true) != storage.ReadSuccess {
			continue
		}
		val, stat := ctx.Store.ReadVertexProperty(vid, pid, pl.TrxID, pl.BeginTimestamp, true)
		if stat == storage.ReadSuccess {
			entries = append(entries, propindex.Entry{ID: uint64(vid), Value: val, HasValue: true})
		} else {
			entries = append(entries, propindex.Entry{ID: uint64(vid), HasValue: false})
		}
	}
	return entries
}

// Config is a no-op acknowledgement step for session-level settings
// (isolation level, batch size) a plan carries inline; storage-visible
// effects of those settings are applied by the engine when it builds
// the plan, not by this kernel.
func Config(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	return advance(pl, msg, msg.Data), nil
}

// StatusExpert reports a transaction's current status via the Trx
// Client, for a client-facing "is my last write durable yet" poll.
func StatusExpert(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	if ctx.Master == nil {
		return advance(pl, msg, nil), nil
	}
	status, err := ctx.Master.ReadStatus(context.Background(), pl.TrxID)
	if err != nil {
		return advance(pl, msg, nil), nil
	}
	out := []protocol.HistoryValueList{{Values: []basic.Value{basic.NewInt64(int64(status))}}}
	return advance(pl, msg, out), nil
}
