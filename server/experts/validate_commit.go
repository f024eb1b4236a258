package experts

import (
	"context"

	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/protocol"
	"github.com/xgraph-db/xgraph-server/server/trxclient"
)

// expertPrimitives is the compile-time table mapping an expert type to
// the RCT primitives whose writes it could have read (spec.md §4.13
// step 3). Reader kernels not listed here (is/select/as/barrier family)
// never record element input sets, so they never appear in validation.
var expertPrimitives = map[protocol.ExpertType][]common.Primitive{
	protocol.ExpertInit:       {common.PrimIV, common.PrimDV, common.PrimIE, common.PrimDE},
	protocol.ExpertTraversal:  {common.PrimIV, common.PrimDV, common.PrimIE, common.PrimDE},
	protocol.ExpertHasLabel:   {common.PrimIV, common.PrimDV, common.PrimIE, common.PrimDE},
	protocol.ExpertHas:        {common.PrimIVP, common.PrimDVP, common.PrimMVP, common.PrimIEP, common.PrimDEP, common.PrimMEP},
	protocol.ExpertValues:     {common.PrimIVP, common.PrimDVP, common.PrimMVP, common.PrimIEP, common.PrimDEP, common.PrimMEP},
	protocol.ExpertProperties: {common.PrimIVP, common.PrimDVP, common.PrimMVP, common.PrimIEP, common.PrimDEP, common.PrimMEP},
	protocol.ExpertKey:        {common.PrimIVP, common.PrimDVP, common.PrimMVP, common.PrimIEP, common.PrimDEP, common.PrimMEP},
}

func containsID(ids []uint64, id uint64) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// Validation implements spec.md §4.13's validation expert: dependency
// check first, then an RCT-backed conflict scan against every candidate
// concurrent writer the master supplied in this step's params. Its
// single bool output feeds the post_validation barrier at the next
// step, where every node's verdict is merged before commit/abort.
func Validation(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	trxID := pl.TrxID
	exp := pl.Experts[msg.Meta.Step]
	conflict := false

	homo, hetero := ctx.Store.Dependencies(trxID)
	if ctx.Master != nil {
		for _, w := range homo {
			if st, err := ctx.Master.ReadStatus(context.Background(), w); err == nil && st == trxclient.StatusAborted {
				conflict = true
			}
		}
		for _, w := range hetero {
			if st, err := ctx.Master.ReadStatus(context.Background(), w); err == nil && st == trxclient.StatusCommitted {
				conflict = true
			}
		}
	}

	if !conflict {
		records := ctx.Validate.Records(trxID)
		for _, p := range exp.Params {
			writer := common.TrxID(uint64(p.I))
			for _, rec := range records {
				if rec.Step < 0 || rec.Step >= len(pl.Experts) {
					continue
				}
				for _, prim := range expertPrimitives[pl.Experts[rec.Step].Type] {
					for _, wrec := range ctx.RCT.Records(prim, writer) {
						if rec.RecordAll || containsID(rec.Input, wrec.ItemID) {
							conflict = true
						}
					}
				}
			}
		}
	}

	out := []protocol.HistoryValueList{{Values: []basic.Value{basic.NewBool(conflict)}}}
	return advance(pl, msg, out), nil
}

// Commit finalizes a writing transaction once post_validation's merged
// verdict reaches it: on conflict it aborts and broadcasts ABORT,
// otherwise it commits C6's MVCC versions at the master-assigned commit
// time and broadcasts EXIT so every node's barrier bookkeeping for this
// qid is released.
func Commit(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	conflict := false
	if vals := flattenValues(msg.Data); len(vals) > 0 {
		conflict = vals[0].Bool()
	}

	if conflict {
		ctx.Store.AbortTransaction(pl.TrxID, msg.Meta.RecverTID)
		ctx.Validate.Clear(pl.TrxID)
		if ctx.Master != nil {
			ctx.Master.UpdateStatus(context.Background(), pl.TrxID, trxclient.StatusAborted)
		}
		return protocol.CreateBroadcastMsg(msg.Meta, protocol.MsgAbort, ctx.NodeCount), nil
	}

	commitTime := pl.BeginTimestamp
	if ctx.Master != nil {
		if ts, err := ctx.Master.ReadCommitTime(context.Background(), pl.TrxID); err == nil {
			commitTime = ts
		}
	}
	ctx.Store.CommitTransaction(pl.TrxID, commitTime)
	ctx.Validate.Clear(pl.TrxID)
	if ctx.Master != nil {
		ctx.Master.UpdateStatus(context.Background(), pl.TrxID, trxclient.StatusCommitted)
	}
	return protocol.CreateBroadcastMsg(msg.Meta, protocol.MsgExit, ctx.NodeCount), nil
}

// Terminate runs for every transaction (read-only plans skip Commit
// entirely and reach Terminate directly): it drops this node's
// per-transaction validation bookkeeping and broadcasts EXIT so remote
// barrier state for this qid is released. It pushes no retire hints:
// those are pushed to the GC producer by the drop() and property()
// kernels at write time.
func Terminate(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	ctx.Validate.Clear(pl.TrxID)
	return protocol.CreateBroadcastMsg(msg.Meta, protocol.MsgExit, ctx.NodeCount), nil
}
