package experts

import (
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/protocol"
	"github.com/xgraph-db/xgraph-server/server/storage"
)

// Traversal expands each input vertex to its neighbors or incident
// edges via C6. Expert.Params convention: Params[0] = direction
// (0=IN, 1=OUT, 2=BOTH), Params[1] = 1 if a label filter is present,
// Params[2] = the label pid (only meaningful if Params[1] == 1),
// Params[3] = output kind (0 = neighbor vertices, 1 = incident edges).
func Traversal(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]

	dir := common.Direction(paramInt(exp.Params, 0, int64(common.DirOut)))
	var labelFilter *common.PID
	if paramInt(exp.Params, 1, 0) == 1 {
		p := common.NewPID(uint16(paramInt(exp.Params, 2, 0)))
		labelFilter = &p
	}
	outputEdges := paramInt(exp.Params, 3, 0) == 1
	readOnly := pl.TrxType == protocol.TrxReadonly

	in := allElements(msg.Data)
	ctx.Validate.Record(pl.TrxID, ValidationRecord{Step: step, Kind: common.ElemVertex, Input: allIDs(in)})

	var out []Element
	for _, e := range in {
		if e.Kind != common.ElemVertex {
			continue
		}
		vid := common.VID(e.ID)
		if outputEdges {
			edges, stat := ctx.Store.ReadConnectedEdges(vid, dir, labelFilter, pl.TrxID, pl.BeginTimestamp, readOnly)
			if stat != storage.ReadSuccess {
				continue
			}
			for _, info := range edges {
				var eid common.EID
				if info.IsOut {
					eid = common.NewEID(info.OtherVID, vid)
				} else {
					eid = common.NewEID(vid, info.OtherVID)
				}
				out = append(out, Element{Kind: common.ElemEdge, ID: uint64(eid)})
			}
			continue
		}
		neighbors, stat := ctx.Store.ReadConnectedVertices(vid, dir, labelFilter, pl.TrxID, pl.BeginTimestamp, readOnly)
		if stat != storage.ReadSuccess {
			continue
		}
		for _, n := range neighbors {
			out = append(out, Element{Kind: common.ElemVertex, ID: uint64(n)})
		}
	}

	return advance(pl, msg, wrapElements(out)), nil
}
