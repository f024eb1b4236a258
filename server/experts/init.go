package experts

import (
	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/common"
	"github.com/xgraph-db/xgraph-server/server/propindex"
	"github.com/xgraph-db/xgraph-server/server/protocol"
	"github.com/xgraph-db/xgraph-server/server/storage"
)

// init mode selector, Expert.Params[0].
const (
	initModeInline int64 = iota
	initModeIndex
	initModeScan
)

// Init seeds a plan's element stream. Expert.Params convention:
// Params[0] = mode; Params[1] = element kind (0=vertex, 1=edge).
// initModeIndex additionally carries Params[2] = pid, Params[3] = the
// equality value to look up (a single-predicate chain only, the common
// case a planner emits for an indexed has()-then-V()).
func Init(ctx *Context, pl *protocol.Plan, msg *protocol.Message) ([]*protocol.Message, error) {
	step := msg.Meta.Step
	exp := pl.Experts[step]

	var els []Element
	mode := paramInt(exp.Params, 0, initModeInline)
	kind := elemKindFromParam(paramInt(exp.Params, 1, 0))

	switch mode {
	case initModeInline:
		els = allElements(msg.Data)
		for i := range els {
			els[i].Kind = kind
		}
	case initModeIndex:
		pid := common.NewPID(uint16(paramInt(exp.Params, 2, 0)))
		eq := basic.Value{}
		if len(exp.Params) > 3 {
			eq = exp.Params[3]
		}
		ids := ctx.Index.GetElements(propindex.Key{Kind: kind, PID: pid}, []propindex.Predicate{{Kind: propindex.PredEq, Eq: eq}})
		els = make([]Element, len(ids))
		for i, id := range ids {
			els[i] = Element{Kind: kind, ID: id}
		}
	case initModeScan:
		if kind == common.ElemVertex {
			for _, vid := range ctx.Store.AllVertexIDs() {
				if ctx.Store.ReadVertexExists(vid, pl.TrxID, pl.BeginTimestamp, pl.TrxType == protocol.TrxReadonly) == storage.ReadSuccess {
					els = append(els, Element{Kind: common.ElemVertex, ID: uint64(vid)})
				}
			}
		}
	}

	ctx.Validate.Record(pl.TrxID, ValidationRecord{Step: step, Kind: kind, Input: allIDs(els)})

	// If the very next expert is count(), short-circuit to a single
	// integer rather than shipping every element downstream.
	if exp.NextStep < len(pl.Experts) && pl.Experts[exp.NextStep].Type == protocol.ExpertCount {
		data := []protocol.HistoryValueList{{Values: []basic.Value{basic.NewInt64(int64(len(els)))}}}
		return advance(pl, msg, data), nil
	}

	return advance(pl, msg, wrapElements(els)), nil
}

func paramInt(params []basic.Value, i int, def int64) int64 {
	if i < 0 || i >= len(params) {
		return def
	}
	return params[i].I
}

func elemKindFromParam(p int64) common.ElemType {
	if p == 1 {
		return common.ElemEdge
	}
	return common.ElemVertex
}
