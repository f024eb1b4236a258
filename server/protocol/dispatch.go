package protocol

import "github.com/xgraph-db/xgraph-server/server/basic"

// LocalityFunc maps one raw init parameter (a vertex or edge id encoded
// as a basic.Value) to the index of the node that owns it, in
// [0, nodeCount). Kept as a caller-supplied function rather than this
// package importing server/storage's IdMapper directly, so protocol has
// no dependency on the storage layer it's dispatched alongside.
type LocalityFunc func(v basic.Value) int

// CreateInitMessages builds one INIT message per node for a freshly
// admitted plan. If the plan's first expert carries inline params (the
// "init from inline params" mode, spec.md §4.12) and locality is
// non-nil, each param is routed only to the message for the node that
// owns it; every node still gets a message so idle nodes observe the
// plan and a later scan/index-driven init has somewhere to start from.
func CreateInitMessages(qid uint64, queryCount int, parent NodeThread, nodeCount int, recvTID int, pl *Plan, locality LocalityFunc) []*Message {
	msgs := make([]*Message, nodeCount)
	for i := range msgs {
		msgs[i] = NewMessage(Meta{
			QID:             qid,
			Step:            0,
			QueryCountInTrx: queryCount,
			RecverNID:       i,
			RecverTID:       recvTID,
			ParentNID:       parent.NID,
			ParentTID:       parent.TID,
			MsgType:         MsgInit,
			Plan:            pl,
		}, 0)
	}

	if pl == nil || len(pl.Experts) == 0 || locality == nil {
		return msgs
	}
	for _, v := range pl.Experts[0].Params {
		node := locality(v)
		if node < 0 || node >= nodeCount {
			continue
		}
		msgs[node].InsertData(nil, []basic.Value{v})
	}
	return msgs
}

// CreateNextMsg builds the messages carrying data to the next step,
// addressed to recver, splitting across as many messages as data's size
// demands. meta is the template (routing fields the caller has already
// set for the destination); its Step and MsgType are overridden here.
func CreateNextMsg(meta Meta, nextStep int, msgType MsgType, data []HistoryValueList, maxBytes int) []*Message {
	meta.Step = nextStep
	meta.MsgType = msgType
	if len(data) == 0 {
		return []*Message{NewMessage(meta, maxBytes)}
	}

	var out []*Message
	cur := NewMessage(meta, maxBytes)
	out = append(out, cur)
	for _, hv := range data {
		rem := hv.Values
		for {
			rem = cur.InsertData(hv.History, rem)
			if rem == nil {
				break
			}
			cur = NewMessage(meta, maxBytes)
			out = append(out, cur)
		}
	}
	return out
}

// CreateBranchedMsg builds one message for a fan-out child, extending
// meta's MsgPath with branch's child count and stamping MsgBranch.
func CreateBranchedMsg(meta Meta, branch BranchInfo, data []HistoryValueList, maxBytes int) []*Message {
	meta.MsgType = MsgBranch
	meta.MsgPath = AppendDispatchStep(meta.MsgPath, branch.ChildCount)
	meta.BranchInfos = append(append([]BranchInfo(nil), meta.BranchInfos...), branch)
	return CreateNextMsg(meta, meta.Step, MsgBranch, data, maxBytes)
}

// CreateBranchedMsgWithHistoryLabel is CreateBranchedMsg, additionally
// recording (label, value) as a new history binding appended to every
// value list's history — the shape as()/label steps use to tag which
// branch an element took.
func CreateBranchedMsgWithHistoryLabel(meta Meta, branch BranchInfo, label string, value basic.Value, data []HistoryValueList, maxBytes int) []*Message {
	labeled := make([]HistoryValueList, len(data))
	for i, hv := range data {
		h := append(append([]HistoryBinding(nil), hv.History...), HistoryBinding{StepLabel: label, Value: value})
		labeled[i] = HistoryValueList{History: h, Values: hv.Values}
	}
	return CreateBranchedMsg(meta, branch, labeled, maxBytes)
}

// CreateBroadcastMsg builds one empty message of msgType addressed to
// every node, thread 0, for cluster-wide notifications like EXIT or
// ABORT that carry no payload.
func CreateBroadcastMsg(meta Meta, msgType MsgType, nodeCount int) []*Message {
	out := make([]*Message, nodeCount)
	for i := 0; i < nodeCount; i++ {
		m := meta
		m.MsgType = msgType
		m.RecverNID = i
		m.RecverTID = 0
		out[i] = NewMessage(m, 0)
	}
	return out
}

// CreateAbortMsg builds the single message notifying meta's parent that
// its transaction aborted.
func CreateAbortMsg(meta Meta) *Message {
	meta.MsgType = MsgAbort
	meta.RecverNID = meta.ParentNID
	meta.RecverTID = meta.ParentTID
	return NewMessage(meta, 0)
}

// CreateFeedMsg builds one FEED message per node in nodes, each carrying
// the same data, for pushing work into a running plan without going
// through the normal dispatch tree. key is not written into the
// messages.
func CreateFeedMsg(meta Meta, key string, nodes []int, data []HistoryValueList, maxBytes int) []*Message {
	var out []*Message
	for _, nid := range nodes {
		m := meta
		m.MsgType = MsgFeed
		m.RecverNID = nid
		out = append(out, CreateNextMsg(m, m.Step, MsgFeed, data, maxBytes)...)
	}
	_ = key // key identifies the feed channel at the mailbox layer, not the wire shape
	return out
}
