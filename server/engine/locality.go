package engine

import (
	"github.com/xgraph-db/xgraph-server/server/basic"
	"github.com/xgraph-db/xgraph-server/server/experts"
	"github.com/xgraph-db/xgraph-server/server/idmapper"
	"github.com/xgraph-db/xgraph-server/server/protocol"
)

// LocalityFuncFor adapts an idmapper.Mapper into the protocol.LocalityFunc
// CreateInitMessages needs to partition a plan's inline init params
// across nodes, without protocol depending on either idmapper or
// experts' wire-tag convention directly.
func LocalityFuncFor(m *idmapper.Mapper) protocol.LocalityFunc {
	return func(v basic.Value) int {
		return m.Locality(experts.RawID(v), experts.IsEdgeValue(v))
	}
}
