package common

// DepKind classifies the cross-transaction dependency a pre-read
// registers in the reading transaction's dependency table (spec.md
// §4.3/§4.6): HOMO ties the reader's commit to the writer's commit,
// HETERO ties it to the writer's abort.
type DepKind uint8

const (
	DepNone DepKind = iota
	DepHomo
	DepHetero
)

// Dep is the outcome of a visibility read that had to look past a
// committed value: Kind == DepNone for an ordinary read. Every C4/C5
// read operation returns one of these alongside its value so C6 can
// register it against the reading transaction before the value is used.
type Dep struct {
	Kind   DepKind
	Writer TrxID
}
