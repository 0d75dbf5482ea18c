// Package taint implements the Statement Optimizer: a conservative
// constant-propagation-with-tainting pass over the statement-level
// control-flow graph, followed by dead-store elimination.
package taint

// VarState is one of the 26 abstract-state table entries:
// whether the optimizer can still prove a value for the variable, and
// what that value is when it can.
type VarState struct {
	Tainted bool
	InScope bool
	Value   int64
}

// Stats counts what the optimizer removed or decided during one run.
type Stats struct {
	LetsElided     int // redundant re-assignments erased during predict
	BranchesPruned int // If statements decided at compile time
	LoopsElided    int // While loops with a provably-false guard
	DeadStores     int // Lets removed because the variable is never read
}

// State is the variable state table threaded through the predict pass.
// All 26 entries start untainted, out-of-scope, value 0. The stats
// pointer is shared across branch-exploration clones so counts survive
// the merge.
type State struct {
	vars  [26]VarState
	stats *Stats
}

// NewState returns a fresh, all-zero state table.
func NewState() *State { return &State{stats: &Stats{}} }

// Get returns the current abstract state of variable v ('A'..'Z').
func (s *State) Get(v byte) VarState { return s.vars[v-'A'] }

// Clone returns an independent copy of s, used to explore If/While
// branches without letting one branch's effects leak into the other
// before they are merged back (mergeInto) or discarded.
func (s *State) Clone() *State {
	c := *s
	return &c
}
