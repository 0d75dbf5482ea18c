// Package alloc implements the Variable Allocator: it
// counts static references per variable across a program and assigns
// the most-referenced variables to callee-saved registers, spilling
// the rest to stack slots.
package alloc

import (
	"sort"

	"github.com/oisee/teenybasicc/pkg/ast"
)

// Reg identifies one of the nine variable-eligible callee-saved
// registers, in the fixed assignment order RBX, RBP, R12, R13, R14,
// R15, R8, R9, R10.
type Reg int

const (
	RBX Reg = iota
	RBP
	R12
	R13
	R14
	R15
	R8
	R9
	R10
	NumVarRegs // sentinel: count of registers eligible for variable allocation
)

// VarRegOrder is the fixed register assignment order.
var VarRegOrder = [NumVarRegs]Reg{RBX, RBP, R12, R13, R14, R15, R8, R9, R10}

// RegName renders a Reg as its AT&T-syntax 64-bit register name.
func (r Reg) RegName() string {
	switch r {
	case RBX:
		return "rbx"
	case RBP:
		return "rbp"
	case R12:
		return "r12"
	case R13:
		return "r13"
	case R14:
		return "r14"
	case R15:
		return "r15"
	case R8:
		return "r8"
	case R9:
		return "r9"
	case R10:
		return "r10"
	default:
		panic("alloc: invalid variable register")
	}
}

// Kind distinguishes the three possible allocations of a variable.
type Kind int

const (
	Unused Kind = iota
	InRegister
	OnStack
)

// Slot is one entry of the 26-entry allocation map.
type Slot struct {
	Kind       Kind
	Reg        Reg // valid when Kind == InRegister
	StackIndex int // valid when Kind == OnStack: slot i sits at RSP + 8*i + scratch_height
}

// Map is the full 26-entry allocation map, indexed by name-'A'.
type Map struct {
	slots [26]Slot
}

// Get returns the allocation for variable v ('A'..'Z').
func (m *Map) Get(v byte) Slot { return m.slots[v-'A'] }

// RegisterVarsUsed returns how many variables were assigned a register.
func (m *Map) RegisterVarsUsed() int {
	n := 0
	for _, s := range m.slots {
		if s.Kind == InRegister {
			n++
		}
	}
	return n
}

// StackSlotsUsed returns how many stack slots were handed out, i.e. the
// frame's variable-area size in 8-byte units.
func (m *Map) StackSlotsUsed() int {
	n := 0
	for _, s := range m.slots {
		if s.Kind == OnStack {
			n++
		}
	}
	return n
}

// Allocate counts static references to each variable in prog (every
// appearance of a Var leaf or the LHS of a Let counts once), sorts
// descending, and assigns the first NumVarRegs
// nonzero-count variables to registers in VarRegOrder, the remainder to
// stack slots numbered from zero upward. Variables with a zero count
// are left Unused.
func Allocate(prog *ast.Sequence) *Map {
	counts := countRefs(prog)

	type entry struct {
		name  byte
		count int
	}
	var entries []entry
	for i, c := range counts {
		if c > 0 {
			entries = append(entries, entry{name: byte('A' + i), count: c})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].count > entries[j].count
	})

	m := &Map{}
	stackIdx := 0
	for i, e := range entries {
		if i < int(NumVarRegs) {
			m.slots[e.name-'A'] = Slot{Kind: InRegister, Reg: VarRegOrder[i]}
			continue
		}
		m.slots[e.name-'A'] = Slot{Kind: OnStack, StackIndex: stackIdx}
		stackIdx++
	}
	return m
}

func countRefs(s ast.Stmt) [26]int {
	var counts [26]int
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Var:
			counts[n.Name-'A']++
		case *ast.BinaryOp:
			walkExpr(n.Left)
			walkExpr(n.Right)
		}
	}
	var walkStmt func(s ast.Stmt)
	walkStmt = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.Sequence:
			for _, inner := range n.Stmts {
				walkStmt(inner)
			}
		case *ast.Print:
			walkExpr(n.Expr)
		case *ast.Let:
			counts[n.Var-'A']++
			walkExpr(n.Value)
		case *ast.If:
			walkExpr(n.Cond.Left)
			walkExpr(n.Cond.Right)
			walkStmt(n.IfBranch)
			if n.ElseBranch != nil {
				walkStmt(n.ElseBranch)
			}
		case *ast.While:
			walkExpr(n.Cond.Left)
			walkExpr(n.Cond.Right)
			walkStmt(n.Body)
		}
	}
	walkStmt(s)
	return counts
}
