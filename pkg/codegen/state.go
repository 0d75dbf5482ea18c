package codegen

import (
	"bufio"
	"fmt"

	"github.com/oisee/teenybasicc/pkg/alloc"
)

// State is the emitter's threaded-through context: the register
// descriptor table, the variable allocation map, label counters, the
// current scratch-stack height, and the self-referential-LET
// bookkeeping.
//
// Everything the code generator needs is packaged into this one owned
// value and threaded through every emission call; nothing is kept at
// package scope.
type State struct {
	regs     [numPhysRegs]RegDescriptor
	allocMap *alloc.Map
	out      *bufio.Writer

	ifCounter    int
	whileCounter int

	scratchHeight int // bytes pushed within the current statement

	disableSwap bool

	boundVarName byte // non-zero while a register-backed self-referential LET is in flight
	boundVarOp   Operand
}

func newState(allocMap *alloc.Map, out *bufio.Writer) *State {
	st := &State{allocMap: allocMap, out: out}
	st.regs[RAX].Reserved = true
	st.regs[RCX].Reserved = true
	st.regs[RDX].Reserved = true
	st.regs[RSP].Reserved = true
	st.regs[R11].Reserved = true
	return st
}

// markVariableRegisters marks every register the allocator handed to a
// variable as permanently active, so requestRegister's scan never
// hands it out as a temporary — it is live for the whole function.
func (st *State) markVariableRegisters() {
	for name := byte('A'); name <= 'Z'; name++ {
		slot := st.allocMap.Get(name)
		if slot.Kind == alloc.InRegister {
			r := physRegFor(slot.Reg)
			st.regs[r].ActiveUsers = 1
			st.regs[r].EverUsed = true
		}
	}
}

func (st *State) emitf(format string, args ...any) {
	fmt.Fprintf(st.out, format+"\n", args...)
}

func (st *State) label(name string) {
	fmt.Fprintf(st.out, "%s:\n", name)
}

func (st *State) nextIfLabel() int {
	st.ifCounter++
	return st.ifCounter
}

func (st *State) nextWhileLabel() int {
	st.whileCounter++
	return st.whileCounter
}

// varOperand resolves variable name to the operand the emitter should
// read or write for it: the clone-register rebinding in effect during
// a self-referential LET, or its allocation-map slot otherwise.
func (st *State) varOperand(name byte) Operand {
	if st.boundVarName == name {
		return st.boundVarOp
	}
	slot := st.allocMap.Get(name)
	switch slot.Kind {
	case alloc.InRegister:
		return RegOperand(physRegFor(slot.Reg))
	case alloc.OnStack:
		return StackOperand(slot.StackIndex)
	default:
		panic(fmt.Sprintf("codegen: reference to unallocated variable %c", name))
	}
}

func (st *State) bindVar(name byte, op Operand) {
	st.boundVarName = name
	st.boundVarOp = op
}

func (st *State) unbindVar() {
	st.boundVarName = 0
}

// everUsedCalleeSaved returns the variable-eligible callee-saved
// registers that were ever used, in push order, for the wrapper to
// save and restore.
func (st *State) everUsedCalleeSaved() []PhysReg {
	var out []PhysReg
	for _, r := range alloc.VarRegOrder {
		p := physRegFor(r)
		if st.regs[p].EverUsed {
			out = append(out, p)
		}
	}
	return out
}
