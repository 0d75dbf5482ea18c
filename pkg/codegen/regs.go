package codegen

import (
	"fmt"

	"github.com/oisee/teenybasicc/pkg/alloc"
)

// PhysReg is a hardware register id, numbered the way the x86-64 ModRM
// byte numbers them: RAX=0 .. RDI=7, R8=8 .. R15=15.
type PhysReg int

const (
	RAX PhysReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	numPhysRegs
)

// RegName renders r as its AT&T-syntax 64-bit register name.
func (r PhysReg) RegName() string {
	names := [numPhysRegs]string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	return names[r]
}

// physRegFor maps an allocator register id to its hardware PhysReg.
func physRegFor(r alloc.Reg) PhysReg {
	switch r {
	case alloc.RBX:
		return RBX
	case alloc.RBP:
		return RBP
	case alloc.R12:
		return R12
	case alloc.R13:
		return R13
	case alloc.R14:
		return R14
	case alloc.R15:
		return R15
	case alloc.R8:
		return R8
	case alloc.R9:
		return R9
	case alloc.R10:
		return R10
	default:
		panic("codegen: invalid allocator register")
	}
}

// RegDescriptor is one entry of the register descriptor table:
// reserved registers are never handed out as temporaries;
// activeUsers tracks how many nested temporaries currently occupy the
// register (more than one means it has been spilled to the machine
// stack and must be restored on release); everUsed records whether a
// callee-saved register needs to appear in the prologue/epilogue.
type RegDescriptor struct {
	Reserved    bool
	ActiveUsers int
	EverUsed    bool
}

// tempScanOrder is the fixed order request_register scans for a free
// temporary: RDI and RSI first (never variable-eligible,
// so usually free), then the variable-eligible callee-saved registers
// in allocator order.
var tempScanOrder = [...]PhysReg{RDI, RSI, RBX, RBP, R12, R13, R14, R15, R8, R9, R10}

// OperandKind distinguishes the three operand shapes the emitter
// manipulates.
type OperandKind int

const (
	OpReg OperandKind = iota
	OpStack
	OpImm
)

// Operand is a location or literal value the emitter reads from or
// writes to: a register, a stack-slot variable, or an immediate.
type Operand struct {
	Kind       OperandKind
	Reg        PhysReg
	StackIndex int // slot i sits at RSP + 8*i + current scratch height
	Imm        int64
}

func RegOperand(r PhysReg) Operand       { return Operand{Kind: OpReg, Reg: r} }
func StackOperand(i int) Operand         { return Operand{Kind: OpStack, StackIndex: i} }
func ImmOperand(v int64) Operand         { return Operand{Kind: OpImm, Imm: v} }
func (o Operand) IsMemory() bool         { return o.Kind == OpStack }
func (o Operand) isReg(r PhysReg) bool   { return o.Kind == OpReg && o.Reg == r }
func (o Operand) Equal(other Operand) bool {
	return o == other
}

// fitsInt32 reports whether v fits a signed 32-bit immediate, the
// largest immediate x86-64 arithmetic instructions accept directly.
func fitsInt32(v int64) bool {
	return v >= -(1<<31) && v < (1<<31)
}

// isPow2 reports whether v is a positive power of two, the condition
// under which "X * v" specializes to a shl.
func isPow2(v int64) bool {
	return v > 0 && v&(v-1) == 0
}

// log2 returns the shift count for a power-of-two v.
func log2(v int64) uint {
	var n uint
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// text renders op as the AT&T-syntax operand text it appears as in an
// emitted instruction, given the emitter's current scratch stack
// height: a stack-slot variable is addressed as RSP + 8*i plus
// whatever the emitter has pushed within the current statement.
func (st *State) text(op Operand) string {
	switch op.Kind {
	case OpReg:
		return "%" + op.Reg.RegName()
	case OpStack:
		return fmt.Sprintf("%d(%%rsp)", 8*op.StackIndex+st.scratchHeight)
	case OpImm:
		return fmt.Sprintf("$%d", op.Imm)
	default:
		panic("codegen: invalid operand")
	}
}

// requestRegister scans tempScanOrder for a register with zero active
// users. Failing that, it falls back to RDI or RSI (whichever has
// fewer users), pushes the displaced value onto the machine stack, and
// returns that register; releaseRegister pops it back when the
// pre-release count was greater than one.
func (st *State) requestRegister() PhysReg {
	for _, r := range tempScanOrder {
		d := &st.regs[r]
		if !d.Reserved && d.ActiveUsers == 0 {
			d.ActiveUsers++
			d.EverUsed = true
			return r
		}
	}
	// A reserved fallback (RDI while a print argument is pending) has
	// zero users but no spillable value; picking it would push without
	// a matching pop on release.
	pick := RDI
	if st.regs[RDI].Reserved || (!st.regs[RSI].Reserved && st.regs[RSI].ActiveUsers < st.regs[RDI].ActiveUsers) {
		pick = RSI
	}
	st.rawPush(pick)
	d := &st.regs[pick]
	d.ActiveUsers++
	d.EverUsed = true
	return pick
}

func (st *State) releaseRegister(r PhysReg) {
	d := &st.regs[r]
	if d.ActiveUsers > 1 {
		st.rawPop(r)
	}
	d.ActiveUsers--
}

func (st *State) rawPush(r PhysReg) {
	st.emitf("\tpushq %%%s", r.RegName())
	st.scratchHeight += 8
}

func (st *State) rawPop(r PhysReg) {
	st.emitf("\tpopq %%%s", r.RegName())
	st.scratchHeight -= 8
}
