package codegen

import (
	"fmt"

	"github.com/oisee/teenybasicc/pkg/alloc"
	"github.com/oisee/teenybasicc/pkg/ast"
)

// emitStmt dispatches one statement node to its emission routine.
func (st *State) emitStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Sequence:
		for _, inner := range n.Stmts {
			st.emitStmt(inner)
		}
	case *ast.Print:
		st.emitPrint(n)
	case *ast.Let:
		st.emitLet(n)
	case *ast.If:
		st.emitIf(n)
	case *ast.While:
		st.emitWhile(n)
	case nil:
	default:
		panic(fmt.Sprintf("codegen: unhandled statement %T", s))
	}
}

// emitPrint loads the expression result into RDI and calls print_int
// (System V: first integer argument in RDI). RDI is force-reserved for
// the duration so the expression's own temporaries never land there;
// any caller-saved register (R8-R11) still holding a live value is
// pushed around the call and popped symmetrically afterward.
func (st *State) emitPrint(n *ast.Print) {
	live := st.spillCallerSaved()

	st.regs[RDI].Reserved = true
	dest := RegOperand(RDI)
	result := st.emitExpr(n.Expr, nil, &dest)
	st.moveTo(dest, result)
	st.regs[RDI].Reserved = false

	st.emitf("\tcall print_int")

	st.restoreCallerSaved(live)
}

func (st *State) spillCallerSaved() []PhysReg {
	var live []PhysReg
	for _, r := range [...]PhysReg{R8, R9, R10, R11} {
		if st.regs[r].ActiveUsers > 0 {
			st.rawPush(r)
			live = append(live, r)
		}
	}
	return live
}

func (st *State) restoreCallerSaved(live []PhysReg) {
	for i := len(live) - 1; i >= 0; i-- {
		st.rawPop(live[i])
	}
}

func (st *State) emitLet(n *ast.Let) {
	slot := st.allocMap.Get(n.Var)
	if slot.Kind == alloc.Unused {
		// Dead-store elimination should have already removed any Let
		// whose target is never read; an unallocated target here
		// means the value is pure side-effect-free computation with no
		// observer. Nothing to write.
		return
	}
	dest := st.slotOperand(slot)

	if !selfReferences(n.Value, n.Var) {
		result := st.emitExpr(n.Value, nil, &dest)
		st.moveTo(dest, result)
		return
	}
	st.emitSelfReferentialLet(n, slot, dest)
}

func (st *State) slotOperand(slot alloc.Slot) Operand {
	switch slot.Kind {
	case alloc.InRegister:
		return RegOperand(physRegFor(slot.Reg))
	case alloc.OnStack:
		return StackOperand(slot.StackIndex)
	default:
		panic("codegen: slotOperand on an unallocated slot")
	}
}

// emitSelfReferentialLet handles LET v = E where E references v.
// The cheap shapes (v op constant, a chain with v on the left spine)
// compile in place; everything else goes through the clone register.
func (st *State) emitSelfReferentialLet(n *ast.Let, slot alloc.Slot, dest Operand) {
	if op, imm, ok := smallConstForm(n.Value, n.Var); ok {
		st.emitOpInPlace(dest, op, imm)
		return
	}

	if slot.Kind == alloc.InRegister && isLeftSpineChain(n.Value, n.Var) {
		prev := st.disableSwap
		st.disableSwap = true
		result := st.emitExpr(n.Value, nil, &dest)
		st.moveTo(dest, result)
		st.disableSwap = prev
		return
	}

	clone := RegOperand(R11)
	if slot.Kind == alloc.InRegister {
		// Copy v into the clone register and rebind reads of v to it
		// for the duration, so the emitter can write straight into v's
		// real operand; the final move is elided once the value is
		// already there.
		st.moveTo(clone, dest)
		st.bindVar(n.Var, clone)
		result := st.emitExpr(n.Value, nil, &dest)
		st.moveTo(dest, result)
		st.unbindVar()
		return
	}

	// Stack-backed v with a complex self-referential expression: reads
	// of v keep coming from its slot, which stays untouched until the
	// end; the expression is emitted into the clone register and
	// stored to the slot once.
	result := st.emitExpr(n.Value, nil, &clone)
	st.moveTo(clone, result)
	st.moveTo(dest, clone)
}

// --- Conditions, IF, WHILE ---

// flipComparator swaps < and > (the condition canonicalization
// swap); = is its own flip.
func flipComparator(op ast.Op) ast.Op {
	switch op {
	case ast.Lt:
		return ast.Gt
	case ast.Gt:
		return ast.Lt
	default:
		return op
	}
}

// negatedJump returns the branch mnemonic that jumps out of the guarded
// block when cond is false — the negation of the source comparator.
func negatedJump(op ast.Op) string {
	switch op {
	case ast.Lt:
		return "jle"
	case ast.Gt:
		return "jge"
	case ast.Eq:
		return "jne"
	default:
		panic("codegen: non-comparator op in condition position")
	}
}

// compileCondition canonicalizes cond and prepares the two operands of
// a single "cmpq left, right" whose flags reflect right-left, so the
// negated jump for the returned comparator exits the guarded block
// exactly when the condition is false. A constant on the comparator's
// right is swapped to the left (flipping < and >): an immediate is
// legal as cmpq's source operand but never as its destination. Any
// BinaryOp operand is emitted into a temporary first; the returned
// cleanup releases those temporaries.
func (st *State) compileCondition(cond *ast.BinaryOp) (op ast.Op, left, right Operand, cleanup func()) {
	op = cond.Op
	l, r := cond.Left, cond.Right
	if isNum(r) && !isNum(l) {
		l, r = r, l
		op = flipComparator(op)
	}

	var releases []PhysReg
	left = st.condOperand(l, &releases)
	right = st.condOperand(r, &releases)

	if left.IsMemory() && right.IsMemory() {
		st.moveTo(RegOperand(RCX), left)
		left = RegOperand(RCX)
	}
	if left.Kind == OpImm && !fitsInt32(left.Imm) {
		st.moveTo(RegOperand(RCX), left)
		left = RegOperand(RCX)
	}
	if right.Kind == OpImm {
		// Both sides constant: the optimizer leaves this only for an
		// always-true WHILE (handled before the compare is emitted),
		// but --no-optimize can still get here.
		st.moveTo(RegOperand(RCX), right)
		right = RegOperand(RCX)
	}

	cleanup = func() {
		for _, r := range releases {
			st.releaseRegister(r)
		}
	}
	return op, left, right, cleanup
}

func (st *State) condOperand(e ast.Expr, releases *[]PhysReg) Operand {
	if b, ok := e.(*ast.BinaryOp); ok {
		r := st.requestRegister()
		dest := RegOperand(r)
		result := st.emitBinaryOp(b, nil, &dest)
		st.moveTo(dest, result)
		*releases = append(*releases, r)
		return dest
	}
	return st.emitExpr(e, nil, nil)
}

// emitIf emits an IF/ELSE. Dead, compile-time-decidable conditions are
// eliminated by the Statement Optimizer before codegen ever sees them;
// this is still a valid (if redundant) compare-and-branch if one
// reaches here with --no-optimize.
func (st *State) emitIf(n *ast.If) {
	id := st.nextIfLabel()
	op, left, right, cleanup := st.compileCondition(n.Cond)
	st.emitf("\tcmpq %s, %s", st.text(left), st.text(right))
	cleanup()

	endLabel := fmt.Sprintf("IF_%d_END", id)
	if n.ElseBranch == nil {
		st.emitf("\t%s %s", negatedJump(op), endLabel)
		st.emitStmt(n.IfBranch)
		st.label(endLabel)
		return
	}

	elseLabel := fmt.Sprintf("IF_%d_ELSE_END", id)
	st.emitf("\t%s %s", negatedJump(op), elseLabel)
	st.emitStmt(n.IfBranch)
	st.emitf("\tjmp %s", endLabel)
	st.label(elseLabel)
	st.emitStmt(n.ElseBranch)
	st.label(endLabel)
}

// emitWhile emits a WHILE loop. An unconditionally-true constant guard
// (the only constant-constant condition the optimizer ever leaves
// behind) is detected and emitted as a bare backward jump
// with no compare.
func (st *State) emitWhile(n *ast.While) {
	id := st.nextWhileLabel()
	startLabel := fmt.Sprintf("WHILE_%d_START", id)
	endLabel := fmt.Sprintf("WHILE_%d_END", id)

	st.label(startLabel)
	if val, ok := constCond(n.Cond); ok && val {
		st.emitStmt(n.Body)
		st.emitf("\tjmp %s", startLabel)
		st.label(endLabel)
		return
	}

	op, left, right, cleanup := st.compileCondition(n.Cond)
	st.emitf("\tcmpq %s, %s", st.text(left), st.text(right))
	cleanup()
	st.emitf("\t%s %s", negatedJump(op), endLabel)
	st.emitStmt(n.Body)
	st.emitf("\tjmp %s", startLabel)
	st.label(endLabel)
}

func constCond(cond *ast.BinaryOp) (bool, bool) {
	l, lok := cond.Left.(*ast.Num)
	r, rok := cond.Right.(*ast.Num)
	if !lok || !rok {
		return false, false
	}
	switch cond.Op {
	case ast.Lt:
		return l.Value < r.Value, true
	case ast.Eq:
		return l.Value == r.Value, true
	case ast.Gt:
		return l.Value > r.Value, true
	default:
		panic("codegen: non-comparator op in condition position")
	}
}
