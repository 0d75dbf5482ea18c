package codegen

import "github.com/oisee/teenybasicc/pkg/ast"

// emitExpr emits code for an arithmetic expression and returns the
// operand holding its result. parent is the immediate parent BinaryOp
// (nil at the root of an expression), used to detect the chained-
// division predicate. destHint, if non-nil, asks the
// emitter to write a BinaryOp's result directly there; otherwise a
// BinaryOp's result comes back in a fresh temporary the caller must
// release. A Num or Var comes back as its immediate or variable
// operand, whatever the hint.
func (st *State) emitExpr(e ast.Expr, parent *ast.BinaryOp, destHint *Operand) Operand {
	switch n := e.(type) {
	case *ast.Num:
		return ImmOperand(n.Value)
	case *ast.Var:
		return st.varOperand(n.Name)
	case *ast.BinaryOp:
		return st.emitBinaryOp(n, parent, destHint)
	default:
		panic("codegen: unexpected expression node")
	}
}

// emitOperand emits e if it is itself a BinaryOp (into a fresh
// temporary), or resolves it directly if it is a leaf. It reports
// whether the caller now owns a temporary register that must be
// released once the combining instruction has consumed it.
func (st *State) emitOperand(e ast.Expr, parent *ast.BinaryOp) (op Operand, owns bool) {
	if b, ok := e.(*ast.BinaryOp); ok {
		return st.emitBinaryOp(b, parent, nil), true
	}
	return st.emitExpr(e, parent, nil), false
}

// emitBinaryOp is the expression emitter's central routine: it
// produces code for one arithmetic BinaryOp and returns the operand
// holding its result.
func (st *State) emitBinaryOp(n *ast.BinaryOp, parent *ast.BinaryOp, destHint *Operand) Operand {
	if n.Op == ast.Div {
		return st.emitDivision(n, parent, destHint)
	}

	intelligentSwap(n, st.disableSwap)

	left, leftOwned := st.emitOperand(n.Left, n)
	right, rightOwned := st.emitOperand(n.Right, n)

	if leftOwned && rightOwned && left.Equal(right) {
		// The right subtree spilled the left operand's temporary and
		// returned its own result in that same register: park the right
		// value in RCX, let the release pop the left value back, and
		// combine into that register.
		st.moveTo(RegOperand(RCX), right)
		st.releaseRegister(right.Reg)
		st.performOp(n.Op, left, left, RegOperand(RCX))
		if destHint == nil || left.Equal(*destHint) {
			return left
		}
		st.moveTo(*destHint, left)
		st.releaseRegister(left.Reg)
		return *destHint
	}

	dest := st.resolveDest(destHint, left, right, leftOwned, rightOwned)
	if dest.Equal(right) && !dest.Equal(left) {
		st.performOpReversed(n.Op, dest, left)
	} else {
		st.performOp(n.Op, dest, left, right)
	}

	if leftOwned && !left.Equal(dest) {
		st.releaseRegister(left.Reg)
	}
	if rightOwned && !right.Equal(dest) {
		st.releaseRegister(right.Reg)
	}
	return dest
}

// resolveDest picks where a combined result lands: destHint when the
// caller supplied one, otherwise a temporary already owned by one of
// the two operands (so no extra register needs to be requested), or
// failing that a freshly requested register.
func (st *State) resolveDest(destHint *Operand, left, right Operand, leftOwned, rightOwned bool) Operand {
	if destHint != nil {
		return *destHint
	}
	if leftOwned {
		return left
	}
	if rightOwned {
		return right
	}
	return RegOperand(st.requestRegister())
}

// intelligentSwap commutes n's children when doing so improves the
// instructions emitted downstream, unless swapping has
// been disabled for the duration of a chained self-referential LET.
func intelligentSwap(n *ast.BinaryOp, disable bool) {
	if disable {
		return
	}
	switch n.Op {
	case ast.Mul:
		// -1 * X -> X * -1, so -1 lands as negq's implicit operand.
		if isNumVal(n.Left, -1) && !isNum(n.Right) {
			n.Left, n.Right = n.Right, n.Left
			return
		}
		// Pow2 * X -> X * Pow2, so Pow2 lands as shlq's immediate.
		if ln, ok := n.Left.(*ast.Num); ok && isPow2(ln.Value) && !isNum(n.Right) {
			n.Left, n.Right = n.Right, n.Left
			return
		}
		if swapLeafBeforeBinop(n) {
			return
		}
	case ast.Add:
		if swapLeafBeforeBinop(n) {
			return
		}
		// Var + Num -> Num + Var. Both children are leaves here, so no
		// Mul-immediate shape is disturbed by the swap.
		if _, lv := n.Left.(*ast.Var); lv {
			if _, rn := n.Right.(*ast.Num); rn {
				n.Left, n.Right = n.Right, n.Left
			}
		}
	}
}

// swapLeafBeforeBinop implements "leaf ⊕ binop -> binop ⊕ leaf" for the
// commutative ops: the deeper subtree is evaluated (and its temporary
// released) before the leaf is read, reducing peak register pressure.
func swapLeafBeforeBinop(n *ast.BinaryOp) bool {
	if isLeaf(n.Left) {
		if _, ok := n.Right.(*ast.BinaryOp); ok {
			n.Left, n.Right = n.Right, n.Left
			return true
		}
	}
	return false
}

func isLeaf(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Num, *ast.Var:
		return true
	default:
		return false
	}
}

func isNum(e ast.Expr) bool {
	_, ok := e.(*ast.Num)
	return ok
}

func isNumVal(e ast.Expr, v int64) bool {
	n, ok := e.(*ast.Num)
	return ok && n.Value == v
}

// emitDivision handles '/' specially: truncated division requires
// RAX:RDX and cqo, and a right-descending spine of '/'
// nodes keeps its running quotient in RAX instead of moving it out to
// a fresh temporary at every level (the "chained division"
// mechanism).
func (st *State) emitDivision(n *ast.BinaryOp, parent *ast.BinaryOp, destHint *Operand) Operand {
	left, leftOwned := st.emitOperand(n.Left, n)
	right, rightOwned := st.emitOperand(n.Right, n)

	st.moveTo(RegOperand(RAX), left)
	if leftOwned && !left.isReg(RAX) {
		st.releaseRegister(left.Reg)
	}

	divisor := right
	if right.Kind == OpImm {
		st.moveTo(RegOperand(RCX), right)
		divisor = RegOperand(RCX)
	}
	st.emitf("\tcqo")
	st.emitf("\tidivq %s", st.text(divisor))
	if rightOwned && !right.isReg(RCX) {
		st.releaseRegister(right.Reg)
	}

	if isChainedDivisionParent(n, parent) {
		// The outer '/' in the chain will consume RAX directly; only
		// the outermost division transfers the quotient out of RAX.
		return RegOperand(RAX)
	}

	var dest Operand
	if destHint != nil {
		dest = *destHint
	} else {
		dest = RegOperand(st.requestRegister())
	}
	if !dest.isReg(RAX) {
		st.moveTo(dest, RegOperand(RAX))
	}
	return dest
}

// isChainedDivisionParent reports whether n is the left child of a
// parent '/' node whose right child is not itself a BinaryOp — the
// predicate for keeping a quotient resident in RAX across
// consecutive right-chained divisions.
func isChainedDivisionParent(n, parent *ast.BinaryOp) bool {
	if parent == nil || parent.Op != ast.Div {
		return false
	}
	if parent.Left != ast.Expr(n) {
		return false
	}
	_, rightIsBinop := parent.Right.(*ast.BinaryOp)
	return !rightIsBinop
}

// performOp combines left and right into dest, enforcing the x86
// encoding constraints:
// mem-mem operands are forbidden (routed through RCX), out-of-int32
// immediates are loaded into RCX first, and multiplication specializes
// to negq/shlq/three-operand imulq as the operands allow.
func (st *State) performOp(op ast.Op, dest, left, right Operand) {
	switch op {
	case ast.Add:
		st.moveTo(dest, left)
		st.addSub("addq", dest, right)
	case ast.Sub:
		st.moveTo(dest, left)
		st.addSub("subq", dest, right)
	case ast.Mul:
		st.emitMul(dest, left, right)
	default:
		panic("codegen: non-arithmetic op reached performOp")
	}
}

// performOpReversed computes dest = left op dest, for the case where
// the result's home is the operand already holding the right-hand
// value (a temporary owned by the right subtree, or a destination hint
// that aliases it). Add and Mul commute; Sub is rewritten as
// dest = (-dest) + left: a negq, then an addq.
func (st *State) performOpReversed(op ast.Op, dest, left Operand) {
	switch op {
	case ast.Add:
		st.addSub("addq", dest, left)
	case ast.Mul:
		st.emitMul(dest, dest, left)
	case ast.Sub:
		st.emitf("\tnegq %s", st.text(dest))
		st.addSub("addq", dest, left)
	default:
		panic("codegen: non-arithmetic op reached performOpReversed")
	}
}

// moveTo writes src into dest, eliding a no-op self-move.
func (st *State) moveTo(dest, src Operand) {
	if dest.Equal(src) {
		return
	}
	if dest.IsMemory() && src.IsMemory() {
		st.emitf("\tmovq %s, %%rcx", st.text(src))
		st.emitf("\tmovq %%rcx, %s", st.text(dest))
		return
	}
	if src.Kind == OpImm && !fitsInt32(src.Imm) {
		st.emitf("\tmovq %s, %%rcx", st.text(src))
		st.emitf("\tmovq %%rcx, %s", st.text(dest))
		return
	}
	st.emitf("\tmovq %s, %s", st.text(src), st.text(dest))
}

// addSub emits mnemonic dest, right (AT&T order "mnemonic src, dst"),
// routing a mem-mem pair or an out-of-range immediate through RCX.
func (st *State) addSub(mnemonic string, dest, right Operand) {
	src := right
	if dest.IsMemory() && src.IsMemory() {
		st.emitf("\tmovq %s, %%rcx", st.text(src))
		src = RegOperand(RCX)
	} else if src.Kind == OpImm && !fitsInt32(src.Imm) {
		st.emitf("\tmovq %s, %%rcx", st.text(src))
		src = RegOperand(RCX)
	}
	st.emitf("\t%s %s, %s", mnemonic, st.text(src), st.text(dest))
}

// emitMul implements the imul/neg/shl specialization table:
// "X * -1" becomes negq, "X * pow2" becomes shlq, an in-range
// immediate uses the three-operand imulq form, and anything else
// routes through RCX first.
func (st *State) emitMul(dest, left, right Operand) {
	if right.Kind == OpImm {
		switch {
		case right.Imm == -1:
			st.moveTo(dest, left)
			st.emitf("\tnegq %s", st.text(dest))
			return
		case isPow2(right.Imm):
			st.moveTo(dest, left)
			st.emitf("\tshlq $%d, %s", log2(right.Imm), st.text(dest))
			return
		case fitsInt32(right.Imm):
			if dest.Kind == OpReg && left.Kind != OpImm {
				st.emitf("\timulq $%d, %s, %s", right.Imm, st.text(left), st.text(dest))
				return
			}
		}
	}
	if left.Kind == OpImm {
		// Multiplication is commutative: move the immediate to the
		// right and load it into RCX; the specialized forms above are
		// not retried for it. A non-constant
		// left with a constant right that didn't match above (huge
		// immediate) falls through to the general register*register
		// path via RCX below.
		left, right = right, left
		if right.Kind == OpImm {
			st.moveTo(RegOperand(RCX), right)
			right = RegOperand(RCX)
		}
	}
	st.moveTo(dest, left)
	if right.Kind == OpImm {
		st.emitf("\tmovq %s, %%rcx", st.text(right))
		right = RegOperand(RCX)
	} else if right.IsMemory() && dest.IsMemory() {
		st.emitf("\tmovq %s, %%rcx", st.text(right))
		right = RegOperand(RCX)
	}
	if dest.IsMemory() {
		st.emitf("\tmovq %s, %%rcx", st.text(dest))
		st.emitf("\timulq %s, %%rcx", st.text(right))
		st.emitf("\tmovq %%rcx, %s", st.text(dest))
		return
	}
	st.emitf("\timulq %s, %s", st.text(right), st.text(dest))
}

// --- Self-referential LET ---

// selfReferences reports whether e contains a reference to variable v.
func selfReferences(e ast.Expr, v byte) bool {
	switch n := e.(type) {
	case *ast.Var:
		return n.Name == v
	case *ast.BinaryOp:
		return selfReferences(n.Left, v) || selfReferences(n.Right, v)
	default:
		return false
	}
}

// smallConstForm recognizes "v op n" with op in {+,-,*} and n a
// constant, the shape that compiles to a single op-in-place on v's
// operand.
func smallConstForm(e ast.Expr, v byte) (op ast.Op, imm int64, ok bool) {
	b, isBin := e.(*ast.BinaryOp)
	if !isBin || (b.Op != ast.Add && b.Op != ast.Sub && b.Op != ast.Mul) {
		return 0, 0, false
	}
	lv, isVar := b.Left.(*ast.Var)
	if !isVar || lv.Name != v {
		return 0, 0, false
	}
	n, isNum := b.Right.(*ast.Num)
	if !isNum {
		return 0, 0, false
	}
	return b.Op, n.Value, true
}

// isLeftSpineChain reports whether e's left spine eventually reaches
// Var v and no right-hand operand along that spine references v —
// the shape required before the emitter will write directly into v's
// own operand with swapping disabled.
func isLeftSpineChain(e ast.Expr, v byte) bool {
	b, isBin := e.(*ast.BinaryOp)
	if !isBin {
		lv, isVar := e.(*ast.Var)
		return isVar && lv.Name == v
	}
	if selfReferences(b.Right, v) {
		return false
	}
	return isLeftSpineChain(b.Left, v)
}

// emitOpInPlace emits the op-in-place form for "v op= n".
func (st *State) emitOpInPlace(dest Operand, op ast.Op, imm int64) {
	switch op {
	case ast.Add:
		st.addSub("addq", dest, ImmOperand(imm))
	case ast.Sub:
		st.addSub("subq", dest, ImmOperand(imm))
	case ast.Mul:
		st.emitMul(dest, dest, ImmOperand(imm))
	default:
		panic("codegen: emitOpInPlace: non-additive/multiplicative op")
	}
}
