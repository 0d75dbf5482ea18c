// Package fold implements the Expression Folder: a pure, side-effect-free
// rewrite of a single arithmetic expression tree that combines constants
// and eliminates algebraic identities. It never changes a program's
// observable output.
//
// The rewrite is applied bottom-up: each BinaryOp's children are folded
// first, then the node itself is rewritten once against the first
// matching rule below. Because every descendant of a node is strictly
// deeper in the tree, folding children before a node is exactly the
// "reverse breadth-first" visit order (deepest nodes first) the
// rewrite rules assume — a node is never examined before all of its
// descendants have reached their final folded form, and is never
// revisited afterward.
package fold

import "github.com/oisee/teenybasicc/pkg/ast"

// FoldProgram folds every expression-bearing statement in seq, in place,
// recursing into If/While bodies. Condition operands are folded too;
// the comparator itself is left untouched (fold never rewrites a
// comparator node — it is returned as-is for the condition-compilation
// path).
func FoldProgram(seq *ast.Sequence) *ast.Sequence {
	for i, st := range seq.Stmts {
		seq.Stmts[i] = foldStmt(st)
	}
	return seq
}

func foldStmt(s ast.Stmt) ast.Stmt {
	switch st := s.(type) {
	case *ast.Sequence:
		return FoldProgram(st)
	case *ast.Print:
		st.Expr = FoldExpr(st.Expr)
		return st
	case *ast.Let:
		st.Value = FoldExpr(st.Value)
		return st
	case *ast.If:
		FoldCond(st.Cond)
		st.IfBranch = foldStmt(st.IfBranch)
		if st.ElseBranch != nil {
			st.ElseBranch = foldStmt(st.ElseBranch)
		}
		return st
	case *ast.While:
		FoldCond(st.Cond)
		st.Body = foldStmt(st.Body)
		return st
	default:
		return s
	}
}

// FoldCond folds the operand subtrees of a comparator in place without
// touching the comparator node itself.
func FoldCond(cond *ast.BinaryOp) {
	cond.Left = FoldExpr(cond.Left)
	cond.Right = FoldExpr(cond.Right)
}

// FoldExpr is the Expression Folder entry point for one arithmetic
// subtree (the Print.Expr, Let.Value, and condition-operand
// positions).
func FoldExpr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.Num, *ast.Var:
		return e
	case *ast.BinaryOp:
		n.Left = FoldExpr(n.Left)
		n.Right = FoldExpr(n.Right)
		return rewrite(n)
	default:
		return e
	}
}

// rewrite applies the first matching algebraic rewrite rule to a
// BinaryOp whose children are already in final folded form.
func rewrite(n *ast.BinaryOp) ast.Expr {
	if r, ok := constConst(n); ok {
		return r
	}
	if r, ok := divByNegOne(n); ok {
		return r
	}
	if r, ok := identity(n); ok {
		return r
	}
	if r, ok := selfSubtraction(n); ok {
		return r
	}
	if r, ok := cancellation(n); ok {
		return r
	}
	if r, ok := chainAbsorb(n); ok {
		return r
	}
	if r, ok := twoSubtreeAbsorb(n); ok {
		return r
	}
	return n
}

// 1. Constant-constant arithmetic.
func constConst(n *ast.BinaryOp) (ast.Expr, bool) {
	a, ok := n.Left.(*ast.Num)
	if !ok {
		return nil, false
	}
	b, ok := n.Right.(*ast.Num)
	if !ok {
		return nil, false
	}
	return ast.NewNum(EvalArith(n.Op, a.Value, b.Value)), true
}

// EvalArith evaluates a binary arithmetic op on two known operands. It is
// exported so pkg/taint's partial evaluator can fold constant-constant
// subexpressions the same way the Expression Folder does, instead of
// carrying a second copy of this switch.
func EvalArith(op ast.Op, a, b int64) int64 {
	switch op {
	case ast.Add:
		return a + b
	case ast.Sub:
		return a - b
	case ast.Mul:
		return a * b
	case ast.Div:
		// Go's integer division truncates toward zero, the same
		// semantics the emitted idivq has.
		return a / b
	default:
		panic("fold: non-arithmetic op reached constConst")
	}
}

// 2. Division by -1: X / -1 -> X * -1, when X is not itself a Num (that
// case is handled by rule 1 before this rule ever runs).
func divByNegOne(n *ast.BinaryOp) (ast.Expr, bool) {
	if n.Op != ast.Div {
		return nil, false
	}
	if _, isNum := n.Left.(*ast.Num); isNum {
		return nil, false
	}
	rn, ok := n.Right.(*ast.Num)
	if !ok || rn.Value != -1 {
		return nil, false
	}
	return ast.NewBinaryOp(ast.Mul, n.Left, n.Right), true
}

// 3. Identity elimination: X+0, 0+X, X-0, X*1, 1*X, X/1 -> X.
func identity(n *ast.BinaryOp) (ast.Expr, bool) {
	switch n.Op {
	case ast.Add:
		if isNum(n.Right, 0) {
			return n.Left, true
		}
		if isNum(n.Left, 0) {
			return n.Right, true
		}
	case ast.Sub:
		if isNum(n.Right, 0) {
			return n.Left, true
		}
	case ast.Mul:
		if isNum(n.Right, 1) {
			return n.Left, true
		}
		if isNum(n.Left, 1) {
			return n.Right, true
		}
	case ast.Div:
		if isNum(n.Right, 1) {
			return n.Left, true
		}
	}
	return nil, false
}

func isNum(e ast.Expr, v int64) bool {
	n, ok := e.(*ast.Num)
	return ok && n.Value == v
}

// 4. Self subtraction: Var v - Var v -> Num 0.
func selfSubtraction(n *ast.BinaryOp) (ast.Expr, bool) {
	if n.Op != ast.Sub {
		return nil, false
	}
	lv, ok := n.Left.(*ast.Var)
	if !ok {
		return nil, false
	}
	rv, ok := n.Right.(*ast.Var)
	if !ok || rv.Name != lv.Name {
		return nil, false
	}
	return ast.NewNum(0), true
}

// 5. Cancellation: (-1*v)+v, v+(-1*v), (v/-1)+v, and commutations -> 0.
// The "/ -1" form is only accepted when the divisor side of the inner
// op is the Num.
func cancellation(n *ast.BinaryOp) (ast.Expr, bool) {
	if n.Op != ast.Add {
		return nil, false
	}
	if lv, ok := n.Left.(*ast.Var); ok && isNegatedVar(n.Right, lv.Name) {
		return ast.NewNum(0), true
	}
	if rv, ok := n.Right.(*ast.Var); ok && isNegatedVar(n.Left, rv.Name) {
		return ast.NewNum(0), true
	}
	return nil, false
}

// isNegatedVar reports whether e computes -v, in one of the accepted
// shapes: (-1 * v), (v * -1), or (v / -1).
func isNegatedVar(e ast.Expr, v byte) bool {
	b, ok := e.(*ast.BinaryOp)
	if !ok {
		return false
	}
	switch b.Op {
	case ast.Mul:
		if isNum(b.Left, -1) {
			if rv, ok := b.Right.(*ast.Var); ok && rv.Name == v {
				return true
			}
		}
		if isNum(b.Right, -1) {
			if lv, ok := b.Left.(*ast.Var); ok && lv.Name == v {
				return true
			}
		}
	case ast.Div:
		if lv, ok := b.Left.(*ast.Var); ok && lv.Name == v && isNum(b.Right, -1) {
			return true
		}
	}
	return false
}

// 6. Chain-absorb with one inner constant: (X (+/-) n) (+/-) m, and the
// symmetric m (+) (X (+/-) n) form; (X*n)*m and n*(X*m); (X/n)/m ->
// X/(n*m). Never applied across mixed +//- and *// forms.
func chainAbsorb(n *ast.BinaryOp) (ast.Expr, bool) {
	switch n.Op {
	case ast.Add, ast.Sub:
		if inner, ok := n.Left.(*ast.BinaryOp); ok {
			if x, c1, ok := splitAdditive(inner); ok {
				if outerNum, ok := n.Right.(*ast.Num); ok {
					adj := outerNum.Value
					if n.Op == ast.Sub {
						adj = -adj
					}
					return ast.NewBinaryOp(ast.Add, x, ast.NewNum(c1+adj)), true
				}
			}
		}
		if n.Op == ast.Add {
			if inner, ok := n.Right.(*ast.BinaryOp); ok {
				if x, c1, ok := splitAdditive(inner); ok {
					if outerNum, ok := n.Left.(*ast.Num); ok {
						return ast.NewBinaryOp(ast.Add, x, ast.NewNum(outerNum.Value+c1)), true
					}
				}
			}
		}
	case ast.Mul:
		if inner, ok := n.Left.(*ast.BinaryOp); ok && inner.Op == ast.Mul {
			if x, c1, ok := splitMultiplicative(inner); ok {
				if outerNum, ok := n.Right.(*ast.Num); ok {
					return ast.NewBinaryOp(ast.Mul, x, ast.NewNum(c1*outerNum.Value)), true
				}
			}
		}
		if inner, ok := n.Right.(*ast.BinaryOp); ok && inner.Op == ast.Mul {
			if x, c1, ok := splitMultiplicative(inner); ok {
				if outerNum, ok := n.Left.(*ast.Num); ok {
					return ast.NewBinaryOp(ast.Mul, x, ast.NewNum(outerNum.Value*c1)), true
				}
			}
		}
	case ast.Div:
		if inner, ok := n.Left.(*ast.BinaryOp); ok && inner.Op == ast.Div {
			if innerNum, ok := inner.Right.(*ast.Num); ok {
				if outerNum, ok := n.Right.(*ast.Num); ok {
					return ast.NewBinaryOp(ast.Div, inner.Left, ast.NewNum(innerNum.Value*outerNum.Value)), true
				}
			}
		}
	}
	return nil, false
}

// splitAdditive decomposes an Add/Sub node with exactly one Num child
// into its non-constant operand and an "adjusted constant"
// contribution: node's value equals x + adjC.
func splitAdditive(n *ast.BinaryOp) (x ast.Expr, adjC int64, ok bool) {
	if n.Op != ast.Add && n.Op != ast.Sub {
		return nil, 0, false
	}
	if ln, isNum := n.Left.(*ast.Num); isNum {
		if n.Op == ast.Sub {
			// n - X has X at coefficient -1: not representable as
			// "x + adjC" (x itself would need negating), so this shape
			// is left for twoSubtreeAbsorb's fuller linear-form handling.
			return nil, 0, false
		}
		return n.Right, ln.Value, true
	}
	if rn, isNum := n.Right.(*ast.Num); isNum {
		if n.Op == ast.Add {
			return n.Left, rn.Value, true
		}
		return n.Left, -rn.Value, true
	}
	return nil, 0, false
}

func splitMultiplicative(n *ast.BinaryOp) (x ast.Expr, c int64, ok bool) {
	if n.Op != ast.Mul {
		return nil, 0, false
	}
	if ln, isNum := n.Left.(*ast.Num); isNum {
		return n.Right, ln.Value, true
	}
	if rn, isNum := n.Right.(*ast.Num); isNum {
		return n.Left, rn.Value, true
	}
	return nil, 0, false
}

// linForm is the linear decomposition of an Add/Sub node with exactly
// one Num child: its value is (neg ? -1 : 1)*x + c.
type linForm struct {
	x   ast.Expr
	neg bool
	c   int64
}

func classifyAdditive(n *ast.BinaryOp) (linForm, bool) {
	if n.Op != ast.Add && n.Op != ast.Sub {
		return linForm{}, false
	}
	if ln, isNum := n.Left.(*ast.Num); isNum {
		if n.Op == ast.Sub {
			return linForm{x: n.Right, neg: true, c: ln.Value}, true
		}
		return linForm{x: n.Right, neg: false, c: ln.Value}, true
	}
	if rn, isNum := n.Right.(*ast.Num); isNum {
		if n.Op == ast.Add {
			return linForm{x: n.Left, neg: false, c: rn.Value}, true
		}
		return linForm{x: n.Left, neg: false, c: -rn.Value}, true
	}
	return linForm{}, false
}

// 7. Two-subtree absorb: both children are +/- nodes with exactly one
// constant leaf each; combine into a canonical (varExpr +/- varExpr) +
// Num shape, or Num - (varExpr + varExpr) when both variable parts
// carry a negative sign.
func twoSubtreeAbsorb(n *ast.BinaryOp) (ast.Expr, bool) {
	if n.Op != ast.Add && n.Op != ast.Sub {
		return nil, false
	}
	lb, ok := n.Left.(*ast.BinaryOp)
	if !ok {
		return nil, false
	}
	rb, ok := n.Right.(*ast.BinaryOp)
	if !ok {
		return nil, false
	}
	left, ok := classifyAdditive(lb)
	if !ok {
		return nil, false
	}
	right, ok := classifyAdditive(rb)
	if !ok {
		return nil, false
	}

	coeffX := int64(1)
	if left.neg {
		coeffX = -1
	}
	coeffY := int64(1)
	if right.neg {
		coeffY = -1
	}
	constSum := left.c
	if n.Op == ast.Add {
		constSum += right.c
	} else {
		coeffY = -coeffY
		constSum -= right.c
	}

	return buildLinear(coeffX, left.x, coeffY, right.x, constSum), true
}

// buildLinear builds coeffX*x + coeffY*y + c using only Add/Sub nodes,
// each coefficient restricted to +-1 (the only values twoSubtreeAbsorb
// ever produces).
func buildLinear(coeffX int64, x ast.Expr, coeffY int64, y ast.Expr, c int64) ast.Expr {
	var varPart ast.Expr
	switch {
	case coeffX == 1 && coeffY == 1:
		varPart = ast.NewBinaryOp(ast.Add, x, y)
	case coeffX == 1 && coeffY == -1:
		varPart = ast.NewBinaryOp(ast.Sub, x, y)
	case coeffX == -1 && coeffY == 1:
		varPart = ast.NewBinaryOp(ast.Sub, y, x)
	default: // -1, -1
		return ast.NewBinaryOp(ast.Sub, ast.NewNum(c), ast.NewBinaryOp(ast.Add, x, y))
	}
	return ast.NewBinaryOp(ast.Add, varPart, ast.NewNum(c))
}
