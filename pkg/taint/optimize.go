package taint

import (
	"github.com/oisee/teenybasicc/pkg/ast"
	"github.com/oisee/teenybasicc/pkg/fold"
)

// Optimize runs the Statement Optimizer over an already-folded
// program: Phase A predicts and partially evaluates as much of the
// control flow as it can prove, then Phase B removes any Let whose
// value is never read.
func Optimize(prog *ast.Sequence) *ast.Sequence {
	seq, _ := OptimizeWithStats(prog)
	return seq
}

// OptimizeWithStats is Optimize plus a count of everything it removed,
// for the compile report.
func OptimizeWithStats(prog *ast.Sequence) (*ast.Sequence, Stats) {
	st := NewState()
	predicted := predictStmt(prog, st).(*ast.Sequence)

	refs := countRefs(predicted)
	swept := removeDead(predicted, refs, st.stats)
	if seq, ok := swept.(*ast.Sequence); ok {
		return seq, *st.stats
	}
	return ast.NewSequence(), *st.stats
}

// predictStmt is Phase A. It returns the replacement statement, or nil
// if the statement should be erased entirely ("delete-me").
func predictStmt(s ast.Stmt, st *State) ast.Stmt {
	switch n := s.(type) {
	case *ast.Sequence:
		return predictSeq(n, st)
	case *ast.Print:
		n.Expr = partialEval(n.Expr, st)
		return n
	case *ast.Let:
		return predictLet(n, st)
	case *ast.If:
		return predictIf(n, st)
	case *ast.While:
		return predictWhile(n, st)
	case nil:
		return nil
	default:
		return s
	}
}

func predictSeq(seq *ast.Sequence, st *State) *ast.Sequence {
	out := make([]ast.Stmt, 0, len(seq.Stmts))
	for _, stmt := range seq.Stmts {
		if r := predictStmt(stmt, st); r != nil {
			out = append(out, r)
		}
	}
	return ast.NewSequence(out...)
}

// predictLet implements: a Let to an already-tainted variable is left
// untouched; otherwise its RHS is partially evaluated, and if that
// yields a known value, the variable's state is updated (or the
// statement is erased outright, if the value is unchanged from what
// it already was).
func predictLet(n *ast.Let, st *State) ast.Stmt {
	idx := n.Var - 'A'
	if st.vars[idx].Tainted {
		return n
	}

	val := partialEval(n.Value, st)
	if k, ok := val.(*ast.Num); ok {
		if st.vars[idx].InScope && st.vars[idx].Value == k.Value {
			st.stats.LetsElided++
			return nil
		}
		st.vars[idx] = VarState{InScope: true, Value: k.Value}
		n.Value = k
		return n
	}

	st.vars[idx] = VarState{Tainted: true, InScope: true}
	n.Value = val
	return n
}

// predictIf decides the branch outright when the condition folds to a
// constant. Otherwise both branches are explored from independent
// clones of the pre-If state (so one branch's effects never leak into
// the other), and the post-If state is the conservative join of the
// two: a variable keeps its proven state only when both branches agree
// on it exactly, and is tainted otherwise. Without this join, a value
// proven only on the taken-at-compile-time-unknown branch could be
// wrongly propagated past the If on the other branch's path, breaking
// semantic preservation.
func predictIf(n *ast.If, st *State) ast.Stmt {
	partialEvalCond(n.Cond, st)
	if val, ok := constCond(n.Cond); ok {
		st.stats.BranchesPruned++
		if val {
			return predictStmt(n.IfBranch, st)
		}
		if n.ElseBranch != nil {
			return predictStmt(n.ElseBranch, st)
		}
		return nil
	}

	ifState := st.Clone()
	ifResult := predictStmt(n.IfBranch, ifState)

	elseState := st.Clone()
	var elseResult ast.Stmt
	if n.ElseBranch != nil {
		elseResult = predictStmt(n.ElseBranch, elseState)
	}

	mergeInto(st, ifState, elseState)

	n.IfBranch = orEmptySeq(ifResult)
	n.ElseBranch = elseResult
	return n
}

func mergeInto(dst, a, b *State) {
	for i := range dst.vars {
		if a.vars[i] == b.vars[i] {
			dst.vars[i] = a.vars[i]
		} else {
			dst.vars[i] = VarState{Tainted: true, InScope: a.vars[i].InScope || b.vars[i].InScope}
		}
	}
}

// predictWhile runs the taint-discovery fixed point first: any
// variable assigned anywhere reachable in the body is conservatively
// tainted before the loop's condition or body are evaluated for real,
// since a later iteration's assignment can affect an earlier-looking
// read. Only once discovery has stabilized is the real predict pass
// run once over the body.
func predictWhile(n *ast.While, st *State) ast.Stmt {
	discover := st.Clone()
	for taintDiscover(n.Body, discover) {
	}
	for i := range st.vars {
		if discover.vars[i].Tainted && !st.vars[i].Tainted {
			st.vars[i] = VarState{Tainted: true, InScope: true}
		}
	}

	partialEvalCond(n.Cond, st)
	if val, ok := constCond(n.Cond); ok && !val {
		st.stats.LoopsElided++
		return nil
	}

	body := predictStmt(n.Body, st)
	n.Body = orEmptySeq(body)
	return n
}

// taintDiscover walks a loop body taints every variable it finds
// assigned by a Let, recursing into both sides of an If whose
// condition isn't decidable with the taint known so far, and returns
// whether it discovered anything new this pass. The caller reruns it
// until a pass returns false, since newly-discovered taint can make a
// previously-decidable If become undecidable, exposing more Lets.
func taintDiscover(s ast.Stmt, st *State) bool {
	switch n := s.(type) {
	case *ast.Sequence:
		changed := false
		for _, inner := range n.Stmts {
			if taintDiscover(inner, st) {
				changed = true
			}
		}
		return changed
	case *ast.Let:
		idx := n.Var - 'A'
		if st.vars[idx].Tainted {
			return false
		}
		st.vars[idx] = VarState{Tainted: true, InScope: true}
		return true
	case *ast.If:
		if val, ok := tryConstCond(n.Cond, st); ok {
			if val {
				return taintDiscover(n.IfBranch, st)
			}
			if n.ElseBranch != nil {
				return taintDiscover(n.ElseBranch, st)
			}
			return false
		}
		changed := taintDiscover(n.IfBranch, st)
		if n.ElseBranch != nil && taintDiscover(n.ElseBranch, st) {
			changed = true
		}
		return changed
	case *ast.While:
		return taintDiscover(n.Body, st)
	default:
		return false
	}
}

// partialEval substitutes every Var leaf with its known value, then
// folds any BinaryOp whose operands both became Num (it does not
// apply the Expression Folder's algebraic identities — those already
// ran in the prior pass; this only ever turns a Var into the constant
// the optimizer has proven for it).
func partialEval(e ast.Expr, st *State) ast.Expr {
	switch n := e.(type) {
	case *ast.Num:
		return n
	case *ast.Var:
		vs := st.vars[n.Name-'A']
		if vs.InScope && !vs.Tainted {
			return ast.NewNum(vs.Value)
		}
		return n
	case *ast.BinaryOp:
		n.Left = partialEval(n.Left, st)
		n.Right = partialEval(n.Right, st)
		if n.Op.IsArithmetic() {
			if l, ok := n.Left.(*ast.Num); ok {
				if r, ok := n.Right.(*ast.Num); ok {
					return ast.NewNum(fold.EvalArith(n.Op, l.Value, r.Value))
				}
			}
		}
		return n
	default:
		return e
	}
}

func partialEvalCond(cond *ast.BinaryOp, st *State) {
	cond.Left = partialEval(cond.Left, st)
	cond.Right = partialEval(cond.Right, st)
}

func constCond(cond *ast.BinaryOp) (bool, bool) {
	l, lok := cond.Left.(*ast.Num)
	r, rok := cond.Right.(*ast.Num)
	if !lok || !rok {
		return false, false
	}
	return compare(cond.Op, l.Value, r.Value), true
}

// tryConstExpr is a read-only analogue of partialEval used only by
// taint discovery: it never mutates the tree it walks, since that tree
// belongs to the real loop body and must stay untouched until the
// real predict pass runs over it.
func tryConstExpr(e ast.Expr, st *State) (int64, bool) {
	switch n := e.(type) {
	case *ast.Num:
		return n.Value, true
	case *ast.Var:
		vs := st.vars[n.Name-'A']
		if vs.InScope && !vs.Tainted {
			return vs.Value, true
		}
		return 0, false
	case *ast.BinaryOp:
		l, lok := tryConstExpr(n.Left, st)
		r, rok := tryConstExpr(n.Right, st)
		if lok && rok && n.Op.IsArithmetic() {
			return fold.EvalArith(n.Op, l, r), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func tryConstCond(cond *ast.BinaryOp, st *State) (bool, bool) {
	l, lok := tryConstExpr(cond.Left, st)
	r, rok := tryConstExpr(cond.Right, st)
	if !lok || !rok {
		return false, false
	}
	return compare(cond.Op, l, r), true
}

func compare(op ast.Op, l, r int64) bool {
	switch op {
	case ast.Lt:
		return l < r
	case ast.Eq:
		return l == r
	case ast.Gt:
		return l > r
	default:
		panic("taint: non-comparator op in condition position")
	}
}

func orEmptySeq(s ast.Stmt) ast.Stmt {
	if s == nil {
		return ast.NewSequence()
	}
	return s
}
