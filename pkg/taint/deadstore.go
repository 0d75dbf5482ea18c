package taint

import "github.com/oisee/teenybasicc/pkg/ast"

// countRefs walks the whole program once, counting every occurrence of
// each variable in an expression position. The LHS of a Let does not
// count as a reference to the variable it assigns; a reference on the
// Let's own RHS (a self-referential Let) does.
func countRefs(s ast.Stmt) [26]int {
	var refs [26]int
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Var:
			refs[n.Name-'A']++
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
	return refs
}

// removeDead is Phase B's second walk: any Let whose variable has zero
// references is erased. An If whose branches both collapse to nothing
// is itself erased; a While whose body collapses to nothing keeps an
// empty body rather than being erased, since the loop's own condition
// can still have observable effects (an infinite loop, or none at all)
// that a deleted statement would silently change.
func removeDead(s ast.Stmt, refs [26]int, stats *Stats) ast.Stmt {
	switch n := s.(type) {
	case *ast.Sequence:
		out := make([]ast.Stmt, 0, len(n.Stmts))
		for _, inner := range n.Stmts {
			if r := removeDead(inner, refs, stats); r != nil {
				out = append(out, r)
			}
		}
		return ast.NewSequence(out...)
	case *ast.Let:
		if refs[n.Var-'A'] == 0 {
			stats.DeadStores++
			return nil
		}
		return n
	case *ast.If:
		ifB := removeDead(n.IfBranch, refs, stats)
		var elseB ast.Stmt
		if n.ElseBranch != nil {
			elseB = removeDead(n.ElseBranch, refs, stats)
		}
		if isEmptyStmt(ifB) && isEmptyStmt(elseB) {
			return nil
		}
		n.IfBranch = orEmptySeq(ifB)
		n.ElseBranch = elseB
		return n
	case *ast.While:
		n.Body = orEmptySeq(removeDead(n.Body, refs, stats))
		return n
	default:
		return s
	}
}

func isEmptyStmt(s ast.Stmt) bool {
	if s == nil {
		return true
	}
	seq, ok := s.(*ast.Sequence)
	return ok && len(seq.Stmts) == 0
}
