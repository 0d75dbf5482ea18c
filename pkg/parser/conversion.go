package parser

import (
	"github.com/oisee/teenybasicc/pkg/ast"
)

// convertProgram lowers the concrete participle grammar tree into the
// optimizer/emitter's AST: one small tree-shaped conversion function
// per grammar rule.
func convertProgram(p *Program) *ast.Sequence {
	return ast.NewSequence(convertStmts(p.Stmts)...)
}

func convertStmts(stmts []*Stmt) []ast.Stmt {
	out := make([]ast.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = convertStmt(s)
	}
	return out
}

func convertStmt(s *Stmt) ast.Stmt {
	switch {
	case s.Let != nil:
		return ast.NewLet(s.Let.Var[0], convertExpr(s.Let.Expr))
	case s.Print != nil:
		return ast.NewPrint(convertExpr(s.Print.Expr))
	case s.If != nil:
		var elseBranch ast.Stmt
		if s.If.Else != nil {
			elseBranch = ast.NewSequence(convertStmts(s.If.Else)...)
		}
		return ast.NewIf(convertCond(s.If.Cond), ast.NewSequence(convertStmts(s.If.Then)...), elseBranch)
	case s.While != nil:
		return ast.NewWhile(convertCond(s.While.Cond), ast.NewSequence(convertStmts(s.While.Body)...))
	default:
		panic("parser: empty Stmt alternative")
	}
}

func convertCond(c *Cond) *ast.BinaryOp {
	return ast.NewBinaryOp(ast.Op(c.Op[0]), convertExpr(c.Left), convertExpr(c.Right))
}

// convertExpr builds a left-associative BinaryOp chain from the
// flat "Left (op Term)*" shape participle produces.
func convertExpr(e *Expr) ast.Expr {
	left := convertTerm(e.Left)
	for _, r := range e.Rest {
		left = ast.NewBinaryOp(ast.Op(r.Op[0]), left, convertTerm(r.Term))
	}
	return left
}

func convertTerm(t *Term) ast.Expr {
	left := convertFactor(t.Left)
	for _, r := range t.Rest {
		left = ast.NewBinaryOp(ast.Op(r.Op[0]), left, convertFactor(r.Factor))
	}
	return left
}

func convertFactor(f *Factor) ast.Expr {
	switch {
	case f.Neg != nil:
		return ast.NewBinaryOp(ast.Sub, ast.NewNum(0), convertFactor(f.Neg))
	case f.Num != nil:
		return ast.NewNum(*f.Num)
	case f.Var != nil:
		return ast.NewVar((*f.Var)[0])
	case f.Paren != nil:
		return convertExpr(f.Paren)
	default:
		panic("parser: empty Factor alternative")
	}
}
