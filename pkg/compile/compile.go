// Package compile orchestrates the whole back end: expression folding,
// the statement optimizer, variable allocation, and code generation,
// driven by one Options value.
package compile

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/oisee/teenybasicc/pkg/alloc"
	"github.com/oisee/teenybasicc/pkg/ast"
	"github.com/oisee/teenybasicc/pkg/codegen"
	"github.com/oisee/teenybasicc/pkg/fold"
	"github.com/oisee/teenybasicc/pkg/report"
	"github.com/oisee/teenybasicc/pkg/taint"
)

// Options configures one compilation.
type Options struct {
	Optimize bool   // run the folder and the statement optimizer
	Source   string // source path recorded in the report
}

// Compile lowers a parsed program to x86-64 assembly, returning the
// emitted text and a report of what the pipeline did. The program is
// mutated in place by the optimization passes.
//
// Internal invariant violations panic deep inside the pipeline; this
// is the one recover site, converting them into a codegen error for
// the CLI to surface.
func Compile(prog *ast.Sequence, opts Options) (asm string, rep *report.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("codegen: internal error: %v", r)
		}
	}()

	rep = &report.Report{Source: opts.Source}

	if opts.Optimize {
		before := countArithNodes(prog)
		prog = fold.FoldProgram(prog)
		rep.NodesFolded = before - countArithNodes(prog)

		optimized, stats := taint.OptimizeWithStats(prog)
		prog.Stmts = optimized.Stmts
		rep.LetsElided = stats.LetsElided
		rep.BranchesPruned = stats.BranchesPruned
		rep.LoopsElided = stats.LoopsElided
		rep.DeadStores = stats.DeadStores
	}

	allocMap := alloc.Allocate(prog)
	rep.RegisterVars = allocMap.RegisterVarsUsed()
	rep.StackVars = allocMap.StackSlotsUsed()

	var buf bytes.Buffer
	if err := codegen.Generate(prog, allocMap, &buf); err != nil {
		return "", nil, err
	}
	asm = buf.String()
	rep.AssemblyLines = strings.Count(asm, "\n")
	return asm, rep, nil
}

// countArithNodes counts arithmetic BinaryOp nodes across the program,
// used to report how much the folder shrank the tree.
func countArithNodes(s ast.Stmt) int {
	var exprCount func(e ast.Expr) int
	exprCount = func(e ast.Expr) int {
		b, ok := e.(*ast.BinaryOp)
		if !ok {
			return 0
		}
		n := exprCount(b.Left) + exprCount(b.Right)
		if b.Op.IsArithmetic() {
			n++
		}
		return n
	}
	var stmtCount func(s ast.Stmt) int
	stmtCount = func(s ast.Stmt) int {
		switch n := s.(type) {
		case *ast.Sequence:
			total := 0
			for _, inner := range n.Stmts {
				total += stmtCount(inner)
			}
			return total
		case *ast.Print:
			return exprCount(n.Expr)
		case *ast.Let:
			return exprCount(n.Value)
		case *ast.If:
			total := exprCount(n.Cond.Left) + exprCount(n.Cond.Right) + stmtCount(n.IfBranch)
			if n.ElseBranch != nil {
				total += stmtCount(n.ElseBranch)
			}
			return total
		case *ast.While:
			return exprCount(n.Cond.Left) + exprCount(n.Cond.Right) + stmtCount(n.Body)
		default:
			return 0
		}
	}
	return stmtCount(s)
}
