// Package fuzz generates and mutates random well-typed TeenyBASIC
// programs for property testing: every generated program terminates,
// never divides by zero, and uses only variables from a configured
// pool, so a reference interpretation of it is always defined.
package fuzz

import (
	"math/rand/v2"

	"github.com/oisee/teenybasicc/pkg/ast"
)

// Config bounds the shape of generated programs.
type Config struct {
	MaxDepth int    // expression tree depth bound
	MaxStmts int    // statements per generated sequence
	Vars     []byte // variable pool, e.g. "ABCDEFGHI"
}

// DefaultConfig generates programs over A-I. Loop counters are drawn
// from the same pool, so a program uses at most these nine variables,
// all of which the allocator can place in registers.
func DefaultConfig() Config {
	return Config{MaxDepth: 4, MaxStmts: 8, Vars: []byte("ABCDEFGHI")}
}

// Generator produces random programs from a seeded source, so any
// failing case is reproducible from its seed alone.
type Generator struct {
	rng *rand.Rand
	cfg Config
}

// NewGenerator creates a Generator for the given seed.
func NewGenerator(seed uint64, cfg Config) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)), cfg: cfg}
}

// Program generates one complete program: a seeding LET for every
// variable in the pool, then a run of random statements.
func (g *Generator) Program() *ast.Sequence {
	var stmts []ast.Stmt
	for _, v := range g.cfg.Vars {
		stmts = append(stmts, ast.NewLet(v, ast.NewNum(g.smallInt())))
	}
	n := 1 + g.rng.IntN(g.cfg.MaxStmts)
	for i := 0; i < n; i++ {
		stmts = append(stmts, g.stmt(0, 0))
	}
	return ast.NewSequence(stmts...)
}

// stmt generates one statement. locked is a bitmask of pool indices
// that enclosing loops use as counters; statements inside those loops
// never assign them, so every loop provably terminates.
func (g *Generator) stmt(nest int, locked uint32) ast.Stmt {
	r := g.rng.IntN(100)
	switch {
	case r < 40:
		return ast.NewLet(g.assignable(locked), g.expr(g.cfg.MaxDepth))
	case r < 65:
		return ast.NewPrint(g.expr(g.cfg.MaxDepth))
	case r < 85 && nest < 2:
		var elseBranch ast.Stmt
		if g.rng.IntN(2) == 0 {
			elseBranch = g.body(nest+1, locked)
		}
		return ast.NewIf(g.cond(), g.body(nest+1, locked), elseBranch)
	case nest < 2:
		return g.boundedWhile(nest, locked)
	default:
		return ast.NewPrint(g.expr(g.cfg.MaxDepth))
	}
}

// boundedWhile builds a loop whose counter is seeded before entry,
// incremented as the body's last statement, and assigned nowhere else.
func (g *Generator) boundedWhile(nest int, locked uint32) ast.Stmt {
	idx := g.rng.IntN(len(g.cfg.Vars))
	for locked&(1<<idx) != 0 {
		idx = g.rng.IntN(len(g.cfg.Vars))
	}
	counter := g.cfg.Vars[idx]
	bound := int64(1 + g.rng.IntN(6))

	inner := g.body(nest+1, locked|1<<idx)
	body := append(inner.Stmts,
		ast.NewLet(counter, ast.NewBinaryOp(ast.Add, ast.NewVar(counter), ast.NewNum(1))))

	cond := ast.NewBinaryOp(ast.Lt, ast.NewVar(counter), ast.NewNum(bound))
	return ast.NewSequence(
		ast.NewLet(counter, ast.NewNum(0)),
		ast.NewWhile(cond, ast.NewSequence(body...)),
	)
}

func (g *Generator) body(nest int, locked uint32) *ast.Sequence {
	n := 1 + g.rng.IntN(3)
	stmts := make([]ast.Stmt, n)
	for i := range stmts {
		stmts[i] = g.stmt(nest, locked)
	}
	return ast.NewSequence(stmts...)
}

func (g *Generator) cond() *ast.BinaryOp {
	ops := [...]ast.Op{ast.Lt, ast.Eq, ast.Gt}
	return ast.NewBinaryOp(ops[g.rng.IntN(3)], g.expr(2), g.expr(2))
}

// expr generates an arithmetic tree. Division always takes a nonzero
// constant divisor; anything else could trap at runtime.
func (g *Generator) expr(depth int) ast.Expr {
	if depth == 0 || g.rng.IntN(3) == 0 {
		if g.rng.IntN(2) == 0 {
			return ast.NewNum(g.smallInt())
		}
		return ast.NewVar(g.cfg.Vars[g.rng.IntN(len(g.cfg.Vars))])
	}
	ops := [...]ast.Op{ast.Add, ast.Sub, ast.Mul, ast.Div}
	op := ops[g.rng.IntN(4)]
	if op == ast.Div {
		return ast.NewBinaryOp(op, g.expr(depth-1), ast.NewNum(g.nonzeroInt()))
	}
	return ast.NewBinaryOp(op, g.expr(depth-1), g.expr(depth-1))
}

func (g *Generator) assignable(locked uint32) byte {
	for {
		idx := g.rng.IntN(len(g.cfg.Vars))
		if locked&(1<<idx) == 0 {
			return g.cfg.Vars[idx]
		}
	}
}

func (g *Generator) smallInt() int64 {
	return int64(g.rng.IntN(201) - 100)
}

func (g *Generator) nonzeroInt() int64 {
	v := int64(g.rng.IntN(16) - 8)
	if v == 0 {
		return 3
	}
	return v
}

// Mutate returns a structurally perturbed deep copy of prog. Mutations
// preserve the generator's invariants (loops stay bounded, divisors
// stay nonzero constants), so a mutant is as runnable as its parent.
// Weighted selection: 40% perturb a constant, 30% flip an additive op,
// 30% swap two adjacent statements.
func (g *Generator) Mutate(prog *ast.Sequence) *ast.Sequence {
	out := prog.Clone().(*ast.Sequence)
	r := g.rng.IntN(100)
	switch {
	case r < 40:
		g.perturbConstant(out)
	case r < 70:
		g.flipAdditiveOp(out)
	default:
		g.swapAdjacent(out)
	}
	return out
}

// perturbConstant nudges one Num leaf inside a Print expression.
// Divisor positions are skipped so a nudge can never introduce a
// division by zero, and constants outside Prints are left alone: a
// nudged loop-counter increment could stop a loop from terminating.
func (g *Generator) perturbConstant(prog *ast.Sequence) {
	divisors := make(map[*ast.Num]bool)
	walkPrintExprs(prog, func(e ast.Expr) {
		if b, ok := e.(*ast.BinaryOp); ok && b.Op == ast.Div {
			if n, ok := b.Right.(*ast.Num); ok {
				divisors[n] = true
			}
		}
	})
	var nums []*ast.Num
	walkPrintExprs(prog, func(e ast.Expr) {
		if n, ok := e.(*ast.Num); ok && !divisors[n] {
			nums = append(nums, n)
		}
	})
	if len(nums) == 0 {
		return
	}
	nums[g.rng.IntN(len(nums))].Value += int64(g.rng.IntN(7) - 3)
}

// flipAdditiveOp flips one +/- inside a Print expression. Only Print
// expressions are touched: a flip on a Let could turn a loop counter's
// increment into a decrement and the loop would never finish.
func (g *Generator) flipAdditiveOp(prog *ast.Sequence) {
	var adds []*ast.BinaryOp
	walkPrintExprs(prog, func(e ast.Expr) {
		if b, ok := e.(*ast.BinaryOp); ok && (b.Op == ast.Add || b.Op == ast.Sub) {
			adds = append(adds, b)
		}
	})
	if len(adds) == 0 {
		return
	}
	b := adds[g.rng.IntN(len(adds))]
	if b.Op == ast.Add {
		b.Op = ast.Sub
	} else {
		b.Op = ast.Add
	}
}

func (g *Generator) swapAdjacent(prog *ast.Sequence) {
	var seqs []*ast.Sequence
	var walk func(s ast.Stmt)
	walk = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.Sequence:
			if len(n.Stmts) >= 2 {
				seqs = append(seqs, n)
			}
			for _, inner := range n.Stmts {
				walk(inner)
			}
		case *ast.If:
			walk(n.IfBranch)
			if n.ElseBranch != nil {
				walk(n.ElseBranch)
			}
		case *ast.While:
			walk(n.Body)
		}
	}
	walk(prog)
	if len(seqs) == 0 {
		return
	}
	seq := seqs[g.rng.IntN(len(seqs))]
	i := g.rng.IntN(len(seq.Stmts) - 1)
	seq.Stmts[i], seq.Stmts[i+1] = seq.Stmts[i+1], seq.Stmts[i]
}

// walkPrintExprs visits every expression node reachable from a Print.
func walkPrintExprs(s ast.Stmt, visit func(ast.Expr)) {
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		visit(e)
		if b, ok := e.(*ast.BinaryOp); ok {
			walkExpr(b.Left)
			walkExpr(b.Right)
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
		case *ast.If:
			walkStmt(n.IfBranch)
			if n.ElseBranch != nil {
				walkStmt(n.ElseBranch)
			}
		case *ast.While:
			walkStmt(n.Body)
		}
	}
	walkStmt(s)
}

// walkExprs visits every expression node in the program, including the
// subtree roots a visitor needs to classify divisor positions.
func walkExprs(s ast.Stmt, visit func(ast.Expr)) {
	var walkExpr func(e ast.Expr)
	walkExpr = func(e ast.Expr) {
		visit(e)
		if b, ok := e.(*ast.BinaryOp); ok {
			walkExpr(b.Left)
			walkExpr(b.Right)
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
}
