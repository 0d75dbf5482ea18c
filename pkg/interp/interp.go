// Package interp is the reference interpreter used as the oracle for
// the "Semantic preservation" property: running the code
// emitted from optimize(P) must produce identical output to this
// interpreter run directly on the unoptimized P.
package interp

import (
	"fmt"
	"io"

	"github.com/oisee/teenybasicc/pkg/ast"
)

// Machine holds the 26 program variables, A-Z.
type Machine struct {
	vars [26]int64
	out  io.Writer
}

// New creates a Machine that writes PRINT output to w.
func New(w io.Writer) *Machine {
	return &Machine{out: w}
}

// Run executes a full program.
func (m *Machine) Run(prog *ast.Sequence) {
	m.exec(prog)
}

func (m *Machine) exec(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.Sequence:
		for _, inner := range st.Stmts {
			m.exec(inner)
		}
	case *ast.Print:
		fmt.Fprintf(m.out, "%d\n", m.eval(st.Expr))
	case *ast.Let:
		m.vars[st.Var-'A'] = m.eval(st.Value)
	case *ast.If:
		if m.evalCond(st.Cond) {
			m.exec(st.IfBranch)
		} else if st.ElseBranch != nil {
			m.exec(st.ElseBranch)
		}
	case *ast.While:
		for m.evalCond(st.Cond) {
			m.exec(st.Body)
		}
	case nil:
	default:
		panic(fmt.Sprintf("interp: unhandled statement %T", s))
	}
}

func (m *Machine) eval(e ast.Expr) int64 {
	switch n := e.(type) {
	case *ast.Num:
		return n.Value
	case *ast.Var:
		return m.vars[n.Name-'A']
	case *ast.BinaryOp:
		l, r := m.eval(n.Left), m.eval(n.Right)
		switch n.Op {
		case ast.Add:
			return l + r
		case ast.Sub:
			return l - r
		case ast.Mul:
			return l * r
		case ast.Div:
			return l / r
		default:
			panic(fmt.Sprintf("interp: non-arithmetic op %q in expression position", n.Op))
		}
	default:
		panic(fmt.Sprintf("interp: unhandled expression %T", e))
	}
}

func (m *Machine) evalCond(c *ast.BinaryOp) bool {
	l, r := m.eval(c.Left), m.eval(c.Right)
	switch c.Op {
	case ast.Lt:
		return l < r
	case ast.Eq:
		return l == r
	case ast.Gt:
		return l > r
	default:
		panic(fmt.Sprintf("interp: non-comparator op %q in condition position", c.Op))
	}
}
