// Package ast defines the TeenyBASIC abstract syntax tree: the tagged
// node set described by the compiler's data model, plus the
// constructor/clone/free collaborator functions the optimizer and code
// generator are built against.
package ast

import "fmt"

// Op identifies a BinaryOp's operator. The same node shape is used for
// both arithmetic and comparator operators; which set is legal in a
// given position is a structural invariant enforced by the parser, not
// the type system.
type Op byte

const (
	Add Op = '+'
	Sub Op = '-'
	Mul Op = '*'
	Div Op = '/'
	Lt  Op = '<'
	Eq  Op = '='
	Gt  Op = '>'
)

// IsArithmetic reports whether op is legal inside an expression tree.
func (op Op) IsArithmetic() bool {
	switch op {
	case Add, Sub, Mul, Div:
		return true
	}
	return false
}

// IsComparator reports whether op is legal as an IF/WHILE condition.
func (op Op) IsComparator() bool {
	switch op {
	case Lt, Eq, Gt:
		return true
	}
	return false
}

func (op Op) String() string { return string(rune(op)) }

// Expr is an arithmetic expression node: Num, Var, or a BinaryOp with an
// arithmetic operator. Comparator BinaryOp nodes appear only as an If or
// While condition and are typed separately (see Cond).
type Expr interface {
	exprNode()
	Clone() Expr
	fmt.Stringer
}

// Stmt is a statement node: Sequence, Print, Let, If, or While.
type Stmt interface {
	stmtNode()
	Clone() Stmt
}

// Num is an integer literal.
type Num struct {
	Value int64
}

func NewNum(v int64) *Num { return &Num{Value: v} }

func (*Num) exprNode()        {}
func (n *Num) Clone() Expr    { return NewNum(n.Value) }
func (n *Num) String() string { return fmt.Sprintf("%d", n.Value) }

// Var references one of the 26 program variables A-Z.
type Var struct {
	Name byte // 'A'..'Z'
}

func NewVar(name byte) *Var { return &Var{Name: name} }

func (*Var) exprNode()        {}
func (v *Var) Clone() Expr    { return NewVar(v.Name) }
func (v *Var) String() string { return string(v.Name) }

// BinaryOp is either an arithmetic expression node (Op.IsArithmetic())
// or a comparator condition node (Op.IsComparator()); never both sets.
type BinaryOp struct {
	Op    Op
	Left  Expr
	Right Expr
}

func NewBinaryOp(op Op, left, right Expr) *BinaryOp {
	return &BinaryOp{Op: op, Left: left, Right: right}
}

func (*BinaryOp) exprNode() {}

func (b *BinaryOp) Clone() Expr {
	return NewBinaryOp(b.Op, b.Left.Clone(), b.Right.Clone())
}

func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// CloneCond deep-copies a condition BinaryOp, preserving its comparator
// identity (Clone alone returns the Expr interface).
func (b *BinaryOp) CloneCond() *BinaryOp {
	return NewBinaryOp(b.Op, b.Left.Clone(), b.Right.Clone())
}

// Sequence is an ordered list of statements; the top-level program is a
// Sequence, as is every IF/WHILE body after parsing.
type Sequence struct {
	Stmts []Stmt
}

func NewSequence(stmts ...Stmt) *Sequence { return &Sequence{Stmts: stmts} }

func (*Sequence) stmtNode() {}

func (s *Sequence) Clone() Stmt {
	out := make([]Stmt, len(s.Stmts))
	for i, st := range s.Stmts {
		out[i] = st.Clone()
	}
	return &Sequence{Stmts: out}
}

// Print emits the value of Expr followed by a newline.
type Print struct {
	Expr Expr
}

func NewPrint(e Expr) *Print { return &Print{Expr: e} }

func (*Print) stmtNode()   {}
func (p *Print) Clone() Stmt { return NewPrint(p.Expr.Clone()) }

// Let assigns Value to variable Var.
type Let struct {
	Var   byte
	Value Expr
}

func NewLet(v byte, value Expr) *Let { return &Let{Var: v, Value: value} }

func (*Let) stmtNode()   {}
func (l *Let) Clone() Stmt { return NewLet(l.Var, l.Value.Clone()) }

// If executes IfBranch when Cond holds, else ElseBranch (which may be
// nil for a bodyless else).
type If struct {
	Cond       *BinaryOp
	IfBranch   Stmt
	ElseBranch Stmt // nil if no else
}

func NewIf(cond *BinaryOp, ifBranch, elseBranch Stmt) *If {
	return &If{Cond: cond, IfBranch: ifBranch, ElseBranch: elseBranch}
}

func (*If) stmtNode() {}

func (f *If) Clone() Stmt {
	var elseClone Stmt
	if f.ElseBranch != nil {
		elseClone = f.ElseBranch.Clone()
	}
	return NewIf(f.Cond.CloneCond(), f.IfBranch.Clone(), elseClone)
}

// While executes Body repeatedly while Cond holds.
type While struct {
	Cond *BinaryOp
	Body Stmt
}

func NewWhile(cond *BinaryOp, body Stmt) *While {
	return &While{Cond: cond, Body: body}
}

func (*While) stmtNode() {}

func (w *While) Clone() Stmt {
	return NewWhile(w.Cond.CloneCond(), w.Body.Clone())
}

// FreeAST is the destructor collaborator named in the compiler's
// external interfaces. Go is garbage collected, so there is no manual
// deallocation to perform; FreeAST is a no-op kept so the collaborator
// exists under its name. The rewrite passes do not call it: a replaced
// subtree is simply dropped.
func FreeAST(Stmt) {}

// FreeExpr is the expression-tree counterpart of FreeAST.
func FreeExpr(Expr) {}

// CopyAST is the copy_ast collaborator: a full deep clone of a statement
// tree.
func CopyAST(s Stmt) Stmt { return s.Clone() }

// CopyExpr is the copy_ast collaborator for a standalone expression
// tree.
func CopyExpr(e Expr) Expr { return e.Clone() }
