package ast

import (
	"fmt"
	"strings"
)

// String renders a Sequence as an indented program listing, used by the
// CLI's --print-ast diagnostic.
func (s *Sequence) String() string {
	var b strings.Builder
	for i, st := range s.Stmts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(stmtString(st))
	}
	return b.String()
}

func (p *Print) String() string {
	return fmt.Sprintf("PRINT %s", p.Expr)
}

func (l *Let) String() string {
	return fmt.Sprintf("LET %s = %s", string(l.Var), l.Value)
}

func (f *If) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "IF %s THEN\n", f.Cond)
	b.WriteString(indent(stmtString(f.IfBranch)))
	if f.ElseBranch != nil {
		b.WriteString("\nELSE\n")
		b.WriteString(indent(stmtString(f.ElseBranch)))
	}
	b.WriteString("\nEND IF")
	return b.String()
}

func (w *While) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "WHILE %s\n", w.Cond)
	b.WriteString(indent(stmtString(w.Body)))
	b.WriteString("\nEND WHILE")
	return b.String()
}

func stmtString(s Stmt) string {
	if s == nil {
		return ""
	}
	return fmt.Sprint(s)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
