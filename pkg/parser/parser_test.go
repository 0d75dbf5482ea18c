package parser

import (
	"testing"

	"github.com/oisee/teenybasicc/pkg/ast"
)

func TestParseStatements(t *testing.T) {
	src := `
LET A = 5
PRINT A + 2
IF A < 3 THEN
  PRINT 1
ELSE
  PRINT 2
END IF
WHILE A > 0
  LET A = A - 1
END WHILE
`
	prog, err := Parse("test.bas", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(prog.Stmts) != 4 {
		t.Fatalf("want 4 statements, got %d", len(prog.Stmts))
	}

	let, ok := prog.Stmts[0].(*ast.Let)
	if !ok || let.Var != 'A' || let.Value.String() != "5" {
		t.Fatalf("statement 0: want LET A = 5, got %v", prog.Stmts[0])
	}

	pr, ok := prog.Stmts[1].(*ast.Print)
	if !ok || pr.Expr.String() != "(A + 2)" {
		t.Fatalf("statement 1: want PRINT (A + 2), got %v", prog.Stmts[1])
	}

	ifStmt, ok := prog.Stmts[2].(*ast.If)
	if !ok {
		t.Fatalf("statement 2: want If, got %T", prog.Stmts[2])
	}
	if ifStmt.Cond.Op != ast.Lt {
		t.Fatalf("if condition op: want <, got %s", ifStmt.Cond.Op)
	}
	if ifStmt.ElseBranch == nil {
		t.Fatal("else branch lost")
	}

	w, ok := prog.Stmts[3].(*ast.While)
	if !ok {
		t.Fatalf("statement 3: want While, got %T", prog.Stmts[3])
	}
	body := w.Body.(*ast.Sequence)
	if len(body.Stmts) != 1 {
		t.Fatalf("while body: want 1 statement, got %d", len(body.Stmts))
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"PRINT 1 + 2 * 3", "(1 + (2 * 3))"},
		{"PRINT (1 + 2) * 3", "((1 + 2) * 3)"},
		{"PRINT 10 - 4 - 3", "((10 - 4) - 3)"},
		{"PRINT 100 / 2 / 5", "((100 / 2) / 5)"},
		{"PRINT -X", "(0 - X)"},
		{"PRINT -X * 2", "((0 - X) * 2)"},
		{"PRINT A + -3", "(A + (0 - 3))"},
	}
	for _, tt := range tests {
		prog, err := Parse("test.bas", tt.src)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.src, err)
		}
		pr := prog.Stmts[0].(*ast.Print)
		if pr.Expr.String() != tt.want {
			t.Fatalf("Parse(%q) = %s, want %s", tt.src, pr.Expr, tt.want)
		}
	}
}

func TestParseIfWithoutElse(t *testing.T) {
	prog, err := Parse("test.bas", "IF A = 0 THEN\nPRINT 1\nEND IF")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ifStmt := prog.Stmts[0].(*ast.If)
	if ifStmt.ElseBranch != nil {
		t.Fatalf("want nil else branch, got %v", ifStmt.ElseBranch)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"LET 5 = A",
		"PRINT",
		"IF A THEN PRINT 1 END IF",
		"WHILE A < 1",
		"LET A = (1 + 2",
	}
	for _, src := range bad {
		if _, err := Parse("test.bas", src); err == nil {
			t.Fatalf("Parse(%q): want error, got none", src)
		}
	}
}
