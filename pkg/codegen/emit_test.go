package codegen

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/oisee/teenybasicc/pkg/alloc"
	"github.com/oisee/teenybasicc/pkg/ast"
)

func num(v int64) ast.Expr { return ast.NewNum(v) }

func varE(n byte) ast.Expr { return ast.NewVar(n) }

func bin(op ast.Op, l, r ast.Expr) ast.Expr { return ast.NewBinaryOp(op, l, r) }

// gen runs the allocator and the emitter over prog and returns the
// complete assembly text.
func gen(t *testing.T, prog *ast.Sequence) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Generate(prog, alloc.Allocate(prog), &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return buf.String()
}

func mustContain(t *testing.T, asm, want string) {
	t.Helper()
	if !strings.Contains(asm, want) {
		t.Fatalf("assembly missing %q:\n%s", want, asm)
	}
}

func mustNotContain(t *testing.T, asm, bad string) {
	t.Helper()
	if strings.Contains(asm, bad) {
		t.Fatalf("assembly must not contain %q:\n%s", bad, asm)
	}
}

func TestFunctionSkeleton(t *testing.T) {
	asm := gen(t, ast.NewSequence(ast.NewPrint(num(42))))

	mustContain(t, asm, ".text")
	mustContain(t, asm, ".global basic_main")
	mustContain(t, asm, "basic_main:")
	mustContain(t, asm, "movq $42, %rdi")
	mustContain(t, asm, "call print_int")
	if !strings.HasSuffix(strings.TrimRight(asm, "\n"), "ret") {
		t.Fatalf("assembly must end with ret:\n%s", asm)
	}
}

func TestInPlaceIncrement(t *testing.T) {
	// LET A = A + 1 on a register variable must compile to a single
	// addq on A's register, no temporaries.
	prog := ast.NewSequence(
		ast.NewLet('A', num(0)),
		ast.NewLet('A', bin(ast.Add, varE('A'), num(1))),
		ast.NewPrint(varE('A')),
	)
	asm := gen(t, prog)

	mustContain(t, asm, "addq $1, %rbx")
	mustNotContain(t, asm, "%r11")
}

func TestChainedDivisionStaysInRAX(t *testing.T) {
	// LET A = A / 2 / 5: one cqo+idivq per level, and the quotient
	// moves out of RAX exactly once, at the end of the chain.
	prog := ast.NewSequence(
		ast.NewLet('A', num(100)),
		ast.NewLet('A', bin(ast.Div, bin(ast.Div, varE('A'), num(2)), num(5))),
		ast.NewPrint(varE('A')),
	)
	asm := gen(t, prog)

	if n := strings.Count(asm, "cqo"); n != 2 {
		t.Fatalf("want 2 cqo, got %d:\n%s", n, asm)
	}
	if n := strings.Count(asm, "idivq"); n != 2 {
		t.Fatalf("want 2 idivq, got %d:\n%s", n, asm)
	}
	if n := strings.Count(asm, "movq %rax,"); n != 1 {
		t.Fatalf("want exactly 1 transfer out of rax, got %d:\n%s", n, asm)
	}
}

func TestMulSpecializations(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expr
		want string
	}{
		{"mul by -1 is neg", bin(ast.Mul, varE('A'), num(-1)), "negq %rdi"},
		{"mul by 8 is shl", bin(ast.Mul, varE('A'), num(8)), "shlq $3, %rdi"},
		{"mul by 10 is 3-operand imul", bin(ast.Mul, varE('A'), num(10)), "imulq $10,"},
		{"leading -1 is swapped into neg", bin(ast.Mul, num(-1), varE('A')), "negq %rdi"},
		{"leading pow2 is swapped into shl", bin(ast.Mul, num(16), varE('A')), "shlq $4, %rdi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := ast.NewSequence(
				ast.NewLet('A', num(3)),
				ast.NewPrint(tt.expr),
			)
			mustContain(t, gen(t, prog), tt.want)
		})
	}
}

func TestHugeImmediateRoutedThroughRCX(t *testing.T) {
	prog := ast.NewSequence(
		ast.NewLet('A', num(1)),
		ast.NewPrint(bin(ast.Add, num(1<<33), varE('A'))),
	)
	asm := gen(t, prog)
	mustContain(t, asm, "movq $8589934592, %rcx")
}

func TestMemMemRoutedThroughRCX(t *testing.T) {
	// Force two variables onto the stack (more than 9 live variables)
	// and assign one to the other: no instruction may take two memory
	// operands.
	var stmts []ast.Stmt
	for i := 0; i < 11; i++ {
		name := byte('A' + i)
		// Reference counts descend so J and K land on the stack.
		for k := 0; k < 12-i; k++ {
			stmts = append(stmts, ast.NewPrint(varE(name)))
		}
	}
	stmts = append(stmts, ast.NewLet('K', varE('J')))
	asm := gen(t, ast.NewSequence(stmts...))

	memMem := regexp.MustCompile(`(movq|addq|subq|cmpq|imulq) \d*\(%rsp\), \d*\(%rsp\)`)
	if m := memMem.FindString(asm); m != "" {
		t.Fatalf("memory-to-memory operand pair emitted: %s", m)
	}
	mustContain(t, asm, "(%rsp)")
}

func TestBranchEncoding(t *testing.T) {
	prog := ast.NewSequence(
		ast.NewLet('A', num(1)),
		ast.NewIf(ast.NewBinaryOp(ast.Lt, varE('A'), num(5)),
			ast.NewSequence(ast.NewPrint(num(1))),
			ast.NewSequence(ast.NewPrint(num(2)))),
		ast.NewWhile(ast.NewBinaryOp(ast.Gt, varE('A'), num(0)),
			ast.NewSequence(ast.NewLet('A', bin(ast.Sub, varE('A'), num(1))))),
		ast.NewIf(ast.NewBinaryOp(ast.Eq, varE('A'), num(0)),
			ast.NewSequence(ast.NewPrint(num(3))),
			nil),
	)
	asm := gen(t, prog)

	// A < 5 canonicalizes to 5 > A (the constant moves off cmpq's
	// destination side), so the exit branch is jge; A > 0 likewise
	// exits via jle.
	mustContain(t, asm, "cmpq $5, %rbx")
	mustContain(t, asm, "jge IF_1_ELSE_END")
	mustContain(t, asm, "jmp IF_1_END")
	mustContain(t, asm, "IF_1_ELSE_END:")
	mustContain(t, asm, "IF_1_END:")
	mustContain(t, asm, "WHILE_1_START:")
	mustContain(t, asm, "jle WHILE_1_END")
	mustContain(t, asm, "jmp WHILE_1_START")
	mustContain(t, asm, "jne IF_2_END")
}

func TestConditionCanonicalization(t *testing.T) {
	// 5 < A already has its constant in cmpq's source position; no
	// swap happens and the exit branch is the straight negation jle.
	prog := ast.NewSequence(
		ast.NewLet('A', num(1)),
		ast.NewIf(ast.NewBinaryOp(ast.Lt, num(5), varE('A')),
			ast.NewSequence(ast.NewPrint(num(1))), nil),
	)
	asm := gen(t, prog)

	mustContain(t, asm, "cmpq $5, %rbx")
	// < is kept unflipped and negated to jle for the exit branch.
	mustContain(t, asm, "jle IF_1_END")
}

func TestInfiniteWhileIsBareJump(t *testing.T) {
	prog := ast.NewSequence(
		ast.NewWhile(ast.NewBinaryOp(ast.Eq, num(0), num(0)),
			ast.NewSequence(ast.NewPrint(num(1)))),
	)
	asm := gen(t, prog)

	mustNotContain(t, asm, "cmpq")
	mustContain(t, asm, "jmp WHILE_1_START")
}

func TestSelfReferentialLetUsesCloneRegister(t *testing.T) {
	// A appears on both sides with A also on the right of the
	// right-hand subtree, so neither the in-place nor the left-spine
	// path applies; the old value must be staged in R11.
	prog := ast.NewSequence(
		ast.NewLet('A', num(3)),
		ast.NewLet('B', num(4)),
		ast.NewLet('A', bin(ast.Sub, bin(ast.Mul, varE('B'), num(2)), varE('A'))),
		ast.NewPrint(varE('A')),
	)
	asm := gen(t, prog)
	mustContain(t, asm, "%r11")
}

func TestCallerSavedSpilledAroundPrint(t *testing.T) {
	// Ten live variables put one in R8; its value must survive the
	// print_int call.
	var stmts []ast.Stmt
	for i := 0; i < 10; i++ {
		name := byte('A' + i)
		for k := 0; k < 10-i; k++ {
			stmts = append(stmts, ast.NewLet(name, num(int64(i))))
		}
	}
	stmts = append(stmts, ast.NewPrint(varE('G')), ast.NewPrint(varE('G')))
	asm := gen(t, ast.NewSequence(stmts...))

	mustContain(t, asm, "pushq %r8")
	mustContain(t, asm, "popq %r8")
}

// TestFrameBalance checks the net-zero RSP property: every pushq has a
// matching popq, and the prologue's subq matches the epilogue's addq.
func TestFrameBalance(t *testing.T) {
	var stmts []ast.Stmt
	for i := 0; i < 12; i++ {
		name := byte('A' + i)
		for k := 0; k < 13-i; k++ {
			stmts = append(stmts, ast.NewLet(name, num(int64(k))))
		}
		stmts = append(stmts, ast.NewPrint(varE(name)))
	}
	asm := gen(t, ast.NewSequence(stmts...))

	if push, pop := strings.Count(asm, "pushq"), strings.Count(asm, "popq"); push != pop {
		t.Fatalf("unbalanced pushes: %d pushq vs %d popq:\n%s", push, pop, asm)
	}
	subs := regexp.MustCompile(`subq \$(\d+), %rsp`).FindAllStringSubmatch(asm, -1)
	adds := regexp.MustCompile(`addq \$(\d+), %rsp`).FindAllStringSubmatch(asm, -1)
	if len(subs) != 1 || len(adds) != 1 {
		t.Fatalf("want exactly one frame subq and addq, got %d/%d:\n%s", len(subs), len(adds), asm)
	}
	if subs[0][1] != adds[0][1] {
		t.Fatalf("frame size mismatch: subq %s vs addq %s", subs[0][1], adds[0][1])
	}
	// Three of the twelve variables are stack-backed.
	if want := strconv.Itoa(3 * 8); subs[0][1] != want {
		t.Fatalf("frame size %s, want %s", subs[0][1], want)
	}
}

func TestCalleeSavedSavedAndRestoredInOrder(t *testing.T) {
	prog := ast.NewSequence(
		ast.NewLet('A', num(1)),
		ast.NewLet('B', num(2)),
		ast.NewPrint(bin(ast.Add, varE('A'), varE('B'))),
	)
	asm := gen(t, prog)
	lines := strings.Split(asm, "\n")

	var pushes, pops []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "pushq ") {
			pushes = append(pushes, strings.TrimPrefix(l, "pushq "))
		}
		if strings.HasPrefix(l, "popq ") {
			pops = append(pops, strings.TrimPrefix(l, "popq "))
		}
	}
	if len(pushes) < 2 {
		t.Fatalf("want at least rbx and rbp saved, got %v", pushes)
	}
	for i := range pushes {
		if pops[len(pops)-1-i] != pushes[i] {
			t.Fatalf("restore order is not the reverse of save order: %v vs %v", pushes, pops)
		}
	}
}

func TestDeepExpressionSpillsToMachineStack(t *testing.T) {
	// A comb-shaped tree deep enough to exhaust the temporary pool:
	// the emitter must fall back to push/pop spills and still emit
	// balanced stack traffic.
	expr := varE('A')
	for i := 0; i < 14; i++ {
		expr = bin(ast.Add, bin(ast.Mul, varE('A'), varE('B')), expr)
	}
	prog := ast.NewSequence(
		ast.NewLet('A', num(2)),
		ast.NewLet('B', num(3)),
		ast.NewPrint(expr),
	)
	asm := gen(t, prog)

	if push, pop := strings.Count(asm, "pushq"), strings.Count(asm, "popq"); push != pop {
		t.Fatalf("unbalanced spill traffic: %d pushq vs %d popq:\n%s", push, pop, asm)
	}
}

func TestUnusedLetSkipped(t *testing.T) {
	// A Let whose target the allocator left unallocated (its value is
	// observed nowhere) emits no code at all.
	m := alloc.Allocate(ast.NewSequence(ast.NewPrint(num(1))))
	prog := ast.NewSequence(
		ast.NewLet('Z', num(5)),
		ast.NewPrint(num(1)),
	)
	var buf bytes.Buffer
	if err := Generate(prog, m, &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	mustNotContain(t, buf.String(), "$5")
	mustContain(t, buf.String(), "movq $1, %rdi")
}
