package compile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/oisee/teenybasicc/pkg/ast"
	"github.com/oisee/teenybasicc/pkg/fold"
	"github.com/oisee/teenybasicc/pkg/fuzz"
	"github.com/oisee/teenybasicc/pkg/interp"
	"github.com/oisee/teenybasicc/pkg/parser"
	"github.com/oisee/teenybasicc/pkg/taint"
)

func mustParse(t *testing.T, src string) *ast.Sequence {
	t.Helper()
	prog, err := parser.Parse("test.bas", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

func TestCompileScenarios(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains []string
		absent   []string
	}{
		{
			name: "redundant let removed",
			src:  "LET A = 5\nLET A = 5\nPRINT A",
			// The whole program constant-folds to printing 5.
			contains: []string{"movq $5, %rdi", "call print_int"},
			absent:   []string{"%rbx"},
		},
		{
			name:     "identities fold to a variable",
			src:      "LET A = B\nPRINT 1 * (A + 0) - (B - B)",
			contains: []string{"call print_int"},
			absent:   []string{"imulq", "shlq", "subq"},
		},
		{
			name:     "constant if pruned",
			src:      "IF 1 = 1 THEN\nPRINT 7\nELSE\nPRINT 9\nEND IF",
			contains: []string{"movq $7, %rdi"},
			absent:   []string{"$9", "cmpq", "IF_"},
		},
		{
			name:     "counting loop kept and incremented in place",
			src:      "LET X = 0\nWHILE X < 3\nLET X = X + 1\nPRINT X\nEND WHILE",
			contains: []string{"WHILE_1_START:", "addq $1, %rbx", "jmp WHILE_1_START"},
		},
		{
			name:     "million-iteration loop body is one addq",
			src:      "LET A = 0\nWHILE A < 1000000\nLET A = A + 1\nEND WHILE\nPRINT A",
			contains: []string{"addq $1, %rbx", "cmpq $1000000, %rbx"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asm, rep, err := Compile(mustParse(t, tt.src), Options{Optimize: true, Source: tt.name})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if rep == nil {
				t.Fatal("nil report")
			}
			for _, want := range tt.contains {
				if !strings.Contains(asm, want) {
					t.Fatalf("assembly missing %q:\n%s", want, asm)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(asm, bad) {
					t.Fatalf("assembly must not contain %q:\n%s", bad, asm)
				}
			}
		})
	}
}

func TestCompileReportCounts(t *testing.T) {
	src := "LET A = 5\nLET A = 5\nIF 1 = 1 THEN\nPRINT A + 0\nEND IF"
	_, rep, err := Compile(mustParse(t, src), Options{Optimize: true, Source: "counts.bas"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if rep.Source != "counts.bas" {
		t.Fatalf("report source: %q", rep.Source)
	}
	if rep.NodesFolded != 1 {
		t.Fatalf("want 1 node folded (A + 0), got %d", rep.NodesFolded)
	}
	if rep.LetsElided != 1 {
		t.Fatalf("want 1 let elided, got %d", rep.LetsElided)
	}
	if rep.BranchesPruned != 1 {
		t.Fatalf("want 1 branch pruned, got %d", rep.BranchesPruned)
	}
	if rep.AssemblyLines == 0 {
		t.Fatal("assembly line count not recorded")
	}
}

func TestCompileNoOptimizeKeepsStructure(t *testing.T) {
	src := "IF 1 = 1 THEN\nPRINT 7\nELSE\nPRINT 9\nEND IF"
	asm, rep, err := Compile(mustParse(t, src), Options{Optimize: false})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if rep.BranchesPruned != 0 || rep.NodesFolded != 0 {
		t.Fatalf("optimizer ran despite Optimize=false: %+v", rep)
	}
	for _, want := range []string{"cmpq", "IF_1_END", "$9"} {
		if !strings.Contains(asm, want) {
			t.Fatalf("unoptimized assembly missing %q:\n%s", want, asm)
		}
	}
}

// TestOptimizerPreservesSemantics is the randomized semantic
// preservation property: for each generated program, the optimized
// tree must interpret to byte-identical output.
func TestOptimizerPreservesSemantics(t *testing.T) {
	for seed := uint64(1); seed <= 60; seed++ {
		g := fuzz.NewGenerator(seed, fuzz.DefaultConfig())
		prog := g.Program()

		var want bytes.Buffer
		interp.New(&want).Run(prog.Clone().(*ast.Sequence))

		optimized := taint.Optimize(fold.FoldProgram(prog.Clone().(*ast.Sequence)))
		var got bytes.Buffer
		interp.New(&got).Run(optimized)

		if want.String() != got.String() {
			t.Fatalf("seed %d: optimized output diverges\nprogram:\n%s\noptimized:\n%s\nwant %q\ngot  %q",
				seed, prog, optimized, want.String(), got.String())
		}
	}
}

// TestOptimizerIdempotentOnRandomPrograms re-runs the full optimizer
// over its own output; the second run must be a no-op.
func TestOptimizerIdempotentOnRandomPrograms(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		g := fuzz.NewGenerator(seed, fuzz.DefaultConfig())
		prog := g.Program()

		once := taint.Optimize(fold.FoldProgram(prog))
		twice := taint.Optimize(fold.FoldProgram(once.Clone().(*ast.Sequence)))
		if once.String() != twice.String() {
			t.Fatalf("seed %d: optimizer not idempotent\nonce:\n%s\ntwice:\n%s", seed, once, twice)
		}
	}
}

// TestCompileRandomPrograms runs the whole pipeline over generated
// programs and their mutants: every one must emit without error and
// with a balanced frame.
func TestCompileRandomPrograms(t *testing.T) {
	for seed := uint64(1); seed <= 30; seed++ {
		g := fuzz.NewGenerator(seed, fuzz.DefaultConfig())
		prog := g.Program()
		for _, p := range []*ast.Sequence{prog.Clone().(*ast.Sequence), g.Mutate(prog)} {
			asm, _, err := Compile(p, Options{Optimize: true})
			if err != nil {
				t.Fatalf("seed %d: Compile: %v", seed, err)
			}
			if push, pop := strings.Count(asm, "pushq"), strings.Count(asm, "popq"); push != pop {
				t.Fatalf("seed %d: unbalanced stack traffic (%d pushq, %d popq):\n%s", seed, push, pop, asm)
			}
			if !strings.HasSuffix(strings.TrimRight(asm, "\n"), "ret") {
				t.Fatalf("seed %d: missing ret:\n%s", seed, asm)
			}
		}
	}
}
