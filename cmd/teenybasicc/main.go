package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oisee/teenybasicc/pkg/ast"
	"github.com/oisee/teenybasicc/pkg/compile"
	"github.com/oisee/teenybasicc/pkg/parser"
	"github.com/oisee/teenybasicc/pkg/report"
	"github.com/oisee/teenybasicc/pkg/verify"
)

// Exit codes: 1 usage, 2 parse error, 3 codegen error.
const (
	exitUsage   = 1
	exitParse   = 2
	exitCodegen = 3
)

// exitError carries the process exit code alongside the error cobra
// prints; main unwraps it after Execute.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	var (
		printAST   bool
		noOptimize bool
		doVerify   bool
		stats      string
	)

	rootCmd := &cobra.Command{
		Use:           "teenybasicc [program.bas]",
		Short:         "TeenyBASIC optimizing compiler targeting x86-64 System V",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], printAST, !noOptimize, doVerify, stats)
		},
	}
	rootCmd.Flags().BoolVar(&printAST, "print-ast", false, "Print the optimized AST to stderr")
	rootCmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "Skip the folder and the statement optimizer")
	rootCmd.Flags().BoolVar(&doVerify, "verify", false, "Assemble, run, and diff against the reference interpreter (needs a host C compiler)")
	rootCmd.Flags().StringVar(&stats, "stats", "", "Print an optimization report to stderr: text or json")

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %s\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitUsage)
	}
}

func run(path string, printAST, optimize, doVerify bool, stats string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	prog, err := parser.Parse(path, string(src))
	if err != nil {
		parser.ReportError(string(src), err)
		return &exitError{code: exitParse, err: fmt.Errorf("parse %s: %w", path, err)}
	}

	// The verifier needs the program as parsed; the compile passes
	// mutate the tree in place.
	reference := prog
	if doVerify {
		reference = prog.Clone().(*ast.Sequence)
	}

	asm, rep, err := compile.Compile(prog, compile.Options{Optimize: optimize, Source: path})
	if err != nil {
		return &exitError{code: exitCodegen, err: err}
	}

	if printAST {
		fmt.Fprintln(os.Stderr, prog)
	}

	if doVerify {
		if err := verify.Check(asm, reference); err != nil {
			if errors.Is(err, verify.ErrUnavailable) {
				color.New(color.FgYellow).Fprintln(os.Stderr, "warning: --verify skipped: no host C compiler")
			} else {
				return &exitError{code: exitCodegen, err: err}
			}
		}
	}

	switch stats {
	case "":
	case "json":
		if err := report.WriteJSON(os.Stderr, rep); err != nil {
			return &exitError{code: exitUsage, err: err}
		}
	case "text":
		printStats(rep)
	default:
		return &exitError{code: exitUsage, err: fmt.Errorf("unknown --stats format %q: use text or json", stats)}
	}

	fmt.Print(asm)
	return nil
}

func printStats(rep *report.Report) {
	fmt.Fprintf(os.Stderr, "%s:\n", rep.Source)
	fmt.Fprintf(os.Stderr, "  expression nodes folded:  %d\n", rep.NodesFolded)
	fmt.Fprintf(os.Stderr, "  redundant LETs elided:    %d\n", rep.LetsElided)
	fmt.Fprintf(os.Stderr, "  branches pruned:          %d\n", rep.BranchesPruned)
	fmt.Fprintf(os.Stderr, "  loops removed:            %d\n", rep.LoopsElided)
	fmt.Fprintf(os.Stderr, "  dead stores removed:      %d\n", rep.DeadStores)
	fmt.Fprintf(os.Stderr, "  variables in registers:   %d\n", rep.RegisterVars)
	fmt.Fprintf(os.Stderr, "  variables on the stack:   %d\n", rep.StackVars)
	fmt.Fprintf(os.Stderr, "  assembly lines:           %d\n", rep.AssemblyLines)
}
