package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"github.com/oisee/teenybasicc/pkg/ast"
)

var basicParser = participle.MustBuild[Program](
	participle.Lexer(TeenyBasicLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse is the "parse(input) -> optional AST" collaborator named in the
// compiler's external interfaces: it turns TeenyBASIC source text into
// the optimizer/emitter's AST, or an error describing where parsing
// failed.
func Parse(name, source string) (*ast.Sequence, error) {
	prog, err := basicParser.ParseString(name, source)
	if err != nil {
		return nil, err
	}
	return convertProgram(prog), nil
}

// ParseFile reads and parses a TeenyBASIC source file.
func ParseFile(path string) (*ast.Sequence, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, string(src))
}

// ReportError prints a caret-style parse error to stderr.
func ReportError(source string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("unexpected parse error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(source, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", max(pos.Column-1, 0)) + "^"

	color.Red("syntax error at line %d, column %d:", pos.Line, pos.Column)
	fmt.Fprintln(os.Stderr, line)
	color.New(color.FgHiRed).Fprintln(os.Stderr, caret)
	fmt.Fprintf(os.Stderr, "-> %s\n", pe.Message())
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
