// Package verify cross-checks emitted assembly against the reference
// interpreter by actually running it: the assembly is assembled and
// linked against a small print_int runtime with the host C toolchain,
// the binary is executed, and its output is compared line by line.
//
// The host toolchain is optional; callers (and tests) treat
// ErrUnavailable as "skip".
package verify

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/oisee/teenybasicc/pkg/ast"
	"github.com/oisee/teenybasicc/pkg/interp"
)

// ErrUnavailable is returned when no host C compiler is on PATH.
var ErrUnavailable = errors.New("verify: no host C compiler found")

// runtimeStub is the minimal runtime the emitted object links against:
// print_int with the argument in RDI per the System V ABI, and a main
// that just calls basic_main.
const runtimeStub = `#include <stdio.h>

void print_int(long value) { printf("%ld\n", value); }

extern void basic_main(void);

int main(void) {
	basic_main();
	return 0;
}
`

// Run assembles and links asm against the print_int stub, executes the
// resulting binary, and returns its standard output.
func Run(asm string) (string, error) {
	cc, err := exec.LookPath("cc")
	if err != nil {
		return "", ErrUnavailable
	}

	dir, err := os.MkdirTemp("", "basic-verify-")
	if err != nil {
		return "", fmt.Errorf("verify: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	asmPath := filepath.Join(dir, "program.s")
	stubPath := filepath.Join(dir, "runtime.c")
	binPath := filepath.Join(dir, "program")
	if err := os.WriteFile(asmPath, []byte(asm), 0o644); err != nil {
		return "", fmt.Errorf("verify: write assembly: %w", err)
	}
	if err := os.WriteFile(stubPath, []byte(runtimeStub), 0o644); err != nil {
		return "", fmt.Errorf("verify: write runtime stub: %w", err)
	}

	build := exec.Command(cc, "-o", binPath, asmPath, stubPath)
	if out, err := build.CombinedOutput(); err != nil {
		return "", fmt.Errorf("verify: assemble/link: %w\n%s", err, out)
	}

	run := exec.Command(binPath)
	var stdout, stderr bytes.Buffer
	run.Stdout = &stdout
	run.Stderr = &stderr
	start := time.Now()
	if err := run.Run(); err != nil {
		return "", fmt.Errorf("verify: execute after %v: %w\n%s", time.Since(start), err, stderr.String())
	}
	return stdout.String(), nil
}

// Check runs asm and diffs its output against the reference
// interpretation of prog, reporting the first divergent line.
func Check(asm string, prog *ast.Sequence) error {
	got, err := Run(asm)
	if err != nil {
		return err
	}

	var want bytes.Buffer
	interp.New(&want).Run(prog)

	if got == want.String() {
		return nil
	}
	gotLines := strings.Split(got, "\n")
	wantLines := strings.Split(want.String(), "\n")
	for i := range wantLines {
		if i >= len(gotLines) || gotLines[i] != wantLines[i] {
			return fmt.Errorf("verify: output diverges at line %d: got %q, want %q", i+1, line(gotLines, i), wantLines[i])
		}
	}
	return fmt.Errorf("verify: emitted program printed %d extra line(s)", len(gotLines)-len(wantLines))
}

func line(lines []string, i int) string {
	if i >= len(lines) {
		return "<missing>"
	}
	return lines[i]
}
