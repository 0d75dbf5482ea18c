package codegen

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/oisee/teenybasicc/pkg/alloc"
	"github.com/oisee/teenybasicc/pkg/ast"
)

// Generate emits a complete basic_main for prog into w.
//
// The body is written to an on-disk scratch file first: the prologue
// needs the set of ever-used callee-saved registers and the frame's
// stack-slot count, and both are only known once every statement has
// been emitted. Once the body is done, the prologue is written to w,
// the scratch contents are copied across, and the matching epilogue
// follows. The scratch file is created with a unique name and removed
// whether or not emission succeeds.
func Generate(prog *ast.Sequence, allocMap *alloc.Map, w io.Writer) error {
	scratch, err := os.CreateTemp("", "basic-body-*.s")
	if err != nil {
		return fmt.Errorf("codegen: create scratch file: %w", err)
	}
	defer func() {
		scratch.Close()
		os.Remove(scratch.Name())
	}()

	body := bufio.NewWriter(scratch)
	st := newState(allocMap, body)
	st.markVariableRegisters()
	st.emitStmt(prog)
	if err := body.Flush(); err != nil {
		return fmt.Errorf("codegen: flush scratch file: %w", err)
	}
	if st.scratchHeight != 0 {
		panic(fmt.Sprintf("codegen: scratch stack height %d at end of emission", st.scratchHeight))
	}

	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("codegen: rewind scratch file: %w", err)
	}

	out := bufio.NewWriter(w)
	fmt.Fprintf(out, ".text\n")
	fmt.Fprintf(out, ".global basic_main\n")
	fmt.Fprintf(out, "basic_main:\n")

	saved := st.everUsedCalleeSaved()
	for _, r := range saved {
		fmt.Fprintf(out, "\tpushq %%%s\n", r.RegName())
	}
	frame := 8 * allocMap.StackSlotsUsed()
	if frame > 0 {
		fmt.Fprintf(out, "\tsubq $%d, %%rsp\n", frame)
	}

	if _, err := io.Copy(out, scratch); err != nil {
		return fmt.Errorf("codegen: copy scratch file: %w", err)
	}

	if frame > 0 {
		fmt.Fprintf(out, "\taddq $%d, %%rsp\n", frame)
	}
	for i := len(saved) - 1; i >= 0; i-- {
		fmt.Fprintf(out, "\tpopq %%%s\n", saved[i].RegName())
	}
	fmt.Fprintf(out, "\tret\n")

	if err := out.Flush(); err != nil {
		return fmt.Errorf("codegen: write output: %w", err)
	}
	return nil
}
