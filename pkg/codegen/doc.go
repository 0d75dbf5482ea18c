// Package codegen implements the Instruction Emitter and the
// Prologue/Epilogue Wrapper: it walks an already
// folded-and-optimized statement tree together with a Variable
// Allocator map and produces GAS-syntax x86-64 System V assembly.
//
// Emission happens in two passes. The body of basic_main is first
// written to a scratch temp file (see wrapper.go), because the final
// frame size and the set of callee-saved registers worth saving depend
// on facts — maximum stack growth, which registers the expression
// emitter ever touched — that are only known once the whole body has
// been emitted. The second pass prepends the prologue and appends the
// epilogue around the scratch contents and discards the temp file.
//
// x86-64 forms this package emits, and the constraint that drives each:
//
//	mnemonic          operand forms                  constraint enforced
//	movq              reg,reg / reg,mem / mem,reg     mem,mem routed through %rcx
//	addq/subq/cmpq    reg,reg / reg,mem / mem,reg /    mem,mem routed through %rcx;
//	                  $imm32,reg|mem                   imm64 loaded into %rcx first
//	negq              reg/mem                          used for "X * -1"
//	shlq              $imm8,reg/mem                    used for "X * pow2"
//	imulq             $imm32,reg,reg (3-operand) /      imm64 or non-pow2-but-huge
//	                  reg,reg (2-operand)               immediates route through %rcx
//	cqo; idivq        reg/mem (never an immediate)      sign-extends %rax into %rdx:%rax;
//	                                                     an immediate divisor is first
//	                                                     loaded into %rcx
//	pushq/popq        reg                               register-temporary spill and
//	                                                     callee-saved save/restore
//	cmpq; jle/jge/    label                              IF/WHILE guards; the branch
//	jne; jmp                                             emitted is the negation of the
//	                                                     canonicalized comparator
//	call              print_int                          RDI holds the argument (SysV)
package codegen
