package emit

import (
	"strings"
	"testing"

	"nanoc/asmgen"
	"nanoc/lexer"
	"nanoc/parser"
	"nanoc/resolve"
	"nanoc/tac"
	"nanoc/typecheck"
)

func render(t *testing.T, source string) string {
	t.Helper()
	tokens := lexer.New(source).Scan()
	astProg, err := parser.Parse(tokens)
	if err != nil {
		t.Fatalf("parse(%q): %v", source, err)
	}
	if err := resolve.Resolve(astProg); err != nil {
		t.Fatalf("resolve(%q): %v", source, err)
	}
	typed, err := typecheck.Check(astProg)
	if err != nil {
		t.Fatalf("typecheck(%q): %v", source, err)
	}
	tacProg, err := tac.Generate(astProg, typed)
	if err != nil {
		t.Fatalf("tac.Generate(%q): %v", source, err)
	}
	asmProg := asmgen.Lower(astProg, tacProg, typed)
	return Program(asmProg)
}

func TestProgramEmitsGlobalFunctionLabelAndPrologue(t *testing.T) {
	out := render(t, "int main(void) { return 2; }")
	if !strings.Contains(out, "\t.globl main\n") {
		t.Error("missing .globl main")
	}
	if !strings.Contains(out, "main:\n") {
		t.Error("missing main: label")
	}
	if !strings.Contains(out, "\tpushq\t%rbp\n") || !strings.Contains(out, "\tmovq\t%rsp, %rbp\n") {
		t.Error("missing prologue")
	}
}

func TestProgramEmitsEpilogueOnReturn(t *testing.T) {
	out := render(t, "int main(void) { return 0; }")
	if !strings.Contains(out, "\tmovq\t%rbp, %rsp\n\tpopq\t%rbp\n\tret\n") {
		t.Errorf("missing epilogue sequence, got:\n%s", out)
	}
}

func TestProgramStaticFunctionHasNoGlobl(t *testing.T) {
	out := render(t, "static int helper(void) { return 1; }")
	if strings.Contains(out, ".globl helper") {
		t.Error("static function must not get a .globl directive")
	}
}

func TestProgramTentativeGlobalGoesToBss(t *testing.T) {
	out := render(t, "int counter; int main(void) { return counter; }")
	if !strings.Contains(out, "\t.bss\n") {
		t.Error("tentative global must be placed in .bss")
	}
	if !strings.Contains(out, "\t.zero 4\n") {
		t.Error("tentative int global must reserve 4 zero bytes")
	}
}

func TestProgramInitializedGlobalGoesToData(t *testing.T) {
	out := render(t, "long total = 5;")
	if !strings.Contains(out, "\t.data\n") {
		t.Error("initialized global must be placed in .data")
	}
	if !strings.Contains(out, "\t.quad 5\n") {
		t.Error("initialized long global must emit a .quad initializer")
	}
}

func TestProgramUsesSuffixLForIntSizeAndQForLongSize(t *testing.T) {
	out := render(t, "int f(void) { int a = 1; return a; }")
	if !strings.Contains(out, "movl") {
		t.Errorf("expected a movl for 4-byte operands, got:\n%s", out)
	}
	out = render(t, "long g(void) { long a = 1; return a; }")
	if !strings.Contains(out, "movq") {
		t.Errorf("expected a movq for 8-byte operands, got:\n%s", out)
	}
}

func TestProgramConditionalJumpUsesCondCodeMnemonic(t *testing.T) {
	out := render(t, "int main(void) { if (1) { return 1; } return 0; }")
	if !strings.Contains(out, "\tje\t") {
		t.Errorf("expected a je for the JumpIfZero lowering, got:\n%s", out)
	}
}

func TestProgramEndsWithGNUStackNote(t *testing.T) {
	out := render(t, "int main(void) { return 0; }")
	if !strings.HasSuffix(out, ".section .note.GNU-stack,\"\",@progbits\n") {
		t.Errorf("expected trailing GNU-stack note, got:\n%s", out)
	}
}
