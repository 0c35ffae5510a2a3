package tac

import (
	"strings"
	"testing"

	"nanoc/ast"
	"nanoc/lexer"
	"nanoc/parser"
	"nanoc/resolve"
	"nanoc/typecheck"
)

func lower(t *testing.T, source string) *Program {
	t.Helper()
	tokens := lexer.New(source).Scan()
	prog, err := parser.Parse(tokens)
	if err != nil {
		t.Fatalf("parse(%q): %v", source, err)
	}
	if err := resolve.Resolve(prog); err != nil {
		t.Fatalf("resolve(%q): %v", source, err)
	}
	typed, err := typecheck.Check(prog)
	if err != nil {
		t.Fatalf("typecheck(%q): %v", source, err)
	}
	out, err := Generate(prog, typed)
	if err != nil {
		t.Fatalf("Generate(%q): %v", source, err)
	}
	return out
}

func countInstr[T any](body *FunctionBody) int {
	n := 0
	for _, i := range body.Instructions {
		if _, ok := i.(T); ok {
			n++
		}
	}
	return n
}

func TestGenerateFunctionEntryAndImplicitReturn(t *testing.T) {
	prog := lower(t, "int main(void) { int x = 1; }")
	fn := prog.Functions[0]
	begin, ok := fn.Instructions[0].(FunctionBegin)
	if !ok || begin.Name != "main" || !begin.IsGlobal {
		t.Fatalf("Instructions[0] = %+v, want FunctionBegin{main, true}", fn.Instructions[0])
	}
	if _, ok := fn.Instructions[1].(AllocateStack); !ok {
		t.Fatalf("Instructions[1] = %T, want AllocateStack", fn.Instructions[1])
	}
	last := fn.Instructions[len(fn.Instructions)-1]
	ret, ok := last.(Return)
	if !ok {
		t.Fatalf("last instruction = %T, want Return (implicit 0)", last)
	}
	imm, ok := ret.Value.(Immediate)
	if !ok || imm.Value.Value != 0 {
		t.Errorf("implicit return value = %+v, want Immediate(0)", ret.Value)
	}
}

func TestGenerateStaticFunctionIsNotGlobal(t *testing.T) {
	prog := lower(t, "static int helper(void) { return 1; }")
	begin := prog.Functions[0].Instructions[0].(FunctionBegin)
	if begin.IsGlobal {
		t.Error("static function must lower with IsGlobal = false")
	}
}

func TestGenerateParametersLoadFromArgRegistersAndStack(t *testing.T) {
	prog := lower(t, "int sum7(int a, int b, int c, int d, int e, int f, int g) { return a; }")
	fn := prog.Functions[0]
	sixth := fn.Instructions[7].(StoreValue)
	reg, ok := sixth.Src.(Register)
	if !ok {
		t.Fatalf("param[5] source = %T, want Register", sixth.Src)
	}
	phys, ok := reg.Reg.(PhysicalRegister)
	if !ok || phys.Class != ClassR9 {
		t.Errorf("param[5] register = %+v, want PhysicalRegister{R9}", reg.Reg)
	}
	seventh := fn.Instructions[8].(StoreValue)
	mem, ok := seventh.Src.(MemoryReference)
	if !ok || mem.Offset != 16 || mem.Base != "rbp" {
		t.Errorf("param[6] source = %+v, want MemoryReference{16, rbp}", seventh.Src)
	}
}

func TestGenerateBinaryOpEmitsOneInstruction(t *testing.T) {
	prog := lower(t, "int main(void) { return 1 + 2; }")
	fn := prog.Functions[0]
	if n := countInstr[BinaryOp](fn); n != 1 {
		t.Errorf("BinaryOp count = %d, want 1", n)
	}
}

func TestGenerateLogicalAndShortCircuits(t *testing.T) {
	prog := lower(t, "int main(void) { int a; int b; return a && b; }")
	fn := prog.Functions[0]
	if n := countInstr[JumpIfZero](fn); n != 2 {
		t.Errorf("JumpIfZero count = %d, want 2 (left and right operand tests)", n)
	}
	if n := countInstr[BinaryOp](fn); n != 0 {
		t.Errorf("logical && must not lower to a BinaryOp, got %d", n)
	}
}

func TestGenerateLogicalOrShortCircuits(t *testing.T) {
	prog := lower(t, "int main(void) { int a; int b; return a || b; }")
	fn := prog.Functions[0]
	if n := countInstr[JumpIfNotZero](fn); n != 2 {
		t.Errorf("JumpIfNotZero count = %d, want 2", n)
	}
}

func TestGenerateTernaryEmitsBothArms(t *testing.T) {
	prog := lower(t, "int main(void) { return 1 ? 2 : 3; }")
	fn := prog.Functions[0]
	if n := countInstr[JumpIfZero](fn); n != 1 {
		t.Errorf("JumpIfZero count = %d, want 1", n)
	}
	if n := countInstr[StoreValue](fn); n < 2 {
		t.Errorf("StoreValue count = %d, want at least 2 (one per arm)", n)
	}
}

func TestGeneratePrefixIncrementMutatesInPlace(t *testing.T) {
	prog := lower(t, "int main(void) { int x = 0; ++x; return x; }")
	fn := prog.Functions[0]
	found := false
	for _, i := range fn.Instructions {
		if bin, ok := i.(BinaryOp); ok && bin.Op == ast.OpAdd {
			found = true
		}
	}
	if !found {
		t.Error("prefix ++ must lower to a BinaryOp(Add, ..., Immediate(1))")
	}
}

func TestGeneratePostfixSavesOriginalValue(t *testing.T) {
	prog := lower(t, "int main(void) { int x = 0; return x++; }")
	fn := prog.Functions[0]
	storeBeforeIncrement := false
	for i, instr := range fn.Instructions {
		if _, ok := instr.(BinaryOp); ok {
			if i == 0 {
				t.Fatal("BinaryOp must not be the first instruction")
			}
			if _, ok := fn.Instructions[i-1].(StoreValue); ok {
				storeBeforeIncrement = true
			}
		}
	}
	if !storeBeforeIncrement {
		t.Error("postfix ++ must save the pre-increment value before mutating")
	}
}

func TestGenerateWhileLoop(t *testing.T) {
	prog := lower(t, "int main(void) { while (1) { break; } return 0; }")
	fn := prog.Functions[0]
	if n := countInstr[Jump](fn); n == 0 {
		t.Error("while/break must emit at least one unconditional Jump")
	}
	if n := countInstr[Label](fn); n < 2 {
		t.Errorf("Label count = %d, want at least 2 (start, end)", n)
	}
}

func TestGenerateForLoopContinueTargetsIncrement(t *testing.T) {
	prog := lower(t, `int main(void) {
		for (int i = 0; i < 1; i = i + 1) {
			continue;
		}
		return 0;
	}`)
	fn := prog.Functions[0]
	// The first Jump in the body is continue's; the loop's back-edge comes
	// after the increment.
	var continueTarget string
	for _, i := range fn.Instructions {
		if j, ok := i.(Jump); ok {
			continueTarget = j.Label
			break
		}
	}
	if continueTarget == "" {
		t.Fatal("expected at least one Jump from continue")
	}
	if !strings.HasSuffix(continueTarget, "_increment.loop") {
		t.Errorf("continue's Jump target = %q, want the loop's increment label", continueTarget)
	}
	found := false
	for _, i := range fn.Instructions {
		if l, ok := i.(Label); ok && l.Name == continueTarget {
			found = true
		}
	}
	if !found {
		t.Errorf("continue's Jump target %q has no matching Label", continueTarget)
	}
}

func TestGenerateFunctionCallSixOrFewerArgsUseRegistersOnly(t *testing.T) {
	prog := lower(t, `int add(int a, int b);
		int main(void) { return add(1, 2); }`)
	fn := prog.Functions[0]
	if n := countInstr[PushArgument](fn); n != 0 {
		t.Errorf("PushArgument count = %d, want 0 for a 2-argument call", n)
	}
	if n := countInstr[AdjustStack](fn); n != 0 {
		t.Errorf("AdjustStack count = %d, want 0 for a 2-argument call", n)
	}
	if n := countInstr[FunctionCall](fn); n != 1 {
		t.Errorf("FunctionCall count = %d, want 1", n)
	}
}

func TestGenerateFunctionCallSevenArgsPushesAndAdjustsStack(t *testing.T) {
	prog := lower(t, `int sum7(int a, int b, int c, int d, int e, int f, int g);
		int main(void) { return sum7(1, 2, 3, 4, 5, 6, 7); }`)
	fn := prog.Functions[0]
	if n := countInstr[PushArgument](fn); n != 1 {
		t.Errorf("PushArgument count = %d, want 1 (one argument beyond the register six)", n)
	}
	var adjust AdjustStack
	found := false
	for _, i := range fn.Instructions {
		if a, ok := i.(AdjustStack); ok {
			adjust = a
			found = true
		}
	}
	if !found || adjust.Bytes != 8 {
		t.Errorf("AdjustStack = %+v, want Bytes=8", adjust)
	}
}

func TestGenerateCastSignExtendsIntToLong(t *testing.T) {
	prog := lower(t, "long f(void) { return 1; }")
	fn := prog.Functions[0]
	if n := countInstr[SignExtend](fn); n != 1 {
		t.Errorf("SignExtend count = %d, want 1 (int literal returned as long)", n)
	}
}

func TestGenerateCastZeroExtendsUnsignedIntToLong(t *testing.T) {
	prog := lower(t, "long f(void) { unsigned a; return a; }")
	fn := prog.Functions[0]
	if n := countInstr[ZeroExtend](fn); n != 1 {
		t.Errorf("ZeroExtend count = %d, want 1 (unsigned int widened to long)", n)
	}
}

func TestGenerateCastTruncatesLongToInt(t *testing.T) {
	prog := lower(t, "int main(void) { long a; return (int) a; }")
	fn := prog.Functions[0]
	if n := countInstr[Truncate](fn); n != 1 {
		t.Errorf("Truncate count = %d, want 1", n)
	}
}

func TestGenerateGlobalVariableLowersToDataOperand(t *testing.T) {
	prog := lower(t, "int counter; int main(void) { return counter; }")
	fn := prog.Functions[0]
	var ret Return
	for _, i := range fn.Instructions {
		if r, ok := i.(Return); ok {
			ret = r
		}
	}
	reg, ok := ret.Value.(Register)
	if !ok {
		t.Fatalf("return value = %T, want Register", ret.Value)
	}
	if _, ok := reg.Reg.(DataOperand); !ok {
		t.Errorf("global reference lowered to %T, want DataOperand", reg.Reg)
	}
}
