package asmgen

import (
	"testing"

	"nanoc/ast"
	"nanoc/lexer"
	"nanoc/parser"
	"nanoc/resolve"
	"nanoc/tac"
	"nanoc/typecheck"
)

func lowerToAsm(t *testing.T, source string) *Program {
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
	return Lower(astProg, tacProg, typed)
}

func firstFunction(t *testing.T, prog *Program) *Function {
	t.Helper()
	for _, top := range prog.TopLevel {
		if fn, ok := top.(*Function); ok {
			return fn
		}
	}
	t.Fatal("no Function in program")
	return nil
}

func countAsmInstr[T any](fn *Function) int {
	n := 0
	for _, i := range fn.Instructions {
		if _, ok := i.(T); ok {
			n++
		}
	}
	return n
}

func TestLowerAllocateStackGetsConcreteByteCount(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { int a; int b; int c; return a + b + c; }")
	fn := firstFunction(t, prog)
	alloc, ok := fn.Instructions[0].(AllocateStack)
	if !ok {
		t.Fatalf("Instructions[0] = %T, want AllocateStack", fn.Instructions[0])
	}
	if alloc.Bytes == 0 || alloc.Bytes%16 != 0 {
		t.Errorf("AllocateStack.Bytes = %d, want a positive multiple of 16", alloc.Bytes)
	}
}

func TestLowerNoPseudoSurvivesFixup(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { int a = 1; int b = 2; return a + b; }")
	fn := firstFunction(t, prog)
	for _, instr := range fn.Instructions {
		for _, op := range operandsOf(instr) {
			if _, ok := op.(Pseudo); ok {
				t.Fatalf("Pseudo operand survived Fixup in %+v", instr)
			}
		}
	}
}

func TestLowerReturnMovesIntoAX(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { return 5; }")
	fn := firstFunction(t, prog)
	found := false
	for i, instr := range fn.Instructions {
		if _, ok := instr.(Ret); ok {
			mov, ok := fn.Instructions[i-1].(Mov)
			if !ok {
				t.Fatalf("instruction before Ret = %T, want Mov", fn.Instructions[i-1])
			}
			reg, ok := mov.Dest.(Register)
			if !ok || reg.Class != AX {
				t.Errorf("Mov.Dest = %+v, want Register{AX}", mov.Dest)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("no Ret instruction found")
	}
}

func TestLowerDivisionEmitsCdqAndIdiv(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { int a = 10; int b = 3; return a / b; }")
	fn := firstFunction(t, prog)
	if n := countAsmInstr[Cdq](fn); n != 1 {
		t.Errorf("Cdq count = %d, want 1", n)
	}
	if n := countAsmInstr[Idiv](fn); n != 1 {
		t.Errorf("Idiv count = %d, want 1", n)
	}
}

func TestLowerRelationalEmitsCmpAndSignedSetCC(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { int a = 1; int b = 2; return a < b; }")
	fn := firstFunction(t, prog)
	var cc CondCode
	found := false
	for _, instr := range fn.Instructions {
		if s, ok := instr.(SetCC); ok {
			cc = s.Cond
			found = true
		}
	}
	if !found {
		t.Fatal("no SetCC instruction found")
	}
	if cc != CondL {
		t.Errorf("SetCC.Cond = %v, want CondL (signed int comparison)", cc)
	}
}

func TestLowerUnsignedRelationalUsesUnsignedSetCC(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { unsigned a = 1; unsigned b = 2; return a < b; }")
	fn := firstFunction(t, prog)
	var cc CondCode
	found := false
	for _, instr := range fn.Instructions {
		if s, ok := instr.(SetCC); ok {
			cc = s.Cond
			found = true
		}
	}
	if !found {
		t.Fatal("no SetCC instruction found")
	}
	if cc != CondB {
		t.Errorf("SetCC.Cond = %v, want CondB (unsigned int comparison)", cc)
	}
}

func TestLowerLogicalNotEmitsCmpZeroAndSetE(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { int a = 0; return !a; }")
	fn := firstFunction(t, prog)
	if n := countAsmInstr[SetCC](fn); n != 1 {
		t.Errorf("SetCC count = %d, want 1", n)
	}
	if n := countAsmInstr[Cmp](fn); n < 1 {
		t.Error("logical not must lower through a Cmp against zero")
	}
}

func TestLowerMemoryToMemoryMovIsLegalizedThroughScratch(t *testing.T) {
	prog := lowerToAsm(t, "int g; int main(void) { int a = 1; g = a; return g; }")
	fn := firstFunction(t, prog)
	for _, instr := range fn.Instructions {
		mov, ok := instr.(Mov)
		if !ok {
			continue
		}
		if isMemory(mov.Src) && isMemory(mov.Dest) {
			t.Errorf("found an un-legalized memory-to-memory Mov: %+v", mov)
		}
	}
}

func TestLowerSixtyFourBitImmediateUsesMovabsq(t *testing.T) {
	prog := lowerToAsm(t, "long f(void) { return 5000000000; }")
	fn := firstFunction(t, prog)
	if n := countAsmInstr[MovAbsq](fn); n != 1 {
		t.Errorf("MovAbsq count = %d, want 1 (5e9 does not fit in 32 bits)", n)
	}
}

func TestLowerMovZeroExtendNeverReachesFinalInstructions(t *testing.T) {
	prog := lowerToAsm(t, "long f(void) { unsigned a; return a; }")
	fn := firstFunction(t, prog)
	if n := countAsmInstr[MovZeroExtend](fn); n != 0 {
		t.Errorf("MovZeroExtend count = %d, want 0 (Fixup must expand every one)", n)
	}
}

func TestLowerImulNeverTargetsMemory(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { int a = 2; int b = 3; return a * b; }")
	fn := firstFunction(t, prog)
	for _, instr := range fn.Instructions {
		bin, ok := instr.(Binary)
		if !ok || bin.Op != ast.OpMul {
			continue
		}
		if isMemory(bin.Dest) {
			t.Errorf("imul destination is memory: %+v", bin)
		}
	}
}

func TestLowerVariableShiftCountGoesThroughCX(t *testing.T) {
	prog := lowerToAsm(t, "int main(void) { int a = 8; int b = 2; return a >> b; }")
	fn := firstFunction(t, prog)
	found := false
	for _, instr := range fn.Instructions {
		bin, ok := instr.(Binary)
		if !ok || bin.Op != ast.OpShr {
			continue
		}
		reg, ok := bin.Src.(Register)
		if !ok || reg.Class != CX {
			t.Errorf("shift Src = %+v, want Register{CX}", bin.Src)
		}
		found = true
	}
	if !found {
		t.Fatal("no Shr Binary instruction found")
	}
}

func TestLowerStaticGlobalClassifiesZeroVsInitialized(t *testing.T) {
	prog := lowerToAsm(t, "int counter; int total = 5; static long hidden;")
	var counter, total, hidden *Static
	for _, top := range prog.TopLevel {
		s, ok := top.(*Static)
		if !ok {
			continue
		}
		switch s.Name {
		case "counter":
			counter = s
		case "total":
			total = s
		case "hidden":
			hidden = s
		}
	}
	if counter == nil || !counter.Zero {
		t.Errorf("counter = %+v, want a zero-initialized (tentative) Static", counter)
	}
	if total == nil || total.Zero || total.Value.Value != 5 {
		t.Errorf("total = %+v, want an initialized Static with Value 5", total)
	}
	if hidden == nil || hidden.Global {
		t.Errorf("hidden = %+v, want a non-global (static) Static", hidden)
	}
}

func TestLowerExternOnlyDeclarationGetsNoStatic(t *testing.T) {
	prog := lowerToAsm(t, "extern int shared; int main(void) { return 0; }")
	for _, top := range prog.TopLevel {
		if s, ok := top.(*Static); ok && s.Name == "shared" {
			t.Errorf("extern-only declaration must not produce a Static, got %+v", s)
		}
	}
}

// operandsOf extracts every Operand field from instr, for the
// no-surviving-Pseudo sweep.
func operandsOf(instr Instr) []Operand {
	switch v := instr.(type) {
	case Mov:
		return []Operand{v.Src, v.Dest}
	case Movsx:
		return []Operand{v.Src, v.Dest}
	case MovZeroExtend:
		return []Operand{v.Src, v.Dest}
	case MovAbsq:
		return []Operand{v.Dest}
	case Binary:
		return []Operand{v.Src, v.Dest}
	case Cmp:
		return []Operand{v.Left, v.Right}
	case Idiv:
		return []Operand{v.Operand}
	case Push:
		return []Operand{v.Operand}
	case SetCC:
		return []Operand{v.Dest}
	case Unary:
		return []Operand{v.Dest}
	default:
		return nil
	}
}
