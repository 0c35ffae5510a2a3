// Package asmgen lowers three-address code into an x86-64 assembly AST
// and runs the operand-legality fix-up pass (spec.md §4.6). Lowering is
// a small family of assembly instructions per TAC instruction; the
// interesting part is Fixup, a single left-to-right rewrite enforcing
// the System V / x86-64 operand rules the naive lowering ignores.
package asmgen

import (
	"nanoc/ast"
	"nanoc/tac"
	"nanoc/typecheck"
)

// ----------------------------------------------------------------------
// Assembly AST

// CondCode is one of {e, ne, l, g, le, ge, a, ae, b, be} (spec.md §3).
type CondCode string

const (
	CondE  CondCode = "e"
	CondNE CondCode = "ne"
	CondL  CondCode = "l"
	CondG  CondCode = "g"
	CondLE CondCode = "le"
	CondGE CondCode = "ge"
	CondA  CondCode = "a"
	CondAE CondCode = "ae"
	CondB  CondCode = "b"
	CondBE CondCode = "be"
)

// Operand is an assembly-level operand: immediate, register, a
// not-yet-assigned pseudoregister slot, a resolved stack slot, or a
// named static.
type Operand interface{ asmOperandNode() }

type Imm struct{ Value ast.Const }

func (Imm) asmOperandNode() {}

// RegClass names an x86-64 general-purpose register by its canonical
// (size-independent) identity; emit picks the %eNN/%rNN spelling from
// the instruction's Size.
type RegClass string

const (
	AX  RegClass = "ax"
	CX  RegClass = "cx"
	DX  RegClass = "dx"
	DI  RegClass = "di"
	SI  RegClass = "si"
	R8  RegClass = "r8"
	R9  RegClass = "r9"
	R10 RegClass = "r10"
	R11 RegClass = "r11"
	SP  RegClass = "sp"
	BP  RegClass = "bp"
)

type Register struct{ Class RegClass }

func (Register) asmOperandNode() {}

// Pseudo is a not-yet-assigned virtual slot, produced by lowering and
// eliminated by Fixup before emit ever sees it.
type Pseudo struct{ Index int }

func (Pseudo) asmOperandNode() {}

// Stack is an %rbp-relative memory operand: a negative Offset is a
// local slot Fixup assigned; a positive one is an incoming stack
// argument read at the caller's frame.
type Stack struct{ Offset int }

func (Stack) asmOperandNode() {}

// Data addresses a named static directly (spec.md §4.7's .data/.bss
// symbols), rather than through the stack frame.
type Data struct{ Name string }

func (Data) asmOperandNode() {}

// Instr is the marker interface for every assembly instruction.
type Instr interface{ asmInstrNode() }

// AllocateStack and DeallocateStack are this module's concrete realization
// of the TAC AllocateStack/AdjustStack instructions' stack-pointer
// arithmetic (spec.md §4.6); Bytes is 0 until Fixup computes the frame
// size.
type AllocateStack struct{ Bytes int }

func (AllocateStack) asmInstrNode() {}

type DeallocateStack struct{ Bytes int }

func (DeallocateStack) asmInstrNode() {}

type Mov struct {
	Size       int
	Src, Dest  Operand
}

func (Mov) asmInstrNode() {}

// Movsx is the sign-extending mov (32 -> 64 bits) named in spec.md §3.
type Movsx struct{ Src, Dest Operand }

func (Movsx) asmInstrNode() {}

// MovZeroExtend is pre-fix-up only: Fixup always expands it into the
// two-mov sequence spec.md §4.6 rule 3 describes and it never reaches
// emit directly.
type MovZeroExtend struct{ Src, Dest Operand }

func (MovZeroExtend) asmInstrNode() {}

// MovAbsq is the 64-bit-immediate load spec.md §4.6 rule 2 names
// explicitly ("emit movabsq imm, %r10"); it has no TAC counterpart and is
// only ever introduced by Fixup.
type MovAbsq struct {
	Value ast.Const
	Dest  Operand
}

func (MovAbsq) asmInstrNode() {}

// Binary computes Dest = Dest op Src (spec.md §3); Signed selects the
// arithmetic- vs logical-shift mnemonic for Shl/Shr.
type Binary struct {
	Op        ast.BinaryOp
	Size      int
	Src, Dest Operand
	Signed    bool
}

func (Binary) asmInstrNode() {}

// Cmp computes flags from Left - Right (AT&T `cmp Right, Left`).
type Cmp struct {
	Size        int
	Left, Right Operand
}

func (Cmp) asmInstrNode() {}

type Idiv struct {
	Size    int
	Operand Operand
}

func (Idiv) asmInstrNode() {}

type Cdq struct{ Size int }

func (Cdq) asmInstrNode() {}

type Jmp struct{ Label string }

func (Jmp) asmInstrNode() {}

type JmpCC struct {
	Cond  CondCode
	Label string
}

func (JmpCC) asmInstrNode() {}

type SetCC struct {
	Cond CondCode
	Dest Operand
}

func (SetCC) asmInstrNode() {}

type LabelInstr struct{ Name string }

func (LabelInstr) asmInstrNode() {}

type Push struct{ Operand Operand }

func (Push) asmInstrNode() {}

type Call struct{ Name string }

func (Call) asmInstrNode() {}

type Ret struct{}

func (Ret) asmInstrNode() {}

// Unary is the in-place not/neg instruction (spec.md §3); logical-not
// lowers instead to Cmp+Mov+SetCC, since it is not a mutate-in-place
// machine instruction.
type Unary struct {
	Op   ast.UnaryOp
	Size int
	Dest Operand
}

func (Unary) asmInstrNode() {}

// ----------------------------------------------------------------------
// Top level

type TopLevel interface{ topLevelNode() }

type Function struct {
	Name         string
	Global       bool
	Instructions []Instr
}

func (*Function) topLevelNode() {}

// Static is a file-scope variable's storage (spec.md §3); Zero selects
// .bss placement, otherwise Value holds the .data initializer.
type Static struct {
	Name   string
	Global bool
	Size   int
	Zero   bool
	Value  ast.Const
}

func (*Static) topLevelNode() {}

type Program struct {
	TopLevel []TopLevel
}

// ----------------------------------------------------------------------
// Lowering

// Lower translates every function body in tacProg to assembly and adds a
// Static for each file-scope variable that owns storage (skipping
// extern-only declarations), in astProg's declaration order, then runs
// Fixup.
func Lower(astProg *ast.Program, tacProg *tac.Program, typed *typecheck.Result) *Program {
	prog := &Program{}
	seen := map[string]bool{}
	for _, decl := range astProg.Decls {
		vd, ok := decl.(*ast.VariableDecl)
		if !ok || seen[vd.Name] {
			continue
		}
		attrs, ok := typed.Globals[vd.Name]
		if !ok || (attrs.Init == typecheck.NoInitializer && attrs.Storage == ast.StorageExtern) {
			continue
		}
		seen[vd.Name] = true
		prog.TopLevel = append(prog.TopLevel, &Static{
			Name:   vd.Name,
			Global: attrs.Storage != ast.StorageStatic,
			Size:   attrs.Type.Size(),
			Zero:   attrs.Init != typecheck.Initial,
			Value:  attrs.InitValue,
		})
	}
	for _, fn := range tacProg.Functions {
		prog.TopLevel = append(prog.TopLevel, lowerFunction(fn))
	}
	Fixup(prog)
	return prog
}

func lowerFunction(body *tac.FunctionBody) *Function {
	fn := &Function{Name: body.Name, Global: body.IsGlobal}
	for _, instr := range body.Instructions {
		lowerInstr(fn, instr)
	}
	return fn
}

func emitTo(fn *Function, i Instr) { fn.Instructions = append(fn.Instructions, i) }

func lowerInstr(fn *Function, instr tac.Instr) {
	switch v := instr.(type) {
	case tac.FunctionBegin:
		// Name/Global are captured from FunctionBody itself by the caller.
	case tac.AllocateStack:
		emitTo(fn, AllocateStack{})
	case tac.Return:
		t := operandType(v.Value)
		emitTo(fn, Mov{Size: t.Size(), Src: lowerOperand(v.Value), Dest: Register{Class: AX}})
		emitTo(fn, Ret{})
	case tac.StoreValue:
		t := operandType(v.Dest)
		emitTo(fn, Mov{Size: t.Size(), Src: lowerOperand(v.Src), Dest: lowerOperand(v.Dest)})
	case tac.UnaryOp:
		lowerUnaryOp(fn, v)
	case tac.BinaryOp:
		lowerBinaryOp(fn, v)
	case tac.JumpIfZero:
		t := operandType(v.Operand)
		emitTo(fn, Cmp{Size: t.Size(), Left: lowerOperand(v.Operand), Right: Imm{Value: ast.NewConstInt(0)}})
		emitTo(fn, JmpCC{Cond: CondE, Label: v.Label})
	case tac.JumpIfNotZero:
		t := operandType(v.Operand)
		emitTo(fn, Cmp{Size: t.Size(), Left: lowerOperand(v.Operand), Right: Imm{Value: ast.NewConstInt(0)}})
		emitTo(fn, JmpCC{Cond: CondNE, Label: v.Label})
	case tac.Jump:
		emitTo(fn, Jmp{Label: v.Label})
	case tac.Label:
		emitTo(fn, LabelInstr{Name: v.Name})
	case tac.FunctionCall:
		emitTo(fn, Call{Name: v.Name})
	case tac.PushArgument:
		emitTo(fn, Push{Operand: lowerOperand(v.Operand)})
	case tac.AdjustStack:
		emitTo(fn, DeallocateStack{Bytes: v.Bytes})
	case tac.SignExtend:
		emitTo(fn, Movsx{Src: lowerOperand(v.Src), Dest: lowerOperand(v.Dest)})
	case tac.Truncate:
		emitTo(fn, Mov{Size: 4, Src: lowerOperand(v.Src), Dest: lowerOperand(v.Dest)})
	case tac.ZeroExtend:
		emitTo(fn, MovZeroExtend{Src: lowerOperand(v.Src), Dest: lowerOperand(v.Dest)})
	}
}

func lowerUnaryOp(fn *Function, v tac.UnaryOp) {
	t := operandType(v.Dest)
	dest := lowerOperand(v.Dest)
	if v.Op == ast.OpNot {
		emitTo(fn, Cmp{Size: t.Size(), Left: lowerOperand(v.Operand), Right: Imm{Value: ast.NewConstInt(0)}})
		emitTo(fn, Mov{Size: t.Size(), Src: Imm{Value: ast.NewConstInt(0)}, Dest: dest})
		emitTo(fn, SetCC{Cond: CondE, Dest: dest})
		return
	}
	emitTo(fn, Mov{Size: t.Size(), Src: lowerOperand(v.Operand), Dest: dest})
	emitTo(fn, Unary{Op: v.Op, Size: t.Size(), Dest: dest})
}

func lowerBinaryOp(fn *Function, v tac.BinaryOp) {
	t := operandType(v.Dest)
	dest := lowerOperand(v.Dest)
	left := lowerOperand(v.Left)
	right := lowerOperand(v.Right)

	switch v.Op {
	case ast.OpAdd, ast.OpSub, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpShl, ast.OpShr:
		emitTo(fn, Mov{Size: t.Size(), Src: left, Dest: dest})
		emitTo(fn, Binary{Op: v.Op, Size: t.Size(), Src: right, Dest: dest, Signed: t.Signed()})

	case ast.OpMul:
		emitTo(fn, Mov{Size: t.Size(), Src: left, Dest: dest})
		emitTo(fn, Binary{Op: ast.OpMul, Size: t.Size(), Src: right, Dest: dest, Signed: t.Signed()})

	case ast.OpDiv, ast.OpMod:
		emitTo(fn, Mov{Size: t.Size(), Src: left, Dest: Register{Class: AX}})
		emitTo(fn, Cdq{Size: t.Size()})
		emitTo(fn, Idiv{Size: t.Size(), Operand: right})
		result := Register{Class: AX}
		if v.Op == ast.OpMod {
			result = Register{Class: DX}
		}
		emitTo(fn, Mov{Size: t.Size(), Src: result, Dest: dest})

	case ast.OpEqual, ast.OpNotEqual, ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		operandT := operandType(v.Left)
		emitTo(fn, Cmp{Size: operandT.Size(), Left: left, Right: right})
		emitTo(fn, Mov{Size: 4, Src: Imm{Value: ast.NewConstInt(0)}, Dest: dest})
		emitTo(fn, SetCC{Cond: condCodeFor(v.Op, operandT.Signed()), Dest: dest})
	}
}

func condCodeFor(op ast.BinaryOp, signed bool) CondCode {
	switch op {
	case ast.OpEqual:
		return CondE
	case ast.OpNotEqual:
		return CondNE
	case ast.OpLess:
		if signed {
			return CondL
		}
		return CondB
	case ast.OpLessEqual:
		if signed {
			return CondLE
		}
		return CondBE
	case ast.OpGreater:
		if signed {
			return CondG
		}
		return CondA
	default: // OpGreaterEqual
		if signed {
			return CondGE
		}
		return CondAE
	}
}

func lowerOperand(o tac.Operand) Operand {
	switch v := o.(type) {
	case tac.Immediate:
		return Imm{Value: v.Value}
	case tac.Register:
		switch r := v.Reg.(type) {
		case tac.PhysicalRegister:
			return Register{Class: regClassFor(r.Class)}
		case tac.VirtualRegister:
			return Pseudo{Index: r.Index}
		case tac.DataOperand:
			return Data{Name: r.Name}
		}
	case tac.MemoryReference:
		return Stack{Offset: v.Offset}
	}
	return nil
}

func regClassFor(c tac.ArgClass) RegClass {
	switch c {
	case tac.ClassDI:
		return DI
	case tac.ClassSI:
		return SI
	case tac.ClassDX:
		return DX
	case tac.ClassCX:
		return CX
	case tac.ClassR8:
		return R8
	case tac.ClassR9:
		return R9
	default: // ClassAX
		return AX
	}
}

// operandType recovers a TAC operand's value type: Immediate from its
// Const, Register from its Pseudoregister. Only these two ever carry a
// type that later lowering needs (MemoryReference only ever appears as a
// StoreValue source into an already-typed destination pseudoregister).
func operandType(o tac.Operand) ast.Type {
	switch v := o.(type) {
	case tac.Immediate:
		return v.Value.Type()
	case tac.Register:
		return v.Reg.Type()
	default:
		return ast.TLong
	}
}
