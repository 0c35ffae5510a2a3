// Package tac lowers a type-checked ast.Program into three-address code:
// one FunctionBody per function definition, holding a flat instruction
// sequence plus the counters used to name fresh pseudoregisters and
// labels (spec.md §4.5).
package tac

import (
	"fmt"

	"nanoc/ast"
	"nanoc/errs"
	"nanoc/typecheck"
)

// ----------------------------------------------------------------------
// Operands and pseudoregisters

// Operand is the marker interface for a TAC instruction operand:
// Immediate(Const), Register(pseudo), MemoryReference(offset, base), or
// None (spec.md §3).
type Operand interface{ operandNode() }

type Immediate struct{ Value ast.Const }

func (Immediate) operandNode() {}

// Register wraps a Pseudoregister: the physical machine register it was
// read out of, a virtual slot this pass assigned, or a named static.
type Register struct{ Reg Pseudoregister }

func (Register) operandNode() {}

type MemoryReference struct {
	Offset int
	Base   string
}

func (MemoryReference) operandNode() {}

type NoOperand struct{}

func (NoOperand) operandNode() {}

// Pseudoregister is the payload of a Register operand (spec.md §3).
type Pseudoregister interface {
	pseudoregisterNode()
	Type() ast.Type
}

// ArgClass names the System V integer argument registers used to pass
// the first six arguments (spec.md §4.5/§6).
type ArgClass string

const (
	ClassDI ArgClass = "DI"
	ClassSI ArgClass = "SI"
	ClassDX ArgClass = "DX"
	ClassCX ArgClass = "CX"
	ClassR8 ArgClass = "R8"
	ClassR9 ArgClass = "R9"
	ClassAX ArgClass = "AX"
)

// ArgRegisters is the fixed order parameters/arguments 0..5 occupy.
var ArgRegisters = [6]ArgClass{ClassDI, ClassSI, ClassDX, ClassCX, ClassR8, ClassR9}

// PhysicalRegister names a fixed machine register; asmgen picks the
// 32-bit or 64-bit spelling from Typ's size.
type PhysicalRegister struct {
	Class ArgClass
	Typ   ast.Type
}

func (PhysicalRegister) pseudoregisterNode() {}
func (r PhysicalRegister) Type() ast.Type    { return r.Typ }

// VirtualRegister is a virtual slot this pass assigned; asmgen maps it to
// a stack memory location.
type VirtualRegister struct {
	Index int
	Typ   ast.Type
}

func (VirtualRegister) pseudoregisterNode() {}
func (r VirtualRegister) Type() ast.Type    { return r.Typ }

// DataOperand names a file-scope variable addressed directly by symbol
// name rather than through the stack frame.
type DataOperand struct {
	Name string
	Typ  ast.Type
}

func (DataOperand) pseudoregisterNode() {}
func (r DataOperand) Type() ast.Type    { return r.Typ }

// ----------------------------------------------------------------------
// Instructions

// Instr is the marker interface for every TAC instruction (spec.md §3).
type Instr interface{ instrNode() }

type FunctionBegin struct {
	Name     string
	IsGlobal bool
}

func (FunctionBegin) instrNode() {}

// AllocateStack carries no size: the frame size is only known once every
// pseudoregister in the function has been assigned, so asmgen.Fixup
// computes it from the stack slots it hands out to those pseudoregisters.
type AllocateStack struct{}

func (AllocateStack) instrNode() {}

type Return struct{ Value Operand }

func (Return) instrNode() {}

type StoreValue struct{ Dest, Src Operand }

func (StoreValue) instrNode() {}

type UnaryOp struct {
	Dest    Operand
	Op      ast.UnaryOp
	Operand Operand
}

func (UnaryOp) instrNode() {}

type BinaryOp struct {
	Dest        Operand
	Op          ast.BinaryOp
	Left, Right Operand
}

func (BinaryOp) instrNode() {}

type JumpIfZero struct {
	Label   string
	Operand Operand
}

func (JumpIfZero) instrNode() {}

type JumpIfNotZero struct {
	Label   string
	Operand Operand
}

func (JumpIfNotZero) instrNode() {}

type Jump struct{ Label string }

func (Jump) instrNode() {}

type Label struct{ Name string }

func (Label) instrNode() {}

type FunctionCall struct{ Name string }

func (FunctionCall) instrNode() {}

type PushArgument struct{ Operand Operand }

func (PushArgument) instrNode() {}

type AdjustStack struct{ Bytes int }

func (AdjustStack) instrNode() {}

type SignExtend struct{ Dest, Src Operand }

func (SignExtend) instrNode() {}

type Truncate struct{ Dest, Src Operand }

func (Truncate) instrNode() {}

// ZeroExtend is the supplemented instruction named informally in spec.md
// §4.5 ("Zero-extension is a MovZeroExtend") and confirmed as its own TAC
// opcode by original_source/ (SPEC_FULL.md §6).
type ZeroExtend struct{ Dest, Src Operand }

func (ZeroExtend) instrNode() {}

// ----------------------------------------------------------------------
// FunctionBody

// FunctionBody is the per-function accumulator named in spec.md §4.5.
type FunctionBody struct {
	Name          string
	IsGlobal      bool
	VariableCount int // next free pseudoregister index, starts at 1
	LabelCount    int
	VarToReg      map[string]Pseudoregister
	Instructions  []Instr
}

func newFunctionBody(name string, isGlobal bool) *FunctionBody {
	return &FunctionBody{
		Name:          name,
		IsGlobal:      isGlobal,
		VariableCount: 1,
		VarToReg:      map[string]Pseudoregister{},
	}
}

func (b *FunctionBody) emit(i Instr) { b.Instructions = append(b.Instructions, i) }

func (b *FunctionBody) newVirtual(t ast.Type) Register {
	r := VirtualRegister{Index: b.VariableCount, Typ: t}
	b.VariableCount++
	return Register{Reg: r}
}

// newLabel mints a fresh, function-unique label for a non-loop control
// construct (if/ternary/short-circuit lowering).
func (b *FunctionBody) newLabel(prefix string) string {
	b.LabelCount++
	return fmt.Sprintf(".%s_%s%d", b.Name, prefix, b.LabelCount)
}

// loopLabel reproduces the fixed naming scheme for a loop-introducing
// statement's label, shared between the statement that allocates it and
// every Break/Continue within it (spec.md §4.5).
func loopLabel(function, label, suffix string) string {
	return fmt.Sprintf(".%s%s_%s.loop", function, label, suffix)
}

// ----------------------------------------------------------------------
// Program-level generation

// Program is the whole-module lowering result: one FunctionBody per
// function definition, in source order.
type Program struct {
	Functions []*FunctionBody
}

// Generate lowers every function definition in prog. typed is the symbol
// table Check returned for prog (used to tell a global Variable reference
// from a local one).
func Generate(prog *ast.Program, typed *typecheck.Result) (*Program, error) {
	g := &generator{globals: typed.Globals}
	var out Program
	for _, decl := range prog.Decls {
		fd, ok := decl.(*ast.FunctionDecl)
		if !ok || fd.Body == nil {
			continue
		}
		body, err := g.generateFunction(fd)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, body)
	}
	return &out, nil
}

type generator struct {
	globals map[string]typecheck.StaticAttributes
	body    *FunctionBody
	params  []string
}

func (g *generator) generateFunction(fd *ast.FunctionDecl) (*FunctionBody, error) {
	body := newFunctionBody(fd.Name, fd.Storage != ast.StorageStatic)
	g.body = body

	body.emit(FunctionBegin{Name: fd.Name, IsGlobal: body.IsGlobal})
	body.emit(AllocateStack{})

	for i, name := range fd.Params {
		paramType := fd.ParamTypes[i]
		dest := body.newVirtual(paramType)
		var src Operand
		if i < 6 {
			src = Register{Reg: PhysicalRegister{Class: ArgRegisters[i], Typ: paramType}}
		} else {
			src = MemoryReference{Offset: 16 + 8*(i-6), Base: "rbp"}
		}
		body.emit(StoreValue{Dest: dest, Src: src})
		body.VarToReg[name] = dest.Reg
	}

	if err := g.generateBlockItems(fd.Body.Items); err != nil {
		return nil, err
	}

	if _, ok := body.Instructions[len(body.Instructions)-1].(Return); !ok {
		body.emit(Return{Value: Immediate{Value: ast.NewConstInt(0)}})
	}
	return body, nil
}

func (g *generator) generateBlockItems(items []ast.BlockItem) error {
	for _, item := range items {
		switch v := item.(type) {
		case *ast.VariableDecl:
			if err := g.generateLocalVarDecl(v); err != nil {
				return err
			}
		case ast.Stmt:
			if err := g.generateStmt(v); err != nil {
				return err
			}
		default:
			return errs.SemanticErrorf(ast.Position{Function: g.body.Name}, "unknown block item")
		}
	}
	return nil
}

// generateLocalVarDecl skips static/extern locals entirely: their storage
// belongs to the data section, generated alongside global variables by
// the caller of Generate (compiler ties tac's Program to the typecheck
// globals table for that).
func (g *generator) generateLocalVarDecl(vd *ast.VariableDecl) error {
	if vd.Storage == ast.StorageStatic || vd.Storage == ast.StorageExtern {
		return nil
	}
	dest := g.body.newVirtual(vd.Type)
	g.body.VarToReg[vd.Name] = dest.Reg
	if vd.Init == nil {
		return nil
	}
	src, err := g.lowerExpr(vd.Init)
	if err != nil {
		return err
	}
	g.body.emit(StoreValue{Dest: dest, Src: src})
	return nil
}

func (g *generator) generateStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case *ast.ReturnStmt:
		if v.Expr == nil {
			g.body.emit(Return{Value: Immediate{Value: ast.NewConstInt(0)}})
			return nil
		}
		result, err := g.lowerExpr(v.Expr)
		if err != nil {
			return err
		}
		g.body.emit(Return{Value: result})
		return nil

	case *ast.ExpressionStmt:
		_, err := g.lowerExpr(v.Expr)
		return err

	case *ast.IfStmt:
		return g.generateIf(v)

	case *ast.CompoundStmt:
		return g.generateBlockItems(v.Block.Items)

	case *ast.BreakStmt:
		g.body.emit(Jump{Label: loopLabel(g.body.Name, v.Label, "end")})
		return nil

	case *ast.ContinueStmt:
		if v.IsFor {
			g.body.emit(Jump{Label: loopLabel(g.body.Name, v.Label, "increment")})
		} else {
			g.body.emit(Jump{Label: loopLabel(g.body.Name, v.Label, "start")})
		}
		return nil

	case *ast.WhileStmt:
		return g.generateWhile(v)

	case *ast.ForStmt:
		return g.generateFor(v)

	case *ast.NullStmt:
		return nil

	default:
		return errs.SemanticErrorf(s.Position(), "unknown statement")
	}
}

func (g *generator) generateIf(v *ast.IfStmt) error {
	cond, err := g.lowerExpr(v.Cond)
	if err != nil {
		return err
	}
	if v.Else == nil {
		endLabel := g.body.newLabel("if_end")
		g.body.emit(JumpIfZero{Label: endLabel, Operand: cond})
		if err := g.generateStmt(v.Then); err != nil {
			return err
		}
		g.body.emit(Label{Name: endLabel})
		return nil
	}
	elseLabel := g.body.newLabel("if_else")
	endLabel := g.body.newLabel("if_end")
	g.body.emit(JumpIfZero{Label: elseLabel, Operand: cond})
	if err := g.generateStmt(v.Then); err != nil {
		return err
	}
	g.body.emit(Jump{Label: endLabel})
	g.body.emit(Label{Name: elseLabel})
	if err := g.generateStmt(v.Else); err != nil {
		return err
	}
	g.body.emit(Label{Name: endLabel})
	return nil
}

func (g *generator) generateWhile(v *ast.WhileStmt) error {
	start := loopLabel(g.body.Name, v.Label, "start")
	end := loopLabel(g.body.Name, v.Label, "end")

	if v.IsDoWhile {
		g.body.emit(Label{Name: start})
		if err := g.generateStmt(v.Body); err != nil {
			return err
		}
		cond, err := g.lowerExpr(v.Cond)
		if err != nil {
			return err
		}
		g.body.emit(JumpIfNotZero{Label: start, Operand: cond})
		g.body.emit(Label{Name: end})
		return nil
	}

	g.body.emit(Label{Name: start})
	cond, err := g.lowerExpr(v.Cond)
	if err != nil {
		return err
	}
	g.body.emit(JumpIfZero{Label: end, Operand: cond})
	if err := g.generateStmt(v.Body); err != nil {
		return err
	}
	g.body.emit(Jump{Label: start})
	g.body.emit(Label{Name: end})
	return nil
}

func (g *generator) generateFor(v *ast.ForStmt) error {
	if err := g.generateForInit(v.Init); err != nil {
		return err
	}
	start := loopLabel(g.body.Name, v.Label, "start")
	increment := loopLabel(g.body.Name, v.Label, "increment")
	end := loopLabel(g.body.Name, v.Label, "end")

	g.body.emit(Label{Name: start})
	if v.Cond != nil {
		cond, err := g.lowerExpr(v.Cond)
		if err != nil {
			return err
		}
		g.body.emit(JumpIfZero{Label: end, Operand: cond})
	}
	if err := g.generateStmt(v.Body); err != nil {
		return err
	}
	g.body.emit(Label{Name: increment})
	if v.Post != nil {
		if _, err := g.lowerExpr(v.Post); err != nil {
			return err
		}
	}
	g.body.emit(Jump{Label: start})
	g.body.emit(Label{Name: end})
	return nil
}

func (g *generator) generateForInit(init ast.ForInit) error {
	switch v := init.(type) {
	case *ast.InitDecl:
		return g.generateLocalVarDecl(v.Decl)
	case *ast.InitExpr:
		if v.Expr == nil {
			return nil
		}
		_, err := g.lowerExpr(v.Expr)
		return err
	default:
		return errs.SemanticErrorf(ast.Position{Function: g.body.Name}, "unknown for-init")
	}
}

// lowerExpr lowers e and returns the Operand holding its value
// (spec.md §4.5).
func (g *generator) lowerExpr(e ast.Expr) (Operand, error) {
	switch v := e.(type) {
	case *ast.Constant:
		return Immediate{Value: v.Value}, nil

	case *ast.Variable:
		if attrs, ok := g.globals[v.Name]; ok {
			return Register{Reg: DataOperand{Name: v.Name, Typ: attrs.Type}}, nil
		}
		reg, ok := g.body.VarToReg[v.Name]
		if !ok {
			return nil, errs.SemanticErrorf(v.Pos, "undefined variable: %s", v.Name)
		}
		return Register{Reg: reg}, nil

	case *ast.Unary:
		return g.lowerUnary(v)

	case *ast.Binary:
		return g.lowerBinary(v)

	case *ast.Assignment:
		return g.lowerAssignment(v)

	case *ast.Condition:
		return g.lowerTernary(v)

	case *ast.FunctionCall:
		return g.lowerCall(v)

	case *ast.Prefix:
		return g.lowerPrefix(v)

	case *ast.Postfix:
		return g.lowerPostfix(v)

	case *ast.Cast:
		return g.lowerCast(v)

	default:
		return nil, errs.SemanticErrorf(e.Position(), "unknown expression")
	}
}

func (g *generator) lowerUnary(v *ast.Unary) (Operand, error) {
	operand, err := g.lowerExpr(v.Operand)
	if err != nil {
		return nil, err
	}
	if v.Op == ast.OpUnaryPlus {
		return operand, nil
	}
	dest := g.body.newVirtual(v.Type())
	g.body.emit(UnaryOp{Dest: dest, Op: v.Op, Operand: operand})
	return dest, nil
}

func (g *generator) lowerBinary(v *ast.Binary) (Operand, error) {
	switch v.Op {
	case ast.OpLogicalAnd:
		return g.lowerLogicalAnd(v)
	case ast.OpLogicalOr:
		return g.lowerLogicalOr(v)
	}
	left, err := g.lowerExpr(v.Left)
	if err != nil {
		return nil, err
	}
	right, err := g.lowerExpr(v.Right)
	if err != nil {
		return nil, err
	}
	dest := g.body.newVirtual(v.Type())
	g.body.emit(BinaryOp{Dest: dest, Op: v.Op, Left: left, Right: right})
	return dest, nil
}

func (g *generator) lowerLogicalAnd(v *ast.Binary) (Operand, error) {
	falseLabel := g.body.newLabel("and_false")
	endLabel := g.body.newLabel("and_end")
	left, err := g.lowerExpr(v.Left)
	if err != nil {
		return nil, err
	}
	g.body.emit(JumpIfZero{Label: falseLabel, Operand: left})
	right, err := g.lowerExpr(v.Right)
	if err != nil {
		return nil, err
	}
	g.body.emit(JumpIfZero{Label: falseLabel, Operand: right})
	dest := g.body.newVirtual(v.Type())
	g.body.emit(StoreValue{Dest: dest, Src: Immediate{Value: ast.NewConstInt(1)}})
	g.body.emit(Jump{Label: endLabel})
	g.body.emit(Label{Name: falseLabel})
	g.body.emit(StoreValue{Dest: dest, Src: Immediate{Value: ast.NewConstInt(0)}})
	g.body.emit(Label{Name: endLabel})
	return dest, nil
}

func (g *generator) lowerLogicalOr(v *ast.Binary) (Operand, error) {
	trueLabel := g.body.newLabel("or_true")
	endLabel := g.body.newLabel("or_end")
	left, err := g.lowerExpr(v.Left)
	if err != nil {
		return nil, err
	}
	g.body.emit(JumpIfNotZero{Label: trueLabel, Operand: left})
	right, err := g.lowerExpr(v.Right)
	if err != nil {
		return nil, err
	}
	g.body.emit(JumpIfNotZero{Label: trueLabel, Operand: right})
	dest := g.body.newVirtual(v.Type())
	g.body.emit(StoreValue{Dest: dest, Src: Immediate{Value: ast.NewConstInt(0)}})
	g.body.emit(Jump{Label: endLabel})
	g.body.emit(Label{Name: trueLabel})
	g.body.emit(StoreValue{Dest: dest, Src: Immediate{Value: ast.NewConstInt(1)}})
	g.body.emit(Label{Name: endLabel})
	return dest, nil
}

func (g *generator) lowerTernary(v *ast.Condition) (Operand, error) {
	elseLabel := g.body.newLabel("ternary_else")
	endLabel := g.body.newLabel("ternary_end")
	cond, err := g.lowerExpr(v.Cond)
	if err != nil {
		return nil, err
	}
	g.body.emit(JumpIfZero{Label: elseLabel, Operand: cond})
	dest := g.body.newVirtual(v.Type())
	thenResult, err := g.lowerExpr(v.IfTrue)
	if err != nil {
		return nil, err
	}
	g.body.emit(StoreValue{Dest: dest, Src: thenResult})
	g.body.emit(Jump{Label: endLabel})
	g.body.emit(Label{Name: elseLabel})
	elseResult, err := g.lowerExpr(v.IfFalse)
	if err != nil {
		return nil, err
	}
	g.body.emit(StoreValue{Dest: dest, Src: elseResult})
	g.body.emit(Label{Name: endLabel})
	return dest, nil
}

func (g *generator) lowerAssignment(v *ast.Assignment) (Operand, error) {
	dest, err := g.lowerExpr(v.Left)
	if err != nil {
		return nil, err
	}
	src, err := g.lowerExpr(v.Right)
	if err != nil {
		return nil, err
	}
	g.body.emit(StoreValue{Dest: dest, Src: src})
	return dest, nil
}

func (g *generator) lowerPrefix(v *ast.Prefix) (Operand, error) {
	operand, err := g.lowerExpr(v.Operand)
	if err != nil {
		return nil, err
	}
	g.body.emit(BinaryOp{Dest: operand, Op: incDecOp(v.Op), Left: operand, Right: Immediate{Value: ast.NewConstInt(1)}})
	return operand, nil
}

func (g *generator) lowerPostfix(v *ast.Postfix) (Operand, error) {
	operand, err := g.lowerExpr(v.Operand)
	if err != nil {
		return nil, err
	}
	saved := g.body.newVirtual(v.Type())
	g.body.emit(StoreValue{Dest: saved, Src: operand})
	g.body.emit(BinaryOp{Dest: operand, Op: incDecOp(v.Op), Left: operand, Right: Immediate{Value: ast.NewConstInt(1)}})
	return saved, nil
}

func incDecOp(op ast.IncDecOp) ast.BinaryOp {
	if op == ast.OpIncrement {
		return ast.OpAdd
	}
	return ast.OpSub
}

// lowerCall implements spec.md §4.5's argument-passing order: evaluate
// arguments left-to-right, push stack arguments (index ≥ 6) in reverse
// order first, then load the first six into argument registers.
func (g *generator) lowerCall(v *ast.FunctionCall) (Operand, error) {
	results := make([]Operand, len(v.Args))
	argTypes := make([]ast.Type, len(v.Args))
	for i, arg := range v.Args {
		r, err := g.lowerExpr(arg)
		if err != nil {
			return nil, err
		}
		results[i] = r
		argTypes[i] = arg.Type()
	}

	stackArgs := 0
	if len(results) > 6 {
		stackArgs = len(results) - 6
		for i := len(results) - 1; i >= 6; i-- {
			g.body.emit(PushArgument{Operand: results[i]})
		}
	}
	for i := 0; i < len(results) && i < 6; i++ {
		dest := Register{Reg: PhysicalRegister{Class: ArgRegisters[i], Typ: argTypes[i]}}
		g.body.emit(StoreValue{Dest: dest, Src: results[i]})
	}

	g.body.emit(FunctionCall{Name: v.Name})
	if stackArgs > 0 {
		g.body.emit(AdjustStack{Bytes: 8 * stackArgs})
	}

	dest := g.body.newVirtual(v.Type())
	g.body.emit(StoreValue{Dest: dest, Src: Register{Reg: PhysicalRegister{Class: ClassAX, Typ: v.Type()}}})
	return dest, nil
}

// lowerCast implements spec.md §4.5's cast lowering together with the
// supplemented ZeroExtend opcode (SPEC_FULL.md §6): unsigned widening
// zero-extends, signed widening sign-extends, narrowing truncates, and a
// same-size reinterpretation emits nothing.
func (g *generator) lowerCast(v *ast.Cast) (Operand, error) {
	operand, err := g.lowerExpr(v.Operand)
	if err != nil {
		return nil, err
	}
	from, to := v.Operand.Type(), v.Target
	if from == to {
		return operand, nil
	}
	dest := g.body.newVirtual(to)
	switch {
	case to.Size() > from.Size() && from.Signed():
		g.body.emit(SignExtend{Dest: dest, Src: operand})
	case to.Size() > from.Size():
		g.body.emit(ZeroExtend{Dest: dest, Src: operand})
	case to.Size() < from.Size():
		g.body.emit(Truncate{Dest: dest, Src: operand})
	default:
		return operand, nil
	}
	return dest, nil
}
