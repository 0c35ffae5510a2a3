// Package typecheck is the second pass over a resolved ast.Program
// (spec.md §4.4): it assigns a Type to every Expr node, inserts explicit
// Cast nodes for implicit conversions, and builds the function/global
// symbol tables consumed by later passes (tac for call lowering, emit for
// .data/.bss placement).
package typecheck

import (
	"nanoc/ast"
	"nanoc/errs"
)

// FunctionAttributes records a function's declared shape, built up as
// top-level declarations are visited.
type FunctionAttributes struct {
	ParamTypes []ast.Type
	ReturnType ast.Type
	Storage    ast.StorageClass
	Defined    bool
}

// InitialValue is the three-way classification of a file-scope or static
// variable's initializer (SPEC_FULL.md §6, carried forward from
// original_source/'s type_check.rs StaticAttributes): a compile-time
// constant, a tentative (zero) definition, or an extern-only declaration
// with no storage of its own here.
type InitialValue int

const (
	NoInitializer InitialValue = iota
	Tentative
	Initial
)

// StaticAttributes is the global symbol table entry consumed by emit to
// choose .bss (Tentative/zero) vs .data (Initial) placement.
type StaticAttributes struct {
	Type      ast.Type
	Storage   ast.StorageClass
	Init      InitialValue
	InitValue ast.Const // meaningful only when Init == Initial
}

type checker struct {
	functions map[string]FunctionAttributes
	globals   map[string]StaticAttributes
	locals    map[string]ast.Type
	function  string
	retType   ast.Type
}

// Result is what Check hands back to later passes: the two process-wide
// symbol tables named in spec.md §4.4.
type Result struct {
	Functions map[string]FunctionAttributes
	Globals   map[string]StaticAttributes
}

// Check mutates prog in place (assigning types, inserting Cast nodes) and
// returns the symbol tables built along the way, or the first
// *errs.CompileError encountered.
func Check(prog *ast.Program) (*Result, error) {
	c := &checker{
		functions: map[string]FunctionAttributes{},
		globals:   map[string]StaticAttributes{},
	}
	for _, decl := range prog.Decls {
		if err := c.checkTopLevelDecl(decl); err != nil {
			return nil, err
		}
	}
	return &Result{Functions: c.functions, Globals: c.globals}, nil
}

func (c *checker) checkTopLevelDecl(decl ast.Decl) error {
	switch d := decl.(type) {
	case *ast.VariableDecl:
		return c.checkGlobalVarDecl(d)
	case *ast.FunctionDecl:
		return c.checkFunctionDecl(d)
	default:
		return errs.SemanticErrorf(decl.Position(), "unknown top-level declaration")
	}
}

func (c *checker) checkFunctionDecl(fd *ast.FunctionDecl) error {
	attrs, exists := c.functions[fd.Name]
	if exists {
		if !sameParamTypes(attrs.ParamTypes, fd.ParamTypes) || attrs.ReturnType != fd.ReturnType {
			return errs.SemanticErrorf(fd.Pos, "conflicting declarations of function: %s", fd.Name)
		}
		if attrs.Defined && fd.Body != nil {
			return errs.SemanticErrorf(fd.Pos, "redefinition of function: %s", fd.Name)
		}
	}
	attrs = FunctionAttributes{
		ParamTypes: fd.ParamTypes,
		ReturnType: fd.ReturnType,
		Storage:    fd.Storage,
		Defined:    exists && attrs.Defined || fd.Body != nil,
	}
	c.functions[fd.Name] = attrs

	if fd.Body == nil {
		return nil
	}

	prevFunction, prevLocals, prevReturn := c.function, c.locals, c.retType
	c.function = fd.Name
	c.locals = map[string]ast.Type{}
	c.retType = fd.ReturnType
	defer func() { c.function, c.locals, c.retType = prevFunction, prevLocals, prevReturn }()

	for i, name := range fd.Params {
		c.locals[name] = fd.ParamTypes[i]
	}
	return c.checkBlockItems(fd.Body.Items)
}

func sameParamTypes(a, b []ast.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkGlobalVarDecl classifies a file-scope declaration's StaticAttributes
// and, for a non-extern declaration, requires that any initializer be a
// compile-time constant (SPEC_FULL.md §6).
func (c *checker) checkGlobalVarDecl(vd *ast.VariableDecl) error {
	if vd.Type == ast.TVoid {
		return errs.SemanticErrorf(vd.Pos, "variable %s declared void", vd.Name)
	}

	init := NoInitializer
	var initValue ast.Const
	switch {
	case vd.Init != nil:
		constant, ok := vd.Init.(*ast.Constant)
		if !ok {
			return errs.SemanticErrorf(vd.Pos, "non-constant initializer for file-scope variable: %s", vd.Name)
		}
		vd.Init.SetType(vd.Type)
		init = Initial
		initValue = convertConst(constant.Value, vd.Type)
	case vd.Storage == ast.StorageExtern:
		init = NoInitializer
	default:
		init = Tentative
	}

	if existing, ok := c.globals[vd.Name]; ok {
		if existing.Type != vd.Type {
			return errs.SemanticErrorf(vd.Pos, "conflicting types for global variable: %s", vd.Name)
		}
		if existing.Init == Initial && init == Initial {
			return errs.SemanticErrorf(vd.Pos, "redefinition of global variable: %s", vd.Name)
		}
		if init == NoInitializer {
			init = existing.Init
			initValue = existing.InitValue
		} else if existing.Init == Initial && init == Tentative {
			init = existing.Init
			initValue = existing.InitValue
		}
	}

	c.globals[vd.Name] = StaticAttributes{Type: vd.Type, Storage: vd.Storage, Init: init, InitValue: initValue}
	return nil
}

func convertConst(c ast.Const, target ast.Type) ast.Const {
	switch target {
	case ast.TInt:
		return ast.NewConstInt(uint32(c.Value))
	case ast.TLong:
		return ast.NewConstLong(signExtendIfNeeded(c))
	case ast.TUInt:
		return ast.NewConstUInt(uint32(c.Value))
	default:
		return ast.NewConstULong(signExtendIfNeeded(c))
	}
}

// signExtendIfNeeded widens a 32-bit constant to 64 bits honoring sign,
// for promotion into Long/ULong.
func signExtendIfNeeded(c ast.Const) uint64 {
	if c.Size() == 8 {
		return c.Value
	}
	if c.Type().Signed() {
		return uint64(int64(int32(uint32(c.Value))))
	}
	return uint64(uint32(c.Value))
}

func (c *checker) checkBlockItems(items []ast.BlockItem) error {
	for _, item := range items {
		switch v := item.(type) {
		case *ast.VariableDecl:
			if err := c.checkLocalVarDecl(v); err != nil {
				return err
			}
		case ast.Stmt:
			if err := c.checkStmt(v); err != nil {
				return err
			}
		default:
			return errs.SemanticErrorf(ast.Position{Function: c.function}, "unknown block item")
		}
	}
	return nil
}

func (c *checker) checkLocalVarDecl(vd *ast.VariableDecl) error {
	if vd.Type == ast.TVoid {
		return errs.SemanticErrorf(vd.Pos, "variable %s declared void", vd.Name)
	}
	if vd.Storage == ast.StorageStatic || vd.Storage == ast.StorageExtern {
		return c.checkGlobalVarDecl(vd)
	}
	c.locals[vd.Name] = vd.Type
	if vd.Init != nil {
		if err := c.convert(&vd.Init, vd.Type); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case *ast.ReturnStmt:
		if v.Expr == nil {
			return nil
		}
		return c.convert(&v.Expr, c.retType)
	case *ast.ExpressionStmt:
		_, err := c.checkExpr(&v.Expr)
		return err
	case *ast.IfStmt:
		if _, err := c.checkExpr(&v.Cond); err != nil {
			return err
		}
		if err := c.checkStmt(v.Then); err != nil {
			return err
		}
		if v.Else != nil {
			return c.checkStmt(v.Else)
		}
		return nil
	case *ast.CompoundStmt:
		return c.checkBlockItems(v.Block.Items)
	case *ast.WhileStmt:
		if _, err := c.checkExpr(&v.Cond); err != nil {
			return err
		}
		return c.checkStmt(v.Body)
	case *ast.ForStmt:
		if err := c.checkForInit(v.Init); err != nil {
			return err
		}
		if v.Cond != nil {
			if _, err := c.checkExpr(&v.Cond); err != nil {
				return err
			}
		}
		if v.Post != nil {
			if _, err := c.checkExpr(&v.Post); err != nil {
				return err
			}
		}
		return c.checkStmt(v.Body)
	case *ast.BreakStmt, *ast.ContinueStmt, *ast.NullStmt:
		return nil
	default:
		return errs.SemanticErrorf(s.Position(), "unknown statement")
	}
}

func (c *checker) checkForInit(init ast.ForInit) error {
	switch v := init.(type) {
	case *ast.InitDecl:
		return c.checkLocalVarDecl(v.Decl)
	case *ast.InitExpr:
		if v.Expr == nil {
			return nil
		}
		_, err := c.checkExpr(&v.Expr)
		return err
	default:
		return errs.SemanticErrorf(ast.Position{Function: c.function}, "unknown for-init")
	}
}

// lookupVar implements "Variable takes its type from the globals map (if
// present), else from the locals map" (spec.md §4.4).
func (c *checker) lookupVar(pos ast.Position, name string) (ast.Type, error) {
	if attrs, ok := c.globals[name]; ok {
		return attrs.Type, nil
	}
	if t, ok := c.locals[name]; ok {
		return t, nil
	}
	return ast.TVoid, errs.SemanticErrorf(pos, "undefined variable: %s", name)
}

// checkExpr types *ep in place (and every descendant) and returns the
// resulting type.
func (c *checker) checkExpr(ep *ast.Expr) (ast.Type, error) {
	switch v := (*ep).(type) {
	case *ast.Constant:
		v.SetType(v.Value.Type())
		return v.Typ, nil

	case *ast.Variable:
		t, err := c.lookupVar(v.Pos, v.Name)
		if err != nil {
			return ast.TVoid, err
		}
		v.SetType(t)
		return t, nil

	case *ast.Unary:
		operandType, err := c.checkExpr(&v.Operand)
		if err != nil {
			return ast.TVoid, err
		}
		if v.Op == ast.OpNot {
			v.SetType(ast.TInt)
		} else {
			v.SetType(operandType)
		}
		return v.Typ, nil

	case *ast.Binary:
		return c.checkBinary(v)

	case *ast.Assignment:
		if !ast.IsLvalue(v.Left) {
			return ast.TVoid, errs.SemanticErrorf(v.Pos, "assignment target is not an lvalue")
		}
		leftType, err := c.checkExpr(&v.Left)
		if err != nil {
			return ast.TVoid, err
		}
		if err := c.convert(&v.Right, leftType); err != nil {
			return ast.TVoid, err
		}
		v.SetType(leftType)
		return leftType, nil

	case *ast.Condition:
		if _, err := c.checkExpr(&v.Cond); err != nil {
			return ast.TVoid, err
		}
		thenType, err := c.checkExpr(&v.IfTrue)
		if err != nil {
			return ast.TVoid, err
		}
		elseType, err := c.checkExpr(&v.IfFalse)
		if err != nil {
			return ast.TVoid, err
		}
		common := commonType(thenType, elseType)
		if err := c.convert(&v.IfTrue, common); err != nil {
			return ast.TVoid, err
		}
		if err := c.convert(&v.IfFalse, common); err != nil {
			return ast.TVoid, err
		}
		v.SetType(common)
		return common, nil

	case *ast.FunctionCall:
		return c.checkCall(v)

	case *ast.Prefix:
		if !ast.IsLvalue(v.Operand) {
			return ast.TVoid, errs.SemanticErrorf(v.Pos, "increment/decrement target is not an lvalue")
		}
		t, err := c.checkExpr(&v.Operand)
		if err != nil {
			return ast.TVoid, err
		}
		v.SetType(t)
		return t, nil

	case *ast.Postfix:
		if !ast.IsLvalue(v.Operand) {
			return ast.TVoid, errs.SemanticErrorf(v.Pos, "increment/decrement target is not an lvalue")
		}
		t, err := c.checkExpr(&v.Operand)
		if err != nil {
			return ast.TVoid, err
		}
		v.SetType(t)
		return t, nil

	case *ast.Cast:
		if _, err := c.checkExpr(&v.Operand); err != nil {
			return ast.TVoid, err
		}
		v.SetType(v.Target)
		return v.Target, nil

	default:
		return ast.TVoid, errs.SemanticErrorf((*ep).Position(), "unknown expression")
	}
}

func (c *checker) checkBinary(v *ast.Binary) (ast.Type, error) {
	leftType, err := c.checkExpr(&v.Left)
	if err != nil {
		return ast.TVoid, err
	}
	rightType, err := c.checkExpr(&v.Right)
	if err != nil {
		return ast.TVoid, err
	}

	switch v.Op {
	case ast.OpLogicalAnd, ast.OpLogicalOr:
		// Operands keep their own types; only zero-tested.
		v.SetType(ast.TInt)
		return ast.TInt, nil
	case ast.OpEqual, ast.OpNotEqual, ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		common := commonType(leftType, rightType)
		if err := c.convert(&v.Left, common); err != nil {
			return ast.TVoid, err
		}
		if err := c.convert(&v.Right, common); err != nil {
			return ast.TVoid, err
		}
		v.SetType(ast.TInt)
		return ast.TInt, nil
	default:
		common := commonType(leftType, rightType)
		if err := c.convert(&v.Left, common); err != nil {
			return ast.TVoid, err
		}
		if err := c.convert(&v.Right, common); err != nil {
			return ast.TVoid, err
		}
		v.SetType(common)
		return common, nil
	}
}

func (c *checker) checkCall(v *ast.FunctionCall) (ast.Type, error) {
	attrs, ok := c.functions[v.Name]
	if !ok {
		return ast.TVoid, errs.SemanticErrorf(v.Pos, "call to undeclared function: %s", v.Name)
	}
	if len(v.Args) != len(attrs.ParamTypes) {
		return ast.TVoid, errs.SemanticErrorf(v.Pos, "function %s called with %d arguments, want %d", v.Name, len(v.Args), len(attrs.ParamTypes))
	}
	for i := range v.Args {
		if err := c.convert(&v.Args[i], attrs.ParamTypes[i]); err != nil {
			return ast.TVoid, err
		}
	}
	v.SetType(attrs.ReturnType)
	return attrs.ReturnType, nil
}

// convert type-checks *ep and, if its type differs from target, wraps it
// in-place with an explicit Cast carrying type_ = target (spec.md §4.4's
// implicit-conversion rule).
func (c *checker) convert(ep *ast.Expr, target ast.Type) error {
	t, err := c.checkExpr(ep)
	if err != nil {
		return err
	}
	if t == target {
		return nil
	}
	cast := &ast.Cast{Target: target, Operand: *ep}
	cast.Pos = (*ep).Position()
	cast.Typ = target
	*ep = cast
	return nil
}

// commonType implements get_common_type (spec.md §4.4).
func commonType(t1, t2 ast.Type) ast.Type {
	if t1 == t2 {
		return t1
	}
	if t1.Size() == t2.Size() {
		if !t1.Signed() {
			return t1
		}
		return t2
	}
	if t1.Size() > t2.Size() {
		return t1
	}
	return t2
}
