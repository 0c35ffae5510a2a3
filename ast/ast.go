// Package ast defines the abstract syntax tree produced by the parser and
// mutated in place by the later passes (variable resolution, type
// checking). Per the redesign note carried over from the original
// implementation, node payloads are plain Go structs behind small marker
// interfaces (Expr, Stmt, Decl, BlockItem, ForInit) rather than a
// visitor/Accept hierarchy: every pass is a function doing an exhaustive
// type switch, mutating fields in place and recursing.
package ast

import (
	"fmt"

	"nanoc/token"
)

// Position pins an AST node or later a TAC instruction to a source line
// and the enclosing function, for diagnostics (spec.md §3).
type Position struct {
	Line     int
	Function string
}

func (p Position) String() string {
	if p.Function == "" {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("line %d, function %s", p.Line, p.Function)
}

// Type is the value-type lattice: Int, Long, UInt, ULong, plus Void. Void
// is only ever the type of a return slot during resolution bookkeeping; it
// is never the recorded type of an Expr once type checking has run
// (spec.md §3).
type Type int

const (
	TInt Type = iota
	TLong
	TUInt
	TULong
	TVoid
)

func (t Type) String() string {
	switch t {
	case TInt:
		return "int"
	case TLong:
		return "long"
	case TUInt:
		return "unsigned int"
	case TULong:
		return "unsigned long"
	case TVoid:
		return "void"
	default:
		return "<unknown type>"
	}
}

// Size is the type's size in bytes: 4 for Int/UInt, 8 for Long/ULong, 0
// for Void (never an operand's size in practice).
func (t Type) Size() int {
	switch t {
	case TLong, TULong:
		return 8
	case TVoid:
		return 0
	default:
		return 4
	}
}

// Signed reports whether t is a signed integer type.
func (t Type) Signed() bool {
	return t == TInt || t == TLong
}

// ConstKind tags the variant of a Const literal.
type ConstKind int

const (
	CInt ConstKind = iota
	CLong
	CUInt
	CULong
)

// Const is the tagged numeric literal variant: ConstInt(u32) |
// ConstLong(u64) | ConstUInt(u32) | ConstULong(u64) (spec.md §3). Value
// always holds the literal's bit pattern zero-extended into a uint64; the
// Kind says how many of those bits are significant.
type Const struct {
	Kind  ConstKind
	Value uint64
}

// Type returns the lattice Type this constant's Kind corresponds to.
func (c Const) Type() Type {
	switch c.Kind {
	case CInt:
		return TInt
	case CLong:
		return TLong
	case CUInt:
		return TUInt
	default:
		return TULong
	}
}

// Size is the derived attribute named in spec.md §3: 4 or 8 bytes.
func (c Const) Size() int { return c.Type().Size() }

func NewConstInt(v uint32) Const   { return Const{Kind: CInt, Value: uint64(v)} }
func NewConstLong(v uint64) Const  { return Const{Kind: CLong, Value: v} }
func NewConstUInt(v uint32) Const  { return Const{Kind: CUInt, Value: uint64(v)} }
func NewConstULong(v uint64) Const { return Const{Kind: CULong, Value: v} }

const maxInt32 = 1<<31 - 1
const maxUint32 = 1<<32 - 1

// ConstFromLiteral picks the narrowest Const variant matching a lexed
// NumberLiteral's suffix and magnitude, following ordinary C literal
// promotion rules: an unsuffixed literal that overflows int becomes long;
// a u-suffixed literal that overflows unsigned int becomes unsigned long.
func ConstFromLiteral(lit token.NumberLiteral) Const {
	switch lit.Suffix {
	case token.SuffixLong:
		return NewConstLong(lit.Value)
	case token.SuffixUnsigned:
		if lit.Value > maxUint32 {
			return NewConstULong(lit.Value)
		}
		return NewConstUInt(uint32(lit.Value))
	case token.SuffixUnsignedLong:
		return NewConstULong(lit.Value)
	default:
		if lit.Value > maxInt32 {
			return NewConstLong(lit.Value)
		}
		return NewConstInt(uint32(lit.Value))
	}
}

// ----------------------------------------------------------------------
// Expressions

// Expr is the marker interface for every expression AST node.
type Expr interface {
	exprNode()
	Position() Position
	Type() Type
	SetType(Type)
}

// exprBase is embedded by every Expr implementation to supply Position,
// Type and SetType without repeating them on each node.
type exprBase struct {
	Pos Position
	Typ Type
}

func (e *exprBase) Position() Position { return e.Pos }
func (e *exprBase) Type() Type         { return e.Typ }
func (e *exprBase) SetType(t Type)     { e.Typ = t }

// UnaryOp enumerates the prefix operators valid as a Unary node's Op:
// logical not, bitwise complement, unary minus, and the (typed no-op)
// unary plus.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpComplement
	OpUnaryPlus
	OpUnaryMinus
)

// BinaryOp enumerates every binary expression operator, arithmetic
// through logical, including the short-circuit forms.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpLogicalAnd
	OpLogicalOr
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

// IncDecOp distinguishes ++ from -- for Prefix/Postfix nodes.
type IncDecOp int

const (
	OpIncrement IncDecOp = iota
	OpDecrement
)

type Constant struct {
	exprBase
	Value Const
}

func (*Constant) exprNode() {}

// Variable is a reference to a declared variable. Name starts as the
// source spelling and is rewritten to its uniquified form by variable
// resolution (spec.md §4.3).
type Variable struct {
	exprBase
	Name string
}

func (*Variable) exprNode() {}

type Unary struct {
	exprBase
	Op      UnaryOp
	Operand Expr
}

func (*Unary) exprNode() {}

type Binary struct {
	exprBase
	Op          BinaryOp
	Left, Right Expr
}

func (*Binary) exprNode() {}

// Assignment requires Left to be an lvalue (spec.md §4.2's lvalue
// classification); the parser rejects non-lvalue targets before this node
// is ever constructed.
type Assignment struct {
	exprBase
	Left, Right Expr
}

func (*Assignment) exprNode() {}

// Condition is the ternary `cond ? ifTrue : ifFalse`.
type Condition struct {
	exprBase
	Cond, IfTrue, IfFalse Expr
}

func (*Condition) exprNode() {}

type FunctionCall struct {
	exprBase
	Name string
	Args []Expr
}

func (*FunctionCall) exprNode() {}

// Prefix is prefix ++/-- on an lvalue operand.
type Prefix struct {
	exprBase
	Op      IncDecOp
	Operand Expr
}

func (*Prefix) exprNode() {}

// Postfix is postfix ++/-- on an lvalue operand.
type Postfix struct {
	exprBase
	Op      IncDecOp
	Operand Expr
}

func (*Postfix) exprNode() {}

// Cast is authoritative: its Typ is always the target type, inserted
// either explicitly by the parser or implicitly by the type checker
// (spec.md §4.4).
type Cast struct {
	exprBase
	Target  Type
	Operand Expr
}

func (*Cast) exprNode() {}

// IsLvalue reports whether e is assignable: a bare Variable, or a Prefix
// wrapping an lvalue (spec.md §4.2). Everything else — constants,
// binaries, casts, postfix, calls, parenthesised non-lvalues — is not.
func IsLvalue(e Expr) bool {
	switch v := e.(type) {
	case *Variable:
		return true
	case *Prefix:
		return IsLvalue(v.Operand)
	default:
		return false
	}
}

// ----------------------------------------------------------------------
// Statements

// Stmt is the marker interface for every statement AST node. Every
// concrete statement also satisfies BlockItem, so statements can appear
// directly in a Block's Items.
type Stmt interface {
	stmtNode()
	blockItemNode()
	Position() Position
}

type stmtBase struct {
	Pos Position
}

func (s *stmtBase) Position() Position { return s.Pos }

type ReturnStmt struct {
	stmtBase
	Expr Expr
}

func (*ReturnStmt) stmtNode()      {}
func (*ReturnStmt) blockItemNode() {}

type ExpressionStmt struct {
	stmtBase
	Expr Expr
}

func (*ExpressionStmt) stmtNode()      {}
func (*ExpressionStmt) blockItemNode() {}

type IfStmt struct {
	stmtBase
	Cond Expr
	Then Stmt
	Else Stmt // nil if there is no else branch
}

func (*IfStmt) stmtNode()      {}
func (*IfStmt) blockItemNode() {}

type CompoundStmt struct {
	stmtBase
	Block *Block
}

func (*CompoundStmt) stmtNode()      {}
func (*CompoundStmt) blockItemNode() {}

// BreakStmt's Label is populated by variable resolution with the
// enclosing loop's label (spec.md §4.3's loop label invariant).
type BreakStmt struct {
	stmtBase
	Label string
}

func (*BreakStmt) stmtNode()      {}
func (*BreakStmt) blockItemNode() {}

// ContinueStmt's IsFor records whether the enclosing loop is a for loop,
// so lowering can jump to the increment step rather than the loop start.
type ContinueStmt struct {
	stmtBase
	Label string
	IsFor bool
}

func (*ContinueStmt) stmtNode()      {}
func (*ContinueStmt) blockItemNode() {}

type WhileStmt struct {
	stmtBase
	Cond      Expr
	Body      Stmt
	Label     string
	IsDoWhile bool
}

func (*WhileStmt) stmtNode()      {}
func (*WhileStmt) blockItemNode() {}

type ForStmt struct {
	stmtBase
	Init  ForInit
	Cond  Expr // nil if omitted
	Post  Expr // nil if omitted
	Body  Stmt
	Label string
}

func (*ForStmt) stmtNode()      {}
func (*ForStmt) blockItemNode() {}

type NullStmt struct {
	stmtBase
}

func (*NullStmt) stmtNode()      {}
func (*NullStmt) blockItemNode() {}

// ForInit is either a variable declaration (introducing a new scope) or
// an optional expression.
type ForInit interface {
	forInitNode()
}

type InitDecl struct {
	Decl *VariableDecl
}

func (*InitDecl) forInitNode() {}

type InitExpr struct {
	Expr Expr // nil if the for-init clause is empty
}

func (*InitExpr) forInitNode() {}

// ----------------------------------------------------------------------
// Declarations and blocks

type StorageClass int

const (
	StorageNone StorageClass = iota
	StorageStatic
	StorageExtern
)

// Decl is the marker interface for top-level declarations.
type Decl interface {
	declNode()
	Position() Position
}

// FunctionDecl covers both prototypes (Body == nil) and definitions.
type FunctionDecl struct {
	Pos        Position
	Name       string
	Params     []string
	ParamTypes []Type
	ReturnType Type
	Body       *Block // nil for a prototype-only declaration
	Storage    StorageClass
}

func (*FunctionDecl) declNode()            {}
func (f *FunctionDecl) Position() Position { return f.Pos }

// VariableDecl appears both as a top-level Decl and, unchanged, as a
// BlockItem or a for-loop InitDecl.
type VariableDecl struct {
	Pos     Position
	Name    string
	Type    Type
	Init    Expr // nil if there is no initializer
	Storage StorageClass
}

func (*VariableDecl) declNode()            {}
func (v *VariableDecl) Position() Position { return v.Pos }
func (*VariableDecl) blockItemNode()       {}

// BlockItem is either a declaration or a statement; VariableDecl and every
// Stmt implementation satisfy it.
type BlockItem interface {
	blockItemNode()
}

type Block struct {
	Items []BlockItem
}

// Program is the root node: an ordered sequence of top-level
// declarations.
type Program struct {
	Decls []Decl
}
