// Package parser turns a token stream into an ast.Program by
// precedence-climbing recursive descent. It is the first pass that can
// fail: malformed input is an *errs.CompileError of Kind Syntax
// (spec.md §4.2), and an assignment or ++/-- whose target is not an
// lvalue is one of Kind Semantic.
package parser

import (
	"strconv"

	"nanoc/ast"
	"nanoc/errs"
	"nanoc/token"
)

// precedence gives the binding power of every binary operator symbol.
// Symbols absent from this table are not binary operators at all (or are
// handled specially, like assignment and the ternary).
var precedence = map[token.Symbol]int{
	token.SymPipePipe: 5,
	token.SymAmpAmp:   10,
	token.SymPipe:     15,
	token.SymCaret:    20,
	token.SymAmp:      25,
	token.SymEq:       30,
	token.SymNe:       30,
	token.SymLt:       35,
	token.SymLe:       35,
	token.SymGt:       35,
	token.SymGe:       35,
	token.SymShl:      40,
	token.SymShr:      40,
	token.SymPlus:     45,
	token.SymMinus:    45,
	token.SymStar:     50,
	token.SymSlash:    50,
	token.SymPercent:  50,
}

const assignPrecedence = 1
const ternaryPrecedence = 3

// binaryOps maps an operator symbol to the ast.BinaryOp it builds.
var binaryOps = map[token.Symbol]ast.BinaryOp{
	token.SymPlus:     ast.OpAdd,
	token.SymMinus:    ast.OpSub,
	token.SymStar:     ast.OpMul,
	token.SymSlash:    ast.OpDiv,
	token.SymPercent:  ast.OpMod,
	token.SymAmp:      ast.OpBitAnd,
	token.SymPipe:     ast.OpBitOr,
	token.SymCaret:    ast.OpBitXor,
	token.SymShl:      ast.OpShl,
	token.SymShr:      ast.OpShr,
	token.SymAmpAmp:   ast.OpLogicalAnd,
	token.SymPipePipe: ast.OpLogicalOr,
	token.SymEq:       ast.OpEqual,
	token.SymNe:       ast.OpNotEqual,
	token.SymLt:       ast.OpLess,
	token.SymLe:       ast.OpLessEqual,
	token.SymGt:       ast.OpGreater,
	token.SymGe:       ast.OpGreaterEqual,
}

// compoundAssignable is the set of binary operator symbols that may be
// immediately followed by '=' to form a compound assignment (spec.md
// §4.2). Comparison and logical operators have no compound form in C.
var compoundAssignable = map[token.Symbol]bool{
	token.SymPlus:    true,
	token.SymMinus:   true,
	token.SymStar:    true,
	token.SymSlash:   true,
	token.SymPercent: true,
	token.SymAmp:     true,
	token.SymPipe:    true,
	token.SymCaret:   true,
	token.SymShl:     true,
	token.SymShr:     true,
}

// Parser consumes a flat token slice with a single cursor, in the style of
// a classic recursive-descent cursor: peek/advance/check/match/expect.
type Parser struct {
	tokens      []token.Token
	pos         int
	function    string // name of the function currently being parsed, for Position
	loopCounter int    // next fresh loop label suffix (spec.md §4.2)
}

// nextLoopLabel allocates a fresh, monotonically increasing loop label.
// Loop labels are assigned here, at parse time, not during variable
// resolution; resolution only propagates an already-assigned label down
// into the break/continue nodes of its loop body.
func (p *Parser) nextLoopLabel() string {
	label := strconv.Itoa(p.loopCounter)
	p.loopCounter++
	return label
}

// Parse builds a complete ast.Program from tokens, or returns the first
// *errs.CompileError encountered.
func Parse(tokens []token.Token) (*ast.Program, error) {
	p := &Parser{tokens: tokens}
	var decls []ast.Decl
	for !p.atEnd() {
		decl, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return &ast.Program{Decls: decls}, nil
}

// ----------------------------------------------------------------------
// Cursor primitives

func (p *Parser) current() token.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) advance() token.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.current().Kind == token.KindEOF
}

func (p *Parser) pos_() ast.Position {
	return ast.Position{Line: p.current().Line, Function: p.function}
}

func (p *Parser) checkSymbol(sym token.Symbol) bool {
	tok := p.current()
	return tok.Kind == token.KindSymbol && tok.Symbol == sym
}

func (p *Parser) checkKeyword(kw token.Keyword) bool {
	tok := p.current()
	return tok.Kind == token.KindKeyword && tok.Keyword == kw
}

func (p *Parser) matchSymbol(sym token.Symbol) bool {
	if p.checkSymbol(sym) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchKeyword(kw token.Keyword) bool {
	if p.checkKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectSymbol(sym token.Symbol) (token.Token, error) {
	if !p.checkSymbol(sym) {
		return token.Token{}, errs.SyntaxErrorf(p.pos_(), "expected %q, found %s", sym, p.current())
	}
	return p.advance(), nil
}

func (p *Parser) expectName() (string, error) {
	if p.current().Kind != token.KindName {
		return "", errs.SyntaxErrorf(p.pos_(), "expected an identifier, found %s", p.current())
	}
	return p.advance().Name, nil
}

func (p *Parser) isTypeKeywordStart() bool {
	tok := p.current()
	return tok.Kind == token.KindKeyword && tok.Keyword.IsTypeKeyword()
}

func (p *Parser) isStorageKeywordStart() bool {
	return p.checkKeyword(token.KwStatic) || p.checkKeyword(token.KwExtern)
}

func (p *Parser) isDeclarationStart() bool {
	return p.isTypeKeywordStart() || p.isStorageKeywordStart()
}

// ----------------------------------------------------------------------
// Declaration specifiers: an unordered run of type and storage-class
// keywords (spec.md §4.2's "specifiers" production).

func (p *Parser) parseSpecifiers() (ast.Type, ast.StorageClass, error) {
	var typeKws []token.Keyword
	storage := ast.StorageNone
	sawStorage := false

	for p.isDeclarationStart() {
		tok := p.current()
		if tok.Keyword == token.KwStatic || tok.Keyword == token.KwExtern {
			if sawStorage {
				return 0, 0, errs.SyntaxErrorf(p.pos_(), "multiple storage-class specifiers")
			}
			sawStorage = true
			if tok.Keyword == token.KwStatic {
				storage = ast.StorageStatic
			} else {
				storage = ast.StorageExtern
			}
			p.advance()
			continue
		}
		typeKws = append(typeKws, tok.Keyword)
		p.advance()
	}

	typ, err := resolveTypeKeywords(p.pos_(), typeKws)
	if err != nil {
		return 0, 0, err
	}
	return typ, storage, nil
}

// resolveTypeKeywords classifies a run of int/long/unsigned/void keywords
// into a single ast.Type, the way a C declarator's type-specifier list
// is resolved.
func resolveTypeKeywords(pos ast.Position, kws []token.Keyword) (ast.Type, error) {
	if len(kws) == 0 {
		return 0, errs.SyntaxErrorf(pos, "expected a type specifier")
	}
	var hasInt, hasLong, hasUnsigned, hasVoid bool
	for _, kw := range kws {
		switch kw {
		case token.KwInt:
			hasInt = true
		case token.KwLong:
			hasLong = true
		case token.KwUnsigned:
			hasUnsigned = true
		case token.KwVoid:
			hasVoid = true
		}
	}
	if hasVoid {
		if hasInt || hasLong || hasUnsigned {
			return 0, errs.SyntaxErrorf(pos, "void cannot be combined with other type specifiers")
		}
		return ast.TVoid, nil
	}
	switch {
	case hasUnsigned && hasLong:
		return ast.TULong, nil
	case hasUnsigned:
		return ast.TUInt, nil
	case hasLong:
		return ast.TLong, nil
	default:
		return ast.TInt, nil
	}
}

// ----------------------------------------------------------------------
// Top-level declarations

func (p *Parser) parseDeclaration() (ast.Decl, error) {
	pos := p.pos_()
	typ, storage, err := p.parseSpecifiers()
	if err != nil {
		return nil, err
	}
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if p.checkSymbol(token.SymLParen) {
		return p.parseFunctionDecl(pos, name, typ, storage)
	}
	return p.parseVariableDeclRest(pos, name, typ, storage)
}

func (p *Parser) parseFunctionDecl(pos ast.Position, name string, ret ast.Type, storage ast.StorageClass) (*ast.FunctionDecl, error) {
	if _, err := p.expectSymbol(token.SymLParen); err != nil {
		return nil, err
	}
	params, paramTypes, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymRParen); err != nil {
		return nil, err
	}

	decl := &ast.FunctionDecl{
		Pos: pos, Name: name, Params: params, ParamTypes: paramTypes,
		ReturnType: ret, Storage: storage,
	}

	if p.matchSymbol(token.SymSemicolon) {
		return decl, nil
	}

	prevFunction := p.function
	p.function = name
	body, err := p.parseBlock()
	p.function = prevFunction
	if err != nil {
		return nil, err
	}
	decl.Body = body
	return decl, nil
}

func (p *Parser) parseParamList() ([]string, []ast.Type, error) {
	if p.checkKeyword(token.KwVoid) && p.peekAt(1).Kind == token.KindSymbol && p.peekAt(1).Symbol == token.SymRParen {
		p.advance()
		return nil, nil, nil
	}
	if p.checkSymbol(token.SymRParen) {
		return nil, nil, nil
	}

	var names []string
	var types []ast.Type
	for {
		typ, storage, err := p.parseSpecifiers()
		if err != nil {
			return nil, nil, err
		}
		if storage != ast.StorageNone {
			return nil, nil, errs.SyntaxErrorf(p.pos_(), "parameters cannot have a storage-class specifier")
		}
		name, err := p.expectName()
		if err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		types = append(types, typ)
		if !p.matchSymbol(token.SymComma) {
			break
		}
	}
	return names, types, nil
}

func (p *Parser) parseVariableDeclRest(pos ast.Position, name string, typ ast.Type, storage ast.StorageClass) (*ast.VariableDecl, error) {
	decl := &ast.VariableDecl{Pos: pos, Name: name, Type: typ, Storage: storage}
	if p.matchSymbol(token.SymAssign) {
		init, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
		return nil, err
	}
	return decl, nil
}

// ----------------------------------------------------------------------
// Blocks and statements

func (p *Parser) parseBlock() (*ast.Block, error) {
	if _, err := p.expectSymbol(token.SymLBrace); err != nil {
		return nil, err
	}
	var items []ast.BlockItem
	for !p.checkSymbol(token.SymRBrace) && !p.atEnd() {
		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := p.expectSymbol(token.SymRBrace); err != nil {
		return nil, err
	}
	return &ast.Block{Items: items}, nil
}

func (p *Parser) parseBlockItem() (ast.BlockItem, error) {
	if p.isDeclarationStart() {
		decl, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		vd, ok := decl.(*ast.VariableDecl)
		if !ok {
			return nil, errs.SyntaxErrorf(p.pos_(), "nested function definitions are not allowed")
		}
		return vd, nil
	}
	return p.parseStatement()
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	pos := p.pos_()
	switch {
	case p.matchKeyword(token.KwReturn):
		return p.parseReturnStatement(pos)
	case p.matchKeyword(token.KwIf):
		return p.parseIfStatement(pos)
	case p.checkSymbol(token.SymLBrace):
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.CompoundStmt{Pos: pos, Block: block}, nil
	case p.matchKeyword(token.KwBreak):
		if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Pos: pos}, nil
	case p.matchKeyword(token.KwContinue):
		if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Pos: pos}, nil
	case p.matchKeyword(token.KwWhile):
		return p.parseWhileStatement(pos)
	case p.matchKeyword(token.KwDo):
		return p.parseDoWhileStatement(pos)
	case p.matchKeyword(token.KwFor):
		return p.parseForStatement(pos)
	case p.matchSymbol(token.SymSemicolon):
		return &ast.NullStmt{Pos: pos}, nil
	default:
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
			return nil, err
		}
		return &ast.ExpressionStmt{Pos: pos, Expr: expr}, nil
	}
}

func (p *Parser) parseReturnStatement(pos ast.Position) (ast.Stmt, error) {
	expr, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Pos: pos, Expr: expr}, nil
}

func (p *Parser) parseIfStatement(pos ast.Position) (ast.Stmt, error) {
	if _, err := p.expectSymbol(token.SymLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymRParen); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	ifStmt := &ast.IfStmt{Pos: pos, Cond: cond, Then: then}
	if p.matchKeyword(token.KwElse) {
		elseStmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		ifStmt.Else = elseStmt
	}
	return ifStmt, nil
}

func (p *Parser) parseWhileStatement(pos ast.Position) (ast.Stmt, error) {
	label := p.nextLoopLabel()
	if _, err := p.expectSymbol(token.SymLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymRParen); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Pos: pos, Cond: cond, Body: body, Label: label}, nil
}

func (p *Parser) parseDoWhileStatement(pos ast.Position) (ast.Stmt, error) {
	label := p.nextLoopLabel()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwWhile); err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymRParen); err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Pos: pos, Cond: cond, Body: body, Label: label, IsDoWhile: true}, nil
}

func (p *Parser) expectKeyword(kw token.Keyword) (token.Token, error) {
	if !p.checkKeyword(kw) {
		return token.Token{}, errs.SyntaxErrorf(p.pos_(), "expected keyword %q, found %s", kw, p.current())
	}
	return p.advance(), nil
}

func (p *Parser) parseForStatement(pos ast.Position) (ast.Stmt, error) {
	label := p.nextLoopLabel()
	if _, err := p.expectSymbol(token.SymLParen); err != nil {
		return nil, err
	}
	init, err := p.parseForInit()
	if err != nil {
		return nil, err
	}

	var cond ast.Expr
	if !p.checkSymbol(token.SymSemicolon) {
		cond, err = p.parseExpression(0)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
		return nil, err
	}

	var post ast.Expr
	if !p.checkSymbol(token.SymRParen) {
		post, err = p.parseExpression(0)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectSymbol(token.SymRParen); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Pos: pos, Init: init, Cond: cond, Post: post, Body: body, Label: label}, nil
}

func (p *Parser) parseForInit() (ast.ForInit, error) {
	if p.isDeclarationStart() {
		decl, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		vd, ok := decl.(*ast.VariableDecl)
		if !ok {
			return nil, errs.SyntaxErrorf(p.pos_(), "a for-loop initializer cannot be a function declaration")
		}
		return &ast.InitDecl{Decl: vd}, nil
	}
	if p.matchSymbol(token.SymSemicolon) {
		return &ast.InitExpr{}, nil
	}
	expr, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(token.SymSemicolon); err != nil {
		return nil, err
	}
	return &ast.InitExpr{Expr: expr}, nil
}

// ----------------------------------------------------------------------
// Expressions: precedence climbing

func (p *Parser) parseExpression(minPrec int) (ast.Expr, error) {
	left, err := p.parseCastOrUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()

		if tok.Kind == token.KindSymbol && tok.Symbol == token.SymAssign && assignPrecedence >= minPrec {
			pos := ast.Position{Line: tok.Line, Function: p.function}
			if !ast.IsLvalue(left) {
				return nil, errs.SemanticErrorf(pos, "left-hand side of assignment is not assignable")
			}
			p.advance()
			right, err := p.parseExpression(assignPrecedence)
			if err != nil {
				return nil, err
			}
			left = &ast.Assignment{Left: left, Right: right, Pos: pos}
			continue
		}

		if tok.Kind == token.KindSymbol && compoundAssignable[tok.Symbol] &&
			p.peekAt(1).Kind == token.KindSymbol && p.peekAt(1).Symbol == token.SymAssign &&
			assignPrecedence >= minPrec {
			pos := ast.Position{Line: tok.Line, Function: p.function}
			if !ast.IsLvalue(left) {
				return nil, errs.SemanticErrorf(pos, "left-hand side of compound assignment is not assignable")
			}
			op := binaryOps[tok.Symbol]
			p.advance() // operator symbol
			p.advance() // '='
			rhs, err := p.parseExpression(assignPrecedence)
			if err != nil {
				return nil, err
			}
			// The binary's left operand is a fresh node for the base
			// variable (Prefix wrappers removed), so later passes never
			// see one node under two parents.
			base := left
			for {
				pre, ok := base.(*ast.Prefix)
				if !ok {
					break
				}
				base = pre.Operand
			}
			v := base.(*ast.Variable)
			operand := &ast.Variable{Name: v.Name}
			operand.Pos = v.Pos
			combined := &ast.Binary{Op: op, Left: operand, Right: rhs, Pos: pos}
			left = &ast.Assignment{Left: left, Right: combined, Pos: pos}
			continue
		}

		if tok.Kind == token.KindSymbol && tok.Symbol == token.SymQuestion && ternaryPrecedence >= minPrec {
			pos := ast.Position{Line: tok.Line, Function: p.function}
			p.advance()
			thenExpr, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol(token.SymColon); err != nil {
				return nil, err
			}
			elseExpr, err := p.parseExpression(ternaryPrecedence)
			if err != nil {
				return nil, err
			}
			left = &ast.Condition{Cond: left, IfTrue: thenExpr, IfFalse: elseExpr, Pos: pos}
			continue
		}

		prec, isBinary := precedence[tok.Symbol]
		if tok.Kind != token.KindSymbol || !isBinary || prec < minPrec {
			break
		}
		pos := ast.Position{Line: tok.Line, Function: p.function}
		op := binaryOps[tok.Symbol]
		p.advance()
		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: pos}
	}

	return left, nil
}

// parseCastOrUnary handles an explicit cast "(type) expr" by lookahead:
// an opening paren immediately followed by a type keyword is a cast, not
// a parenthesised expression.
func (p *Parser) parseCastOrUnary() (ast.Expr, error) {
	if p.checkSymbol(token.SymLParen) {
		next := p.peekAt(1)
		if next.Kind == token.KindKeyword && next.Keyword.IsTypeKeyword() {
			pos := p.pos_()
			p.advance()
			target, _, err := p.parseSpecifiers()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol(token.SymRParen); err != nil {
				return nil, err
			}
			operand, err := p.parseCastOrUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Cast{Target: target, Operand: operand, Pos: pos}, nil
		}
	}
	return p.parseUnary()
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	tok := p.current()
	pos := ast.Position{Line: tok.Line, Function: p.function}

	if tok.Kind == token.KindSymbol {
		switch tok.Symbol {
		case token.SymBang:
			p.advance()
			operand, err := p.parseCastOrUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: ast.OpNot, Operand: operand, Pos: pos}, nil
		case token.SymTilde:
			p.advance()
			operand, err := p.parseCastOrUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: ast.OpComplement, Operand: operand, Pos: pos}, nil
		case token.SymMinus:
			p.advance()
			operand, err := p.parseCastOrUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: ast.OpUnaryMinus, Operand: operand, Pos: pos}, nil
		case token.SymPlus:
			p.advance()
			operand, err := p.parseCastOrUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: ast.OpUnaryPlus, Operand: operand, Pos: pos}, nil
		case token.SymIncrement:
			p.advance()
			operand, err := p.parseCastOrUnary()
			if err != nil {
				return nil, err
			}
			if !ast.IsLvalue(operand) {
				return nil, errs.SemanticErrorf(pos, "operand of prefix ++ must be assignable")
			}
			return &ast.Prefix{Op: ast.OpIncrement, Operand: operand, Pos: pos}, nil
		case token.SymDecrement:
			p.advance()
			operand, err := p.parseCastOrUnary()
			if err != nil {
				return nil, err
			}
			if !ast.IsLvalue(operand) {
				return nil, errs.SemanticErrorf(pos, "operand of prefix -- must be assignable")
			}
			return &ast.Prefix{Op: ast.OpDecrement, Operand: operand, Pos: pos}, nil
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.Kind != token.KindSymbol {
			return expr, nil
		}
		pos := ast.Position{Line: tok.Line, Function: p.function}
		switch tok.Symbol {
		case token.SymIncrement:
			if !ast.IsLvalue(expr) {
				return nil, errs.SemanticErrorf(pos, "operand of postfix ++ must be assignable")
			}
			p.advance()
			expr = &ast.Postfix{Op: ast.OpIncrement, Operand: expr, Pos: pos}
		case token.SymDecrement:
			if !ast.IsLvalue(expr) {
				return nil, errs.SemanticErrorf(pos, "operand of postfix -- must be assignable")
			}
			p.advance()
			expr = &ast.Postfix{Op: ast.OpDecrement, Operand: expr, Pos: pos}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.current()
	pos := ast.Position{Line: tok.Line, Function: p.function}

	switch tok.Kind {
	case token.KindNumber:
		p.advance()
		return &ast.Constant{Value: ast.ConstFromLiteral(tok.Number), Pos: pos}, nil
	case token.KindName:
		p.advance()
		if p.matchSymbol(token.SymLParen) {
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol(token.SymRParen); err != nil {
				return nil, err
			}
			return &ast.FunctionCall{Name: tok.Name, Args: args, Pos: pos}, nil
		}
		return &ast.Variable{Name: tok.Name, Pos: pos}, nil
	case token.KindSymbol:
		if tok.Symbol == token.SymLParen {
			p.advance()
			expr, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol(token.SymRParen); err != nil {
				return nil, err
			}
			return expr, nil
		}
	}
	return nil, errs.SyntaxErrorf(pos, "expected an expression, found %s", tok)
}

func (p *Parser) parseArgList() ([]ast.Expr, error) {
	if p.checkSymbol(token.SymRParen) {
		return nil, nil
	}
	var args []ast.Expr
	for {
		arg, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.matchSymbol(token.SymComma) {
			break
		}
	}
	return args, nil
}
