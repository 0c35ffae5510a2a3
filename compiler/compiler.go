// Package compiler wires the pipeline's passes into the single entry
// point the CLI and tests call: lex, parse, resolve, type-check, lower
// to TAC, lower to assembly, fix up, emit. Grounded on the teacher's
// Compile()/CompileAST() shape (run the phases in sequence, return the
// first error) adapted from bytecode compilation to text-assembly
// generation.
package compiler

import (
	"nanoc/asmgen"
	"nanoc/ast"
	"nanoc/emit"
	"nanoc/lexer"
	"nanoc/parser"
	"nanoc/resolve"
	"nanoc/tac"
	"nanoc/typecheck"
)

// Compile runs the full pipeline over source and returns the generated
// AT&T-syntax assembly text.
func Compile(source []byte) (string, error) {
	prog, _, err := compileToAsm(source)
	if err != nil {
		return "", err
	}
	return emit.Program(prog), nil
}

// ParseTree runs only the lexer, parser and variable-resolution passes
// and returns the resulting AST, for the `ast` subcommand's dump
// output.
func ParseTree(source []byte) (*ast.Program, error) {
	tokens := lexer.New(string(source)).Scan()
	prog, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	if err := resolve.Resolve(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// compileToAsm runs every pass through asmgen, returning both the
// assembly program and the type-checked symbol table (the latter is
// unused today but mirrors the teacher's habit of returning the richer
// intermediate result alongside the final one).
func compileToAsm(source []byte) (*asmgen.Program, *typecheck.Result, error) {
	tokens := lexer.New(string(source)).Scan()
	prog, err := parser.Parse(tokens)
	if err != nil {
		return nil, nil, err
	}
	if err := resolve.Resolve(prog); err != nil {
		return nil, nil, err
	}
	typed, err := typecheck.Check(prog)
	if err != nil {
		return nil, nil, err
	}
	tacProg, err := tac.Generate(prog, typed)
	if err != nil {
		return nil, nil, err
	}
	return asmgen.Lower(prog, tacProg, typed), typed, nil
}
