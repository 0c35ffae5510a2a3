// Package resolve performs variable resolution over a parsed ast.Program:
// it uniquifies every local variable name to its "<function>::<name>::
// <layer>" form, rewrites every Variable reference to the uniquified name
// of its innermost visible declaration, and propagates each loop's label
// (already assigned by the parser) down into its Break/Continue nodes
// (spec.md §4.3).
package resolve

import (
	"fmt"

	"nanoc/ast"
	"nanoc/errs"
)

type varEntry struct {
	layer  int
	unique string
}

type loopCtx struct {
	label string
	isFor bool
}

type resolver struct {
	function string
	layer    int
	vars     map[string][]varEntry
	loops    []loopCtx
}

// Resolve mutates prog in place and returns the first *errs.CompileError
// encountered, if any.
func Resolve(prog *ast.Program) error {
	r := &resolver{vars: map[string][]varEntry{}}
	for _, decl := range prog.Decls {
		if err := r.resolveTopLevelDecl(decl); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) declare(pos ast.Position, name string, layer int, unique string) error {
	stack := r.vars[name]
	if len(stack) > 0 && stack[len(stack)-1].layer == layer {
		return errs.SemanticErrorf(pos, "duplicate variable declaration: %s", name)
	}
	r.vars[name] = append(stack, varEntry{layer: layer, unique: unique})
	return nil
}

func (r *resolver) lookup(pos ast.Position, name string) (string, error) {
	stack := r.vars[name]
	if len(stack) == 0 {
		return "", errs.SemanticErrorf(pos, "undefined variable: %s", name)
	}
	return stack[len(stack)-1].unique, nil
}

// popLayer discards every visible declaration introduced at exactly
// layer, as the traversal exits the block that introduced it.
func (r *resolver) popLayer(layer int) {
	for name, stack := range r.vars {
		for len(stack) > 0 && stack[len(stack)-1].layer == layer {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			delete(r.vars, name)
		} else {
			r.vars[name] = stack
		}
	}
}

func (r *resolver) resolveTopLevelDecl(decl ast.Decl) error {
	switch d := decl.(type) {
	case *ast.VariableDecl:
		return r.declareGlobal(d)
	case *ast.FunctionDecl:
		return r.resolveFunction(d)
	default:
		return errs.SemanticErrorf(decl.Position(), "unknown top-level declaration")
	}
}

// declareGlobal registers a file-scope variable under its original
// spelling: globals are never uniquified, since the emitted assembly and
// other translation units address them by that exact name.
func (r *resolver) declareGlobal(d *ast.VariableDecl) error {
	if d.Init != nil {
		if err := r.resolveExpr(d.Init); err != nil {
			return err
		}
	}
	return r.declare(d.Pos, d.Name, 0, d.Name)
}

func (r *resolver) resolveFunction(fd *ast.FunctionDecl) error {
	prevFunction := r.function
	r.function = fd.Name
	r.layer++
	defer func() {
		r.popLayer(r.layer)
		r.layer--
		r.function = prevFunction
	}()

	for i, name := range fd.Params {
		unique := r.uniquify(name)
		if err := r.declare(fd.Pos, name, r.layer, unique); err != nil {
			return err
		}
		fd.Params[i] = unique
	}

	if fd.Body == nil {
		return nil
	}
	return r.resolveBlockItems(fd.Body.Items)
}

func (r *resolver) uniquify(name string) string {
	return fmt.Sprintf("%s::%s::%d", r.function, name, r.layer)
}

func (r *resolver) resolveBlockItems(items []ast.BlockItem) error {
	for _, item := range items {
		switch v := item.(type) {
		case *ast.VariableDecl:
			if err := r.resolveLocalVarDecl(v); err != nil {
				return err
			}
		case ast.Stmt:
			if err := r.resolveStmt(v); err != nil {
				return err
			}
		default:
			return errs.SemanticErrorf(ast.Position{Function: r.function}, "unknown block item")
		}
	}
	return nil
}

// resolveLocalVarDecl resolves the initializer in the enclosing scope
// (before the name becomes visible, so "int x = x;" reports an undefined
// reference) and only then introduces the uniquified declaration.
func (r *resolver) resolveLocalVarDecl(vd *ast.VariableDecl) error {
	if vd.Init != nil {
		if err := r.resolveExpr(vd.Init); err != nil {
			return err
		}
	}
	unique := r.uniquify(vd.Name)
	if err := r.declare(vd.Pos, vd.Name, r.layer, unique); err != nil {
		return err
	}
	vd.Name = unique
	return nil
}

func (r *resolver) resolveStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case *ast.ReturnStmt:
		if v.Expr != nil {
			return r.resolveExpr(v.Expr)
		}
		return nil
	case *ast.ExpressionStmt:
		return r.resolveExpr(v.Expr)
	case *ast.IfStmt:
		if err := r.resolveExpr(v.Cond); err != nil {
			return err
		}
		if err := r.resolveStmt(v.Then); err != nil {
			return err
		}
		if v.Else != nil {
			return r.resolveStmt(v.Else)
		}
		return nil
	case *ast.CompoundStmt:
		r.layer++
		defer func() { r.popLayer(r.layer); r.layer-- }()
		return r.resolveBlockItems(v.Block.Items)
	case *ast.BreakStmt:
		if len(r.loops) == 0 {
			return errs.SemanticErrorf(v.Pos, "break statement outside of a loop")
		}
		v.Label = r.loops[len(r.loops)-1].label
		return nil
	case *ast.ContinueStmt:
		if len(r.loops) == 0 {
			return errs.SemanticErrorf(v.Pos, "continue statement outside of a loop")
		}
		top := r.loops[len(r.loops)-1]
		v.Label = top.label
		v.IsFor = top.isFor
		return nil
	case *ast.WhileStmt:
		if err := r.resolveExpr(v.Cond); err != nil {
			return err
		}
		r.loops = append(r.loops, loopCtx{label: v.Label, isFor: false})
		defer func() { r.loops = r.loops[:len(r.loops)-1] }()
		return r.resolveStmt(v.Body)
	case *ast.ForStmt:
		r.layer++
		defer func() { r.popLayer(r.layer); r.layer-- }()
		if err := r.resolveForInit(v.Init); err != nil {
			return err
		}
		if v.Cond != nil {
			if err := r.resolveExpr(v.Cond); err != nil {
				return err
			}
		}
		if v.Post != nil {
			if err := r.resolveExpr(v.Post); err != nil {
				return err
			}
		}
		r.loops = append(r.loops, loopCtx{label: v.Label, isFor: true})
		defer func() { r.loops = r.loops[:len(r.loops)-1] }()
		return r.resolveStmt(v.Body)
	case *ast.NullStmt:
		return nil
	default:
		return errs.SemanticErrorf(s.Position(), "unknown statement")
	}
}

func (r *resolver) resolveForInit(init ast.ForInit) error {
	switch v := init.(type) {
	case *ast.InitDecl:
		return r.resolveLocalVarDecl(v.Decl)
	case *ast.InitExpr:
		if v.Expr != nil {
			return r.resolveExpr(v.Expr)
		}
		return nil
	default:
		return errs.SemanticErrorf(ast.Position{Function: r.function}, "unknown for-init")
	}
}

func (r *resolver) resolveExpr(e ast.Expr) error {
	switch v := e.(type) {
	case *ast.Constant:
		return nil
	case *ast.Variable:
		unique, err := r.lookup(v.Pos, v.Name)
		if err != nil {
			return err
		}
		v.Name = unique
		return nil
	case *ast.Unary:
		return r.resolveExpr(v.Operand)
	case *ast.Binary:
		if err := r.resolveExpr(v.Left); err != nil {
			return err
		}
		return r.resolveExpr(v.Right)
	case *ast.Assignment:
		if err := r.resolveExpr(v.Left); err != nil {
			return err
		}
		return r.resolveExpr(v.Right)
	case *ast.Condition:
		if err := r.resolveExpr(v.Cond); err != nil {
			return err
		}
		if err := r.resolveExpr(v.IfTrue); err != nil {
			return err
		}
		return r.resolveExpr(v.IfFalse)
	case *ast.FunctionCall:
		for _, arg := range v.Args {
			if err := r.resolveExpr(arg); err != nil {
				return err
			}
		}
		return nil
	case *ast.Prefix:
		return r.resolveExpr(v.Operand)
	case *ast.Postfix:
		return r.resolveExpr(v.Operand)
	case *ast.Cast:
		return r.resolveExpr(v.Operand)
	default:
		return errs.SemanticErrorf(e.Position(), "unknown expression")
	}
}
