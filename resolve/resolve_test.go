package resolve

import (
	"testing"

	"nanoc/ast"
	"nanoc/errs"
	"nanoc/lexer"
	"nanoc/parser"
)

func resolveSource(t *testing.T, source string) *ast.Program {
	t.Helper()
	tokens := lexer.New(source).Scan()
	prog, err := parser.Parse(tokens)
	if err != nil {
		t.Fatalf("parse(%q): %v", source, err)
	}
	if err := Resolve(prog); err != nil {
		t.Fatalf("Resolve(%q): %v", source, err)
	}
	return prog
}

func resolveErr(t *testing.T, source string) error {
	t.Helper()
	tokens := lexer.New(source).Scan()
	prog, err := parser.Parse(tokens)
	if err != nil {
		t.Fatalf("parse(%q): %v", source, err)
	}
	err = Resolve(prog)
	if err == nil {
		t.Fatalf("Resolve(%q) = nil error, want a semantic error", source)
	}
	return err
}

func TestResolveUniquifiesLocalsAndParams(t *testing.T) {
	prog := resolveSource(t, "int main(void) { int x = 1; return x; }")
	fn := prog.Decls[0].(*ast.FunctionDecl)
	decl := fn.Body.Items[0].(*ast.VariableDecl)
	ret := fn.Body.Items[1].(*ast.ReturnStmt)
	variable := ret.Expr.(*ast.Variable)
	if decl.Name == "x" {
		t.Error("local declaration name was not uniquified")
	}
	if variable.Name != decl.Name {
		t.Errorf("reference %q does not match declaration %q", variable.Name, decl.Name)
	}
}

func TestResolveGlobalsKeepOriginalName(t *testing.T) {
	prog := resolveSource(t, "int counter; int main(void) { return counter; }")
	global := prog.Decls[0].(*ast.VariableDecl)
	if global.Name != "counter" {
		t.Errorf("global name = %q, want unchanged %q", global.Name, "counter")
	}
	fn := prog.Decls[1].(*ast.FunctionDecl)
	ret := fn.Body.Items[0].(*ast.ReturnStmt)
	if ret.Expr.(*ast.Variable).Name != "counter" {
		t.Errorf("reference to global = %q, want %q", ret.Expr.(*ast.Variable).Name, "counter")
	}
}

func TestResolveShadowingInNestedBlock(t *testing.T) {
	prog := resolveSource(t, `int main(void) {
		int x = 1;
		{
			int x = 2;
			return x;
		}
	}`)
	fn := prog.Decls[0].(*ast.FunctionDecl)
	outer := fn.Body.Items[0].(*ast.VariableDecl)
	inner := fn.Body.Items[1].(*ast.CompoundStmt).Block.Items[0].(*ast.VariableDecl)
	innerReturn := fn.Body.Items[1].(*ast.CompoundStmt).Block.Items[1].(*ast.ReturnStmt)
	if outer.Name == inner.Name {
		t.Errorf("shadowed declarations got the same unique name %q", outer.Name)
	}
	if innerReturn.Expr.(*ast.Variable).Name != inner.Name {
		t.Errorf("inner return refers to %q, want the inner declaration %q", innerReturn.Expr.(*ast.Variable).Name, inner.Name)
	}
}

func TestResolveDuplicateDeclarationSameScope(t *testing.T) {
	err := resolveErr(t, "int main(void) { int x = 1; int x = 2; return x; }")
	if !errs.IsSemantic(err) {
		t.Errorf("error = %v, want a Semantic CompileError", err)
	}
}

func TestResolveUndefinedVariable(t *testing.T) {
	err := resolveErr(t, "int main(void) { return y; }")
	if !errs.IsSemantic(err) {
		t.Errorf("error = %v, want a Semantic CompileError", err)
	}
}

func TestResolveSelfReferentialInitializerIsUndefined(t *testing.T) {
	err := resolveErr(t, "int main(void) { int x = x; return x; }")
	if !errs.IsSemantic(err) {
		t.Errorf("error = %v, want a Semantic CompileError", err)
	}
}

func TestResolveBreakContinueOutsideLoop(t *testing.T) {
	if err := resolveErr(t, "int main(void) { break; return 0; }"); !errs.IsSemantic(err) {
		t.Errorf("break outside loop: error = %v, want Semantic", err)
	}
	if err := resolveErr(t, "int main(void) { continue; return 0; }"); !errs.IsSemantic(err) {
		t.Errorf("continue outside loop: error = %v, want Semantic", err)
	}
}

func TestResolvePropagatesLoopLabelsToBreakAndContinue(t *testing.T) {
	prog := resolveSource(t, `int main(void) {
		while (1) {
			break;
			continue;
		}
		return 0;
	}`)
	fn := prog.Decls[0].(*ast.FunctionDecl)
	loop := fn.Body.Items[0].(*ast.WhileStmt)
	body := loop.Body.(*ast.CompoundStmt).Block
	brk := body.Items[0].(*ast.BreakStmt)
	cont := body.Items[1].(*ast.ContinueStmt)
	if brk.Label != loop.Label {
		t.Errorf("break label = %q, want loop label %q", brk.Label, loop.Label)
	}
	if cont.Label != loop.Label || cont.IsFor {
		t.Errorf("continue = {Label:%q IsFor:%v}, want {%q false}", cont.Label, cont.IsFor, loop.Label)
	}
}

func TestResolveForLoopContinueIsFor(t *testing.T) {
	prog := resolveSource(t, `int main(void) {
		for (int i = 0; i < 1; i = i + 1) {
			continue;
		}
		return 0;
	}`)
	fn := prog.Decls[0].(*ast.FunctionDecl)
	loop := fn.Body.Items[0].(*ast.ForStmt)
	cont := loop.Body.(*ast.CompoundStmt).Block.Items[0].(*ast.ContinueStmt)
	if !cont.IsFor {
		t.Error("continue inside a for loop must have IsFor == true")
	}
	if cont.Label != loop.Label {
		t.Errorf("continue label = %q, want %q", cont.Label, loop.Label)
	}
}

func TestResolveNestedLoopsBreakToInnermost(t *testing.T) {
	prog := resolveSource(t, `int main(void) {
		while (1) {
			while (1) {
				break;
			}
		}
		return 0;
	}`)
	fn := prog.Decls[0].(*ast.FunctionDecl)
	outer := fn.Body.Items[0].(*ast.WhileStmt)
	inner := outer.Body.(*ast.CompoundStmt).Block.Items[0].(*ast.WhileStmt)
	brk := inner.Body.(*ast.CompoundStmt).Block.Items[0].(*ast.BreakStmt)
	if brk.Label != inner.Label {
		t.Errorf("break label = %q, want innermost loop label %q", brk.Label, inner.Label)
	}
}

func TestResolveForLoopScopesItsOwnVariable(t *testing.T) {
	err := resolveErr(t, `int main(void) {
		for (int i = 0; i < 1; i = i + 1) { }
		return i;
	}`)
	if !errs.IsSemantic(err) {
		t.Errorf("reference to loop variable outside the loop: error = %v, want Semantic", err)
	}
}
