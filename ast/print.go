package ast

import "encoding/json"

// DumpJSON renders prog as prettified JSON (mirroring the teacher's
// PrintASTJSON idiom), one "kind"-tagged map per node. Since this
// module's nodes carry no Accept method, dumping is itself an
// exhaustive type switch rather than a visitor walk.
func DumpJSON(prog *Program) (string, error) {
	decls := make([]any, 0, len(prog.Decls))
	for _, d := range prog.Decls {
		decls = append(decls, declToJSON(d))
	}
	bytes, err := json.MarshalIndent(decls, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func declToJSON(d Decl) any {
	switch v := d.(type) {
	case *FunctionDecl:
		var body any
		if v.Body != nil {
			body = blockToJSON(v.Body)
		}
		return map[string]any{
			"kind":       "FunctionDecl",
			"name":       v.Name,
			"params":     v.Params,
			"returnType": v.ReturnType.String(),
			"storage":    storageString(v.Storage),
			"body":       body,
		}
	case *VariableDecl:
		return variableDeclToJSON(v)
	default:
		return map[string]any{"kind": "unknown decl"}
	}
}

func variableDeclToJSON(v *VariableDecl) any {
	var init any
	if v.Init != nil {
		init = exprToJSON(v.Init)
	}
	return map[string]any{
		"kind":    "VariableDecl",
		"name":    v.Name,
		"type":    v.Type.String(),
		"storage": storageString(v.Storage),
		"init":    init,
	}
}

func storageString(s StorageClass) string {
	switch s {
	case StorageStatic:
		return "static"
	case StorageExtern:
		return "extern"
	default:
		return "none"
	}
}

func blockToJSON(b *Block) any {
	items := make([]any, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, blockItemToJSON(item))
	}
	return items
}

func blockItemToJSON(item BlockItem) any {
	if vd, ok := item.(*VariableDecl); ok {
		return variableDeclToJSON(vd)
	}
	return stmtToJSON(item.(Stmt))
}

func stmtToJSON(s Stmt) any {
	switch v := s.(type) {
	case *ReturnStmt:
		var expr any
		if v.Expr != nil {
			expr = exprToJSON(v.Expr)
		}
		return map[string]any{"kind": "ReturnStmt", "expr": expr}
	case *ExpressionStmt:
		return map[string]any{"kind": "ExpressionStmt", "expr": exprToJSON(v.Expr)}
	case *IfStmt:
		var elseBranch any
		if v.Else != nil {
			elseBranch = stmtToJSON(v.Else)
		}
		return map[string]any{
			"kind": "IfStmt",
			"cond": exprToJSON(v.Cond),
			"then": stmtToJSON(v.Then),
			"else": elseBranch,
		}
	case *CompoundStmt:
		return map[string]any{"kind": "CompoundStmt", "block": blockToJSON(v.Block)}
	case *BreakStmt:
		return map[string]any{"kind": "BreakStmt", "label": v.Label}
	case *ContinueStmt:
		return map[string]any{"kind": "ContinueStmt", "label": v.Label, "isFor": v.IsFor}
	case *WhileStmt:
		return map[string]any{
			"kind":      "WhileStmt",
			"cond":      exprToJSON(v.Cond),
			"body":      stmtToJSON(v.Body),
			"label":     v.Label,
			"isDoWhile": v.IsDoWhile,
		}
	case *ForStmt:
		var init any
		switch fi := v.Init.(type) {
		case *InitDecl:
			init = variableDeclToJSON(fi.Decl)
		case *InitExpr:
			if fi.Expr != nil {
				init = exprToJSON(fi.Expr)
			}
		}
		var cond, post any
		if v.Cond != nil {
			cond = exprToJSON(v.Cond)
		}
		if v.Post != nil {
			post = exprToJSON(v.Post)
		}
		return map[string]any{
			"kind":  "ForStmt",
			"init":  init,
			"cond":  cond,
			"post":  post,
			"body":  stmtToJSON(v.Body),
			"label": v.Label,
		}
	case *NullStmt:
		return map[string]any{"kind": "NullStmt"}
	default:
		return map[string]any{"kind": "unknown stmt"}
	}
}

func exprToJSON(e Expr) any {
	switch v := e.(type) {
	case *Constant:
		return map[string]any{"kind": "Constant", "value": v.Value.Value, "type": v.Type().String()}
	case *Variable:
		return map[string]any{"kind": "Variable", "name": v.Name, "type": v.Type().String()}
	case *Unary:
		return map[string]any{"kind": "Unary", "op": int(v.Op), "operand": exprToJSON(v.Operand), "type": v.Type().String()}
	case *Binary:
		return map[string]any{
			"kind": "Binary", "op": int(v.Op),
			"left": exprToJSON(v.Left), "right": exprToJSON(v.Right), "type": v.Type().String(),
		}
	case *Assignment:
		return map[string]any{"kind": "Assignment", "left": exprToJSON(v.Left), "right": exprToJSON(v.Right), "type": v.Type().String()}
	case *Condition:
		return map[string]any{
			"kind": "Condition", "cond": exprToJSON(v.Cond),
			"ifTrue": exprToJSON(v.IfTrue), "ifFalse": exprToJSON(v.IfFalse), "type": v.Type().String(),
		}
	case *FunctionCall:
		args := make([]any, 0, len(v.Args))
		for _, a := range v.Args {
			args = append(args, exprToJSON(a))
		}
		return map[string]any{"kind": "FunctionCall", "name": v.Name, "args": args, "type": v.Type().String()}
	case *Prefix:
		return map[string]any{"kind": "Prefix", "op": int(v.Op), "operand": exprToJSON(v.Operand), "type": v.Type().String()}
	case *Postfix:
		return map[string]any{"kind": "Postfix", "op": int(v.Op), "operand": exprToJSON(v.Operand), "type": v.Type().String()}
	case *Cast:
		return map[string]any{"kind": "Cast", "target": v.Target.String(), "operand": exprToJSON(v.Operand)}
	default:
		return map[string]any{"kind": "unknown expr"}
	}
}
