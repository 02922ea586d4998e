package checker

import (
	"anzu/pkg/ast"
	"anzu/pkg/builtins"
	"anzu/pkg/diag"
	"anzu/pkg/token"
	"anzu/pkg/types"
)

// checkExpr type-checks e, annotates its ResolvedType, and returns that
// type.
func (c *Checker) checkExpr(e ast.Expr) (types.Type, error) {
	t, err := c.inferExpr(e)
	if err != nil {
		return types.Type{}, err
	}
	setResolved(e, t)
	return t, nil
}

func (c *Checker) inferExpr(e ast.Expr) (types.Type, error) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		switch n.Pos().Kind {
		case token.INT32:
			return types.I32, nil
		case token.UINT64:
			return types.U64, nil
		default:
			return types.I64, nil
		}
	case *ast.FloatLiteral:
		return types.F64, nil
	case *ast.BoolLiteral:
		return types.Bool, nil
	case *ast.CharLiteral:
		return types.Char, nil
	case *ast.StringLiteral:
		return types.NewSpan(types.Char), nil
	case *ast.NullLiteral:
		return types.Null, nil
	case *ast.NullptrLiteral:
		return types.NewPtr(types.Void), nil
	case *ast.NameRef:
		return c.inferNameRef(n)
	case *ast.UnaryExpr:
		return c.inferUnary(n)
	case *ast.BinaryExpr:
		return c.inferBinary(n)
	case *ast.LogicalExpr:
		return c.inferLogical(n)
	case *ast.AddressOfExpr:
		t, err := c.checkExpr(n.Operand)
		if err != nil {
			return types.Type{}, err
		}
		return types.NewPtr(t), nil
	case *ast.DerefExpr:
		return c.inferDeref(n)
	case *ast.ConstExpr:
		return c.checkExpr(n.Operand)
	case *ast.CallExpr:
		return c.inferCall(n)
	case *ast.MethodCallExpr:
		return c.inferMethodCall(n)
	case *ast.FieldAccessExpr:
		return c.inferFieldAccess(n)
	case *ast.IndexExpr:
		return c.inferIndex(n)
	case *ast.SpanExpr:
		return c.inferSpan(n)
	case *ast.ArrayLiteral:
		return c.inferArrayLiteral(n)
	case *ast.RepeatArrayLiteral:
		return c.inferRepeatArrayLiteral(n)
	case *ast.StructLiteral:
		return c.inferStructLiteral(n)
	case *ast.TypeofExpr:
		t, err := c.checkExpr(n.Operand)
		if err != nil {
			return types.Type{}, err
		}
		return t, nil
	case *ast.SizeofExpr:
		if n.Operand != nil {
			if _, err := c.checkExpr(n.Operand); err != nil {
				return types.Type{}, err
			}
		}
		return types.U64, nil
	case *ast.NewExpr:
		return c.inferNew(n)
	default:
		return types.Type{}, diag.Errorf(diag.Syntax, e.Pos().Line, e.Pos().Col, "checker: unhandled expression %T", e)
	}
}

func (c *Checker) inferNameRef(n *ast.NameRef) (types.Type, error) {
	if s, ok := c.lookup(n.Name); ok {
		return s.typ, nil
	}
	if g, ok := c.Globals[n.Name]; ok {
		return g, nil
	}
	if sig, ok := c.Funcs[n.Name]; ok {
		return types.NewFunctionPtr(sig.Params, sig.Return), nil
	}
	return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "undefined name %q", n.Name)
}

func (c *Checker) inferUnary(n *ast.UnaryExpr) (types.Type, error) {
	t, err := c.checkExpr(n.Operand)
	if err != nil {
		return types.Type{}, err
	}
	switch n.Op {
	case token.MINUS:
		if !t.IsNumeric() {
			return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "unary - requires a numeric operand, got %s", t)
		}
		return t, nil
	case token.BANG:
		if !t.Equal(types.Bool) {
			return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "! requires bool, got %s", t)
		}
		return types.Bool, nil
	default:
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "invalid unary operator %s", n.Op)
	}
}

func (c *Checker) inferBinary(n *ast.BinaryExpr) (types.Type, error) {
	lt, err := c.checkExpr(n.Left)
	if err != nil {
		return types.Type{}, err
	}
	rt, err := c.checkExpr(n.Right)
	if err != nil {
		return types.Type{}, err
	}
	if !lt.Equal(rt) {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "operand type mismatch: %s vs %s", lt, rt)
	}
	if isComparison(n.Op) {
		if !lt.IsNumeric() && !lt.Equal(types.Char) {
			return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "comparison requires a numeric or char operand, got %s", lt)
		}
		return types.Bool, nil
	}
	if !lt.IsNumeric() {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "arithmetic requires a numeric operand, got %s", lt)
	}
	return lt, nil
}

func (c *Checker) inferLogical(n *ast.LogicalExpr) (types.Type, error) {
	lt, err := c.checkExpr(n.Left)
	if err != nil {
		return types.Type{}, err
	}
	if !lt.Equal(types.Bool) {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%s requires bool, got %s", n.Op, lt)
	}
	rt, err := c.checkExpr(n.Right)
	if err != nil {
		return types.Type{}, err
	}
	if !rt.Equal(types.Bool) {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%s requires bool, got %s", n.Op, rt)
	}
	return types.Bool, nil
}

func (c *Checker) inferDeref(n *ast.DerefExpr) (types.Type, error) {
	t, err := c.checkExpr(n.Operand)
	if err != nil {
		return types.Type{}, err
	}
	switch t.Kind {
	case types.Ptr, types.Reference:
		return *t.Inner, nil
	default:
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "@ requires a pointer or reference, got %s", t)
	}
}

func (c *Checker) inferCall(n *ast.CallExpr) (types.Type, error) {
	argTypes, err := c.checkArgs(n.Args)
	if err != nil {
		return types.Type{}, err
	}
	if name, ok := n.Callee.(*ast.NameRef); ok {
		if sig, ok := c.Funcs[name.Name]; ok {
			if err := c.matchParams(n.Pos(), sig.Params, argTypes); err != nil {
				return types.Type{}, err
			}
			setResolved(name, types.NewFunctionPtr(sig.Params, sig.Return))
			return sig.Return, nil
		}
		if e, ok := builtins.Lookup(name.Name, argTypes); ok {
			setResolved(name, types.NewFunctionPtr(e.Params, e.Return))
			return e.Return, nil
		}
		if _, ok := c.lookup(name.Name); !ok {
			if _, ok := c.Globals[name.Name]; !ok {
				return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "undefined function %q", name.Name)
			}
		}
	}
	ct, err := c.checkExpr(n.Callee)
	if err != nil {
		return types.Type{}, err
	}
	if ct.Kind != types.FunctionPtr {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "cannot call non-function type %s", ct)
	}
	if err := c.matchParams(n.Pos(), ct.Params, argTypes); err != nil {
		return types.Type{}, err
	}
	return *ct.Return, nil
}

func (c *Checker) inferMethodCall(n *ast.MethodCallExpr) (types.Type, error) {
	recvType, err := c.checkExpr(n.Receiver)
	if err != nil {
		return types.Type{}, err
	}
	argTypes, err := c.checkArgs(n.Args)
	if err != nil {
		return types.Type{}, err
	}
	fullArgs := append([]types.Type{recvType}, argTypes...)
	e, ok := builtins.Lookup(n.Name, fullArgs)
	if !ok {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "no function %s matches receiver type %s", n.Name, recvType)
	}
	return e.Return, nil
}

func (c *Checker) checkArgs(args []ast.Expr) ([]types.Type, error) {
	out := make([]types.Type, len(args))
	for i, a := range args {
		t, err := c.checkExpr(a)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (c *Checker) matchParams(tok token.Token, params, args []types.Type) error {
	if len(params) != len(args) {
		return diag.Errorf(diag.Syntax, tok.Line, tok.Col, "expected %d arguments, got %d", len(params), len(args))
	}
	for i := range params {
		if !params[i].Equal(args[i]) {
			return diag.Errorf(diag.Syntax, tok.Line, tok.Col, "argument %d: expected %s, got %s", i, params[i], args[i])
		}
	}
	return nil
}

func (c *Checker) inferFieldAccess(n *ast.FieldAccessExpr) (types.Type, error) {
	rt, err := c.checkExpr(n.Receiver)
	if err != nil {
		return types.Type{}, err
	}
	structName := rt
	if rt.Kind == types.Ptr {
		structName = *rt.Inner
	}
	if structName.Kind != types.Simple {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%s has no fields", rt)
	}
	fields, err := c.Store.FieldsOf(structName.Name)
	if err != nil {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%v", err)
	}
	for _, f := range fields {
		if f.Name == n.Field {
			return f.Type, nil
		}
	}
	return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%s has no field %q", structName, n.Field)
}

func (c *Checker) inferIndex(n *ast.IndexExpr) (types.Type, error) {
	rt, err := c.checkExpr(n.Receiver)
	if err != nil {
		return types.Type{}, err
	}
	it, err := c.checkExpr(n.Index)
	if err != nil {
		return types.Type{}, err
	}
	if !it.IsInteger() {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "index must be an integer, got %s", it)
	}
	switch rt.Kind {
	case types.List, types.Span:
		return *rt.Inner, nil
	default:
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "cannot index %s", rt)
	}
}

func (c *Checker) inferSpan(n *ast.SpanExpr) (types.Type, error) {
	rt, err := c.checkExpr(n.Receiver)
	if err != nil {
		return types.Type{}, err
	}
	if n.Low != nil {
		if _, err := c.checkExpr(n.Low); err != nil {
			return types.Type{}, err
		}
	}
	if n.High != nil {
		if _, err := c.checkExpr(n.High); err != nil {
			return types.Type{}, err
		}
	}
	switch rt.Kind {
	case types.List, types.Span:
		return types.NewSpan(*rt.Inner), nil
	default:
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "cannot slice %s", rt)
	}
}

func (c *Checker) inferArrayLiteral(n *ast.ArrayLiteral) (types.Type, error) {
	if len(n.Elements) == 0 {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "empty array literal has no element type")
	}
	first, err := c.checkExpr(n.Elements[0])
	if err != nil {
		return types.Type{}, err
	}
	for _, el := range n.Elements[1:] {
		t, err := c.checkExpr(el)
		if err != nil {
			return types.Type{}, err
		}
		if !t.Equal(first) {
			return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "array element type mismatch: %s vs %s", first, t)
		}
	}
	return types.NewList(first, int64(len(n.Elements))), nil
}

func (c *Checker) inferRepeatArrayLiteral(n *ast.RepeatArrayLiteral) (types.Type, error) {
	elemType, err := c.checkExpr(n.Element)
	if err != nil {
		return types.Type{}, err
	}
	countLit, ok := n.Count.(*ast.IntLiteral)
	if !ok {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "repeat count must be a constant integer")
	}
	setResolved(n.Count, types.I64)
	return types.NewList(elemType, int64(countLit.Value)), nil
}

func (c *Checker) inferStructLiteral(n *ast.StructLiteral) (types.Type, error) {
	fields, err := c.Store.FieldsOf(n.StructName)
	if err != nil {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%v", err)
	}
	if len(n.FieldValues) != len(fields) {
		return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "struct %s expects %d fields, got %d", n.StructName, len(fields), len(n.FieldValues))
	}
	byName := map[string]types.Type{}
	for _, f := range fields {
		byName[f.Name] = f.Type
	}
	for i, fname := range n.FieldNames {
		ft, ok := byName[fname]
		if !ok {
			return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%s has no field %q", n.StructName, fname)
		}
		vt, err := c.checkExpr(n.FieldValues[i])
		if err != nil {
			return types.Type{}, err
		}
		if !vt.Equal(ft) {
			return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "field %q: expected %s, got %s", fname, ft, vt)
		}
	}
	return types.Type{Kind: types.Simple, Name: n.StructName}, nil
}

func (c *Checker) inferNew(n *ast.NewExpr) (types.Type, error) {
	elemType, err := c.resolveTypeExpr(n.ElemType)
	if err != nil {
		return types.Type{}, err
	}
	if n.Count != nil {
		ct, err := c.checkExpr(n.Count)
		if err != nil {
			return types.Type{}, err
		}
		if !ct.IsInteger() {
			return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "new[] count must be an integer, got %s", ct)
		}
		return types.NewPtr(elemType), nil
	}
	return types.NewPtr(elemType), nil
}

// setResolved fills in e's ResolvedType field via a type switch, since Go
// has no common mutable field across an interface.
func setResolved(e ast.Expr, t types.Type) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		n.ResolvedType = t
	case *ast.FloatLiteral:
		n.ResolvedType = t
	case *ast.BoolLiteral:
		n.ResolvedType = t
	case *ast.CharLiteral:
		n.ResolvedType = t
	case *ast.StringLiteral:
		n.ResolvedType = t
	case *ast.NullLiteral:
		n.ResolvedType = t
	case *ast.NullptrLiteral:
		n.ResolvedType = t
	case *ast.NameRef:
		n.ResolvedType = t
	case *ast.UnaryExpr:
		n.ResolvedType = t
	case *ast.BinaryExpr:
		n.ResolvedType = t
	case *ast.LogicalExpr:
		n.ResolvedType = t
	case *ast.AddressOfExpr:
		n.ResolvedType = t
	case *ast.DerefExpr:
		n.ResolvedType = t
	case *ast.ConstExpr:
		n.ResolvedType = t
	case *ast.CallExpr:
		n.ResolvedType = t
	case *ast.MethodCallExpr:
		n.ResolvedType = t
	case *ast.FieldAccessExpr:
		n.ResolvedType = t
	case *ast.IndexExpr:
		n.ResolvedType = t
	case *ast.SpanExpr:
		n.ResolvedType = t
	case *ast.ArrayLiteral:
		n.ResolvedType = t
	case *ast.RepeatArrayLiteral:
		n.ResolvedType = t
	case *ast.StructLiteral:
		n.ResolvedType = t
	case *ast.TypeofExpr:
		n.ResolvedType = t
	case *ast.SizeofExpr:
		n.ResolvedType = t
	case *ast.NewExpr:
		n.ResolvedType = t
	}
}
