package compiler

import (
	"fmt"

	"anzu/pkg/ast"
	"anzu/pkg/builtins"
	"anzu/pkg/token"
	"anzu/pkg/types"
	"anzu/pkg/vm"
)

// resolvedTypeOf mirrors checker's setResolved as a getter: every concrete
// Expr node carries a ResolvedType field the checker already filled in, and
// Go's lack of a common mutable field across an interface means both sides
// need the same type switch.
func resolvedTypeOf(e ast.Expr) types.Type {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return n.ResolvedType
	case *ast.FloatLiteral:
		return n.ResolvedType
	case *ast.BoolLiteral:
		return n.ResolvedType
	case *ast.CharLiteral:
		return n.ResolvedType
	case *ast.StringLiteral:
		return n.ResolvedType
	case *ast.NullLiteral:
		return n.ResolvedType
	case *ast.NullptrLiteral:
		return n.ResolvedType
	case *ast.NameRef:
		return n.ResolvedType
	case *ast.UnaryExpr:
		return n.ResolvedType
	case *ast.BinaryExpr:
		return n.ResolvedType
	case *ast.LogicalExpr:
		return n.ResolvedType
	case *ast.AddressOfExpr:
		return n.ResolvedType
	case *ast.DerefExpr:
		return n.ResolvedType
	case *ast.ConstExpr:
		return n.ResolvedType
	case *ast.CallExpr:
		return n.ResolvedType
	case *ast.MethodCallExpr:
		return n.ResolvedType
	case *ast.FieldAccessExpr:
		return n.ResolvedType
	case *ast.IndexExpr:
		return n.ResolvedType
	case *ast.SpanExpr:
		return n.ResolvedType
	case *ast.ArrayLiteral:
		return n.ResolvedType
	case *ast.RepeatArrayLiteral:
		return n.ResolvedType
	case *ast.StructLiteral:
		return n.ResolvedType
	case *ast.TypeofExpr:
		return n.ResolvedType
	case *ast.SizeofExpr:
		return n.ResolvedType
	case *ast.NewExpr:
		return n.ResolvedType
	default:
		return types.Type{}
	}
}

// resolveTypeExpr mirrors checker.go's unexported resolveTypeExpr, needed
// here for sizeof(T) and new T's explicit type operands.
func (c *Compiler) resolveTypeExpr(te ast.TypeExpr) (types.Type, error) {
	switch n := te.(type) {
	case *ast.FunctionPtrTypeExpr:
		params := make([]types.Type, len(n.Params))
		for i, p := range n.Params {
			t, err := c.resolveTypeExpr(p)
			if err != nil {
				return types.Type{}, err
			}
			params[i] = t
		}
		ret := types.Void
		if n.Return != nil {
			t, err := c.resolveTypeExpr(n.Return)
			if err != nil {
				return types.Type{}, err
			}
			ret = t
		}
		return types.NewFunctionPtr(params, ret), nil
	case *ast.NamedTypeExpr:
		switch n.Name {
		case "ptr", "span", "reference":
			inner, err := c.resolveTypeExpr(n.Inner)
			if err != nil {
				return types.Type{}, err
			}
			switch n.Name {
			case "ptr":
				return types.NewPtr(inner), nil
			case "span":
				return types.NewSpan(inner), nil
			default:
				return types.NewReference(inner), nil
			}
		case "list":
			inner, err := c.resolveTypeExpr(n.Inner)
			if err != nil {
				return types.Type{}, err
			}
			lit, ok := n.Count.(*ast.IntLiteral)
			if !ok {
				return types.Type{}, fmt.Errorf("list size must be a constant integer")
			}
			return types.NewList(inner, int64(lit.Value)), nil
		default:
			return types.Type{Kind: types.Simple, Name: n.Name}, nil
		}
	default:
		return types.Type{}, fmt.Errorf("unknown type expression %T", te)
	}
}

func binaryOpCode(op token.Kind) vm.OpCode {
	switch op {
	case token.PLUS:
		return vm.OpAdd
	case token.MINUS:
		return vm.OpSub
	case token.STAR:
		return vm.OpMul
	case token.SLASH:
		return vm.OpDiv
	case token.PERCENT:
		return vm.OpMod
	case token.EQUAL_EQUAL:
		return vm.OpEq
	case token.BANG_EQUAL:
		return vm.OpNe
	case token.LESS:
		return vm.OpLt
	case token.LESS_EQUAL:
		return vm.OpLe
	case token.GREATER:
		return vm.OpGt
	case token.GREATER_EQUAL:
		return vm.OpGe
	default:
		return vm.OpAdd
	}
}

// compileValue lowers e as an rvalue, leaving its bytes on top of the stack.
func (c *Compiler) compileValue(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.IntLiteral:
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: i64Bytes(int64(n.Value))})
		return nil
	case *ast.FloatLiteral:
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: f64Bytes(n.Value)})
		return nil
	case *ast.BoolLiteral:
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: boolBytes(n.Value)})
		return nil
	case *ast.CharLiteral:
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: []byte{n.Value}})
		return nil
	case *ast.StringLiteral:
		off := c.internString(n.Value)
		c.emit(vm.Op{Code: vm.OpPushGlobalAddr, Imm: off})
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(uint64(len(n.Value)))})
		return nil
	case *ast.NullLiteral:
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(0)})
		return nil
	case *ast.NullptrLiteral:
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(0)})
		return nil
	case *ast.NameRef:
		return c.compileNameRefValue(n)
	case *ast.UnaryExpr:
		return c.compileUnary(n)
	case *ast.BinaryExpr:
		if err := c.compileValue(n.Left); err != nil {
			return err
		}
		if err := c.compileValue(n.Right); err != nil {
			return err
		}
		c.emit(vm.Op{Code: binaryOpCode(n.Op), Type: resolvedTypeOfArith(n)})
		return nil
	case *ast.LogicalExpr:
		return c.compileLogical(n)
	case *ast.AddressOfExpr:
		return c.compileAddr(n.Operand)
	case *ast.DerefExpr:
		if err := c.compileValue(n.Operand); err != nil {
			return err
		}
		size, err := c.sizeOf(resolvedTypeOf(n))
		if err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpLoad, Imm: size})
		return nil
	case *ast.ConstExpr:
		return c.compileValue(n.Operand)
	case *ast.CallExpr:
		return c.compileCall(n)
	case *ast.MethodCallExpr:
		return c.compileMethodCall(n)
	case *ast.FieldAccessExpr, *ast.IndexExpr:
		if err := c.compileAddr(e); err != nil {
			return err
		}
		size, err := c.sizeOf(resolvedTypeOf(e))
		if err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpLoad, Imm: size})
		return nil
	case *ast.SpanExpr:
		return c.compileSpan(n)
	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			if err := c.compileValue(el); err != nil {
				return err
			}
		}
		return nil
	case *ast.RepeatArrayLiteral:
		count := int64(n.Count.(*ast.IntLiteral).Value)
		for i := int64(0); i < count; i++ {
			if err := c.compileValue(n.Element); err != nil {
				return err
			}
		}
		return nil
	case *ast.StructLiteral:
		return c.compileStructLiteral(n)
	case *ast.TypeofExpr:
		return c.compileValue(n.Operand)
	case *ast.SizeofExpr:
		var t types.Type
		var err error
		if n.OperandType != nil {
			t, err = c.resolveTypeExpr(n.OperandType)
		} else {
			t = resolvedTypeOf(n.Operand)
		}
		if err != nil {
			return err
		}
		size, err := c.sizeOf(t)
		if err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(uint64(size))})
		return nil
	case *ast.NewExpr:
		return c.compileNew(n)
	default:
		return fmt.Errorf("compiler: unhandled expression %T", e)
	}
}

// resolvedTypeOfArith picks the operand type a binary op's numeric dispatch
// keys on: Left and Right always agree per the checker's inferBinary.
func resolvedTypeOfArith(n *ast.BinaryExpr) types.Type {
	return resolvedTypeOf(n.Left)
}

func (c *Compiler) compileNameRefValue(n *ast.NameRef) error {
	if off, ok := c.lookupLocal(n.Name); ok {
		size, err := c.sizeOf(resolvedTypeOf(n))
		if err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: off})
		c.emit(vm.Op{Code: vm.OpLoad, Imm: size})
		return nil
	}
	if _, ok := c.chk.Funcs[n.Name]; ok {
		c.emit(vm.Op{Code: vm.OpLoadFuncPtr, Name: n.Name})
		return nil
	}
	return fmt.Errorf("compiler: undefined name %q", n.Name)
}

func (c *Compiler) compileUnary(n *ast.UnaryExpr) error {
	switch n.Op {
	case token.MINUS:
		t := resolvedTypeOf(n.Operand)
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: zeroBytes(t)})
		if err := c.compileValue(n.Operand); err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpSub, Type: t})
		return nil
	case token.BANG:
		if err := c.compileValue(n.Operand); err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: boolBytes(false)})
		c.emit(vm.Op{Code: vm.OpBoolEq})
		return nil
	default:
		return fmt.Errorf("compiler: invalid unary operator %s", n.Op)
	}
}

// compileLogical lowers && and || as short-circuiting jumps rather than
// OpBoolAnd/OpBoolOr, since a non-short-circuiting op would evaluate the
// right operand even when the left one already decided the result.
func (c *Compiler) compileLogical(n *ast.LogicalExpr) error {
	if err := c.compileValue(n.Left); err != nil {
		return err
	}
	switch n.Op {
	case token.AMP_AMP:
		jf := c.emit(vm.Op{Code: vm.OpJumpIfFalse})
		if err := c.compileValue(n.Right); err != nil {
			return err
		}
		jEnd := c.emit(vm.Op{Code: vm.OpJump})
		c.patch(jf, c.here())
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: boolBytes(false)})
		c.patch(jEnd, c.here())
	case token.PIPE_PIPE:
		jt := c.emit(vm.Op{Code: vm.OpJumpIfTrue})
		if err := c.compileValue(n.Right); err != nil {
			return err
		}
		jEnd := c.emit(vm.Op{Code: vm.OpJump})
		c.patch(jt, c.here())
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: boolBytes(true)})
		c.patch(jEnd, c.here())
	default:
		return fmt.Errorf("compiler: invalid logical operator %s", n.Op)
	}
	return nil
}

func (c *Compiler) argSizes(args []ast.Expr) (int64, error) {
	var total int64
	for _, a := range args {
		size, err := c.sizeOf(resolvedTypeOf(a))
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func (c *Compiler) compileCall(n *ast.CallExpr) error {
	argTypes := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = resolvedTypeOf(a)
	}
	if name, ok := n.Callee.(*ast.NameRef); ok {
		if _, ok := c.chk.Funcs[name.Name]; ok {
			for _, a := range n.Args {
				if err := c.compileValue(a); err != nil {
					return err
				}
			}
			argsSize, err := c.argSizes(n.Args)
			if err != nil {
				return err
			}
			c.emit(vm.Op{Code: vm.OpFunctionCall, Name: name.Name, Imm: argsSize})
			return nil
		}
		if _, ok := builtins.Lookup(name.Name, argTypes); ok {
			for _, a := range n.Args {
				if err := c.compileValue(a); err != nil {
					return err
				}
			}
			argsSize, err := c.argSizes(n.Args)
			if err != nil {
				return err
			}
			c.emit(vm.Op{Code: vm.OpBuiltinCall, Name: name.Name, ArgTypes: argTypes, Imm: argsSize})
			return nil
		}
	}
	// General case: Callee evaluates to a function-pointer value (a local
	// holding one, a struct field, a deref). Args land below the pointer so
	// OpCallIndirect can pop the pointer off the top before splicing the
	// call frame in under them.
	for _, a := range n.Args {
		if err := c.compileValue(a); err != nil {
			return err
		}
	}
	argsSize, err := c.argSizes(n.Args)
	if err != nil {
		return err
	}
	if err := c.compileValue(n.Callee); err != nil {
		return err
	}
	c.emit(vm.Op{Code: vm.OpCallIndirect, Imm: argsSize})
	return nil
}

func (c *Compiler) compileMethodCall(n *ast.MethodCallExpr) error {
	if err := c.compileValue(n.Receiver); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := c.compileValue(a); err != nil {
			return err
		}
	}
	fullArgs := append([]types.Type{resolvedTypeOf(n.Receiver)}, argTypesOf(n.Args)...)
	recvSize, err := c.sizeOf(resolvedTypeOf(n.Receiver))
	if err != nil {
		return err
	}
	argsSize, err := c.argSizes(n.Args)
	if err != nil {
		return err
	}
	c.emit(vm.Op{Code: vm.OpBuiltinCall, Name: n.Name, ArgTypes: fullArgs, Imm: recvSize + argsSize})
	return nil
}

// exprResultSize is sizeOf(resolvedTypeOf(e)), except a void-returning
// builtin call reports 1: the calling convention has every builtin push
// exactly one result, a single zero byte standing in for null when the
// builtin is void, so a statement discarding that result must pop it even
// though void itself occupies no declared storage.
func (c *Compiler) exprResultSize(e ast.Expr) (int64, error) {
	t := resolvedTypeOf(e)
	if t.Equal(types.Void) && c.isBuiltinVoidCall(e) {
		return 1, nil
	}
	return c.sizeOf(t)
}

// isBuiltinVoidCall reports whether e calls into the builtin registry
// (directly or via UFCS method-call desugaring) rather than a user-defined
// function, the two call shapes that differ in whether a void return still
// leaves a byte on the stack.
func (c *Compiler) isBuiltinVoidCall(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.CallExpr:
		name, ok := n.Callee.(*ast.NameRef)
		if !ok {
			return false
		}
		if _, ok := c.chk.Funcs[name.Name]; ok {
			return false
		}
		_, ok = builtins.Lookup(name.Name, argTypesOf(n.Args))
		return ok
	case *ast.MethodCallExpr:
		full := append([]types.Type{resolvedTypeOf(n.Receiver)}, argTypesOf(n.Args)...)
		_, ok := builtins.Lookup(n.Name, full)
		return ok
	default:
		return false
	}
}

func argTypesOf(args []ast.Expr) []types.Type {
	out := make([]types.Type, len(args))
	for i, a := range args {
		out[i] = resolvedTypeOf(a)
	}
	return out
}

func (c *Compiler) compileStructLiteral(n *ast.StructLiteral) error {
	fields, err := c.chk.Store.FieldsOf(n.StructName)
	if err != nil {
		return err
	}
	for _, f := range fields {
		for i, fname := range n.FieldNames {
			if fname == f.Name {
				if err := c.compileValue(n.FieldValues[i]); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

func (c *Compiler) compileNew(n *ast.NewExpr) error {
	elemType, err := c.resolveTypeExpr(n.ElemType)
	if err != nil {
		return err
	}
	elemSize, err := c.sizeOf(elemType)
	if err != nil {
		return err
	}
	if n.Count != nil {
		if err := c.compileValue(n.Count); err != nil {
			return err
		}
	} else {
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(1)})
	}
	c.emit(vm.Op{Code: vm.OpAllocate, Imm: elemSize})
	return nil
}

// compileSpan lowers `receiver[low:high]` to a {ptr,len} pair (ptr pushed
// first, len on top, the convention every span-valued expression uses).
// Bound expressions and the receiver are evaluated once per use rather than
// cached on the stack: simple at the cost of re-evaluating an impure bound
// or a span receiver's ptr/len fetch twice, an accepted simplification since
// the VM only has an 8-byte swap, not a general stack rotate.
func (c *Compiler) compileSpan(n *ast.SpanExpr) error {
	rt := resolvedTypeOf(n.Receiver)
	elemSize, err := c.sizeOf(*rt.Inner)
	if err != nil {
		return err
	}

	if err := c.compileSpanBasePtr(n.Receiver, rt); err != nil {
		return err
	}
	if n.Low != nil {
		if err := c.compileValue(n.Low); err != nil {
			return err
		}
	} else {
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(0)})
	}
	c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(uint64(elemSize))})
	c.emit(vm.Op{Code: vm.OpMul, Type: types.U64})
	c.emit(vm.Op{Code: vm.OpAdd, Type: types.U64}) // stack: [newPtr]

	if n.High != nil {
		if err := c.compileValue(n.High); err != nil {
			return err
		}
	} else if err := c.compileSpanFullLen(n.Receiver, rt); err != nil {
		return err
	}
	if n.Low != nil {
		if err := c.compileValue(n.Low); err != nil {
			return err
		}
	} else {
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(0)})
	}
	c.emit(vm.Op{Code: vm.OpSub, Type: types.U64}) // stack: [newPtr, newLen]
	return nil
}

func (c *Compiler) compileSpanBasePtr(receiver ast.Expr, rt types.Type) error {
	switch rt.Kind {
	case types.List:
		return c.compileAddr(receiver)
	case types.Span:
		if err := c.compileValue(receiver); err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpPop, Imm: 8}) // drop len, keep ptr
		return nil
	default:
		return fmt.Errorf("compiler: cannot slice %s", rt)
	}
}

func (c *Compiler) compileSpanFullLen(receiver ast.Expr, rt types.Type) error {
	switch rt.Kind {
	case types.List:
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(uint64(rt.Count))})
		return nil
	case types.Span:
		if err := c.compileValue(receiver); err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpSwap8})
		c.emit(vm.Op{Code: vm.OpPop, Imm: 8}) // drop ptr, keep len
		return nil
	default:
		return fmt.Errorf("compiler: cannot slice %s", rt)
	}
}

// compileAddr lowers e as an lvalue, leaving its address on top of the stack.
func (c *Compiler) compileAddr(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.NameRef:
		off, ok := c.lookupLocal(n.Name)
		if !ok {
			return fmt.Errorf("compiler: %q is not addressable", n.Name)
		}
		c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: off})
		return nil
	case *ast.DerefExpr:
		return c.compileValue(n.Operand)
	case *ast.ConstExpr:
		return c.compileAddr(n.Operand)
	case *ast.FieldAccessExpr:
		return c.compileFieldAddr(n)
	case *ast.IndexExpr:
		return c.compileIndexAddr(n)
	default:
		return fmt.Errorf("compiler: %T is not addressable", e)
	}
}

func (c *Compiler) compileFieldAddr(n *ast.FieldAccessExpr) error {
	rt := resolvedTypeOf(n.Receiver)
	structType := rt
	if rt.Kind == types.Ptr {
		if err := c.compileValue(n.Receiver); err != nil {
			return err
		}
		structType = *rt.Inner
	} else if err := c.compileAddr(n.Receiver); err != nil {
		return err
	}
	fields, err := c.chk.Store.FieldsOf(structType.Name)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.Name == n.Field {
			if f.Offset != 0 {
				c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(uint64(f.Offset))})
				c.emit(vm.Op{Code: vm.OpAdd, Type: types.U64})
			}
			return nil
		}
	}
	return fmt.Errorf("compiler: %s has no field %q", structType, n.Field)
}

func (c *Compiler) compileIndexAddr(n *ast.IndexExpr) error {
	rt := resolvedTypeOf(n.Receiver)
	elemSize, err := c.sizeOf(*rt.Inner)
	if err != nil {
		return err
	}
	switch rt.Kind {
	case types.List:
		if err := c.compileAddr(n.Receiver); err != nil {
			return err
		}
	case types.Span:
		if err := c.compileValue(n.Receiver); err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpPop, Imm: 8}) // drop len, keep ptr
	default:
		return fmt.Errorf("compiler: cannot index %s", rt)
	}
	if err := c.compileValue(n.Index); err != nil {
		return err
	}
	c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(uint64(elemSize))})
	c.emit(vm.Op{Code: vm.OpMul, Type: types.U64})
	c.emit(vm.Op{Code: vm.OpAdd, Type: types.U64})
	return nil
}
