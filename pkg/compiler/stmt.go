package compiler

import (
	"fmt"

	"anzu/pkg/ast"
	"anzu/pkg/types"
	"anzu/pkg/vm"
)

// compileBlock mirrors checker.go's checkBlock: a fresh scope around the
// statement sequence, popped on exit.
func (c *Compiler) compileBlock(b *ast.Block) error {
	c.pushScope()
	defer c.popScope()
	for _, s := range b.Stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

// storeLocal writes a value into the fixed local slot at offset: push the
// slot's address first, then the value (OpSave pops value then pointer, so
// the address must already sit below whatever emitValue pushes). Pushing the
// address up front works regardless of the value's width, unlike swapping
// the top two 8-byte words after the fact, which only holds together for
// single-word values.
func (c *Compiler) storeLocal(offset, size int64, emitValue func() error) error {
	c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: offset})
	if err := emitValue(); err != nil {
		return err
	}
	c.emit(vm.Op{Code: vm.OpSave, Imm: size})
	return nil
}

func (c *Compiler) compileStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.VarDecl:
		size, err := c.sizeOf(n.VarType)
		if err != nil {
			return err
		}
		emitValue := func() error { return c.compileValue(n.Value) }
		if n.Value == nil {
			// x: T; with no initializer zero-fills the slot rather than
			// leaving it holding whatever garbage was already on the stack.
			emitValue = func() error {
				c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: make([]byte, size)})
				return nil
			}
		}
		if err := c.storeLocal(n.Offset, size, emitValue); err != nil {
			return err
		}
		c.declareLocal(n.Name, n.Offset)
		return nil
	case *ast.Assignment:
		// Address first, value second: OpSave pops value then pointer, and
		// pushing the address up front keeps that true no matter how wide
		// the value is.
		if err := c.compileAddr(n.Target); err != nil {
			return err
		}
		if err := c.compileValue(n.Value); err != nil {
			return err
		}
		size, err := c.sizeOf(resolvedTypeOf(n.Value))
		if err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpSave, Imm: size})
		return nil
	case *ast.ExprStmt:
		if err := c.compileValue(n.Expr); err != nil {
			return err
		}
		size, err := c.exprResultSize(n.Expr)
		if err != nil {
			return err
		}
		if size > 0 {
			c.emit(vm.Op{Code: vm.OpPop, Imm: size})
		}
		return nil
	case *ast.Block:
		return c.compileBlock(n)
	case *ast.IfStmt:
		return c.compileIf(n)
	case *ast.WhileStmt:
		return c.compileWhile(n)
	case *ast.LoopStmt:
		return c.compileLoop(n)
	case *ast.ForInStmt:
		return c.compileForIn(n)
	case *ast.BreakStmt:
		if len(c.loopStack) == 0 {
			return fmt.Errorf("compiler: break outside a loop")
		}
		top := &c.loopStack[len(c.loopStack)-1]
		idx := c.emit(vm.Op{Code: vm.OpJump})
		top.breakPatches = append(top.breakPatches, idx)
		return nil
	case *ast.ContinueStmt:
		if len(c.loopStack) == 0 {
			return fmt.Errorf("compiler: continue outside a loop")
		}
		top := &c.loopStack[len(c.loopStack)-1]
		if top.continueTarget >= 0 {
			c.emit(vm.Op{Code: vm.OpJump, Imm: top.continueTarget})
			return nil
		}
		idx := c.emit(vm.Op{Code: vm.OpJump})
		top.continuePatches = append(top.continuePatches, idx)
		return nil
	case *ast.ReturnStmt:
		if n.Value == nil {
			c.emit(vm.Op{Code: vm.OpReturn, Imm: 0})
			return nil
		}
		if err := c.compileValue(n.Value); err != nil {
			return err
		}
		size, err := c.sizeOf(resolvedTypeOf(n.Value))
		if err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpReturn, Imm: size})
		return nil
	case *ast.AssertStmt:
		if err := c.compileValue(n.Cond); err != nil {
			return err
		}
		jt := c.emit(vm.Op{Code: vm.OpJumpIfTrue})
		c.emit(vm.Op{Code: vm.OpAssertFail, Text: n.Source})
		c.patch(jt, c.here())
		return nil
	case *ast.DeleteStmt:
		if err := c.compileValue(n.Operand); err != nil {
			return err
		}
		c.emit(vm.Op{Code: vm.OpDeallocate})
		return nil
	case *ast.StructDecl:
		return nil // layout already registered by the checker's predeclare pass
	default:
		return fmt.Errorf("compiler: unhandled statement %T", s)
	}
}

func (c *Compiler) compileIf(n *ast.IfStmt) error {
	if err := c.compileValue(n.Cond); err != nil {
		return err
	}
	jf := c.emit(vm.Op{Code: vm.OpJumpIfFalse})
	if err := c.compileBlock(n.Then); err != nil {
		return err
	}
	if n.Else != nil {
		jEnd := c.emit(vm.Op{Code: vm.OpJump})
		c.patch(jf, c.here())
		if err := c.compileStmt(n.Else); err != nil {
			return err
		}
		c.patch(jEnd, c.here())
		return nil
	}
	c.patch(jf, c.here())
	return nil
}

func (c *Compiler) compileWhile(n *ast.WhileStmt) error {
	start := c.here()
	if err := c.compileValue(n.Cond); err != nil {
		return err
	}
	jf := c.emit(vm.Op{Code: vm.OpJumpIfFalse})

	c.loopStack = append(c.loopStack, loopFrame{continueTarget: start})
	if err := c.compileBlock(n.Body); err != nil {
		return err
	}
	loop := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emit(vm.Op{Code: vm.OpJump, Imm: start})
	end := c.here()
	c.patch(jf, end)
	for _, p := range loop.breakPatches {
		c.patch(p, end)
	}
	return nil
}

func (c *Compiler) compileLoop(n *ast.LoopStmt) error {
	start := c.here()
	c.loopStack = append(c.loopStack, loopFrame{continueTarget: start})
	if err := c.compileBlock(n.Body); err != nil {
		return err
	}
	loop := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emit(vm.Op{Code: vm.OpJump, Imm: start})
	end := c.here()
	for _, p := range loop.breakPatches {
		c.patch(p, end)
	}
	return nil
}

// compileForIn desugars `for x in iter { ... }` into an index-counted loop
// over four compiler-private temporaries: the iterable's base address and
// length (computed once), a running index, and a per-iteration copy of the
// current element that x resolves to inside the body. The increment step
// only exists after the body compiles, so continue targets it via
// loopFrame.continuePatches rather than a target known up front.
func (c *Compiler) compileForIn(n *ast.ForInStmt) error {
	rt := resolvedTypeOf(n.Iter)
	elemType := *rt.Inner
	elemSize, err := c.sizeOf(elemType)
	if err != nil {
		return err
	}

	basePtrOff := c.newTemp(8)
	lenOff := c.newTemp(8)
	idxOff := c.newTemp(8)
	elemOff := c.newTemp(elemSize)

	if err := c.storeLocal(basePtrOff, 8, func() error { return c.compileSpanBasePtr(n.Iter, rt) }); err != nil {
		return err
	}
	if err := c.storeLocal(lenOff, 8, func() error { return c.compileSpanFullLen(n.Iter, rt) }); err != nil {
		return err
	}
	if err := c.storeLocal(idxOff, 8, func() error {
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(0)})
		return nil
	}); err != nil {
		return err
	}

	start := c.here()
	c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: idxOff})
	c.emit(vm.Op{Code: vm.OpLoad, Imm: 8})
	c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: lenOff})
	c.emit(vm.Op{Code: vm.OpLoad, Imm: 8})
	c.emit(vm.Op{Code: vm.OpLt, Type: types.U64})
	jf := c.emit(vm.Op{Code: vm.OpJumpIfFalse})

	if err := c.storeLocal(elemOff, elemSize, func() error {
		c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: basePtrOff})
		c.emit(vm.Op{Code: vm.OpLoad, Imm: 8})
		c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: idxOff})
		c.emit(vm.Op{Code: vm.OpLoad, Imm: 8})
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(uint64(elemSize))})
		c.emit(vm.Op{Code: vm.OpMul, Type: types.U64})
		c.emit(vm.Op{Code: vm.OpAdd, Type: types.U64})
		c.emit(vm.Op{Code: vm.OpLoad, Imm: elemSize})
		return nil
	}); err != nil {
		return err
	}

	c.pushScope()
	c.declareLocal(n.VarName, elemOff)
	c.loopStack = append(c.loopStack, loopFrame{continueTarget: -1})
	for _, st := range n.Body.Stmts {
		if err := c.compileStmt(st); err != nil {
			c.popScope()
			return err
		}
	}
	loop := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	c.popScope()

	increment := c.here()
	for _, p := range loop.continuePatches {
		c.patch(p, increment)
	}
	if err := c.storeLocal(idxOff, 8, func() error {
		c.emit(vm.Op{Code: vm.OpPushLocalAddr, Imm: idxOff})
		c.emit(vm.Op{Code: vm.OpLoad, Imm: 8})
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: u64Bytes(1)})
		c.emit(vm.Op{Code: vm.OpAdd, Type: types.U64})
		return nil
	}); err != nil {
		return err
	}
	c.emit(vm.Op{Code: vm.OpJump, Imm: start})

	end := c.here()
	c.patch(jf, end)
	for _, p := range loop.breakPatches {
		c.patch(p, end)
	}
	return nil
}
