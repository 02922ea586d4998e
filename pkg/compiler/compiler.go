// Package compiler lowers a checked AST directly to a flat vm.Op stream:
// literals, name references, control flow with jump patching, calls, and
// heap operations. Grounded on the teacher's codegen.go (genExpr/genStmt/
// genAddress, newLabel for forward/backward jumps), adapted from
// label-based textual-assembly emission to direct integer op-index
// patching, since Anzu's compiler is its own assembler: there is no
// separate textual stage the way the teacher's codegen.go feeds pkg/asm.
package compiler

import (
	"fmt"

	"anzu/pkg/ast"
	"anzu/pkg/checker"
	"anzu/pkg/types"
	"anzu/pkg/vm"
)

// Compiler holds all state needed to lower one checked file to a Program.
type Compiler struct {
	chk *checker.Checker

	ops    []vm.Op
	rodata []byte

	stringPool map[string]int64

	scopes    []map[string]int64
	nextLocal int64
	loopStack []loopFrame
}

// loopFrame tracks the backpatch targets for one enclosing loop. continueTarget
// is the index to jump to on `continue` when it's already known (while/loop);
// continuePatches carries placeholder indices for for-in, whose increment step
// is only known once the body has been compiled.
type loopFrame struct {
	continueTarget  int64
	continuePatches []int
	breakPatches    []int
}

// Compile lowers every function declared in file to a vm.Program, using chk's
// already-annotated types (ResolvedType on every expression, Offset on every
// VarDecl, FrameSize on every FuncSig).
func Compile(file *ast.File, chk *checker.Checker) (*vm.Program, error) {
	c := &Compiler{chk: chk, stringPool: map[string]int64{}}
	functions := map[string]int64{}
	for _, d := range file.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		entry := int64(len(c.ops))
		if err := c.compileFunction(fn); err != nil {
			return nil, err
		}
		functions[fn.Name] = entry
	}
	entryPoint, ok := functions["main"]
	if !ok {
		return nil, fmt.Errorf("no main function declared")
	}
	return &vm.Program{Ops: c.ops, Rodata: c.rodata, EntryPoint: entryPoint, Functions: functions}, nil
}

// sizeOf is types.Store.SizeOf generalized to cover void, which the store
// itself has no entry for since void values never occupy stack space.
func (c *Compiler) sizeOf(t types.Type) (int64, error) {
	if t.Kind == types.Simple && t.Name == "void" {
		return 0, nil
	}
	return c.chk.Store.SizeOf(t)
}

func (c *Compiler) emit(op vm.Op) int {
	c.ops = append(c.ops, op)
	return len(c.ops) - 1
}

func (c *Compiler) here() int64 { return int64(len(c.ops)) }

func (c *Compiler) patch(idx int, target int64) { c.ops[idx].Imm = target }

// compileFunction lowers one function: an entry marker, a placeholder local-
// region reservation (backpatched once the body's true frame size is known,
// since compiler-private temporaries for for-in loops grow nextLocal past
// the checker's own FrameSize), the body, and a fallback return for any path
// that falls off the end without an explicit return.
func (c *Compiler) compileFunction(fn *ast.FunctionDecl) error {
	sig := c.chk.Funcs[fn.Name]
	c.scopes = nil
	c.pushScope()
	c.nextLocal = 16
	for i, pname := range sig.ParamNames {
		size, err := c.sizeOf(sig.Params[i])
		if err != nil {
			return err
		}
		c.declareLocal(pname, c.nextLocal)
		c.nextLocal += size
	}
	paramsEnd := c.nextLocal
	if sig.FrameSize > c.nextLocal {
		c.nextLocal = sig.FrameSize
	}

	entryIdx := c.here()
	c.emit(vm.Op{Code: vm.OpFunction, Name: fn.Name, Imm: entryIdx})
	reserveIdx := c.emit(vm.Op{Code: vm.OpLoadBytes})

	if err := c.compileBlock(fn.Body); err != nil {
		return err
	}

	retSize, err := c.sizeOf(sig.Return)
	if err != nil {
		return err
	}
	if retSize > 0 {
		c.emit(vm.Op{Code: vm.OpLoadBytes, Bytes: make([]byte, retSize)})
	}
	c.emit(vm.Op{Code: vm.OpReturn, Imm: retSize})

	c.ops[reserveIdx].Bytes = make([]byte, c.nextLocal-paramsEnd)
	c.popScope()
	return nil
}
