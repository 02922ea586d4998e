// Package vm is the stack-and-heap bytecode machine Anzu programs run on:
// a flat Op slice dispatched in a loop shaped like the teacher's
// cpu.go Step/Run, with pointer semantics (heap bit 63, rodata bit 62,
// byte-addressed load/save) ported directly from
// original_source/runtime.cpp's apply_op and object.hpp's tag bits.
package vm

import (
	"fmt"

	"anzu/pkg/types"
)

// OpCode identifies an instruction. Arithmetic and comparison codes are
// shared across i32/i64/u64/f64 and disambiguated by the Op's Type field,
// the "dense integer op-code with a side table of immediates" variant the
// spec's design notes license, rather than one code per (type, operator)
// pair.
type OpCode int

const (
	OpLoadBytes OpCode = iota // push Bytes verbatim
	OpPushGlobalAddr          // push a tagged rodata pointer at offset Imm
	OpPushLocalAddr           // push base_ptr+Imm as an untagged stack pointer

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	OpBoolAnd
	OpBoolOr
	OpBoolEq
	OpBoolNe

	OpLoad  // pop a pointer, push Imm bytes read from it
	OpSave  // pop value(Imm bytes) then pointer, write value to pointer
	OpPop   // discard Imm bytes from the top of the stack
	OpDup8  // duplicate the top 8-byte word
	OpSwap8 // swap the top two 8-byte words

	OpAllocate   // pop u64 count, allocate count*Imm+8 bytes, push tagged heap ptr
	OpDeallocate // pop a tagged heap ptr, free it

	OpJump
	OpJumpIfFalse
	OpJumpIfTrue

	OpAssertFail // unconditionally raise a runtime error citing Text

	OpFunctionCall // call function Name, args occupy the top Imm bytes
	OpLoadFuncPtr  // push the entry index of function Name as a u64 value
	OpCallIndirect // pop a u64 entry index, then call it; args occupy the Imm bytes below it
	OpBuiltinCall  // call builtin Name (resolved by ArgTypes), same calling shape
	OpFunction     // marks a function's entry point at Imm, for disassembly
	OpReturn       // pop Imm bytes as the result, unwind the frame

	OpDebug // emit Text as a debug trace line
)

var opNames = [...]string{
	OpLoadBytes: "load_bytes", OpPushGlobalAddr: "push_global_addr", OpPushLocalAddr: "push_local_addr",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpBoolAnd: "bool_and", OpBoolOr: "bool_or", OpBoolEq: "bool_eq", OpBoolNe: "bool_ne",
	OpLoad: "load", OpSave: "save", OpPop: "pop", OpDup8: "dup8", OpSwap8: "swap8",
	OpAllocate: "allocate", OpDeallocate: "deallocate",
	OpJump: "jump", OpJumpIfFalse: "jump_if_false", OpJumpIfTrue: "jump_if_true",
	OpAssertFail: "assert_fail",
	OpFunctionCall: "function_call", OpLoadFuncPtr: "load_func_ptr", OpCallIndirect: "call_indirect",
	OpBuiltinCall: "builtin_call", OpFunction: "function", OpReturn: "return",
	OpDebug: "debug",
}

func (c OpCode) String() string {
	if int(c) >= 0 && int(c) < len(opNames) && opNames[c] != "" {
		return opNames[c]
	}
	return fmt.Sprintf("OpCode(%d)", int(c))
}

// Op is one bytecode instruction. Only the fields relevant to Code are
// populated; this is the flat, side-table-of-immediates op representation
// the spec's design notes call out as an acceptable "big op variant" in
// place of one Go type per instruction kind.
type Op struct {
	Code     OpCode
	Type     types.Type   // numeric kind for Add/Sub/.../Ge
	Imm      int64        // size, offset, or jump target depending on Code
	Bytes    []byte       // immediate payload for OpLoadBytes
	Name     string       // function or builtin name for calls
	ArgTypes []types.Type // builtin overload key for OpBuiltinCall
	Text     string       // message for OpDebug
}

func (o Op) String() string {
	switch o.Code {
	case OpLoadBytes:
		return fmt.Sprintf("load_bytes %v", o.Bytes)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return fmt.Sprintf("%s.%s", o.Code, o.Type)
	case OpLoad, OpSave, OpPop:
		return fmt.Sprintf("%s %d", o.Code, o.Imm)
	case OpAllocate:
		return fmt.Sprintf("allocate %d", o.Imm)
	case OpJump, OpJumpIfFalse, OpJumpIfTrue:
		return fmt.Sprintf("%s -> %d", o.Code, o.Imm)
	case OpAssertFail:
		return fmt.Sprintf("assert_fail %q", o.Text)
	case OpFunctionCall, OpBuiltinCall:
		return fmt.Sprintf("%s %s (%d bytes)", o.Code, o.Name, o.Imm)
	case OpLoadFuncPtr:
		return fmt.Sprintf("load_func_ptr %s", o.Name)
	case OpCallIndirect:
		return fmt.Sprintf("call_indirect (%d bytes)", o.Imm)
	case OpFunction:
		return fmt.Sprintf("function %s -> %d", o.Name, o.Imm)
	case OpReturn:
		return fmt.Sprintf("return %d", o.Imm)
	case OpDebug:
		return fmt.Sprintf("debug %q", o.Text)
	case OpPushGlobalAddr, OpPushLocalAddr:
		return fmt.Sprintf("%s %d", o.Code, o.Imm)
	default:
		return o.Code.String()
	}
}
