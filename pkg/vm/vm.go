package vm

import (
	"fmt"
	"io"
	"os"

	"anzu/pkg/builtins"
	"anzu/pkg/diag"
)

const (
	heapBit = uint64(1) << 63
	romBit  = uint64(1) << 62
)

func isHeapPtr(p uint64) bool { return p&heapBit != 0 }
func isRomPtr(p uint64) bool  { return p&romBit != 0 }
func untag(p uint64) int64    { return int64(p &^ heapBit &^ romBit) }
func tagHeap(offset int64) uint64 { return uint64(offset) | heapBit }
func tagRom(offset int64) uint64  { return uint64(offset) | romBit }

// Machine is the running state of one Anzu program: a byte-addressed stack
// that also holds every call frame in-band, a bump heap, and a rodata
// segment, dispatched in a loop shaped like the teacher's cpu.go
// Step/Run pair.
type Machine struct {
	Program *Program
	Stack   []byte
	heap    allocator
	rodata  []byte

	basePtr int64
	progPtr int64

	Out   io.Writer
	Trace bool // per-op debug dump: prog_ptr, op, stack bytes, heap byte count
}

// New creates a Machine ready to run prog, with out as the sink for
// print/println and debug trace output.
func New(prog *Program, out io.Writer) *Machine {
	if out == nil {
		out = os.Stdout
	}
	return &Machine{Program: prog, rodata: prog.Rodata, Out: out}
}

// PopBytes implements builtins.Frame.
func (m *Machine) PopBytes(n int) []byte {
	top := len(m.Stack) - n
	out := make([]byte, n)
	copy(out, m.Stack[top:])
	m.Stack = m.Stack[:top]
	return out
}

// PushBytes implements builtins.Frame.
func (m *Machine) PushBytes(b []byte) {
	m.Stack = append(m.Stack, b...)
}

// Print implements builtins.Frame.
func (m *Machine) Print(s string) {
	fmt.Fprint(m.Out, s)
}

// HeapBytesLive returns the heap allocator's outstanding byte count, used
// for the end-of-program leak report.
func (m *Machine) HeapBytesLive() int64 { return m.heap.bytesLive }

// HeapBytes returns the allocator's raw backing buffer (headers and all),
// for cmd/anzuvis's live byte-grid display. The slice aliases live memory
// and must be treated as read-only by callers.
func (m *Machine) HeapBytes() []byte { return m.heap.heap }

// Init resets the machine to the entry point with a freshly seeded stack,
// the shared setup between Run's own loop and a caller that single-steps
// via Step (cmd/anzuvis's per-tick trace display).
func (m *Machine) Init() {
	m.Stack = make([]byte, 16)
	putU64(m.Stack[8:16], uint64(len(m.Program.Ops))) // sentinel return address past the end
	m.basePtr = 0
	m.progPtr = m.Program.EntryPoint
}

// Done reports whether prog_ptr has run off the end of the program, the
// same condition Run's loop checks each iteration.
func (m *Machine) Done() bool {
	return m.progPtr < 0 || m.progPtr >= int64(len(m.Program.Ops))
}

// ProgPtr returns the index of the op Step will execute next.
func (m *Machine) ProgPtr() int64 { return m.progPtr }

// CurrentOp returns the op at the current prog_ptr. Only valid when !Done().
func (m *Machine) CurrentOp() Op { return m.Program.Ops[m.progPtr] }

// Step executes exactly one op and reports whether the program has since
// run to completion, for a caller (cmd/anzuvis) that wants to render
// machine state between every dispatch rather than only at the end.
func (m *Machine) Step() (done bool, err error) {
	if m.Done() {
		return true, nil
	}
	op := m.Program.Ops[m.progPtr]
	if m.Trace {
		fmt.Fprintf(m.Out, "[trace] %4d %-28s stack=%d heap_live=%d\n", m.progPtr, op.String(), len(m.Stack), m.heap.bytesLive)
	}
	if err := m.apply(op); err != nil {
		return true, err
	}
	return m.Done(), nil
}

// Run executes the program's entry point to completion and reports a heap
// leak on the way out if anything is still allocated, matching
// runtime.cpp's "Heap Size: N, fix your memory leak!" end-of-run check.
func (m *Machine) Run() error {
	m.Init()
	for !m.Done() {
		if _, err := m.Step(); err != nil {
			return err
		}
	}

	if m.heap.bytesLive > 0 {
		fmt.Fprintf(m.Out, "\n -> Heap Size: %d, fix your memory leak!\n", m.heap.bytesLive)
	}
	return nil
}

func (m *Machine) apply(op Op) error {
	advance := true
	switch op.Code {
	case OpLoadBytes:
		m.PushBytes(op.Bytes)
	case OpPushGlobalAddr:
		m.PushBytes(u64Bytes(tagRom(op.Imm)))
	case OpPushLocalAddr:
		m.PushBytes(u64Bytes(uint64(m.basePtr + op.Imm)))

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		if err := m.applyNumeric(op); err != nil {
			return err
		}

	case OpBoolAnd:
		r, l := asBool(m.PopBytes(8)), asBool(m.PopBytes(8))
		m.PushBytes(boolBytes(l && r))
	case OpBoolOr:
		r, l := asBool(m.PopBytes(8)), asBool(m.PopBytes(8))
		m.PushBytes(boolBytes(l || r))
	case OpBoolEq:
		r, l := asBool(m.PopBytes(8)), asBool(m.PopBytes(8))
		m.PushBytes(boolBytes(l == r))
	case OpBoolNe:
		r, l := asBool(m.PopBytes(8)), asBool(m.PopBytes(8))
		m.PushBytes(boolBytes(l != r))

	case OpLoad:
		ptr := getU64(m.PopBytes(8))
		m.PushBytes(m.readMemory(ptr, op.Imm))
	case OpSave:
		value := m.PopBytes(int(op.Imm))
		ptr := getU64(m.PopBytes(8))
		if err := m.writeMemory(ptr, value); err != nil {
			return err
		}
	case OpPop:
		m.PopBytes(int(op.Imm))
	case OpDup8:
		top := m.PopBytes(8)
		m.PushBytes(top)
		m.PushBytes(top)
	case OpSwap8:
		b := m.PopBytes(8)
		a := m.PopBytes(8)
		m.PushBytes(b)
		m.PushBytes(a)

	case OpAllocate:
		count := getU64(m.PopBytes(8))
		payload := int64(count) * op.Imm
		offset := m.heap.allocate(payload)
		m.PushBytes(u64Bytes(tagHeap(offset)))
	case OpDeallocate:
		ptr := getU64(m.PopBytes(8))
		if !isHeapPtr(ptr) {
			return diag.Errorf(diag.Runtime, 0, 0, "delete requires a heap pointer")
		}
		m.heap.deallocate(untag(ptr))

	case OpJump:
		m.progPtr = op.Imm
		advance = false
	case OpJumpIfFalse:
		cond := asBool(m.PopBytes(8))
		if !cond {
			m.progPtr = op.Imm
			advance = false
		}
	case OpJumpIfTrue:
		cond := asBool(m.PopBytes(8))
		if cond {
			m.progPtr = op.Imm
			advance = false
		}

	case OpAssertFail:
		return diag.Errorf(diag.Runtime, 0, 0, "assertion failed: %s", op.Text)

	case OpFunctionCall:
		m.call(op.Imm, m.entryFor(op.Name))
		advance = false
	case OpLoadFuncPtr:
		m.PushBytes(u64Bytes(uint64(m.entryFor(op.Name))))
	case OpCallIndirect:
		entry := int64(getU64(m.PopBytes(8)))
		m.call(op.Imm, entry)
		advance = false
	case OpBuiltinCall:
		entry, ok := builtins.Lookup(op.Name, op.ArgTypes)
		if !ok {
			return diag.Errorf(diag.Runtime, 0, 0, "unresolved builtin %s", op.Name)
		}
		entry.Call(m)
	case OpFunction:
		// entry marker only; no runtime effect when stepped over linearly.
	case OpReturn:
		m.doReturn(op.Imm)
		advance = false

	case OpDebug:
		fmt.Fprintln(m.Out, op.Text)

	default:
		return diag.Errorf(diag.Runtime, 0, 0, "unknown opcode %v", op.Code)
	}

	if advance {
		m.progPtr++
	}
	return nil
}

func (m *Machine) entryFor(name string) int64 {
	return m.Program.Functions[name]
}

func (m *Machine) readMemory(ptr uint64, size int64) []byte {
	switch {
	case isHeapPtr(ptr):
		return append([]byte{}, m.heap.load(untag(ptr), size)...)
	case isRomPtr(ptr):
		off := untag(ptr)
		return append([]byte{}, m.rodata[off:off+size]...)
	default:
		off := int64(ptr)
		return append([]byte{}, m.Stack[off:off+size]...)
	}
}

func (m *Machine) writeMemory(ptr uint64, data []byte) error {
	switch {
	case isHeapPtr(ptr):
		m.heap.save(untag(ptr), data)
	case isRomPtr(ptr):
		return diag.Errorf(diag.Runtime, 0, 0, "save: cannot write to read-only rodata")
	default:
		off := int64(ptr)
		copy(m.Stack[off:off+int64(len(data))], data)
	}
	return nil
}

// call implements the function-call half of the calling convention: args
// worth argsSize bytes are already on top of the stack; a 16-byte frame
// header (saved base_ptr, saved return prog_ptr) is spliced in just below
// them so that, once spliced, args sit contiguous at base_ptr+16 as
// spec.md requires.
func (m *Machine) call(argsSize int64, entry int64) {
	argsStart := int64(len(m.Stack)) - argsSize
	m.Stack = append(m.Stack, make([]byte, 16)...)
	copy(m.Stack[argsStart+16:], m.Stack[argsStart:argsStart+argsSize])
	putU64(m.Stack[argsStart:argsStart+8], uint64(m.basePtr))
	putU64(m.Stack[argsStart+8:argsStart+16], uint64(m.progPtr+1))
	m.basePtr = argsStart
	m.progPtr = entry
}

// doReturn implements op_return: the top resultSize bytes are the return
// value; they memmove down to base_ptr, the stack truncates there, and the
// saved base_ptr/prog_ptr are restored from the frame header.
func (m *Machine) doReturn(resultSize int64) {
	result := m.PopBytes(int(resultSize))
	savedBase := getU64(m.Stack[m.basePtr : m.basePtr+8])
	savedProg := getU64(m.Stack[m.basePtr+8 : m.basePtr+16])
	m.Stack = m.Stack[:m.basePtr]
	m.Stack = append(m.Stack, result...)
	m.basePtr = int64(savedBase)
	m.progPtr = int64(savedProg)
}

func (m *Machine) applyNumeric(op Op) error {
	switch op.Type.Name {
	case "i32":
		r, l := asI32(m.PopBytes(8)), asI32(m.PopBytes(8))
		return m.applyInt(op.Code, int64(l), int64(r), func(v int64) []byte { return i64Bytes(int64(int32(v))) })
	case "i64":
		r, l := asI64(m.PopBytes(8)), asI64(m.PopBytes(8))
		return m.applyInt(op.Code, l, r, i64Bytes)
	case "u64":
		r, l := asU64(m.PopBytes(8)), asU64(m.PopBytes(8))
		return m.applyUint(op.Code, l, r)
	case "f64":
		r, l := asF64(m.PopBytes(8)), asF64(m.PopBytes(8))
		return m.applyFloat(op.Code, l, r)
	default:
		return diag.Errorf(diag.Runtime, 0, 0, "invalid numeric op type %s", op.Type)
	}
}

func (m *Machine) applyInt(code OpCode, l, r int64, pack func(int64) []byte) error {
	switch code {
	case OpAdd:
		m.PushBytes(pack(l + r))
	case OpSub:
		m.PushBytes(pack(l - r))
	case OpMul:
		m.PushBytes(pack(l * r))
	case OpDiv:
		if r == 0 {
			return diag.Errorf(diag.Runtime, 0, 0, "division by zero")
		}
		m.PushBytes(pack(l / r))
	case OpMod:
		if r == 0 {
			return diag.Errorf(diag.Runtime, 0, 0, "division by zero")
		}
		m.PushBytes(pack(l % r))
	case OpEq:
		m.PushBytes(boolBytes(l == r))
	case OpNe:
		m.PushBytes(boolBytes(l != r))
	case OpLt:
		m.PushBytes(boolBytes(l < r))
	case OpLe:
		m.PushBytes(boolBytes(l <= r))
	case OpGt:
		m.PushBytes(boolBytes(l > r))
	case OpGe:
		m.PushBytes(boolBytes(l >= r))
	}
	return nil
}

func (m *Machine) applyUint(code OpCode, l, r uint64) error {
	switch code {
	case OpAdd:
		m.PushBytes(u64Bytes(l + r))
	case OpSub:
		m.PushBytes(u64Bytes(l - r))
	case OpMul:
		m.PushBytes(u64Bytes(l * r))
	case OpDiv:
		if r == 0 {
			return diag.Errorf(diag.Runtime, 0, 0, "division by zero")
		}
		m.PushBytes(u64Bytes(l / r))
	case OpMod:
		if r == 0 {
			return diag.Errorf(diag.Runtime, 0, 0, "division by zero")
		}
		m.PushBytes(u64Bytes(l % r))
	case OpEq:
		m.PushBytes(boolBytes(l == r))
	case OpNe:
		m.PushBytes(boolBytes(l != r))
	case OpLt:
		m.PushBytes(boolBytes(l < r))
	case OpLe:
		m.PushBytes(boolBytes(l <= r))
	case OpGt:
		m.PushBytes(boolBytes(l > r))
	case OpGe:
		m.PushBytes(boolBytes(l >= r))
	}
	return nil
}

func (m *Machine) applyFloat(code OpCode, l, r float64) error {
	switch code {
	case OpAdd:
		m.PushBytes(f64Bytes(l + r))
	case OpSub:
		m.PushBytes(f64Bytes(l - r))
	case OpMul:
		m.PushBytes(f64Bytes(l * r))
	case OpDiv:
		m.PushBytes(f64Bytes(l / r))
	case OpEq:
		m.PushBytes(boolBytes(l == r))
	case OpNe:
		m.PushBytes(boolBytes(l != r))
	case OpLt:
		m.PushBytes(boolBytes(l < r))
	case OpLe:
		m.PushBytes(boolBytes(l <= r))
	case OpGt:
		m.PushBytes(boolBytes(l > r))
	case OpGe:
		m.PushBytes(boolBytes(l >= r))
	}
	return nil
}
