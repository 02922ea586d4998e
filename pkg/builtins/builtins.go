// Package builtins is the process-lifetime, immutable table of native
// functions Anzu programs can call: sqrt and the print/println family,
// grounded on original_source/functions.cpp's exact signature set. The
// registry is keyed by (name, argument-type vector) exactly as
// functions.cpp's overload set is, shared read-only between pkg/checker
// (for overload resolution) and pkg/vm (for dispatch), the same
// shared-registry shape as the teacher's peripherals being handed to both
// the compiler's symbol table and the running CPU.
package builtins

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"anzu/pkg/types"
)

// Frame is the minimal stack access a builtin needs: pop its arguments (in
// call order, rightmost pushed last) and push its single result, plus a
// sink for print output. pkg/vm's execution context implements this.
type Frame interface {
	PopBytes(n int) []byte
	PushBytes(b []byte)
	Print(s string)
}

// Signature is a builtin's name and static type.
type Signature struct {
	Name   string
	Params []types.Type
	Return types.Type
}

func (s Signature) String() string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.String()
	}
	return fmt.Sprintf("%s(%s)", s.Name, strings.Join(names, ","))
}

// Entry pairs a signature with its native implementation.
type Entry struct {
	Signature
	Call func(f Frame)
}

var registry = map[string]*Entry{}

func key(name string, params []types.Type) string {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range params {
		b.WriteByte('|')
		b.WriteString(p.String())
	}
	return b.String()
}

func register(name string, params []types.Type, ret types.Type, call func(f Frame)) {
	e := &Entry{Signature: Signature{Name: name, Params: params, Return: ret}, Call: call}
	registry[key(name, params)] = e
}

// Lookup resolves a call by exact (name, argument types) match, the same
// overload-resolution rule functions.cpp's call sites use.
func Lookup(name string, params []types.Type) (*Entry, bool) {
	e, ok := registry[key(name, params)]
	return e, ok
}

// Names returns every registered builtin name, for diagnostics.
func Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range registry {
		if !seen[e.Name] {
			seen[e.Name] = true
			out = append(out, e.Name)
		}
	}
	return out
}

func popU64(f Frame) uint64  { return binary.LittleEndian.Uint64(f.PopBytes(8)) }
func popI64(f Frame) int64   { return int64(popU64(f)) }
func popF64(f Frame) float64 { return math.Float64frombits(popU64(f)) }
func popBool(f Frame) bool   { return popU64(f) != 0 }
func popChar(f Frame) byte   { return f.PopBytes(1)[0] }

func pushU64(f Frame, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	f.PushBytes(b)
}
func pushF64(f Frame, v float64) { pushU64(f, math.Float64bits(v)) }

// pushVoid pushes the single zero byte every void-returning builtin leaves
// on the stack, standing in for null so a builtin call always yields
// exactly one result regardless of its declared return type.
func pushVoid(f Frame) { f.PushBytes([]byte{0}) }

func init() {
	register("sqrt", []types.Type{types.F64}, types.F64, func(f Frame) {
		v := popF64(f)
		pushF64(f, math.Sqrt(v))
	})

	registerPrint("print", false)
	registerPrint("println", true)
}

// registerPrint wires one overload of print/println per printable type,
// matching functions.cpp's per-type print_* family: u64, i32, i64, f64,
// char, bool, null.
func registerPrint(name string, newline bool) {
	suffix := ""
	if newline {
		suffix = "\n"
	}
	register(name, []types.Type{types.U64}, types.Void, func(f Frame) {
		f.Print(fmt.Sprintf("%d%s", popU64(f), suffix))
		pushVoid(f)
	})
	register(name, []types.Type{types.I32}, types.Void, func(f Frame) {
		f.Print(fmt.Sprintf("%d%s", int32(popI64(f)), suffix))
		pushVoid(f)
	})
	register(name, []types.Type{types.I64}, types.Void, func(f Frame) {
		f.Print(fmt.Sprintf("%d%s", popI64(f), suffix))
		pushVoid(f)
	})
	register(name, []types.Type{types.F64}, types.Void, func(f Frame) {
		f.Print(fmt.Sprintf("%g%s", popF64(f), suffix))
		pushVoid(f)
	})
	register(name, []types.Type{types.Char}, types.Void, func(f Frame) {
		f.Print(fmt.Sprintf("%c%s", popChar(f), suffix))
		pushVoid(f)
	})
	register(name, []types.Type{types.Bool}, types.Void, func(f Frame) {
		f.Print(fmt.Sprintf("%t%s", popBool(f), suffix))
		pushVoid(f)
	})
	register(name, []types.Type{types.Null}, types.Void, func(f Frame) {
		popU64(f)
		f.Print(fmt.Sprintf("null%s", suffix))
		pushVoid(f)
	})
}
