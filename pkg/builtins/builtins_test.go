package builtins

import (
	"encoding/binary"
	"math"
	"testing"

	"anzu/pkg/types"
)

type fakeFrame struct {
	stack  [][]byte
	output string
}

func (f *fakeFrame) PopBytes(n int) []byte {
	top := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	if len(top) != n {
		panic("size mismatch in test fake")
	}
	return top
}

func (f *fakeFrame) PushBytes(b []byte) {
	if len(b) > 0 {
		f.stack = append(f.stack, b)
	}
}

func (f *fakeFrame) Print(s string) { f.output += s }

func pushU64Arg(f *fakeFrame, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	f.stack = append(f.stack, b)
}

func pushF64Arg(f *fakeFrame, v float64) {
	pushU64Arg(f, math.Float64bits(v))
}

func TestSqrt(t *testing.T) {
	e, ok := Lookup("sqrt", []types.Type{types.F64})
	if !ok {
		t.Fatalf("sqrt(f64) not registered")
	}
	f := &fakeFrame{}
	pushF64Arg(f, 16.0)
	e.Call(f)
	if len(f.stack) != 1 {
		t.Fatalf("expected one pushed result, got %d", len(f.stack))
	}
	got := math.Float64frombits(binary.LittleEndian.Uint64(f.stack[0]))
	if got != 4.0 {
		t.Fatalf("sqrt(16) = %v, want 4", got)
	}
}

func TestPrintlnI64(t *testing.T) {
	e, ok := Lookup("println", []types.Type{types.I64})
	if !ok {
		t.Fatalf("println(i64) not registered")
	}
	f := &fakeFrame{}
	var neg int64 = -7
	pushU64Arg(f, uint64(neg))
	e.Call(f)
	if f.output != "-7\n" {
		t.Fatalf("output = %q, want %q", f.output, "-7\n")
	}
	if len(f.stack) != 1 || len(f.stack[0]) != 1 || f.stack[0][0] != 0 {
		t.Fatalf("expected a single zero byte pushed for void builtin, got %v", f.stack)
	}
}

func TestUnknownOverloadNotFound(t *testing.T) {
	if _, ok := Lookup("sqrt", []types.Type{types.I32}); ok {
		t.Fatalf("sqrt(i32) should not be registered")
	}
	if _, ok := Lookup("frobnicate", nil); ok {
		t.Fatalf("unknown builtin should not resolve")
	}
}

func TestPrintBoolAndChar(t *testing.T) {
	e, ok := Lookup("print", []types.Type{types.Bool})
	if !ok {
		t.Fatalf("print(bool) not registered")
	}
	f := &fakeFrame{}
	pushU64Arg(f, 1)
	e.Call(f)
	if f.output != "true" {
		t.Fatalf("output = %q, want %q", f.output, "true")
	}

	e, ok = Lookup("print", []types.Type{types.Char})
	if !ok {
		t.Fatalf("print(char) not registered")
	}
	f2 := &fakeFrame{}
	f2.stack = append(f2.stack, []byte{'x'})
	e.Call(f2)
	if f2.output != "x" {
		t.Fatalf("output = %q, want %q", f2.output, "x")
	}
}
