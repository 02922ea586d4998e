package vm_test

// Source-level end-to-end tests driving the full lexer/parser/checker/
// compiler/vm pipeline on the scenarios once catalogued for the language's
// testable-properties section, mirroring pkg/compiler/*_test.go's file-per-
// feature split but exercised here through vm.Program.Disassemble and
// vm.Machine.Run rather than hand-built Op slices.

import (
	"bytes"
	"strings"
	"testing"

	"anzu/pkg/checker"
	"anzu/pkg/compiler"
	"anzu/pkg/parser"
	"anzu/pkg/vm"
)

func compileSource(t *testing.T, src string) *vm.Program {
	t.Helper()
	file, err := parser.ParseFile([]byte(src))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	chk, err := checker.Check(file)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	prog, err := compiler.Compile(file, chk)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return prog
}

func runSource(t *testing.T, src string) (*vm.Machine, string) {
	t.Helper()
	prog := compileSource(t, src)
	var out bytes.Buffer
	m := vm.New(prog, &out)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return m, out.String()
}

func TestE2EArithmeticDisassemblesAndRuns(t *testing.T) {
	prog := compileSource(t, `
fn main() {
	println(1 + 2);
}
`)
	dis := prog.Disassemble()
	for _, want := range []string{"load_bytes", "add.", "return"} {
		if !strings.Contains(dis, want) {
			t.Fatalf("disassembly missing %q, got:\n%s", want, dis)
		}
	}

	var out bytes.Buffer
	m := vm.New(prog, &out)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "3\n" {
		t.Fatalf("output = %q, want %q", out.String(), "3\n")
	}
}

func TestE2ESqrtBuiltin(t *testing.T) {
	_, out := runSource(t, `
fn main() {
	println(sqrt(9.0f64));
}
`)
	if out != "3\n" {
		t.Fatalf("output = %q, want %q", out, "3\n")
	}
}

func TestE2EArrayIndexing(t *testing.T) {
	_, out := runSource(t, `
fn main() {
	x: list<i64,3> := [10, 20, 30];
	println(x[1]);
}
`)
	if out != "20\n" {
		t.Fatalf("output = %q, want %q", out, "20\n")
	}
}

func TestE2EHeapRoundTripLeavesNoLeak(t *testing.T) {
	m, out := runSource(t, `
fn main() {
	p: ptr<i64> := new i64;
	@p = 42;
	println(@p);
	delete p;
}
`)
	if out != "42\n" {
		t.Fatalf("output = %q, want %q", out, "42\n")
	}
	if m.HeapBytesLive() != 0 {
		t.Fatalf("bytesLive = %d, want 0", m.HeapBytesLive())
	}
}

func TestE2EMissingDeleteReportsLeak(t *testing.T) {
	m, out := runSource(t, `
fn main() {
	p: ptr<i64> := new i64;
	@p = 42;
	println(@p);
}
`)
	if !strings.HasPrefix(out, "42\n") {
		t.Fatalf("output = %q, want prefix %q", out, "42\n")
	}
	if !strings.Contains(out, "fix your memory leak") {
		t.Fatalf("output missing leak warning: %q", out)
	}
	if m.HeapBytesLive() != 16 {
		t.Fatalf("bytesLive = %d, want 16", m.HeapBytesLive())
	}
}

// TestE2EVoidBuiltinCallDoesNotGrowStackAcrossIterations single-steps a
// loop that calls a void builtin (println, which pushes a one-byte result
// even though it has nothing to return) 200 times, and asserts the stack
// never grows past a small bound. If the statement that discards the call's
// result failed to pop that one byte, the stack would climb by roughly one
// byte per iteration and comfortably exceed the bound well before the loop
// ends.
func TestE2EVoidBuiltinCallDoesNotGrowStackAcrossIterations(t *testing.T) {
	prog := compileSource(t, `
fn main() {
	i: i64 := 0;
	while i < 200 {
		println(i);
		i = i + 1;
	}
}
`)
	var out bytes.Buffer
	m := vm.New(prog, &out)
	m.Init()
	var maxLen int
	for {
		done, err := m.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if len(m.Stack) > maxLen {
			maxLen = len(m.Stack)
		}
		if done {
			break
		}
	}
	const bound = 64 // frame header + one i64 local + transient operands, no per-iteration growth
	if maxLen > bound {
		t.Fatalf("stack grew to %d bytes across 200 iterations, want <= %d (leaked void-call result?)", maxLen, bound)
	}
}

func TestE2ERecursiveFibonacci(t *testing.T) {
	_, out := runSource(t, `
fn fib(n: i64) -> i64 {
	if n < 2 {
		return n;
	}
	return fib(n - 1) + fib(n - 2);
}
fn main() {
	println(fib(10));
}
`)
	if out != "55\n" {
		t.Fatalf("output = %q, want %q", out, "55\n")
	}
}
