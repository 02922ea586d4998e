package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.anzu")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

const sampleSource = `
fn add(a: i64, b: i64) -> i64 {
	return a + b;
}
fn main() {
	println(add(2, 3));
}
`

func TestRunModeExecutesProgram(t *testing.T) {
	path := writeSource(t, sampleSource)
	var out bytes.Buffer
	if err := run(path, "run", &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "5\n" {
		t.Fatalf("output = %q, want %q", out.String(), "5\n")
	}
}

func TestDebugModeTracesEachOp(t *testing.T) {
	path := writeSource(t, sampleSource)
	var out bytes.Buffer
	if err := run(path, "debug", &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "[trace]") {
		t.Fatalf("output = %q, want trace lines", out.String())
	}
	if !strings.Contains(out.String(), "\n5\n") {
		t.Fatalf("output = %q, want it to still print the program's own output", out.String())
	}
}

func TestComModeDisassembles(t *testing.T) {
	path := writeSource(t, sampleSource)
	var out bytes.Buffer
	if err := run(path, "com", &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "function add") {
		t.Fatalf("disassembly = %q, want it to mention function add", out.String())
	}
}

func TestCheckModeReportsFunctionCount(t *testing.T) {
	path := writeSource(t, sampleSource)
	var out bytes.Buffer
	if err := run(path, "check", &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "2 functions") {
		t.Fatalf("output = %q, want it to mention 2 functions", out.String())
	}
}

func TestParseModeListsDeclarations(t *testing.T) {
	path := writeSource(t, sampleSource)
	var out bytes.Buffer
	if err := run(path, "parse", &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "FunctionDecl(add") {
		t.Fatalf("output = %q, want a FunctionDecl(add...) line", out.String())
	}
	if !strings.Contains(out.String(), "FunctionDecl(main") {
		t.Fatalf("output = %q, want a FunctionDecl(main...) line", out.String())
	}
}

func TestLexModeListsTokensUpToEOF(t *testing.T) {
	path := writeSource(t, "fn main() {}\n")
	var out bytes.Buffer
	if err := run(path, "lex", &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "EOF") {
		t.Fatalf("output = %q, want it to end with an EOF token", out.String())
	}
}

func TestRunModeSurfacesCheckError(t *testing.T) {
	path := writeSource(t, `
fn main() {
	println(undefinedName);
}
`)
	var out bytes.Buffer
	if err := run(path, "run", &out); err == nil {
		t.Fatalf("run: want an error for an undefined name, got nil")
	}
}
