package checker

import (
	"testing"

	"anzu/pkg/ast"
	"anzu/pkg/parser"
	"anzu/pkg/types"
)

func mustCheck(t *testing.T, src string) *Checker {
	t.Helper()
	f, err := parser.ParseFile([]byte(src))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	c, err := Check(f)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return c
}

func TestCheckSimpleArithmetic(t *testing.T) {
	c := mustCheck(t, `
fn add(a: i32, b: i32) -> i32 {
	return a + b;
}
`)
	sig := c.Funcs["add"]
	if !sig.Return.Equal(types.I32) {
		t.Fatalf("return type = %s, want i32", sig.Return)
	}
}

func TestCheckRejectsTypeMismatch(t *testing.T) {
	_, err := parser.ParseFile([]byte(`
fn main() {
	x: i32 := 1.5;
}
`))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	f, _ := parser.ParseFile([]byte(`
fn main() {
	x: i32 := 1.5;
}
`))
	if _, err := Check(f); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestCheckVarDeclZeroInit(t *testing.T) {
	c := mustCheck(t, `
fn main() {
	x: i32;
}
`)
	_ = c
}

func TestCheckVarDeclNeedsTypeOrInitializer(t *testing.T) {
	f, err := parser.ParseFile([]byte(`
fn main() {
	x: i32;
}
`))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	// A zero-init decl always carries the parsed type, so force the error
	// path directly by clearing it, since the grammar has no surface form
	// that reaches checkVarDecl with both Type and Value nil.
	fn := f.Decls[0].(*ast.FunctionDecl)
	vd := fn.Body.Stmts[0].(*ast.VarDecl)
	vd.Type = nil
	if _, err := Check(f); err == nil {
		t.Fatalf("expected error for declaration with no type and no initializer")
	}
}

func TestCheckStructFieldAccess(t *testing.T) {
	f, err := parser.ParseFile([]byte(`
struct Point {
	x: i32,
	y: i32,
}

fn main() {
	p := Point{x: 1i32, y: 2i32};
	s := p.x;
}
`))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	c, err := Check(f)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	def, ok := c.Store.Lookup("Point")
	if !ok || def.Size != 16 {
		t.Fatalf("unexpected Point layout: %+v", def)
	}
}

func TestCheckForwardFunctionReference(t *testing.T) {
	mustCheck(t, `
fn main() {
	x := helper(1i32);
}

fn helper(x: i32) -> i32 {
	return x;
}
`)
}

func TestCheckBuiltinCall(t *testing.T) {
	mustCheck(t, `
fn main() {
	println(42);
}
`)
}

func TestCheckNewAndDelete(t *testing.T) {
	mustCheck(t, `
fn main() {
	p := new i32;
	delete p;
}
`)
}

func TestCheckUndefinedName(t *testing.T) {
	f, err := parser.ParseFile([]byte(`
fn main() {
	x := y;
}
`))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if _, err := Check(f); err == nil {
		t.Fatalf("expected undefined-name error")
	}
}

func TestLocalOffsetsFollowArgsConvention(t *testing.T) {
	f, err := parser.ParseFile([]byte(`
fn add(a: i32, b: i32) -> i32 {
	c := a + b;
	return c;
}
`))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if _, err := Check(f); err != nil {
		t.Fatalf("Check: %v", err)
	}
	fn := f.Decls[0].(*ast.FunctionDecl)
	vd := fn.Body.Stmts[0].(*ast.VarDecl)
	// a and b each occupy 8 bytes starting at offset 16 (after the in-band
	// saved base_ptr/prog_ptr), so the first local lands at 32.
	if vd.Offset != 32 {
		t.Fatalf("local offset = %d, want 32", vd.Offset)
	}
}
