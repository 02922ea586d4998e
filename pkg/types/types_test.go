package types

import "testing"

func TestEqualStructural(t *testing.T) {
	a := NewList(I32, 4)
	b := NewList(I32, 4)
	if !a.Equal(b) {
		t.Fatalf("expected %s == %s", a, b)
	}
	c := NewList(I32, 5)
	if a.Equal(c) {
		t.Fatalf("expected %s != %s", a, c)
	}
	d := NewList(I64, 4)
	if a.Equal(d) {
		t.Fatalf("expected %s != %s", a, d)
	}
}

func TestEqualNested(t *testing.T) {
	a := NewPtr(NewSpan(Char))
	b := NewPtr(NewSpan(Char))
	if !a.Equal(b) {
		t.Fatalf("expected %s == %s", a, b)
	}
}

func TestEqualFunctionPtr(t *testing.T) {
	a := NewFunctionPtr([]Type{I32, F64}, Bool)
	b := NewFunctionPtr([]Type{I32, F64}, Bool)
	if !a.Equal(b) {
		t.Fatalf("expected %s == %s", a, b)
	}
	c := NewFunctionPtr([]Type{I32}, Bool)
	if a.Equal(c) {
		t.Fatalf("expected %s != %s", a, c)
	}
}

func TestHashMatchesEqual(t *testing.T) {
	a := NewList(NewPtr(I64), 3)
	b := NewList(NewPtr(I64), 3)
	if a.Hash() != b.Hash() {
		t.Fatalf("expected equal types to hash equal")
	}
	c := NewList(NewPtr(I64), 4)
	if a.Hash() == c.Hash() {
		t.Fatalf("expected different types to (almost certainly) hash differently")
	}
}

func TestStringRendering(t *testing.T) {
	tests := []struct {
		t    Type
		want string
	}{
		{I32, "i32"},
		{NewList(I32, 4), "list<i32,4>"},
		{NewPtr(Char), "ptr<char>"},
		{NewSpan(Char), "span<char>"},
		{NewReference(Bool), "reference<bool>"},
		{NewFunctionPtr([]Type{I32, I32}, Bool), "fn(i32,i32) -> bool"},
	}
	for _, tc := range tests {
		if got := tc.t.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestStoreSizeOfPrimitives(t *testing.T) {
	s := NewStore()
	cases := []struct {
		t    Type
		size int64
	}{
		{I32, 8},
		{I64, 8},
		{U64, 8},
		{F64, 8},
		{Bool, 8},
		{Char, 1},
		{NewPtr(I32), 8},
		{NewReference(I32), 8},
		{NewFunctionPtr(nil, Void), 8},
		{NewSpan(Char), 16},
		{NewList(I32, 4), 32},
	}
	for _, c := range cases {
		got, err := s.SizeOf(c.t)
		if err != nil {
			t.Fatalf("SizeOf(%s): %v", c.t, err)
		}
		if got != c.size {
			t.Errorf("SizeOf(%s) = %d, want %d", c.t, got, c.size)
		}
	}
}

func TestStoreStructLayout(t *testing.T) {
	s := NewStore()
	def, err := s.Add("Point", []string{"x", "y"}, []Type{I32, I32})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if def.Size != 16 {
		t.Fatalf("Point size = %d, want 16", def.Size)
	}
	if def.Fields[0].Offset != 0 || def.Fields[1].Offset != 8 {
		t.Fatalf("unexpected offsets: %+v", def.Fields)
	}

	named := Type{Kind: Simple, Name: "Point"}
	size, err := s.SizeOf(named)
	if err != nil || size != 16 {
		t.Fatalf("SizeOf(Point) = %d, %v", size, err)
	}
}

func TestStoreRejectsRedefinition(t *testing.T) {
	s := NewStore()
	if _, err := s.Add("Point", []string{"x"}, []Type{I32}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := s.Add("Point", []string{"y"}, []Type{I32}); err == nil {
		t.Fatalf("expected error redefining Point")
	}
}

func TestStoreNestedStruct(t *testing.T) {
	s := NewStore()
	if _, err := s.Add("Point", []string{"x", "y"}, []Type{I32, I32}); err != nil {
		t.Fatalf("Add Point: %v", err)
	}
	def, err := s.Add("Line", []string{"a", "b"}, []Type{
		{Kind: Simple, Name: "Point"},
		{Kind: Simple, Name: "Point"},
	})
	if err != nil {
		t.Fatalf("Add Line: %v", err)
	}
	if def.Size != 32 {
		t.Fatalf("Line size = %d, want 32", def.Size)
	}
	if def.Fields[1].Offset != 16 {
		t.Fatalf("Line.b offset = %d, want 16", def.Fields[1].Offset)
	}
}

func TestStoreUnknownType(t *testing.T) {
	s := NewStore()
	if _, err := s.SizeOf(Type{Kind: Simple, Name: "Missing"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
