// Package types models Anzu's type-name variant and the process-lifetime
// store of struct layouts, generalizing the teacher's symtable.go TypeInfo
// (which only distinguishes array/struct/byte/pointer/unsigned) into the
// full simple/list/ptr/span/reference/function_ptr variant that
// original_source/object.hpp defines.
package types

import "fmt"

// Kind discriminates the type-name variant.
type Kind int

const (
	Simple Kind = iota
	List
	Ptr
	Span
	Reference
	FunctionPtr
)

// Type is a structural type name. Two Types denote the same type iff Equal
// reports true; Types are otherwise plain values and safe to copy.
type Type struct {
	Kind   Kind
	Name   string  // Simple only, e.g. "i32", "bool", or a struct name
	Inner  *Type   // List, Ptr, Span, Reference
	Count  int64   // List only
	Params []Type  // FunctionPtr only
	Return *Type   // FunctionPtr only
}

// Well-known simple types.
var (
	I32  = Type{Kind: Simple, Name: "i32"}
	I64  = Type{Kind: Simple, Name: "i64"}
	U64  = Type{Kind: Simple, Name: "u64"}
	F64  = Type{Kind: Simple, Name: "f64"}
	Bool = Type{Kind: Simple, Name: "bool"}
	Char = Type{Kind: Simple, Name: "char"}
	Null = Type{Kind: Simple, Name: "null"}
	Void = Type{Kind: Simple, Name: "void"}
)

// NewList builds a `list<inner,count>` type.
func NewList(inner Type, count int64) Type {
	return Type{Kind: List, Inner: &inner, Count: count}
}

// NewPtr builds a `ptr<inner>` type.
func NewPtr(inner Type) Type {
	return Type{Kind: Ptr, Inner: &inner}
}

// NewSpan builds a `span<inner>` type.
func NewSpan(inner Type) Type {
	return Type{Kind: Span, Inner: &inner}
}

// NewReference builds a `reference<inner>` type.
func NewReference(inner Type) Type {
	return Type{Kind: Reference, Inner: &inner}
}

// NewFunctionPtr builds a `fn(params...) -> ret` type.
func NewFunctionPtr(params []Type, ret Type) Type {
	return Type{Kind: FunctionPtr, Params: params, Return: &ret}
}

// Equal reports whether t and o denote the same type, structurally.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case Simple:
		return t.Name == o.Name
	case List:
		return t.Count == o.Count && t.Inner.Equal(*o.Inner)
	case Ptr, Span, Reference:
		return t.Inner.Equal(*o.Inner)
	case FunctionPtr:
		if len(t.Params) != len(o.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return t.Return.Equal(*o.Return)
	default:
		return false
	}
}

// Hash is a hand-rolled structural hash, mirroring object.hpp's
// hash(type_name) pattern of folding the variant's fields rather than
// reaching for hash/fnv over a serialized form.
func (t Type) Hash() uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis, folded by hand below
	mix := func(x uint64) {
		h ^= x
		h *= 1099511628211
	}
	mixStr := func(s string) {
		for i := 0; i < len(s); i++ {
			mix(uint64(s[i]))
		}
	}

	mix(uint64(t.Kind))
	switch t.Kind {
	case Simple:
		mixStr(t.Name)
	case List:
		mix(uint64(t.Count))
		mix(t.Inner.Hash())
	case Ptr, Span, Reference:
		mix(t.Inner.Hash())
	case FunctionPtr:
		for _, p := range t.Params {
			mix(p.Hash())
		}
		mix(t.Return.Hash())
	}
	return h
}

// String renders a type the way Anzu source spells it.
func (t Type) String() string {
	switch t.Kind {
	case Simple:
		return t.Name
	case List:
		return fmt.Sprintf("list<%s,%d>", t.Inner.String(), t.Count)
	case Ptr:
		return fmt.Sprintf("ptr<%s>", t.Inner.String())
	case Span:
		return fmt.Sprintf("span<%s>", t.Inner.String())
	case Reference:
		return fmt.Sprintf("reference<%s>", t.Inner.String())
	case FunctionPtr:
		parts := "fn("
		for i, p := range t.Params {
			if i > 0 {
				parts += ","
			}
			parts += p.String()
		}
		return parts + ") -> " + t.Return.String()
	default:
		return "<invalid>"
	}
}

// IsNumeric reports whether t is one of i32, i64, u64, f64.
func (t Type) IsNumeric() bool {
	return t.Kind == Simple && (t.Name == "i32" || t.Name == "i64" || t.Name == "u64" || t.Name == "f64")
}

// IsInteger reports whether t is one of i32, i64, u64.
func (t Type) IsInteger() bool {
	return t.Kind == Simple && (t.Name == "i32" || t.Name == "i64" || t.Name == "u64")
}
