package types

import "fmt"

// Field is one struct field's offset and type within its owning struct.
type Field struct {
	Name   string
	Type   Type
	Offset int64
}

// StructDef is a registered struct layout.
type StructDef struct {
	Name   string
	Fields []Field
	Size   int64
}

// Store holds struct layouts for the lifetime of a single compilation,
// generalizing symtable.go's StructDef map into a types.Store keyed by
// struct name, per object.hpp's type_store.
type Store struct {
	structs map[string]*StructDef
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{structs: make(map[string]*StructDef)}
}

// Contains reports whether name has already been registered.
func (s *Store) Contains(name string) bool {
	_, ok := s.structs[name]
	return ok
}

// Add registers a new struct layout, computing field offsets and the total
// size in declaration order. Re-registering an existing name is rejected:
// the store is monotonic, like the original type_store.add.
func (s *Store) Add(name string, fieldNames []string, fieldTypes []Type) (*StructDef, error) {
	if s.Contains(name) {
		return nil, fmt.Errorf("struct %q already defined", name)
	}
	def := &StructDef{Name: name}
	var offset int64
	for i, fname := range fieldNames {
		ftype := fieldTypes[i]
		size, err := s.SizeOf(ftype)
		if err != nil {
			return nil, err
		}
		def.Fields = append(def.Fields, Field{Name: fname, Type: ftype, Offset: offset})
		offset += size
	}
	def.Size = offset
	s.structs[name] = def
	return def, nil
}

// Lookup returns the registered layout for name, if any.
func (s *Store) Lookup(name string) (*StructDef, bool) {
	d, ok := s.structs[name]
	return d, ok
}

// FieldsOf returns the field layout of name.
func (s *Store) FieldsOf(name string) ([]Field, error) {
	d, ok := s.structs[name]
	if !ok {
		return nil, fmt.Errorf("unknown struct %q", name)
	}
	return d.Fields, nil
}

// SizeOf returns the byte size of t: 8 for ptr/function_ptr/reference, 16
// for span (pointer + length), count*size_of(inner) for list, and the
// registered struct size for a struct-named Simple type. Numeric and bool
// simple types are all 8 bytes wide in the byte-addressed value model;
// char is 1 byte.
func (s *Store) SizeOf(t Type) (int64, error) {
	switch t.Kind {
	case Ptr, FunctionPtr, Reference:
		return 8, nil
	case Span:
		return 16, nil
	case List:
		inner, err := s.SizeOf(*t.Inner)
		if err != nil {
			return 0, err
		}
		return inner * t.Count, nil
	case Simple:
		switch t.Name {
		case "i32", "i64", "u64", "f64", "bool", "null":
			return 8, nil
		case "char":
			return 1, nil
		default:
			d, ok := s.structs[t.Name]
			if !ok {
				return 0, fmt.Errorf("unknown type %q", t.Name)
			}
			return d.Size, nil
		}
	default:
		return 0, fmt.Errorf("invalid type %v", t)
	}
}
