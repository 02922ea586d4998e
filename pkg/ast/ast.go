// Package ast defines the syntax tree produced by pkg/parser and consumed by
// pkg/checker and pkg/compiler. Node shapes follow the teacher's marker-
// interface pattern (Expr/Stmt with an unexported tag method), generalized
// from the teacher's C-subset grammar to Anzu's pointer/span/struct grammar.
package ast

import (
	"anzu/pkg/token"
	"anzu/pkg/types"
)

// Expr is any expression node. Every node carries the token it started at,
// for diagnostics, and a ResolvedType slot the checker fills in.
type Expr interface {
	exprNode()
	Pos() token.Token
}

// TypeExpr is a type written in source position (a variable declaration's
// annotation, a cast target, a function's parameter or return type).
type TypeExpr interface {
	typeExprNode()
	Pos() token.Token
}

// Stmt is any statement node.
type Stmt interface {
	stmtNode()
	Pos() token.Token
}

// Base carries the token a node started at. It is embedded anonymously in
// every node so Pos() promotes automatically; construct one with NewBase.
type Base token.Token

// NewBase wraps tok as a node's embedded Base.
func NewBase(tok token.Token) Base { return Base(tok) }

func (b Base) Pos() token.Token { return token.Token(b) }

// ---- Expressions -----------------------------------------------------

// IntLiteral is a signed or unsigned integer constant (i32, i64 or u64,
// distinguished by the originating token kind).
type IntLiteral struct {
	Base
	Value        uint64
	ResolvedType types.Type
}

// FloatLiteral is an f64 constant.
type FloatLiteral struct {
	Base
	Value        float64
	ResolvedType types.Type
}

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	Base
	Value        bool
	ResolvedType types.Type
}

// CharLiteral is a single-character `char` constant.
type CharLiteral struct {
	Base
	Value        byte
	ResolvedType types.Type
}

// StringLiteral is a `span<char>` constant backed by rodata.
type StringLiteral struct {
	Base
	Value        string
	ResolvedType types.Type
}

// NullLiteral is `null`, the zero value of a reference or optional-like
// pointee.
type NullLiteral struct {
	Base
	ResolvedType types.Type
}

// NullptrLiteral is `nullptr`, the zero pointer value.
type NullptrLiteral struct {
	Base
	ResolvedType types.Type
}

// NameRef is a bare identifier reference to a variable, function, or struct
// name depending on context.
type NameRef struct {
	Base
	Name         string
	ResolvedType types.Type
}

// UnaryExpr is a prefix operator applied to a single operand (`-x`, `!x`).
type UnaryExpr struct {
	Base
	Op           token.Kind
	Operand      Expr
	ResolvedType types.Type
}

// BinaryExpr is an infix arithmetic, comparison, or bitwise operator.
type BinaryExpr struct {
	Base
	Op           token.Kind
	Left, Right  Expr
	ResolvedType types.Type
}

// LogicalExpr is `&&` or `||`, kept distinct from BinaryExpr because it
// short-circuits at compile time via jump patching rather than lowering to
// an op.
type LogicalExpr struct {
	Base
	Op           token.Kind
	Left, Right  Expr
	ResolvedType types.Type
}

// AddressOfExpr is `&x`, producing a `ptr<T>` from an lvalue.
type AddressOfExpr struct {
	Base
	Operand      Expr
	ResolvedType types.Type
}

// DerefExpr is `@p`, dereferencing a `ptr<T>` or `reference<T>` to its
// pointee.
type DerefExpr struct {
	Base
	Operand      Expr
	ResolvedType types.Type
}

// ConstExpr is `const e`, wrapping e as a const-qualified expression. The
// checker and compiler treat it exactly as e; taking its address is not
// rejected.
type ConstExpr struct {
	Base
	Operand      Expr
	ResolvedType types.Type
}

// CallExpr is `f(args...)`, a free-function or function-pointer call.
type CallExpr struct {
	Base
	Callee       Expr
	Args         []Expr
	ResolvedType types.Type
}

// MethodCallExpr is `recv.name(args...)`, resolved against the builtin
// registry or a struct's associated functions.
type MethodCallExpr struct {
	Base
	Receiver     Expr
	Name         string
	Args         []Expr
	ResolvedType types.Type
}

// FieldAccessExpr is `expr.field` on a struct value or pointer to one.
type FieldAccessExpr struct {
	Base
	Receiver     Expr
	Field        string
	ResolvedType types.Type
}

// IndexExpr is `expr[index]` on a `list<T,N>` or `span<T>`.
type IndexExpr struct {
	Base
	Receiver     Expr
	Index        Expr
	ResolvedType types.Type
}

// SpanExpr is `expr[lo:hi]`, slicing a list or span into a `span<T>`.
type SpanExpr struct {
	Base
	Receiver     Expr
	Low, High    Expr // either may be nil, meaning "start"/"end"
	ResolvedType types.Type
}

// ArrayLiteral is `[e1, e2, ...]`, a fixed-size list constructor.
type ArrayLiteral struct {
	Base
	Elements     []Expr
	ResolvedType types.Type
}

// RepeatArrayLiteral is `[e; n]`, a fixed-size list of n copies of e.
type RepeatArrayLiteral struct {
	Base
	Element      Expr
	Count        Expr
	ResolvedType types.Type
}

// StructLiteral is `Name{field: expr, ...}`.
type StructLiteral struct {
	Base
	StructName   string
	FieldNames   []string
	FieldValues  []Expr
	ResolvedType types.Type
}

// TypeofExpr is `typeof(e)`, resolved statically and never lowered to
// bytecode.
type TypeofExpr struct {
	Base
	Operand      Expr
	ResolvedType types.Type
}

// SizeofExpr is `sizeof(T)` or `sizeof(e)`, resolved statically: the checker
// types it as u64 and the compiler emits the operand type's size as a
// constant, without evaluating e.
type SizeofExpr struct {
	Base
	OperandType TypeExpr // set when sizeof was given a type
	Operand     Expr     // set when sizeof was given an expression
	ResolvedType types.Type
}

// NewExpr is `new T` or `new T[n]`, a heap allocation.
type NewExpr struct {
	Base
	ElemType     TypeExpr
	Count        Expr // nil for a single-element allocation
	ResolvedType types.Type
}

func (*IntLiteral) exprNode()         {}
func (*FloatLiteral) exprNode()       {}
func (*BoolLiteral) exprNode()        {}
func (*CharLiteral) exprNode()        {}
func (*StringLiteral) exprNode()      {}
func (*NullLiteral) exprNode()        {}
func (*NullptrLiteral) exprNode()     {}
func (*NameRef) exprNode()            {}
func (*UnaryExpr) exprNode()          {}
func (*BinaryExpr) exprNode()         {}
func (*LogicalExpr) exprNode()        {}
func (*AddressOfExpr) exprNode()      {}
func (*DerefExpr) exprNode()          {}
func (*ConstExpr) exprNode()          {}
func (*CallExpr) exprNode()           {}
func (*MethodCallExpr) exprNode()     {}
func (*FieldAccessExpr) exprNode()    {}
func (*IndexExpr) exprNode()          {}
func (*SpanExpr) exprNode()           {}
func (*ArrayLiteral) exprNode()       {}
func (*RepeatArrayLiteral) exprNode() {}
func (*StructLiteral) exprNode()      {}
func (*TypeofExpr) exprNode()         {}
func (*SizeofExpr) exprNode()         {}
func (*NewExpr) exprNode()            {}

// ---- Type expressions --------------------------------------------------

// NamedTypeExpr is a bare or generic-looking type name: `i32`, `Point`,
// `list<i32,4>`, `ptr<i32>`, `span<char>`, `reference<Point>`.
type NamedTypeExpr struct {
	Base
	Name  string
	Inner TypeExpr // for list/ptr/span/reference
	Count Expr     // for list
}

// FunctionPtrTypeExpr is `fn(T1,T2) -> R` used as a type.
type FunctionPtrTypeExpr struct {
	Base
	Params []TypeExpr
	Return TypeExpr
}

func (*NamedTypeExpr) typeExprNode()       {}
func (*FunctionPtrTypeExpr) typeExprNode() {}

// ---- Statements ---------------------------------------------------------

// Block is a `{ ... }` sequence of statements introducing a new scope.
type Block struct {
	Base
	Stmts []Stmt
}

// VarDecl is `name : Type := expr` or `name := expr` (inferred type).
type VarDecl struct {
	Base
	Name    string
	Type    TypeExpr // nil when inferred
	Value   Expr
	VarType types.Type
	Offset  int64 // filled in by the checker's layout pass
}

// Assignment is `lhs = rhs` where lhs is any lvalue expression.
type Assignment struct {
	Base
	Target Expr
	Value  Expr
}

// ExprStmt is an expression evaluated for its side effect, its result
// discarded.
type ExprStmt struct {
	Base
	Expr Expr
}

// IfStmt is `if cond { ... } else { ... }`; Else may be nil.
type IfStmt struct {
	Base
	Cond Expr
	Then *Block
	Else Stmt // *Block or *IfStmt, nil if absent
}

// WhileStmt is `while cond { ... }`.
type WhileStmt struct {
	Base
	Cond Expr
	Body *Block
}

// LoopStmt is `loop { ... }`, an unconditional loop broken by `break`.
type LoopStmt struct {
	Base
	Body *Block
}

// ForInStmt is `for name in expr { ... }`, iterating a list or span.
type ForInStmt struct {
	Base
	VarName string
	Iter    Expr
	Body    *Block
}

// BreakStmt is `break`.
type BreakStmt struct{ Base }

// ContinueStmt is `continue`.
type ContinueStmt struct{ Base }

// ReturnStmt is `return` or `return expr`.
type ReturnStmt struct {
	Base
	Value Expr // nil for a bare return
}

// AssertStmt is `assert cond`. The checker retains the source text of cond
// for the failure message.
type AssertStmt struct {
	Base
	Cond   Expr
	Source string
}

// DeleteStmt is `delete expr`, freeing a heap pointer.
type DeleteStmt struct {
	Base
	Operand Expr
}

// Param is one function parameter.
type Param struct {
	Name string
	Type TypeExpr
}

// FunctionDecl is `fn name(params...) -> Return { ... }`.
type FunctionDecl struct {
	Base
	Name       string
	Params     []Param
	ReturnType TypeExpr // nil means void
	Body       *Block
}

// StructField is one field of a struct declaration.
type StructField struct {
	Name string
	Type TypeExpr
}

// StructDecl is `struct Name { field: Type, ... }`.
type StructDecl struct {
	Base
	Name   string
	Fields []StructField
}

// ImportStmt is `import "path"`, resolved by pkg/loader before checking.
type ImportStmt struct {
	Base
	Path string
}

func (*Block) stmtNode()        {}
func (*VarDecl) stmtNode()      {}
func (*Assignment) stmtNode()   {}
func (*ExprStmt) stmtNode()     {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*LoopStmt) stmtNode()     {}
func (*ForInStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()   {}
func (*AssertStmt) stmtNode()   {}
func (*DeleteStmt) stmtNode()   {}
func (*FunctionDecl) stmtNode() {}
func (*StructDecl) stmtNode()   {}
func (*ImportStmt) stmtNode()   {}

// File is a whole parsed source file: a flat sequence of top-level
// declarations (functions, structs, imports).
type File struct {
	Decls []Stmt
}
