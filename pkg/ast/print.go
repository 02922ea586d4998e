package ast

import (
	"fmt"
	"strings"
)

// ExprString renders e back to roughly the source text it came from, used
// only to embed the asserted expression in an assert failure message
// (spec.md's supplemented assert diagnostics). It is not a general
// pretty-printer and does not round-trip through the parser.
func ExprString(e Expr) string {
	switch n := e.(type) {
	case *IntLiteral:
		return fmt.Sprintf("%d", n.Value)
	case *FloatLiteral:
		return fmt.Sprintf("%g", n.Value)
	case *BoolLiteral:
		return fmt.Sprintf("%t", n.Value)
	case *CharLiteral:
		return fmt.Sprintf("%q", n.Value)
	case *StringLiteral:
		return fmt.Sprintf("%q", n.Value)
	case *NullLiteral:
		return "null"
	case *NullptrLiteral:
		return "nullptr"
	case *NameRef:
		return n.Name
	case *UnaryExpr:
		return n.Op.String() + ExprString(n.Operand)
	case *BinaryExpr:
		return ExprString(n.Left) + " " + n.Op.String() + " " + ExprString(n.Right)
	case *LogicalExpr:
		return ExprString(n.Left) + " " + n.Op.String() + " " + ExprString(n.Right)
	case *AddressOfExpr:
		return "&" + ExprString(n.Operand)
	case *DerefExpr:
		return "@" + ExprString(n.Operand)
	case *ConstExpr:
		return "const " + ExprString(n.Operand)
	case *CallExpr:
		return ExprString(n.Callee) + "(" + exprList(n.Args) + ")"
	case *MethodCallExpr:
		return ExprString(n.Receiver) + "." + n.Name + "(" + exprList(n.Args) + ")"
	case *FieldAccessExpr:
		return ExprString(n.Receiver) + "." + n.Field
	case *IndexExpr:
		return ExprString(n.Receiver) + "[" + ExprString(n.Index) + "]"
	case *SpanExpr:
		return ExprString(n.Receiver) + "[" + exprOrEmpty(n.Low) + ":" + exprOrEmpty(n.High) + "]"
	default:
		return "<expr>"
	}
}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}

func exprOrEmpty(e Expr) string {
	if e == nil {
		return ""
	}
	return ExprString(e)
}

// TypeExprString renders a parsed type expression back to its source form,
// the TypeExpr counterpart to ExprString.
func TypeExprString(t TypeExpr) string {
	if t == nil {
		return "void"
	}
	switch n := t.(type) {
	case *NamedTypeExpr:
		if n.Inner == nil {
			return n.Name
		}
		if n.Count != nil {
			return fmt.Sprintf("%s<%s,%s>", n.Name, TypeExprString(n.Inner), ExprString(n.Count))
		}
		return fmt.Sprintf("%s<%s>", n.Name, TypeExprString(n.Inner))
	case *FunctionPtrTypeExpr:
		parts := make([]string, len(n.Params))
		for i, p := range n.Params {
			parts[i] = TypeExprString(p)
		}
		return fmt.Sprintf("fn(%s) -> %s", strings.Join(parts, ", "), TypeExprString(n.Return))
	default:
		return "<type>"
	}
}

// String implements fmt.Stringer for top-level declarations, following the
// teacher's Ctor(field=value) shape for printing AST nodes (ast.go's
// FunctionDecl/StructDecl String methods) — used by the CLI's parse-mode
// dump, not by the parser or checker.
func (f *FunctionDecl) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, TypeExprString(p.Type))
	}
	return fmt.Sprintf("FunctionDecl(%s(%s) -> %s, stmts=%d)",
		f.Name, strings.Join(params, ", "), TypeExprString(f.ReturnType), len(f.Body.Stmts))
}

func (s *StructDecl) String() string {
	fields := make([]string, len(s.Fields))
	for i, fd := range s.Fields {
		fields[i] = fmt.Sprintf("%s: %s", fd.Name, TypeExprString(fd.Type))
	}
	return fmt.Sprintf("StructDecl(%s { %s })", s.Name, strings.Join(fields, ", "))
}

func (i *ImportStmt) String() string {
	return fmt.Sprintf("ImportStmt(%q)", i.Path)
}
