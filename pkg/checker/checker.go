// Package checker is Anzu's two-pass type checker: a predeclare pass that
// registers every struct layout and function signature so forward
// references resolve, followed by an elaboration pass that walks each
// function body assigning a types.Type to every expression and a frame
// offset to every local. Generalized from the teacher's symtable.go
// (EnterFunction/EnterScope/DefineParam) plus the type inference embedded
// in codegen.go's getType/calcSize, promoted here into its own pass.
package checker

import (
	"fmt"

	"anzu/pkg/ast"
	"anzu/pkg/diag"
	"anzu/pkg/token"
	"anzu/pkg/types"
)

// FuncSig is a checked function's static signature.
type FuncSig struct {
	Name       string
	ParamNames []string
	Params     []types.Type
	Return     types.Type
	Decl       *ast.FunctionDecl
	FrameSize  int64 // frame offset just past the last param/local, including the 16-byte frame header
}

// Checker holds all state needed across both passes of one compilation.
type Checker struct {
	Store   *types.Store
	Funcs   map[string]*FuncSig
	Globals map[string]types.Type

	scopes    []map[string]*symbol
	curFunc   *FuncSig
	nextLocal int64
	loopDepth int
}

type symbol struct {
	typ    types.Type
	offset int64
}

// New creates an empty Checker.
func New() *Checker {
	return &Checker{Store: types.NewStore(), Funcs: map[string]*FuncSig{}, Globals: map[string]types.Type{}}
}

// Check runs both passes over file and annotates its AST in place.
func Check(file *ast.File) (*Checker, error) {
	c := &Checker{Store: types.NewStore(), Funcs: map[string]*FuncSig{}, Globals: map[string]types.Type{}}
	if err := c.predeclare(file); err != nil {
		return nil, err
	}
	for _, d := range file.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		if err := c.checkFunction(fn); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Checker) predeclare(file *ast.File) error {
	pending := map[string]*ast.StructDecl{}
	for _, d := range file.Decls {
		if sd, ok := d.(*ast.StructDecl); ok {
			if _, exists := pending[sd.Name]; exists {
				return diag.Errorf(diag.Syntax, sd.Pos().Line, sd.Pos().Col, "struct %q already declared", sd.Name)
			}
			pending[sd.Name] = sd
		}
	}
	for len(pending) > 0 {
		progressed := false
		for name, sd := range pending {
			fieldTypes := make([]types.Type, len(sd.Fields))
			ok := true
			for i, f := range sd.Fields {
				t, err := c.resolveTypeExpr(f.Type)
				if err != nil {
					ok = false
					break
				}
				fieldTypes[i] = t
			}
			if !ok {
				continue
			}
			names := make([]string, len(sd.Fields))
			for i, f := range sd.Fields {
				names[i] = f.Name
			}
			if _, err := c.Store.Add(name, names, fieldTypes); err != nil {
				return diag.Errorf(diag.Syntax, sd.Pos().Line, sd.Pos().Col, "%v", err)
			}
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			var names []string
			for n := range pending {
				names = append(names, n)
			}
			return fmt.Errorf("unresolved or cyclic struct definitions: %v", names)
		}
	}

	for _, d := range file.Decls {
		fn, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		if _, exists := c.Funcs[fn.Name]; exists {
			return diag.Errorf(diag.Syntax, fn.Pos().Line, fn.Pos().Col, "function %q already declared", fn.Name)
		}
		sig := &FuncSig{Name: fn.Name, Decl: fn}
		for _, p := range fn.Params {
			t, err := c.resolveTypeExpr(p.Type)
			if err != nil {
				return err
			}
			sig.ParamNames = append(sig.ParamNames, p.Name)
			sig.Params = append(sig.Params, t)
		}
		if fn.ReturnType != nil {
			t, err := c.resolveTypeExpr(fn.ReturnType)
			if err != nil {
				return err
			}
			sig.Return = t
		} else {
			sig.Return = types.Void
		}
		c.Funcs[fn.Name] = sig
	}
	return nil
}

// resolveTypeExpr turns a parsed type expression into a types.Type. Array
// counts must be constant integer literals: Anzu has no dependent sizing.
func (c *Checker) resolveTypeExpr(te ast.TypeExpr) (types.Type, error) {
	switch n := te.(type) {
	case *ast.FunctionPtrTypeExpr:
		params := make([]types.Type, len(n.Params))
		for i, p := range n.Params {
			t, err := c.resolveTypeExpr(p)
			if err != nil {
				return types.Type{}, err
			}
			params[i] = t
		}
		ret := types.Void
		if n.Return != nil {
			t, err := c.resolveTypeExpr(n.Return)
			if err != nil {
				return types.Type{}, err
			}
			ret = t
		}
		return types.NewFunctionPtr(params, ret), nil
	case *ast.NamedTypeExpr:
		switch n.Name {
		case "ptr", "span", "reference":
			inner, err := c.resolveTypeExpr(n.Inner)
			if err != nil {
				return types.Type{}, err
			}
			switch n.Name {
			case "ptr":
				return types.NewPtr(inner), nil
			case "span":
				return types.NewSpan(inner), nil
			default:
				return types.NewReference(inner), nil
			}
		case "list":
			inner, err := c.resolveTypeExpr(n.Inner)
			if err != nil {
				return types.Type{}, err
			}
			lit, ok := n.Count.(*ast.IntLiteral)
			if !ok {
				return types.Type{}, diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "list size must be a constant integer")
			}
			return types.NewList(inner, int64(lit.Value)), nil
		default:
			return types.Type{Kind: types.Simple, Name: n.Name}, nil
		}
	default:
		return types.Type{}, fmt.Errorf("unknown type expression %T", te)
	}
}

// ---- scopes ---------------------------------------------------------------

func (c *Checker) pushScope() { c.scopes = append(c.scopes, map[string]*symbol{}) }
func (c *Checker) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Checker) declareLocal(name string, t types.Type) (int64, error) {
	scope := c.scopes[len(c.scopes)-1]
	if _, exists := scope[name]; exists {
		return 0, fmt.Errorf("%q already declared in this scope", name)
	}
	size, err := c.Store.SizeOf(t)
	if err != nil {
		return 0, err
	}
	offset := c.nextLocal
	scope[name] = &symbol{typ: t, offset: offset}
	c.nextLocal += size
	return offset, nil
}

func (c *Checker) lookup(name string) (*symbol, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if s, ok := c.scopes[i][name]; ok {
			return s, true
		}
	}
	return nil, false
}

// ---- functions --------------------------------------------------------

func (c *Checker) checkFunction(fn *ast.FunctionDecl) error {
	sig := c.Funcs[fn.Name]
	c.curFunc = sig
	c.scopes = nil
	c.pushScope()
	// Args land contiguous starting at base_ptr+16, after the in-band saved
	// base_ptr and saved prog_ptr the calling convention writes at the new
	// frame's base.
	c.nextLocal = 16
	for i, pname := range sig.ParamNames {
		offset, err := c.declareLocal(pname, sig.Params[i])
		if err != nil {
			return diag.Errorf(diag.Syntax, fn.Pos().Line, fn.Pos().Col, "%v", err)
		}
		_ = offset
	}
	if err := c.checkBlock(fn.Body); err != nil {
		return err
	}
	sig.FrameSize = c.nextLocal
	c.popScope()
	c.curFunc = nil
	return nil
}

func (c *Checker) checkBlock(b *ast.Block) error {
	c.pushScope()
	defer c.popScope()
	for _, s := range b.Stmts {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.VarDecl:
		return c.checkVarDecl(n)
	case *ast.Assignment:
		tt, err := c.checkExpr(n.Target)
		if err != nil {
			return err
		}
		vt, err := c.checkExpr(n.Value)
		if err != nil {
			return err
		}
		if !tt.Equal(vt) {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "cannot assign %s to %s", vt, tt)
		}
		return nil
	case *ast.ExprStmt:
		_, err := c.checkExpr(n.Expr)
		return err
	case *ast.Block:
		return c.checkBlock(n)
	case *ast.IfStmt:
		ct, err := c.checkExpr(n.Cond)
		if err != nil {
			return err
		}
		if !ct.Equal(types.Bool) {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "if condition must be bool, got %s", ct)
		}
		if err := c.checkBlock(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			return c.checkStmt(n.Else)
		}
		return nil
	case *ast.WhileStmt:
		ct, err := c.checkExpr(n.Cond)
		if err != nil {
			return err
		}
		if !ct.Equal(types.Bool) {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "while condition must be bool, got %s", ct)
		}
		c.loopDepth++
		err = c.checkBlock(n.Body)
		c.loopDepth--
		return err
	case *ast.LoopStmt:
		c.loopDepth++
		err := c.checkBlock(n.Body)
		c.loopDepth--
		return err
	case *ast.ForInStmt:
		it, err := c.checkExpr(n.Iter)
		if err != nil {
			return err
		}
		var elem types.Type
		switch it.Kind {
		case types.List, types.Span:
			elem = *it.Inner
		default:
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "for-in requires a list or span, got %s", it)
		}
		c.pushScope()
		if _, err := c.declareLocal(n.VarName, elem); err != nil {
			c.popScope()
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%v", err)
		}
		c.loopDepth++
		for _, st := range n.Body.Stmts {
			if err := c.checkStmt(st); err != nil {
				c.loopDepth--
				c.popScope()
				return err
			}
		}
		c.loopDepth--
		c.popScope()
		return nil
	case *ast.BreakStmt:
		if c.loopDepth == 0 {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "break outside a loop")
		}
		return nil
	case *ast.ContinueStmt:
		if c.loopDepth == 0 {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "continue outside a loop")
		}
		return nil
	case *ast.ReturnStmt:
		if n.Value == nil {
			if !c.curFunc.Return.Equal(types.Void) {
				return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "missing return value for %s", c.curFunc.Return)
			}
			return nil
		}
		vt, err := c.checkExpr(n.Value)
		if err != nil {
			return err
		}
		if !vt.Equal(c.curFunc.Return) {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "return type %s does not match declared %s", vt, c.curFunc.Return)
		}
		return nil
	case *ast.AssertStmt:
		ct, err := c.checkExpr(n.Cond)
		if err != nil {
			return err
		}
		if !ct.Equal(types.Bool) {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "assert condition must be bool, got %s", ct)
		}
		return nil
	case *ast.DeleteStmt:
		ot, err := c.checkExpr(n.Operand)
		if err != nil {
			return err
		}
		if ot.Kind != types.Ptr {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "delete requires a pointer, got %s", ot)
		}
		return nil
	case *ast.StructDecl:
		return nil // already registered in predeclare
	default:
		return fmt.Errorf("checker: unhandled statement %T", s)
	}
}

func (c *Checker) checkVarDecl(n *ast.VarDecl) error {
	var vt types.Type
	if n.Value != nil {
		var err error
		vt, err = c.checkExpr(n.Value)
		if err != nil {
			return err
		}
	}
	if n.Type != nil {
		declared, err := c.resolveTypeExpr(n.Type)
		if err != nil {
			return err
		}
		if n.Value != nil && !declared.Equal(vt) {
			return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "declared type %s does not match value type %s", declared, vt)
		}
		vt = declared
	} else if n.Value == nil {
		return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%q needs a type annotation or an initializer", n.Name)
	}
	offset, err := c.declareLocal(n.Name, vt)
	if err != nil {
		return diag.Errorf(diag.Syntax, n.Pos().Line, n.Pos().Col, "%v", err)
	}
	n.VarType = vt
	n.Offset = offset
	return nil
}

// isComparison reports the BinaryExpr operator tokens that compare their
// operands. Kept next to checkExpr's switch for readability.
func isComparison(op token.Kind) bool {
	switch op {
	case token.EQUAL_EQUAL, token.BANG_EQUAL, token.LESS, token.LESS_EQUAL, token.GREATER, token.GREATER_EQUAL:
		return true
	}
	return false
}
