// Package parser builds an AST from a token stream using a table-driven
// Pratt expression parser grounded on original_source/parse_expression.cpp's
// parse_rule/rules table and parse_precedence, combined with recursive-
// descent statement parsing in the shape of the teacher's parser.go
// (one method per statement kind, dispatched on the lookahead token).
package parser

import (
	"strconv"
	"strings"

	"anzu/pkg/ast"
	"anzu/pkg/diag"
	"anzu/pkg/lexer"
	"anzu/pkg/token"
)

// Precedence mirrors parse_expression.cpp's precedence enum, low to high.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type prefixFn func(*Parser) (ast.Expr, error)
type infixFn func(*Parser, ast.Expr) (ast.Expr, error)

type parseRule struct {
	prefix prefixFn
	infix  infixFn
	prec   Precedence
}

var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.INT32:      {prefix: parseIntLiteral},
		token.INT64:      {prefix: parseIntLiteral},
		token.UINT64:     {prefix: parseIntLiteral},
		token.FLOAT64:    {prefix: parseFloatLiteral},
		token.CHARACTER:  {prefix: parseCharLiteral},
		token.STRING:     {prefix: parseStringLiteral},
		token.TRUE:       {prefix: parseBoolLiteral},
		token.FALSE:      {prefix: parseBoolLiteral},
		token.NULL:       {prefix: parseNullLiteral},
		token.NULLPTR:    {prefix: parseNullptrLiteral},
		token.IDENTIFIER: {prefix: parseNameOrStructLiteral},
		token.LPAREN:     {prefix: parseGrouping, infix: parseCall, prec: PrecCall},
		token.LBRACKET:   {prefix: parseArrayLiteral, infix: parseIndexOrSpan, prec: PrecCall},
		token.MINUS:      {prefix: parseUnary, infix: parseBinary, prec: PrecTerm},
		token.BANG:       {prefix: parseUnary},
		token.AMP:        {prefix: parseAddressOf},
		token.AT:         {prefix: parseDeref},
		token.CONST:      {prefix: parseConst},
		token.TYPEOF:     {prefix: parseTypeof},
		token.SIZEOF:     {prefix: parseSizeof},
		token.NEW:        {prefix: parseNew},
		token.PLUS:       {infix: parseBinary, prec: PrecTerm},
		token.SLASH:      {infix: parseBinary, prec: PrecFactor},
		token.STAR:       {infix: parseBinary, prec: PrecFactor},
		token.PERCENT:    {infix: parseBinary, prec: PrecFactor},
		token.EQUAL_EQUAL:    {infix: parseBinary, prec: PrecEquality},
		token.BANG_EQUAL:     {infix: parseBinary, prec: PrecEquality},
		token.LESS:           {infix: parseBinary, prec: PrecComparison},
		token.LESS_EQUAL:     {infix: parseBinary, prec: PrecComparison},
		token.GREATER:        {infix: parseBinary, prec: PrecComparison},
		token.GREATER_EQUAL:  {infix: parseBinary, prec: PrecComparison},
		token.AMP_AMP:        {infix: parseLogical, prec: PrecAnd},
		token.PIPE_PIPE:      {infix: parseLogical, prec: PrecOr},
		token.DOT:            {infix: parseDot, prec: PrecCall},
	}
}

// Parser turns a token stream into an ast.File.
type Parser struct {
	ts *lexer.Tokenstream
}

// ParseFile scans and parses a complete Anzu source file.
func ParseFile(src []byte) (*ast.File, error) {
	ts, err := lexer.NewTokenstream(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{ts: ts}
	return p.parseFile()
}

func (p *Parser) parseFile() (*ast.File, error) {
	f := &ast.File{}
	for !p.ts.At(token.EOF) {
		decl, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		f.Decls = append(f.Decls, decl)
	}
	return f, nil
}

func (p *Parser) parseTopLevel() (ast.Stmt, error) {
	switch p.ts.Peek().Kind {
	case token.FN:
		return p.parseFunctionDecl()
	case token.STRUCT:
		return p.parseStructDecl()
	case token.IMPORT:
		return p.parseImport()
	default:
		tok := p.ts.Peek()
		return nil, diag.Errorf(diag.Syntax, tok.Line, tok.Col, "expected fn, struct, or import, got %s", tok.Kind)
	}
}

func (p *Parser) parseImport() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.IMPORT)
	if err != nil {
		return nil, err
	}
	pathTok, err := p.ts.ConsumeOnly(token.STRING)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ImportStmt{Base: ast.NewBase(tok), Path: pathTok.Text}, nil
}

// ---- Types ---------------------------------------------------------------

func (p *Parser) parseType() (ast.TypeExpr, error) {
	if p.ts.At(token.FN) {
		return p.parseFunctionPtrType()
	}
	nameTok, err := p.ts.ConsumeOnly(token.IDENTIFIER)
	if err != nil {
		// primitive type keywords (i32, bool, ...) lex as keywords, not
		// identifiers; accept any single-token type name here too.
		nameTok, err = p.ts.Consume()
		if err != nil {
			return nil, err
		}
	}
	nt := &ast.NamedTypeExpr{Base: ast.NewBase(nameTok), Name: nameTok.Text}
	if nt.Name == "" {
		nt.Name = nameTok.Kind.String()
	}

	switch nameTok.Text {
	case "ptr", "span", "reference", "list":
		if _, err := p.ts.ConsumeOnly(token.LESS); err != nil {
			return nil, err
		}
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		nt.Inner = inner
		if nameTok.Text == "list" {
			if _, err := p.ts.ConsumeOnly(token.COMMA); err != nil {
				return nil, err
			}
			count, err := p.parseExpression(PrecTerm)
			if err != nil {
				return nil, err
			}
			nt.Count = count
		}
		if _, err := p.ts.ConsumeOnly(token.GREATER); err != nil {
			return nil, err
		}
	}
	return nt, nil
}

func (p *Parser) parseFunctionPtrType() (ast.TypeExpr, error) {
	tok, err := p.ts.ConsumeOnly(token.FN)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.TypeExpr
	for !p.ts.At(token.RPAREN) {
		pt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, pt)
		if ok, err := p.ts.ConsumeMaybe(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.ts.ConsumeOnly(token.RPAREN); err != nil {
		return nil, err
	}
	var ret ast.TypeExpr
	if ok, err := p.ts.ConsumeMaybe(token.ARROW); err != nil {
		return nil, err
	} else if ok {
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	return &ast.FunctionPtrTypeExpr{Base: ast.NewBase(tok), Params: params, Return: ret}, nil
}

// ---- Expressions ----------------------------------------------------------

func (p *Parser) parseExpression(prec Precedence) (ast.Expr, error) {
	tok := p.ts.Peek()
	rule, ok := rules[tok.Kind]
	if !ok || rule.prefix == nil {
		return nil, diag.Errorf(diag.Syntax, tok.Line, tok.Col, "unexpected token %s in expression", tok.Kind)
	}
	left, err := rule.prefix(p)
	if err != nil {
		return nil, err
	}
	for {
		next := p.ts.Peek()
		nr, ok := rules[next.Kind]
		if !ok || nr.infix == nil || nr.prec < prec {
			break
		}
		left, err = nr.infix(p, left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func parseIntLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseUint(trimIntSuffix(tok.Text), 10, 64)
	if err != nil {
		return nil, diag.Errorf(diag.Syntax, tok.Line, tok.Col, "invalid integer literal %q", tok.Text)
	}
	return &ast.IntLiteral{Base: ast.NewBase(tok), Value: v}, nil
}

func trimIntSuffix(s string) string {
	for _, suf := range []string{"u64", "i64", "i32", "u"} {
		if strings.HasSuffix(s, suf) {
			return strings.TrimSuffix(s, suf)
		}
	}
	return s
}

func parseFloatLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(tok.Text, "f64")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, diag.Errorf(diag.Syntax, tok.Line, tok.Col, "invalid float literal %q", tok.Text)
	}
	return &ast.FloatLiteral{Base: ast.NewBase(tok), Value: v}, nil
}

func parseCharLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	b, err := unescapeChar(tok)
	if err != nil {
		return nil, err
	}
	return &ast.CharLiteral{Base: ast.NewBase(tok), Value: b}, nil
}

func unescapeChar(tok token.Token) (byte, error) {
	s := tok.Text
	if len(s) == 1 {
		return s[0], nil
	}
	if len(s) == 2 && s[0] == '\\' {
		switch s[1] {
		case 'n':
			return '\n', nil
		case 'r':
			return '\r', nil
		case 't':
			return '\t', nil
		case '0':
			return 0, nil
		case '\\':
			return '\\', nil
		case '\'':
			return '\'', nil
		case '"':
			return '"', nil
		}
	}
	return 0, diag.Errorf(diag.Syntax, tok.Line, tok.Col, "invalid character escape %q", s)
}

func parseStringLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	return &ast.StringLiteral{Base: ast.NewBase(tok), Value: tok.Text}, nil
}

func parseBoolLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	return &ast.BoolLiteral{Base: ast.NewBase(tok), Value: tok.Kind == token.TRUE}, nil
}

func parseNullLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	return &ast.NullLiteral{Base: ast.NewBase(tok)}, nil
}

func parseNullptrLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	return &ast.NullptrLiteral{Base: ast.NewBase(tok)}, nil
}

func parseNameOrStructLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	if p.ts.At(token.LBRACE) {
		return p.parseStructLiteralBody(tok)
	}
	return &ast.NameRef{Base: ast.NewBase(tok), Name: tok.Text}, nil
}

func (p *Parser) parseStructLiteralBody(nameTok token.Token) (ast.Expr, error) {
	if _, err := p.ts.ConsumeOnly(token.LBRACE); err != nil {
		return nil, err
	}
	lit := &ast.StructLiteral{Base: ast.NewBase(nameTok), StructName: nameTok.Text}
	for !p.ts.At(token.RBRACE) {
		fieldTok, err := p.ts.ConsumeOnly(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ConsumeOnly(token.COLON); err != nil {
			return nil, err
		}
		val, err := p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
		lit.FieldNames = append(lit.FieldNames, fieldTok.Text)
		lit.FieldValues = append(lit.FieldValues, val)
		if ok, err := p.ts.ConsumeMaybe(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.ts.ConsumeOnly(token.RBRACE); err != nil {
		return nil, err
	}
	return lit, nil
}

func parseGrouping(p *Parser) (ast.Expr, error) {
	if _, err := p.ts.ConsumeOnly(token.LPAREN); err != nil {
		return nil, err
	}
	e, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.RPAREN); err != nil {
		return nil, err
	}
	return e, nil
}

func parseArrayLiteral(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.ConsumeOnly(token.LBRACKET)
	if err != nil {
		return nil, err
	}
	first, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	if ok, err := p.ts.ConsumeMaybe(token.SEMICOLON); err != nil {
		return nil, err
	} else if ok {
		count, err := p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ConsumeOnly(token.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.RepeatArrayLiteral{Base: ast.NewBase(tok), Element: first, Count: count}, nil
	}
	elems := []ast.Expr{first}
	for {
		ok, err := p.ts.ConsumeMaybe(token.COMMA)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if p.ts.At(token.RBRACKET) {
			break
		}
		e, err := p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.ts.ConsumeOnly(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.ArrayLiteral{Base: ast.NewBase(tok), Elements: elems}, nil
}

func parseUnary(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(PrecUnary)
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Base: ast.NewBase(tok), Op: tok.Kind, Operand: operand}, nil
}

func parseAddressOf(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(PrecUnary)
	if err != nil {
		return nil, err
	}
	return &ast.AddressOfExpr{Base: ast.NewBase(tok), Operand: operand}, nil
}

func parseDeref(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(PrecUnary)
	if err != nil {
		return nil, err
	}
	return &ast.DerefExpr{Base: ast.NewBase(tok), Operand: operand}, nil
}

func parseConst(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(PrecCall)
	if err != nil {
		return nil, err
	}
	return &ast.ConstExpr{Base: ast.NewBase(tok), Operand: operand}, nil
}

func parseTypeof(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.LPAREN); err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.TypeofExpr{Base: ast.NewBase(tok), Operand: operand}, nil
}

func parseSizeof(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.LPAREN); err != nil {
		return nil, err
	}
	se := &ast.SizeofExpr{Base: ast.NewBase(tok)}
	if looksLikeType(p) {
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		se.OperandType = ty
	} else {
		e, err := p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
		se.Operand = e
	}
	if _, err := p.ts.ConsumeOnly(token.RPAREN); err != nil {
		return nil, err
	}
	return se, nil
}

// looksLikeType is a one-token lookahead heuristic: a primitive type keyword
// is always a type, and sizeof(Name) where Name is immediately followed by
// ')' or '<' is treated as a type, otherwise as an expression. This mirrors
// how the checker later disambiguates type names from variable names sharing
// the identifier token kind.
func looksLikeType(p *Parser) bool {
	switch p.ts.Peek().Kind {
	case token.I32, token.I64, token.U64, token.F64, token.BOOL, token.CHAR:
		return true
	case token.IDENTIFIER:
	default:
		return false
	}
	switch p.ts.PeekNext().Kind {
	case token.RPAREN, token.LESS:
		return true
	default:
		return false
	}
}

func parseNew(p *Parser) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	elemType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	ne := &ast.NewExpr{Base: ast.NewBase(tok), ElemType: elemType}
	if ok, err := p.ts.ConsumeMaybe(token.LBRACKET); err != nil {
		return nil, err
	} else if ok {
		count, err := p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
		ne.Count = count
		if _, err := p.ts.ConsumeOnly(token.RBRACKET); err != nil {
			return nil, err
		}
	}
	return ne, nil
}

func parseBinary(p *Parser, left ast.Expr) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	rule := rules[tok.Kind]
	right, err := p.parseExpression(rule.prec + 1)
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{Base: ast.NewBase(tok), Op: tok.Kind, Left: left, Right: right}, nil
}

func parseLogical(p *Parser, left ast.Expr) (ast.Expr, error) {
	tok, err := p.ts.Consume()
	if err != nil {
		return nil, err
	}
	rule := rules[tok.Kind]
	right, err := p.parseExpression(rule.prec + 1)
	if err != nil {
		return nil, err
	}
	return &ast.LogicalExpr{Base: ast.NewBase(tok), Op: tok.Kind, Left: left, Right: right}, nil
}

func parseCall(p *Parser, callee ast.Expr) (ast.Expr, error) {
	tok, err := p.ts.ConsumeOnly(token.LPAREN)
	if err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.ts.At(token.RPAREN) {
		a, err := p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if ok, err := p.ts.ConsumeMaybe(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.ts.ConsumeOnly(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.CallExpr{Base: ast.NewBase(tok), Callee: callee, Args: args}, nil
}

func parseIndexOrSpan(p *Parser, receiver ast.Expr) (ast.Expr, error) {
	tok, err := p.ts.ConsumeOnly(token.LBRACKET)
	if err != nil {
		return nil, err
	}
	var low ast.Expr
	if !p.ts.At(token.COLON) {
		low, err = p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
	}
	if ok, err := p.ts.ConsumeMaybe(token.COLON); err != nil {
		return nil, err
	} else if ok {
		var high ast.Expr
		if !p.ts.At(token.RBRACKET) {
			high, err = p.parseExpression(PrecOr)
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.ts.ConsumeOnly(token.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.SpanExpr{Base: ast.NewBase(tok), Receiver: receiver, Low: low, High: high}, nil
	}
	if _, err := p.ts.ConsumeOnly(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.IndexExpr{Base: ast.NewBase(tok), Receiver: receiver, Index: low}, nil
}

func parseDot(p *Parser, receiver ast.Expr) (ast.Expr, error) {
	if _, err := p.ts.ConsumeOnly(token.DOT); err != nil {
		return nil, err
	}
	nameTok, err := p.ts.ConsumeOnly(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if p.ts.At(token.LPAREN) {
		tok, err := p.ts.ConsumeOnly(token.LPAREN)
		if err != nil {
			return nil, err
		}
		var args []ast.Expr
		for !p.ts.At(token.RPAREN) {
			a, err := p.parseExpression(PrecOr)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if ok, err := p.ts.ConsumeMaybe(token.COMMA); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := p.ts.ConsumeOnly(token.RPAREN); err != nil {
			return nil, err
		}
		_ = tok
		return &ast.MethodCallExpr{Base: ast.NewBase(nameTok), Receiver: receiver, Name: nameTok.Text, Args: args}, nil
	}
	return &ast.FieldAccessExpr{Base: ast.NewBase(nameTok), Receiver: receiver, Field: nameTok.Text}, nil
}
