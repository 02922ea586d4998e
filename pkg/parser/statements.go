package parser

import (
	"anzu/pkg/ast"
	"anzu/pkg/token"
)

func (p *Parser) parseFunctionDecl() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.FN)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.ts.ConsumeOnly(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.ts.At(token.RPAREN) {
		pname, err := p.ts.ConsumeOnly(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ConsumeOnly(token.COLON); err != nil {
			return nil, err
		}
		ptype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pname.Text, Type: ptype})
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
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDecl{Base: ast.NewBase(tok), Name: nameTok.Text, Params: params, ReturnType: ret, Body: body}, nil
}

func (p *Parser) parseStructDecl() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.STRUCT)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.ts.ConsumeOnly(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.LBRACE); err != nil {
		return nil, err
	}
	var fields []ast.StructField
	for !p.ts.At(token.RBRACE) {
		fname, err := p.ts.ConsumeOnly(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ConsumeOnly(token.COLON); err != nil {
			return nil, err
		}
		ftype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.StructField{Name: fname.Text, Type: ftype})
		if ok, err := p.ts.ConsumeMaybe(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.ts.ConsumeOnly(token.RBRACE); err != nil {
		return nil, err
	}
	return &ast.StructDecl{Base: ast.NewBase(tok), Name: nameTok.Text, Fields: fields}, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	tok, err := p.ts.ConsumeOnly(token.LBRACE)
	if err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for !p.ts.At(token.RBRACE) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.ts.ConsumeOnly(token.RBRACE); err != nil {
		return nil, err
	}
	return &ast.Block{Base: ast.NewBase(tok), Stmts: stmts}, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	tok := p.ts.Peek()
	switch tok.Kind {
	case token.LBRACE:
		return p.parseBlock()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.LOOP:
		return p.parseLoop()
	case token.FOR:
		return p.parseForIn()
	case token.BREAK:
		return p.parseBreak()
	case token.CONTINUE:
		return p.parseContinue()
	case token.RETURN:
		return p.parseReturn()
	case token.ASSERT:
		return p.parseAssert()
	case token.DELETE:
		return p.parseDelete()
	case token.STRUCT:
		return p.parseStructDecl()
	case token.IDENTIFIER:
		if next := p.ts.PeekNext().Kind; next == token.COLON || next == token.COLON_EQUAL {
			return p.parseVarDecl()
		}
	}
	return p.parseExprOrAssignment()
}

// parseVarDecl handles the three declaration forms: `x := e` (inferred
// type, requires an initializer), `x: T = e` (declared type with an
// initializer), and `x: T` (declared type, zero-initialized).
func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	nameTok, err := p.ts.ConsumeOnly(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	var typeExpr ast.TypeExpr
	hasType := false
	if ok, err := p.ts.ConsumeMaybe(token.COLON); err != nil {
		return nil, err
	} else if ok {
		hasType = true
		typeExpr, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	var value ast.Expr
	if !hasType {
		if _, err := p.ts.ConsumeOnly(token.COLON_EQUAL); err != nil {
			return nil, err
		}
		value, err = p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
	} else {
		hasInit, err := p.ts.ConsumeMaybe(token.COLON_EQUAL)
		if err != nil {
			return nil, err
		}
		if !hasInit {
			hasInit, err = p.ts.ConsumeMaybe(token.EQUAL)
			if err != nil {
				return nil, err
			}
		}
		if hasInit {
			value, err = p.parseExpression(PrecOr)
			if err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Base: ast.NewBase(nameTok), Name: nameTok.Text, Type: typeExpr, Value: value}, nil
}

func (p *Parser) parseExprOrAssignment() (ast.Stmt, error) {
	expr, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	if ok, err := p.ts.ConsumeMaybe(token.EQUAL); err != nil {
		return nil, err
	} else if ok {
		value, err := p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
			return nil, err
		}
		return &ast.Assignment{Base: ast.NewBase(expr.Pos()), Target: expr, Value: value}, nil
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Base: ast.NewBase(expr.Pos()), Expr: expr}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.IF)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Base: ast.NewBase(tok), Cond: cond, Then: then}
	if ok, err := p.ts.ConsumeMaybe(token.ELSE); err != nil {
		return nil, err
	} else if ok {
		if p.ts.At(token.IF) {
			stmt.Else, err = p.parseIf()
		} else {
			stmt.Else, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.WHILE)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Base: ast.NewBase(tok), Cond: cond, Body: body}, nil
}

func (p *Parser) parseLoop() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.LOOP)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.LoopStmt{Base: ast.NewBase(tok), Body: body}, nil
}

func (p *Parser) parseForIn() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.FOR)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.ts.ConsumeOnly(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.IN); err != nil {
		return nil, err
	}
	// A bare name directly before the body's '{' is the iterable itself,
	// not the start of a struct literal.
	var iter ast.Expr
	if p.ts.Peek().Kind == token.IDENTIFIER && p.ts.PeekNext().Kind == token.LBRACE {
		iterTok, err := p.ts.Consume()
		if err != nil {
			return nil, err
		}
		iter = &ast.NameRef{Base: ast.NewBase(iterTok), Name: iterTok.Text}
	} else {
		iter, err = p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForInStmt{Base: ast.NewBase(tok), VarName: nameTok.Text, Iter: iter, Body: body}, nil
}

func (p *Parser) parseBreak() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.BREAK)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.BreakStmt{Base: ast.NewBase(tok)}, nil
}

func (p *Parser) parseContinue() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.CONTINUE)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ContinueStmt{Base: ast.NewBase(tok)}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.RETURN)
	if err != nil {
		return nil, err
	}
	stmt := &ast.ReturnStmt{Base: ast.NewBase(tok)}
	if !p.ts.At(token.SEMICOLON) {
		stmt.Value, err = p.parseExpression(PrecOr)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseAssert() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.ASSERT)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.AssertStmt{Base: ast.NewBase(tok), Cond: cond, Source: ast.ExprString(cond)}, nil
}

func (p *Parser) parseDelete() (ast.Stmt, error) {
	tok, err := p.ts.ConsumeOnly(token.DELETE)
	if err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(PrecOr)
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ConsumeOnly(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.DeleteStmt{Base: ast.NewBase(tok), Operand: operand}, nil
}
