package lexer

import (
	"anzu/pkg/diag"
	"anzu/pkg/token"
)

// Tokenstream wraps a Scanner with two-token lookahead and the
// consume-or-fail primitives the parser drives itself with.
type Tokenstream struct {
	scanner *Scanner
	cur     token.Token
	next    token.Token
	err     error
}

// NewTokenstream scans the first two tokens of src into the lookahead buffer
// and returns a ready-to-use Tokenstream. Later tokens are scanned on demand
// as the stream advances, so a lex error further into the source surfaces
// from the Consume call that reaches it.
func NewTokenstream(src []byte) (*Tokenstream, error) {
	ts := &Tokenstream{scanner: New(src)}
	var err error
	ts.cur, err = ts.scanner.Next()
	if err != nil {
		return nil, err
	}
	ts.next, err = ts.scanner.Next()
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// Peek returns the current token without consuming it.
func (ts *Tokenstream) Peek() token.Token { return ts.cur }

// PeekNext returns the token after the current one without consuming either.
func (ts *Tokenstream) PeekNext() token.Token { return ts.next }

func (ts *Tokenstream) advance() error {
	ts.cur = ts.next
	var err error
	ts.next, err = ts.scanner.Next()
	return err
}

// Consume returns the current token and advances past it, regardless of
// kind.
func (ts *Tokenstream) Consume() (token.Token, error) {
	t := ts.cur
	if err := ts.advance(); err != nil {
		return token.Token{}, err
	}
	return t, nil
}

// ConsumeOnly consumes the current token if it has the given kind, otherwise
// reports a syntax error.
func (ts *Tokenstream) ConsumeOnly(kind token.Kind) (token.Token, error) {
	if ts.cur.Kind != kind {
		return token.Token{}, diag.Errorf(diag.Syntax, ts.cur.Line, ts.cur.Col,
			"expected %s, got %s", kind, ts.cur.Kind)
	}
	return ts.Consume()
}

// ConsumeMaybe consumes the current token if it has the given kind and
// reports whether it did. It errors only when scanning the token after the
// consumed one fails.
func (ts *Tokenstream) ConsumeMaybe(kind token.Kind) (bool, error) {
	if ts.cur.Kind != kind {
		return false, nil
	}
	if _, err := ts.Consume(); err != nil {
		return false, err
	}
	return true, nil
}

// At reports whether the current token has the given kind, without
// consuming it.
func (ts *Tokenstream) At(kind token.Kind) bool {
	return ts.cur.Kind == kind
}
