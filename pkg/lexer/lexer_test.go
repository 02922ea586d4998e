package lexer

import (
	"testing"

	"anzu/pkg/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	s := New([]byte(src))
	var out []token.Token
	for {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("unexpected lex error: %v", err)
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func assertKinds(t *testing.T, got []token.Token, want ...token.Kind) {
	t.Helper()
	gk := kinds(got)
	if len(gk) != len(want) {
		t.Fatalf("token count mismatch: got %v want %v", gk, want)
	}
	for i := range want {
		if gk[i] != want[i] {
			t.Fatalf("token %d: got %s want %s (all: %v)", i, gk[i], want[i], gk)
		}
	}
}

func TestIdentifiersAndKeywords(t *testing.T) {
	toks := scanAll(t, "fn foobar i32 struct_name")
	assertKinds(t, toks, token.FN, token.IDENTIFIER, token.I32, token.IDENTIFIER, token.EOF)
	if toks[1].Text != "foobar" {
		t.Fatalf("text mismatch: %q", toks[1].Text)
	}
}

func TestIntegerSuffixes(t *testing.T) {
	toks := scanAll(t, "42 42i32 42i64 42u64 42u")
	assertKinds(t, toks, token.INT64, token.INT32, token.INT64, token.UINT64, token.UINT64, token.EOF)
}

func TestFloatLiteral(t *testing.T) {
	toks := scanAll(t, "3.14 2.0f64")
	assertKinds(t, toks, token.FLOAT64, token.FLOAT64, token.EOF)
	if toks[0].Text != "3.14" {
		t.Fatalf("text mismatch: %q", toks[0].Text)
	}
}

func TestCharLiteral(t *testing.T) {
	toks := scanAll(t, "'a' 'b'")
	assertKinds(t, toks, token.CHARACTER, token.CHARACTER, token.EOF)
	if toks[0].Text != "a" || toks[1].Text != "b" {
		t.Fatalf("text mismatch: %q %q", toks[0].Text, toks[1].Text)
	}
}

func TestCharLiteralTooLong(t *testing.T) {
	s := New([]byte("'ab'"))
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected error for multi-character literal")
	}
}

// TestCharLiteralRejectsEscapeSequence matches the original lexer's
// make_char, which has no escape handling: a backslash is just a second raw
// byte, so '\n' (backslash, n) is a two-character literal, not one.
func TestCharLiteralRejectsEscapeSequence(t *testing.T) {
	s := New([]byte(`'\n'`))
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected error for escape sequence in character literal")
	}
}

func TestStringLiteral(t *testing.T) {
	toks := scanAll(t, `"hello, world"`)
	assertKinds(t, toks, token.STRING, token.EOF)
	if toks[0].Text != "hello, world" {
		t.Fatalf("text mismatch: %q", toks[0].Text)
	}
}

func TestUnterminatedString(t *testing.T) {
	s := New([]byte(`"abc`))
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected error for unterminated string")
	}
}

func TestPunctuationGreedyMatch(t *testing.T) {
	toks := scanAll(t, "!= == <= >= := -> && || ! = < > & |")
	assertKinds(t, toks,
		token.BANG_EQUAL, token.EQUAL_EQUAL, token.LESS_EQUAL, token.GREATER_EQUAL,
		token.COLON_EQUAL, token.ARROW, token.AMP_AMP, token.PIPE_PIPE,
		token.BANG, token.EQUAL, token.LESS, token.GREATER, token.AMP, token.PIPE,
		token.EOF)
}

func TestCommentsAndWhitespaceSkipped(t *testing.T) {
	toks := scanAll(t, "fn # this is a comment\n  main")
	assertKinds(t, toks, token.FN, token.IDENTIFIER, token.EOF)
}

func TestLineColTracking(t *testing.T) {
	toks := scanAll(t, "fn\nmain")
	if toks[0].Line != 1 || toks[0].Col != 1 {
		t.Fatalf("fn position: %d:%d", toks[0].Line, toks[0].Col)
	}
	if toks[1].Line != 2 || toks[1].Col != 1 {
		t.Fatalf("main position: %d:%d", toks[1].Line, toks[1].Col)
	}
}

func TestUnexpectedCharacter(t *testing.T) {
	s := New([]byte("$"))
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected error for unexpected character")
	}
}

func TestTokenstreamLookahead(t *testing.T) {
	ts, err := NewTokenstream([]byte("fn main"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Peek().Kind != token.FN {
		t.Fatalf("expected FN, got %s", ts.Peek().Kind)
	}
	if ts.PeekNext().Kind != token.IDENTIFIER {
		t.Fatalf("expected IDENTIFIER lookahead, got %s", ts.PeekNext().Kind)
	}
	if _, err := ts.ConsumeOnly(token.FN); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Peek().Kind != token.IDENTIFIER {
		t.Fatalf("expected IDENTIFIER after consume, got %s", ts.Peek().Kind)
	}
	if _, err := ts.ConsumeOnly(token.FN); err == nil {
		t.Fatalf("expected error consuming wrong kind")
	}
}

func TestTokenstreamConsumeMaybe(t *testing.T) {
	ts, err := NewTokenstream([]byte("break"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := ts.ConsumeMaybe(token.IF)
	if err != nil || ok {
		t.Fatalf("expected no match for IF, got ok=%v err=%v", ok, err)
	}
	ok, err = ts.ConsumeMaybe(token.BREAK)
	if err != nil || !ok {
		t.Fatalf("expected match for BREAK, got ok=%v err=%v", ok, err)
	}
	if !ts.At(token.EOF) {
		t.Fatalf("expected EOF after consuming only token")
	}
}
