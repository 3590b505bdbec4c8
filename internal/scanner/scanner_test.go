package scanner

import (
	"testing"

	"github.com/loxlang/golox/internal/token"
)

func collect(src string) []token.Token {
	s := New(src)
	var toks []token.Token
	for {
		tok := s.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func TestScannerBasicTokens(t *testing.T) {
	toks := collect(`var x = 1 + 2.5;`)
	want := []token.Type{
		token.Var, token.Ident, token.Equal, token.Number,
		token.Plus, token.Number, token.Semicolon, token.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d (%v)", len(want), len(toks), toks)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d: expected %s, got %s", i, w, toks[i].Type)
		}
	}
}

func TestScannerStringAndComment(t *testing.T) {
	toks := collect("\"hi\" // comment\nprint")
	if toks[0].Type != token.String || toks[0].Lexeme != `"hi"` {
		t.Fatalf("expected string token, got %v", toks[0])
	}
	if toks[1].Type != token.Print {
		t.Fatalf("expected comment to be skipped, got %v", toks[1])
	}
}

func TestScannerUnterminatedString(t *testing.T) {
	toks := collect(`"unterminated`)
	if toks[0].Type != token.Error {
		t.Fatalf("expected error token, got %v", toks[0])
	}
}

func TestScannerIdempotentAtEOF(t *testing.T) {
	s := New("")
	first := s.NextToken()
	second := s.NextToken()
	if first.Type != token.EOF || second.Type != token.EOF {
		t.Fatalf("expected repeated EOF, got %v then %v", first, second)
	}
}
