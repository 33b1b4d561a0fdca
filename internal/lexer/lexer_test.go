package lexer

import (
	"testing"

	"github.com/funvibe/jitclass/internal/token"
)

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func expectTypes(t *testing.T, src string, want ...token.TokenType) []token.Token {
	t.Helper()
	toks := New(src).Tokenize()
	got := types(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got, want)
		}
	}
	return toks
}

func TestIndentationBlocks(t *testing.T) {
	expectTypes(t, "class A:\n    x: int",
		token.CLASS, token.IDENT_LOWER, token.COLON, token.NEWLINE,
		token.INDENT, token.IDENT_LOWER, token.COLON, token.IDENT_LOWER, token.NEWLINE,
		token.DEDENT, token.EOF)
}

func TestBlankAndCommentLinesAreSkipped(t *testing.T) {
	src := "class A:\n\n    # a comment\n    x: int  # trailing\n\nclass B:\n    pass\n"
	toks := expectTypes(t, src,
		token.CLASS, token.IDENT_LOWER, token.COLON, token.NEWLINE,
		token.INDENT, token.IDENT_LOWER, token.COLON, token.IDENT_LOWER, token.NEWLINE,
		token.DEDENT,
		token.CLASS, token.IDENT_LOWER, token.COLON, token.NEWLINE,
		token.INDENT, token.PASS, token.NEWLINE,
		token.DEDENT, token.EOF)
	if toks[5].Line != 4 || toks[5].Column != 5 {
		t.Errorf("x at %d:%d, want 4:5", toks[5].Line, toks[5].Column)
	}
}

func TestNewlinesInsideParens(t *testing.T) {
	expectTypes(t, "def f(self,\n        n: int) -> int:\n",
		token.DEF, token.IDENT_LOWER, token.LPAREN, token.IDENT_LOWER, token.COMMA,
		token.IDENT_LOWER, token.COLON, token.IDENT_LOWER, token.RPAREN,
		token.ARROW, token.IDENT_LOWER, token.COLON, token.NEWLINE, token.EOF)
}

func TestInconsistentDedent(t *testing.T) {
	toks := expectTypes(t, "class A:\n    x: int\n  y: int\n",
		token.CLASS, token.IDENT_LOWER, token.COLON, token.NEWLINE,
		token.INDENT, token.IDENT_LOWER, token.COLON, token.IDENT_LOWER, token.NEWLINE,
		token.DEDENT, token.ILLEGAL,
		token.IDENT_LOWER, token.COLON, token.IDENT_LOWER, token.NEWLINE, token.EOF)
	if toks[10].Lexeme != "inconsistent dedent" {
		t.Errorf("ILLEGAL lexeme = %q", toks[10].Lexeme)
	}
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		src     string
		typ     token.TokenType
		literal interface{}
	}{
		{"42", token.INT, int64(42)},
		{"1.5", token.FLOAT, 1.5},
		{`"a\tb"`, token.STRING, "a\tb"},
		{"'x'", token.STRING, "x"},
		{"True", token.TRUE, "True"},
		{"->", token.ARROW, "->"},
		{"<=", token.LTE, "<="},
		{`"open`, token.ILLEGAL, nil},
	}
	for _, tt := range tests {
		tok := New(tt.src).NextToken()
		if tok.Type != tt.typ {
			t.Errorf("%s: type %s, want %s", tt.src, tok.Type, tt.typ)
			continue
		}
		if tt.literal != nil && tok.Literal != tt.literal {
			t.Errorf("%s: literal %#v, want %#v", tt.src, tok.Literal, tt.literal)
		}
	}
}
