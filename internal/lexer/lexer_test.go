package lexer

import (
	"testing"

	"github.com/yuelinxin/lisa/internal/token"
)

func tokenKinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	lex := New([]rune(src))
	var kinds []token.Kind
	for {
		tok := lex.Next()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == token.EOF {
			break
		}
	}
	return kinds
}

// Scenario 1 from §8: `fn a() { 1 + 2 }` tokenizes to
// fn, a, (, ), {, 1, +, 2, }, EOF.
func TestScenario1TokenSequence(t *testing.T) {
	got := tokenKinds(t, "fn a() { 1 + 2 }")
	want := []token.Kind{
		token.Fn, token.Ident, token.Symbol, token.Symbol, token.Symbol,
		token.Number, token.Symbol, token.Number, token.Symbol, token.EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

// Scenario 6 from §8: an unterminated block comment yields EOFinComment
// and the lexer terminates cleanly (producing an EOF after it).
func TestUnterminatedBlockComment(t *testing.T) {
	lex := New([]rune("%% unterminated"))
	tok := lex.Next()
	if tok.Kind != token.Error || tok.Lexeme != "EOFinComment" {
		t.Fatalf("got %v %q, want Error EOFinComment", tok.Kind, tok.Lexeme)
	}
	next := lex.Next()
	if next.Kind != token.EOF {
		t.Fatalf("lexer did not terminate cleanly after EOFinComment: got %v", next.Kind)
	}
}

func TestLineComment(t *testing.T) {
	kinds := tokenKinds(t, "1 % trailing comment\n2")
	want := []token.Kind{token.Number, token.Number, token.EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
}

func TestMalformedNumberPreservesLexeme(t *testing.T) {
	lex := New([]rune("1.2.3"))
	tok := lex.Next()
	if tok.Kind != token.Error || tok.Lexeme != "1.2.3" {
		t.Fatalf("got %v %q, want Error \"1.2.3\"", tok.Kind, tok.Lexeme)
	}
}

func TestUnterminatedString(t *testing.T) {
	lex := New([]rune(`"abc`))
	tok := lex.Next()
	if tok.Kind != token.Error {
		t.Fatalf("got %v, want Error", tok.Kind)
	}
}

func TestIllegalCharacter(t *testing.T) {
	lex := New([]rune("@"))
	tok := lex.Next()
	if tok.Kind != token.Error || tok.Lexeme != "ILL" {
		t.Fatalf("got %v %q, want Error ILL", tok.Kind, tok.Lexeme)
	}
}

func TestTwoCharacterOperators(t *testing.T) {
	lex := New([]rune("+: <= >= != --"))
	want := []string{"+:", "<=", ">=", "!=", "--"}
	for _, w := range want {
		tok := lex.Next()
		if tok.Kind != token.Symbol || tok.Lexeme != w {
			t.Errorf("got %v %q, want Symbol %q", tok.Kind, tok.Lexeme, w)
		}
	}
}

// Property 2 from §8: successive tokens have non-decreasing (line, column).
func TestLineColumnMonotonicity(t *testing.T) {
	lex := New([]rune("fn f(x) {\n  x : x + 1\n  x\n}"))
	var prevLine, prevCol int
	for {
		tok := lex.Next()
		if tok.Kind == token.EOF {
			break
		}
		if tok.Line < prevLine || (tok.Line == prevLine && tok.Column < prevCol) {
			t.Errorf("token %+v is out of monotonic order after (%d,%d)", tok, prevLine, prevCol)
		}
		prevLine, prevCol = tok.Line, tok.Column
	}
}

// The "newline pending" design: a token on a new line reports that new
// line number, not the line the preceding newline character was on.
func TestNewlineAdvancesLineOnNextToken(t *testing.T) {
	lex := New([]rune("1\n2"))
	first := lex.Next()
	second := lex.Next()
	if first.Line != 1 {
		t.Errorf("first.Line = %d, want 1", first.Line)
	}
	if second.Line != 2 || second.Column != 1 {
		t.Errorf("second = (line %d, col %d), want (2, 1)", second.Line, second.Column)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	lex := New([]rune("fn f"))
	p1 := lex.Peek()
	p2 := lex.Peek()
	if p1 != p2 {
		t.Fatalf("Peek is not idempotent: %v != %v", p1, p2)
	}
	n := lex.Next()
	if n != p1 {
		t.Fatalf("Next() after Peek() returned %v, want %v", n, p1)
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	kinds := tokenKinds(t, "fn extern if else for in while return x1")
	want := []token.Kind{
		token.Fn, token.Extern, token.If, token.Else, token.For,
		token.In, token.While, token.Return, token.Ident, token.EOF,
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}
