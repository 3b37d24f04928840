// Package lexer turns Lisa source text into a stream of tokens.
package lexer

import (
	"unicode"

	"github.com/yuelinxin/lisa/internal/token"
)

// Lexer wraps a buffered rune source and exposes Next/Peek with one-token
// lookahead. Per the design note against the original's fragile
// save-restore peek, lookahead is held as a buffered token rather than by
// rewinding the cursor.
type Lexer struct {
	source []rune
	pos    int
	line   int
	column int

	// nlPending is the "newline pending" flag: line increments on the
	// character AFTER a '\n', so a token starting at column 1 of a new
	// line carries the correct new line number.
	nlPending bool

	buffered  *token.Token
}

// New returns a Lexer positioned at the start of source.
func New(source []rune) *Lexer {
	return &Lexer{source: source, line: 1, column: 1}
}

// Next consumes and returns the next token.
func (l *Lexer) Next() token.Token {
	if l.buffered != nil {
		t := *l.buffered
		l.buffered = nil
		return t
	}
	return l.scan()
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() token.Token {
	if l.buffered == nil {
		t := l.scan()
		l.buffered = &t
	}
	return *l.buffered
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.nlPending {
		l.line++
		l.column = 1
		l.nlPending = false
	}
	ch := l.source[l.pos]
	l.pos++
	if ch == '\n' {
		l.nlPending = true
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) makeToken(kind token.Kind, lexeme string, line, col int) token.Token {
	return token.Token{Kind: kind, Lexeme: lexeme, Line: line, Column: col}
}

// scan skips whitespace and comments, then produces exactly one token.
func (l *Lexer) scan() token.Token {
	for {
		l.skipWhitespace()

		if l.peek() == '%' {
			if l.peekNext() == '%' {
				if tok, ok := l.blockComment(); ok {
					return tok
				}
				continue
			}
			l.lineComment()
			continue
		}
		break
	}

	startLine, startCol := l.line, l.column
	if l.nlPending {
		startLine++
		startCol = 1
	}

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startLine, startCol)
	}

	ch := l.peek()
	switch {
	case unicode.IsLetter(ch) || ch == '_':
		return l.identifierOrKeyword(startLine, startCol)
	case unicode.IsDigit(ch) || ch == '.':
		return l.number(startLine, startCol)
	case ch == '"':
		return l.stringLiteral(startLine, startCol)
	}

	return l.symbol(startLine, startCol)
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.advance()
		default:
			return
		}
	}
}

// lineComment consumes a '%' comment up to (not including) the newline or EOF.
func (l *Lexer) lineComment() {
	l.advance() // '%'
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

// blockComment consumes a '%% ... %%' comment. It returns (EOFinComment
// error token, true) if the closing '%%' is never found, else (_, false).
func (l *Lexer) blockComment() (token.Token, bool) {
	line, col := l.line, l.column
	if l.nlPending {
		line++
		col = 1
	}
	l.advance() // first '%'
	l.advance() // second '%'
	for {
		if l.isAtEnd() {
			return l.makeToken(token.Error, "EOFinComment", line, col), true
		}
		if l.peek() == '%' && l.peekNext() == '%' {
			l.advance()
			l.advance()
			return token.Token{}, false
		}
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(line, col int) token.Token {
	start := l.pos
	for !l.isAtEnd() {
		ch := l.peek()
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			l.advance()
			continue
		}
		break
	}
	lexeme := string(l.source[start:l.pos])
	if kind, ok := token.Lookup(lexeme); ok {
		return l.makeToken(kind, lexeme, line, col)
	}
	return l.makeToken(token.Ident, lexeme, line, col)
}

// number scans a digit/dot run. More than one dot makes it an error token,
// with the full run kept as the lexeme for diagnosis. There is no
// exponent form.
func (l *Lexer) number(line, col int) token.Token {
	start := l.pos
	dots := 0
	for !l.isAtEnd() {
		ch := l.peek()
		if unicode.IsDigit(ch) {
			l.advance()
			continue
		}
		if ch == '.' {
			dots++
			l.advance()
			continue
		}
		break
	}
	lexeme := string(l.source[start:l.pos])
	if dots > 1 {
		return l.makeToken(token.Error, lexeme, line, col)
	}
	return l.makeToken(token.Number, lexeme, line, col)
}

func (l *Lexer) stringLiteral(line, col int) token.Token {
	start := l.pos
	l.advance() // opening '"'
	for {
		if l.isAtEnd() {
			return l.makeToken(token.Error, string(l.source[start:l.pos]), line, col)
		}
		if l.peek() == '"' {
			l.advance()
			break
		}
		l.advance()
	}
	return l.makeToken(token.String, string(l.source[start:l.pos]), line, col)
}

var doubleSymbols = map[[2]rune]bool{
	{'+', '+'}: true, {'-', '-'}: true,
	{'+', ':'}: true, {'-', ':'}: true, {'*', ':'}: true, {'/', ':'}: true,
	{'<', '<'}: true, {'>', '>'}: true,
	{'<', '='}: true, {'>', '='}: true, {'!', '='}: true,
}

const singleSymbols = "()[]{}.,:+-*/^<>=!&|~;"

func (l *Lexer) symbol(line, col int) token.Token {
	first := l.peek()
	if !containsRune(singleSymbols, first) {
		l.advance()
		return l.makeToken(token.Error, "ILL", line, col)
	}
	l.advance()
	second := l.peek()
	if doubleSymbols[[2]rune{first, second}] {
		l.advance()
		return l.makeToken(token.Symbol, string([]rune{first, second}), line, col)
	}
	return l.makeToken(token.Symbol, string(first), line, col)
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
