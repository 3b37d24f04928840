// Package parser implements Lisa's recursive-descent, Pratt-precedence
// front end: it pulls tokens from a lexer.Lexer and produces ast.Expr /
// ast.Function fragments, one top-level construct at a time.
package parser

import (
	"strconv"

	"github.com/yuelinxin/lisa/internal/ast"
	"github.com/yuelinxin/lisa/internal/diag"
	"github.com/yuelinxin/lisa/internal/lexer"
	"github.com/yuelinxin/lisa/internal/token"
)

// Parser holds the lexer cursor shared with the driver loop. There is no
// pre-tokenized slice: Parser pulls one token at a time, matching the
// single pull-based cursor the front end as a whole is built around.
type Parser struct {
	lex *lexer.Lexer
}

// New returns a Parser reading from lex.
func New(lex *lexer.Lexer) *Parser {
	return &Parser{lex: lex}
}

// Peek returns the next token without consuming it, for the driver's
// top-level dispatch.
func (p *Parser) Peek() token.Token {
	return p.lex.Peek()
}

// Advance consumes and returns the next token. The driver calls this
// after recovering from a construct failure, to guarantee forward
// progress per §4.2's "advance one token" error policy.
func (p *Parser) Advance() token.Token {
	return p.advance()
}

func (p *Parser) advance() token.Token {
	return p.lex.Next()
}

func (p *Parser) peek() token.Token {
	return p.lex.Peek()
}

func (p *Parser) expectSymbol(lexeme, message string) token.Token {
	t := p.advance()
	if t.Kind == token.Error {
		diag.Error(t, "token error")
	}
	if !(t.Kind == token.Symbol && t.Lexeme == lexeme) {
		diag.Error(t, "%s", message)
	}
	return t
}

func (p *Parser) expectKind(kind token.Kind, message string) token.Token {
	t := p.advance()
	if t.Kind == token.Error {
		diag.Error(t, "token error")
	}
	if t.Kind != kind {
		diag.Error(t, "%s", message)
	}
	return t
}

// ParseDefinition parses `'fn' prototype '{' expr+ '}'`.
func (p *Parser) ParseDefinition() *ast.Function {
	p.expectKind(token.Fn, "expected 'fn' in definition")
	proto := p.prototype()
	p.expectSymbol("{", "expected '{' in definition")
	body := p.exprList()
	p.expectSymbol("}", "expected '}' in definition")
	return &ast.Function{Proto: proto, Body: body}
}

// ParseExtern parses `'extern' prototype`.
func (p *Parser) ParseExtern() *ast.Prototype {
	p.expectKind(token.Extern, "expected 'extern' in extern")
	return p.prototype()
}

// ParseTopLevelExpr parses a naked expression and wraps it in an
// anonymous Function, as §3.2 requires.
func (p *Parser) ParseTopLevelExpr() *ast.Function {
	tok := p.peek()
	e := p.expr()
	proto := &ast.Prototype{Name: "", Params: nil, Tok: tok}
	return &ast.Function{Proto: proto, Body: []*ast.Expr{e}}
}

// prototype parses `ID '(' [ ID { ',' ID } ] ')'`.
func (p *Parser) prototype() *ast.Prototype {
	nameTok := p.expectKind(token.Ident, "expected function name in prototype")
	p.expectSymbol("(", "expected '(' in prototype")
	var params []string
	if !(p.peek().Kind == token.Symbol && p.peek().Lexeme == ")") {
		for {
			idTok := p.expectKind(token.Ident, "expected identifier in argument list")
			params = append(params, idTok.Lexeme)
			if p.peek().Kind == token.Symbol && p.peek().Lexeme == "," {
				p.advance()
				continue
			}
			break
		}
	}
	p.expectSymbol(")", "expected ')' in prototype")
	return &ast.Prototype{Name: nameTok.Lexeme, Params: params, Tok: nameTok}
}

// exprList parses one or more expressions, as required by the `expr+`
// bodies of definitions, if-bodies, for-bodies and while-bodies.
func (p *Parser) exprList() []*ast.Expr {
	var exprs []*ast.Expr
	exprs = append(exprs, p.expr())
	for {
		t := p.peek()
		if t.Kind == token.Symbol && t.Lexeme == "}" {
			break
		}
		if t.Kind == token.EOF {
			break
		}
		exprs = append(exprs, p.expr())
	}
	return exprs
}

// expr := primary binop_rhs(0)
func (p *Parser) expr() *ast.Expr {
	lhs := p.primary()
	return p.binopRHS(0, lhs)
}

// primary := NUM | '(' expr ')' | id_expr | if_expr | for_expr | while_expr | return_expr
func (p *Parser) primary() *ast.Expr {
	t := p.peek()
	switch {
	case t.Kind == token.Number:
		return p.number()
	case t.Kind == token.Symbol && t.Lexeme == "(":
		return p.parenExpr()
	case t.Kind == token.Ident:
		return p.idExpr()
	case t.Kind == token.If:
		return p.ifExpr()
	case t.Kind == token.For:
		return p.forExpr()
	case t.Kind == token.While:
		return p.whileExpr()
	case t.Kind == token.Return:
		return p.returnExpr()
	default:
		diag.Error(t, "illegal token when expecting an expression")
		panic("unreachable")
	}
}

func (p *Parser) number() *ast.Expr {
	t := p.advance()
	v, err := strconv.ParseFloat(t.Lexeme, 64)
	if err != nil {
		diag.Error(t, "malformed number literal")
	}
	return ast.NewNumber(t, v)
}

func (p *Parser) parenExpr() *ast.Expr {
	p.expectSymbol("(", "expected '('")
	e := p.expr()
	p.expectSymbol(")", "expected ')'")
	return e
}

// id_expr := ID [ '(' [ expr { ',' expr } ] ')' ]
func (p *Parser) idExpr() *ast.Expr {
	idTok := p.advance()
	if !(p.peek().Kind == token.Symbol && p.peek().Lexeme == "(") {
		return ast.NewVariable(idTok, idTok.Lexeme)
	}
	p.advance() // '('
	var args []*ast.Expr
	if !(p.peek().Kind == token.Symbol && p.peek().Lexeme == ")") {
		for {
			args = append(args, p.expr())
			t := p.peek()
			if t.Kind == token.Symbol && t.Lexeme == ")" {
				break
			}
			p.expectSymbol(",", "expected ')' or ',' in argument list")
		}
	}
	p.expectSymbol(")", "expected ')' in call")
	return ast.NewCall(idTok, idTok.Lexeme, args)
}

// if_expr := 'if' expr '{' expr+ '}' [ 'else' '{' expr+ '}' ]
func (p *Parser) ifExpr() *ast.Expr {
	ifTok := p.expectKind(token.If, "expected 'if'")
	cond := p.expr()
	p.expectSymbol("{", "expected '{' after if condition")
	then := p.exprList()
	p.expectSymbol("}", "expected '}' after if body")
	var els []*ast.Expr
	if p.peek().Kind == token.Else {
		p.advance()
		p.expectSymbol("{", "expected '{' after else")
		els = p.exprList()
		p.expectSymbol("}", "expected '}' after else body")
	}
	return ast.NewIf(ifTok, cond, then, els)
}

// for_expr := 'for' ID 'in' bound '~' bound [ '~' bound ] '{' expr+ '}'
//
// start/end/step are parsed one notch above '~'s own precedence
// (rangeBound), not with the full p.expr(): '~' is itself a registered
// binary operator (bitwise-or-ish, precedence 15), so an unbounded
// p.expr() would let binopRHS swallow the range's separating '~' as a
// continuation of start's expression instead of leaving it for
// expectSymbol below.
func (p *Parser) forExpr() *ast.Expr {
	forTok := p.expectKind(token.For, "expected 'for'")
	varTok := p.expectKind(token.Ident, "expected identifier after 'for'")
	p.expectKind(token.In, "expected 'in' in for loop")
	start := p.rangeBound()
	p.expectSymbol("~", "expected '~' in for loop range")
	end := p.rangeBound()
	var step *ast.Expr
	if p.peek().Kind == token.Symbol && p.peek().Lexeme == "~" {
		p.advance()
		step = p.rangeBound()
	}
	p.expectSymbol("{", "expected '{' in for loop")
	body := p.exprList()
	p.expectSymbol("}", "expected '}' in for loop")
	return ast.NewFor(forTok, varTok.Lexeme, start, end, step, body)
}

// rangeBound parses an expression for a for-loop's start/end/step,
// binding everything tighter than '~' but never '~' itself.
func (p *Parser) rangeBound() *ast.Expr {
	return p.binopRHS(token.Precedence("~")+1, p.primary())
}

// while_expr := 'while' expr '{' expr+ '}'
func (p *Parser) whileExpr() *ast.Expr {
	whileTok := p.expectKind(token.While, "expected 'while'")
	cond := p.expr()
	p.expectSymbol("{", "expected '{' after while condition")
	body := p.exprList()
	p.expectSymbol("}", "expected '}' after while body")
	return ast.NewWhile(whileTok, cond, body)
}

func (p *Parser) returnExpr() *ast.Expr {
	retTok := p.expectKind(token.Return, "expected 'return'")
	v := p.expr()
	return ast.NewReturn(retTok, v)
}

// binopRHS implements Pratt precedence climbing:
//
//	binop_rhs(p) := while next is binop and prec(next) >= p:
//	                  op := consume; rhs := primary;
//	                  if prec(next) > prec(op): rhs := binop_rhs(prec(op)+1, rhs);
//	                  lhs := Binary(op, lhs, rhs)
func (p *Parser) binopRHS(minPrec int, lhs *ast.Expr) *ast.Expr {
	for {
		t := p.peek()
		if t.Kind != token.Symbol || !token.IsBinaryOp(t.Lexeme) {
			return lhs
		}
		opPrec := token.Precedence(t.Lexeme)
		if opPrec < minPrec {
			return lhs
		}
		opTok := p.advance()
		rhs := p.primary()

		next := p.peek()
		if next.Kind == token.Symbol && token.IsBinaryOp(next.Lexeme) {
			if token.Precedence(next.Lexeme) > opPrec {
				rhs = p.binopRHS(opPrec+1, rhs)
			}
		}
		lhs = ast.NewBinary(opTok, opTok.Lexeme, lhs, rhs)
	}
}
