package parser

import (
	"testing"

	"github.com/yuelinxin/lisa/internal/ast"
	"github.com/yuelinxin/lisa/internal/lexer"
)

func parse(src string) *ast.Expr {
	p := New(lexer.New([]rune(src)))
	return p.expr()
}

// flatten renders a Binary tree as a fully-parenthesized string, so
// precedence/associativity can be checked without depending on the AST's
// internal shape.
func flatten(e *ast.Expr) string {
	switch e.Kind {
	case ast.NumberExpr:
		return numStr(e.Data.(ast.Number).Value)
	case ast.VariableExpr:
		return e.Data.(ast.Variable).Name
	case ast.BinaryExpr:
		b := e.Data.(ast.Binary)
		return "(" + flatten(b.LHS) + b.Op + flatten(b.RHS) + ")"
	}
	return "?"
}

func numStr(v float64) string {
	if v == float64(int64(v)) {
		return itoa(int64(v))
	}
	return "f"
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Property 3 from §8: precedence/associativity matches the standard
// table, left-associative at equal precedence.
func TestPrecedenceAndAssociativity(t *testing.T) {
	cases := map[string]string{
		"1 + 2 * 3":     "(1+(2*3))",
		"1 * 2 + 3":     "((1*2)+3)",
		"1 + 2 + 3":     "((1+2)+3)",
		"1 < 2 + 3":     "(1<(2+3))",
		"x : 1 + 2":     "(x:(1+2))",
		"1 * 2 ^ 3 * 4": "((1*(2^3))*4)",
	}
	for src, want := range cases {
		got := flatten(parse(src))
		if got != want {
			t.Errorf("parse(%q) = %q, want %q", src, got, want)
		}
	}
}

func TestParseDefinition(t *testing.T) {
	p := New(lexer.New([]rune("fn add(x, y) { x + y }")))
	fn := p.ParseDefinition()
	if fn.Proto.Name != "add" {
		t.Fatalf("name = %q, want add", fn.Proto.Name)
	}
	if len(fn.Proto.Params) != 2 || fn.Proto.Params[0] != "x" || fn.Proto.Params[1] != "y" {
		t.Fatalf("params = %v, want [x y]", fn.Proto.Params)
	}
	if len(fn.Body) != 1 {
		t.Fatalf("body = %v, want one expression", fn.Body)
	}
}

func TestParseExternIdempotentShape(t *testing.T) {
	p := New(lexer.New([]rune("extern sin(x)")))
	proto := p.ParseExtern()
	if proto.Name != "sin" || len(proto.Params) != 1 || proto.Params[0] != "x" {
		t.Fatalf("got %+v, want sin(x)", proto)
	}
}

func TestParseTopLevelExprWrapsAnonymousFunction(t *testing.T) {
	p := New(lexer.New([]rune("1 + 2")))
	fn := p.ParseTopLevelExpr()
	if !fn.IsAnonymous() {
		t.Fatalf("expected anonymous function wrapper")
	}
	if len(fn.Body) != 1 {
		t.Fatalf("expected single wrapped expression, got %d", len(fn.Body))
	}
}

func TestIfExprWithAndWithoutElse(t *testing.T) {
	withElse := New(lexer.New([]rune("if x < 0 { 0 - x } else { x }"))).ifExpr()
	data := withElse.Data.(ast.If)
	if len(data.Then) != 1 || len(data.Else) != 1 {
		t.Fatalf("got Then=%d Else=%d, want 1 and 1", len(data.Then), len(data.Else))
	}

	withoutElse := New(lexer.New([]rune("if x < 0 { 0 - x }"))).ifExpr()
	data2 := withoutElse.Data.(ast.If)
	if len(data2.Else) != 0 {
		t.Fatalf("got Else=%d, want 0", len(data2.Else))
	}
}

func TestForExprOptionalStep(t *testing.T) {
	noStep := New(lexer.New([]rune("for i in 0 ~ n { sum : sum + i }"))).forExpr()
	d := noStep.Data.(ast.For)
	if d.Var != "i" || d.Step != nil {
		t.Fatalf("got %+v, want Var=i Step=nil", d)
	}

	withStep := New(lexer.New([]rune("for i in 0 ~ n ~ 2 { sum : sum + i }"))).forExpr()
	d2 := withStep.Data.(ast.For)
	if d2.Step == nil {
		t.Fatalf("expected non-nil Step when a third '~' clause is present")
	}
}

func TestWhileExpr(t *testing.T) {
	e := New(lexer.New([]rune("while x < 10 { x : x + 1 }"))).whileExpr()
	d := e.Data.(ast.While)
	if len(d.Body) != 1 {
		t.Fatalf("got body len %d, want 1", len(d.Body))
	}
}

func TestReturnExpr(t *testing.T) {
	e := New(lexer.New([]rune("return x + 1"))).returnExpr()
	if e.Kind != ast.ReturnExpr {
		t.Fatalf("got kind %v, want ReturnExpr", e.Kind)
	}
}

func TestCallExprArity(t *testing.T) {
	e := New(lexer.New([]rune("sin(x, y)"))).idExpr()
	call := e.Data.(ast.Call)
	if call.Callee != "sin" || len(call.Args) != 2 {
		t.Fatalf("got %+v, want sin(x, y)", call)
	}
}
