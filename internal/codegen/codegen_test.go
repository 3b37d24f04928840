package codegen

import (
	"strings"
	"testing"

	"github.com/yuelinxin/lisa/internal/ast"
	"github.com/yuelinxin/lisa/internal/config"
	"github.com/yuelinxin/lisa/internal/diag"
	"github.com/yuelinxin/lisa/internal/ir"
	"github.com/yuelinxin/lisa/internal/lexer"
	"github.com/yuelinxin/lisa/internal/parser"
)

func parseFn(t *testing.T, src string) *ast.Function {
	t.Helper()
	diag.SetSource([]rune(src))
	p := parser.New(lexer.New([]rune(src)))
	return p.ParseDefinition()
}

// lowerRecovering mirrors the driver's per-construct recovery: it
// returns (irFn, errMsg). errMsg is empty on success.
func lowerRecovering(ctx *Context, fn *ast.Function) (irFn *ir.Func, errMsg string) {
	defer func() {
		if r := recover(); r != nil {
			if abort, ok := r.(diag.Abort); ok {
				errMsg = abort.Message
				return
			}
			panic(r)
		}
	}()
	irFn = ctx.LowerFunction(fn)
	return
}

// Scenario 1 from §8: `fn a() { 1 + 2 }` returns the constant 3.0 once
// the instruction-combining pass folds the addition.
func TestScenario1ConstantFolding(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn a() { 1 + 2 }")
	irFn, errMsg := lowerRecovering(ctx, fn)
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}
	if len(irFn.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(irFn.Blocks))
	}
	instrs := irFn.Blocks[0].Instructions
	if len(instrs) != 1 || instrs[0].Op != ir.OpRet {
		t.Fatalf("instructions = %+v, want a single OpRet after folding", instrs)
	}
	got, ok := instrs[0].Args[0].(ir.FloatConst)
	if !ok || got.Value != 3 {
		t.Fatalf("return value = %#v, want FloatConst{3}", instrs[0].Args[0])
	}
}

// Property 5 / scenario 5 from §8: assignment is non-commutative.
func TestAssignmentNonCommutative(t *testing.T) {
	ctx := NewContext(config.New())

	ok := parseFn(t, "fn okAssign() { x : 3 }")
	if _, errMsg := lowerRecovering(ctx, ok); errMsg != "" {
		t.Fatalf("x : 3 should succeed, got %q", errMsg)
	}

	bad := parseFn(t, "fn bad() { 3 : x }")
	_, errMsg := lowerRecovering(ctx, bad)
	if !strings.Contains(errMsg, "invalid assignment target") {
		t.Fatalf("errMsg = %q, want it to contain \"invalid assignment target\"", errMsg)
	}
	if ctx.Program().FindFunc("bad") != nil {
		t.Fatalf("module must not contain bad after its definition failed")
	}
}

// Property 6 from §8: a wrong-arity call is rejected and nothing is
// emitted for it.
func TestArityMismatch(t *testing.T) {
	ctx := NewContext(config.New())
	ctx.LowerExtern(&ast.Prototype{Name: "sin", Params: []string{"x"}})

	fn := parseFn(t, "fn callsSin() { sin(1, 2) }")
	_, errMsg := lowerRecovering(ctx, fn)
	if !strings.Contains(errMsg, "Incorrect number of arguments") {
		t.Fatalf("errMsg = %q, want it to contain the arity message", errMsg)
	}
}

// Property 7 from §8 (in part): repeated externs are idempotent, and a
// definition can call the extern-declared function.
func TestExternIdempotenceAndForwardCall(t *testing.T) {
	ctx := NewContext(config.New())
	proto := &ast.Prototype{Name: "sin", Params: []string{"x"}}
	ctx.LowerExtern(proto)
	ctx.LowerExtern(proto) // repeated extern must not error

	fn := parseFn(t, "fn g(x) { sin(x) + 1 }")
	irFn, errMsg := lowerRecovering(ctx, fn)
	if errMsg != "" {
		t.Fatalf("unexpected error calling forward-declared extern: %s", errMsg)
	}
	if irFn == nil {
		t.Fatalf("expected a lowered function")
	}

	var sawCall bool
	for _, b := range irFn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op == ir.OpCall {
				sawCall = true
				if g, ok := instr.Args[0].(ir.Global); !ok || g.Name != "sin" {
					t.Errorf("call target = %#v, want Global{sin}", instr.Args[0])
				}
			}
		}
	}
	if !sawCall {
		t.Fatalf("expected an OpCall to sin")
	}
}

// Unknown callee is reported and aborts the construct.
func TestUnknownCallee(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn f() { nope(1) }")
	_, errMsg := lowerRecovering(ctx, fn)
	if !strings.Contains(errMsg, "Unknown function referenced") {
		t.Fatalf("errMsg = %q, want the unknown-function message", errMsg)
	}
}

// Undefined variable reference is reported.
func TestUndefinedIdentifier(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn f() { y }")
	_, errMsg := lowerRecovering(ctx, fn)
	if !strings.Contains(errMsg, "Undefined identifier") {
		t.Fatalf("errMsg = %q, want the undefined-identifier message", errMsg)
	}
}

// Scenario 2 from §8: an if/else produces a 2-input phi at the merge
// block, whose predecessors are the last blocks of each branch.
func TestIfElsePhiShape(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn c(x) { if x < 0 { 0 - x } else { x } }")
	irFn, errMsg := lowerRecovering(ctx, fn)
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}

	var phi *ir.Instruction
	for _, b := range irFn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op == ir.OpPhi {
				phi = instr
			}
		}
	}
	if phi == nil {
		t.Fatalf("expected a phi instruction in the merge block")
	}
	if len(phi.Args) != 2 || len(phi.PhiBlocks) != 2 {
		t.Fatalf("phi has %d args / %d predecessors, want 2 and 2", len(phi.Args), len(phi.PhiBlocks))
	}
}

// The open-question resolution from §9: an if with no else still gets a
// 2-input phi whose second predecessor is the merge block itself,
// supplying the constant 0.0.
func TestIfWithoutElsePhiUsesMergeBlockAsPredecessor(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn f(x) { if x < 0 { 1 } }")
	irFn, errMsg := lowerRecovering(ctx, fn)
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}

	mergeBlock := irFn.Blocks[len(irFn.Blocks)-1]
	var phi *ir.Instruction
	for _, instr := range mergeBlock.Instructions {
		if instr.Op == ir.OpPhi {
			phi = instr
		}
	}
	if phi == nil {
		t.Fatalf("expected a phi in the merge block")
	}
	if phi.PhiBlocks[1].Name != mergeBlock.Label.Name {
		t.Fatalf("else-predecessor = %q, want the merge block %q", phi.PhiBlocks[1].Name, mergeBlock.Label.Name)
	}
	zero, ok := phi.Args[1].(ir.FloatConst)
	if !ok || zero.Value != 0 {
		t.Fatalf("else-value = %#v, want FloatConst{0}", phi.Args[1])
	}
}

// The open-question resolution from §9: the for loop's termination test
// compares `end` against the post-increment induction variable.
func TestForLoopComparesPostIncrementValue(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn s(n) { sum : 0 for i in 0 ~ n { sum : sum + i } sum }")
	_, errMsg := lowerRecovering(ctx, fn)
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}

	prog := ctx.Program()
	irFn := prog.FindFunc("s")
	var loopCond *ir.Instruction
	for _, b := range irFn.Blocks {
		for i, instr := range b.Instructions {
			if instr.Op == ir.OpCONE && i > 0 && b.Instructions[i-1].Op == ir.OpStore {
				loopCond = instr
			}
		}
	}
	if loopCond == nil {
		t.Fatalf("expected the loop's OpCONE to immediately follow the induction variable's store")
	}
}

func TestWhileLoopReevaluatesCondition(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn w(x) { while x < 10 { x : x + 1 } x }")
	irFn, errMsg := lowerRecovering(ctx, fn)
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}
	var condBlocks int
	for _, b := range irFn.Blocks {
		if strings.HasPrefix(b.Label.Name, "whilecond") {
			condBlocks++
		}
	}
	if condBlocks != 1 {
		t.Fatalf("expected exactly one whilecond block, got %d", condBlocks)
	}
}

func TestExplicitReturnMidBody(t *testing.T) {
	ctx := NewContext(config.New())
	fn := parseFn(t, "fn f(x) { if x < 0 { return 0 } x }")
	irFn, errMsg := lowerRecovering(ctx, fn)
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}
	var rets int
	for _, b := range irFn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op == ir.OpRet {
				rets++
			}
		}
	}
	if rets < 2 {
		t.Fatalf("expected at least 2 returns (early + fallthrough), got %d", rets)
	}
}
