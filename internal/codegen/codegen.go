package codegen

import (
	"github.com/yuelinxin/lisa/internal/ast"
	"github.com/yuelinxin/lisa/internal/diag"
	"github.com/yuelinxin/lisa/internal/ir"
)

// uniqueName returns base on its first call for a given function, and
// base plus a disambiguating suffix on later calls — the same
// auto-uniquification an LLVM IRBuilder applies to named values,
// needed here because a variable loaded more than once must still
// produce one SSA register per load.
func (c *Context) uniqueName(base string) string {
	if c.nameCounts == nil {
		c.nameCounts = make(map[string]int)
	}
	n := c.nameCounts[base]
	c.nameCounts[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "." + itoa(n)
}

// allocInEntry allocates a fresh stack slot, appends its OpAlloc to the
// enclosing function's entry block regardless of which block the
// builder currently sits at, and binds name to it. Every slot lives in
// the entry block per §3.3's invariant, so later optimization passes
// could promote it to a register.
func (c *Context) allocInEntry(name string) ir.Value {
	slot := c.newTemp()
	entry := c.currentFunc.Blocks[0]
	entry.Instructions = append(entry.Instructions, &ir.Instruction{Op: ir.OpAlloc, Result: slot})
	c.bindSlot(name, slot)
	return slot
}

// LowerExtern registers a prototype-only declaration. Repeated externs
// for the same name/arity are accepted idempotently; a later full
// definition reuses the same *ir.Func so forward calls resolve once the
// body lands.
func (c *Context) LowerExtern(proto *ast.Prototype) {
	if existing := c.prog.FindFunc(proto.Name); existing != nil {
		if len(existing.Params) != len(proto.Params) {
			diag.Error(proto.Tok, "conflicting arity for extern %q", proto.Name)
		}
		return
	}
	fn := &ir.Func{Name: proto.Name}
	for _, p := range proto.Params {
		fn.Params = append(fn.Params, ir.Param{Name: p})
	}
	c.prog.Funcs = append(c.prog.Funcs, fn)
}

// LowerFunction lowers a full definition (or the anonymous wrapper
// around a top-level expression), returning the ir.Func it built. Each
// anonymous wrapper gets its own ir.Func. On any semantic failure raised
// via diag.Error, a function added by this call is removed from the
// module (one already declared by an extern is kept as a prototype-only
// declaration, its Blocks reset to nil) and the panic continues upward
// for the driver to recover.
func (c *Context) LowerFunction(fn *ast.Function) *ir.Func {
	name := fn.Proto.Name
	var irFn *ir.Func
	if !fn.IsAnonymous() {
		irFn = c.prog.FindFunc(name)
	}
	justAdded := irFn == nil
	if justAdded {
		irFn = &ir.Func{Name: name}
		for _, p := range fn.Proto.Params {
			irFn.Params = append(irFn.Params, ir.Param{Name: p})
		}
		c.prog.Funcs = append(c.prog.Funcs, irFn)
	} else if len(irFn.Params) != len(fn.Proto.Params) {
		diag.Error(fn.Proto.Tok, "conflicting arity for %q", name)
	}

	defer func() {
		if r := recover(); r != nil {
			if justAdded {
				for i, f := range c.prog.Funcs {
					if f == irFn {
						c.prog.Funcs = append(c.prog.Funcs[:i], c.prog.Funcs[i+1:]...)
						break
					}
				}
			} else {
				irFn.Blocks = nil
			}
			c.currentFunc, c.currentBlock = nil, nil
			panic(r)
		}
	}()

	c.currentFunc = irFn
	c.resetVars()
	c.startBlock(c.newLabel("entry"))

	for _, p := range irFn.Params {
		slot := c.allocInEntry(p.Name)
		arg := ir.Temporary{Name: "arg." + p.Name}
		c.emit(&ir.Instruction{Op: ir.OpStore, Args: []ir.Value{slot, arg}})
	}

	for i, e := range fn.Body {
		if c.terminated() {
			break
		}
		v := c.codegenExpr(e)
		if i == len(fn.Body)-1 && e.Kind != ast.ReturnExpr {
			c.emit(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{v}})
		}
	}
	if !c.terminated() {
		c.emit(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{ir.FloatConst{Value: 0}}})
	}

	optimizeFunction(irFn)
	c.currentFunc, c.currentBlock = nil, nil
	return irFn
}

// codegenExpr lowers one expression to its SSA value, exhaustively
// switching over ast.Kind.
func (c *Context) codegenExpr(e *ast.Expr) ir.Value {
	switch e.Kind {
	case ast.NumberExpr:
		return ir.FloatConst{Value: e.Data.(ast.Number).Value}

	case ast.VariableExpr:
		return c.codegenVariable(e)

	case ast.BinaryExpr:
		return c.codegenBinary(e)

	case ast.IfExpr:
		return c.codegenIf(e)

	case ast.ForExpr:
		return c.codegenFor(e)

	case ast.WhileExpr:
		return c.codegenWhile(e)

	case ast.ReturnExpr:
		return c.codegenReturn(e)

	case ast.CallExpr:
		return c.codegenCall(e)
	}
	diag.Error(e.Tok, "unhandled expression kind")
	panic("unreachable")
}

func (c *Context) codegenVariable(e *ast.Expr) ir.Value {
	v := e.Data.(ast.Variable)
	slot := c.findSlot(v.Name)
	if slot == nil {
		diag.Error(e.Tok, "Undefined identifier: %s", v.Name)
	}
	result := ir.Temporary{Name: c.uniqueName(v.Name)}
	c.emit(&ir.Instruction{Op: ir.OpLoad, Result: result, Args: []ir.Value{slot}})
	return result
}

func (c *Context) codegenBinary(e *ast.Expr) ir.Value {
	b := e.Data.(ast.Binary)

	if b.Op == ":" {
		return c.codegenAssign(e, b)
	}

	lhs := c.codegenExpr(b.LHS)
	rhs := c.codegenExpr(b.RHS)

	switch b.Op {
	case "+", "-", "*", "/":
		var op ir.Op
		switch b.Op {
		case "+":
			op = ir.OpAdd
		case "-":
			op = ir.OpSub
		case "*":
			op = ir.OpMul
		case "/":
			op = ir.OpDiv
		}
		result := c.newTemp()
		c.emit(&ir.Instruction{Op: op, Result: result, Args: []ir.Value{lhs, rhs}})
		return result

	case "<", ">", "=":
		var op ir.Op
		switch b.Op {
		case "<":
			op = ir.OpCULT
		case ">":
			op = ir.OpCUGT
		case "=":
			op = ir.OpCUEQ
		}
		cmp := c.newTemp()
		c.emit(&ir.Instruction{Op: op, Result: cmp, Args: []ir.Value{lhs, rhs}})
		result := c.newTemp()
		c.emit(&ir.Instruction{Op: ir.OpUToF, Result: result, Args: []ir.Value{cmp}})
		return result
	}

	diag.Error(e.Tok, "bad binary operator %q", b.Op)
	panic("unreachable")
}

// codegenAssign implements `Binary(':', Variable(n), rhs)`: evaluate
// rhs, lazily allocate n's slot in the entry block on first assignment,
// store, and yield rhs's value. A non-Variable LHS is rejected — the
// ':' operator is deliberately not commutative.
func (c *Context) codegenAssign(e *ast.Expr, b ast.Binary) ir.Value {
	if b.LHS.Kind != ast.VariableExpr {
		diag.Error(e.Tok, "invalid assignment target")
	}
	name := b.LHS.Data.(ast.Variable).Name
	rhs := c.codegenExpr(b.RHS)

	slot := c.findSlot(name)
	if slot == nil {
		slot = c.allocInEntry(name)
	}
	c.emit(&ir.Instruction{Op: ir.OpStore, Args: []ir.Value{slot, rhs}})
	return rhs
}

// codegenIf lowers If(cond, then, else) per §4.3, preserving the
// documented open-question phi shape when else is absent: the merge
// block itself stands in as the "else" predecessor, supplying 0.0.
func (c *Context) codegenIf(e *ast.Expr) ir.Value {
	n := e.Data.(ast.If)

	cond := c.codegenExpr(n.Cond)
	condFlag := c.newTemp()
	c.emit(&ir.Instruction{Op: ir.OpCONE, Result: condFlag, Args: []ir.Value{cond, ir.FloatConst{Value: 0}}})

	thenLbl := c.newLabel("ifbody")
	mergeLbl := c.newLabel("ifcont")
	var elseLbl *ir.Label
	if len(n.Else) > 0 {
		elseLbl = c.newLabel("elsebody")
	}

	falseTarget := mergeLbl
	if elseLbl != nil {
		falseTarget = elseLbl
	}
	c.emit(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{condFlag, thenLbl, falseTarget}})

	c.startBlock(thenLbl)
	var thenVal ir.Value = ir.FloatConst{Value: 0}
	for _, be := range n.Then {
		thenVal = c.codegenExpr(be)
	}
	thenEnd := c.currentBlock.Label
	if !c.terminated() {
		c.emit(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{mergeLbl}})
	}

	var elseVal ir.Value = ir.FloatConst{Value: 0}
	var elseEnd *ir.Label
	if elseLbl != nil {
		c.startBlock(elseLbl)
		for _, be := range n.Else {
			elseVal = c.codegenExpr(be)
		}
		elseEnd = c.currentBlock.Label
		if !c.terminated() {
			c.emit(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{mergeLbl}})
		}
	}

	c.startBlock(mergeLbl)
	result := c.newTemp()
	phi := &ir.Instruction{Op: ir.OpPhi, Result: result}
	phi.Args = append(phi.Args, thenVal)
	phi.PhiBlocks = append(phi.PhiBlocks, thenEnd)
	if elseLbl != nil {
		phi.Args = append(phi.Args, elseVal)
		phi.PhiBlocks = append(phi.PhiBlocks, elseEnd)
	} else {
		phi.Args = append(phi.Args, ir.FloatConst{Value: 0})
		phi.PhiBlocks = append(phi.PhiBlocks, mergeLbl)
	}
	c.emit(phi)
	return result
}

// codegenFor lowers For(var, start, end, step, body) per §4.3,
// preserving the second documented open question bit-exactly: the
// termination test compares `end` against the induction variable's
// value AFTER this iteration's increment, not before it.
func (c *Context) codegenFor(e *ast.Expr) ir.Value {
	n := e.Data.(ast.For)

	startVal := c.codegenExpr(n.Start)
	prevSym, existed := c.shadow(n.Var)
	slot := c.allocInEntry(n.Var)
	c.emit(&ir.Instruction{Op: ir.OpStore, Args: []ir.Value{slot, startVal}})

	loopLbl := c.newLabel("loop")
	afterLbl := c.newLabel("afterloop")
	c.emit(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{loopLbl}})

	c.bindSlot(n.Var, slot)

	c.startBlock(loopLbl)
	for _, be := range n.Body {
		c.codegenExpr(be)
	}

	var stepVal ir.Value = ir.FloatConst{Value: 1}
	if n.Step != nil {
		stepVal = c.codegenExpr(n.Step)
	}
	endVal := c.codegenExpr(n.End)

	cur := c.newTemp()
	c.emit(&ir.Instruction{Op: ir.OpLoad, Result: cur, Args: []ir.Value{slot}})
	next := c.newTemp()
	c.emit(&ir.Instruction{Op: ir.OpAdd, Result: next, Args: []ir.Value{cur, stepVal}})
	c.emit(&ir.Instruction{Op: ir.OpStore, Args: []ir.Value{slot, next}})

	cond := c.newTemp()
	c.emit(&ir.Instruction{Op: ir.OpCONE, Result: cond, Args: []ir.Value{endVal, next}})
	c.emit(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{cond, loopLbl, afterLbl}})

	c.startBlock(afterLbl)
	c.unshadow(n.Var, prevSym, existed)

	return ir.FloatConst{Value: 0}
}

// codegenWhile lowers While(cond, body): re-evaluate cond each
// iteration, looping while it is non-zero. Fills the grammar/lowering
// gap noted in SPEC_FULL.md, shaped like a For without an induction
// variable.
func (c *Context) codegenWhile(e *ast.Expr) ir.Value {
	n := e.Data.(ast.While)

	condLbl := c.newLabel("whilecond")
	bodyLbl := c.newLabel("whilebody")
	afterLbl := c.newLabel("whileafter")

	c.emit(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{condLbl}})

	c.startBlock(condLbl)
	condVal := c.codegenExpr(n.Cond)
	flag := c.newTemp()
	c.emit(&ir.Instruction{Op: ir.OpCONE, Result: flag, Args: []ir.Value{condVal, ir.FloatConst{Value: 0}}})
	c.emit(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{flag, bodyLbl, afterLbl}})

	c.startBlock(bodyLbl)
	for _, be := range n.Body {
		c.codegenExpr(be)
	}
	if !c.terminated() {
		c.emit(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{condLbl}})
	}

	c.startBlock(afterLbl)
	return ir.FloatConst{Value: 0}
}

func (c *Context) codegenReturn(e *ast.Expr) ir.Value {
	n := e.Data.(ast.Return)
	v := c.codegenExpr(n.Value)
	c.emit(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{v}})
	return v
}

func (c *Context) codegenCall(e *ast.Expr) ir.Value {
	n := e.Data.(ast.Call)
	fn := c.prog.FindFunc(n.Callee)
	if fn == nil {
		diag.Error(e.Tok, "Unknown function referenced: %s", n.Callee)
	}
	if len(fn.Params) != len(n.Args) {
		diag.Error(e.Tok, "Incorrect number of arguments passed")
	}
	args := make([]ir.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = c.codegenExpr(a)
	}
	result := c.newTemp()
	c.emit(&ir.Instruction{
		Op:       ir.OpCall,
		Result:   result,
		Args:     []ir.Value{ir.Global{Name: n.Callee}},
		CallArgs: args,
	})
	return result
}
