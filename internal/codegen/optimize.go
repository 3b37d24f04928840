package codegen

import "github.com/yuelinxin/lisa/internal/ir"

// optimizeFunction runs the fixed four-pass pipeline named in §4.3, in
// order: instruction combining, reassociation, global value numbering,
// then control-flow-graph simplification. QBE (this backend's external
// IR facility) has no pluggable per-function pass manager the way the
// original's LLVM does, so these are implemented directly over
// internal/ir rather than handed to the backend as named hooks.
func optimizeFunction(fn *ir.Func) {
	instCombine(fn)
	reassociate(fn)
	gvn(fn)
	simplifyCFG(fn)
}

// instCombine folds any arithmetic instruction whose operands are both
// constant by the time it runs, propagating the folded constant to
// every later use of its result.
func instCombine(fn *ir.Func) {
	subst := map[ir.Value]ir.Value{}
	for _, b := range fn.Blocks {
		kept := b.Instructions[:0]
		for _, instr := range b.Instructions {
			substArgs(instr, subst)
			if folded, ok := foldConst(instr); ok {
				subst[instr.Result] = folded
				continue
			}
			kept = append(kept, instr)
		}
		b.Instructions = kept
	}
}

func foldConst(instr *ir.Instruction) (ir.Value, bool) {
	if instr.Result == nil || len(instr.Args) != 2 {
		return nil, false
	}
	l, lok := instr.Args[0].(ir.FloatConst)
	r, rok := instr.Args[1].(ir.FloatConst)
	if !lok || !rok {
		return nil, false
	}
	switch instr.Op {
	case ir.OpAdd:
		return ir.FloatConst{Value: l.Value + r.Value}, true
	case ir.OpSub:
		return ir.FloatConst{Value: l.Value - r.Value}, true
	case ir.OpMul:
		return ir.FloatConst{Value: l.Value * r.Value}, true
	case ir.OpDiv:
		if r.Value != 0 {
			return ir.FloatConst{Value: l.Value / r.Value}, true
		}
	}
	return nil, false
}

func substArgs(instr *ir.Instruction, subst map[ir.Value]ir.Value) {
	for i, a := range instr.Args {
		if repl, ok := subst[a]; ok {
			instr.Args[i] = repl
		}
	}
	for i, a := range instr.CallArgs {
		if repl, ok := subst[a]; ok {
			instr.CallArgs[i] = repl
		}
	}
}

// reassociate merges a chain of two same-operator, constant-paired
// additions or multiplications in the same block — `(x + 1) + 2` — into
// a single instruction against the combined constant, computing that
// constant itself (instCombine has already run and is not run again).
// The first instruction of the chain is left in place. Only Add and Mul
// are associative enough for this to be sound with the constants this
// language ever produces.
func reassociate(fn *ir.Func) {
	for _, b := range fn.Blocks {
		producer := map[ir.Value]*ir.Instruction{}
		for _, instr := range b.Instructions {
			if (instr.Op == ir.OpAdd || instr.Op == ir.OpMul) && len(instr.Args) == 2 {
				if c2, ok := instr.Args[1].(ir.FloatConst); ok {
					if prev, ok := producer[instr.Args[0]]; ok && prev.Op == instr.Op {
						if c1, ok := prev.Args[1].(ir.FloatConst); ok {
							var combined float64
							if instr.Op == ir.OpAdd {
								combined = c1.Value + c2.Value
							} else {
								combined = c1.Value * c2.Value
							}
							instr.Args = []ir.Value{prev.Args[0], ir.FloatConst{Value: combined}}
						}
					}
				}
			}
			if instr.Result != nil {
				producer[instr.Result] = instr
			}
		}
	}
}

// gvn deduplicates repeated pure computations within a block: two
// arithmetic or comparison instructions with the same opcode and
// operands compute the same value, so the second is rewritten to reuse
// the first's result instead of recomputing it. Loads, stores, calls,
// allocas and control-flow instructions are never pure and are left
// untouched.
func gvn(fn *ir.Func) {
	for _, b := range fn.Blocks {
		seen := map[string]ir.Value{}
		subst := map[ir.Value]ir.Value{}
		kept := b.Instructions[:0]
		for _, instr := range b.Instructions {
			substArgs(instr, subst)
			if isPure(instr.Op) {
				key := valueKey(instr)
				if prior, ok := seen[key]; ok {
					subst[instr.Result] = prior
					continue
				}
				seen[key] = instr.Result
			}
			kept = append(kept, instr)
		}
		b.Instructions = kept
	}
}

func isPure(op ir.Op) bool {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpCULT, ir.OpCUGT, ir.OpCUEQ, ir.OpCONE, ir.OpUToF:
		return true
	default:
		return false
	}
}

func valueKey(instr *ir.Instruction) string {
	s := itoa(int(instr.Op))
	for _, a := range instr.Args {
		s += "|" + a.String()
	}
	return s
}

// simplifyCFG removes blocks unreachable from the entry block and
// collapses a block that is nothing but an unconditional jump into its
// target, rewriting every predecessor that jumped to it.
func simplifyCFG(fn *ir.Func) {
	collapseTrampolines(fn)
	dropUnreachable(fn)
}

func collapseTrampolines(fn *ir.Func) {
	redirect := map[ir.Value]ir.Value{}
	for _, b := range fn.Blocks {
		if len(b.Instructions) == 1 && b.Instructions[0].Op == ir.OpJmp {
			redirect[*b.Label] = b.Instructions[0].Args[0]
		}
	}
	if len(redirect) == 0 {
		return
	}
	resolve := func(v ir.Value) ir.Value {
		for i := 0; i < len(redirect); i++ {
			lbl, ok := v.(*ir.Label)
			if !ok {
				break
			}
			next, ok := redirect[*lbl]
			if !ok {
				break
			}
			v = next
		}
		return v
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			switch instr.Op {
			case ir.OpJmp:
				instr.Args[0] = resolve(instr.Args[0])
			case ir.OpJnz:
				instr.Args[1] = resolve(instr.Args[1])
				instr.Args[2] = resolve(instr.Args[2])
			}
		}
	}
}

func dropUnreachable(fn *ir.Func) {
	if len(fn.Blocks) == 0 {
		return
	}
	reachable := map[string]bool{fn.Blocks[0].Label.Name: true}
	queue := []*ir.Label{fn.Blocks[0].Label}
	byName := map[string]*ir.BasicBlock{}
	for _, b := range fn.Blocks {
		byName[b.Label.Name] = b
	}
	for len(queue) > 0 {
		lbl := queue[0]
		queue = queue[1:]
		b, ok := byName[lbl.Name]
		if !ok {
			continue
		}
		for _, instr := range b.Instructions {
			var targets []ir.Value
			switch instr.Op {
			case ir.OpJmp:
				targets = instr.Args
			case ir.OpJnz:
				targets = instr.Args[1:]
			}
			for _, t := range targets {
				if l, ok := t.(*ir.Label); ok && !reachable[l.Name] {
					reachable[l.Name] = true
					queue = append(queue, l)
				}
			}
		}
	}
	kept := fn.Blocks[:0]
	for _, b := range fn.Blocks {
		if reachable[b.Label.Name] {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept
}
