package codegen

import (
	"fmt"
	"strings"

	"github.com/yuelinxin/lisa/internal/ir"
)

// qbeBackend renders a Program as QBE's textual intermediate language.
// Every Lisa value is a double; the only other QBE types this emitter
// produces are `w` (word), for the 0/1 intermediate of a comparison
// before OpUToF widens it back to double, and `l`, for the stack-slot
// pointers that alloc8 returns.
type qbeBackend struct {
	out       *strings.Builder
	prog      *ir.Program
	anonCount int
	anonNames map[*ir.Func]string
}

func newQBEBackend() *qbeBackend {
	return &qbeBackend{anonNames: make(map[*ir.Func]string)}
}

// NewQBEBackend returns the Backend that lowers a Program through QBE.
// Generate itself lives in qbe_backend_libqbe.go (in-process, via
// modernc.org/libqbe) or qbe_backend_fallback.go (windows, shells out to
// a system `qbe`), selected by build tag exactly as the teacher splits
// the two.
func NewQBEBackend() Backend {
	return newQBEBackend()
}

// GenerateIR renders prog to QBE text, for either in-process compilation
// (qbe_backend_libqbe.go) or the windows shell-out fallback
// (qbe_backend_fallback.go) to consume.
func (b *qbeBackend) GenerateIR(prog *ir.Program) string {
	return b.buildIR(prog)
}

func (b *qbeBackend) buildIR(prog *ir.Program) string {
	var sb strings.Builder
	b.out = &sb
	b.prog = prog
	for _, fn := range prog.Funcs {
		if fn.Blocks == nil {
			continue // extern-only declaration, resolved at link time
		}
		b.genFunc(fn)
	}
	return sb.String()
}

// funcSymbol returns the QBE symbol name for fn, synthesizing one for
// the anonymous wrapper around a top-level expression (§3.2) since QBE
// requires every function to have a name. These synthetic symbols are
// never exported and, per the resolved Open Question in DESIGN.md, are
// never called by the driver — they exist only to be verified and
// optimized.
func (b *qbeBackend) funcSymbol(fn *ir.Func) string {
	if fn.Name != "" {
		return fn.Name
	}
	if name, ok := b.anonNames[fn]; ok {
		return name
	}
	name := fmt.Sprintf("__lisa_anon_%d", b.anonCount)
	b.anonCount++
	b.anonNames[fn] = name
	return name
}

func (b *qbeBackend) genFunc(fn *ir.Func) {
	export := "export "
	if fn.Name == "" {
		export = ""
	}
	fmt.Fprintf(b.out, "\n%sfunction d $%s(", export, b.funcSymbol(fn))
	for i, p := range fn.Params {
		if i > 0 {
			b.out.WriteString(", ")
		}
		fmt.Fprintf(b.out, "d %s", formatArgName(p.Name))
	}
	b.out.WriteString(") {\n")
	for _, blk := range fn.Blocks {
		b.genBlock(blk)
	}
	b.out.WriteString("}\n")
}

func (b *qbeBackend) genBlock(blk *ir.BasicBlock) {
	fmt.Fprintf(b.out, "@%s\n", blk.Label.Name)
	for _, instr := range blk.Instructions {
		b.genInstr(instr)
	}
}

func (b *qbeBackend) genInstr(instr *ir.Instruction) {
	switch instr.Op {
	case ir.OpCall:
		b.genCall(instr)
		return
	case ir.OpAlloc:
		fmt.Fprintf(b.out, "\t%s =l alloc8 8\n", b.formatValue(instr.Result))
		return
	case ir.OpStore:
		// QBE stores take the value before the pointer; codegen.go emits
		// Args as {slot, value}.
		fmt.Fprintf(b.out, "\tstored %s, %s\n", b.formatValue(instr.Args[1]), b.formatValue(instr.Args[0]))
		return
	}

	b.out.WriteString("\t")
	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), resultType(instr.Op))
	}
	b.out.WriteString(mnemonic(instr.Op))

	switch instr.Op {
	case ir.OpPhi:
		for i, arg := range instr.Args {
			if i > 0 {
				b.out.WriteString(",")
			}
			fmt.Fprintf(b.out, " %s %s", instr.PhiBlocks[i].String(), b.formatValue(arg))
		}
	default:
		for i, arg := range instr.Args {
			if i > 0 {
				b.out.WriteString(",")
			}
			fmt.Fprintf(b.out, " %s", b.formatValue(arg))
		}
	}
	b.out.WriteString("\n")
}

func (b *qbeBackend) genCall(instr *ir.Instruction) {
	b.out.WriteString("\t")
	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =d ", b.formatValue(instr.Result))
	}
	fmt.Fprintf(b.out, "call %s(", b.formatValue(instr.Args[0]))
	for i, arg := range instr.CallArgs {
		if i > 0 {
			b.out.WriteString(", ")
		}
		fmt.Fprintf(b.out, "d %s", b.formatValue(arg))
	}
	b.out.WriteString(")\n")
}

func (b *qbeBackend) formatValue(v ir.Value) string {
	switch val := v.(type) {
	case ir.Const:
		return val.String()
	case ir.FloatConst:
		return "d_" + val.String()
	case ir.Global:
		return "$" + val.Name
	case ir.Temporary:
		return "%" + formatTempName(val.Name)
	case *ir.Label:
		return "@" + val.Name
	case ir.Label:
		return "@" + val.Name
	default:
		return ""
	}
}

func formatArgName(name string) string {
	return "%" + formatTempName("arg."+name)
}

func formatTempName(name string) string {
	return sanitize(name)
}

func sanitize(name string) string {
	return strings.NewReplacer(".", "_").Replace(name)
}

// resultType gives the QBE type suffix of an instruction's result.
// OpAlloc and OpStore are formatted specially in genInstr and never
// reach here.
func resultType(op ir.Op) string {
	switch op {
	case ir.OpCULT, ir.OpCUGT, ir.OpCUEQ, ir.OpCONE:
		return "w" // the 0/1 intermediate, widened by a later OpUToF
	default:
		return "d"
	}
}

// mnemonic maps an Op to its QBE instruction name. Lisa has no user
// syntax for unordered float comparison, so ULT/UGT/UEQ are lowered to
// QBE's ordered clt/cgt/ceq — documented in DESIGN.md as the one
// deliberate semantic narrowing the QBE backend forces, since QBE
// (unlike the original's LLVM builder) has no unordered float compares.
func mnemonic(op ir.Op) string {
	switch op {
	case ir.OpLoad:
		return "loadd"
	case ir.OpAdd:
		return "add"
	case ir.OpSub:
		return "sub"
	case ir.OpMul:
		return "mul"
	case ir.OpDiv:
		return "div"
	case ir.OpCULT:
		return "cltd"
	case ir.OpCUGT:
		return "cgtd"
	case ir.OpCUEQ:
		return "ceqd"
	case ir.OpCONE:
		return "cned"
	case ir.OpUToF:
		return "uwtof"
	case ir.OpJmp:
		return "jmp"
	case ir.OpJnz:
		return "jnz"
	case ir.OpRet:
		return "ret"
	case ir.OpPhi:
		return "phi"
	default:
		return "unknown"
	}
}
