// Package codegen lowers Lisa's AST to the SSA IR in internal/ir, then
// hands the finished module to a Backend for object emission.
package codegen

import (
	"github.com/cespare/xxhash/v2"

	"github.com/yuelinxin/lisa/internal/config"
	"github.com/yuelinxin/lisa/internal/ir"
)

// symbol is one entry of the per-function variable table: a name's
// stack slot, keyed by the xxhash of the name rather than the raw
// string so that the shadow/restore dance a `for` loop does on every
// iteration's entry/exit is a cheap integer-map operation.
type symbol struct {
	name string
	slot ir.Value // always the Temporary result of an OpAlloc
}

// Context is the single mutable session the code generator threads
// through one compilation: the growing Program, the function/block the
// builder is currently positioned at, and the per-function symbol
// table. Per §9's design note, this is an explicit object with a
// lifetime of one compilation — never package-level state.
type Context struct {
	prog *ir.Program
	cfg  *config.Config

	vars       map[uint64]*symbol
	nameCounts map[string]int

	currentFunc  *ir.Func
	currentBlock *ir.BasicBlock

	tempCount  int
	labelCount int
}

// NewContext returns a Context ready to lower top-level constructs into
// an initially empty Program.
func NewContext(cfg *config.Config) *Context {
	return &Context{
		prog: ir.NewProgram(),
		cfg:  cfg,
		vars: make(map[uint64]*symbol),
	}
}

// Program returns the module built so far.
func (c *Context) Program() *ir.Program { return c.prog }

func varKey(name string) uint64 { return xxhash.Sum64String(name) }

// findSlot returns the stack slot for name, or nil if it has none yet.
func (c *Context) findSlot(name string) ir.Value {
	if s, ok := c.vars[varKey(name)]; ok {
		return s.slot
	}
	return nil
}

// bindSlot records name's stack slot, overwriting any existing entry —
// this is also how `for`'s induction variable shadows an outer binding
// of the same name for the duration of the loop.
func (c *Context) bindSlot(name string, slot ir.Value) {
	c.vars[varKey(name)] = &symbol{name: name, slot: slot}
}

// shadow saves the current binding of name (nil if unbound) so the
// caller can restore it later with unshadow. Save/restore of a single
// entry is the §9-recommended replacement for the original's manual
// "oldVal := namedValues[var]" / restore-or-erase dance.
func (c *Context) shadow(name string) (prev *symbol, existed bool) {
	prev, existed = c.vars[varKey(name)]
	return
}

func (c *Context) unshadow(name string, prev *symbol, existed bool) {
	if existed {
		c.vars[varKey(name)] = prev
	} else {
		delete(c.vars, varKey(name))
	}
}

// resetVars clears the symbol table and name-uniquification counters;
// called on entry to each function.
func (c *Context) resetVars() {
	c.vars = make(map[uint64]*symbol)
	c.nameCounts = make(map[string]int)
}

func (c *Context) newTemp() ir.Temporary {
	c.tempCount++
	return ir.Temporary{Name: "t" + itoa(c.tempCount)}
}

func (c *Context) newLabel(hint string) *ir.Label {
	c.labelCount++
	return &ir.Label{Name: hint + itoa(c.labelCount)}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// startBlock appends a new block labeled lbl to the current function and
// positions the builder there.
func (c *Context) startBlock(lbl *ir.Label) *ir.BasicBlock {
	b := &ir.BasicBlock{Label: lbl}
	c.currentFunc.Blocks = append(c.currentFunc.Blocks, b)
	c.currentBlock = b
	return b
}

// emit appends instr to the current block.
func (c *Context) emit(instr *ir.Instruction) {
	c.currentBlock.Instructions = append(c.currentBlock.Instructions, instr)
}

// terminated reports whether the current block already ends in a
// terminator, so callers don't double-terminate a block that ended in
// an early `return`.
func (c *Context) terminated() bool {
	if c.currentBlock == nil || len(c.currentBlock.Instructions) == 0 {
		return false
	}
	switch c.currentBlock.Instructions[len(c.currentBlock.Instructions)-1].Op {
	case ir.OpJmp, ir.OpJnz, ir.OpRet:
		return true
	}
	return false
}
