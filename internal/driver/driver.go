// Package driver runs the top-level loop described in §4.4: peek a
// token, dispatch to the right parser entry point, lower the result
// through the code generator, and isolate each construct's failures
// from the rest of the batch.
package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goforj/godump"
	"github.com/google/uuid"

	"github.com/yuelinxin/lisa/internal/codegen"
	"github.com/yuelinxin/lisa/internal/config"
	"github.com/yuelinxin/lisa/internal/diag"
	"github.com/yuelinxin/lisa/internal/ir"
	"github.com/yuelinxin/lisa/internal/lexer"
	"github.com/yuelinxin/lisa/internal/parser"
	"github.com/yuelinxin/lisa/internal/token"
)

// Driver owns one compilation: a code-generator Context accumulating a
// Program, and the Backend that will eventually turn it into the output
// file's bytes.
type Driver struct {
	cfg     *config.Config
	backend codegen.Backend
	Debug   bool
}

// New returns a Driver targeting cfg, emitting through backend.
func New(cfg *config.Config, backend codegen.Backend) *Driver {
	return &Driver{cfg: cfg, backend: backend}
}

// CompileSource runs the driver loop over source, returning the
// finished Program. Per-construct failures are reported to stderr and
// skipped, so the Program holds only the constructs that lowered
// successfully; it is empty if none did.
func (d *Driver) CompileSource(source []rune) *ir.Program {
	diag.SetSource(source)
	lex := lexer.New(source)
	p := parser.New(lex)
	ctx := codegen.NewContext(d.cfg)

	for {
		next := p.Peek()
		if next.Kind == token.EOF {
			break
		}
		d.compileOne(p, ctx, next)
	}
	return ctx.Program()
}

// compileOne parses and lowers exactly one top-level construct,
// recovering from any diag.Error raised during either phase so the
// batch continues. On failure, the parser is advanced by one token to
// guarantee forward progress, per §4.2's error policy.
func (d *Driver) compileOne(p *parser.Parser, ctx *codegen.Context, next token.Token) {
	defer func() {
		if diag.Recover() {
			p.Advance()
		}
	}()

	switch next.Kind {
	case token.Fn:
		fn := p.ParseDefinition()
		irFn := ctx.LowerFunction(fn)
		d.dumpIR(fn.Proto.Name, irFn)
	case token.Extern:
		proto := p.ParseExtern()
		ctx.LowerExtern(proto)
	default:
		fn := p.ParseTopLevelExpr()
		irFn := ctx.LowerFunction(fn)
		d.dumpIR("<top-level>", irFn)
	}
}

func (d *Driver) dumpIR(name string, irFn *ir.Func) {
	if !d.Debug {
		return
	}
	fmt.Fprintf(os.Stderr, "--- IR for %s ---\n", name)
	godump.Dump(irFn)
}

// CompileFile reads path, compiles it, backend-emits the result, and
// writes the backend's output to the file derived from path (last
// extension replaced with .o, or .o appended if there is none). With the
// QBE backend that output is assembly text; it is not assembled into a
// binary object before being written. It returns the process
// exit code per §6.1: 0 on success, 1 on any driver-level failure.
func (d *Driver) CompileFile(path string) int {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lisa: could not open %q: %v\n", path, err)
		return 1
	}

	prog := d.CompileSource([]rune(string(content)))

	asm, err := d.backend.Generate(prog, d.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lisa: %v\n", err)
		return 1
	}

	outPath := objectPath(path)
	if err := writeAtomic(outPath, asm); err != nil {
		fmt.Fprintf(os.Stderr, "lisa: could not write %q: %v\n", outPath, err)
		return 1
	}

	fmt.Printf("lisa: wrote %s (%s)\n", outPath, humanize.Bytes(uint64(asm.Len())))
	return 0
}

// objectPath derives the output file name from the input: replace the
// last extension with .o, or append .o if there is none.
func objectPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".o"
	}
	return strings.TrimSuffix(path, ext) + ".o"
}

// writeAtomic writes asm to a uuid-suffixed temp file in the target
// directory, then renames it into place, so a crash mid-write never
// leaves a truncated output file at outPath.
func writeAtomic(outPath string, asm *bytes.Buffer) error {
	dir := filepath.Dir(outPath)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(outPath), uuid.NewString()))

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(asm.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
