//go:build !windows

package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuelinxin/lisa/internal/config"
	"github.com/yuelinxin/lisa/internal/ir"
	"modernc.org/libqbe"
)

// Generate compiles prog in-process through modernc.org/libqbe, the Go
// port of QBE wired in as the external emitter contract of §6.2.
func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	qbeIR := b.GenerateIR(prog)

	var asmBuf bytes.Buffer
	if err := libqbe.Main(cfg.QbeTarget, "lisa.ssa", strings.NewReader(qbeIR), &asmBuf, nil); err != nil {
		return nil, fmt.Errorf("\n--- QBE compilation failed ---\nGenerated IR:\n%s\n\nlibqbe error: %w", qbeIR, err)
	}
	return &asmBuf, nil
}
