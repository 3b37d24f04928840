package codegen

import (
	"bytes"

	"github.com/yuelinxin/lisa/internal/config"
	"github.com/yuelinxin/lisa/internal/ir"
)

// Backend is the external IR/object emitter contract from §6.2: the
// code generator depends on nothing else to turn a finished Program
// into the bytes written to the output file. The QBE backend returns
// target assembly text; it does not assemble it into a binary object.
type Backend interface {
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}
