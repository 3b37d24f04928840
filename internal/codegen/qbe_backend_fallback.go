//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/yuelinxin/lisa/internal/config"
	"github.com/yuelinxin/lisa/internal/ir"
)

// Generate shells out to a system `qbe` binary on windows, where
// modernc.org/libqbe's in-process path is not exercised.
func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	fmt.Println("lisa: self-contained QBE backend is not supported on windows, falling back to system 'qbe'")
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("qbe not found in PATH: %w", err)
	}

	qbeIR := b.GenerateIR(prog)

	inputFile, err := os.CreateTemp("", "lisa-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer inputFile.Close()
	defer os.Remove(inputFile.Name())

	if _, err := inputFile.WriteString(qbeIR); err != nil {
		return nil, err
	}

	outputName := inputFile.Name() + ".asm"
	cmd := exec.Command("qbe", "-o", outputName, "-t", cfg.QbeTarget, inputFile.Name())
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("\n--- QBE compilation failed ---\nGenerated IR:\n%s\n\nerror: %w", qbeIR, err)
	}

	outputFile, err := os.Open(outputName)
	if err != nil {
		return nil, err
	}
	defer outputFile.Close()
	defer os.Remove(outputName)

	var asmBuf bytes.Buffer
	if _, err := io.Copy(&asmBuf, outputFile); err != nil {
		return nil, err
	}
	return &asmBuf, nil
}
