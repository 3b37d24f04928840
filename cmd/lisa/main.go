// Command lisa compiles a single Lisa source file and writes the
// backend's target assembly to <input>.o; it does not assemble it into a
// binary object.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/yuelinxin/lisa/internal/cli"
	"github.com/yuelinxin/lisa/internal/codegen"
	"github.com/yuelinxin/lisa/internal/config"
	"github.com/yuelinxin/lisa/internal/driver"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	app := cli.NewApp("lisa")
	app.Synopsis = "[-d] [-h] [-v] <input_file>"
	app.Version = "0.1.0"
	app.Authors = []string{"yuelinxin"}

	var (
		debug       bool
		help        bool
		showVersion bool
		target      string
	)
	app.Bool(&debug, "debug", "d", false, "Dump generated IR to stderr for each top-level construct.")
	app.Bool(&help, "help", "h", false, "Display this information and exit.")
	app.Bool(&showVersion, "version", "v", false, "Print version and exit.")
	app.String(&target, "target", "t", "", "Override the QBE backend target (defaults to the host's).")

	if err := app.Parse(argv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		app.Usage(os.Stderr)
		return 1
	}

	if help {
		app.Usage(os.Stdout)
		return 0
	}
	if showVersion {
		fmt.Printf("lisa version %s\n", app.Version)
		return 0
	}

	inputFiles := app.Args()
	if len(inputFiles) == 0 {
		fmt.Fprintln(os.Stderr, "lisa: no input file specified.")
		return 1
	}

	cfg := config.New()
	if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
		fmt.Fprintf(os.Stderr, "lisa: %v\n", err)
		return 1
	}

	d := driver.New(cfg, codegen.NewQBEBackend())
	d.Debug = debug

	return d.CompileFile(inputFiles[0])
}
