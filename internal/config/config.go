// Package config holds per-compilation settings: target word geometry
// and debug/version fields. The CLI sets neither of the latter: -d sets
// driver.Driver.Debug, and Version is fixed by New.
package config

import (
	"fmt"
	"os"

	"modernc.org/libqbe"
)

// Config is the one mutable settings object threaded through a single
// compilation, mirroring the "never promote it to a global" design note
// for the module/builder/pass-manager session in §9.
type Config struct {
	Debug     bool
	Version   string
	QbeTarget string
	WordSize  int
	WordType  string
}

// New returns a Config with no target resolved yet.
func New() *Config {
	return &Config{Version: "0.1.0"}
}

// SetTarget resolves the QBE backend target for the host (or an
// explicit override) and records the target's word size and word type.
// The QBE emitter does not read them: comparison results are always
// emitted as `w`. An explicit qbeTarget that names no known QBE target
// is a driver-level error (§6.1: exit 1 on "unknown target triple"); the
// host-derived default never fails: an unrecognized host target draws a
// warning on stderr and falls back to 64-bit words.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) error {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
	} else {
		c.QbeTarget = qbeTarget
	}

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType = 8, "l"
	case "arm", "rv32":
		c.WordSize, c.WordType = 4, "w"
	default:
		if qbeTarget == "" {
			fmt.Fprintf(os.Stderr, "lisa: warning: unrecognized host QBE target %q, defaulting to 64-bit\n", c.QbeTarget)
			c.WordSize, c.WordType = 8, "l"
			return nil
		}
		return fmt.Errorf("unknown target triple %q", qbeTarget)
	}
	return nil
}
