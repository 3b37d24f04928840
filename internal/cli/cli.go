// Package cli is a small flag parser and usage-page formatter in the
// style of a hand-rolled app framework: long/short flags, a help page,
// and terminal-width-aware wrapping via golang.org/x/term. Lisa only
// needs four flags (-d, -h, -v, -t) plus a positional input file, so
// this is trimmed to that shape rather than the general FlagGroup
// machinery a bigger CLI would carry.
package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// App is the whole command surface: name, flags, and whatever
// positional arguments remain after parsing.
type App struct {
	Name       string
	Synopsis   string
	Version    string
	Authors    []string
	Repository string
	flags      []*Flag
	shorthands map[string]*Flag
	byName     map[string]*Flag
	args       []string
}

// Flag is one boolean or string option.
type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	IsBool    bool
	BoolVal   *bool
	StrVal    *string
}

func NewApp(name string) *App {
	return &App{
		Name:       name,
		shorthands: make(map[string]*Flag),
		byName:     make(map[string]*Flag),
	}
}

func (a *App) register(f *Flag) {
	a.flags = append(a.flags, f)
	a.byName[f.Name] = f
	if f.Shorthand != "" {
		a.shorthands[f.Shorthand] = f
	}
}

func (a *App) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	a.register(&Flag{Name: name, Shorthand: shorthand, Usage: usage, IsBool: true, BoolVal: p})
}

func (a *App) String(p *string, name, shorthand, value, usage string) {
	*p = value
	a.register(&Flag{Name: name, Shorthand: shorthand, Usage: usage, StrVal: p})
}

// Args returns the positional (non-flag) arguments left after Parse.
func (a *App) Args() []string { return a.args }

// Parse recognizes `-x`, `-x value`, `--name`, `--name value`, and
// `--name=value`; anything else is a positional argument. Unknown flags
// are an error rather than silently collected.
func (a *App) Parse(arguments []string) error {
	a.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			a.args = append(a.args, arg)
			continue
		}
		if arg == "--" {
			a.args = append(a.args, arguments[i+1:]...)
			break
		}

		var flag *Flag
		var inlineValue string
		hasInline := false

		if strings.HasPrefix(arg, "--") {
			name := arg[2:]
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				inlineValue, hasInline = name[eq+1:], true
				name = name[:eq]
			}
			flag = a.byName[name]
			if flag == nil {
				return fmt.Errorf("unknown flag: --%s", name)
			}
		} else {
			name := arg[1:2]
			flag = a.shorthands[name]
			if flag == nil {
				return fmt.Errorf("unknown flag: -%s", name)
			}
			if rest := arg[2:]; rest != "" {
				inlineValue, hasInline = rest, true
			}
		}

		if flag.IsBool {
			*flag.BoolVal = true
			continue
		}
		if hasInline {
			*flag.StrVal = inlineValue
			continue
		}
		if i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: %s", arg)
		}
		i++
		*flag.StrVal = arguments[i]
	}
	return nil
}

// Usage prints a one-line synopsis plus the flag table to w.
func (a *App) Usage(w *os.File) {
	width := terminalWidth()
	fmt.Fprintf(w, "Usage: %s %s\n\n", a.Name, a.Synopsis)
	fmt.Fprintln(w, "Options")
	maxFlag := 0
	for _, f := range a.flags {
		if n := len(flagString(f)); n > maxFlag {
			maxFlag = n
		}
	}
	for _, f := range a.flags {
		left := flagString(f)
		usage := wrap(f.Usage, width-maxFlag-6)
		fmt.Fprintf(w, "  %-*s  %s\n", maxFlag, left, firstLine(usage))
		for _, line := range usage[1:] {
			fmt.Fprintf(w, "  %s  %s\n", strings.Repeat(" ", maxFlag), line)
		}
	}
}

func flagString(f *Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "--" + f.Name
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func wrap(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 40
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	var cur strings.Builder
	curLen := 0
	for _, word := range words {
		if curLen > 0 && curLen+1+len(word) > maxWidth {
			lines = append(lines, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteString(" ")
			curLen++
		}
		cur.WriteString(word)
		curLen += len(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
