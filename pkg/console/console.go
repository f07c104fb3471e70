package console

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Level classifies a console line for coloring purposes.
type Level int

const (
	Info Level = iota
	Success
	Warn
	Failure
	Final
)

// Formatter decorates console output. Implementations must be safe to call
// from multiple goroutines.
type Formatter interface {
	Format(text string, level Level) string
}

// New returns a color formatter when the file is an interactive terminal,
// otherwise a passthrough.
func New(out *os.File) Formatter {
	if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
		return newColorFormatter()
	}
	return Nop()
}

// Nop returns a formatter that leaves text untouched.
func Nop() Formatter {
	return nopFormatter{}
}

type nopFormatter struct{}

func (nopFormatter) Format(text string, _ Level) string { return text }

type colorFormatter struct {
	palette map[Level]*color.Color
}

func newColorFormatter() colorFormatter {
	return colorFormatter{palette: map[Level]*color.Color{
		Info:    color.New(color.FgCyan),
		Success: color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Failure: color.New(color.FgRed),
		Final:   color.New(color.FgMagenta),
	}}
}

func (f colorFormatter) Format(text string, level Level) string {
	if c, ok := f.palette[level]; ok {
		return c.Sprint(text)
	}
	return text
}
