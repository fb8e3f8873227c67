// Package consolelog is a small leveled logger for the CLI driver and the
// demo syscall host. It writes through a buffered, color-capable writer the
// same way the teacher VM owns a single buffered stdout (vm.stdout in
// vm/vm.go) rather than reaching for the standard log package globally.
package consolelog

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) label() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

func (l Level) color() *color.Color {
	switch l {
	case LevelDebug:
		return color.New(color.FgHiBlack)
	case LevelInfo:
		return color.New(color.FgCyan)
	case LevelWarn:
		return color.New(color.FgYellow)
	case LevelError:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New()
	}
}

// Logger writes leveled, optionally colorized lines to a buffered writer.
// Color is disabled automatically when the underlying file descriptor isn't
// a terminal.
type Logger struct {
	out   *bufio.Writer
	min   Level
	color bool
}

// New builds a Logger over w at the given minimum level. If w is an *os.File
// attached to a terminal, output is colorized via go-colorable (needed on
// Windows consoles) and go-isatty's detection; otherwise color codes are
// suppressed.
func New(w io.Writer, min Level) *Logger {
	useColor := false
	out := w
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		if useColor {
			out = colorable.NewColorable(f)
		}
	}
	return &Logger{out: bufio.NewWriter(out), min: min, color: useColor}
}

// NewStderr is the common case: a colorized logger over os.Stderr.
func NewStderr(min Level) *Logger { return New(os.Stderr, min) }

func (l *Logger) log(lvl Level, format string, args ...any) {
	if lvl < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.color {
		fmt.Fprintln(l.out, lvl.color().Sprintf("%-5s %s", lvl.label(), msg))
	} else {
		fmt.Fprintf(l.out, "%-5s %s\n", lvl.label(), msg)
	}
	l.out.Flush()
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// Flush forces any buffered output to the underlying writer.
func (l *Logger) Flush() error { return l.out.Flush() }
