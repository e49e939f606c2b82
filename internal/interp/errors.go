package interp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted is returned (wrapped) when an evaluation was aborted
// through Interrupt.
var ErrInterrupted = errors.New("evaluation interrupted")

// SyntaxError reports a program that failed to parse.
type SyntaxError struct {
	Message string
	Origin  string
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("[SyntaxError] %s in %s:%d(%d)", e.Message, e.Origin, e.Line, e.Column)
}

// UncaughtError reports an exception that escaped script code.
type UncaughtError struct {
	Message   string
	Origin    string
	Line      int
	Backtrace []string
}

func (e *UncaughtError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[UncaughtException] %s in %s:%d", e.Message, e.Origin, e.Line)
	if len(e.Backtrace) > 0 {
		const sep = "\n    "
		b.WriteString("\n[Backtrace]")
		b.WriteString(sep)
		b.WriteString(strings.Join(e.Backtrace, sep))
	}
	return b.String()
}
