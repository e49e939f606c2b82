package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
)

// Sentinel errors for host state.
var (
	// ErrAlreadyRunning is returned when Run is entered twice.
	ErrAlreadyRunning = errors.New("script host already running")

	// ErrHostStopped is returned when a cross-goroutine call arrives after
	// the frame loop has shut down, or while all scripts are stopping.
	ErrHostStopped = errors.New("script host stopped")
)

// ScriptError represents a failure caused by script content or by the
// host's containment of it.
//
// Script errors never abort the host. They are logged, reported through
// return values where an operation has one, and otherwise dropped.
type ScriptError struct {
	// Code identifies the error category.
	Code ScriptErrorCode

	// Message is a human-readable description.
	Message string

	// Origin is the file name or URL the failing program was loaded from.
	Origin string

	// Line and Column locate the failure, when known.
	Line   int
	Column int

	// Backtrace holds script stack frames for uncaught exceptions.
	Backtrace []string

	// EntityID identifies the entity script involved, if any.
	EntityID entity.ID
}

// ScriptErrorCode categorizes script errors.
type ScriptErrorCode string

const (
	// ErrCodeSyntax indicates the program failed to parse.
	ErrCodeSyntax ScriptErrorCode = "SYNTAX_ERROR"

	// ErrCodeUncaught indicates an exception escaped script code.
	ErrCodeUncaught ScriptErrorCode = "UNCAUGHT_EXCEPTION"

	// ErrCodeBadConstructor indicates an entity script did not evaluate
	// to an invocable constructor.
	ErrCodeBadConstructor ScriptErrorCode = "BAD_CONSTRUCTOR"

	// ErrCodeTrustBoundary indicates an include target lies outside the
	// including program's trust origin.
	ErrCodeTrustBoundary ScriptErrorCode = "TRUST_BOUNDARY"

	// ErrCodeShutdownTimeout indicates the frame loop did not stop within
	// the bounded wait and was force-aborted.
	ErrCodeShutdownTimeout ScriptErrorCode = "SHUTDOWN_TIMEOUT"
)

// Error implements the error interface.
func (e *ScriptError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Origin != "" {
		if e.Line > 0 {
			fmt.Fprintf(&b, " (%s:%d", e.Origin, e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
			b.WriteString(")")
		} else {
			fmt.Fprintf(&b, " (%s)", e.Origin)
		}
	}
	if !e.EntityID.IsNil() {
		fmt.Fprintf(&b, " [entity=%s]", e.EntityID)
	}
	return b.String()
}

// IsSyntaxError reports whether err is a script syntax error.
// Uses errors.As to handle wrapped errors.
func IsSyntaxError(err error) bool {
	return hasCode(err, ErrCodeSyntax)
}

// IsUncaughtError reports whether err is an uncaught script exception.
func IsUncaughtError(err error) bool {
	return hasCode(err, ErrCodeUncaught)
}

// IsBadConstructorError reports whether err is a bad entity constructor.
func IsBadConstructorError(err error) bool {
	return hasCode(err, ErrCodeBadConstructor)
}

// IsTrustBoundaryError reports whether err is a rejected include.
func IsTrustBoundaryError(err error) bool {
	return hasCode(err, ErrCodeTrustBoundary)
}

// IsShutdownTimeoutError reports whether err is a forced shutdown.
func IsShutdownTimeoutError(err error) bool {
	return hasCode(err, ErrCodeShutdownTimeout)
}

func hasCode(err error, code ScriptErrorCode) bool {
	var se *ScriptError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// fromInterpreter converts an interpreter failure into a ScriptError.
// Errors that are not script failures are wrapped as uncaught exceptions.
func fromInterpreter(err error, entityID entity.ID) *ScriptError {
	var syn *interp.SyntaxError
	if errors.As(err, &syn) {
		return &ScriptError{
			Code:     ErrCodeSyntax,
			Message:  syn.Message,
			Origin:   syn.Origin,
			Line:     syn.Line,
			Column:   syn.Column,
			EntityID: entityID,
		}
	}
	var unc *interp.UncaughtError
	if errors.As(err, &unc) {
		return &ScriptError{
			Code:      ErrCodeUncaught,
			Message:   unc.Message,
			Origin:    unc.Origin,
			Line:      unc.Line,
			Backtrace: unc.Backtrace,
			EntityID:  entityID,
		}
	}
	return &ScriptError{
		Code:     ErrCodeUncaught,
		Message:  err.Error(),
		EntityID: entityID,
	}
}

// NewBadConstructorError creates a ScriptError for an entity script whose
// value is not invocable.
func NewBadConstructorError(entityID entity.ID, origin, typeName, text string) *ScriptError {
	return &ScriptError{
		Code:     ErrCodeBadConstructor,
		Message:  fmt.Sprintf("expected a function, got %s, %s", typeName, text),
		Origin:   origin,
		EntityID: entityID,
	}
}

// NewTrustBoundaryError creates a ScriptError for a rejected include.
func NewTrustBoundaryError(target, trustOrigin string) *ScriptError {
	return &ScriptError{
		Code:    ErrCodeTrustBoundary,
		Message: fmt.Sprintf("ignoring file path %s outside of original entity script %s", target, trustOrigin),
		Origin:  target,
	}
}

// NewShutdownTimeoutError creates a ScriptError for a forced shutdown.
func NewShutdownTimeoutError(origin, waited string) *ScriptError {
	return &ScriptError{
		Code:    ErrCodeShutdownTimeout,
		Message: fmt.Sprintf("script host did not stop within %s, evaluation aborted", waited),
		Origin:  origin,
	}
}
