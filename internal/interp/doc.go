// Package interp defines the embedded-interpreter capability the script host
// consumes, and a concrete implementation backed by goja.
//
// The host never inspects interpreter values directly. Everything it needs
// (syntax checks, evaluation, invocation, construction, property lookup,
// equality) goes through the Interpreter interface, so any conforming engine
// can stand in for goja.
//
// Thread-safety: an Interpreter is NOT safe for concurrent use. The host calls
// it only from its owning goroutine. The single exception is Interrupt, which
// may be called from any goroutine to abort an in-flight evaluation.
package interp
