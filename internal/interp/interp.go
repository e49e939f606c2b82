package interp

// Value is an opaque interpreter value.
// A nil Value stands for "no value" (undefined).
type Value any

// HostFunc is a Go function exposed to scripts.
// Returning an error raises it as a script exception.
type HostFunc func(args []Value) (Value, error)

// Object is a namespace of host functions and values exposed to scripts.
// Values may be HostFunc, nested Object, or plain Go data.
type Object map[string]any

// Interpreter is the embedded-interpreter capability.
type Interpreter interface {
	// CheckSyntax parses source without executing it.
	// Returns a *SyntaxError when the program does not parse.
	CheckSyntax(source, origin string) error

	// Evaluate runs source labelled with origin and returns its completion value.
	// Errors are *SyntaxError, *UncaughtError, or wrap ErrInterrupted.
	Evaluate(source, origin string) (Value, error)

	// IsCallable reports whether v can be invoked as a function.
	IsCallable(v Value) bool

	// Call invokes fn with the given receiver and arguments.
	// Arguments may be interpreter values or plain Go data.
	Call(fn, this Value, args ...any) (Value, error)

	// Construct invokes ctor as a constructor (new ctor(args...)).
	Construct(ctor Value, args ...any) (Value, error)

	// Property returns obj[name], or nil when obj is not an object or the
	// property does not exist. A getter that throws yields an
	// *UncaughtError.
	Property(obj Value, name string) (Value, error)

	// Equal reports whether a and b are the same script value.
	Equal(a, b Value) bool

	// Describe returns a short type name and printable text for diagnostics.
	Describe(v Value) (typeName, text string)

	// ToString converts v to its script string form.
	ToString(v Value) string

	// ToInteger converts v to an integer using script conversion rules.
	ToInteger(v Value) int64

	// Export converts v to plain Go data (strings, numbers, []any, map[string]any).
	Export(v Value) any

	// Define installs a global binding. v may be a HostFunc, an Object,
	// or plain Go data.
	Define(name string, v any) error

	// Interrupt aborts the current evaluation. Safe from any goroutine.
	Interrupt(reason string)

	// ClearInterrupt re-arms the interpreter after an Interrupt.
	ClearInterrupt()

	// Sandbox returns a fresh, isolated interpreter instance that shares no
	// globals with the receiver. Used to classify programs before running
	// them for real.
	Sandbox() Interpreter
}
