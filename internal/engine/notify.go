package engine

import (
	"reflect"
	"sync"
)

// Host notifications. Handlers run synchronously on the owning goroutine,
// in subscription order. Nothing is published when the engine was created
// WithSignals(false).

// RunningStateChanged fires when the engine starts running, when it is
// asked to stop, and when the frame loop has exited.
type RunningStateChanged struct {
	Running  bool
	Finished bool
}

// Update fires once per frame with the seconds elapsed since the previous frame.
type Update struct {
	DeltaTime float64
}

// ScriptEnding fires after timers are cancelled as the frame loop exits.
type ScriptEnding struct{}

// Finished fires after the exit flush with the host program's origin.
type Finished struct {
	Filename string
}

// DoneRunning is the last notification of a run.
type DoneRunning struct{}

// EvaluationFinished fires after Evaluate.
type EvaluationFinished struct {
	Origin string
	Err    error
}

// PrintedMessage carries the text of a script print call.
type PrintedMessage struct {
	Message string
}

// ScriptLoaded fires when LoadURL obtained the host program source.
type ScriptLoaded struct {
	URL string
}

// ErrorLoadingScript fires when LoadURL could not obtain the source.
type ErrorLoadingScript struct {
	URL string
}

// LoadScript asks the embedding program to start another host program.
// Reloading is set when the requesting host was itself loaded as a reload.
type LoadScript struct {
	URL       string
	Reloading bool
}

// bus is a typed publish/subscribe registry keyed by event type.
type bus struct {
	mu       sync.Mutex
	handlers map[reflect.Type][]any
}

func newBus() *bus {
	return &bus{handlers: make(map[reflect.Type][]any)}
}

// Subscribe registers handler for notifications of type T.
// Thread-safe: may be called from any goroutine. Handlers are called in
// the order they were subscribed.
func Subscribe[T any](e *Engine, handler func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	e.bus.handlers[t] = append(e.bus.handlers[t], handler)
}

// publish delivers ev to every handler subscribed to T.
func publish[T any](e *Engine, ev T) {
	if !e.wantSignals {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	e.bus.mu.Lock()
	hs := e.bus.handlers[t]
	e.bus.mu.Unlock()

	for _, h := range hs {
		h.(func(T))(ev)
	}
}
