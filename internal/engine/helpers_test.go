package engine

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scripthost/internal/interp"
	"github.com/roach88/scripthost/internal/testutil"
)

const testFileName = "file:///scripts/main.js"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine creates an initialized engine owned by the test goroutine,
// backed by a MapCache that also serves as its batch loader.
func newTestEngine(t *testing.T, source string, opts ...Option) (*Engine, *testutil.MapCache) {
	t.Helper()
	cache := testutil.NewMapCache(nil)
	base := []Option{
		WithLogger(quietLogger()),
		WithContentCache(cache),
		WithBatchLoader(cache),
		WithScriptsLocation("/opt/scripthost/scripts"),
	}
	e := New(interp.NewGoja(), source, testFileName, append(base, opts...)...)
	require.NoError(t, e.Init())
	return e, cache
}

// pump runs queued work on the owner until cond holds.
func pump(t *testing.T, e *Engine, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		e.ProcessPending()
		time.Sleep(time.Millisecond)
	}
}

func mustEval(t *testing.T, e *Engine, source string) interp.Value {
	t.Helper()
	v, err := e.Evaluate(source, "test.js")
	require.NoError(t, err)
	return v
}

// hostFunc adapts a plain function into a script global.
func hostFunc(fn func()) interp.HostFunc {
	return func([]interp.Value) (interp.Value, error) {
		fn()
		return nil, nil
	}
}

type recorded struct {
	name string
	env  Environment
	args []any
}

// recorder backs the script global record(name, args...), which captures
// the environment installed at call time.
type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func newRecorder(t *testing.T, e *Engine) *recorder {
	t.Helper()
	r := &recorder{}
	err := e.interp.Define("record", interp.HostFunc(func(args []interp.Value) (interp.Value, error) {
		rec := recorded{env: e.env}
		if len(args) > 0 {
			rec.name = e.interp.ToString(args[0])
			for _, a := range args[1:] {
				rec.args = append(rec.args, e.interp.Export(a))
			}
		}
		r.mu.Lock()
		r.calls = append(r.calls, rec)
		r.mu.Unlock()
		return nil, nil
	}))
	require.NoError(t, err)
	return r
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func (r *recorder) named(name string) []recorded {
	var out []recorded
	for _, c := range r.all() {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) names() []string {
	var out []string
	for _, c := range r.all() {
		out = append(out, c.name)
	}
	return out
}

func (r *recorder) count(name string) int {
	return len(r.named(name))
}

// events collects host notifications in publish order.
type events struct {
	mu  sync.Mutex
	log []string
}

func (ev *events) add(s string) {
	ev.mu.Lock()
	ev.log = append(ev.log, s)
	ev.mu.Unlock()
}

func (ev *events) list() []string {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]string(nil), ev.log...)
}

func (ev *events) count(s string) int {
	n := 0
	for _, x := range ev.list() {
		if x == s {
			n++
		}
	}
	return n
}

// watchLifecycle subscribes to the lifecycle notifications of e.
func watchLifecycle(e *Engine) *events {
	ev := &events{}
	Subscribe(e, func(n RunningStateChanged) {
		switch {
		case n.Running && n.Finished:
			ev.add("stopping")
		case n.Running:
			ev.add("running")
		default:
			ev.add("stopped")
		}
	})
	Subscribe(e, func(ScriptEnding) { ev.add("scriptEnding") })
	Subscribe(e, func(Finished) { ev.add("finished") })
	Subscribe(e, func(DoneRunning) { ev.add("doneRunning") })
	return ev
}
