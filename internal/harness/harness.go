package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/scripthost/internal/engine"
	"github.com/roach88/scripthost/internal/entities"
	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
	"github.com/roach88/scripthost/internal/scriptcache"
	"github.com/roach88/scripthost/internal/store"
)

// Placeholders expanded in scenarios and restored in traces.
const (
	RootPlaceholder   = "${ROOT}"
	RemotePlaceholder = "${REMOTE}"
)

const (
	// frameRate keeps the settle barrier short.
	frameRate = 240

	shutdownTimeout = time.Second

	// settleTimeout bounds the wait for fetches started by one step.
	settleTimeout = 5 * time.Second
)

// Harness runs one scenario against a live host.
type Harness struct {
	store  *store.Store
	hub    *entities.Hub
	engine *engine.Engine
	rec    *recorder

	// fetches counts cache and loader requests whose callbacks have not
	// returned yet.
	fetches atomic.Int64

	expand    *strings.Replacer
	normalize *strings.Replacer
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs with a fresh in-memory database, a temporary
// directory for its files, and a local HTTP server for its remote
// scripts.
//
// Execution flow:
//  1. Write files, start the remote server, open the database
//  2. Start the host on its own goroutine; it evaluates the program
//  3. Run each step and let it settle
//  4. Capture host state, stop the host, wait for it
//  5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "scripthost-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(root)

	if err := writeFiles(root, scenario.Files); err != nil {
		return nil, err
	}

	srv := httptest.NewServer(remoteHandler(scenario.Remote))
	defer srv.Close()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rootURL := scriptcache.FileURL(filepath.ToSlash(root))
	h := &Harness{
		store:     st,
		rec:       newRecorder(),
		expand:    strings.NewReplacer(RootPlaceholder, rootURL, RemotePlaceholder, srv.URL),
		normalize: strings.NewReplacer(rootURL, RootPlaceholder, srv.URL, RemotePlaceholder),
	}
	h.rec.normalize = h.normalize.Replace

	logger := slog.New(&traceHandler{rec: h.rec, level: slog.LevelWarn})
	h.hub = entities.NewHub(logger)

	cache := scriptcache.New(st, scriptcache.WithLogger(logger), scriptcache.WithHTTPClient(srv.Client()))
	mainURL := rootURL + "/main.js"
	h.engine = engine.New(interp.NewGoja(), scenario.Program, mainURL,
		engine.WithContentCache(&trackedCache{Cache: cache, pending: &h.fetches}),
		engine.WithBatchLoader(&trackedLoader{loader: scriptcache.NewBatchLoader(cache), pending: &h.fetches}),
		engine.WithEntitySource(h.hub),
		engine.WithScriptsLocation(filepath.Join(root, "lib")),
		engine.WithFrameRate(frameRate),
		engine.WithShutdownTimeout(shutdownTimeout),
		engine.WithLogger(logger),
	)
	h.rec.watch(h.engine)

	result := NewResult()
	if err := h.start(); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.runStep(step); err != nil {
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Kind(), err))
		}
		if err := h.settle(); err != nil {
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Kind(), err))
		}
	}

	result.State[StateEntityScripts] = h.engine.EntityScriptCount()
	result.State[StateTimers] = h.engine.TimerCount()

	h.engine.Stop()
	if err := h.engine.WaitTillDoneRunning(); err != nil {
		result.AddError(fmt.Sprintf("shutdown: %v", err))
	}
	result.Trace = h.rec.events()

	actx := &AssertionContext{
		Store:  st,
		Ctx:    context.Background(),
		Expand: h.expand.Replace,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// start runs the host on its own goroutine and waits until the program
// has been evaluated.
func (h *Harness) start() error {
	h.engine.RunInGoroutine()
	deadline := time.Now().Add(settleTimeout)
	for !h.engine.IsRunning() {
		if time.Now().After(deadline) {
			return fmt.Errorf("host did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return h.settle()
}

// settle waits until no fetch is outstanding and the host has run all
// work queued so far.
func (h *Harness) settle() error {
	deadline := time.Now().Add(settleTimeout)
	for {
		for h.fetches.Load() > 0 {
			if time.Now().After(deadline) {
				return fmt.Errorf("fetches did not complete within %s", settleTimeout)
			}
			time.Sleep(time.Millisecond)
		}
		// A round trip through the host's queue runs everything posted
		// before it.
		h.engine.EvaluationsPending()
		if h.fetches.Load() == 0 {
			return nil
		}
	}
}

func (h *Harness) runStep(step Step) error {
	switch step.Kind() {
	case StepLoadEntity:
		id := entity.MustParse(step.LoadEntity.Entity)
		script := h.expand.Replace(step.LoadEntity.Script)
		h.rec.add(TraceEvent{Type: EventStep, Name: StepLoadEntity, Entity: id.String(), Message: h.normalize.Replace(script)})
		h.hub.Add(id, script)
		h.engine.LoadEntityScript(id, script, step.LoadEntity.Force)

	case StepUnloadEntity:
		id := entity.MustParse(step.UnloadEntity)
		h.rec.add(TraceEvent{Type: EventStep, Name: StepUnloadEntity, Entity: id.String()})
		h.engine.UnloadEntityScript(id)

	case StepDeleteEntity:
		id := entity.MustParse(step.DeleteEntity)
		h.rec.add(TraceEvent{Type: EventStep, Name: StepDeleteEntity, Entity: id.String()})
		h.hub.Delete(id)

	case StepEmit:
		id := entity.MustParse(step.Emit.Entity)
		h.rec.add(TraceEvent{Type: EventStep, Name: StepEmit, Entity: id.String(), Message: step.Emit.Event})
		return h.hub.Emit(step.Emit.Event, id, h.expandArgs(step.Emit.Args)...)

	case StepCall:
		id := entity.MustParse(step.Call.Entity)
		h.rec.add(TraceEvent{Type: EventStep, Name: StepCall, Entity: id.String(), Message: step.Call.Method})
		h.engine.CallEntityScriptMethod(id, step.Call.Method, h.expandArgs(step.Call.Args)...)

	case StepEvaluate:
		h.rec.add(TraceEvent{Type: EventStep, Name: StepEvaluate})
		// Failures are traced through EvaluationFinished.
		_, _ = h.engine.Evaluate(h.expand.Replace(step.Evaluate), "evaluate.js")

	case StepWait:
		d, err := time.ParseDuration(step.Wait)
		if err != nil {
			return err
		}
		h.rec.add(TraceEvent{Type: EventStep, Name: StepWait, Message: step.Wait})
		time.Sleep(d)

	default:
		return fmt.Errorf("exactly one action is required")
	}
	return nil
}

// expandArgs expands placeholders in string arguments.
func (h *Harness) expandArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			out[i] = h.expand.Replace(s)
			continue
		}
		out[i] = a
	}
	return out
}

func writeFiles(root string, files map[string]string) error {
	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if !strings.HasPrefix(path, root+string(filepath.Separator)) {
			return fmt.Errorf("file %q escapes the scenario directory", name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

func remoteHandler(scripts map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := scripts[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(body))
	})
}

// trackedCache counts fetches in flight.
type trackedCache struct {
	*scriptcache.Cache
	pending *atomic.Int64
}

func (c *trackedCache) Fetch(scriptOrURL string, forceRefresh bool, done scriptcache.ContentCallback) {
	c.pending.Add(1)
	c.Cache.Fetch(scriptOrURL, forceRefresh, func(s, contents string, isURL, ok bool) {
		defer c.pending.Add(-1)
		done(s, contents, isURL, ok)
	})
}

// trackedLoader counts batch loads in flight.
type trackedLoader struct {
	loader  *scriptcache.BatchLoader
	pending *atomic.Int64
}

func (l *trackedLoader) Start(urls []string, onFinished func(map[string]string)) {
	l.pending.Add(1)
	l.loader.Start(urls, func(data map[string]string) {
		defer l.pending.Add(-1)
		onFinished(data)
	})
}

// recorder collects trace events from any goroutine.
type recorder struct {
	mu        sync.Mutex
	seq       *engine.Clock
	trace     []TraceEvent
	normalize func(string) string
}

func newRecorder() *recorder {
	return &recorder{seq: engine.NewClock(), normalize: func(s string) string { return s }}
}

func (r *recorder) add(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.Seq = r.seq.Next()
	ev.Message = r.normalize(ev.Message)
	r.trace = append(r.trace, ev)
}

func (r *recorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.trace...)
}

// watch subscribes to the host notifications that belong in a trace.
func (r *recorder) watch(e *engine.Engine) {
	engine.Subscribe(e, func(n engine.RunningStateChanged) {
		switch {
		case n.Running && n.Finished:
			r.add(TraceEvent{Type: EventStopping})
		case n.Running:
			r.add(TraceEvent{Type: EventRunning})
		default:
			r.add(TraceEvent{Type: EventStopped})
		}
	})
	engine.Subscribe(e, func(p engine.PrintedMessage) {
		r.add(TraceEvent{Type: EventPrint, Message: p.Message})
	})
	engine.Subscribe(e, func(ef engine.EvaluationFinished) {
		var se *engine.ScriptError
		if !errors.As(ef.Err, &se) {
			return
		}
		r.add(TraceEvent{
			Type:    EventError,
			Name:    string(se.Code),
			Entity:  se.EntityID.String(),
			Message: se.Message,
		})
	})
	engine.Subscribe(e, func(engine.ScriptEnding) { r.add(TraceEvent{Type: EventScriptEnding}) })
	engine.Subscribe(e, func(engine.Finished) { r.add(TraceEvent{Type: EventFinished}) })
	engine.Subscribe(e, func(engine.DoneRunning) { r.add(TraceEvent{Type: EventDoneRunning}) })
}

// traceHandler is a slog.Handler that records host warnings as trace
// events: the log message as the name, the "error" attribute (if any) as
// the message.
type traceHandler struct {
	rec   *recorder
	level slog.Level
	attrs []slog.Attr
}

func (h *traceHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *traceHandler) Handle(_ context.Context, rec slog.Record) error {
	ev := TraceEvent{Type: EventWarn, Name: rec.Message}
	visit := func(a slog.Attr) bool {
		switch a.Key {
		case "error":
			ev.Message = a.Value.String()
		case "entity_id":
			ev.Entity = a.Value.String()
		}
		return true
	}
	for _, a := range h.attrs {
		visit(a)
	}
	rec.Attrs(visit)
	h.rec.add(ev)
	return nil
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *traceHandler) WithGroup(string) slog.Handler {
	return h
}
