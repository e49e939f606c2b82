package engine

import (
	"log/slog"
	"net/url"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
	"github.com/roach88/scripthost/internal/scriptcache"
)

// DefaultFrameRate is the frame loop's target rate in frames per second.
const DefaultFrameRate = 60

// DefaultShutdownTimeout bounds WaitTillDoneRunning before it force-aborts
// the frame loop.
const DefaultShutdownTimeout = time.Second

// maxExitFlushPolls bounds the exit flush of the outbound queue.
const maxExitFlushPolls = 1000

// Engine hosts one script program and the entity scripts attached to it.
//
// All script state is owned by a single goroutine: the goroutine that
// created the engine, or the one started by RunInGoroutine. Exported
// methods may be called from any goroutine; calls off the owner are
// marshalled onto it (see dispatch.go).
//
// Thread-safety model:
//   - Stop, Subscribe, IsRunning, IsFinished: safe from any goroutine
//   - methods returning a value: block off the owner until it has run them
//   - methods without a result: queued off the owner
//   - Run: binds the calling goroutine as owner for the loop's lifetime
//
// INVARIANTS:
//   - env, entityScripts, timers and handlers are only touched on the owner
//   - env is restored on every exit from withEnvironment
//   - the exit sequence (ScriptEnding ... DoneRunning) runs once per Run
type Engine struct {
	logger          *slog.Logger
	interp          interp.Interpreter
	cache           ContentCache
	loader          BatchLoader
	outbound        OutboundQueue
	entities        EntitySource
	scriptsLocation string
	frameRate       int
	shutdownTimeout time.Duration
	wantSignals     bool
	now             func() time.Time

	// Shared by every engine of a Manager.
	stopping atomic.Pointer[atomic.Bool]

	owner    atomic.Uint64
	queue    *taskQueue
	bus      *bus
	frames   *Clock
	timerIDs *Clock

	running  atomic.Bool
	finished atomic.Bool
	threaded atomic.Bool
	abort    chan struct{}
	abortMu  sync.Once
	loopDone chan struct{}
	loopOnce sync.Once

	// Written on the owner, read from anywhere.
	fileName atomic.Pointer[string]

	// Owner-only state below.
	initialized      bool
	reloading        bool
	source           string
	parentURL        string
	env              Environment
	entityScripts    map[entity.ID]*entityScript
	refreshing       bool
	timers           map[TimerID]*timer
	handlers         map[entity.ID]map[string][]*handler
	upstreamWired    bool
	upstreamCancels  []func()
	includedURLs     map[string]bool
	evaluatesPending int
	uncaught         []*ScriptError
}

// Option configures an Engine.
type Option func(*Engine)

// WithFrameRate sets the frame loop's target rate.
//
// Default: 60 frames per second (DefaultFrameRate).
func WithFrameRate(fps int) Option {
	return func(e *Engine) {
		if fps > 0 {
			e.frameRate = fps
		}
	}
}

// WithShutdownTimeout sets how long WaitTillDoneRunning waits before
// force-aborting.
//
// Default: one second (DefaultShutdownTimeout).
func WithShutdownTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.shutdownTimeout = d
		}
	}
}

// WithContentCache sets the content cache. Default: an in-memory
// scriptcache.Cache.
func WithContentCache(c ContentCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithBatchLoader sets the multi-URL loader used by include.
// Default: a scriptcache.BatchLoader over the default cache.
func WithBatchLoader(l BatchLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithOutbound sets the outbound protocol queue flushed every frame.
func WithOutbound(q OutboundQueue) Option {
	return func(e *Engine) {
		e.outbound = q
	}
}

// WithEntitySource sets the upstream entity event source.
func WithEntitySource(s EntitySource) Option {
	return func(e *Engine) {
		e.entities = s
	}
}

// WithScriptsLocation sets the default scripts directory that /~/
// include paths expand into.
func WithScriptsLocation(dir string) Option {
	return func(e *Engine) {
		e.scriptsLocation = dir
	}
}

// WithSignals enables or disables host notifications. Default: enabled.
func WithSignals(want bool) Option {
	return func(e *Engine) {
		e.wantSignals = want
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithNow sets the wall clock used for frame timing.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine for the program source labelled fileName.
// The calling goroutine becomes the owner. A nil interpreter selects a
// fresh goja runtime.
func New(in interp.Interpreter, source, fileName string, opts ...Option) *Engine {
	if in == nil {
		in = interp.NewGoja()
	}

	e := &Engine{
		logger:          slog.Default(),
		interp:          in,
		frameRate:       DefaultFrameRate,
		shutdownTimeout: DefaultShutdownTimeout,
		wantSignals:     true,
		now:             time.Now,
		queue:           newTaskQueue(),
		bus:             newBus(),
		frames:          NewClock(),
		timerIDs:        NewClock(),
		abort:           make(chan struct{}),
		loopDone:        make(chan struct{}),
		source:          source,
		entityScripts:   make(map[entity.ID]*entityScript),
		timers:          make(map[TimerID]*timer),
		handlers:        make(map[entity.ID]map[string][]*handler),
		includedURLs:    make(map[string]bool),
	}
	e.stopping.Store(new(atomic.Bool))
	e.fileName.Store(&fileName)

	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil {
		e.cache = scriptcache.New(nil, scriptcache.WithLogger(e.logger))
	}
	if e.loader == nil {
		if c, ok := e.cache.(*scriptcache.Cache); ok {
			e.loader = scriptcache.NewBatchLoader(c)
		} else {
			e.loader = scriptcache.NewBatchLoader(scriptcache.New(nil, scriptcache.WithLogger(e.logger)))
		}
	}
	e.logger = e.logger.With("script", fileName)

	e.owner.Store(goroutineID())
	return e
}

// Interpreter returns the engine's interpreter. Only use it on the owner.
func (e *Engine) Interpreter() interp.Interpreter {
	return e.interp
}

// Filename returns the last path segment of the host program's origin.
func (e *Engine) Filename() string {
	name := e.origin()
	u, err := url.Parse(name)
	if err != nil || u.Path == "" {
		return path.Base(name)
	}
	return path.Base(u.Path)
}

// origin returns the host program's URL or path.
func (e *Engine) origin() string {
	return *e.fileName.Load()
}

// IsRunning reports whether the frame loop is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// IsFinished reports whether the engine has been asked to stop.
func (e *Engine) IsFinished() bool {
	return e.finished.Load()
}

// IsThreaded reports whether the engine runs on its own goroutine.
func (e *Engine) IsThreaded() bool {
	return e.threaded.Load()
}

// FrameCount returns the number of frames the loop has started.
func (e *Engine) FrameCount() int64 {
	return e.frames.Current()
}

// EvaluationsPending returns how many Evaluate calls are in progress.
func (e *Engine) EvaluationsPending() int {
	n, _ := call(e, func() int { return e.evaluatesPending })
	return n
}

func (e *Engine) stoppingAll() bool {
	return e.stopping.Load().Load()
}

// recordUncaught queues err for the end-of-frame report.
func (e *Engine) recordUncaught(err error, entityID entity.ID) {
	se := fromInterpreter(err, entityID)
	e.uncaught = append(e.uncaught, se)
}

// reportUncaught logs and clears recorded uncaught exceptions.
// Returns whether any were recorded.
func (e *Engine) reportUncaught() bool {
	if len(e.uncaught) == 0 {
		return false
	}
	for _, se := range e.uncaught {
		e.logger.Warn("uncaught exception",
			"error", se.Message,
			"origin", se.Origin,
			"line", se.Line,
			"entity_id", se.EntityID,
			"backtrace", se.Backtrace,
		)
	}
	e.uncaught = e.uncaught[:0]
	return true
}
