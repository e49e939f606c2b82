package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/scripthost/internal/config"
	"github.com/roach88/scripthost/internal/engine"
	"github.com/roach88/scripthost/internal/entities"
	"github.com/roach88/scripthost/internal/interp"
	"github.com/roach88/scripthost/internal/scriptcache"
	"github.com/roach88/scripthost/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script>...",
		Short: "Run script programs",
		Long: `Run one host per script, each on its own goroutine.

Scripts are file paths or URLs. Entity scripts listed in the config file
are loaded into the first host. Fetched scripts are cached in the SQLite
database given by --db (or host.cache_db), in memory otherwise.

Runs until every script has stopped or until interrupted.

Example:
  scripthost run ./main.js
  scripthost run --config host.cue --db cache.db ./main.js https://example.com/hud.js`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScripts(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE host configuration")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite script cache (overrides host.cache_db)")

	return cmd
}

// hostSet starts hosts on demand and tracks them until they are done.
type hostSet struct {
	cfg     *config.Config
	cache   *scriptcache.Cache
	hub     *entities.Hub
	manager *engine.Manager
	logger  *slog.Logger
	out     io.Writer
	outMu   sync.Mutex

	// active counts hosts that have not finished; done is signalled when
	// it drops to zero.
	active atomic.Int64
	loads  chan engine.LoadScript
	done   chan struct{}
}

func runScripts(opts *RunOptions, scripts []string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions)

	cfg := config.Default()
	if opts.Config != "" {
		var err error
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}

	dbPath := cfg.Host.CacheDB
	if opts.Database != "" {
		dbPath = opts.Database
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}
	logger.Debug("opening script cache", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	hs := &hostSet{
		cfg:     cfg,
		cache:   scriptcache.New(st, scriptcache.WithLogger(logger)),
		hub:     entities.NewHub(logger),
		manager: engine.NewManager(logger),
		logger:  logger,
		out:     cmd.OutOrStdout(),
		loads:   make(chan engine.LoadScript, 16),
		done:    make(chan struct{}, 1),
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i, script := range scripts {
		e, err := hs.start(ctx, scriptURL(script))
		if err != nil {
			_ = hs.manager.StopAll()
			return WrapExitError(ExitCommandError, "failed to start script", err)
		}
		if i == 0 {
			hs.preloadEntities(e)
		}
	}

	for {
		select {
		case <-hs.done:
			if hs.active.Load() > 0 || len(hs.loads) > 0 {
				continue
			}
			logger.Info("all scripts stopped")
			return hs.manager.StopAll()
		case req := <-hs.loads:
			if hs.manager.IsStopping() {
				continue
			}
			if _, err := hs.start(ctx, req.URL); err != nil {
				logger.Warn("failed to start loaded script", "url", req.URL, "error", err)
			}
		case <-ctx.Done():
			logger.Info("shutting down", "reason", context.Cause(ctx))
			if err := hs.manager.StopAll(); err != nil {
				return WrapExitError(ExitFailure, "scripts did not stop cleanly", err)
			}
			return nil
		}
	}
}

// start fetches the program at u and runs it on a new host.
func (hs *hostSet) start(ctx context.Context, u string) (*engine.Engine, error) {
	source, err := hs.fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	e := engine.New(interp.NewGoja(), source, u,
		engine.WithContentCache(hs.cache),
		engine.WithBatchLoader(scriptcache.NewBatchLoader(hs.cache)),
		engine.WithEntitySource(hs.hub),
		engine.WithFrameRate(hs.cfg.Host.FrameRate),
		engine.WithShutdownTimeout(hs.cfg.Host.ShutdownTimeout),
		engine.WithScriptsLocation(hs.cfg.Host.ScriptsLocation),
		engine.WithLogger(hs.logger),
	)
	engine.Subscribe(e, func(p engine.PrintedMessage) {
		hs.outMu.Lock()
		fmt.Fprintln(hs.out, p.Message)
		hs.outMu.Unlock()
	})
	engine.Subscribe(e, func(req engine.LoadScript) {
		select {
		case hs.loads <- req:
		default:
			hs.logger.Warn("too many pending script loads", "url", req.URL)
		}
	})
	engine.Subscribe(e, func(engine.DoneRunning) {
		if hs.active.Add(-1) == 0 {
			select {
			case hs.done <- struct{}{}:
			default:
			}
		}
	})

	hs.manager.Add(e)
	hs.active.Add(1)
	e.RunInGoroutine()
	hs.logger.Info("script started", "url", u)
	return e, nil
}

// fetch reads a program through the content cache.
func (hs *hostSet) fetch(ctx context.Context, u string) (string, error) {
	type fetched struct {
		contents string
		ok       bool
	}
	ch := make(chan fetched, 1)
	hs.cache.Fetch(u, false, func(_, contents string, _, ok bool) {
		ch <- fetched{contents: contents, ok: ok}
	})

	select {
	case f := <-ch:
		if !f.ok {
			return "", fmt.Errorf("error loading script %s", u)
		}
		return f.contents, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// preloadEntities registers the configured entities and loads their
// scripts into e.
func (hs *hostSet) preloadEntities(e *engine.Engine) {
	for _, es := range hs.cfg.SortedEntities() {
		hs.hub.Add(es.ID, es.Script)
		e.LoadEntityScript(es.ID, es.Script, false)
	}
}

// scriptURL turns a command-line argument into a script URL.
func scriptURL(arg string) string {
	if scriptcache.IsURL(arg) {
		return arg
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		abs = arg
	}
	return scriptcache.FileURL(filepath.ToSlash(abs))
}
