package engine

import (
	"time"

	"github.com/roach88/scripthost/internal/interp"
)

// Init installs the script-facing API into the interpreter.
// Idempotent; Run calls it when needed.
func (e *Engine) Init() error {
	err, callErr := call(e, func() error {
		if e.initialized {
			return nil
		}
		e.initialized = true
		return e.installAPI()
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// LoadURL fetches the host program source through the content cache.
// With reload set, the cached copy is evicted first and Script.load
// requests from the program are reported as reloads. Ignored while running.
//
// Publishes ScriptLoaded or ErrorLoadingScript when the fetch completes.
func (e *Engine) LoadURL(scriptURL string, reload bool) {
	e.dispatch(func() {
		if e.running.Load() {
			return
		}
		u := e.expandScriptURL(scriptURL)
		e.fileName.Store(&u)
		e.reloading = reload
		if reload {
			e.cache.Delete(u)
		}
		e.cache.Fetch(u, reload, func(scriptOrURL, contents string, isURL, ok bool) {
			e.dispatch(func() {
				if !ok {
					e.logger.Warn("error loading script", "url", scriptOrURL)
					publish(e, ErrorLoadingScript{URL: scriptOrURL})
					return
				}
				e.source = contents
				publish(e, ScriptLoaded{URL: scriptOrURL})
			})
		})
	})
}

// Run evaluates the host program and runs the frame loop until Stop.
// The calling goroutine owns the engine until Run returns.
//
// Returns ErrAlreadyRunning if a loop is active, or ErrHostStopped if
// all scripts are stopping or the engine already ran.
func (e *Engine) Run() error {
	if e.stoppingAll() || e.queue.Closed() {
		if !e.running.Load() {
			// No loop will run, so release queued callers and waiters.
			e.queue.Close()
			e.closeLoopDone()
		}
		return ErrHostStopped
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.owner.Store(goroutineID())
	defer e.closeLoopDone()

	if !e.initialized {
		e.initialized = true
		if err := e.installAPI(); err != nil {
			e.logger.Error("failed to install script api", "error", err)
		}
	}

	e.logger.Info("script host starting", "frame_rate", e.frameRate)
	publish(e, RunningStateChanged{Running: true, Finished: e.finished.Load()})

	if _, err := e.evaluate(e.source, e.origin()); err != nil {
		e.logger.Debug("host program evaluation failed", "error", err)
	}

	e.frameLoop()
	e.exit()
	return nil
}

// RunInGoroutine hands the engine to a new goroutine and runs it there.
// Calling it more than once is ignored with a warning.
func (e *Engine) RunInGoroutine() {
	if !e.threaded.CompareAndSwap(false, true) {
		e.logger.Warn("script host already running in goroutine")
		return
	}
	// Nobody owns the engine until the new goroutine claims it; calls in
	// between are queued for it.
	e.owner.Store(0)
	go func() {
		if err := e.Run(); err != nil {
			e.logger.Warn("script host did not run", "error", err)
		}
	}()
}

// Stop asks the frame loop to exit. Safe from any goroutine; only the
// first call has an effect.
func (e *Engine) Stop() {
	if e.finished.Load() {
		return
	}
	e.dispatch(func() {
		if e.finished.Swap(true) {
			return
		}
		e.logger.Debug("script host stopping")
		publish(e, RunningStateChanged{Running: e.running.Load(), Finished: true})
	})
}

// WaitTillDoneRunning waits for a loop running on another goroutine to
// exit. After the shutdown timeout the current evaluation is interrupted
// and the loop is forced out; the returned error then has code
// SHUTDOWN_TIMEOUT.
func (e *Engine) WaitTillDoneRunning() error {
	if e.onOwner() {
		return nil
	}
	// A handed-off engine may not have reached Run yet.
	if !e.threaded.Load() && !e.running.Load() {
		return nil
	}

	timer := time.NewTimer(e.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-e.loopDone:
		return nil
	case <-timer.C:
	}

	e.logger.Warn("script host did not stop in time, aborting", "timeout", e.shutdownTimeout)
	e.interp.Interrupt("script host shutdown timeout")
	e.forceExit()

	timer.Reset(e.shutdownTimeout)
	select {
	case <-e.loopDone:
	case <-timer.C:
		e.logger.Error("script host still running after abort")
	}
	return NewShutdownTimeoutError(e.origin(), e.shutdownTimeout.String())
}

func (e *Engine) closeLoopDone() {
	e.loopOnce.Do(func() { close(e.loopDone) })
}

// forceExit makes the frame loop exit at its next check.
func (e *Engine) forceExit() {
	e.finished.Store(true)
	e.abortMu.Do(func() { close(e.abort) })
}

// framePeriod is one frame at the target rate, rounded up so the loop
// never runs faster than asked.
func (e *Engine) framePeriod() time.Duration {
	return time.Second/time.Duration(e.frameRate) + time.Microsecond
}

// frameLoop runs frames until finished. Each frame sleeps until its
// boundary (start + n*period), drains queued work, flushes the outbound
// queue, then publishes Update.
func (e *Engine) frameLoop() {
	start := e.now()
	period := e.framePeriod()
	lastUpdate := start

	for !e.finished.Load() {
		frame := e.frames.Next() - 1
		if !e.sleepUntil(start.Add(time.Duration(frame) * period)) {
			break
		}
		if e.finished.Load() {
			break
		}

		e.drain()
		if e.finished.Load() {
			break
		}

		if e.outbound != nil && e.outbound.HasPending() {
			e.outbound.Flush()
		}

		now := e.now()
		// Clock may have been set back.
		if lastUpdate.Before(now) {
			dt := now.Sub(lastUpdate).Seconds()
			if !e.finished.Load() {
				publish(e, Update{DeltaTime: dt})
			}
		}
		lastUpdate = now

		e.reportUncaught()
	}
}

// sleepUntil blocks until deadline. Returns false if the loop was aborted.
func (e *Engine) sleepUntil(deadline time.Time) bool {
	d := deadline.Sub(e.now())
	if d <= 0 {
		select {
		case <-e.abort:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-e.abort:
		return false
	}
}

// exit runs the shutdown sequence once the loop has stopped.
func (e *Engine) exit() {
	select {
	case <-e.abort:
		e.interp.ClearInterrupt()
	default:
	}

	e.StopAllTimers()
	publish(e, ScriptEnding{})

	if e.outbound != nil && e.outbound.HasPending() {
		e.outbound.Flush()
	}
	if e.outbound != nil && !e.outbound.IsBackgroundWorker() {
		polls := 0
		for e.outbound.HasPending() && polls < maxExitFlushPolls {
			e.outbound.Flush()
			e.drain()
			polls++
		}
		if e.outbound.HasPending() {
			e.logger.Warn("outbound queue not drained at exit", "polls", polls)
		}
	}

	e.reportUncaught()
	publish(e, Finished{Filename: e.origin()})

	e.running.Store(false)
	publish(e, RunningStateChanged{Running: false, Finished: true})
	publish(e, DoneRunning{})

	for _, cancel := range e.upstreamCancels {
		cancel()
	}
	e.upstreamCancels = nil
	e.queue.Close()

	e.logger.Info("script host stopped", "frames", e.frames.Current())
}

// Evaluate runs source labelled origin on the owner and returns its
// completion value. Returns a *ScriptError for syntax errors and uncaught
// exceptions, or ErrHostStopped while all scripts are stopping.
//
// Publishes EvaluationFinished.
func (e *Engine) Evaluate(source, origin string) (interp.Value, error) {
	type result struct {
		v   interp.Value
		err error
	}
	r, err := call(e, func() result {
		v, err := e.evaluate(source, origin)
		return result{v, err}
	})
	if err != nil {
		return nil, err
	}
	return r.v, r.err
}

func (e *Engine) evaluate(source, origin string) (interp.Value, error) {
	if e.stoppingAll() {
		return nil, ErrHostStopped
	}

	if err := e.interp.CheckSyntax(source, origin); err != nil {
		se := fromInterpreter(err, e.env.EntityID)
		e.logger.Warn("syntax error", "error", se.Message, "origin", origin, "line", se.Line, "column", se.Column)
		return nil, se
	}

	e.evaluatesPending++
	v, err := e.interp.Evaluate(source, origin)
	e.evaluatesPending--

	var se *ScriptError
	if err != nil {
		se = fromInterpreter(err, e.env.EntityID)
		e.uncaught = append(e.uncaught, se)
		e.reportUncaught()
	}

	if se != nil {
		publish(e, EvaluationFinished{Origin: origin, Err: se})
		return nil, se
	}
	publish(e, EvaluationFinished{Origin: origin})
	return v, nil
}
