package engine

import (
	"time"

	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
)

// TimerID identifies a script timer. Zero is never a valid ID.
type TimerID int64

type timer struct {
	callback   interp.Value
	env        Environment
	singleShot bool
	interval   time.Duration
	t          *time.Timer
}

// SetInterval calls callback every intervalMS milliseconds under the
// environment installed now. Returns 0, creating nothing, while all
// scripts are stopping.
func (e *Engine) SetInterval(callback interp.Value, intervalMS int64) TimerID {
	id, _ := call(e, func() TimerID {
		if e.stoppingAll() {
			e.logger.Debug("setInterval while shutting down is ignored")
			return 0
		}
		return e.createTimer(callback, intervalMS, false)
	})
	return id
}

// SetTimeout calls callback once after timeoutMS milliseconds.
// Returns 0, creating nothing, while all scripts are stopping.
func (e *Engine) SetTimeout(callback interp.Value, timeoutMS int64) TimerID {
	id, _ := call(e, func() TimerID {
		if e.stoppingAll() {
			e.logger.Debug("setTimeout while shutting down is ignored")
			return 0
		}
		return e.createTimer(callback, timeoutMS, true)
	})
	return id
}

func (e *Engine) createTimer(callback interp.Value, ms int64, singleShot bool) TimerID {
	if ms < 0 {
		ms = 0
	}
	id := TimerID(e.timerIDs.Next())
	tm := &timer{
		callback:   callback,
		env:        e.env,
		singleShot: singleShot,
		interval:   time.Duration(ms) * time.Millisecond,
	}
	e.timers[id] = tm
	tm.t = time.AfterFunc(tm.interval, func() {
		e.post(func() { e.fireTimer(id) })
	})
	return id
}

// fireTimer runs on the owner when a platform timer expires.
// A cancelled timer is inert even if its expiry was already queued.
func (e *Engine) fireTimer(id TimerID) {
	tm, ok := e.timers[id]
	if !ok {
		return
	}
	if tm.singleShot {
		// Remove first: the callback may create a timer of its own.
		delete(e.timers, id)
		tm.t.Stop()
	} else {
		tm.t.Reset(tm.interval)
	}
	e.callWithEnvironment(tm.env, tm.callback, tm.callback)
}

// StopTimer cancels a timer. Unknown IDs are ignored.
func (e *Engine) StopTimer(id TimerID) {
	e.dispatch(func() {
		if tm, ok := e.timers[id]; ok {
			tm.t.Stop()
			delete(e.timers, id)
		}
	})
}

// StopAllTimers cancels every timer.
func (e *Engine) StopAllTimers() {
	e.dispatch(func() {
		e.stopTimersMatching(func(*timer) bool { return true })
	})
}

// StopAllTimersForEntityScript cancels the timers created by entityID's
// code, leaving other timers running.
func (e *Engine) StopAllTimersForEntityScript(entityID entity.ID) {
	e.dispatch(func() {
		e.stopTimersMatching(func(tm *timer) bool { return tm.env.EntityID == entityID })
	})
}

// stopTimersMatching collects the matching IDs before removing any.
func (e *Engine) stopTimersMatching(match func(*timer) bool) {
	var ids []TimerID
	for id, tm := range e.timers {
		if match(tm) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		e.timers[id].t.Stop()
		delete(e.timers, id)
	}
}

// HasTimer reports whether id is an active timer.
func (e *Engine) HasTimer(id TimerID) bool {
	ok, _ := call(e, func() bool {
		_, ok := e.timers[id]
		return ok
	})
	return ok
}

// TimerCount returns the number of active timers.
func (e *Engine) TimerCount() int {
	n, _ := call(e, func() int { return len(e.timers) })
	return n
}
