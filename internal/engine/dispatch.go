package engine

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Goroutine affinity.
//
// Every exported operation that reads or mutates host state first checks
// onOwner. Off the owner, operations with a result go through call, which
// queues the work and blocks until the owner has run it; operations without
// a result go through post and return at once. The owner runs queued work
// each frame (drain), or when an embedding program calls ProcessPending.

// goroutineID returns the current goroutine's ID.
// Stack trace starts with "goroutine NNN [".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// onOwner reports whether the caller is the owning goroutine.
// No goroutine owns the host while ownership is being handed over.
func (e *Engine) onOwner() bool {
	id := e.owner.Load()
	return id != 0 && id == goroutineID()
}

// post queues fn for the owner without waiting.
// Returns false, dropping fn, once the frame loop has shut down.
func (e *Engine) post(fn func()) bool {
	if !e.queue.Enqueue(task{fn: fn}) {
		e.logger.Debug("dropping call after shutdown")
		return false
	}
	return true
}

// dispatch runs fn immediately on the owner, otherwise posts it.
func (e *Engine) dispatch(fn func()) {
	if e.onOwner() {
		fn()
		return
	}
	e.post(fn)
}

// call runs fn on the owner and returns its result.
// Off the owner the caller blocks until fn has run; effects of fn are
// visible to the caller when call returns.
func call[T any](e *Engine, fn func() T) (T, error) {
	if e.onOwner() {
		return fn(), nil
	}

	var (
		res T
		err error
		ran bool
	)
	done := make(chan struct{})
	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("panic in cross-goroutine call", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("panic on owner goroutine: %v", r)
			}
			ran = true
		}()
		res = fn()
	}
	if !e.queue.Enqueue(task{fn: wrapped, done: done}) {
		return res, ErrHostStopped
	}
	<-done
	if !ran {
		return res, ErrHostStopped
	}
	return res, err
}

// runTask executes a queued task, containing any panic.
func (e *Engine) runTask(t task) {
	defer func() {
		if t.done != nil {
			close(t.done)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in queued task", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	t.fn()
}

// drain runs the tasks queued at entry. Tasks queued while draining wait
// for the next drain so a self-reposting task cannot starve the frame.
func (e *Engine) drain() int {
	n := e.queue.Len()
	ran := 0
	for ; ran < n; ran++ {
		t, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		e.runTask(t)
	}
	return ran
}

// ProcessPending runs queued cross-goroutine work on the owner and returns
// how many tasks ran. Embedders that never call Run use it to pump the
// host. Calls from other goroutines do nothing.
func (e *Engine) ProcessPending() int {
	if !e.onOwner() {
		return 0
	}
	return e.drain()
}
