package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
)

// errNotFunction is thrown into scripts that pass a non-function callback.
var errNotFunction = errors.New("expected a function")

// installAPI defines the script-facing globals. Owner only.
//
// Globals: print, setInterval, setTimeout, clearInterval, clearTimeout and
// the Script object, which carries the same timer functions plus include,
// load, resolvePath, addEventHandler, removeEventHandler, stop, and the
// update and scriptEnding notifications (connect(fn)).
func (e *Engine) installAPI() error {
	timers := []struct {
		name string
		fn   interp.HostFunc
	}{
		{"print", e.jsPrint},
		{"setInterval", e.jsSetInterval},
		{"setTimeout", e.jsSetTimeout},
		{"clearInterval", e.jsClearTimer},
		{"clearTimeout", e.jsClearTimer},
	}

	script := interp.Object{
		"include":            interp.HostFunc(e.jsInclude),
		"load":               interp.HostFunc(e.jsLoad),
		"resolvePath":        interp.HostFunc(e.jsResolvePath),
		"addEventHandler":    interp.HostFunc(e.jsAddEventHandler),
		"removeEventHandler": interp.HostFunc(e.jsRemoveEventHandler),
		"stop":               interp.HostFunc(e.jsStop),
		"update":             interp.Object{"connect": interp.HostFunc(e.jsConnectUpdate)},
		"scriptEnding":       interp.Object{"connect": interp.HostFunc(e.jsConnectScriptEnding)},
	}

	for _, t := range timers {
		if err := e.interp.Define(t.name, t.fn); err != nil {
			return fmt.Errorf("install script api: %w", err)
		}
		script[t.name] = t.fn
	}
	if err := e.interp.Define("Script", script); err != nil {
		return fmt.Errorf("install script api: %w", err)
	}
	return nil
}

func arg(args []interp.Value, i int) interp.Value {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func (e *Engine) jsPrint(args []interp.Value) (interp.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = e.interp.ToString(a)
	}
	msg := strings.Join(parts, " ")
	e.logger.Debug("script print", "message", msg)
	publish(e, PrintedMessage{Message: msg})
	return nil, nil
}

func (e *Engine) jsSetInterval(args []interp.Value) (interp.Value, error) {
	return e.jsTimer(args, false)
}

func (e *Engine) jsSetTimeout(args []interp.Value) (interp.Value, error) {
	return e.jsTimer(args, true)
}

func (e *Engine) jsTimer(args []interp.Value, singleShot bool) (interp.Value, error) {
	fn := arg(args, 0)
	if !e.interp.IsCallable(fn) {
		return nil, errNotFunction
	}
	if e.stoppingAll() {
		e.logger.Debug("timer while shutting down is ignored")
		return nil, nil
	}
	id := e.createTimer(fn, e.interp.ToInteger(arg(args, 1)), singleShot)
	return int64(id), nil
}

func (e *Engine) jsClearTimer(args []interp.Value) (interp.Value, error) {
	e.StopTimer(TimerID(e.interp.ToInteger(arg(args, 0))))
	return nil, nil
}

func (e *Engine) jsInclude(args []interp.Value) (interp.Value, error) {
	var paths []string
	switch v := e.interp.Export(arg(args, 0)).(type) {
	case string:
		paths = []string{v}
	case []any:
		for _, p := range v {
			paths = append(paths, fmt.Sprint(p))
		}
	default:
		return nil, fmt.Errorf("include expects a path or an array of paths")
	}
	e.include(paths, arg(args, 1))
	return nil, nil
}

func (e *Engine) jsLoad(args []interp.Value) (interp.Value, error) {
	e.Load(e.interp.ToString(arg(args, 0)))
	return nil, nil
}

func (e *Engine) jsResolvePath(args []interp.Value) (interp.Value, error) {
	return e.resolvePath(e.interp.ToString(arg(args, 0))), nil
}

func (e *Engine) handlerArgs(args []interp.Value) (entity.ID, string, interp.Value, error) {
	id, err := entity.Parse(e.interp.ToString(arg(args, 0)))
	if err != nil {
		return entity.Nil, "", nil, err
	}
	fn := arg(args, 2)
	if !e.interp.IsCallable(fn) {
		return entity.Nil, "", nil, errNotFunction
	}
	return id, e.interp.ToString(arg(args, 1)), fn, nil
}

func (e *Engine) jsAddEventHandler(args []interp.Value) (interp.Value, error) {
	id, name, fn, err := e.handlerArgs(args)
	if err != nil {
		return nil, err
	}
	e.AddEventHandler(id, name, fn)
	return nil, nil
}

func (e *Engine) jsRemoveEventHandler(args []interp.Value) (interp.Value, error) {
	id, name, fn, err := e.handlerArgs(args)
	if err != nil {
		return nil, err
	}
	e.RemoveEventHandler(id, name, fn)
	return nil, nil
}

func (e *Engine) jsStop(args []interp.Value) (interp.Value, error) {
	e.Stop()
	return nil, nil
}

func (e *Engine) jsConnectUpdate(args []interp.Value) (interp.Value, error) {
	fn := arg(args, 0)
	if !e.interp.IsCallable(fn) {
		return nil, errNotFunction
	}
	env := e.env
	Subscribe(e, func(u Update) {
		e.callWithEnvironment(env, fn, nil, u.DeltaTime)
	})
	return nil, nil
}

func (e *Engine) jsConnectScriptEnding(args []interp.Value) (interp.Value, error) {
	fn := arg(args, 0)
	if !e.interp.IsCallable(fn) {
		return nil, errNotFunction
	}
	env := e.env
	Subscribe(e, func(ScriptEnding) {
		e.callWithEnvironment(env, fn, nil)
	})
	return nil, nil
}
