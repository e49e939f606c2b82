package engine

import (
	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
)

// Environment is the identity code executes under: the entity it belongs
// to (entity.Nil for the host program) and the trust origin it was loaded
// from.
type Environment struct {
	EntityID    entity.ID
	TrustOrigin string
}

// CurrentEnvironment returns the installed environment.
func (e *Engine) CurrentEnvironment() Environment {
	env, _ := call(e, func() Environment { return e.env })
	return env
}

// WithEnvironment runs body with env installed and restores the previous
// environment afterwards, even when body panics. Nested calls form a stack.
//
// Off the owner, body runs on the owner and the caller blocks until it
// returns.
func (e *Engine) WithEnvironment(entityID entity.ID, trustOrigin string, body func()) {
	_, _ = call(e, func() struct{} {
		e.withEnvironment(Environment{EntityID: entityID, TrustOrigin: trustOrigin}, body)
		return struct{}{}
	})
}

func (e *Engine) withEnvironment(env Environment, body func()) {
	saved := e.env
	e.env = env
	defer func() { e.env = saved }()
	body()
}

// callWithEnvironment invokes a script callback under env. Uncaught
// exceptions are recorded for the end-of-frame report.
func (e *Engine) callWithEnvironment(env Environment, fn, this interp.Value, args ...any) interp.Value {
	var res interp.Value
	e.withEnvironment(env, func() {
		v, err := e.interp.Call(fn, this, args...)
		if err != nil {
			e.recordUncaught(err, env.EntityID)
			return
		}
		res = v
	})
	return res
}
