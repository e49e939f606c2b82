package engine

import (
	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/interp"
)

type handler struct {
	callback interp.Value
	env      Environment
}

// AddEventHandler registers callback for eventName on entityID under the
// environment installed now. The first registration on an engine
// subscribes to every upstream event category and to entity deletion.
func (e *Engine) AddEventHandler(entityID entity.ID, eventName string, callback interp.Value) {
	e.dispatch(func() {
		e.wireUpstream()

		byEvent, ok := e.handlers[entityID]
		if !ok {
			byEvent = make(map[string][]*handler)
			e.handlers[entityID] = byEvent
		}
		byEvent[eventName] = append(byEvent[eventName], &handler{callback: callback, env: e.env})
	})
}

// RemoveEventHandler removes the first registration of callback for
// eventName on entityID. A callback registered twice needs two removals.
func (e *Engine) RemoveEventHandler(entityID entity.ID, eventName string, callback interp.Value) {
	e.dispatch(func() {
		byEvent, ok := e.handlers[entityID]
		if !ok {
			return
		}
		list := byEvent[eventName]
		for i, h := range list {
			if e.interp.Equal(h.callback, callback) {
				byEvent[eventName] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	})
}

// ForwardHandlerCall invokes the handlers for eventName on entityID in
// registration order. Each runs under the environment captured when it
// was added and receives (entityID, args...).
//
// Handlers added during the dispatch wait for the next event. A handler
// removed by an earlier one in the same dispatch is skipped.
func (e *Engine) ForwardHandlerCall(entityID entity.ID, eventName string, args ...any) {
	e.dispatch(func() {
		list := e.handlers[entityID][eventName]
		if len(list) == 0 {
			return
		}
		callArgs := append([]any{entityID}, args...)
		for _, h := range append([]*handler(nil), list...) {
			if !e.handlerRegistered(entityID, eventName, h) {
				continue
			}
			e.callWithEnvironment(h.env, h.callback, nil, callArgs...)
		}
	})
}

func (e *Engine) handlerRegistered(entityID entity.ID, eventName string, h *handler) bool {
	for _, cur := range e.handlers[entityID][eventName] {
		if cur == h {
			return true
		}
	}
	return false
}

// HandlerCount returns the number of handlers for eventName on entityID.
func (e *Engine) HandlerCount(entityID entity.ID, eventName string) int {
	n, _ := call(e, func() int {
		return len(e.handlers[entityID][eventName])
	})
	return n
}

// wireUpstream connects the entity source once.
func (e *Engine) wireUpstream() {
	if e.upstreamWired || e.entities == nil {
		return
	}
	e.upstreamWired = true

	e.upstreamCancels = append(e.upstreamCancels, e.entities.OnDeleting(func(id entity.ID) {
		e.post(func() { delete(e.handlers, id) })
	}))
	for _, name := range entity.EventCategories {
		name := name
		e.upstreamCancels = append(e.upstreamCancels, e.entities.Subscribe(name, func(id entity.ID, args []any) {
			e.post(func() { e.ForwardHandlerCall(id, name, args...) })
		}))
	}
	e.logger.Debug("connected to entity events", "categories", len(entity.EventCategories))
}
