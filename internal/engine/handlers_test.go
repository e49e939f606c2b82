package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scripthost/internal/entities"
	"github.com/roach88/scripthost/internal/entity"
)

func TestForwardHandlerCall_RunsUnderRegistrantEnvironment(t *testing.T) {
	e, _ := newTestEngine(t, "")
	rec := newRecorder(t, e)
	e1, e2 := entity.NewID(), entity.NewID()

	h := mustEval(t, e, `(function(id, other, collision) { record("collision", id, other, collision.type); })`)
	e.WithEnvironment(e1, "file:///entities/e1/script.js", func() {
		e.AddEventHandler(e1, entity.EventCollisionWithEntity, h)
	})

	// e2's code is executing when the collision arrives.
	e.WithEnvironment(e2, "file:///entities/e2/script.js", func() {
		e.ForwardHandlerCall(e1, entity.EventCollisionWithEntity, e2, entity.Collision{Type: entity.CollisionStart, IDA: e1, IDB: e2})
	})

	calls := rec.named("collision")
	require.Len(t, calls, 1)
	assert.Equal(t, e1, calls[0].env.EntityID)
	assert.Equal(t, "file:///entities/e1/script.js", calls[0].env.TrustOrigin)
	assert.Equal(t, []any{e1.String(), e2.String(), "start"}, calls[0].args)
}

func TestForwardHandlerCall_RegistrationOrder(t *testing.T) {
	e, _ := newTestEngine(t, "")
	rec := newRecorder(t, e)
	id := entity.NewID()

	for _, name := range []string{"first", "second", "third"} {
		fn := mustEval(t, e, `(function() { record("`+name+`"); })`)
		e.AddEventHandler(id, entity.EventEnterEntity, fn)
	}
	e.ForwardHandlerCall(id, entity.EventEnterEntity)

	assert.Equal(t, []string{"first", "second", "third"}, rec.names())
}

func TestForwardHandlerCall_SkipsHandlerRemovedMidDispatch(t *testing.T) {
	e, _ := newTestEngine(t, "")
	rec := newRecorder(t, e)
	id := entity.NewID()

	mustEval(t, e, `
		var second = function() { record("second"); };
		var third = function() { record("third"); };
		var first = function(id) {
			record("first");
			Script.removeEventHandler(id, "enterEntity", second);
			Script.addEventHandler(id, "enterEntity", third);
		};
		Script.addEventHandler("`+id.String()+`", "enterEntity", first);
		Script.addEventHandler("`+id.String()+`", "enterEntity", second);
	`)

	e.ForwardHandlerCall(id, entity.EventEnterEntity)
	assert.Equal(t, []string{"first"}, rec.names())
	assert.Equal(t, 2, e.HandlerCount(id, entity.EventEnterEntity))

	e.ForwardHandlerCall(id, entity.EventEnterEntity)
	assert.Equal(t, []string{"first", "first", "third"}, rec.names())
}

func TestForwardHandlerCall_NoHandlers(t *testing.T) {
	e, _ := newTestEngine(t, "")
	rec := newRecorder(t, e)

	e.ForwardHandlerCall(entity.NewID(), entity.EventEnterEntity)
	assert.Empty(t, rec.all())
}

func TestRemoveEventHandler_SecondCallIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, "")
	id := entity.NewID()
	h := mustEval(t, e, `(function() {})`)

	e.AddEventHandler(id, entity.EventClickDownOnEntity, h)
	require.Equal(t, 1, e.HandlerCount(id, entity.EventClickDownOnEntity))

	e.RemoveEventHandler(id, entity.EventClickDownOnEntity, h)
	assert.Equal(t, 0, e.HandlerCount(id, entity.EventClickDownOnEntity))

	assert.NotPanics(t, func() {
		e.RemoveEventHandler(id, entity.EventClickDownOnEntity, h)
	})
	assert.Equal(t, 0, e.HandlerCount(id, entity.EventClickDownOnEntity))
}

func TestRemoveEventHandler_RemovesFirstMatchOnly(t *testing.T) {
	e, _ := newTestEngine(t, "")
	rec := newRecorder(t, e)
	id := entity.NewID()

	h := mustEval(t, e, `(function() { record("h"); })`)
	other := mustEval(t, e, `(function() { record("other"); })`)

	e.AddEventHandler(id, entity.EventHoverOverEntity, h)
	e.AddEventHandler(id, entity.EventHoverOverEntity, other)
	e.AddEventHandler(id, entity.EventHoverOverEntity, h)

	e.RemoveEventHandler(id, entity.EventHoverOverEntity, h)
	e.ForwardHandlerCall(id, entity.EventHoverOverEntity)
	assert.Equal(t, []string{"other", "h"}, rec.names())

	e.RemoveEventHandler(id, entity.EventHoverOverEntity, h)
	assert.Equal(t, 1, e.HandlerCount(id, entity.EventHoverOverEntity))
}

func TestRemoveEventHandler_UnknownEntity(t *testing.T) {
	e, _ := newTestEngine(t, "")
	h := mustEval(t, e, `(function() {})`)
	assert.NotPanics(t, func() {
		e.RemoveEventHandler(entity.NewID(), entity.EventEnterEntity, h)
	})
}

func TestEventHandlers_UpstreamWiring(t *testing.T) {
	hub := entities.NewHub(quietLogger())
	e, _ := newTestEngine(t, "", WithEntitySource(hub))
	rec := newRecorder(t, e)
	id := entity.NewID()

	// Nothing is wired before the first handler.
	require.NoError(t, hub.Emit(entity.EventMousePressOnEntity, id, entity.MouseEvent{X: 1}))
	assert.Equal(t, 0, e.ProcessPending())

	h := mustEval(t, e, `(function(id, ev) { record("press", id, ev.x, ev.isLeftButton); })`)
	e.AddEventHandler(id, entity.EventMousePressOnEntity, h)

	require.NoError(t, hub.Emit(entity.EventMousePressOnEntity, id, entity.MouseEvent{X: 7, IsLeft: true}))
	pump(t, e, func() bool { return rec.count("press") == 1 })
	assert.Equal(t, []any{id.String(), int64(7), true}, rec.named("press")[0].args)

	// A second handler does not wire again.
	e.AddEventHandler(id, entity.EventMousePressOnEntity, h)
	assert.Len(t, e.upstreamCancels, len(entity.EventCategories)+1)
}

func TestEventHandlers_DeletingEntityPurges(t *testing.T) {
	hub := entities.NewHub(quietLogger())
	e, _ := newTestEngine(t, "", WithEntitySource(hub))
	doomed, kept := entity.NewID(), entity.NewID()

	h := mustEval(t, e, `(function() {})`)
	e.AddEventHandler(doomed, entity.EventEnterEntity, h)
	e.AddEventHandler(doomed, entity.EventLeaveEntity, h)
	e.AddEventHandler(kept, entity.EventEnterEntity, h)

	hub.Delete(doomed)
	pump(t, e, func() bool { return e.HandlerCount(doomed, entity.EventEnterEntity) == 0 })

	assert.Equal(t, 0, e.HandlerCount(doomed, entity.EventLeaveEntity))
	assert.Equal(t, 1, e.HandlerCount(kept, entity.EventEnterEntity))
}

func TestScriptAddEventHandler(t *testing.T) {
	e, _ := newTestEngine(t, "")
	rec := newRecorder(t, e)
	id := entity.NewID()

	mustEval(t, e, `
		var onEnter = function(id) { record("enter", id); };
		Script.addEventHandler("`+id.String()+`", "enterEntity", onEnter);
	`)
	e.ForwardHandlerCall(id, entity.EventEnterEntity)
	assert.Equal(t, []any{id.String()}, rec.named("enter")[0].args)

	mustEval(t, e, `Script.removeEventHandler("`+id.String()+`", "enterEntity", onEnter);`)
	assert.Equal(t, 0, e.HandlerCount(id, entity.EventEnterEntity))

	_, err := e.Evaluate(`Script.addEventHandler("not-an-id", "enterEntity", onEnter);`, "bad.js")
	assert.True(t, IsUncaughtError(err))
}
