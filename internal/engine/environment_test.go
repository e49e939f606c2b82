package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scripthost/internal/entity"
)

func TestWithEnvironment_NestedRestore(t *testing.T) {
	e, _ := newTestEngine(t, "")
	a, b, c := entity.NewID(), entity.NewID(), entity.NewID()

	assert.Equal(t, Environment{}, e.CurrentEnvironment())

	e.WithEnvironment(a, "file:///a/", func() {
		assert.Equal(t, Environment{a, "file:///a/"}, e.CurrentEnvironment())
		e.WithEnvironment(b, "file:///b/", func() {
			assert.Equal(t, Environment{b, "file:///b/"}, e.CurrentEnvironment())
			e.WithEnvironment(c, "http://c/", func() {
				assert.Equal(t, Environment{c, "http://c/"}, e.CurrentEnvironment())
			})
			assert.Equal(t, Environment{b, "file:///b/"}, e.CurrentEnvironment())
		})
		assert.Equal(t, Environment{a, "file:///a/"}, e.CurrentEnvironment())
	})
	assert.Equal(t, Environment{}, e.CurrentEnvironment())
}

func TestWithEnvironment_RestoresOnPanic(t *testing.T) {
	e, _ := newTestEngine(t, "")
	outer := entity.NewID()

	e.WithEnvironment(outer, "file:///outer/", func() {
		assert.Panics(t, func() {
			e.WithEnvironment(entity.NewID(), "file:///inner/", func() {
				panic("body failed")
			})
		})
		assert.Equal(t, Environment{outer, "file:///outer/"}, e.CurrentEnvironment())
	})
	assert.Equal(t, Environment{}, e.CurrentEnvironment())
}

func TestWithEnvironment_ScriptCallbacksNest(t *testing.T) {
	e, _ := newTestEngine(t, "")
	rec := newRecorder(t, e)
	a, b := entity.NewID(), entity.NewID()

	mustEval(t, e, `
		function inner() { record("inner"); }
		function outer() { record("before"); nest(); record("after"); }
	`)
	inner := mustEval(t, e, "inner")
	outer := mustEval(t, e, "outer")

	require.NoError(t, e.interp.Define("nest", hostFunc(func() {
		e.callWithEnvironment(Environment{b, "file:///b/"}, inner, nil)
	})))

	e.callWithEnvironment(Environment{a, "file:///a/"}, outer, nil)

	calls := rec.all()
	require.Len(t, calls, 3)
	assert.Equal(t, a, calls[0].env.EntityID)
	assert.Equal(t, b, calls[1].env.EntityID)
	assert.Equal(t, "file:///b/", calls[1].env.TrustOrigin)
	assert.Equal(t, a, calls[2].env.EntityID)
	assert.Equal(t, "file:///a/", calls[2].env.TrustOrigin)
	assert.Equal(t, Environment{}, e.CurrentEnvironment())
}

func TestCallWithEnvironment_RecordsUncaught(t *testing.T) {
	e, _ := newTestEngine(t, "")
	id := entity.NewID()
	fn := mustEval(t, e, "(function() { throw new Error('bad handler'); })")

	e.callWithEnvironment(Environment{EntityID: id}, fn, nil)

	require.Len(t, e.uncaught, 1)
	assert.Equal(t, ErrCodeUncaught, e.uncaught[0].Code)
	assert.Equal(t, id, e.uncaught[0].EntityID)
	assert.Contains(t, e.uncaught[0].Message, "bad handler")

	assert.True(t, e.reportUncaught())
	assert.False(t, e.reportUncaught())
}
