package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCache_Fetch(t *testing.T) {
	c := NewMapCache(map[string]string{"http://h/a.js": "A"})

	var ok bool
	var contents string
	c.Fetch("http://h/a.js", false, func(_, body string, _, success bool) {
		contents, ok = body, success
	})
	require.True(t, ok)
	assert.Equal(t, "A", contents)
	assert.Equal(t, 1, c.Fetches("http://h/a.js"))

	c.Fetch("http://h/missing.js", false, func(_, _ string, _, success bool) { ok = success })
	assert.False(t, ok)
}

func TestMapCache_InlineSource(t *testing.T) {
	c := NewMapCache(nil)
	var isURL bool
	var contents string
	c.Fetch("print(1)", false, func(_, body string, url, _ bool) { contents, isURL = body, url })
	assert.False(t, isURL)
	assert.Equal(t, "print(1)", contents)
}

func TestMapCache_BadSkipsFetch(t *testing.T) {
	c := NewMapCache(map[string]string{"http://h/a.js": "A"})
	c.MarkBad("http://h/a.js")
	assert.True(t, c.IsBad("http://h/a.js"))

	var ok bool
	c.Fetch("http://h/a.js", false, func(_, _ string, _, success bool) { ok = success })
	assert.False(t, ok)
	assert.Equal(t, 0, c.Fetches("http://h/a.js"))

	c.Fetch("http://h/a.js", true, func(_, _ string, _, success bool) { ok = success })
	assert.True(t, ok)
}

func TestMapCache_Start(t *testing.T) {
	c := NewMapCache(map[string]string{"http://h/a.js": "A", "http://h/b.js": "B"})
	var got map[string]string
	c.Start([]string{"http://h/a.js", "http://h/b.js", "http://h/c.js"}, func(m map[string]string) { got = m })
	assert.Equal(t, map[string]string{"http://h/a.js": "A", "http://h/b.js": "B"}, got)

	c.Delete("http://h/a.js")
	assert.Equal(t, []string{"http://h/a.js"}, c.Deleted())
}
