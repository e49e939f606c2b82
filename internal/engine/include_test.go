package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scripthost/internal/entity"
)

func TestResolvePath(t *testing.T) {
	e, _ := newTestEngine(t, "")

	tests := []struct {
		name    string
		include string
		want    string
	}{
		{"sibling", "lib.js", "file:///scripts/lib.js"},
		{"subdirectory", "lib/a.js", "file:///scripts/lib/a.js"},
		{"parent directory", "../shared/b.js", "file:///shared/b.js"},
		{"absolute url", "https://cdn.example/x.js", "https://cdn.example/x.js"},
		{"default location", "/~/util.js", "file:///opt/scripthost/scripts/util.js"},
		{"default location file url", "file:///~/system/c.js", "file:///opt/scripthost/scripts/system/c.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ResolvePath(tt.include))
		})
	}
}

func TestResolvePath_RelativeToIncludingProgram(t *testing.T) {
	e, _ := newTestEngine(t, "")
	e.parentURL = "http://assets.example/pkg/main.js"
	assert.Equal(t, "http://assets.example/pkg/helper.js", e.ResolvePath("helper.js"))
}

func TestInclude_RunsInOrder(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///scripts/lib/a.js", `record("a");`)
	cache.Put("file:///scripts/lib/b.js", `record("b");`)

	e.Include([]string{"lib/a.js", "lib/b.js"}, nil)

	assert.Equal(t, []string{"a", "b"}, rec.names())
}

func TestInclude_SkipsPreviouslyIncluded(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	u := "file:///scripts/lib/a.js"
	cache.Put(u, `record("a");`)

	e.Include([]string{"lib/a.js"}, nil)
	e.Include([]string{"lib/a.js", "./lib/a.js"}, nil)

	assert.Equal(t, 1, rec.count("a"))
	assert.Equal(t, 1, cache.Fetches(u))
}

func TestInclude_MissingFileSkipped(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///scripts/b.js", `record("b");`)

	e.Include([]string{"missing.js", "b.js"}, nil)

	assert.Equal(t, []string{"b"}, rec.names())
}

func TestInclude_UncaughtErrorDoesNotStopLaterIncludes(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///scripts/bad.js", `throw new Error("nope");`)
	cache.Put("file:///scripts/good.js", `record("good");`)

	e.Include([]string{"bad.js", "good.js"}, nil)

	assert.Equal(t, []string{"good"}, rec.names())
}

func TestInclude_RunsUnderCallerEnvironment(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///scripts/a.js", `record("a");`)
	id := entity.NewID()

	e.WithEnvironment(id, "", func() {
		e.Include([]string{"a.js"}, nil)
	})

	calls := rec.named("a")
	require.Len(t, calls, 1)
	assert.Equal(t, id, calls[0].env.EntityID)
	assert.Equal(t, Environment{}, e.CurrentEnvironment())
}

func TestInclude_NestedResolvesAgainstIncludingFile(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///scripts/lib/a.js", `
		Script.include("b.js");
		record("a", Script.resolvePath("c.js"));
	`)
	cache.Put("file:///scripts/lib/b.js", `record("b");`)

	mustEval(t, e, `Script.include("lib/a.js");`)

	assert.Equal(t, []string{"b", "a"}, rec.names())
	assert.Equal(t, []any{"file:///scripts/lib/c.js"}, rec.named("a")[0].args)
	assert.Empty(t, e.parentURL)
}

func TestInclude_CallbackRunsAfterPrograms(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///scripts/a.js", `record("a");`)

	mustEval(t, e, `Script.include(["a.js"], function() { record("done"); });`)
	pump(t, e, func() bool { return rec.count("done") == 1 })

	assert.Equal(t, []string{"a", "done"}, rec.names())
}

func TestInclude_DefaultLocation(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///opt/scripthost/scripts/util.js", `record("util");`)
	cache.Put("file:///opt/etc/passwd", `record("escaped");`)

	e.Include([]string{"/~/util.js", "/~/../../etc/passwd"}, nil)

	assert.Equal(t, []string{"util"}, rec.names())
}

func TestInclude_TrustBoundary(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		path   string
		want   bool
	}{
		{"no origin", "", "file:///anywhere/x.js", true},
		{"remote origin may include remote", "http://remote.example/main.js", "http://remote.example/x.js", true},
		{"remote origin may not include files", "http://remote.example/main.js", "file:///scripts/x.js", false},
		{"file origin includes its directory", "file:///home/u/app/main.js", "file:///home/u/app/lib/x.js", true},
		{"file origin outside its directory", "file:///home/u/app/main.js", "file:///etc/x.js", false},
		{"file origin includes default location", "file:///home/u/app/main.js", "/~/util.js", true},
		{"remote origin may not include default location", "http://remote.example/main.js", "/~/util.js", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, cache := newTestEngine(t, "")
			rec := newRecorder(t, e)
			target := e.ResolvePath(tt.path)
			cache.Put(target, `record("included");`)

			e.WithEnvironment(entity.NewID(), tt.origin, func() {
				e.Include([]string{tt.path}, nil)
			})

			if tt.want {
				assert.Equal(t, 1, rec.count("included"))
			} else {
				assert.Zero(t, rec.count("included"))
				assert.Zero(t, cache.Fetches(target))
			}
		})
	}
}

func TestCheckTrust_Error(t *testing.T) {
	e, _ := newTestEngine(t, "")
	e.env = Environment{TrustOrigin: "https://remote.example/main.js"}

	err := e.checkTrust("file:///etc/x.js")
	require.Error(t, err)
	assert.True(t, IsTrustBoundaryError(err))
}

func TestInclude_IgnoredWhileStopping(t *testing.T) {
	e, cache := newTestEngine(t, "")
	rec := newRecorder(t, e)
	cache.Put("file:///scripts/a.js", `record("a");`)

	m := NewManager(quietLogger())
	m.Add(e)
	require.NoError(t, m.StopAll())

	e.Include([]string{"a.js"}, nil)
	assert.Empty(t, rec.all())
}

func TestLoad(t *testing.T) {
	e, cache := newTestEngine(t, "")
	var got []LoadScript
	Subscribe(e, func(ls LoadScript) { got = append(got, ls) })

	e.Load("other.js")

	require.Len(t, got, 1)
	assert.Equal(t, LoadScript{URL: "file:///scripts/other.js"}, got[0])
	assert.Empty(t, cache.Deleted())
}

func TestLoad_ReloadEvictsTarget(t *testing.T) {
	e, cache := newTestEngine(t, "")
	cache.Put("file:///scripts/main.js", `Script.load("other.js");`)
	var got []LoadScript
	Subscribe(e, func(ls LoadScript) { got = append(got, ls) })

	e.LoadURL("file:///scripts/main.js", true)
	e.Load("other.js")

	require.Len(t, got, 1)
	assert.True(t, got[0].Reloading)
	assert.Equal(t, []string{"file:///scripts/main.js", "file:///scripts/other.js"}, cache.Deleted())
}

func TestLoad_IgnoredFromEntityScript(t *testing.T) {
	e, _ := newTestEngine(t, "")
	var got []LoadScript
	Subscribe(e, func(ls LoadScript) { got = append(got, ls) })

	e.WithEnvironment(entity.NewID(), "", func() { e.Load("other.js") })

	assert.Empty(t, got)
}
