package interp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoja_CheckSyntax_Valid(t *testing.T) {
	g := NewGoja()
	assert.NoError(t, g.CheckSyntax("var x = 1 + 2;", "ok.js"))
}

func TestGoja_CheckSyntax_Invalid(t *testing.T) {
	g := NewGoja()
	err := g.CheckSyntax("var x = ;\n", "broken.js")
	require.Error(t, err)

	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "broken.js", se.Origin)
	assert.Equal(t, 1, se.Line)
	assert.NotEmpty(t, se.Message)
	assert.Contains(t, se.Error(), "[SyntaxError]")
}

func TestGoja_Evaluate_ReturnsCompletionValue(t *testing.T) {
	g := NewGoja()
	v, err := g.Evaluate("40 + 2", "sum.js")
	require.NoError(t, err)
	assert.Equal(t, int64(42), g.Export(v))
}

func TestGoja_Evaluate_Uncaught(t *testing.T) {
	g := NewGoja()
	src := "function f() {\n  throw new Error('boom');\n}\nf();\n"
	_, err := g.Evaluate(src, "throws.js")
	require.Error(t, err)

	var ue *UncaughtError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Error: boom", ue.Message)
	assert.Equal(t, "throws.js", ue.Origin)
	assert.Equal(t, 2, ue.Line)
	assert.NotEmpty(t, ue.Backtrace)
	assert.Contains(t, ue.Error(), "[Backtrace]")
}

func TestGoja_ConstructAndProperty(t *testing.T) {
	g := NewGoja()
	ctor, err := g.Evaluate("(function() { this.preload = function(id) { return 'hi ' + id; }; this.count = 3; })", "ctor.js")
	require.NoError(t, err)
	require.True(t, g.IsCallable(ctor))

	obj, err := g.Construct(ctor)
	require.NoError(t, err)

	preload, err := g.Property(obj, "preload")
	require.NoError(t, err)
	require.NotNil(t, preload)
	assert.True(t, g.IsCallable(preload))
	count, err := g.Property(obj, "count")
	require.NoError(t, err)
	assert.False(t, g.IsCallable(count))
	missing, err := g.Property(obj, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	res, err := g.Call(preload, obj, "abc")
	require.NoError(t, err)
	assert.Equal(t, "hi abc", g.ToString(res))
}

func TestGoja_Property_NonObject(t *testing.T) {
	g := NewGoja()
	v, err := g.Evaluate("'just a string'", "str.js")
	require.NoError(t, err)
	p, err := g.Property(v, "length")
	require.NoError(t, err)
	assert.Nil(t, p)
	p, err = g.Property(nil, "x")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGoja_Property_ThrowingGetter(t *testing.T) {
	g := NewGoja()
	obj, err := g.Evaluate(`(function() {
	var o = {};
	Object.defineProperty(o, "preload", { get: function() { throw new Error("no preload"); } });
	return o;
})()`, "getter.js")
	require.NoError(t, err)

	var p Value
	require.NotPanics(t, func() { p, err = g.Property(obj, "preload") })
	assert.Nil(t, p)

	var ue *UncaughtError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Error: no preload", ue.Message)
}

func TestGoja_Describe_ThrowingToString(t *testing.T) {
	g := NewGoja()
	obj, err := g.Evaluate(`({ toString: function() { throw 1; } })`, "tostring.js")
	require.NoError(t, err)

	var kind, text string
	require.NotPanics(t, func() { kind, text = g.Describe(obj) })
	assert.Equal(t, "object", kind)
	assert.Contains(t, text, "1")
}

func TestGoja_Describe(t *testing.T) {
	g := NewGoja()

	tests := []struct {
		src      string
		wantType string
	}{
		{"undefined", "undefined"},
		{"null", "null"},
		{"(function(){})", "function"},
		{"({a: 1})", "object"},
		{"'s'", "string"},
		{"12", "number"},
		{"true", "boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v, err := g.Evaluate(tt.src, "describe.js")
			require.NoError(t, err)
			typ, _ := g.Describe(v)
			assert.Equal(t, tt.wantType, typ)
		})
	}
}

func TestGoja_Equal(t *testing.T) {
	g := NewGoja()
	_, err := g.Evaluate("var a = function(){}; var b = function(){};", "eq.js")
	require.NoError(t, err)

	a1, _ := g.Evaluate("a", "eq.js")
	a2, _ := g.Evaluate("a", "eq.js")
	b, _ := g.Evaluate("b", "eq.js")

	assert.True(t, g.Equal(a1, a2))
	assert.False(t, g.Equal(a1, b))
}

func TestGoja_DefineHostObject(t *testing.T) {
	g := NewGoja()
	var got []string
	err := g.Define("Host", Object{
		"record": HostFunc(func(args []Value) (Value, error) {
			for _, a := range args {
				got = append(got, g.ToString(a))
			}
			return len(got), nil
		}),
		"fail": HostFunc(func(args []Value) (Value, error) {
			return nil, errors.New("nope")
		}),
	})
	require.NoError(t, err)

	v, err := g.Evaluate("Host.record('a', 'b')", "host.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, int64(2), g.ToInteger(v))

	_, err = g.Evaluate("Host.fail()", "host.js")
	var ue *UncaughtError
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, ue.Message, "nope")
}

func TestGoja_StructArgumentsUseJSONNames(t *testing.T) {
	g := NewGoja()
	fn, err := g.Evaluate("(function(ev) { return ev.button + ':' + ev.isLeftButton; })", "args.js")
	require.NoError(t, err)

	type mouse struct {
		Button string `json:"button"`
		IsLeft bool   `json:"isLeftButton"`
	}
	res, err := g.Call(fn, nil, mouse{Button: "primary", IsLeft: true})
	require.NoError(t, err)
	assert.Equal(t, "primary:true", g.ToString(res))
}

func TestGoja_Interrupt(t *testing.T) {
	g := NewGoja()
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Interrupt("shutdown")
	}()

	_, err := g.Evaluate("while (true) {}", "spin.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted)

	g.ClearInterrupt()
	v, err := g.Evaluate("1", "after.js")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Export(v))
}

func TestGoja_SandboxIsolated(t *testing.T) {
	g := NewGoja()
	_, err := g.Evaluate("var secret = 1;", "main.js")
	require.NoError(t, err)

	sb := g.Sandbox()
	v, err := sb.Evaluate("typeof secret", "probe.js")
	require.NoError(t, err)
	assert.Equal(t, "undefined", sb.ToString(v))
}
