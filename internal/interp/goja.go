package interp

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

// Goja is an Interpreter backed by the goja ECMAScript engine.
type Goja struct {
	vm *goja.Runtime
}

var _ Interpreter = (*Goja)(nil)

// NewGoja creates an interpreter with a fresh goja runtime.
// Go struct fields are exposed to scripts under their json tag names.
func NewGoja() *Goja {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return &Goja{vm: vm}
}

// Runtime exposes the underlying goja runtime for host-specific bindings.
func (g *Goja) Runtime() *goja.Runtime {
	return g.vm
}

func (g *Goja) CheckSyntax(source, origin string) error {
	_, err := parser.ParseFile(nil, origin, source, 0)
	if err == nil {
		return nil
	}
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		return &SyntaxError{
			Message: first.Message,
			Origin:  origin,
			Line:    first.Position.Line,
			Column:  first.Position.Column,
		}
	}
	return &SyntaxError{Message: err.Error(), Origin: origin}
}

func (g *Goja) Evaluate(source, origin string) (Value, error) {
	v, err := g.vm.RunScript(origin, source)
	if err != nil {
		return nil, g.classify(err, origin)
	}
	return v, nil
}

func (g *Goja) IsCallable(v Value) bool {
	jv, ok := v.(goja.Value)
	if !ok {
		return false
	}
	_, ok = goja.AssertFunction(jv)
	return ok
}

func (g *Goja) Call(fn, this Value, args ...any) (Value, error) {
	jfn, ok := fn.(goja.Value)
	if !ok {
		return nil, fmt.Errorf("call: value of type %T is not a script value", fn)
	}
	callable, ok := goja.AssertFunction(jfn)
	if !ok {
		return nil, fmt.Errorf("call: value is not a function")
	}
	res, err := callable(g.js(this), g.jsArgs(args)...)
	if err != nil {
		return nil, g.classify(err, "")
	}
	return res, nil
}

func (g *Goja) Construct(ctor Value, args ...any) (Value, error) {
	obj, err := g.vm.New(g.js(ctor), g.jsArgs(args)...)
	if err != nil {
		return nil, g.classify(err, "")
	}
	return obj, nil
}

func (g *Goja) Property(obj Value, name string) (v Value, err error) {
	o, ok := obj.(*goja.Object)
	if !ok {
		return nil, nil
	}
	defer g.recoverScript(&err)
	p := o.Get(name)
	if p == nil || goja.IsUndefined(p) {
		return nil, nil
	}
	return p, nil
}

// recoverScript turns a script exception raised while Go code reads a
// script value into an error. Other panics are re-raised.
func (g *Goja) recoverScript(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch x := r.(type) {
	case *goja.Exception:
		*err = g.classify(x, "")
	case *goja.InterruptedError:
		*err = g.classify(x, "")
	default:
		panic(r)
	}
}

func (g *Goja) Equal(a, b Value) bool {
	ja, aok := a.(goja.Value)
	jb, bok := b.(goja.Value)
	if !aok || !bok {
		return a == nil && b == nil
	}
	return ja.StrictEquals(jb)
}

func (g *Goja) Describe(v Value) (kind string, text string) {
	var err error
	defer func() {
		if err != nil {
			kind, text = "object", err.Error()
		}
	}()
	defer g.recoverScript(&err)

	jv, ok := v.(goja.Value)
	if !ok || jv == nil || goja.IsUndefined(jv) {
		return "undefined", "undefined"
	}
	if goja.IsNull(jv) {
		return "null", "null"
	}
	if _, ok := goja.AssertFunction(jv); ok {
		return "function", jv.String()
	}
	if _, ok := jv.(*goja.Object); ok {
		return "object", jv.String()
	}
	switch jv.Export().(type) {
	case string:
		return "string", jv.String()
	case bool:
		return "boolean", jv.String()
	case int64, float64:
		return "number", jv.String()
	}
	return "unknown", jv.String()
}

func (g *Goja) ToString(v Value) string {
	jv := g.js(v)
	if goja.IsUndefined(jv) {
		return ""
	}
	return jv.String()
}

func (g *Goja) ToInteger(v Value) int64 {
	return g.js(v).ToInteger()
}

func (g *Goja) Export(v Value) any {
	return g.js(v).Export()
}

func (g *Goja) Define(name string, v any) error {
	if err := g.vm.Set(name, g.js(v)); err != nil {
		return fmt.Errorf("define %q: %w", name, err)
	}
	return nil
}

func (g *Goja) Interrupt(reason string) {
	g.vm.Interrupt(reason)
}

func (g *Goja) ClearInterrupt() {
	g.vm.ClearInterrupt()
}

func (g *Goja) Sandbox() Interpreter {
	return NewGoja()
}

// js converts host data into a goja value.
func (g *Goja) js(v any) goja.Value {
	switch t := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return t
	case HostFunc:
		return g.vm.ToValue(g.native(t))
	case Object:
		obj := g.vm.NewObject()
		for k, x := range t {
			_ = obj.Set(k, g.js(x))
		}
		return obj
	case encoding.TextMarshaler:
		b, err := t.MarshalText()
		if err != nil {
			return goja.Undefined()
		}
		return g.vm.ToValue(string(b))
	case string, bool, int, int32, int64, uint32, uint64, float32, float64:
		return g.vm.ToValue(t)
	case []any:
		items := make([]any, len(t))
		for i, x := range t {
			items[i] = g.js(x)
		}
		return g.vm.NewArray(items...)
	}

	// Structs and maps cross as plain objects keyed by their json names.
	b, err := json.Marshal(v)
	if err != nil {
		return g.vm.ToValue(v)
	}
	var plain any
	if err := json.Unmarshal(b, &plain); err != nil {
		return g.vm.ToValue(v)
	}
	return g.vm.ToValue(plain)
}

func (g *Goja) jsArgs(args []any) []goja.Value {
	out := make([]goja.Value, len(args))
	for i, a := range args {
		out[i] = g.js(a)
	}
	return out
}

// native adapts a HostFunc to goja's native function calling convention.
// Errors surface to scripts as thrown GoError exceptions.
func (g *Goja) native(fn HostFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]Value, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a
		}
		res, err := fn(args)
		if err != nil {
			panic(g.vm.NewGoError(err))
		}
		return g.js(res)
	}
}

var frameLocation = regexp.MustCompile(`:(\d+):(\d+)`)

// classify maps goja failures onto the interp error taxonomy.
func (g *Goja) classify(err error, origin string) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
	}

	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return &SyntaxError{Message: syntax.Message, Origin: origin}
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		ue := &UncaughtError{Origin: origin}
		if val := ex.Value(); val != nil {
			ue.Message = val.String()
		} else {
			ue.Message = ex.Error()
		}
		for _, line := range strings.Split(ex.String(), "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "at ") {
				continue
			}
			ue.Backtrace = append(ue.Backtrace, strings.TrimPrefix(line, "at "))
		}
		if len(ue.Backtrace) > 0 {
			if m := frameLocation.FindStringSubmatch(ue.Backtrace[0]); m != nil {
				ue.Line, _ = strconv.Atoi(m[1])
			}
		}
		return ue
	}

	return err
}
