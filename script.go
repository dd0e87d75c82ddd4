package sideload

import (
	"strings"

	"github.com/dop251/goja"
	"go.trai.ch/zerr"
)

type (
	//ScriptSource is a SymbolSource over a script payload. The program runs
	//once at construction; symbols are the dotted paths of its globals
	//("sdk.Setup"). Functions resolve to Callable, objects to *ScriptHandle.
	//
	//The VM is single-threaded, like everything else around a startup load.
	ScriptSource struct {
		name string
		vm   *goja.Runtime
	}

	//ScriptHandle is the direct handle a script payload yields for an object
	//symbol. Its methods live inside the VM, so reflective fallback reaches
	//them through MethodCaller rather than Go's method set.
	ScriptHandle struct {
		src *ScriptSource
		obj *goja.Object
	}
)

// NewScriptSource compile and run a script payload, keeping its globals
// around for resolution. Compile or throw failures surface as ErrPayload.
func NewScriptSource(name string, src []byte) (*ScriptSource, error) {
	prog, err := goja.Compile(name, string(src), false)
	if err != nil {
		return nil, zerr.Wrap(zerr.With(ErrPayload, "script", name), err.Error())
	}
	vm := goja.New()
	if _, err = vm.RunProgram(prog); err != nil {
		return nil, zerr.Wrap(zerr.With(ErrPayload, "script", name), err.Error())
	}
	return &ScriptSource{name: name, vm: vm}, nil
}

func (s *ScriptSource) Name() string {
	return s.name
}

func (s *ScriptSource) Resolve(symbol string) (any, bool) {
	v := s.lookup(symbol)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return s.callable(fn), true
	}
	if obj, ok := v.(*goja.Object); ok {
		return &ScriptHandle{src: s, obj: obj}, true
	}
	return v.Export(), true
}

// lookup walks a dotted symbol path from the global object.
func (s *ScriptSource) lookup(symbol string) goja.Value {
	var v goja.Value = s.vm.GlobalObject()
	for _, part := range strings.Split(symbol, ".") {
		obj, ok := v.(*goja.Object)
		if !ok {
			return nil
		}
		if v = obj.Get(part); v == nil {
			return nil
		}
	}
	return v
}

// callable bridges a script function into the package's Callable form.
// Script exceptions come back as plain errors, results as exported Go values.
func (s *ScriptSource) callable(fn goja.Callable) Callable {
	return func(args ...any) (any, error) {
		return s.call(fn, goja.Undefined(), args...)
	}
}

func (s *ScriptSource) call(fn goja.Callable, this goja.Value, args ...any) (any, error) {
	in := make([]goja.Value, len(args))
	for i, a := range args {
		in[i] = s.vm.ToValue(a)
	}
	v, err := fn(this, in...)
	if err != nil {
		return nil, err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// CallMethod invokes a member function of the handle's object by name.
func (h *ScriptHandle) CallMethod(method string, args ...any) (any, error) {
	v := h.obj.Get(method)
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, zerr.With(zerr.With(ErrReflection, "script", h.src.name), "method", method)
	}
	return h.src.call(fn, h.obj, args...)
}
