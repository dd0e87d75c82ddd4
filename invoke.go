package sideload

import (
	"fmt"
	"reflect"

	"go.trai.ch/zerr"
)

type (
	//Resolution is how a module entry point was resolved. The facade builds
	//one and dispatches on it explicitly, so the two invocation paths stay
	//testable on their own instead of hiding behind exception flow.
	Resolution interface {
		isResolution()
	}

	//Direct is a host-visible callable obtained through normal resolution.
	Direct struct {
		Fn Callable
	}

	//Reflective is a direct handle retained from the isolated loader, to be
	//driven by method name and signature when host-side resolution is
	//unavailable.
	Reflective struct {
		Handle   any
		Method   string
		ArgTypes []reflect.Type
	}

	//MethodCaller lets a source expose symbol objects whose methods are
	//dispatched dynamically rather than through Go's method set. Script
	//payload handles implement it.
	MethodCaller interface {
		CallMethod(method string, args ...any) (any, error)
	}
)

func (Direct) isResolution()     {}
func (Reflective) isResolution() {}

// Dispatch invokes a Resolution with args.
func Dispatch(res Resolution, args ...any) (any, error) {
	switch r := res.(type) {
	case Direct:
		return r.Fn(args...)
	case Reflective:
		return Invoke(r.Handle, r.Method, r.ArgTypes, args...)
	default:
		return nil, zerr.With(ErrReflection, "resolution", fmt.Sprintf("%T", res))
	}
}

// Invoke calls a method on handle reflectively: by name through the handle's
// Go method set, or through MethodCaller when the handle dispatches its own
// methods. The method's signature is validated against argTypes before the
// call; a trailing error result is unwrapped; panics inside the call are
// recovered. Every failure mode surfaces as ErrReflection.
func Invoke(handle any, method string, argTypes []reflect.Type, args ...any) (res any, err error) {
	if handle == nil {
		return nil, zerr.With(ErrReflection, "method", method)
	}
	defer func() {
		if r := recover(); r != nil {
			err = zerr.With(zerr.With(ErrReflection, "method", method), "panic", fmt.Sprint(r))
		}
	}()
	m := reflect.ValueOf(handle).MethodByName(method)
	if !m.IsValid() {
		if c, ok := handle.(MethodCaller); ok {
			res, err = c.CallMethod(method, args...)
			if err != nil {
				return nil, zerr.Wrap(zerr.With(ErrReflection, "method", method), err.Error())
			}
			return res, nil
		}
		e := zerr.With(ErrReflection, "method", method)
		return nil, zerr.With(e, "handle", fmt.Sprintf("%T", handle))
	}
	mt := m.Type()
	if mt.NumIn() != len(argTypes) || len(args) != len(argTypes) {
		e := zerr.With(ErrReflection, "method", method)
		return nil, zerr.With(e, "arity", fmt.Sprintf("want %d got %d", mt.NumIn(), len(argTypes)))
	}
	in := make([]reflect.Value, len(args))
	for i, t := range argTypes {
		if !t.AssignableTo(mt.In(i)) {
			e := zerr.With(zerr.With(ErrReflection, "method", method), "arg", fmt.Sprint(i))
			return nil, zerr.With(e, "signature", fmt.Sprintf("want %s got %s", mt.In(i), t))
		}
		if args[i] == nil {
			in[i] = reflect.Zero(t)
		} else {
			in[i] = reflect.ValueOf(args[i])
		}
	}
	out := m.Call(in)
	return unwrapOutputs(method, out)
}

// unwrapOutputs maps reflect call results to (value, error): a trailing
// error return is split off, multiple values beyond that are not expected
// from module entry points.
func unwrapOutputs(method string, out []reflect.Value) (any, error) {
	n := len(out)
	if n > 0 {
		if last := out[n-1]; last.Type() == errType {
			if !last.IsNil() {
				e := last.Interface().(error)
				return nil, zerr.Wrap(zerr.With(ErrReflection, "method", method), e.Error())
			}
			out = out[:n-1]
		}
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		vs := make([]any, len(out))
		for i, v := range out {
			vs[i] = v.Interface()
		}
		return vs, nil
	}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()
