package sideload

import (
	"fmt"
	"reflect"

	"go.trai.ch/zerr"
)

// MergeIntoHost splices the isolated loader's search path in front of the
// host loader's own, so the host resolves the payload's symbols before any
// same-named entry of its original path. All-or-nothing: on any error the
// host's search path is left untouched.
//
// acc nil defaults to NewFieldAccessor.
func MergeIntoHost(host, isolated Resolver, acc SearchPathAccessor) error {
	if acc == nil {
		acc = NewFieldAccessor()
	}
	existing, err := acc.Read(host)
	if err != nil {
		return err
	}
	incoming, err := acc.Read(isolated)
	if err != nil {
		return err
	}
	joined, err := joinSearchPaths(incoming, existing)
	if err != nil {
		return err
	}
	return acc.Write(host, joined)
}

// joinSearchPaths concatenates two search path slices, incoming first, into
// a freshly allocated slice of the same type. Element types must match
// exactly: a mismatch is a programming-contract violation between two
// resolver implementations, not a recoverable condition, so it fails before
// anything is mutated rather than attempting a partial merge.
func joinSearchPaths(incoming, existing any) (any, error) {
	iv := reflect.ValueOf(incoming)
	ev := reflect.ValueOf(existing)
	if !iv.IsValid() || iv.Kind() != reflect.Slice {
		return nil, zerr.With(ErrIntrospection, "incoming", fmt.Sprintf("%T", incoming))
	}
	if !ev.IsValid() || ev.Kind() != reflect.Slice {
		return nil, zerr.With(ErrIntrospection, "existing", fmt.Sprintf("%T", existing))
	}
	if iv.Type().Elem() != ev.Type().Elem() {
		err := zerr.With(ErrIntrospection, "incoming", iv.Type().String())
		return nil, zerr.With(err, "existing", ev.Type().String())
	}
	joined := reflect.MakeSlice(iv.Type(), 0, iv.Len()+ev.Len())
	joined = reflect.AppendSlice(joined, iv)
	joined = reflect.AppendSlice(joined, ev)
	return joined.Interface(), nil
}
