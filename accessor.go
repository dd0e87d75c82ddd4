package sideload

import (
	"fmt"
	"reflect"
	"unsafe"

	"go.trai.ch/zerr"
)

// searchPathField is the unexported resolver field holding the ordered
// search path. There is no public accessor for it on purpose; this name is
// the one structural assumption the whole merge rests on.
const searchPathField = "sources"

type (
	//SearchPathAccessor reads and writes a resolver's internal search path,
	//bypassing normal encapsulation. It is the single privileged, fragile
	//seam of the package; alternate implementations stand in for platforms
	//that deny structural introspection, and tests mock it the same way.
	SearchPathAccessor interface {
		//Read returns a copy of the loader's search path as a slice value.
		//ErrUnsupportedPlatform when loader is not an introspectable kind,
		//ErrIntrospection when the expected internal layout is absent.
		Read(loader Resolver) (any, error)
		//Write replaces the loader's search path in a single field store.
		//The value must be a slice of exactly the type Read returned.
		Write(loader Resolver, path any) error
	}

	fieldAccessor struct{}
)

// NewFieldAccessor create the default SearchPathAccessor, which locates the
// search path field on any pointer-to-struct resolver via reflect and
// unsafe, the moral equivalent of Field.setAccessible elsewhere.
func NewFieldAccessor() SearchPathAccessor {
	return fieldAccessor{}
}

func (fieldAccessor) locate(loader Resolver) (reflect.Value, error) {
	rv := reflect.ValueOf(loader)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, zerr.With(ErrUnsupportedPlatform, "loader", fmt.Sprintf("%T", loader))
	}
	f := rv.Elem().FieldByName(searchPathField)
	if !f.IsValid() {
		err := zerr.With(ErrIntrospection, "loader", fmt.Sprintf("%T", loader))
		return reflect.Value{}, zerr.With(err, "missing_field", searchPathField)
	}
	if f.Kind() != reflect.Slice {
		err := zerr.With(ErrIntrospection, "field", searchPathField)
		return reflect.Value{}, zerr.With(err, "kind", f.Kind().String())
	}
	// Unexported field: rebuild an addressable, writable view over the same
	// storage. Safe for the lifetime of loader, which the caller holds.
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem(), nil
}

func (a fieldAccessor) Read(loader Resolver) (any, error) {
	f, err := a.locate(loader)
	if err != nil {
		return nil, err
	}
	// Copy out. Callers must never alias the live slice: the merge builds a
	// fresh sequence and the write below is the only mutation.
	out := reflect.MakeSlice(f.Type(), f.Len(), f.Len())
	reflect.Copy(out, f)
	return out.Interface(), nil
}

func (a fieldAccessor) Write(loader Resolver, path any) error {
	f, err := a.locate(loader)
	if err != nil {
		return err
	}
	pv := reflect.ValueOf(path)
	if !pv.IsValid() || pv.Type() != f.Type() {
		e := zerr.With(ErrIntrospection, "want", f.Type().String())
		return zerr.With(e, "got", fmt.Sprintf("%T", path))
	}
	// Single slice-header store; subsequent lookups see either the old or
	// the new path, never a partial one.
	f.Set(pv)
	return nil
}
