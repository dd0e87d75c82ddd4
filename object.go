package sideload

import (
	"os"
	"sort"
	"unsafe"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
	"go.trai.ch/zerr"
)

type (
	//Sym is a simple alias of uintptr, addressing a fetched symbol. Cast it
	//to the desired type with As; fetch and use inside one goroutine.
	Sym uintptr

	//ObjectSource is a SymbolSource over a relocatable object payload (.o)
	//or archive (.a), linked into executable memory at construction.
	//
	//Raw symbols resolve as Sym; symbols with a registered adapter resolve
	//as whatever the adapter yields (typically a Callable built over As).
	ObjectSource struct {
		name     string
		pkg      string
		syms     map[string]uintptr
		linker   *goloader.Linker
		module   *goloader.CodeModule
		adapters map[string]func(Sym) any
	}
)

// NewObjectSource read, link and load an object payload. types registers
// shared types between host and module, same rules as goloader.RegTypes.
func NewObjectSource(file, pkg string, types ...any) (*ObjectSource, error) {
	if pkg == "" {
		pkg = "main"
	}
	s := &ObjectSource{
		name:     file,
		pkg:      pkg,
		syms:     make(map[string]uintptr),
		adapters: make(map[string]func(Sym) any),
	}
	if len(types) > 0 {
		goloader.RegTypes(s.syms, types...)
	}
	if err := goloader.RegSymbol(s.syms); err != nil {
		return nil, zerr.Wrap(zerr.With(ErrPayload, "object", file), err.Error())
	}
	var err error
	if s.linker, err = goloader.ReadObj(file, pkg); err != nil {
		return nil, zerr.Wrap(zerr.With(ErrPayload, "object", file), err.Error())
	}
	if s.module, err = goloader.Load(s.linker, s.syms); err != nil {
		return nil, zerr.Wrap(zerr.With(ErrPayload, "object", file), err.Error())
	}
	return s, nil
}

func (s *ObjectSource) Name() string {
	return s.name
}

func (s *ObjectSource) Resolve(symbol string) (any, bool) {
	if s.module == nil {
		return nil, false
	}
	symbol = qualify(symbol)
	p, ok := s.module.Syms[symbol]
	if !ok {
		return nil, false
	}
	u := (Sym)(unsafe.Pointer(&p))
	if adapt, ok := s.adapters[symbol]; ok {
		return adapt(u), true
	}
	return u, true
}

// Adapt register a per-symbol conversion applied on resolve, so callers of
// the host resolver see a typed value instead of a raw Sym.
func (s *ObjectSource) Adapt(symbol string, adapt func(Sym) any) {
	s.adapters[qualify(symbol)] = adapt
}

// Symbols dump the linked module's symbol names.
func (s *ObjectSource) Symbols() []string {
	if s.module == nil {
		return nil
	}
	names := fn.MapKeys(s.module.Syms)
	sort.Strings(names)
	return names
}

// MissingSymbols dump the symbols the payload needs but nothing provides.
func (s *ObjectSource) MissingSymbols() []string {
	if s.linker == nil {
		return nil
	}
	return goloader.UnresolvedSymbols(s.linker, s.syms)
}

// Close unload the code module and release its resources.
func (s *ObjectSource) Close() {
	if s.module != nil {
		_ = os.Stdout.Sync()
		s.module.Unload()
		s.module = nil
		s.linker = nil
		s.syms = nil
	}
}

// As convert a fetched Sym to its contract type.
func As[T any](ptr Sym) (x T) {
	px := (*T)(unsafe.Pointer(&ptr))
	x = *px
	return
}

// Typed build an adapter resolving a symbol as T.
func Typed[T any]() func(Sym) any {
	return func(p Sym) any {
		return As[T](p)
	}
}
