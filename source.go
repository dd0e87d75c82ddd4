package sideload

import (
	"sort"

	"github.com/ZenLiuCN/fn"
)

type (
	//Callable is the invocable form a resolved function symbol takes.
	Callable func(args ...any) (any, error)

	//SymbolSource is one ordered lookup location within a resolver's search
	//path. Sources are treated as immutable values: they are copied into new
	//sequences on merge, never mutated in place.
	SymbolSource interface {
		//Name identifies the source in logs and error context.
		Name() string
		//Resolve looks a symbol up, reporting whether this source defines it.
		Resolve(symbol string) (any, bool)
	}

	//Registry is an in-memory SymbolSource backed by a plain map. Hosts use
	//it for their built-in symbols; tests use it for everything else.
	Registry struct {
		name string
		syms map[string]any
	}
)

// NewRegistry create a Registry over syms. The map is used as given, not copied.
func NewRegistry(name string, syms map[string]any) *Registry {
	if syms == nil {
		syms = make(map[string]any)
	}
	return &Registry{name: name, syms: syms}
}

func (r *Registry) Name() string {
	return r.name
}

func (r *Registry) Resolve(symbol string) (any, bool) {
	v, ok := r.syms[qualify(symbol)]
	return v, ok
}

// Register binds a symbol, replacing any previous binding.
func (r *Registry) Register(symbol string, value any) {
	r.syms[qualify(symbol)] = value
}

// Symbols dump symbol names inside the Registry.
func (r *Registry) Symbols() []string {
	s := fn.MapKeys(r.syms)
	sort.Strings(s)
	return s
}
