package sideload

import (
	"strings"

	"go.trai.ch/zerr"
)

type (
	//Resolver resolves named symbols. The host application owns one; the
	//facade builds an isolated one per payload, parented to the host's.
	Resolver interface {
		//Resolve returns the value bound to symbol, or ErrSymbolNotFound.
		Resolve(symbol string) (any, error)
	}

	//PathResolver resolves symbols by walking an ordered search path of
	//sources, earliest first, delegating anything unresolved to a parent.
	//
	//The search path itself is deliberately unexported with no accessor:
	//reaching it requires a SearchPathAccessor, which is the point.
	//
	//Not thread-safe.
	PathResolver struct {
		name    string
		sources []SymbolSource
		parent  Resolver
	}
)

// NewResolver create a PathResolver over the given sources, earliest wins.
// parent may be nil for a root (host) resolver.
func NewResolver(name string, parent Resolver, sources ...SymbolSource) *PathResolver {
	return &PathResolver{name: name, sources: sources, parent: parent}
}

func (r *PathResolver) Resolve(symbol string) (any, error) {
	if v, ok := r.local(symbol); ok {
		return v, nil
	}
	if r.parent != nil {
		return r.parent.Resolve(symbol)
	}
	return nil, zerr.With(zerr.With(ErrSymbolNotFound, "symbol", symbol), "resolver", r.name)
}

// ResolveLocal resolves against this resolver's own sources only, without
// parent delegation. The facade uses it to obtain the direct handle it keeps
// around for reflective fallback.
func (r *PathResolver) ResolveLocal(symbol string) (any, error) {
	if v, ok := r.local(symbol); ok {
		return v, nil
	}
	return nil, zerr.With(zerr.With(ErrSymbolNotFound, "symbol", symbol), "resolver", r.name)
}

func (r *PathResolver) local(symbol string) (any, bool) {
	symbol = qualify(symbol)
	for _, s := range r.sources {
		if v, ok := s.Resolve(symbol); ok {
			return v, true
		}
	}
	return nil, false
}

// qualify defaults unqualified symbols into the main package, so "Setup"
// and "main.Setup" name the same thing.
func qualify(symbol string) string {
	if strings.IndexByte(symbol, '.') < 0 {
		return "main." + symbol
	}
	return symbol
}
