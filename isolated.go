package sideload

import (
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
)

// IsolatedOption tunes how a payload is opened.
type IsolatedOption func(*isolatedConfig)

type isolatedConfig struct {
	pkg      string
	types    []any
	adapters map[string]func(Sym) any
}

// WithPackage set the package path of an object payload (default main).
func WithPackage(pkg string) IsolatedOption {
	return func(c *isolatedConfig) {
		c.pkg = pkg
	}
}

// WithTypes register types shared between host and an object payload.
func WithTypes(types ...any) IsolatedOption {
	return func(c *isolatedConfig) {
		c.types = append(c.types, types...)
	}
}

// WithAdapter register a typed adapter for one of an object payload's
// symbols, see ObjectSource.Adapt and Typed.
func WithAdapter(symbol string, adapt func(Sym) any) IsolatedOption {
	return func(c *isolatedConfig) {
		if c.adapters == nil {
			c.adapters = make(map[string]func(Sym) any)
		}
		c.adapters[symbol] = adapt
	}
}

// NewIsolated builds a resolver scoped exclusively to the cached payload,
// delegating unresolved lookups to parent (the host's own resolver), so the
// payload sees the host's symbols but not the other way around. The payload
// kind is selected by extension. Pure construction otherwise: an unreadable
// or unsupported payload surfaces as ErrPayload.
func NewIsolated(cachedPath string, parent Resolver, opts ...IsolatedOption) (*PathResolver, error) {
	var cfg isolatedConfig
	for _, o := range opts {
		o(&cfg)
	}
	var src SymbolSource
	switch ext := filepath.Ext(cachedPath); ext {
	case ".js":
		b, err := os.ReadFile(cachedPath)
		if err != nil {
			return nil, zerr.Wrap(zerr.With(ErrPayload, "path", cachedPath), err.Error())
		}
		if src, err = NewScriptSource(filepath.Base(cachedPath), b); err != nil {
			return nil, err
		}
	case ".o", ".a":
		obj, err := NewObjectSource(cachedPath, cfg.pkg, cfg.types...)
		if err != nil {
			return nil, err
		}
		for symbol, adapt := range cfg.adapters {
			obj.Adapt(symbol, adapt)
		}
		src = obj
	default:
		return nil, zerr.With(zerr.With(ErrPayload, "path", cachedPath), "kind", ext)
	}
	return NewResolver("isolated:"+filepath.Base(cachedPath), parent, src), nil
}
