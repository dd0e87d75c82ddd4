package sideload

import "go.trai.ch/zerr"

var (
	// ErrStorage occurs when the payload cache cannot be read or written.
	// Fatal to the whole load: no payload means no fallback either.
	ErrStorage = zerr.New("payload storage failure")

	// ErrPayload occurs when a cached payload cannot be parsed or is of an
	// unsupported kind. Treated with the same policy as ErrStorage.
	ErrPayload = zerr.New("payload not loadable")

	// ErrUnsupportedPlatform occurs when the host resolver is not of a
	// structurally introspectable kind, so its search path cannot be reached.
	ErrUnsupportedPlatform = zerr.New("host resolver not introspectable")

	// ErrIntrospection occurs when the resolver internals do not match the
	// expected layout, or when two search paths carry different element types.
	ErrIntrospection = zerr.New("resolver internals not as expected")

	// ErrReflection occurs when a reflective fallback invocation fails:
	// missing method, signature mismatch, or the call itself blowing up.
	ErrReflection = zerr.New("reflective invocation failed")

	// ErrSymbolNotFound occurs on a resolver miss.
	ErrSymbolNotFound = zerr.New("symbol not found")
)
