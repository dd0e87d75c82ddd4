package sideload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type (
	// altSource is a search path element type foreign to SymbolSource.
	altSource interface {
		Tag() string
	}
	tagSource struct {
		tag string
	}
	// altResolver carries a search path of a different element type.
	altResolver struct {
		sources []altSource
	}
	// bareResolver lacks the expected internal field entirely.
	bareResolver struct {
		paths []SymbolSource
	}
	// opaqueResolver is not a struct-backed resolver at all.
	opaqueResolver map[string]any
)

func (s tagSource) Tag() string { return s.tag }

func (*altResolver) Resolve(string) (any, error)   { return nil, ErrSymbolNotFound }
func (*bareResolver) Resolve(string) (any, error)  { return nil, ErrSymbolNotFound }
func (opaqueResolver) Resolve(string) (any, error) { return nil, ErrSymbolNotFound }

func pathNames(t *testing.T, loader Resolver) []string {
	t.Helper()
	got, err := NewFieldAccessor().Read(loader)
	require.NoError(t, err)
	path, ok := got.([]SymbolSource)
	require.True(t, ok)
	names := make([]string, len(path))
	for i, s := range path {
		names[i] = s.Name()
	}
	return names
}

func TestMergeOrderAndPrecedence(t *testing.T) {
	a := NewRegistry("a", map[string]any{"pkg.Hit": "a", "pkg.A": "a"})
	b := NewRegistry("b", map[string]any{"pkg.B": "b"})
	c := NewRegistry("c", map[string]any{"pkg.Hit": "c"})
	d := NewRegistry("d", map[string]any{"pkg.D": "d"})

	host := NewResolver("host", nil, c, d)
	iso := NewResolver("iso", host, a, b)

	require.NoError(t, MergeIntoHost(host, iso, nil))
	require.Equal(t, []string{"a", "b", "c", "d"}, pathNames(t, host))

	// Incoming entries win on collision.
	v, err := host.Resolve("pkg.Hit")
	require.NoError(t, err)
	require.Equal(t, "a", v)

	// The host's original entries are still reachable.
	v, err = host.Resolve("pkg.D")
	require.NoError(t, err)
	require.Equal(t, "d", v)
}

func TestMergeElementTypeMismatchLeavesHostUntouched(t *testing.T) {
	host := NewResolver("host", nil, NewRegistry("c", nil), NewRegistry("d", nil))
	iso := &altResolver{sources: []altSource{tagSource{tag: "x"}}}

	err := MergeIntoHost(host, iso, nil)
	require.ErrorIs(t, err, ErrIntrospection)

	// All-or-nothing: the host search path did not change.
	require.Equal(t, []string{"c", "d"}, pathNames(t, host))
}

func TestMergeUnsupportedHostKind(t *testing.T) {
	iso := NewResolver("iso", nil, NewRegistry("a", nil))
	err := MergeIntoHost(opaqueResolver{}, iso, nil)
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestAccessorMissingField(t *testing.T) {
	_, err := NewFieldAccessor().Read(&bareResolver{})
	require.ErrorIs(t, err, ErrIntrospection)
}

func TestAccessorNilLoader(t *testing.T) {
	var loader *PathResolver
	_, err := NewFieldAccessor().Read(loader)
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestAccessorReadReturnsCopy(t *testing.T) {
	host := NewResolver("host", nil, NewRegistry("c", nil), NewRegistry("d", nil))
	acc := NewFieldAccessor()

	got, err := acc.Read(host)
	require.NoError(t, err)
	path := got.([]SymbolSource)
	path[0] = NewRegistry("mutated", nil)

	require.Equal(t, []string{"c", "d"}, pathNames(t, host))
}

func TestAccessorWriteReplacesPath(t *testing.T) {
	host := NewResolver("host", nil, NewRegistry("c", nil))
	acc := NewFieldAccessor()

	require.NoError(t, acc.Write(host, []SymbolSource{NewRegistry("x", nil), NewRegistry("y", nil)}))
	require.Equal(t, []string{"x", "y"}, pathNames(t, host))
}

func TestAccessorWriteTypeMismatch(t *testing.T) {
	host := NewResolver("host", nil, NewRegistry("c", nil))
	err := NewFieldAccessor().Write(host, []int{1, 2})
	require.ErrorIs(t, err, ErrIntrospection)
	require.Equal(t, []string{"c"}, pathNames(t, host))
}

func TestJoinSearchPathsRejectsNonSlices(t *testing.T) {
	_, err := joinSearchPaths("nope", []SymbolSource{})
	require.ErrorIs(t, err, ErrIntrospection)
	_, err = joinSearchPaths([]SymbolSource{}, 42)
	require.ErrorIs(t, err, ErrIntrospection)
}
