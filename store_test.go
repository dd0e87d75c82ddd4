package sideload

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

var payloadBytes = []byte("var sdk = { ready: true };\n")

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManifest() *Manifest {
	return &Manifest{
		Name:    "sdkmod",
		Version: 42,
		Payload: "sdkmod.js",
		Entry:   Entry{Symbol: "sdk.Setup", Class: "sdk.Agent", Method: "Setup"},
	}
}

func testAssets(payload []byte) fstest.MapFS {
	return fstest.MapFS{
		"sdkmod.js": &fstest.MapFile{Data: payload},
	}
}

func TestEnsureCachedCopiesOnFirstUse(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s := NewStore(testAssets(payloadBytes), dir, testManifest(), quiet())

	path, err := s.EnsureCached(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sdkmod.42.js"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payloadBytes, got)
}

func TestEnsureCachedIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(testAssets(payloadBytes), dir, testManifest(), quiet())

	first, err := s.EnsureCached(context.Background(), 42)
	require.NoError(t, err)

	// Poison the cached file; without a declared checksum a second call must
	// take the fast path and not copy again.
	require.NoError(t, os.WriteFile(first, []byte("sentinel"), 0o600))

	second, err := s.EnsureCached(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, first, second)

	got, err := os.ReadFile(second)
	require.NoError(t, err)
	require.Equal(t, []byte("sentinel"), got)
}

func TestEnsureCachedDropsStaleVersions(t *testing.T) {
	dir := t.TempDir()
	for _, stale := range []string{"sdkmod.40.js", "sdkmod.41.js", "sdkmod.41.o"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, stale), []byte("old"), 0o600))
	}
	// A neighbor module's cache is not ours to clean.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.7.js"), []byte("keep"), 0o600))

	s := NewStore(testAssets(payloadBytes), dir, testManifest(), quiet())
	_, err := s.EnsureCached(context.Background(), 42)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"sdkmod.42.js", "other.7.js"}, names)
}

func TestEnsureCachedChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	man := testManifest()
	man.Checksum = "deadbeef"
	s := NewStore(testAssets(payloadBytes), dir, man, quiet())

	_, err := s.EnsureCached(context.Background(), 42)
	require.ErrorIs(t, err, ErrStorage)

	// No partial file survives.
	_, err = os.Stat(filepath.Join(dir, "sdkmod.42.js"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnsureCachedRecopiesCorruptCache(t *testing.T) {
	dir := t.TempDir()
	man := testManifest()
	man.Checksum = hexDigest(xxhash.Sum64(payloadBytes))
	s := NewStore(testAssets(payloadBytes), dir, man, quiet())

	dest := filepath.Join(dir, "sdkmod.42.js")
	require.NoError(t, os.WriteFile(dest, []byte("truncated"), 0o600))

	path, err := s.EnsureCached(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, dest, path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payloadBytes, got)
}

func TestEnsureCachedMissingAsset(t *testing.T) {
	man := testManifest()
	man.Payload = "absent.js"
	s := NewStore(testAssets(payloadBytes), t.TempDir(), man, quiet())

	_, err := s.EnsureCached(context.Background(), 42)
	require.ErrorIs(t, err, ErrStorage)
}

func TestEnsureCachedCancelled(t *testing.T) {
	s := NewStore(testAssets(payloadBytes), t.TempDir(), testManifest(), quiet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.EnsureCached(ctx, 42)
	require.ErrorIs(t, err, ErrStorage)
}
