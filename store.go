package sideload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZenLiuCN/fn"
	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// Store caches the module payload from the read-only asset bundle onto
// durable storage, keyed by version. It owns the cache directory exclusively;
// no other component touches the filesystem.
type Store struct {
	assets   fs.FS
	dir      string
	name     string
	payload  string
	checksum string
	log      *slog.Logger
}

// NewStore create a Store for the manifest's payload, caching under dir.
func NewStore(assets fs.FS, dir string, man *Manifest, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		assets:   assets,
		dir:      dir,
		name:     man.Name,
		payload:  man.Payload,
		checksum: man.Checksum,
		log:      log.With("component", "store", "module", man.Name),
	}
}

// EnsureCached returns the path of the cached payload for version, copying it
// out of the asset bundle on first use. Idempotent: an intact cached file for
// this exact version is returned unchanged without a second copy. Any other
// cached file of this module is stale and deleted best-effort before copying.
// I/O failures surface as ErrStorage, fatal to the whole load.
func (s *Store) EnsureCached(ctx context.Context, version int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", zerr.Wrap(ErrStorage, err.Error())
	}
	dest := filepath.Join(s.dir, fmt.Sprintf("%s.%d%s", s.name, version, filepath.Ext(s.payload)))
	switch _, err := os.Stat(dest); {
	case err == nil:
		if s.checksum == "" {
			return dest, nil
		}
		if sum, err := fileDigest(dest); err == nil && sum == s.checksum {
			return dest, nil
		}
		// Corrupt or truncated from an earlier run; recopy below.
		s.log.Warn("cached payload failed verification", "path", dest)
	case !errors.Is(err, fs.ErrNotExist):
		return "", zerr.Wrap(zerr.With(ErrStorage, "path", dest), err.Error())
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", zerr.Wrap(zerr.With(ErrStorage, "dir", s.dir), err.Error())
	}
	s.dropStale()
	if err := s.copy(dest); err != nil {
		return "", err
	}
	return dest, nil
}

// dropStale removes every cached file of this module, whatever its version.
// Best-effort: a leftover stale file costs disk, not correctness, since the
// current version is addressed by exact path.
func (s *Store) dropStale() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("cache scan failed", "dir", s.dir, "err", err)
		return
	}
	prefix := s.name + "."
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		stale := filepath.Join(s.dir, e.Name())
		if err = os.Remove(stale); err != nil {
			s.log.Warn("stale payload not removed", "path", stale, "err", err)
		}
	}
}

// copy streams the bundled payload byte-for-byte to dest, hashing on the way
// when the manifest declares a checksum. Partial files never survive.
func (s *Store) copy(dest string) error {
	src, err := s.assets.Open(s.payload)
	if err != nil {
		return zerr.Wrap(zerr.With(ErrStorage, "asset", s.payload), err.Error())
	}
	defer fn.IgnoreClose(src)
	dst, err := os.Create(dest)
	if err != nil {
		return zerr.Wrap(zerr.With(ErrStorage, "path", dest), err.Error())
	}
	h := xxhash.New()
	if _, err = io.Copy(dst, io.TeeReader(src, h)); err != nil {
		_ = dst.Close()
		_ = os.Remove(dest)
		return zerr.Wrap(zerr.With(ErrStorage, "path", dest), err.Error())
	}
	if err = dst.Close(); err != nil {
		_ = os.Remove(dest)
		return zerr.Wrap(zerr.With(ErrStorage, "path", dest), err.Error())
	}
	if sum := hexDigest(h.Sum64()); s.checksum != "" && sum != s.checksum {
		_ = os.Remove(dest)
		e := zerr.With(zerr.With(ErrStorage, "asset", s.payload), "want", s.checksum)
		return zerr.With(e, "got", sum)
	}
	s.log.Info("payload cached", "path", dest)
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fn.IgnoreClose(f)
	h := xxhash.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", err
	}
	return hexDigest(h.Sum64()), nil
}

func hexDigest(sum uint64) string {
	return strconv.FormatUint(sum, 16)
}
