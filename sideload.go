package sideload

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"reflect"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"go.trai.ch/zerr"
)

// State of the loader facade. Done is terminal on either the merged or the
// fallback path; Failed means no payload, so the feature is off for this run.
type State uint8

const (
	StateIdle State = iota
	StateCached
	StateMerged
	StateMergeFallback
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCached:
		return "cached"
	case StateMerged:
		return "merged"
	case StateMergeFallback:
		return "merge-fallback"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config wires a Sideloader to its host environment.
type Config struct {
	//Assets is the application's read-only bundle holding the manifest and
	//the payload, typically an embed.FS.
	Assets fs.FS
	//CacheDir is an application-private directory for cached payloads.
	CacheDir string
	//Host is the application's own resolver, the merge target.
	Host Resolver
	//Accessor overrides the privileged introspection seam; nil means the
	//default field accessor. Platforms denying introspection plug in here.
	Accessor SearchPathAccessor
	//Manifest is the bundle entry describing the module; empty means
	//DefaultManifest.
	Manifest string
	//Isolated options are forwarded to NewIsolated.
	Isolated []IsolatedOption
	Logger   *slog.Logger
	//Debug dumps the merged search path at debug level.
	Debug bool
}

// Sideloader sequences cache, isolation, merge and fallback for one module.
// Its contract to the caller is best effort: LoadModule never raises.
type Sideloader struct {
	cfg   Config
	man   *Manifest
	store *Store
	log   *slog.Logger

	mu       sync.Mutex
	state    State
	fellBack bool
	invoked  bool
	isolated *PathResolver
}

// New reads the module manifest out of the bundle and prepares a Sideloader.
func New(cfg Config) (*Sideloader, error) {
	if cfg.Assets == nil || cfg.Host == nil {
		return nil, zerr.With(ErrPayload, "config", "missing assets or host resolver")
	}
	man, err := ReadManifest(cfg.Assets, cfg.Manifest)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "sideload", "module", man.Name)
	return &Sideloader{
		cfg:   cfg,
		man:   man,
		store: NewStore(cfg.Assets, cfg.CacheDir, man, cfg.Logger),
		log:   log,
		state: StateIdle,
	}, nil
}

// entryArgTypes is the signature module entry points are invoked with.
var entryArgTypes = []reflect.Type{
	reflect.TypeOf((*context.Context)(nil)).Elem(),
	reflect.TypeOf(""),
}

// LoadModule caches the payload, makes its symbols resolvable through the
// host, and invokes the module's entry point with token. Best effort: every
// failure is logged exactly once here and swallowed. Calls are serialized
// and latch on the first terminal state, so concurrent or repeated calls
// cause one copy, one merge and at most one entry invocation.
func (l *Sideloader) LoadModule(ctx context.Context, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		l.log.Debug("load already attempted", "state", l.state.String())
		return
	}
	log := l.log.With("load_id", uuid.NewString())
	if err := l.load(ctx, log, token); err != nil {
		log.Error("module load failed", "state", l.state.String(), "err", err)
		return
	}
	log.Info("module loaded", "state", l.state.String(), "fallback", l.fellBack)
}

// State reports the facade machine's current (after LoadModule: terminal) state.
func (l *Sideloader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// FellBack reports whether the entry point was driven reflectively.
func (l *Sideloader) FellBack() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fellBack
}

// Invoked reports whether the entry point ran.
func (l *Sideloader) Invoked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invoked
}

// Close releases resources held by the payload (linked object modules).
// Only safe once the host is done resolving module symbols.
func (l *Sideloader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isolated == nil {
		return
	}
	for _, s := range l.isolated.sources {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
	l.isolated = nil
}

func (l *Sideloader) load(ctx context.Context, log *slog.Logger, token string) error {
	path, err := l.store.EnsureCached(ctx, l.man.Version)
	if err != nil {
		l.state = StateFailed
		return err
	}
	l.state = StateCached
	iso, err := NewIsolated(path, l.cfg.Host, l.cfg.Isolated...)
	if err != nil {
		l.state = StateFailed
		return err
	}
	l.isolated = iso

	entry := l.man.Entry
	// Pre-merge probe, expected to miss on a fresh process. Resolving here
	// means the module is already linked (statically, or by an earlier
	// process-wide merge); invoke directly and stop.
	if v, err := l.cfg.Host.Resolve(entry.Symbol); err == nil {
		if fn, ok := asEntryCallable(v); ok {
			l.state = StateMerged
			return l.finish(log, Direct{Fn: fn}, ctx, token)
		}
	} else if !errors.Is(err, ErrSymbolNotFound) {
		log.Warn("pre-merge probe failed unexpectedly", "symbol", entry.Symbol, "err", err)
	}

	acc := l.cfg.Accessor
	if acc == nil {
		acc = NewFieldAccessor()
	}
	if err = MergeIntoHost(l.cfg.Host, iso, acc); err != nil {
		log.Warn("search path merge unavailable", "err", err)
		return l.fallback(log, iso, ctx, token)
	}
	l.state = StateMerged
	if l.cfg.Debug {
		if p, err := acc.Read(l.cfg.Host); err == nil {
			log.Debug("merged search path", "path", spew.Sdump(p))
		}
	}
	v, err := l.cfg.Host.Resolve(entry.Symbol)
	if err != nil {
		// The write was accepted but lookups do not honor it; keep the
		// retained direct handle in play instead of half-trusting the merge.
		log.Warn("merge not honored by host resolution", "symbol", entry.Symbol, "err", err)
		return l.fallback(log, iso, ctx, token)
	}
	fn, ok := asEntryCallable(v)
	if !ok {
		log.Warn("entry symbol resolved to a non-callable", "symbol", entry.Symbol)
		return l.fallback(log, iso, ctx, token)
	}
	return l.finish(log, Direct{Fn: fn}, ctx, token)
}

// fallback drives the entry point reflectively through the isolated loader's
// own handle, without parent delegation: the direct handle the facade kept
// around for exactly this case.
func (l *Sideloader) fallback(log *slog.Logger, iso *PathResolver, ctx context.Context, token string) error {
	l.state = StateMergeFallback
	l.fellBack = true
	handle, err := iso.ResolveLocal(l.man.Entry.Class)
	if err != nil {
		l.state = StateDone
		return zerr.Wrap(zerr.With(ErrReflection, "class", l.man.Entry.Class), err.Error())
	}
	res := Reflective{Handle: handle, Method: l.man.Entry.Method, ArgTypes: entryArgTypes}
	return l.finish(log, res, ctx, token)
}

// finish invokes the resolved entry point at most once and terminates the
// machine. A second resolution of the same entry (degraded scenarios where
// both paths produced one) must not run the module twice.
func (l *Sideloader) finish(log *slog.Logger, res Resolution, ctx context.Context, token string) error {
	defer func() {
		l.state = StateDone
	}()
	if l.invoked {
		log.Debug("entry point already invoked")
		return nil
	}
	l.invoked = true
	if _, err := Dispatch(res, ctx, token); err != nil {
		return err
	}
	return nil
}

// asEntryCallable views a resolved entry symbol as an invocable, accepting
// either the package's Callable form or the plain entry point signature.
func asEntryCallable(v any) (Callable, bool) {
	switch fn := v.(type) {
	case Callable:
		return fn, true
	case func(context.Context, string) error:
		return func(args ...any) (any, error) {
			if len(args) != 2 {
				return nil, zerr.With(ErrReflection, "arity", "entry point takes (ctx, token)")
			}
			ctx, _ := args[0].(context.Context)
			token, _ := args[1].(string)
			return nil, fn(ctx, token)
		}, true
	default:
		return nil, false
	}
}
