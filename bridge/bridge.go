package bridge

import (
	"context"

	"go.uber.org/zap"

	bridgeruntime "github.com/wippyai/bridge-runtime"
	"github.com/wippyai/bridge-runtime/config"
	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/native"
	"github.com/wippyai/bridge-runtime/registry"
	"github.com/wippyai/bridge-runtime/resource"
	"github.com/wippyai/bridge-runtime/script"
	"github.com/wippyai/bridge-runtime/transcoder"
)

// Bridge composes one converter and one registry with the backend modules
// it opens. Construct one and pass it to the code that needs it.
type Bridge struct {
	conv    *transcoder.Converter
	reg     *registry.Registry
	logger  *zap.Logger
	loader  native.Loader
	modules *resource.Table
	cfg     config.Config
}

// Option configures New.
type Option func(*Bridge)

func WithConfig(cfg config.Config) Option {
	return func(b *Bridge) { b.cfg = cfg }
}

// WithLogger sets the logger, overriding the choice made from EnableLogging.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithLoader replaces the platform loader for native modules.
func WithLoader(l native.Loader) Option {
	return func(b *Bridge) { b.loader = l }
}

// WithRegistry shares an existing registry instead of creating one.
func WithRegistry(r *registry.Registry) Option {
	return func(b *Bridge) { b.reg = r }
}

// New creates a Bridge. The config defaults to config.Default(). Without an
// explicit logger, EnableLogging selects a production logger; otherwise
// logging is disabled.
func New(opts ...Option) *Bridge {
	b := &Bridge{cfg: config.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.conv == nil {
		b.conv = transcoder.New()
	}
	if b.reg == nil {
		b.reg = registry.New()
	}
	if b.logger == nil {
		b.logger = newLogger(b.cfg)
	}
	b.modules = resource.NewTable()
	b.modules.Subscribe(resource.ObserverFunc(b.logEvent))
	return b
}

func (b *Bridge) logEvent(e resource.Event) {
	b.logger.Debug("module "+e.Type.String(),
		zap.String("backend", e.Kind),
		zap.Uint32("handle", uint32(e.Handle)))
}

func newLogger(cfg config.Config) *zap.Logger {
	if !cfg.EnableLogging {
		return zap.NewNop()
	}
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("bridge")
}

func (b *Bridge) Converter() *transcoder.Converter { return b.conv }

func (b *Bridge) Registry() *registry.Registry { return b.reg }

func (b *Bridge) Config() config.Config { return b.cfg }

func (b *Bridge) Logger() *zap.Logger { return b.logger }

// Cpp opens the native library at path. Options given here override the
// bridge's defaults.
func (b *Bridge) Cpp(path string, opts ...native.Option) (*native.Module, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	base := []native.Option{
		native.WithLogger(b.logger),
		native.WithCache(b.cfg.EnableCaching),
	}
	if b.loader != nil {
		base = append(base, native.WithLoader(b.loader))
	}

	mod, err := native.Open(path, b.conv, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := b.track(mod); err != nil {
		mod.Close(context.Background())
		return nil, err
	}
	return mod, nil
}

// Native is an alias for Cpp.
func (b *Bridge) Native(path string, opts ...native.Option) (*native.Module, error) {
	return b.Cpp(path, opts...)
}

// JS opens the script at path on the engine named by selector.
func (b *Bridge) JS(ctx context.Context, selector, path string, opts ...script.Option) (*script.Module, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	base := []script.Option{
		script.WithLogger(b.logger),
		script.WithCache(b.cfg.EnableCaching),
	}

	mod, err := script.Open(ctx, selector, path, b.conv, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := b.track(mod); err != nil {
		mod.Close(ctx)
		return nil, err
	}
	return mod, nil
}

// Script is an alias for JS.
func (b *Bridge) Script(ctx context.Context, selector, path string, opts ...script.Option) (*script.Module, error) {
	return b.JS(ctx, selector, path, opts...)
}

// Register adds fn to the bridge registry.
func (b *Bridge) Register(name string, fn registry.Func, opts ...registry.Option) error {
	return b.reg.Register(name, fn, opts...)
}

// RegisterFunction adds an arbitrary Go function to the bridge registry.
func (b *Bridge) RegisterFunction(name string, fn any) error {
	return b.reg.RegisterFunc(name, fn)
}

// Call invokes a registered function.
func (b *Bridge) Call(ctx context.Context, name string, args ...any) (any, error) {
	return b.reg.Call(ctx, name, args...)
}

func (b *Bridge) checkOpen() error {
	if b.modules.Closed() {
		return errors.NotInitialized(errors.PhaseLoad, "bridge")
	}
	return nil
}

// closeNotifier is implemented by modules that report their own Close.
type closeNotifier interface {
	OnClose(fn func())
}

func (b *Bridge) track(m bridgeruntime.Module) error {
	if _, err := b.modules.Insert(string(m.Kind()), m); err != nil {
		return errors.NotInitialized(errors.PhaseLoad, "bridge")
	}
	if n, ok := m.(closeNotifier); ok {
		n.OnClose(func() { b.modules.Forget(m) })
	}
	return nil
}

// Modules returns the number of modules opened through the bridge and not
// yet closed.
func (b *Bridge) Modules() int {
	return b.modules.Len()
}

// Release closes m and stops tracking it. Modules not opened through this
// bridge are left alone.
func (b *Bridge) Release(ctx context.Context, m bridgeruntime.Module) error {
	h, ok := b.modules.Find(m)
	if !ok {
		return nil
	}
	return b.modules.Release(ctx, h)
}

// Close closes every module opened through the bridge, newest first, and
// rejects further opens. Modules the caller closed are no longer tracked.
func (b *Bridge) Close(ctx context.Context) error {
	if b.modules.Closed() {
		return nil
	}
	err := b.modules.Close(ctx)
	_ = b.logger.Sync()
	return err
}
