package native

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	bridgeruntime "github.com/wippyai/bridge-runtime"
	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/signature"
	"github.com/wippyai/bridge-runtime/transcoder"
	"github.com/wippyai/bridge-runtime/value"
)

const backend = string(bridgeruntime.BackendNative)

var _ bridgeruntime.Module = (*Module)(nil)

// Module is an opened shared library. Symbols are resolved on first call.
type Module struct {
	lib     Library
	conv    *transcoder.Converter
	logger  *zap.Logger
	sigs    map[string]signature.Signature
	cache   map[string]Proc
	onClose []func()
	path    string
	mu      sync.Mutex
	caching bool
	closed  bool
}

type options struct {
	loader  Loader
	logger  *zap.Logger
	witText string
	caching bool
}

// Option configures Open.
type Option func(*options)

// WithLoader replaces the platform loader.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithSignatures declares symbol types in WIT syntax, for example
// "add: func(a: s32, b: s32) -> s32;". Undeclared symbols use the
// inferred default: argument types from the values, s32 result.
func WithSignatures(witText string) Option {
	return func(o *options) { o.witText = witText }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCache enables or disables the per-module symbol cache. Enabled by default.
func WithCache(enabled bool) Option {
	return func(o *options) { o.caching = enabled }
}

// Open loads the library at path. Failure to open it is an initialization
// error; missing symbols are only reported when called.
func Open(path string, conv *transcoder.Converter, opts ...Option) (*Module, error) {
	o := options{caching: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loader == nil {
		o.loader = DefaultLoader()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if conv == nil {
		conv = transcoder.New()
	}

	if path == "" {
		return nil, errors.Initialization(backend, path, stderrors.New("empty library path"))
	}

	var sigs map[string]signature.Signature
	if o.witText != "" {
		parsed, err := signature.Parse(o.witText)
		if err != nil {
			return nil, err
		}
		sigs = parsed
	}

	lib, err := o.loader.Open(path)
	if err != nil {
		o.logger.Debug("native open failed", zap.String("path", path), zap.Error(err))
		return nil, errors.Initialization(backend, path, err)
	}

	o.logger.Debug("native library opened", zap.String("path", path), zap.Int("signatures", len(sigs)))

	return &Module{
		lib:     lib,
		conv:    conv,
		logger:  o.logger,
		sigs:    sigs,
		cache:   make(map[string]Proc),
		path:    path,
		caching: o.caching,
	}, nil
}

func (m *Module) Kind() bridgeruntime.Backend {
	return bridgeruntime.BackendNative
}

// Path returns the locator the module was opened with.
func (m *Module) Path() string {
	return m.path
}

// Func returns an invoker bound to name.
func (m *Module) Func(name string) bridgeruntime.Invoker {
	return func(ctx context.Context, args ...any) (any, error) {
		return m.Invoke(ctx, name, args...)
	}
}

// Invoke calls the exported symbol name with args.
func (m *Module) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	result, err := m.invoke(name, args)
	if err != nil {
		m.logger.Debug("native call failed",
			zap.String("backend", backend),
			zap.String("function", name),
			zap.Error(err))
		return nil, errors.Invocation(backend, name, err)
	}
	return result, nil
}

func (m *Module) invoke(name string, args []any) (any, error) {
	proc, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	vals, err := m.conv.ToValues(args)
	if err != nil {
		return nil, err
	}

	sig, err := m.signature(name, vals)
	if err != nil {
		return nil, err
	}
	if _, err := FuncType(sig); err != nil {
		return nil, err
	}

	lowered := make([]any, len(vals))
	for i, v := range vals {
		l, err := transcoder.LowerNative(v, sig.Params[i])
		if err != nil {
			if be, ok := err.(*errors.Error); ok {
				be.Path = []string{"arg" + strconv.Itoa(i)}
			}
			return nil, err
		}
		lowered[i] = l
	}

	raw, err := call(proc, sig, lowered)
	if err != nil {
		return nil, errors.Runtime(backend, name, err)
	}

	if sig.Result() == nil {
		return nil, nil
	}
	if _, ok := sig.Result().(wit.Char); ok {
		if r, ok := raw.(rune); ok {
			raw = string(r)
		}
	}
	v, err := m.conv.ToValue(raw)
	if err != nil {
		return nil, err
	}
	return m.conv.FromValue(v), nil
}

func call(proc Proc, sig signature.Signature, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, errors.Recovered(r)
		}
	}()
	return proc.Call(sig, args)
}

func (m *Module) resolve(name string) (Proc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.NotInitialized(errors.PhaseResolve, "native module "+m.path)
	}
	if proc, ok := m.cache[name]; ok {
		return proc, nil
	}

	proc, err := m.lib.Lookup(name)
	if err != nil {
		if stderrors.Is(err, ErrSymbolNotFound) {
			return nil, errors.FunctionNotFound(errors.PhaseResolve, backend, name)
		}
		return nil, errors.Runtime(backend, name, err)
	}

	m.logger.Debug("native symbol resolved", zap.String("function", name), zap.Bool("cached", m.caching))
	if m.caching {
		m.cache[name] = proc
	}
	return proc, nil
}

// signature returns the declared signature for name, or infers one from the
// argument values with a C int result.
func (m *Module) signature(name string, vals []value.Value) (signature.Signature, error) {
	if sig, ok := m.sigs[name]; ok {
		if len(sig.Params) != len(vals) {
			return signature.Signature{}, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
				Function(name).
				Detail("expected %d arguments, got %d", len(sig.Params), len(vals)).
				Build()
		}
		return sig, nil
	}

	sig := signature.Signature{
		Params:  make([]wit.Type, len(vals)),
		Results: []wit.Type{wit.S32{}},
	}
	for i, v := range vals {
		t, err := transcoder.InferType(v)
		if err != nil {
			return signature.Signature{}, err
		}
		sig.Params[i] = t
	}
	return sig, nil
}

// OnClose registers fn to run once, after the library is closed. If the
// module is already closed fn runs immediately.
func (m *Module) OnClose(fn func()) {
	m.mu.Lock()
	if !m.closed {
		m.onClose = append(m.onClose, fn)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	fn()
}

// Close releases the library. Calls after Close fail with not_initialized.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cache = nil
	hooks := m.onClose
	m.onClose = nil
	err := m.lib.Close()
	m.mu.Unlock()

	m.logger.Debug("native library closed", zap.String("path", m.path))
	for _, fn := range hooks {
		fn()
	}
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindRuntimeInvocation, err, "close "+m.path)
	}
	return nil
}
