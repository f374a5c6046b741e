package script

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	bridgeruntime "github.com/wippyai/bridge-runtime"
	"github.com/wippyai/bridge-runtime/engine"
	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/signature"
	"github.com/wippyai/bridge-runtime/transcoder"
)

// Engine selectors.
const (
	Node    = "node"
	V8      = "v8"
	QuickJS = "quickjs"
	Lua     = "lua"
	Wasm    = "wasm"
)

// known maps every recognized selector to whether it has a built-in engine.
var known = map[string]bool{
	Node:    false,
	V8:      false,
	QuickJS: false,
	Lua:     true,
	Wasm:    true,
}

// Selectors lists the recognized engine selectors.
func Selectors() []string {
	out := make([]string, 0, len(known))
	for s := range known {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Implemented reports whether selector has a working engine by default.
func Implemented(selector string) bool {
	return known[normalize(selector)]
}

func normalize(selector string) string {
	return strings.ToLower(strings.TrimSpace(selector))
}

var _ bridgeruntime.Module = (*Module)(nil)

// Module is one script engine session.
type Module struct {
	session  engine.Session // nil when the engine is not implemented
	conv     *transcoder.Converter
	logger   *zap.Logger
	resolved map[string]bool
	onClose  []func()
	selector string
	path     string
	mu       sync.Mutex
	caching  bool
	closed   bool
}

type options struct {
	engines map[string]engine.Engine
	logger  *zap.Logger
	witText string
	caching bool
}

// Option configures Open.
type Option func(*options)

// WithEngine installs e under its Name, replacing a built-in engine or
// providing one for a recognized but unimplemented selector.
func WithEngine(e engine.Engine) Option {
	return func(o *options) { o.engines[normalize(e.Name())] = e }
}

// WithSignatures declares WIT types for wasm exports.
func WithSignatures(witText string) Option {
	return func(o *options) { o.witText = witText }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCache enables or disables the per-module resolution cache. Enabled by default.
func WithCache(enabled bool) Option {
	return func(o *options) { o.caching = enabled }
}

// Open starts a session for the script at path on the engine named by
// selector. An unknown selector fails with unsupported; a missing path or
// a script that fails to load fails with initialization. Recognized
// selectors without an engine open successfully and fail every call with
// unsupported.
func Open(ctx context.Context, selector, path string, conv *transcoder.Converter, opts ...Option) (*Module, error) {
	o := options{engines: make(map[string]engine.Engine), caching: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if conv == nil {
		conv = transcoder.New()
	}

	sel := normalize(selector)
	if _, ok := known[sel]; !ok {
		if _, custom := o.engines[sel]; !custom {
			return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
				Backend(backendName(sel)).
				Detail("unsupported script engine %q (known: %s)", selector, strings.Join(Selectors(), ", ")).
				Build()
		}
	}

	if path == "" {
		return nil, errors.Initialization(backendName(sel), path, stderrors.New("empty script path"))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Initialization(backendName(sel), path, err)
	}

	eng, err := o.engine(sel)
	if err != nil {
		return nil, err
	}

	m := &Module{
		conv:     conv,
		logger:   o.logger,
		resolved: make(map[string]bool),
		selector: sel,
		path:     path,
		caching:  o.caching,
	}

	if eng == nil {
		o.logger.Debug("script engine not implemented", zap.String("engine", sel), zap.String("path", path))
		return m, nil
	}

	session, err := eng.Load(ctx, path)
	if err != nil {
		o.logger.Debug("script load failed", zap.String("engine", sel), zap.String("path", path), zap.Error(err))
		return nil, errors.Initialization(backendName(sel), path, err)
	}
	m.session = session

	o.logger.Debug("script loaded",
		zap.String("engine", sel),
		zap.String("path", path),
		zap.Strings("exports", session.Exports()))

	return m, nil
}

func (o *options) engine(sel string) (engine.Engine, error) {
	if e, ok := o.engines[sel]; ok {
		return e, nil
	}
	switch sel {
	case Lua:
		return engine.NewLua(), nil
	case Wasm:
		var cfg engine.WazeroConfig
		if o.witText != "" {
			sigs, err := signature.Parse(o.witText)
			if err != nil {
				return nil, err
			}
			cfg.Signatures = sigs
		}
		return engine.NewWazero(cfg), nil
	default:
		return nil, nil
	}
}

func backendName(sel string) string {
	return string(bridgeruntime.BackendScript) + ":" + sel
}

func (m *Module) Kind() bridgeruntime.Backend {
	return bridgeruntime.BackendScript
}

// Selector returns the normalized engine selector.
func (m *Module) Selector() string {
	return m.selector
}

func (m *Module) Path() string {
	return m.path
}

// Implemented reports whether calls can reach an engine.
func (m *Module) Implemented() bool {
	return m.session != nil
}

// Exports lists the script's exported functions. Unimplemented engines export nothing.
func (m *Module) Exports() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.closed {
		return nil
	}
	return m.session.Exports()
}

func (m *Module) Func(name string) bridgeruntime.Invoker {
	return func(ctx context.Context, args ...any) (any, error) {
		return m.Invoke(ctx, name, args...)
	}
}

// Invoke calls the script function name with args.
func (m *Module) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	result, err := m.invoke(ctx, name, args)
	if err != nil {
		m.logger.Debug("script call failed",
			zap.String("backend", backendName(m.selector)),
			zap.String("function", name),
			zap.Error(err))
		return nil, errors.Invocation(backendName(m.selector), name, err)
	}
	return result, nil
}

func (m *Module) invoke(ctx context.Context, name string, args []any) (any, error) {
	session, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	vals, err := m.conv.ToValues(args)
	if err != nil {
		return nil, err
	}

	out, err := session.Invoke(ctx, name, vals)
	if err != nil {
		var ee *engine.EngineError
		switch {
		case stderrors.Is(err, engine.ErrNotExported):
			return nil, errors.FunctionNotFound(errors.PhaseResolve, backendName(m.selector), name)
		case stderrors.As(err, &ee):
			return nil, errors.Runtime(backendName(m.selector), name, err)
		}
		return nil, err
	}

	return m.conv.FromValue(out), nil
}

func (m *Module) resolve(name string) (engine.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.NotInitialized(errors.PhaseResolve, fmt.Sprintf("script module %s", m.path))
	}
	if m.session == nil {
		return nil, errors.Unsupported(errors.PhaseInvoke, fmt.Sprintf("script engine %q is not implemented", m.selector))
	}
	if m.resolved[name] {
		return m.session, nil
	}
	if !m.session.Lookup(name) {
		return nil, errors.FunctionNotFound(errors.PhaseResolve, backendName(m.selector), name)
	}
	if m.caching {
		m.resolved[name] = true
	}
	return m.session, nil
}

// OnClose registers fn to run once, after the session is closed. If the
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

// Close ends the engine session. Calls after Close fail with not_initialized.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.resolved = nil
	hooks := m.onClose
	m.onClose = nil
	var err error
	if m.session != nil {
		err = m.session.Close(ctx)
	}
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindRuntimeInvocation, err, "close "+m.path)
	}
	return nil
}
