package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/signature"
	"github.com/wippyai/bridge-runtime/transcoder"
	"github.com/wippyai/bridge-runtime/value"
)

// WazeroConfig holds configuration for the wasm engine.
type WazeroConfig struct {
	// Signatures declares WIT types for exports, for example
	// "inc: func(x: u32) -> u32;". Undeclared exports use their core types.
	Signatures map[string]signature.Signature

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CloseOnContextDone aborts running calls when their context is done.
	// wazero closes the instance when that happens; the session instantiates
	// a fresh one, so guest state does not survive an aborted call.
	CloseOnContextDone bool
}

// Wazero runs core WebAssembly modules. Each session owns its own runtime,
// so closing one never affects another.
type Wazero struct {
	cfg WazeroConfig
}

func NewWazero(cfg WazeroConfig) *Wazero {
	return &Wazero{cfg: cfg}
}

func (w *Wazero) Name() string { return "wasm" }

// Load compiles and instantiates the module at path with WASI preview1
// available. A reactor's _initialize export runs once; _start does not.
func (w *Wazero) Load(ctx context.Context, path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return w.LoadBytes(ctx, filepath.Base(path), data)
}

// LoadBytes is Load for an in-memory module.
func (w *Wazero) LoadBytes(ctx context.Context, name string, data []byte) (Session, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if w.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(w.cfg.MemoryLimitPages)
	}
	if w.cfg.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, &EngineError{Engine: w.Name(), Cause: fmt.Errorf("instantiate wasi: %w", err)}
	}

	compiled, err := runtime.CompileModule(ctx, data)
	if err != nil {
		runtime.Close(ctx)
		return nil, &EngineError{Engine: w.Name(), Cause: fmt.Errorf("compile failed: %w", err)}
	}

	modCfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize")

	mod, err := runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		runtime.Close(ctx)
		return nil, &EngineError{Engine: w.Name(), Cause: fmt.Errorf("instantiate failed: %w", err)}
	}

	exports := make([]string, 0, len(compiled.ExportedFunctions()))
	for n := range compiled.ExportedFunctions() {
		exports = append(exports, n)
	}
	sort.Strings(exports)

	Logger().Debug("wasm module loaded",
		zap.String("module", name),
		zap.Int("exports", len(exports)))

	return &wazeroSession{
		runtime:  runtime,
		compiled: compiled,
		modCfg:   modCfg,
		module:   mod,
		sigs:     w.cfg.Signatures,
		exports:  exports,
	}, nil
}

type wazeroSession struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	modCfg   wazero.ModuleConfig
	module   api.Module
	sigs     map[string]signature.Signature
	exports  []string
	mu       sync.Mutex
	closed   bool
}

// revive replaces an instance wazero closed (context done, proc_exit) so
// the session keeps accepting calls. Caller holds s.mu.
func (s *wazeroSession) revive(ctx context.Context) error {
	if !s.module.IsClosed() {
		return nil
	}
	mod, err := s.runtime.InstantiateModule(context.WithoutCancel(ctx), s.compiled, s.modCfg)
	if err != nil {
		return &EngineError{Engine: "wasm", Cause: fmt.Errorf("reinstantiate failed: %w", err)}
	}
	Logger().Debug("wasm module reinstantiated", zap.String("module", mod.Name()))
	s.module = mod
	return nil
}

func (s *wazeroSession) Lookup(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	_, ok := s.compiled.ExportedFunctions()[name]
	return ok
}

func (s *wazeroSession) Exports() []string {
	out := make([]string, len(s.exports))
	copy(out, s.exports)
	return out
}

// types returns the WIT types for each core param and result of fn.
func (s *wazeroSession) types(name string, def api.FunctionDefinition) (signature.Signature, error) {
	core := def.ParamTypes()
	coreResults := def.ResultTypes()

	if sig, ok := s.sigs[name]; ok {
		if len(sig.Params) != len(core) || len(sig.Results) != len(coreResults) {
			return signature.Signature{}, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
				Function(name).
				Detail("declared signature has %d params and %d results, export has %d and %d",
					len(sig.Params), len(sig.Results), len(core), len(coreResults)).
				Build()
		}
		return sig, nil
	}

	sig := signature.Signature{
		Params:  make([]wit.Type, len(core)),
		Results: make([]wit.Type, len(coreResults)),
	}
	for i, vt := range core {
		t, err := transcoder.FromCoreType(vt)
		if err != nil {
			return signature.Signature{}, err
		}
		sig.Params[i] = t
	}
	for i, vt := range coreResults {
		t, err := transcoder.FromCoreType(vt)
		if err != nil {
			return signature.Signature{}, err
		}
		sig.Results[i] = t
	}
	return sig, nil
}

// Invoke calls the exported function name. Zero results give Null and
// several results an Array.
func (s *wazeroSession) Invoke(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return value.Value{}, errors.NotInitialized(errors.PhaseInvoke, "wasm session")
	}
	if err := s.revive(ctx); err != nil {
		return value.Value{}, err
	}

	fn := s.module.ExportedFunction(name)
	if fn == nil {
		return value.Value{}, &EngineError{Engine: "wasm", Function: name, Cause: ErrNotExported}
	}

	sig, err := s.types(name, fn.Definition())
	if err != nil {
		return value.Value{}, err
	}
	if len(args) != len(sig.Params) {
		return value.Value{}, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
			Function(name).
			Detail("expected %d arguments, got %d", len(sig.Params), len(args)).
			Build()
	}

	words := make([]uint64, len(args))
	for i, arg := range args {
		w, err := transcoder.LowerFlat(arg, sig.Params[i])
		if err != nil {
			if be, ok := err.(*errors.Error); ok {
				be.Path = []string{"arg" + strconv.Itoa(i)}
			}
			return value.Value{}, err
		}
		words[i] = w
	}

	debugf("wasm call %s%v", name, words)

	results, err := fn.Call(ctx, words...)
	if err != nil {
		if rerr := s.revive(ctx); rerr != nil {
			Logger().Warn("wasm session unusable", zap.String("function", name), zap.Error(rerr))
		}
		return value.Value{}, &EngineError{Engine: "wasm", Function: name, Cause: err}
	}

	lifted := make([]value.Value, len(results))
	for i, word := range results {
		v, err := transcoder.LiftFlat(word, sig.Results[i])
		if err != nil {
			return value.Value{}, err
		}
		lifted[i] = v
	}

	switch len(lifted) {
	case 0:
		return value.Null(), nil
	case 1:
		return lifted[0], nil
	default:
		return value.List(lifted...), nil
	}
}

func (s *wazeroSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.runtime.Close(ctx)
}
