// Package bridgeruntime lets Go code call functions exported by native shared
// libraries and by embedded script engines, passing structured values across
// the boundary.
//
// # Architecture Overview
//
//	bridgeruntime/       Root package with the Module and Invoker contracts
//	├── value/           Tagged bridge value model and host classification
//	├── transcoder/      Host <-> value conversion, tagged JSON, scalar lowering
//	├── signature/       WIT function signatures for declared native/wasm types
//	├── registry/        Name-keyed table of local Go functions
//	├── native/          Shared library backend (purego)
//	├── engine/          Script engines: wasm (wazero) and lua (go-lua)
//	├── script/          Script engine backend selected by name
//	├── resource/        Handle table for open modules
//	├── bridge/          Facade composing converter, registry and modules
//	├── config/          Configuration from defaults, TOML and environment
//	├── errors/          Structured error types
//	└── cmd/bridge/      Command line and interactive front end
//
// # Quick Start
//
//	b := bridge.New()
//	defer b.Close(ctx)
//
//	lib, err := b.Cpp("./libmath.so")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sum, err := lib.Invoke(ctx, "add", 5, 9) // int64(14)
//
//	add := lib.Func("add")
//	sum, err = add(ctx, 1, 20)
//
// Script engines are selected by name:
//
//	mod, err := b.JS(ctx, "lua", "./calc.lua")
//	out, err := mod.Invoke(ctx, "scale", []any{1, 2}, 3)
//
// The node, v8 and quickjs selectors are recognized but not implemented:
// opening succeeds and every call fails with an unsupported error, so callers
// can tell "not available" from "broken" with errors.Is(err, errors.ErrUnsupported).
//
// # Values
//
// Every value crossing a boundary is normalized to value.Value: int, float,
// string, bool, array, object or null. Results come back in canonical Go form
// (int64, float64, string, bool, []any, map[string]any, nil).
//
// # Errors
//
// Failures carry an errors.Kind. Resolution misses are not_found, conversion
// problems type_mismatch, and anything the callee itself raises is reported
// as exactly one runtime_invocation error wrapping the cause.
//
// # Handle Lifetime
//
// Modules hold OS or engine resources and must be closed. A Bridge closes
// every module it opened when it is closed itself; Release closes one early.
package bridgeruntime
