// Package bridge is the entry point for calling across language boundaries.
//
// A Bridge owns one transcoder.Converter and one registry.Registry, shared
// by every module it opens:
//
//	b := bridge.New(bridge.WithConfig(cfg))
//	defer b.Close(ctx)
//
//	lib, err := b.Cpp("./libcalc.so")
//	sum, err := lib.Invoke(ctx, "add", 5, 9)
//
//	mod, err := b.JS(ctx, "lua", "./calc.lua")
//	add := mod.Func("add")
//	sum, err = add(ctx, 1, 20)
//
// Default returns a lazily created process-wide instance for programs that
// do not want to pass a Bridge around. It has no teardown hook.
//
// The registry and module caches are locked. Backends are not assumed to be
// reentrant; serializing calls into one library is the caller's obligation.
package bridge
