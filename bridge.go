package bridgeruntime

import "context"

const (
	Name    = "bridge-runtime"
	Version = "0.0.1"
)

// Backend identifies the kind of callee behind a Module or registry entry.
type Backend string

const (
	BackendNative   Backend = "native"
	BackendScript   Backend = "script"
	BackendRegistry Backend = "registry"
)

// Invoker is a call bound to one function name. Resolution happens when the
// invoker runs, not when it is created.
type Invoker func(ctx context.Context, args ...any) (any, error)

// Module is an opened backend: a native library or a script engine session.
//
// Invoke resolves name, converts args, calls the entry point and converts the
// result back. A failed call leaves the module usable. After Close every call
// fails with a not_initialized error. Modules serialize their own bookkeeping
// but make no reentrancy guarantee for the callee.
type Module interface {
	Kind() Backend
	Invoke(ctx context.Context, name string, args ...any) (any, error)
	Func(name string) Invoker
	Close(ctx context.Context) error
}
