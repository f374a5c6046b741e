package engine

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/wippyai/bridge-runtime/value"
)

// ErrNotExported is wrapped by Session.Invoke for a name the script does not export.
var ErrNotExported = stderrors.New("function not exported")

// Engine starts script sessions.
type Engine interface {
	// Name is the selector the engine is registered under.
	Name() string
	Load(ctx context.Context, path string) (Session, error)
}

// Session is one loaded script. Sessions serialize their own calls.
type Session interface {
	// Lookup reports whether name is an exported callable.
	Lookup(name string) bool
	Invoke(ctx context.Context, name string, args []value.Value) (value.Value, error)
	// Exports lists the exported callables in sorted order.
	Exports() []string
	Close(ctx context.Context) error
}

// EngineError is a failure raised inside a script engine: a trap, a script
// error, or a load failure.
type EngineError struct {
	Cause    error
	Engine   string
	Function string
}

func (e *EngineError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("%s: %v", e.Engine, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Function, e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}
