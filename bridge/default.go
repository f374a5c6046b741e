package bridge

import (
	"context"
	"sync"

	"github.com/wippyai/bridge-runtime/config"
	"github.com/wippyai/bridge-runtime/native"
	"github.com/wippyai/bridge-runtime/script"
)

var (
	defaultBridge *Bridge
	defaultOnce   sync.Once
)

// Default returns a process-wide Bridge, created on first use from the
// BRIDGE_* environment (falling back to config.Default on a bad value).
// It is never closed; modules opened through it live until the caller
// closes them or the process exits.
func Default() *Bridge {
	defaultOnce.Do(func() {
		cfg, err := config.Load("")
		if err != nil {
			cfg = config.Default()
		}
		defaultBridge = New(WithConfig(cfg))
	})
	return defaultBridge
}

// Cpp opens a native library on the default bridge.
func Cpp(path string, opts ...native.Option) (*native.Module, error) {
	return Default().Cpp(path, opts...)
}

// JS opens a script on the default bridge.
func JS(ctx context.Context, selector, path string, opts ...script.Option) (*script.Module, error) {
	return Default().JS(ctx, selector, path, opts...)
}
