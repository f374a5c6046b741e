//go:build linux

package native

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/transcoder"
)

func openLibc(t *testing.T, opts ...Option) *Module {
	t.Helper()
	mod, err := Open("libc.so.6", transcoder.New(), opts...)
	if err != nil {
		t.Skipf("libc not loadable: %v", err)
	}
	t.Cleanup(func() { mod.Close(context.Background()) })
	return mod
}

func TestPurego_InferredInt(t *testing.T) {
	mod := openLibc(t)

	got, err := mod.Invoke(context.Background(), "abs", -5)
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	if got != int64(5) {
		t.Errorf("abs(-5) = %#v, want 5", got)
	}
}

func TestPurego_DeclaredSignature(t *testing.T) {
	mod := openLibc(t, WithSignatures(`
		strlen: func(s: string) -> u64;
		labs: func(n: s64) -> s64;
	`))
	ctx := context.Background()

	got, err := mod.Invoke(ctx, "strlen", "bridge")
	if err != nil {
		t.Fatalf("strlen: %v", err)
	}
	if got != int64(6) {
		t.Errorf("strlen = %#v, want 6", got)
	}

	got, err = mod.Invoke(ctx, "labs", int64(-1)<<40)
	if err != nil {
		t.Fatalf("labs: %v", err)
	}
	if got != int64(1)<<40 {
		t.Errorf("labs = %#v, want %d", got, int64(1)<<40)
	}
}

func TestPurego_MissingSymbol(t *testing.T) {
	mod := openLibc(t)
	_, err := mod.Invoke(context.Background(), "definitely_not_exported_xyz")
	if !stderrors.Is(err, errors.ErrFunctionNotFound) {
		t.Errorf("err = %v, want function not found", err)
	}
}

func TestPurego_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.so"), transcoder.New())
	if !stderrors.Is(err, errors.ErrInitialization) {
		t.Errorf("err = %v, want initialization", err)
	}
}
