package main

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bridge-runtime/bridge"
	"github.com/wippyai/bridge-runtime/config"
	"github.com/wippyai/bridge-runtime/errors"
)

func init() {
	retryInterval = time.Millisecond
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"5", "2.5", "true", `"quoted"`, "plain", "[1,2]", `{"k":null}`, "5 6"})
	want := []any{
		int64(5),
		2.5,
		true,
		"quoted",
		"plain",
		[]any{int64(1), int64(2)},
		map[string]any{"k": nil},
		"5 6",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseArgs = %#v\nwant %#v", got, want)
	}
}

func TestConvertArg(t *testing.T) {
	tests := []struct {
		in      string
		typ     wit.Type
		want    any
		wantErr bool
	}{
		{"42", wit.S32{}, int64(42), false},
		{" 7 ", wit.U8{}, int64(7), false},
		{"1.5", wit.F64{}, 1.5, false},
		{"true", wit.Bool{}, true, false},
		{"hi there", wit.String{}, "hi there", false},
		{"x", wit.S32{}, nil, true},
		{"maybe", wit.Bool{}, nil, true},
	}
	for _, tt := range tests {
		got, err := convertArg(tt.in, tt.typ)
		if (err != nil) != tt.wantErr {
			t.Errorf("convertArg(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("convertArg(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestCallWithRetry(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.MaxRetries = 3

	t.Run("recovers from runtime failures", func(t *testing.T) {
		calls := 0
		inv := func(ctx context.Context, args ...any) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.Runtime("native", "flaky", stderrors.New("busy"))
			}
			return args[0], nil
		}
		got, err := callWithRetry(ctx, cfg, inv, []any{"ok"}, nil)
		if err != nil || got != "ok" {
			t.Fatalf("callWithRetry = %v, %v", got, err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		inv := func(context.Context, ...any) (any, error) {
			calls++
			return nil, errors.Runtime("native", "down", stderrors.New("down"))
		}
		_, err := callWithRetry(ctx, cfg, inv, nil, nil)
		if !errors.Is(err, errors.ErrRuntimeInvocation) {
			t.Errorf("err = %v, want runtime invocation", err)
		}
		if calls != 4 {
			t.Errorf("calls = %d, want 4", calls)
		}
	})

	t.Run("does not retry other kinds", func(t *testing.T) {
		calls := 0
		inv := func(context.Context, ...any) (any, error) {
			calls++
			return nil, errors.FunctionNotFound(errors.PhaseResolve, "native", "nope")
		}
		_, err := callWithRetry(ctx, cfg, inv, nil, nil)
		if !errors.Is(err, errors.ErrFunctionNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestTargetFunctions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calc.lua")
	src := "function add(a, b) return a + b end\nfunction greet(n) return 'hi ' .. n end\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	b := bridge.New()
	defer b.Close(ctx)

	tgt, err := openTarget(ctx, b, targetOptions{
		selector:   "lua",
		scriptPath: path,
		signatures: "add: func(a: s32, b: s32) -> s32",
	})
	if err != nil {
		t.Fatalf("openTarget: %v", err)
	}

	funcs := tgt.functions()
	if len(funcs) != 2 {
		t.Fatalf("functions = %v, want 2", funcs)
	}
	if got := funcs[0].String(); got != "add(arg0: s32, arg1: s32) -> s32" {
		t.Errorf("add = %q", got)
	}
	if got := funcs[1].String(); got != "greet(...)" {
		t.Errorf("greet = %q", got)
	}

	got, err := callWithRetry(ctx, config.Default(), tgt.mod.Func("greet"), parseArgs([]string{"bob"}), nil)
	if err != nil || got != "hi bob" {
		t.Errorf("greet = %v, %v", got, err)
	}

	out, err := formatTagged(b, got)
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"type":"string","value":"hi bob"}` {
		t.Errorf("formatTagged = %s", out)
	}
}

func TestLoadSignatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calc.wit")
	if err := os.WriteFile(path, []byte("add: func(a: s32) -> s32"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := loadSignatures("@" + path)
	if err != nil || got != "add: func(a: s32) -> s32" {
		t.Errorf("loadSignatures(@file) = %q, %v", got, err)
	}
	if got, _ := loadSignatures("inline"); got != "inline" {
		t.Errorf("loadSignatures(inline) = %q", got)
	}
	if _, err := loadSignatures("@/does/not/exist.wit"); err == nil {
		t.Error("missing file must fail")
	}
}

func TestInteractiveNavigation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calc.lua")
	if err := os.WriteFile(path, []byte("function add(a, b) return a + b end\nfunction ping() return 'pong' end\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := newInteractiveModel(config.Default(), targetOptions{selector: "lua", scriptPath: path})
	defer m.bridge.Close(context.Background())

	m.Update(m.loadModule())
	if m.target == nil || len(m.funcs) != 2 {
		t.Fatalf("loaded funcs = %v, err = %v", m.funcs, m.err)
	}

	m.handleKey("down")
	if m.selected != 1 || m.funcs[1].name != "ping" {
		t.Fatalf("selected = %d", m.selected)
	}

	m.handleKey("enter")
	if m.state != stateInputArgs || len(m.inputs) != 1 {
		t.Fatalf("state = %d, inputs = %d", m.state, len(m.inputs))
	}

	m.Update(m.callFunction())
	if m.state != stateShowResult || m.err != nil || m.result != "pong" {
		t.Errorf("result = %q, err = %v", m.result, m.err)
	}

	m.handleKey("esc")
	if m.state != stateSelectFunc {
		t.Errorf("state = %d, want select", m.state)
	}
}
