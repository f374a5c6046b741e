package engine

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/signature"
	"github.com/wippyai/bridge-runtime/value"
)

// section frames a wasm section. Payloads in these tests stay under 128
// bytes, so the size is a single LEB128 byte.
func section(id byte, payload ...byte) []byte {
	return append([]byte{id, byte(len(payload))}, payload...)
}

// body frames a function body with no locals.
func body(code ...byte) []byte {
	code = append([]byte{0x00}, append(code, 0x0b)...)
	return append([]byte{byte(len(code))}, code...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func export(name string, index byte) []byte {
	return concat([]byte{byte(len(name))}, []byte(name), []byte{0x00, index})
}

// calcWASM exports add(i32,i32)->i32, mul(i32,i32)->i32, half(f64)->f64
// and trap() which executes unreachable.
var calcWASM = concat(
	[]byte{0x00, 0x61, 0x73, 0x6d}, // magic
	[]byte{0x01, 0x00, 0x00, 0x00}, // version
	section(0x01, concat(
		[]byte{0x03},
		[]byte{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f}, // (i32, i32) -> i32
		[]byte{0x60, 0x01, 0x7c, 0x01, 0x7c},       // (f64) -> f64
		[]byte{0x60, 0x00, 0x00},                   // () -> ()
	)...),
	section(0x03, 0x04, 0x00, 0x00, 0x01, 0x02),
	section(0x07, concat(
		[]byte{0x04},
		export("add", 0),
		export("mul", 1),
		export("half", 2),
		export("trap", 3),
	)...),
	section(0x0a, concat(
		[]byte{0x04},
		// add: i32.add
		body(0x20, 0x00, 0x20, 0x01, 0x6a),
		// mul: i32.mul
		body(0x20, 0x00, 0x20, 0x01, 0x6c),
		// half: f64.const 0.5, f64.mul
		body(0x20, 0x00, 0x44, 0, 0, 0, 0, 0, 0, 0xe0, 0x3f, 0xa2),
		// trap: unreachable
		body(0x00),
	)...),
)

func writeWASM(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calc.wasm")
	if err := os.WriteFile(path, calcWASM, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadCalc(t *testing.T, cfg WazeroConfig) Session {
	t.Helper()
	ctx := context.Background()
	s, err := NewWazero(cfg).Load(ctx, writeWASM(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func TestWazero_Invoke(t *testing.T) {
	ctx := context.Background()
	s := loadCalc(t, WazeroConfig{})

	tests := []struct {
		name string
		fn   string
		args []value.Value
		want value.Value
	}{
		{"add", "add", []value.Value{value.Int(5), value.Int(9)}, value.Int(14)},
		{"add negative", "add", []value.Value{value.Int(-3), value.Int(1)}, value.Int(-2)},
		{"mul", "mul", []value.Value{value.Int(14), value.Int(2)}, value.Int(28)},
		{"half", "half", []value.Value{value.Float(5)}, value.Float(2.5)},
		{"half widens int", "half", []value.Value{value.Int(3)}, value.Float(1.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Invoke(ctx, tt.fn, tt.args)
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("%s = %s, want %s", tt.fn, got, tt.want)
			}
		})
	}
}

func TestWazero_Exports(t *testing.T) {
	s := loadCalc(t, WazeroConfig{})

	if got, want := s.Exports(), []string{"add", "half", "mul", "trap"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Exports = %v, want %v", got, want)
	}
	if !s.Lookup("add") || s.Lookup("sub") {
		t.Error("Lookup mismatch")
	}
}

func TestWazero_Trap(t *testing.T) {
	s := loadCalc(t, WazeroConfig{})

	_, err := s.Invoke(context.Background(), "trap", nil)
	var ee *EngineError
	if !stderrors.As(err, &ee) {
		t.Fatalf("err = %v, want *EngineError", err)
	}
	if ee.Engine != "wasm" || ee.Function != "trap" {
		t.Errorf("EngineError = %+v", ee)
	}

	// The instance survives a trap.
	if got, err := s.Invoke(context.Background(), "add", []value.Value{value.Int(1), value.Int(1)}); err != nil || !got.Equal(value.Int(2)) {
		t.Errorf("add after trap = %v, %v", got, err)
	}
}

func TestWazero_Errors(t *testing.T) {
	ctx := context.Background()
	s := loadCalc(t, WazeroConfig{})

	_, err := s.Invoke(ctx, "missing", nil)
	if !stderrors.Is(err, ErrNotExported) {
		t.Errorf("missing: err = %v, want ErrNotExported", err)
	}

	tests := []struct {
		name string
		fn   string
		args []value.Value
	}{
		{"arity", "add", []value.Value{value.Int(1)}},
		{"string arg", "add", []value.Value{value.Str("1"), value.Int(1)}},
		{"overflow", "add", []value.Value{value.Int(1 << 40), value.Int(1)}},
		{"array arg", "half", []value.Value{value.List()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Invoke(ctx, tt.fn, tt.args)
			if !stderrors.Is(err, errors.ErrTypeConversion) {
				t.Errorf("err = %v, want type conversion", err)
			}
		})
	}
}

func TestWazero_DeclaredSignature(t *testing.T) {
	ctx := context.Background()
	s := loadCalc(t, WazeroConfig{
		Signatures: signature.MustParse(`
			mul: func(a: u32, b: u32) -> u32;
			add: func(a: s32) -> s32;
		`),
	})

	got, err := s.Invoke(ctx, "mul", []value.Value{value.Int(65536), value.Int(65535)})
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if !got.Equal(value.Int(4294901760)) {
		t.Errorf("mul = %s, want 4294901760", got)
	}

	_, err = s.Invoke(ctx, "mul", []value.Value{value.Int(-1), value.Int(1)})
	if !stderrors.Is(err, errors.ErrTypeConversion) {
		t.Errorf("negative u32: err = %v, want type conversion", err)
	}

	_, err = s.Invoke(ctx, "add", []value.Value{value.Int(1)})
	if !stderrors.Is(err, errors.ErrTypeConversion) {
		t.Errorf("mismatched declaration: err = %v, want type conversion", err)
	}
}

func TestWazero_LoadErrors(t *testing.T) {
	ctx := context.Background()
	w := NewWazero(WazeroConfig{})

	if _, err := w.Load(ctx, filepath.Join(t.TempDir(), "absent.wasm")); !os.IsNotExist(err) {
		t.Errorf("missing file: err = %v, want not exist", err)
	}

	_, err := w.LoadBytes(ctx, "junk", []byte("not wasm"))
	var ee *EngineError
	if !stderrors.As(err, &ee) {
		t.Errorf("invalid module: err = %v, want *EngineError", err)
	}
}

func TestWazero_Close(t *testing.T) {
	ctx := context.Background()
	s, err := NewWazero(WazeroConfig{}).LoadBytes(ctx, "calc", calcWASM)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.Lookup("add") {
		t.Error("Lookup after Close = true")
	}
	_, err = s.Invoke(ctx, "add", []value.Value{value.Int(1), value.Int(2)})
	if kind, _ := errors.KindOf(err); kind != errors.KindNotInitialized {
		t.Errorf("kind = %q, want not_initialized", kind)
	}
}

// spinWASM exports spin() which loops forever and add(i32,i32)->i32.
var spinWASM = concat(
	[]byte{0x00, 0x61, 0x73, 0x6d},
	[]byte{0x01, 0x00, 0x00, 0x00},
	section(0x01, concat(
		[]byte{0x02},
		[]byte{0x60, 0x00, 0x00},
		[]byte{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f},
	)...),
	section(0x03, 0x02, 0x00, 0x01),
	section(0x07, concat(
		[]byte{0x02},
		export("spin", 0),
		export("add", 1),
	)...),
	section(0x0a, concat(
		[]byte{0x02},
		// spin: loop br 0 end
		body(0x03, 0x40, 0x0c, 0x00, 0x0b),
		body(0x20, 0x00, 0x20, 0x01, 0x6a),
	)...),
)

func TestWazero_AbortedCallKeepsSession(t *testing.T) {
	ctx := context.Background()
	s, err := NewWazero(WazeroConfig{CloseOnContextDone: true}).LoadBytes(ctx, "spin", spinWASM)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	defer s.Close(ctx)

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := s.Invoke(timeout, "spin", nil); err == nil {
		t.Fatal("spin should be aborted by the deadline")
	}

	for i := 0; i < 2; i++ {
		got, err := s.Invoke(ctx, "add", []value.Value{value.Int(5), value.Int(9)})
		if err != nil {
			t.Fatalf("call %d after abort: %v", i, err)
		}
		if !got.Equal(value.Int(14)) {
			t.Errorf("add = %s, want 14", got)
		}
	}
	if !s.Lookup("add") {
		t.Error("Lookup(add) = false after abort")
	}
}
