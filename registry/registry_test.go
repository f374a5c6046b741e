package registry

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/wippyai/bridge-runtime/errors"
)

func constant(v any) Func {
	return func(ctx context.Context, args []any) (any, error) {
		return v, nil
	}
}

func TestRegister_Duplicate(t *testing.T) {
	ctx := context.Background()
	r := New()

	if err := r.Register("f", constant("fn1")); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.Register("f", constant("fn2"))
	if !stderrors.Is(err, errors.ErrDuplicateName) {
		t.Fatalf("err = %v, want duplicate name", err)
	}

	got, err := r.Call(ctx, "f")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != "fn1" {
		t.Errorf("call = %v, want fn1", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegister_Invalid(t *testing.T) {
	r := New()
	if err := r.Register("", constant(1)); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register("f", nil); err == nil {
		t.Error("expected error for nil func")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestCall_NotFound(t *testing.T) {
	r := New()
	_, err := r.Call(context.Background(), "missing")
	if !stderrors.Is(err, errors.ErrFunctionNotFound) {
		t.Fatalf("err = %v, want function not found", err)
	}

	var be *errors.Error
	if !stderrors.As(err, &be) || be.Function != "missing" || be.Backend != "registry" {
		t.Errorf("error = %+v", be)
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	r.Unregister("missing")

	_ = r.Register("a", constant(1))
	_ = r.Register("b", constant(2))
	_ = r.Register("c", constant(3))

	r.Unregister("b")
	r.Unregister("b")

	if r.HasFunction("b") {
		t.Error("b still registered")
	}
	if got := r.ListFunctions(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("ListFunctions = %v, want [a c]", got)
	}

	if err := r.Register("b", constant(4)); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if got := r.ListFunctions(); !reflect.DeepEqual(got, []string{"a", "c", "b"}) {
		t.Errorf("ListFunctions = %v, want [a c b]", got)
	}
}

func TestListFunctions_Snapshot(t *testing.T) {
	r := New()
	_ = r.Register("x", constant(1))
	names := r.ListFunctions()
	names[0] = "mutated"
	if !r.HasFunction("x") || r.ListFunctions()[0] != "x" {
		t.Error("ListFunctions must return a copy")
	}
}

func TestCall_PassesArgsAndResult(t *testing.T) {
	r := New()
	slice := []int{1, 2}
	_ = r.Register("echo", func(ctx context.Context, args []any) (any, error) {
		return args, nil
	})

	got, err := r.Call(context.Background(), "echo", 1, "two", slice)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	want := []any{1, "two", slice}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("call = %#v, want %#v", got, want)
	}
}

func TestCall_WrapsCalleeFailure(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name string
		fn   Func
	}{
		{"error", func(ctx context.Context, args []any) (any, error) { return nil, cause }},
		{"panic", func(ctx context.Context, args []any) (any, error) { panic(cause) }},
		{"panic string", func(ctx context.Context, args []any) (any, error) { panic("kaput") }},
		{"bridge error", func(ctx context.Context, args []any) (any, error) {
			return nil, errors.FunctionNotFound(errors.PhaseResolve, "native", "inner")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			_ = r.Register("f", tt.fn)

			_, err := r.Call(context.Background(), "f")
			var be *errors.Error
			if !stderrors.As(err, &be) {
				t.Fatalf("err = %v, want *errors.Error", err)
			}
			if be.Kind != errors.KindRuntimeInvocation {
				t.Errorf("Kind = %q, want runtime_invocation", be.Kind)
			}
			if be.Function != "f" {
				t.Errorf("Function = %q, want f", be.Function)
			}
			if be.Cause == nil {
				t.Error("Cause must be preserved")
			}
			if tt.name == "error" && !stderrors.Is(err, cause) {
				t.Error("errors.Is(err, cause) = false")
			}
		})
	}
}

func TestCall_Arity(t *testing.T) {
	r := New()
	_ = r.Register("two", constant(nil), WithArity(2))
	_ = r.Register("some", constant(nil), WithArgs(1))

	tests := []struct {
		name string
		fn   string
		args []any
		ok   bool
	}{
		{"exact", "two", []any{1, 2}, true},
		{"too few", "two", []any{1}, false},
		{"too many", "two", []any{1, 2, 3}, false},
		{"variadic min", "some", []any{1}, true},
		{"variadic more", "some", []any{1, 2, 3}, true},
		{"variadic none", "some", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Call(context.Background(), tt.fn, tt.args...)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !stderrors.Is(err, errors.ErrTypeConversion) {
				t.Errorf("err = %v, want type conversion", err)
			}
		})
	}

	e, _ := r.Lookup("two")
	if e.Arity() != 2 {
		t.Errorf("Arity = %d, want 2", e.Arity())
	}
	e, _ = r.Lookup("some")
	if e.Arity() != -1 {
		t.Errorf("Arity = %d, want -1", e.Arity())
	}
}

func TestRegisterFunc(t *testing.T) {
	ctx := context.Background()
	r := New()

	err := r.RegisterFunc("add", func(ctx context.Context, a, b uint32) uint32 {
		return a + b
	})
	if err != nil {
		t.Fatalf("register func: %v", err)
	}

	got, err := r.Call(ctx, "add", 2, int64(3))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != uint32(5) {
		t.Errorf("add(2, 3) = %#v, want uint32(5)", got)
	}

	_, err = r.Call(ctx, "add", -1, 3)
	if !stderrors.Is(err, errors.ErrTypeConversion) {
		t.Errorf("negative to uint32: err = %v, want type conversion", err)
	}

	_, err = r.Call(ctx, "add", "2", 3)
	if !stderrors.Is(err, errors.ErrTypeConversion) {
		t.Errorf("string to uint32: err = %v, want type conversion", err)
	}

	_, err = r.Call(ctx, "add", 2)
	if !stderrors.Is(err, errors.ErrTypeConversion) {
		t.Errorf("missing arg: err = %v, want type conversion", err)
	}
}

func TestRegisterFunc_Shapes(t *testing.T) {
	ctx := context.Background()
	cause := stderrors.New("refused")

	tests := []struct {
		name    string
		fn      any
		args    []any
		want    any
		wantErr bool
	}{
		{"no result", func() {}, nil, nil, false},
		{"value", func(s string) int { return len(s) }, []any{"abc"}, 3, false},
		{"value and error", func(x float64) (float64, error) { return x * 2, nil }, []any{3}, float64(6), false},
		{"error only", func() error { return cause }, nil, nil, true},
		{"variadic", func(xs ...int) int { return len(xs) }, []any{1, 2, 3}, 3, false},
		{"variadic empty", func(prefix string, xs ...int) string { return fmt.Sprint(prefix, len(xs)) }, []any{"n"}, "n0", false},
		{"nil into slice", func(xs []int) bool { return xs == nil }, []any{nil}, true, false},
		{"any param", func(v any) any { return v }, []any{[]any{1}}, []any{1}, false},
		{"float32 narrowing", func(f float32) float32 { return f }, []any{1.5}, float32(1.5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			if err := r.RegisterFunc("f", tt.fn); err != nil {
				t.Fatalf("register: %v", err)
			}
			got, err := r.Call(ctx, "f", tt.args...)
			if tt.wantErr {
				if !stderrors.Is(err, errors.ErrRuntimeInvocation) || !stderrors.Is(err, cause) {
					t.Errorf("err = %v, want runtime invocation wrapping cause", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("result = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRegisterFunc_Invalid(t *testing.T) {
	r := New()
	tests := []struct {
		name string
		fn   any
	}{
		{"nil", nil},
		{"not a func", 42},
		{"nil func", (func())(nil)},
		{"two values", func() (int, int) { return 1, 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.RegisterFunc("f", tt.fn); !stderrors.Is(err, errors.ErrTypeConversion) {
				t.Errorf("err = %v, want type mismatch", err)
			}
		})
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

type calculatorHost struct {
	mu    sync.Mutex
	calls int
}

func (h *calculatorHost) Add(a, b int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return a + b
}

func (h *calculatorHost) GetHTTPURL(ctx context.Context) string {
	return "http://localhost"
}

type explicitHost struct{}

func (explicitHost) Register() map[string]any {
	return map[string]any{
		"[method]fields.append": func(s string) string { return s + "!" },
	}
}

func TestRegisterHost(t *testing.T) {
	ctx := context.Background()
	r := New()
	h := &calculatorHost{}

	if err := r.RegisterHost(h); err != nil {
		t.Fatalf("register host: %v", err)
	}
	if !r.HasFunction("add") || !r.HasFunction("get-http-url") {
		t.Fatalf("functions = %v", r.ListFunctions())
	}

	got, err := r.Call(ctx, "add", 5, 9)
	if err != nil {
		t.Fatalf("call add: %v", err)
	}
	if got != int64(14) || h.calls != 1 {
		t.Errorf("add = %v (calls %d), want 14 (calls 1)", got, h.calls)
	}

	if err := r.RegisterHost(explicitHost{}); err != nil {
		t.Fatalf("register explicit host: %v", err)
	}
	got, err = r.Call(ctx, "[method]fields.append", "hi")
	if err != nil || got != "hi!" {
		t.Errorf("explicit call = %v, %v", got, err)
	}

	if err := r.RegisterHost(h); !stderrors.Is(err, errors.ErrDuplicateName) {
		t.Errorf("second register: err = %v, want duplicate name", err)
	}
}

type mapHost map[string]any

func (h mapHost) Register() map[string]any { return h }

func TestRegisterHost_Atomic(t *testing.T) {
	double := func(n int64) int64 { return n * 2 }

	tests := []struct {
		name     string
		existing []string
		host     mapHost
		wantErr  error
		want     []string
	}{
		{
			name: "sorted order",
			host: mapHost{"zeta": double, "alpha": double, "mid": double, "beta": double},
			want: []string{"alpha", "beta", "mid", "zeta"},
		},
		{
			name:     "collision adds nothing",
			existing: []string{"mid"},
			host:     mapHost{"zeta": double, "alpha": double, "mid": double},
			wantErr:  errors.ErrDuplicateName,
			want:     []string{"mid"},
		},
		{
			name:    "invalid function adds nothing",
			host:    mapHost{"alpha": double, "broken": 42},
			wantErr: errors.ErrTypeConversion,
			want:    []string{},
		},
		{
			name:    "empty name adds nothing",
			host:    mapHost{"alpha": double, "": double},
			wantErr: &errors.Error{Kind: errors.KindInvalidInput},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			for _, name := range tt.existing {
				if err := r.Register(name, constant(nil)); err != nil {
					t.Fatalf("register %s: %v", name, err)
				}
			}
			for i := 0; i < 5; i++ {
				err := r.RegisterHost(tt.host)
				if tt.wantErr == nil && err != nil {
					t.Fatalf("register host: %v", err)
				}
				if tt.wantErr != nil && !stderrors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if got := r.ListFunctions(); !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("functions = %v, want %v", got, tt.want)
				}
				if tt.wantErr == nil {
					break
				}
			}
		})
	}
}

func TestToKebabCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Add", "add"},
		{"GetValue", "get-value"},
		{"GetHTTPURL", "get-http-url"},
		{"HTTPServer", "http-server"},
		{"ID", "id"},
	}
	for _, tt := range tests {
		if got := toKebabCase(tt.in); got != tt.want {
			t.Errorf("toKebabCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("f%d", i)
			_ = r.Register(name, constant(i))
			if _, err := r.Call(ctx, name); err != nil {
				t.Errorf("call %s: %v", name, err)
			}
			_ = r.ListFunctions()
			r.Unregister(name)
		}(i)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
