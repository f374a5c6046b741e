package registry

import (
	"context"
	"fmt"
	"sync"

	bridgeruntime "github.com/wippyai/bridge-runtime"
	"github.com/wippyai/bridge-runtime/errors"
)

const backend = string(bridgeruntime.BackendRegistry)

// Func is a registered callable. Arguments arrive positionally as host values
// and the result is returned to the caller unconverted.
type Func func(ctx context.Context, args []any) (any, error)

// Entry describes one registered function.
type Entry struct {
	fn      Func
	coerce  func(args []any) ([]any, error)
	Name    string
	MinArgs int
	MaxArgs int // -1 means unbounded
}

// Arity reports the declared argument count, or -1 when any count is accepted.
func (e Entry) Arity() int {
	if e.MinArgs == e.MaxArgs {
		return e.MinArgs
	}
	return -1
}

// Option configures an entry at registration.
type Option func(*Entry)

// WithArity declares that the function takes exactly n arguments.
func WithArity(n int) Option {
	return func(e *Entry) {
		e.MinArgs = n
		e.MaxArgs = n
	}
}

// WithArgs declares a variadic function taking at least n arguments.
func WithArgs(n int) Option {
	return func(e *Entry) {
		e.MinArgs = n
		e.MaxArgs = -1
	}
}

// Registry is a name-keyed table of local functions. Safe for concurrent use.
type Registry struct {
	entries map[string]*Entry
	order   []string
	mu      sync.RWMutex
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Register adds fn under name. A duplicate name fails and leaves the
// existing entry in place.
func (r *Registry) Register(name string, fn Func, opts ...Option) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegistry, "function name cannot be empty")
	}
	if fn == nil {
		return errors.InvalidInput(errors.PhaseRegistry, "function cannot be nil")
	}

	e := &Entry{Name: name, fn: fn, MaxArgs: -1}
	for _, opt := range opts {
		opt(e)
	}
	return r.add(e)
}

func (r *Registry) add(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Name]; exists {
		return errors.DuplicateName(e.Name)
	}
	r.entries[e.Name] = e
	r.order = append(r.order, e.Name)
	return nil
}

// addAll adds every entry or none of them.
func (r *Registry) addAll(entries []*Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		if _, exists := r.entries[e.Name]; exists {
			return errors.DuplicateName(e.Name)
		}
	}
	for _, e := range entries {
		r.entries[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	return nil
}

// Unregister removes name. Removing an absent name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) HasFunction(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Lookup returns a copy of the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Call invokes name with args. An absent name fails with not_found and a
// wrong argument count with type_mismatch. Any error or panic raised by the
// callee is returned as a single runtime_invocation error.
func (r *Registry) Call(ctx context.Context, name string, args ...any) (any, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, errors.FunctionNotFound(errors.PhaseRegistry, backend, name)
	}

	if len(args) < e.MinArgs || (e.MaxArgs >= 0 && len(args) > e.MaxArgs) {
		return nil, errors.New(errors.PhaseRegistry, errors.KindTypeMismatch).
			Backend(backend).
			Function(name).
			Detail("expected %s arguments, got %d", arityText(e), len(args)).
			Build()
	}

	if e.coerce != nil {
		coerced, err := e.coerce(args)
		if err != nil {
			return nil, errors.Invocation(backend, name, err)
		}
		args = coerced
	}

	result, err := invoke(ctx, e.fn, args)
	if err != nil {
		return nil, errors.Runtime(backend, name, err)
	}
	return result, nil
}

func invoke(ctx context.Context, fn Func, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, errors.Recovered(r)
		}
	}()
	return fn(ctx, args)
}

// ListFunctions returns the registered names in insertion order.
func (r *Registry) ListFunctions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func arityText(e Entry) string {
	if e.MaxArgs < 0 {
		return fmt.Sprintf("at least %d", e.MinArgs)
	}
	return fmt.Sprintf("%d", e.MinArgs)
}
