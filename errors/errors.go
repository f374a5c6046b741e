package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConvert   Phase = "convert"   // host <-> bridge value
	PhaseSerialize Phase = "serialize" // canonical text form
	PhaseRegistry  Phase = "registry"  // local function table
	PhaseLoad      Phase = "load"      // backend open
	PhaseResolve   Phase = "resolve"   // name -> entry point
	PhaseInvoke    Phase = "invoke"    // call into backend
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseParse     Phase = "parse"     // signature parsing
)

// Kind categorizes the error
type Kind string

const (
	KindInitialization    Kind = "initialization"
	KindNotFound          Kind = "not_found"
	KindDuplicateName     Kind = "duplicate_name"
	KindTypeMismatch      Kind = "type_mismatch"
	KindRuntimeInvocation Kind = "runtime_invocation"
	KindUnsupported       Kind = "unsupported"
	KindCyclicValue       Kind = "cyclic_value"
	KindInvalidInput      Kind = "invalid_input"
	KindNotInitialized    Kind = "not_initialized"
)

// Code mirrors the numeric error codes shared with the other bridge runtimes.
type Code int

const (
	CodeSuccess Code = iota
	CodeFunctionNotFound
	CodeTypeConversion
	CodeRuntime
	CodeInitialization
	CodeUnsupported
)

// Sentinels for errors.Is. Matching is by Kind only, so a sentinel matches
// an error from any phase.
var (
	ErrInitialization    = &Error{Kind: KindInitialization}
	ErrFunctionNotFound  = &Error{Kind: KindNotFound}
	ErrDuplicateName     = &Error{Kind: KindDuplicateName}
	ErrTypeConversion    = &Error{Kind: KindTypeMismatch}
	ErrRuntimeInvocation = &Error{Kind: KindRuntimeInvocation}
	ErrUnsupported       = &Error{Kind: KindUnsupported}
	ErrCyclicValue       = &Error{Kind: KindCyclicValue}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Backend  string
	Function string
	GoType   string
	Target   string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Backend != "" || e.Function != "" {
		b.WriteString(" in ")
		if e.Backend != "" {
			b.WriteString(e.Backend)
			if e.Function != "" {
				b.WriteByte(':')
			}
		}
		b.WriteString(e.Function)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.Target != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.Target != "":
			b.WriteString(e.GoType)
			b.WriteString(" -> ")
			b.WriteString(e.Target)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("target ")
			b.WriteString(e.Target)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Target != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a Phase
// matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Code returns the numeric code for the error kind.
func (e *Error) Code() Code {
	switch e.Kind {
	case KindNotFound:
		return CodeFunctionNotFound
	case KindTypeMismatch, KindCyclicValue:
		return CodeTypeConversion
	case KindInitialization, KindNotInitialized:
		return CodeInitialization
	case KindUnsupported:
		return CodeUnsupported
	default:
		return CodeRuntime
	}
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Target sets the target type name (bridge tag or native type)
func (b *Builder) Target(t string) *Builder {
	b.err.Target = t
	return b
}

// Backend sets the backend kind
func (b *Builder) Backend(name string) *Builder {
	b.err.Backend = name
	return b
}

// Function sets the function name
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type conversion error
func TypeMismatch(phase Phase, path []string, goType, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		Target: target,
	}
}

// Overflow creates a type conversion error for a value outside the target range
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Target: target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// Cyclic creates a cyclic value error
func Cyclic(path []string, goType string) *Error {
	return &Error{
		Phase:  PhaseConvert,
		Kind:   KindCyclicValue,
		Path:   path,
		GoType: goType,
		Detail: "container references itself",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Initialization creates a backend open error
func Initialization(backend, locator string, cause error) *Error {
	return &Error{
		Phase:   PhaseLoad,
		Kind:    KindInitialization,
		Backend: backend,
		Detail:  fmt.Sprintf("open %q", locator),
		Cause:   cause,
	}
}

// FunctionNotFound creates a resolution error for name
func FunctionNotFound(phase Phase, backend, name string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindNotFound,
		Backend:  backend,
		Function: name,
		Detail:   fmt.Sprintf("function %q not found", name),
	}
}

// DuplicateName creates a registration conflict error
func DuplicateName(name string) *Error {
	return &Error{
		Phase:    PhaseRegistry,
		Kind:     KindDuplicateName,
		Function: name,
		Detail:   fmt.Sprintf("function %q is already registered", name),
	}
}

// NotInitialized creates a not-initialized error for a closed or missing handle
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// passthrough kinds keep their identity across the invocation boundary.
var passthrough = map[Kind]bool{
	KindNotFound:       true,
	KindTypeMismatch:   true,
	KindCyclicValue:    true,
	KindUnsupported:    true,
	KindNotInitialized: true,
}

// Invocation applies the uniform wrapping policy at a backend boundary.
// Bridge errors of a passthrough kind keep their kind and gain function and
// backend context; every other failure becomes a single runtime_invocation
// error wrapping cause. Only the outermost error is inspected, so a callee
// that returns a wrapped bridge error is still reported as a runtime failure.
// Returns nil for a nil cause.
func Invocation(backend, function string, cause error) error {
	if cause == nil {
		return nil
	}

	if be, ok := cause.(*Error); ok {
		if be.Kind == KindRuntimeInvocation {
			return be
		}
		if passthrough[be.Kind] {
			out := *be
			if out.Backend == "" {
				out.Backend = backend
			}
			if out.Function == "" {
				out.Function = function
			}
			return &out
		}
	}

	return Runtime(backend, function, cause)
}

// Runtime creates a runtime invocation error for a callee failure.
func Runtime(backend, function string, cause error) *Error {
	return &Error{
		Phase:    PhaseInvoke,
		Kind:     KindRuntimeInvocation,
		Backend:  backend,
		Function: function,
		Detail:   fmt.Sprintf("call %q failed", function),
		Cause:    cause,
	}
}

// Recovered converts a recovered panic value into an error.
func Recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
