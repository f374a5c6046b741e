// Package errors provides structured error types for the bridge runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the backend and function involved, the Go and target type
// names for conversion failures, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
//		Path("args", "0").
//		GoType("array").
//		Target("s32").
//		Detail("containers cannot cross the native boundary").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FunctionNotFound(errors.PhaseResolve, "native", "add")
//	err := errors.Runtime("lua", "add", cause)
//
// Callers branch on kind with the standard library:
//
//	if errors.Is(err, errors.ErrUnsupported) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
