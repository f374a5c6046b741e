// Package native calls functions exported by shared libraries.
//
// A Module wraps one opened library. Names are resolved to symbols when they
// are first invoked, so opening a library that lacks some symbol succeeds and
// only a call to that symbol fails with a not_found error.
//
// Arguments are passed with the platform C calling convention for primitive
// scalars only. Without a declared signature the types come from the values
// (int as s32 or s64, float as f64, bool, string as char*) and the result is
// read as a C int. Declared signatures use WIT syntax:
//
//	mod, err := native.Open("./libm.so.6", conv,
//	    native.WithSignatures(`cbrt: func(x: f64) -> f64;`))
//	out, err := mod.Invoke(ctx, "cbrt", 27.0) // float64(3)
//
// Arrays, objects and null have no native form and fail with type_mismatch.
//
// The default loader uses purego on darwin, freebsd and linux. Libraries are
// not assumed to be reentrant; concurrent calls into one library are the
// caller's responsibility.
package native
