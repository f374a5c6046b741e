// Package transcoder converts between host Go values, bridge values and the
// representations a backend accepts.
//
//	┌───────────────────────────────────────────────────────────────┐
//	│ Go value ←→ [Converter] ←→ value.Value ←→ [Lower/Lift] ←→ ABI │
//	└───────────────────────────────────────────────────────────────┘
//
// # Host Conversion
//
// Converter.ToValue follows value.Classify and recurses into slices, arrays
// and string-keyed maps. A slice or map that contains itself fails with a
// cyclic_value error instead of recursing forever. Converter.FromValue
// returns canonical host values, so for host values built from int64,
// float64, string, bool, []any, map[string]any and nil:
//
//	FromValue(ToValue(v)) == v
//
// Nil containers are the exception. A nil []any or nil map[string]any
// converts to an empty array or object, which FromValue returns as the empty
// []any{} or map[string]any{}. Only an untyped nil survives as nil.
//
// # Canonical Form
//
// Serialize writes the tagged transport form used when a backend cannot take
// in-process values:
//
//	{"type":"array","value":[{"type":"int","value":1},{"type":"string","value":"a"}]}
//
// Deserialize is its inverse.
//
// # Scalar Lowering
//
// Backends speak WIT scalar types:
//
//	WIT Type     Native (Go)    Flat (core wasm)
//	─────────────────────────────────────────────
//	s8..s32      int8..int32    i32
//	u8..u32      uint8..uint32  i32
//	s64, u64     int64, uint64  i64
//	f32, f64     float32/64     f32, f64
//	bool         bool           i32 (0/1)
//	char         rune           i32
//	string       string         not flat
//
// LowerNative and LowerFlat fail with type_mismatch for containers, out of
// range integers and mismatched tags. Integers widen to floats.
package transcoder
