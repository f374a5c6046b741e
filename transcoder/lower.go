package transcoder

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/value"
)

// TypeName returns the WIT spelling of a scalar type.
func TypeName(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	case nil:
		return "none"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// InferType picks the native type for an argument when no signature is
// declared: integers that fit in 32 bits are s32 (C int), wider ones s64,
// floats f64, booleans bool and strings string. Containers and null have
// no native scalar form.
func InferType(v value.Value) (wit.Type, error) {
	switch v.Type() {
	case value.TypeInteger:
		n, _ := v.AsInt()
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return wit.S32{}, nil
		}
		return wit.S64{}, nil
	case value.TypeFloat:
		return wit.F64{}, nil
	case value.TypeBoolean:
		return wit.Bool{}, nil
	case value.TypeString:
		return wit.String{}, nil
	default:
		return nil, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
			GoType(v.Type().String()).
			Detail("no native scalar form").
			Build()
	}
}

func integerIn(v value.Value, t wit.Type, lo int64, hi uint64) (int64, uint64, error) {
	if v.Type() != value.TypeInteger {
		return 0, 0, errors.TypeMismatch(errors.PhaseConvert, nil, v.Type().String(), TypeName(t))
	}
	n, _ := v.AsInt()
	if n < lo || (n >= 0 && uint64(n) > hi) {
		return 0, 0, errors.Overflow(errors.PhaseConvert, nil, n, TypeName(t))
	}
	return n, uint64(n), nil
}

// LowerNative converts v to the Go scalar a native entry point expects for t.
func LowerNative(v value.Value, t wit.Type) (any, error) {
	switch t.(type) {
	case wit.S8:
		n, _, err := integerIn(v, t, math.MinInt8, math.MaxInt8)
		return int8(n), err
	case wit.S16:
		n, _, err := integerIn(v, t, math.MinInt16, math.MaxInt16)
		return int16(n), err
	case wit.S32:
		n, _, err := integerIn(v, t, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case wit.S64:
		n, _, err := integerIn(v, t, math.MinInt64, math.MaxInt64)
		return n, err
	case wit.U8:
		_, u, err := integerIn(v, t, 0, math.MaxUint8)
		return uint8(u), err
	case wit.U16:
		_, u, err := integerIn(v, t, 0, math.MaxUint16)
		return uint16(u), err
	case wit.U32:
		_, u, err := integerIn(v, t, 0, math.MaxUint32)
		return uint32(u), err
	case wit.U64:
		_, u, err := integerIn(v, t, 0, math.MaxInt64)
		return u, err
	case wit.F32:
		f, err := floatOf(v, t)
		return float32(f), err
	case wit.F64:
		return floatOf(v, t)
	case wit.Bool:
		b, err := v.AsBool()
		if err != nil {
			return false, errors.TypeMismatch(errors.PhaseConvert, nil, v.Type().String(), "bool")
		}
		return b, nil
	case wit.Char:
		return charOf(v)
	case wit.String:
		s, err := v.AsString()
		if err != nil {
			return "", errors.TypeMismatch(errors.PhaseConvert, nil, v.Type().String(), "string")
		}
		return s, nil
	default:
		return nil, errors.Unsupported(errors.PhaseConvert, "native type "+TypeName(t))
	}
}

func floatOf(v value.Value, t wit.Type) (float64, error) {
	if v.Type() != value.TypeFloat && v.Type() != value.TypeInteger {
		return 0, errors.TypeMismatch(errors.PhaseConvert, nil, v.Type().String(), TypeName(t))
	}
	f, _ := v.AsFloat()
	return f, nil
}

func charOf(v value.Value) (rune, error) {
	s, err := v.AsString()
	if err != nil || utf8.RuneCountInString(s) != 1 {
		return 0, errors.TypeMismatch(errors.PhaseConvert, nil, v.Type().String(), "char")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// LowerFlat converts v to a single core wasm word for t.
// Strings need linear memory and are not flat.
func LowerFlat(v value.Value, t wit.Type) (uint64, error) {
	switch t.(type) {
	case wit.String:
		return 0, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
			GoType(v.Type().String()).
			Target("string").
			Detail("strings are not flat core values").
			Build()
	case wit.F32:
		f, err := floatOf(v, t)
		return api.EncodeF32(float32(f)), err
	case wit.F64:
		f, err := floatOf(v, t)
		return api.EncodeF64(f), err
	case wit.S64:
		n, err := LowerNative(v, t)
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(n.(int64)), nil
	case wit.U64:
		n, err := LowerNative(v, t)
		if err != nil {
			return 0, err
		}
		return n.(uint64), nil
	case wit.Bool:
		b, err := LowerNative(v, t)
		if err != nil {
			return 0, err
		}
		if b.(bool) {
			return 1, nil
		}
		return 0, nil
	case wit.Char:
		r, err := charOf(v)
		return api.EncodeU32(uint32(r)), err
	}

	n, err := LowerNative(v, t)
	if err != nil {
		return 0, err
	}
	switch x := n.(type) {
	case int8:
		return api.EncodeI32(int32(x)), nil
	case int16:
		return api.EncodeI32(int32(x)), nil
	case int32:
		return api.EncodeI32(x), nil
	case uint8:
		return api.EncodeU32(uint32(x)), nil
	case uint16:
		return api.EncodeU32(uint32(x)), nil
	case uint32:
		return api.EncodeU32(x), nil
	}
	return 0, errors.Unsupported(errors.PhaseConvert, "flat type "+TypeName(t))
}

// LiftFlat converts a core wasm word of type t back to a bridge value.
func LiftFlat(word uint64, t wit.Type) (value.Value, error) {
	switch t.(type) {
	case wit.S8:
		return value.Int(int64(int8(word))), nil
	case wit.S16:
		return value.Int(int64(int16(word))), nil
	case wit.S32:
		return value.Int(int64(api.DecodeI32(word))), nil
	case wit.U8:
		return value.Int(int64(uint8(word))), nil
	case wit.U16:
		return value.Int(int64(uint16(word))), nil
	case wit.U32:
		return value.Int(int64(api.DecodeU32(word))), nil
	case wit.S64:
		return value.Int(int64(word)), nil
	case wit.U64:
		if word > math.MaxInt64 {
			return value.Value{}, errors.Overflow(errors.PhaseConvert, nil, word, "int")
		}
		return value.Int(int64(word)), nil
	case wit.F32:
		return value.Float(float64(api.DecodeF32(word))), nil
	case wit.F64:
		return value.Float(api.DecodeF64(word)), nil
	case wit.Bool:
		return value.Bool(uint32(word) != 0), nil
	case wit.Char:
		return value.Str(string(rune(api.DecodeU32(word)))), nil
	default:
		return value.Value{}, errors.Unsupported(errors.PhaseConvert, "flat type "+TypeName(t))
	}
}

// FromCoreType maps a wasm core value type to its natural WIT scalar.
func FromCoreType(vt api.ValueType) (wit.Type, error) {
	switch vt {
	case api.ValueTypeI32:
		return wit.S32{}, nil
	case api.ValueTypeI64:
		return wit.S64{}, nil
	case api.ValueTypeF32:
		return wit.F32{}, nil
	case api.ValueTypeF64:
		return wit.F64{}, nil
	default:
		return nil, errors.Unsupported(errors.PhaseConvert, "core type "+api.ValueTypeName(vt))
	}
}
