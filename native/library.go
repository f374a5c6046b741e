package native

import (
	stderrors "errors"
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/signature"
	"github.com/wippyai/bridge-runtime/transcoder"
)

// ErrSymbolNotFound is returned by Library.Lookup for an absent export.
var ErrSymbolNotFound = stderrors.New("symbol not found")

// Loader opens shared libraries.
type Loader interface {
	Open(path string) (Library, error)
}

// Library is one opened shared library.
type Library interface {
	// Lookup resolves an exported symbol. Absent symbols return an error
	// wrapping ErrSymbolNotFound.
	Lookup(symbol string) (Proc, error)
	Close() error
}

// Proc is a resolved entry point. Args are already lowered to the Go scalar
// types matching sig.Params; the result must match sig.Result().
type Proc interface {
	Call(sig signature.Signature, args []any) (any, error)
}

// FuncType builds the Go func type for a native signature.
func FuncType(sig signature.Signature) (reflect.Type, error) {
	if len(sig.Results) > 1 {
		return nil, errors.Unsupported(errors.PhaseInvoke, "multiple native results")
	}

	in := make([]reflect.Type, len(sig.Params))
	for i, p := range sig.Params {
		t, err := goType(p)
		if err != nil {
			return nil, err
		}
		in[i] = t
	}

	var out []reflect.Type
	if r := sig.Result(); r != nil {
		t, err := goType(r)
		if err != nil {
			return nil, err
		}
		out = []reflect.Type{t}
	}

	return reflect.FuncOf(in, out, false), nil
}

func goType(t wit.Type) (reflect.Type, error) {
	switch t.(type) {
	case wit.Bool:
		return reflect.TypeOf(false), nil
	case wit.S8:
		return reflect.TypeOf(int8(0)), nil
	case wit.S16:
		return reflect.TypeOf(int16(0)), nil
	case wit.S32:
		return reflect.TypeOf(int32(0)), nil
	case wit.S64:
		return reflect.TypeOf(int64(0)), nil
	case wit.U8:
		return reflect.TypeOf(uint8(0)), nil
	case wit.U16:
		return reflect.TypeOf(uint16(0)), nil
	case wit.U32:
		return reflect.TypeOf(uint32(0)), nil
	case wit.U64:
		return reflect.TypeOf(uint64(0)), nil
	case wit.F32:
		return reflect.TypeOf(float32(0)), nil
	case wit.F64:
		return reflect.TypeOf(float64(0)), nil
	case wit.Char:
		return reflect.TypeOf(rune(0)), nil
	case wit.String:
		return reflect.TypeOf(""), nil
	default:
		return nil, errors.Unsupported(errors.PhaseInvoke, "native type "+transcoder.TypeName(t))
	}
}
