package registry

import (
	"context"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/wippyai/bridge-runtime/errors"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisterFunc registers an arbitrary Go function. An optional leading
// context.Context parameter receives the call context. The function may
// return nothing, a value, an error, or a value and an error. Arguments are
// coerced to the parameter types; numeric arguments must fit.
func (r *Registry) RegisterFunc(name string, fn any) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegistry, "function name cannot be empty")
	}
	e, err := adapt(name, fn)
	if err != nil {
		return err
	}
	return r.add(e)
}

// ExplicitRegistrar lets a host supply exact function names instead of the
// derived kebab-case method names.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// RegisterHost registers every exported method of h under its kebab-case
// name (GetHTTPURL becomes get-http-url), or the functions returned by
// Register when h implements ExplicitRegistrar. Explicit names register in
// sorted order. Every function is checked before any is added, so a failure
// leaves the registry unchanged.
func (r *Registry) RegisterHost(h any) error {
	if h == nil {
		return errors.InvalidInput(errors.PhaseRegistry, "host cannot be nil")
	}

	var entries []*Entry
	if er, ok := h.(ExplicitRegistrar); ok {
		fns := er.Register()
		names := make([]string, 0, len(fns))
		for name := range fns {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if name == "" {
				return errors.InvalidInput(errors.PhaseRegistry, "function name cannot be empty")
			}
			e, err := adapt(name, fns[name])
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return r.addAll(entries)
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	seen := make(map[string]bool)
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() {
			continue
		}
		name := toKebabCase(method.Name)
		// Distinct methods can collapse to one name (URLGet, UrlGet).
		if seen[name] {
			return errors.DuplicateName(name)
		}
		seen[name] = true
		e, err := adapt(name, rv.Method(i).Interface())
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	return r.addAll(entries)
}

func adapt(name string, fn any) (*Entry, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		goType := "nil"
		if fn != nil {
			goType = reflect.TypeOf(fn).String()
		}
		return nil, errors.New(errors.PhaseRegistry, errors.KindTypeMismatch).
			Function(name).
			GoType(goType).
			Detail("handler must be a function").
			Build()
	}

	ft := rv.Type()
	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType

	var params []reflect.Type
	for i := 0; i < ft.NumIn(); i++ {
		if i == 0 && withCtx {
			continue
		}
		params = append(params, ft.In(i))
	}

	returnsErr := ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType
	values := ft.NumOut()
	if returnsErr {
		values--
	}
	if values > 1 {
		return nil, errors.New(errors.PhaseRegistry, errors.KindTypeMismatch).
			Function(name).
			GoType(ft.String()).
			Detail("handler may return at most one value and an error").
			Build()
	}

	e := &Entry{Name: name, MinArgs: len(params), MaxArgs: len(params)}
	var variadic reflect.Type
	if ft.IsVariadic() {
		variadic = params[len(params)-1].Elem()
		params = params[:len(params)-1]
		e.MinArgs = len(params)
		e.MaxArgs = -1
	}

	e.coerce = func(args []any) ([]any, error) {
		out := make([]any, len(args))
		for i, arg := range args {
			t := variadic
			if i < len(params) {
				t = params[i]
			}
			v, err := coerce(arg, t)
			if err != nil {
				if be, ok := err.(*errors.Error); ok {
					be.Path = []string{"arg" + strconv.Itoa(i)}
				}
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	e.fn = func(ctx context.Context, args []any) (any, error) {
		in := make([]reflect.Value, 0, len(args)+1)
		if withCtx {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, arg := range args {
			t := variadic
			if i < len(params) {
				t = params[i]
			}
			if arg == nil {
				in = append(in, reflect.Zero(t))
				continue
			}
			in = append(in, reflect.ValueOf(arg))
		}

		out := rv.Call(in)

		if returnsErr {
			if errVal := out[len(out)-1]; !errVal.IsNil() {
				return nil, errVal.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out[0].Interface(), nil
	}

	return e, nil
}

// coerce converts a host argument to parameter type t.
func coerce(arg any, t reflect.Type) (any, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return nil, nil
		}
		return nil, errors.TypeMismatch(errors.PhaseRegistry, nil, "nil", t.String())
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return arg, nil
	}

	mismatch := errors.TypeMismatch(errors.PhaseRegistry, nil, v.Type().String(), t.String())
	zero := reflect.Zero(t)

	switch {
	case isInt(v.Kind()) && isInt(t.Kind()):
		if zero.OverflowInt(v.Int()) {
			return nil, errors.Overflow(errors.PhaseRegistry, nil, v.Int(), t.String())
		}
	case isInt(v.Kind()) && isUint(t.Kind()):
		if v.Int() < 0 || zero.OverflowUint(uint64(v.Int())) {
			return nil, errors.Overflow(errors.PhaseRegistry, nil, v.Int(), t.String())
		}
	case isUint(v.Kind()) && isInt(t.Kind()):
		if v.Uint() > math.MaxInt64 || zero.OverflowInt(int64(v.Uint())) {
			return nil, errors.Overflow(errors.PhaseRegistry, nil, v.Uint(), t.String())
		}
	case isUint(v.Kind()) && isUint(t.Kind()):
		if zero.OverflowUint(v.Uint()) {
			return nil, errors.Overflow(errors.PhaseRegistry, nil, v.Uint(), t.String())
		}
	case (isInt(v.Kind()) || isUint(v.Kind()) || isFloat(v.Kind())) && isFloat(t.Kind()):
	case v.Kind() == reflect.String && t.Kind() == reflect.String:
	default:
		return nil, mismatch
	}

	return v.Convert(t).Interface(), nil
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// toKebabCase converts PascalCase to kebab-case.
// Handles acronyms: GetHTTPURL -> get-http-url
func toKebabCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('-')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
