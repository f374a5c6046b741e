package transcoder

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/value"
)

// Converter maps host Go values to bridge values and back.
// It holds no mutable state and is safe for concurrent use.
type Converter struct{}

// New creates a Converter.
func New() *Converter {
	return &Converter{}
}

// ToValue converts a host value following value.Classify. Arrays keep their
// order and Objects their key set. Unmapped types become Null. The only
// failure is a container that contains itself.
func (c *Converter) ToValue(host any) (value.Value, error) {
	w := walker{seen: make(map[identity]bool)}
	return w.convert(host, nil)
}

// ToValues converts positional arguments.
func (c *Converter) ToValues(hosts []any) ([]value.Value, error) {
	out := make([]value.Value, len(hosts))
	for i, h := range hosts {
		v, err := c.ToValue(h)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// FromValue converts a bridge value to its canonical host form:
// int64, float64, string, bool, []any, map[string]any or nil.
func (c *Converter) FromValue(v value.Value) any {
	switch v.Type() {
	case value.TypeInteger:
		n, _ := v.AsInt()
		return n
	case value.TypeFloat:
		f, _ := v.AsFloat()
		return f
	case value.TypeString:
		s, _ := v.AsString()
		return s
	case value.TypeBoolean:
		b, _ := v.AsBool()
		return b
	case value.TypeArray:
		items, _ := v.AsList()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = c.FromValue(item)
		}
		return out
	case value.TypeObject:
		members, _ := v.AsMap()
		out := make(map[string]any, len(members))
		for k, m := range members {
			out[k] = c.FromValue(m)
		}
		return out
	default:
		return nil
	}
}

type walker struct {
	seen map[identity]bool
}

// identity distinguishes a container from a shorter slice of the same array.
type identity struct {
	ptr uintptr
	len int
}

func child(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

func (w walker) convert(host any, path []string) (value.Value, error) {
	switch h := host.(type) {
	case nil:
		return value.Null(), nil
	case value.Value:
		return h, nil
	case string:
		return value.Str(h), nil
	case bool:
		return value.Bool(h), nil
	case int:
		return value.Int(int64(h)), nil
	case int64:
		return value.Int(h), nil
	case float64:
		return value.Float(h), nil
	case []byte:
		return value.Str(string(h)), nil
	}

	rv := reflect.ValueOf(host)
	switch value.Classify(host) {
	case value.TypeArray:
		return w.sequence(rv, path)
	case value.TypeObject:
		return w.mapping(rv, path)
	case value.TypeInteger:
		return integer(rv, path)
	case value.TypeFloat:
		return value.Float(rv.Float()), nil
	case value.TypeString:
		return value.Str(rv.String()), nil
	case value.TypeBoolean:
		return value.Bool(rv.Bool()), nil
	default:
		return value.Null(), nil
	}
}

func integer(rv reflect.Value, path []string) (value.Value, error) {
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > 1<<63-1 {
			return value.Value{}, errors.Overflow(errors.PhaseConvert, path, u, value.TypeInteger.String())
		}
		return value.Int(int64(u)), nil
	default:
		return value.Int(rv.Int()), nil
	}
}

// enter marks a container as being converted. Arrays are values in Go and
// cannot alias, so only slices and maps are tracked.
func (w walker) enter(rv reflect.Value, path []string) (func(), error) {
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Map {
		return func() {}, nil
	}
	if rv.IsNil() || (rv.Kind() == reflect.Slice && rv.Cap() == 0) {
		return func() {}, nil
	}
	id := identity{ptr: rv.Pointer(), len: rv.Len()}
	if w.seen[id] {
		return nil, errors.Cyclic(path, rv.Type().String())
	}
	w.seen[id] = true
	return func() { delete(w.seen, id) }, nil
}

func (w walker) sequence(rv reflect.Value, path []string) (value.Value, error) {
	leave, err := w.enter(rv, path)
	if err != nil {
		return value.Value{}, err
	}
	defer leave()

	items := make([]value.Value, rv.Len())
	for i := range items {
		item, err := w.convert(rv.Index(i).Interface(), child(path, strconv.Itoa(i)))
		if err != nil {
			return value.Value{}, err
		}
		items[i] = item
	}
	return value.List(items...), nil
}

func (w walker) mapping(rv reflect.Value, path []string) (value.Value, error) {
	leave, err := w.enter(rv, path)
	if err != nil {
		return value.Value{}, err
	}
	defer leave()

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	members := make(map[string]value.Value, len(keys))
	for _, k := range keys {
		key := k.String()
		m, err := w.convert(rv.MapIndex(k).Interface(), child(path, key))
		if err != nil {
			return value.Value{}, err
		}
		members[key] = m
	}
	return value.Map(members), nil
}
