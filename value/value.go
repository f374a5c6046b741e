package value

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/bridge-runtime/errors"
)

// Type is the tag of a bridge value.
type Type uint8

const (
	TypeNull Type = iota
	TypeInteger
	TypeFloat
	TypeString
	TypeBoolean
	TypeArray
	TypeObject
)

// String returns the canonical tag name used on the wire.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInteger:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "bool"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// ParseType maps a canonical tag name back to its Type.
func ParseType(name string) (Type, bool) {
	switch name {
	case "null":
		return TypeNull, true
	case "int":
		return TypeInteger, true
	case "float":
		return TypeFloat, true
	case "string":
		return TypeString, true
	case "bool":
		return TypeBoolean, true
	case "array":
		return TypeArray, true
	case "object":
		return TypeObject, true
	default:
		return TypeNull, false
	}
}

// Value is an immutable tagged union moved across a bridge boundary.
// The zero Value is Null.
type Value struct {
	typ      Type
	intVal   int64
	floatVal float64
	strVal   string
	boolVal  bool
	listVal  []Value
	mapVal   map[string]Value
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// Int returns an Integer value.
func Int(v int64) Value {
	return Value{typ: TypeInteger, intVal: v}
}

// Float returns a Float value.
func Float(v float64) Value {
	return Value{typ: TypeFloat, floatVal: v}
}

// Str returns a String value.
func Str(v string) Value {
	return Value{typ: TypeString, strVal: v}
}

// Bool returns a Boolean value.
func Bool(v bool) Value {
	return Value{typ: TypeBoolean, boolVal: v}
}

// List returns an Array value holding a copy of items.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{typ: TypeArray, listVal: cp}
}

// Map returns an Object value holding a copy of members.
func Map(members map[string]Value) Value {
	cp := make(map[string]Value, len(members))
	for k, v := range members {
		cp[k] = v
	}
	return Value{typ: TypeObject, mapVal: cp}
}

// Type returns the tag.
func (v Value) Type() Type {
	return v.typ
}

// IsNull reports whether v is Null.
func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

func (v Value) mismatch(want Type) error {
	return errors.TypeMismatch(errors.PhaseConvert, nil, v.typ.String(), want.String())
}

// AsInt returns the Integer payload.
func (v Value) AsInt() (int64, error) {
	if v.typ != TypeInteger {
		return 0, v.mismatch(TypeInteger)
	}
	return v.intVal, nil
}

// AsFloat returns the Float payload. Integers widen to float.
func (v Value) AsFloat() (float64, error) {
	switch v.typ {
	case TypeFloat:
		return v.floatVal, nil
	case TypeInteger:
		return float64(v.intVal), nil
	default:
		return 0, v.mismatch(TypeFloat)
	}
}

// AsString returns the String payload.
func (v Value) AsString() (string, error) {
	if v.typ != TypeString {
		return "", v.mismatch(TypeString)
	}
	return v.strVal, nil
}

// AsBool returns the Boolean payload.
func (v Value) AsBool() (bool, error) {
	if v.typ != TypeBoolean {
		return false, v.mismatch(TypeBoolean)
	}
	return v.boolVal, nil
}

// AsList returns a copy of the Array elements.
func (v Value) AsList() ([]Value, error) {
	if v.typ != TypeArray {
		return nil, v.mismatch(TypeArray)
	}
	cp := make([]Value, len(v.listVal))
	copy(cp, v.listVal)
	return cp, nil
}

// AsMap returns a copy of the Object members.
func (v Value) AsMap() (map[string]Value, error) {
	if v.typ != TypeObject {
		return nil, v.mismatch(TypeObject)
	}
	cp := make(map[string]Value, len(v.mapVal))
	for k, m := range v.mapVal {
		cp[k] = m
	}
	return cp, nil
}

// Len returns the element count of an Array or Object, 0 otherwise.
func (v Value) Len() int {
	switch v.typ {
	case TypeArray:
		return len(v.listVal)
	case TypeObject:
		return len(v.mapVal)
	default:
		return 0
	}
}

// Index returns the i-th Array element.
func (v Value) Index(i int) (Value, bool) {
	if v.typ != TypeArray || i < 0 || i >= len(v.listVal) {
		return Value{}, false
	}
	return v.listVal[i], true
}

// Get returns the Object member for key.
func (v Value) Get(key string) (Value, bool) {
	if v.typ != TypeObject {
		return Value{}, false
	}
	m, ok := v.mapVal[key]
	return m, ok
}

// Keys returns the Object keys sorted.
func (v Value) Keys() []string {
	if v.typ != TypeObject {
		return nil
	}
	keys := make([]string, 0, len(v.mapVal))
	for k := range v.mapVal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports structural equality. Floats compare exactly, except that
// NaN equals NaN so a value is always equal to itself.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeInteger:
		return v.intVal == o.intVal
	case TypeFloat:
		if math.IsNaN(v.floatVal) && math.IsNaN(o.floatVal) {
			return true
		}
		return v.floatVal == o.floatVal
	case TypeString:
		return v.strVal == o.strVal
	case TypeBoolean:
		return v.boolVal == o.boolVal
	case TypeArray:
		if len(v.listVal) != len(o.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(o.listVal[i]) {
				return false
			}
		}
		return true
	case TypeObject:
		if len(v.mapVal) != len(o.mapVal) {
			return false
		}
		for k, m := range v.mapVal {
			om, ok := o.mapVal[k]
			if !ok || !m.Equal(om) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v for display. Object keys are sorted.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.typ {
	case TypeNull:
		b.WriteString("null")
	case TypeInteger:
		b.WriteString(strconv.FormatInt(v.intVal, 10))
	case TypeFloat:
		b.WriteString(strconv.FormatFloat(v.floatVal, 'g', -1, 64))
	case TypeString:
		b.WriteString(strconv.Quote(v.strVal))
	case TypeBoolean:
		b.WriteString(strconv.FormatBool(v.boolVal))
	case TypeArray:
		b.WriteByte('[')
		for i, item := range v.listVal {
			if i > 0 {
				b.WriteString(", ")
			}
			item.write(b)
		}
		b.WriteByte(']')
	case TypeObject:
		b.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			v.mapVal[k].write(b)
		}
		b.WriteByte('}')
	}
}
