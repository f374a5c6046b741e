package value

import "reflect"

// Classify maps a host value's runtime shape to exactly one tag.
//
// Sequences (slices and arrays, except []byte which is text) are Array,
// string-keyed maps are Object, then integers, floats, strings, booleans
// and nil map to their primitive tags. Everything else is Null.
func Classify(host any) Type {
	switch h := host.(type) {
	case nil:
		return TypeNull
	case Value:
		return h.typ
	case []any:
		return TypeArray
	case map[string]any:
		return TypeObject
	case []byte:
		return TypeString
	}

	rv := reflect.ValueOf(host)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return TypeObject
		}
		return TypeNull
	}
	return primitive(rv.Kind())
}

func primitive(k reflect.Kind) Type {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	default:
		return TypeNull
	}
}
