package transcoder

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/wippyai/bridge-runtime/errors"
	"github.com/wippyai/bridge-runtime/value"
)

// wire is the tagged {type, value} shape used for transport.
type wire struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type rawWire struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Serialize renders v in the canonical tagged form. Every nested element is
// itself a {"type", "value"} pair. Non-finite floats cannot be represented.
func (c *Converter) Serialize(v value.Value) ([]byte, error) {
	w, err := toWire(v, nil)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSerialize, errors.KindTypeMismatch, err, "marshal tagged value")
	}
	return data, nil
}

func toWire(v value.Value, path []string) (wire, error) {
	w := wire{Type: v.Type().String()}
	switch v.Type() {
	case value.TypeInteger:
		n, _ := v.AsInt()
		w.Value = n
	case value.TypeFloat:
		f, _ := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return wire{}, errors.New(errors.PhaseSerialize, errors.KindTypeMismatch).
				Path(path...).
				Target("float").
				Detail("non-finite float %v", f).
				Value(f).
				Build()
		}
		w.Value = f
	case value.TypeString:
		s, _ := v.AsString()
		w.Value = s
	case value.TypeBoolean:
		b, _ := v.AsBool()
		w.Value = b
	case value.TypeArray:
		items, _ := v.AsList()
		out := make([]wire, len(items))
		for i, item := range items {
			iw, err := toWire(item, child(path, strconv.Itoa(i)))
			if err != nil {
				return wire{}, err
			}
			out[i] = iw
		}
		w.Value = out
	case value.TypeObject:
		members, _ := v.AsMap()
		out := make(map[string]wire, len(members))
		for k, m := range members {
			mw, err := toWire(m, child(path, k))
			if err != nil {
				return wire{}, err
			}
			out[k] = mw
		}
		w.Value = out
	}
	return w, nil
}

// Deserialize parses the canonical tagged form produced by Serialize.
func (c *Converter) Deserialize(data []byte) (value.Value, error) {
	return fromWire(data, nil)
}

func fromWire(data []byte, path []string) (value.Value, error) {
	var rw rawWire
	if err := json.Unmarshal(data, &rw); err != nil {
		return value.Value{}, errors.New(errors.PhaseSerialize, errors.KindTypeMismatch).
			Path(path...).
			Cause(err).
			Detail("malformed tagged value").
			Build()
	}

	typ, ok := value.ParseType(rw.Type)
	if !ok {
		return value.Value{}, errors.New(errors.PhaseSerialize, errors.KindTypeMismatch).
			Path(path...).
			Target(rw.Type).
			Detail("unknown tag").
			Build()
	}

	bad := func(cause error) error {
		return errors.New(errors.PhaseSerialize, errors.KindTypeMismatch).
			Path(path...).
			Target(typ.String()).
			Cause(cause).
			Detail("payload does not match tag").
			Build()
	}

	switch typ {
	case value.TypeNull:
		if len(rw.Value) > 0 && !bytes.Equal(bytes.TrimSpace(rw.Value), []byte("null")) {
			return value.Value{}, bad(nil)
		}
		return value.Null(), nil

	case value.TypeInteger:
		var num json.Number
		if err := decodeNumber(rw.Value, &num); err != nil {
			return value.Value{}, bad(err)
		}
		n, err := num.Int64()
		if err != nil {
			return value.Value{}, bad(err)
		}
		return value.Int(n), nil

	case value.TypeFloat:
		var num json.Number
		if err := decodeNumber(rw.Value, &num); err != nil {
			return value.Value{}, bad(err)
		}
		f, err := num.Float64()
		if err != nil {
			return value.Value{}, bad(err)
		}
		return value.Float(f), nil

	case value.TypeString:
		var s string
		if err := json.Unmarshal(rw.Value, &s); err != nil {
			return value.Value{}, bad(err)
		}
		return value.Str(s), nil

	case value.TypeBoolean:
		var b bool
		if err := json.Unmarshal(rw.Value, &b); err != nil {
			return value.Value{}, bad(err)
		}
		return value.Bool(b), nil

	case value.TypeArray:
		var raw []json.RawMessage
		if err := json.Unmarshal(rw.Value, &raw); err != nil || raw == nil {
			return value.Value{}, bad(err)
		}
		items := make([]value.Value, len(raw))
		for i, r := range raw {
			item, err := fromWire(r, child(path, strconv.Itoa(i)))
			if err != nil {
				return value.Value{}, err
			}
			items[i] = item
		}
		return value.List(items...), nil

	default:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(rw.Value, &raw); err != nil || raw == nil {
			return value.Value{}, bad(err)
		}
		members := make(map[string]value.Value, len(raw))
		for k, r := range raw {
			m, err := fromWire(r, child(path, k))
			if err != nil {
				return value.Value{}, err
			}
			members[k] = m
		}
		return value.Map(members), nil
	}
}

func decodeNumber(data []byte, num *json.Number) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(num)
}
