// Attribute value tagged union and the single normalisation rule used for comparisons
// Values are decoded from JSON, OTLP, or the OTel SDK and never mutated afterwards
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a span attribute value. The zero Value is Null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	arr  []Value
	m    *Attributes
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array returns an array value holding a copy of vs.
func Array(vs ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value(nil), vs...)}
}

// Map returns a nested map value.
func Map(a Attributes) Value {
	return Value{kind: KindMap, m: &a}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer payload and whether v is an int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload and whether v is a float.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the bool payload and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsMap returns the nested attributes and whether v is a map.
func (v Value) AsMap() (Attributes, bool) {
	if v.kind != KindMap || v.m == nil {
		return Attributes{}, false
	}
	return *v.m, true
}

// Normalise converts v to its canonical comparison string. The boolean is false
// only for Null, which has no textual form and never equals any string.
//
// Strings are returned as-is, integers in base 10, floats in the shortest form
// that round-trips, booleans as "true"/"false", and arrays and maps as compact JSON.
func Normalise(v Value) (string, bool) {
	switch v.kind {
	case KindNull:
		return "", false
	case KindString:
		return v.s, true
	case KindInt:
		return strconv.FormatInt(v.i, 10), true
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v.Interface()), true
		}
		return string(data), true
	}
}

// String implements fmt.Stringer using the normalised form; Null prints as "null".
func (v Value) String() string {
	if s, ok := Normalise(v); ok {
		return s
	}
	return "null"
}

// Interface converts v to plain Go values (nil, string, int64, float64, bool,
// []any, map[string]any).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any)
		if v.m != nil {
			for _, k := range v.m.Keys() {
				e, _ := v.m.Get(k)
				out[k] = e.Interface()
			}
		}
		return out
	default:
		return nil
	}
}

// ValueOf converts a plain Go value into a Value. Unknown types become their
// fmt.Sprint text.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint32:
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = ValueOf(e)
		}
		return Array(vs...)
	case []string:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = String(e)
		}
		return Array(vs...)
	case map[string]any:
		var a Attributes
		for _, k := range sortedKeys(t) {
			a.Set(k, ValueOf(t[k]))
		}
		return Map(a)
	default:
		return String(fmt.Sprint(t))
	}
}

// MarshalJSON encodes v as the equivalent JSON value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return v.m.MarshalJSON()
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v.Interface())
	}
}

// UnmarshalJSON decodes any JSON value. Integral numbers become Int, other
// numbers Float, and object key order is preserved.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var a Attributes
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				a.Set(key, elem)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Map(a), nil
		case '[':
			var vs []Value
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				vs = append(vs, elem)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(vs...), nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return ValueOf(t), nil
	}
}
