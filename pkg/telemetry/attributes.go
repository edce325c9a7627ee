// Insertion-ordered span attribute map with order-preserving JSON encoding
// Key order from the source document is kept so nested maps normalise stably
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Attributes is an insertion-ordered map from attribute key to Value.
// The zero value is an empty map ready to use.
type Attributes struct {
	keys   []string
	values map[string]Value
}

// NewAttributes builds Attributes from a plain map, ordering keys alphabetically.
func NewAttributes(kv map[string]any) Attributes {
	var a Attributes
	for _, k := range sortedKeys(kv) {
		a.Set(k, ValueOf(kv[k]))
	}
	return a
}

// Set stores v under key. Re-setting an existing key keeps its original position.
func (a *Attributes) Set(key string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

// Get returns the value stored under key. A present Null value reports true.
func (a Attributes) Get(key string) (Value, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Has reports whether key is present, regardless of its value.
func (a Attributes) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (a Attributes) Keys() []string {
	return slices.Clone(a.keys)
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	var out Attributes
	for _, k := range a.keys {
		out.Set(k, a.values[k])
	}
	return out
}

// MarshalJSON encodes the attributes as a JSON object in key order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := a.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	m, ok := v.AsMap()
	if !ok {
		if v.IsNull() {
			*a = Attributes{}
			return nil
		}
		return fmt.Errorf("attributes must be a JSON object, got %s", v.Kind())
	}
	*a = m
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
