// Package payload provides the structured value carried by hook execution
// contexts, Modified patches and published events.
//
// A Data is an immutable JSON document. Reads use gjson path syntax and every
// write returns a new Data, so a value can be shared between goroutines and
// fanned out to many subscribers without copying.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrInvalidJSON is returned when raw bytes are not a valid JSON document.
var ErrInvalidJSON = errors.New("payload: invalid JSON")

// Data is an immutable JSON document. The zero value is an empty object.
type Data struct {
	raw []byte
}

var emptyObject = []byte("{}")

// New encodes v as a Data. Data, *Data, json.RawMessage and []byte values are
// taken as already-encoded JSON.
func New(v any) (Data, error) {
	switch x := v.(type) {
	case nil:
		return Data{}, nil
	case Data:
		return x, nil
	case *Data:
		if x == nil {
			return Data{}, nil
		}
		return *x, nil
	case json.RawMessage:
		return FromJSON(x)
	case []byte:
		return FromJSON(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Data{}, fmt.Errorf("payload: encode %T: %w", v, err)
	}
	return Data{raw: b}, nil
}

// MustNew is like New but panics on error. It is intended for literals in
// tests and static tables.
func MustNew(v any) Data {
	d, err := New(v)
	if err != nil {
		panic(err)
	}
	return d
}

// FromJSON validates b and returns a Data holding a private copy of it.
func FromJSON(b []byte) (Data, error) {
	if len(b) == 0 {
		return Data{}, nil
	}
	if !gjson.ValidBytes(b) {
		return Data{}, ErrInvalidJSON
	}
	return Data{raw: append([]byte(nil), b...)}, nil
}

// Object builds a Data from a map of top-level fields.
func Object(fields map[string]any) Data {
	if len(fields) == 0 {
		return Data{}
	}
	return MustNew(fields)
}

func (d Data) bytes() []byte {
	if len(d.raw) == 0 {
		return emptyObject
	}
	return d.raw
}

// Bytes returns a copy of the encoded document.
func (d Data) Bytes() []byte {
	return append([]byte(nil), d.bytes()...)
}

// String returns the encoded document.
func (d Data) String() string {
	return string(d.bytes())
}

// IsZero reports whether d is the zero value.
func (d Data) IsZero() bool {
	return len(d.raw) == 0
}

// IsObject reports whether the document is a JSON object.
func (d Data) IsObject() bool {
	return gjson.ParseBytes(d.bytes()).IsObject()
}

// Get returns the value at a gjson path such as "tool_name" or "user.id".
func (d Data) Get(path string) gjson.Result {
	return gjson.GetBytes(d.bytes(), path)
}

// Has reports whether path resolves to a value.
func (d Data) Has(path string) bool {
	return d.Get(path).Exists()
}

// Set returns a copy of d with the value at path replaced by v.
func (d Data) Set(path string, v any) (Data, error) {
	buf := append([]byte(nil), d.bytes()...)
	var (
		out []byte
		err error
	)
	if nested, ok := v.(Data); ok {
		out, err = sjson.SetRawBytes(buf, path, nested.bytes())
	} else {
		out, err = sjson.SetBytes(buf, path, v)
	}
	if err != nil {
		return d, fmt.Errorf("payload: set %q: %w", path, err)
	}
	return Data{raw: out}, nil
}

// Delete returns a copy of d without the value at path.
func (d Data) Delete(path string) (Data, error) {
	out, err := sjson.DeleteBytes(append([]byte(nil), d.bytes()...), path)
	if err != nil {
		return d, fmt.Errorf("payload: delete %q: %w", path, err)
	}
	return Data{raw: out}, nil
}

// Merge applies patch to d and returns the result.
//
// When both documents are objects, each top-level field of patch replaces the
// field of the same name in d and all other fields of d are kept. Otherwise
// patch replaces d entirely. A zero patch leaves d unchanged.
func (d Data) Merge(patch Data) (Data, error) {
	if patch.IsZero() {
		return d, nil
	}
	p := gjson.ParseBytes(patch.raw)
	if !p.IsObject() || !d.IsObject() {
		return patch, nil
	}

	replaced := make(map[string]string)
	p.ForEach(func(key, value gjson.Result) bool {
		if _, dup := replaced[key.String()]; !dup {
			replaced[key.String()] = value.Raw
		}
		return true
	})

	// Members are copied as raw key/value text, so any field name survives.
	out := make([]byte, 0, len(d.bytes())+len(patch.raw))
	out = append(out, '{')
	seen := make(map[string]bool, len(replaced))
	add := func(key gjson.Result, raw string) {
		if len(out) > 1 {
			out = append(out, ',')
		}
		out = append(out, key.Raw...)
		out = append(out, ':')
		out = append(out, raw...)
	}
	gjson.ParseBytes(d.bytes()).ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if seen[name] {
			return true
		}
		seen[name] = true
		if raw, ok := replaced[name]; ok {
			add(key, raw)
		} else {
			add(key, value.Raw)
		}
		return true
	})
	p.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !seen[name] {
			seen[name] = true
			add(key, replaced[name])
		}
		return true
	})
	out = append(out, '}')
	return Data{raw: out}, nil
}

// Keys returns the top-level field names in document order.
func (d Data) Keys() []string {
	var keys []string
	gjson.ParseBytes(d.bytes()).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

// Decode unmarshals the document into v.
func (d Data) Decode(v any) error {
	return json.Unmarshal(d.bytes(), v)
}

// Value returns the document decoded into plain Go values.
func (d Data) Value() any {
	var v any
	if err := json.Unmarshal(d.bytes(), &v); err != nil {
		return nil
	}
	return v
}

// Map returns the document as a map, or nil if it is not an object.
func (d Data) Map() map[string]any {
	m, _ := d.Value().(map[string]any)
	return m
}

// Equal reports whether two documents hold the same JSON value, ignoring
// field order and formatting.
func (d Data) Equal(other Data) bool {
	return reflect.DeepEqual(d.Value(), other.Value())
}

// MarshalJSON implements json.Marshaler.
func (d Data) MarshalJSON() ([]byte, error) {
	return d.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Data) UnmarshalJSON(b []byte) error {
	parsed, err := FromJSON(b)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
