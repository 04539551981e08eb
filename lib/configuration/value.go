package configuration

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Kind identifies which member of the Value union is populated.
type Kind int

const (
	KindInvalid Kind = iota
	KindInteger
	KindBoolean
	KindString
	KindArray
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindTable:
		return "table"
	default:
		return "invalid"
	}
}

// Value is a configuration value: an integer, boolean, string, array of
// values or table of named values. The zero Value is invalid.
type Value struct {
	kind  Kind
	i     int64
	b     bool
	s     string
	arr   []Value
	table map[string]Value
}

func Int(i int64) Value { return Value{kind: KindInteger, i: i} }
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array copies items into a new array value.
func Array(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: KindArray, arr: arr}
}

// Table copies entries into a new table value.
func Table(entries map[string]Value) Value {
	t := make(map[string]Value, len(entries))
	for k, v := range entries {
		t[k] = v
	}
	return Value{kind: KindTable, table: t}
}

// StringArray builds an array value of strings.
func StringArray(items []string) Value {
	arr := make([]Value, len(items))
	for i, s := range items {
		arr[i] = String(s)
	}
	return Value{kind: KindArray, arr: arr}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsInt64() (int64, bool) {
	return v.i, v.kind == KindInteger
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBoolean
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsArray returns a copy of the array members.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out, true
}

// AsTable returns a copy of the table entries.
func (v Value) AsTable() (map[string]Value, bool) {
	if v.kind != KindTable {
		return nil, false
	}
	out := make(map[string]Value, len(v.table))
	for k, e := range v.table {
		out[k] = e
	}
	return out, true
}

// AsStringArray succeeds only when v is an array whose members are all strings.
func (v Value) AsStringArray() ([]string, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	out := make([]string, 0, len(v.arr))
	for _, item := range v.arr {
		s, ok := item.AsString()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// ValidUTF8 reports whether every string and table key inside v is valid UTF-8.
func (v Value) ValidUTF8() bool {
	switch v.kind {
	case KindString:
		return utf8.ValidString(v.s)
	case KindArray:
		for _, item := range v.arr {
			if !item.ValidUTF8() {
				return false
			}
		}
	case KindTable:
		for k, e := range v.table {
			if !utf8.ValidString(k) || !e.ValidUTF8() {
				return false
			}
		}
	}
	return true
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindBoolean:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindTable:
		if len(v.table) != len(o.table) {
			return false
		}
		for k, e := range v.table {
			oe, ok := o.table[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Any converts v into the plain Go shape used by the TOML and JSON encoders.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindBoolean:
		return v.b
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Any()
		}
		return out
	case KindTable:
		out := make(map[string]any, len(v.table))
		for k, e := range v.table {
			out[k] = e.Any()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return nil, oops.Wrapf(ErrUnsupportedValue, "cannot encode invalid value")
	}
	return json.Marshal(v.Any())
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInvalid:
		return "<invalid>"
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}

// FromAny converts decoded TOML or JSON data into a Value. Floats, dates and
// nulls have no representation and yield ErrUnsupportedValue.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return Value{}, oops.Wrapf(ErrUnsupportedValue, "number %s is not an integer", x.String())
		}
		return Int(i), nil
	case []string:
		return StringArray(x), nil
	case []any:
		arr := make([]Value, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, oops.Wrapf(err, "array index %d", i)
			}
			arr[i] = v
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		table := make(map[string]Value, len(x))
		for _, k := range sortedKeys(x) {
			v, err := FromAny(x[k])
			if err != nil {
				return Value{}, oops.Wrapf(err, "table key %q", k)
			}
			table[k] = v
		}
		return Value{kind: KindTable, table: table}, nil
	case nil:
		return Value{}, oops.Wrapf(ErrUnsupportedValue, "null")
	default:
		return Value{}, oops.Wrapf(ErrUnsupportedValue, "type %T", raw)
	}
}

// ParseJSONValue decodes a JSON document into a Value. Numbers must be
// integral; trailing data after the document is rejected.
func ParseJSONValue(raw string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return Value{}, oops.Wrapf(err, "invalid JSON value")
	}
	if dec.More() {
		return Value{}, oops.Errorf("invalid JSON value: trailing data")
	}
	return FromAny(decoded)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
