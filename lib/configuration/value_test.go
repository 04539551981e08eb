package configuration

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessorsMatchKind(t *testing.T) {
	i, ok := Int(42).AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)

	_, ok = Int(42).AsString()
	assert.False(t, ok, "integer must not read as string")

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	s, ok := String("hello").AsString()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	assert.False(t, Value{}.IsValid())
	assert.Equal(t, "invalid", Value{}.Kind().String())
}

func TestStringArrayRequiresAllStrings(t *testing.T) {
	arr, ok := StringArray([]string{"a", "b"}).AsStringArray()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, arr)

	_, ok = Array(String("a"), Int(1)).AsStringArray()
	assert.False(t, ok)
}

func TestArrayAndTableAreCopied(t *testing.T) {
	items := []Value{Int(1), Int(2)}
	v := Array(items...)
	items[0] = Int(99)
	got, _ := v.AsArray()
	assert.True(t, got[0].Equal(Int(1)))

	entries := map[string]Value{"k": String("v")}
	tv := Table(entries)
	entries["k"] = String("changed")
	table, _ := tv.AsTable()
	assert.True(t, table["k"].Equal(String("v")))
}

func TestValueEqual(t *testing.T) {
	a := Table(map[string]Value{"list": StringArray([]string{"x"}), "n": Int(3)})
	b := Table(map[string]Value{"n": Int(3), "list": StringArray([]string{"x"})})
	c := Table(map[string]Value{"n": Int(4), "list": StringArray([]string{"x"})})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, Int(1).Equal(String("1")))
}

func TestValueJSON(t *testing.T) {
	v := Table(map[string]Value{
		"n":    Int(7),
		"on":   Bool(false),
		"tags": StringArray([]string{"a"}),
	})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":7,"on":false,"tags":["a"]}`, string(data))

	_, err = json.Marshal(Value{})
	assert.Error(t, err)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "plain", String("plain").String())
	assert.Equal(t, "12", Int(12).String())
	assert.Equal(t, `["a","b"]`, StringArray([]string{"a", "b"}).String())
}

func TestFromAnyRejectsUnrepresentable(t *testing.T) {
	for _, raw := range []any{nil, 1.5, float32(2), struct{}{}} {
		_, err := FromAny(raw)
		assert.True(t, errors.Is(err, ErrUnsupportedValue), "input %#v", raw)
	}
	_, err := FromAny([]any{"ok", 2.5})
	assert.True(t, errors.Is(err, ErrUnsupportedValue))
}

func TestParseJSONValue(t *testing.T) {
	v, err := ParseJSONValue(`{"screen": {"w": 1920}, "ids": ["x", "y"]}`)
	require.NoError(t, err)
	want := Table(map[string]Value{
		"screen": Table(map[string]Value{"w": Int(1920)}),
		"ids":    StringArray([]string{"x", "y"}),
	})
	assert.True(t, want.Equal(v), "got %s", v)

	v, err = ParseJSONValue(`"text"`)
	require.NoError(t, err)
	assert.True(t, v.Equal(String("text")))

	_, err = ParseJSONValue(`1.25`)
	assert.True(t, errors.Is(err, ErrUnsupportedValue))

	_, err = ParseJSONValue(`{"a":`)
	assert.Error(t, err)

	_, err = ParseJSONValue(`1 2`)
	assert.Error(t, err)

	_, err = ParseJSONValue(`null`)
	assert.True(t, errors.Is(err, ErrUnsupportedValue))
}
