package httpproto

import (
	"net/url"
	"slices"
	"strings"
)

// ListSuffix marks a parameter key whose values accumulate into a list.
const ListSuffix = "[]"

// ParamValue is either a single string or an ordered list of strings.
type ParamValue struct {
	list   bool
	scalar string
	items  []string
}

func Scalar(s string) ParamValue { return ParamValue{scalar: s} }

func List(items ...string) ParamValue {
	return ParamValue{list: true, items: slices.Clone(items)}
}

func (v ParamValue) IsList() bool { return v.list }

func (v ParamValue) AsString() (string, bool) {
	return v.scalar, !v.list
}

func (v ParamValue) AsList() ([]string, bool) {
	if !v.list {
		return nil, false
	}
	return slices.Clone(v.items), true
}

func (v ParamValue) Equal(o ParamValue) bool {
	if v.list != o.list {
		return false
	}
	if v.list {
		return slices.Equal(v.items, o.items)
	}
	return v.scalar == o.scalar
}

// Params maps decoded parameter names to values.
type Params map[string]ParamValue

// ParseParameters decodes an application/x-www-form-urlencoded style string.
// Pairs without '=' are skipped. A repeated plain key keeps its last value;
// keys ending in "[]" collect every value in order under the bare name.
func ParseParameters(raw string) (Params, error) {
	params := make(Params)
	for _, pair := range strings.Split(raw, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key := unescape(k)
		value := unescape(v)
		if name, isList := strings.CutSuffix(key, ListSuffix); isList {
			prev, exists := params[name]
			if exists && !prev.list {
				return nil, BadRequest("parameter %q is used both as a scalar and as a list", name)
			}
			prev.list = true
			prev.items = append(prev.items, value)
			params[name] = prev
			continue
		}
		params[key] = Scalar(value)
	}
	return params, nil
}

// unescape percent-decodes s. Malformed escapes are kept verbatim and bytes
// that do not form valid UTF-8 become U+FFFD.
func unescape(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		decoded = s
	}
	return string(ValidUTF8([]byte(decoded)))
}

// Merge returns the union of the given sets; later sets win on conflicts.
func Merge(sets ...Params) Params {
	out := make(Params)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// Values flattens p into plain strings and string slices for generic decoders.
func (p Params) Values() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		if v.list {
			out[k] = slices.Clone(v.items)
		} else {
			out[k] = v.scalar
		}
	}
	return out
}
