package store

import (
	"sort"
	"strconv"
)

// Meta is auxiliary per-field data kept next to a field's value.
type Meta map[string]any

// Clone returns a deep copy of m. A nil Meta clones to an empty one.
func (m Meta) Clone() Meta {
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// Merge returns a new Meta holding m's keys overwritten by partial's keys.
// The merge is shallow: a key present in partial replaces m's value as a
// whole. Neither input is modified.
func (m Meta) Merge(partial Meta) Meta {
	out := m.Clone()
	for k, v := range partial {
		out[k] = CloneValue(v)
	}
	return out
}

// Get returns the value stored under key.
func (m Meta) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (m Meta) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns the value under key when it is a bool, or a string that
// parses as one. Meta posted from forms arrives as strings.
func (m Meta) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Keys returns the keys of m in sorted order.
func (m Meta) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneValue deep-copies JSON-like data: maps with string keys, slices and
// scalars. Values of other types are returned as is and must be treated as
// immutable by their owners.
func CloneValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = CloneValue(e)
		}
		return out
	case Meta:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case []int:
		return append([]int(nil), x...)
	case []int64:
		return append([]int64(nil), x...)
	case []float64:
		return append([]float64(nil), x...)
	case []bool:
		return append([]bool(nil), x...)
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, e := range x {
			out[k] = e
		}
		return out
	default:
		return v
	}
}
