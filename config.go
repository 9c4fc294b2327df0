package hxfield

import (
	"strconv"

	"github.com/pthm/hxfield/lib/store"
)

// Meta is auxiliary data kept by the store next to a field's value.
type Meta = store.Meta

// Config is a field's blueprint configuration.
type Config map[string]any

// Get returns the raw value under key.
func (c Config) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// String returns the string under key, or def.
func (c Config) String(key, def string) string {
	if s, ok := c[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool under key, or def. The strings "true" and "false"
// are accepted.
func (c Config) Bool(key string, def bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the integer under key, or def. YAML and JSON numbers of any
// width are accepted.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Strings returns the string list under key.
func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = store.CloneValue(v)
	}
	return out
}
