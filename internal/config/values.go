// Package config holds the generic configuration source used across bucketfs.
//
// Values is an immutable key→value mapping with typed accessors. It backs
// both the daemon configuration (loaded from YAML with environment overrides)
// and the per-call options passed to filesystem operations:
//
//	cfg := config.NewValues(map[string]any{"visibility": "public"})
//	cfg = cfg.With("mimetype", "text/plain") // returns a copy
//
// Nested maps are flattened into dotted keys ("storage.bucket").
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Values is an immutable set of configuration entries.
// The zero value is empty and ready to use.
type Values struct {
	m map[string]any
}

// NewValues copies m into a new Values, flattening nested maps.
func NewValues(m map[string]any) Values {
	out := make(map[string]any, len(m))
	flatten("", m, out)
	return Values{m: out}
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch nested := v.(type) {
		case map[string]any:
			flatten(key, nested, out)
		case map[string]string:
			for nk, nv := range nested {
				out[key+"."+nk] = nv
			}
		default:
			out[key] = v
		}
	}
}

// Len returns the number of entries.
func (v Values) Len() int {
	return len(v.m)
}

// Has reports whether key is set.
func (v Values) Has(key string) bool {
	_, ok := v.m[key]
	return ok
}

// Get returns the raw value stored at key.
func (v Values) Get(key string) (any, bool) {
	val, ok := v.m[key]
	return val, ok
}

// Keys returns all keys in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of v with key set to val. v is left untouched.
func (v Values) With(key string, val any) Values {
	out := make(map[string]any, len(v.m)+1)
	for k, existing := range v.m {
		out[k] = existing
	}
	out[key] = val
	return Values{m: out}
}

// Merge returns a copy of v overlaid with every entry of other.
func (v Values) Merge(other Values) Values {
	out := make(map[string]any, len(v.m)+len(other.m))
	for k, val := range v.m {
		out[k] = val
	}
	for k, val := range other.m {
		out[k] = val
	}
	return Values{m: out}
}

// Sub returns the entries under "prefix." with the prefix removed.
func (v Values) Sub(prefix string) Values {
	p := prefix + "."
	out := make(map[string]any)
	for k, val := range v.m {
		if strings.HasPrefix(k, p) {
			out[strings.TrimPrefix(k, p)] = val
		}
	}
	return Values{m: out}
}

// String returns the value at key rendered as a string, or def when unset.
func (v Values) String(key, def string) string {
	val, ok := v.m[key]
	if !ok || val == nil {
		return def
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}

// Bool returns the value at key as a bool, or def when unset or unparsable.
func (v Values) Bool(key string, def bool) bool {
	switch val := v.m[key].(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return def
		}
		return b
	case int:
		return val != 0
	default:
		return def
	}
}

// Int64 returns the value at key as an int64, or def when unset or unparsable.
func (v Values) Int64(key string, def int64) int64 {
	switch val := v.m[key].(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case uint64:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// Duration returns the value at key as a time.Duration. Strings are parsed
// with time.ParseDuration; bare integers are seconds.
func (v Values) Duration(key string, def time.Duration) time.Duration {
	switch val := v.m[key].(type) {
	case time.Duration:
		return val
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	case string:
		s := strings.TrimSpace(val)
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
		return def
	default:
		return def
	}
}

// StringMap returns the entries under "prefix." as strings.
func (v Values) StringMap(prefix string) map[string]string {
	sub := v.Sub(prefix)
	out := make(map[string]string, sub.Len())
	for _, k := range sub.Keys() {
		out[k] = sub.String(k, "")
	}
	return out
}
