package scrape

import (
	"fmt"
	"strconv"
	"strings"
)

// Params carries source-specific parameters. Values come from JSON bodies,
// YAML target files or code, so accessors accept the shapes each decoder
// produces.
type Params map[string]any

// String returns the value under key as a trimmed string.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// StringOr returns String(key) or def when it is blank.
func (p Params) StringOr(key, def string) string {
	if s := p.String(key); s != "" {
		return s
	}
	return def
}

// Strings returns the value under key as a list. A single string is split on
// commas.
func (p Params) Strings(key string) []string {
	var raw []string
	switch v := p[key].(type) {
	case nil:
		return nil
	case []string:
		raw = v
	case []any:
		raw = make([]string, 0, len(v))
		for _, item := range v {
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.Split(v, ",")
	default:
		raw = []string{fmt.Sprint(v)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StringsOr returns Strings(key) or def when empty.
func (p Params) StringsOr(key string, def []string) []string {
	if v := p.Strings(key); len(v) > 0 {
		return v
	}
	return append([]string(nil), def...)
}

// Int returns the value under key as an int, or def when absent or invalid.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the value under key as a bool, or def.
func (p Params) Bool(key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// StringMap returns a nested string mapping such as a selector table.
func (p Params) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch v := p[key].(type) {
	case map[string]string:
		for k, s := range v {
			out[k] = s
		}
	case map[string]any:
		for k, s := range v {
			out[k] = fmt.Sprint(s)
		}
	}
	return out
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
