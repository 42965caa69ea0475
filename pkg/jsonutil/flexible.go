// Package jsonutil reads values out of decoded JSON of unknown shape.
// Every accessor reports absence instead of panicking on a mismatch.
package jsonutil

import (
	"encoding/json"
	"strconv"
)

// Object returns v as a JSON object.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Array returns v as a JSON array.
func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// Get returns the member key of v when v is an object that has it.
func Get(v any, key string) (any, bool) {
	m, ok := Object(v)
	if !ok {
		return nil, false
	}
	val, ok := m[key]
	return val, ok
}

// Path walks nested objects, returning nil when any step is missing.
func Path(v any, keys ...string) any {
	cur := v
	for _, k := range keys {
		next, ok := Get(cur, k)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// String returns v as a string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Number returns v as a number. Both float64 (encoding/json default) and
// json.Number are accepted.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// FlexibleStringValue converts a scalar to a string, handling numbers and
// booleans where a string was expected. Returns empty string for null and
// for composite values.
func FlexibleStringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	}
	if n, ok := Number(v); ok {
		return FormatNumber(n)
	}
	return ""
}

// FormatNumber renders integral values without a decimal point.
func FormatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
