// Package sanitize coerces untyped values read from persisted JSON into
// typed values that satisfy a declared type and bounds. Nothing here returns
// an error: invalid input always degrades to the caller's fallback.
package sanitize

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Number extracts a finite float64 from v. Numeric strings are accepted;
// booleans, empty strings, NaN and infinities are not.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ClampNumber returns v clamped to [min, max], or fallback when v is not a
// number or numeric string.
func ClampNumber(v any, min, max, fallback float64) float64 {
	f, ok := Number(v)
	if !ok {
		return fallback
	}
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}

// ClampInt is ClampNumber for integer fields. Fractional input is rounded
// to the nearest integer before clamping.
func ClampInt(v any, min, max, fallback int) int {
	f, ok := Number(v)
	if !ok {
		return fallback
	}
	f = math.Round(f)
	if f < float64(min) {
		return min
	}
	if f > float64(max) {
		return max
	}
	return int(f)
}

// Boolean returns v when it is a bool, otherwise fallback.
func Boolean(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

// String returns v when it is a string, otherwise fallback.
func String(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// NonEmptyString returns v when it is a string with non-whitespace content.
func NonEmptyString(v any, fallback string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

// Enum returns v when it is one of allowed, otherwise fallback.
func Enum(v any, allowed []string, fallback string) string {
	if s, ok := v.(string); ok && slices.Contains(allowed, s) {
		return s
	}
	return fallback
}

// StringSlice returns the string elements of v when v is a list made only
// of strings, otherwise a copy of fallback.
func StringSlice(v any, fallback []string) []string {
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return append([]string{}, fallback...)
			}
			out = append(out, s)
		}
		return out
	}
	return append([]string{}, fallback...)
}

// Object returns v as a generic map when it is one.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
