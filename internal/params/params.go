// Package params reads typed values out of the loosely typed parameter
// mapping that accompanies a clustering request.
package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Map is a request parameter mapping as decoded from JSON or YAML.
type Map map[string]any

// lookup returns the first present key among keys.
func (m Map) lookup(keys ...string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

// Has reports whether any of keys is set.
func (m Map) Has(keys ...string) bool {
	_, _, ok := m.lookup(keys...)
	return ok
}

// Number returns the numeric value under the first present key. isFloat is
// true when the value was written with a fractional part or exponent, or
// arrived as a Go floating point value.
func (m Map) Number(keys ...string) (v float64, isFloat bool, ok bool, err error) {
	key, raw, found := m.lookup(keys...)
	if !found {
		return 0, false, false, nil
	}
	v, isFloat, err = toNumber(raw)
	if err != nil {
		return 0, false, true, fmt.Errorf("parameter %q: %w", key, err)
	}
	return v, isFloat, true, nil
}

// Int returns the integer under the first present key.
func (m Map) Int(keys ...string) (int, bool, error) {
	v, _, ok, err := m.Number(keys...)
	if !ok || err != nil {
		return 0, ok, err
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		key, _, _ := m.lookup(keys...)
		return 0, true, fmt.Errorf("parameter %q: %v is not an integer", key, v)
	}
	return int(v), true, nil
}

// Float returns the number under the first present key.
func (m Map) Float(keys ...string) (float64, bool, error) {
	v, _, ok, err := m.Number(keys...)
	return v, ok, err
}

// String returns the string under the first present key.
func (m Map) String(keys ...string) (string, bool, error) {
	key, raw, ok := m.lookup(keys...)
	if !ok {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, fmt.Errorf("parameter %q: expected a string, got %T", key, raw)
	}
	return s, true, nil
}

// Bool returns the boolean under the first present key.
func (m Map) Bool(keys ...string) (bool, bool, error) {
	key, raw, ok := m.lookup(keys...)
	if !ok {
		return false, false, nil
	}
	switch b := raw.(type) {
	case bool:
		return b, true, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, true, fmt.Errorf("parameter %q: %w", key, err)
		}
		return parsed, true, nil
	default:
		return false, true, fmt.Errorf("parameter %q: expected a boolean, got %T", key, raw)
	}
}

// IntPair returns a two-element integer array such as an n-gram range.
func (m Map) IntPair(keys ...string) (int, int, bool, error) {
	key, raw, ok := m.lookup(keys...)
	if !ok {
		return 0, 0, false, nil
	}
	var items []any
	switch list := raw.(type) {
	case []any:
		items = list
	case []int:
		for _, i := range list {
			items = append(items, i)
		}
	case []float64:
		for _, f := range list {
			items = append(items, f)
		}
	default:
		return 0, 0, true, fmt.Errorf("parameter %q: expected a two element list, got %T", key, raw)
	}
	if len(items) != 2 {
		return 0, 0, true, fmt.Errorf("parameter %q: expected two elements, got %d", key, len(items))
	}
	var out [2]int
	for i, item := range items {
		v, _, err := toNumber(item)
		if err != nil || v != math.Trunc(v) {
			return 0, 0, true, fmt.Errorf("parameter %q: element %d is not an integer", key, i)
		}
		out[i] = int(v)
	}
	return out[0], out[1], true, nil
}

// Merge returns a new map holding base overlaid with override.
func Merge(base, override Map) Map {
	out := make(Map, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func toNumber(raw any) (float64, bool, error) {
	switch n := raw.(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), false, nil
	case int32:
		return float64(n), false, nil
	case int64:
		return float64(n), false, nil
	case uint64:
		return float64(n), false, nil
	case string:
		return parseNumber(n)
	case fmt.Stringer:
		// json.Number from decoders configured with UseNumber
		return parseNumber(n.String())
	default:
		return 0, false, fmt.Errorf("expected a number, got %T", raw)
	}
}

func parseNumber(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%q is not a finite number", s)
	}
	return v, strings.ContainsAny(s, ".eE"), nil
}
