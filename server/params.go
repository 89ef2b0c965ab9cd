package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape classifies the JSON kind of a call's params.
type Shape int

// Param shapes.
const (
	ShapeAbsent Shape = iota
	ShapePositional
	ShapeNamed
	ShapeScalar
)

func (s Shape) String() string {
	switch s {
	case ShapeAbsent:
		return "absent"
	case ShapePositional:
		return "positional"
	case ShapeNamed:
		return "named"
	case ShapeScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Params is a read-only view over a call's raw params.
type Params struct {
	raw json.RawMessage
}

// NewParams wraps raw params. A nil or null value is absent.
func NewParams(raw json.RawMessage) Params {
	return Params{raw: raw}
}

// Raw returns a copy of the raw params.
func (p Params) Raw() json.RawMessage {
	if p.raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(p.raw))
	copy(out, p.raw)
	return out
}

// Shape reports whether the params are absent, an array, an object or
// some other JSON value.
func (p Params) Shape() Shape {
	trimmed := bytes.TrimSpace(p.raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ShapeAbsent
	}
	switch trimmed[0] {
	case '[':
		return ShapePositional
	case '{':
		return ShapeNamed
	default:
		return ShapeScalar
	}
}

// Positional returns the elements of array params.
func (p Params) Positional() ([]json.RawMessage, error) {
	if shape := p.Shape(); shape != ShapePositional {
		return nil, fmt.Errorf("params: want positional, got %s", shape)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(p.raw, &elems); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return elems, nil
}

// Named returns the members of object params.
func (p Params) Named() (map[string]json.RawMessage, error) {
	if shape := p.Shape(); shape != ShapeNamed {
		return nil, fmt.Errorf("params: want named, got %s", shape)
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(p.raw, &members); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return members, nil
}

// Ints coerces every element of positional params with Int.
func (p Params) Ints() ([]int64, error) {
	elems, err := p.Positional()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(elems))
	for i, elem := range elems {
		n, err := Int(elem)
		if err != nil {
			return nil, fmt.Errorf("params[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// ErrNotInteger is returned by Int for values that cannot be coerced.
var ErrNotInteger = errors.New("not an integer")

// Int coerces one JSON value to an int64. Integers are taken as is,
// fractional numbers are truncated toward zero, and strings holding a
// number are parsed. Other strings, booleans, null, arrays and objects
// fail, as do values outside the int64 range.
func Int(raw json.RawMessage) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotInteger, err)
	}

	switch n := v.(type) {
	case json.Number:
		return parseInt(n.String())
	case string:
		return parseInt(strings.TrimSpace(n))
	case nil:
		return 0, fmt.Errorf("%w: null", ErrNotInteger)
	default:
		return 0, fmt.Errorf("%w: %s", ErrNotInteger, jsonKind(v))
	}
}

func parseInt(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotInteger, s)
	}
	f = math.Trunc(f)
	// float64(math.MaxInt64) rounds up to 2^63.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q out of range", ErrNotInteger, s)
	}
	return int64(f), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
