// Package arith provides the sum and subtract example methods.
package arith

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/jsonrpc-go/server"
)

// Method names.
const (
	MethodSum      = "sum"
	MethodSubtract = "subtract"
)

// ErrOverflow is returned when a result does not fit in an int64.
var ErrOverflow = errors.New("arith: integer overflow")

// Register adds sum and subtract to the registry.
func Register(srv *server.Server) error {
	if err := srv.Register(MethodSum, NewSum); err != nil {
		return err
	}
	return srv.Register(MethodSubtract, NewSubtract)
}

// Sum adds a list of integers.
type Sum struct {
	terms []int64
}

// NewSum accepts positional params only. Every element must coerce to an
// integer. An empty list sums to 0.
func NewSum(params server.Params) (server.Handler, error) {
	if shape := params.Shape(); shape != server.ShapePositional {
		return nil, fmt.Errorf("sum: want positional params, got %s", shape)
	}
	terms, err := params.Ints()
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}
	return &Sum{terms: terms}, nil
}

// Execute returns the total.
func (s *Sum) Execute(context.Context) (any, error) {
	var total int64
	for _, n := range s.terms {
		next := total + n
		if (next > total) != (n > 0) {
			return nil, fmt.Errorf("%w: sum", ErrOverflow)
		}
		total = next
	}
	return total, nil
}

// Subtract computes minuend minus subtrahend.
type Subtract struct {
	minuend    int64
	subtrahend int64
}

// NewSubtract accepts exactly two positional params, or named params
// with minuend and subtrahend members. Extra named members are ignored.
func NewSubtract(params server.Params) (server.Handler, error) {
	switch shape := params.Shape(); shape {
	case server.ShapePositional:
		nums, err := params.Ints()
		if err != nil {
			return nil, fmt.Errorf("subtract: %w", err)
		}
		if len(nums) != 2 {
			return nil, fmt.Errorf("subtract: want 2 params, got %d", len(nums))
		}
		return &Subtract{minuend: nums[0], subtrahend: nums[1]}, nil
	case server.ShapeNamed:
		members, err := params.Named()
		if err != nil {
			return nil, fmt.Errorf("subtract: %w", err)
		}
		minuend, err := namedInt(members, "minuend")
		if err != nil {
			return nil, err
		}
		subtrahend, err := namedInt(members, "subtrahend")
		if err != nil {
			return nil, err
		}
		return &Subtract{minuend: minuend, subtrahend: subtrahend}, nil
	default:
		return nil, fmt.Errorf("subtract: want positional or named params, got %s", shape)
	}
}

// Execute returns the difference.
func (s *Subtract) Execute(context.Context) (any, error) {
	diff := s.minuend - s.subtrahend
	if (diff < s.minuend) != (s.subtrahend > 0) {
		return nil, fmt.Errorf("%w: subtract", ErrOverflow)
	}
	return diff, nil
}

func namedInt(members map[string]json.RawMessage, key string) (int64, error) {
	raw, ok := members[key]
	if !ok {
		return 0, fmt.Errorf("subtract: missing %q", key)
	}
	n, err := server.Int(raw)
	if err != nil {
		return 0, fmt.Errorf("subtract: %s: %w", key, err)
	}
	return n, nil
}
