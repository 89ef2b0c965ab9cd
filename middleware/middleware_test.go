package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

func okHandler(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResponse(req.ID, "ok"), nil
}

func TestChain(t *testing.T) {
	t.Run("empty chain returns handler unchanged", func(t *testing.T) {
		called := false
		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			called = true
			return protocol.NewResponse(req.ID, "ok"), nil
		})

		chained := Chain()(handler)
		_, err := chained(context.Background(), &protocol.Request{Method: "sum"})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Error("handler was not called")
		}
	})

	t.Run("multiple middleware execute in order", func(t *testing.T) {
		order := []string{}

		trace := func(name string) Middleware {
			return func(next HandlerFunc) HandlerFunc {
				return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
					order = append(order, name+"-before")
					resp, err := next(ctx, req)
					order = append(order, name+"-after")
					return resp, err
				}
			}
		}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			order = append(order, "handler")
			return protocol.NewResponse(req.ID, "ok"), nil
		})

		chained := Chain(trace("m1"), trace("m2"), trace("m3"))(handler)
		_, _ = chained(context.Background(), &protocol.Request{Method: "sum"})

		expected := []string{"m1-before", "m2-before", "m3-before", "handler", "m3-after", "m2-after", "m1-after"}
		if len(order) != len(expected) {
			t.Fatalf("order = %v, want %v", order, expected)
		}
		for i, v := range expected {
			if order[i] != v {
				t.Errorf("order[%d] = %q, want %q", i, order[i], v)
			}
		}
	})

	t.Run("middleware can short-circuit chain", func(t *testing.T) {
		handlerCalled := false

		blocking := func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return nil, protocol.NewInvalidRequest(errors.New("blocked"))
			}
		}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			handlerCalled = true
			return protocol.NewResponse(req.ID, "ok"), nil
		})

		_, err := Chain(blocking)(handler)(context.Background(), &protocol.Request{Method: "sum"})

		if !errors.Is(err, protocol.ErrInvalidRequest) {
			t.Errorf("err = %v, want invalid request", err)
		}
		if handlerCalled {
			t.Error("handler should not have been called")
		}
	})
}

func TestUse(t *testing.T) {
	order := []string{}

	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	chain := Use(mark("m1")).Append(mark("m2"))
	if got := len(chain.Middlewares()); got != 2 {
		t.Fatalf("Middlewares() len = %d, want 2", got)
	}

	_, _ = chain.Then(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		order = append(order, "handler")
		return protocol.NewResponse(req.ID, "ok"), nil
	})(context.Background(), &protocol.Request{Method: "sum"})

	expected := []string{"m1", "m2", "handler"}
	if len(order) != len(expected) {
		t.Fatalf("order = %v, want %v", order, expected)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("order[%d] = %q, want %q", i, order[i], v)
		}
	}
}

func TestDefaultStack(t *testing.T) {
	logger := &mockLogger{}
	handler := Chain(DefaultStack(logger)...)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		if RequestIDFromContext(ctx) == "" {
			t.Error("expected request ID in context")
		}
		panic("boom")
	})

	_, err := handler(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "sum"})
	if !errors.Is(err, protocol.ErrInternal) {
		t.Errorf("err = %v, want internal error", err)
	}
	// Recover sits outside Logging, so only the recovery is logged.
	if len(logger.entries) != 1 || logger.entries[0].message != "panic recovered" {
		t.Errorf("entries = %+v, want one panic entry", logger.entries)
	}
}
