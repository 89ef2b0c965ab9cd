package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// RequestIDHeader is the request metadata key under which transports
// pass on a caller-supplied correlation ID.
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLen caps caller-supplied IDs before they reach logs and spans.
const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID returns middleware that gives every call a correlation ID.
// An ID already in the context wins, then the X-Request-Id metadata,
// then a random 128-bit hex ID. All calls of one batch share the
// caller-supplied ID.
func RequestID() Middleware {
	return RequestIDWithGenerator(randomID)
}

// RequestIDWithGenerator is RequestID with a custom generator for calls
// that arrive without an ID.
func RequestIDWithGenerator(generator func() string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if RequestIDFromContext(ctx) != "" {
				return next(ctx, req)
			}
			return next(ContextWithRequestID(ctx, requestID(ctx, generator)), req)
		}
	}
}

func requestID(ctx context.Context, generator func() string) string {
	id := protocol.GetRequestMeta(ctx, RequestIDHeader)
	if id == "" {
		return generator()
	}
	if len(id) > maxRequestIDLen {
		id = id[:maxRequestIDLen]
	}
	return id
}

// RequestIDFromContext returns the call's correlation ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID returns ctx carrying id as the correlation ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func randomID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
