package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// KeyFunc picks the token bucket a call draws from.
type KeyFunc func(ctx context.Context, req *protocol.Request) string

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc KeyFunc
	logger  Logger
	exempt  map[string]bool
}

// WithRateLimitKeyFunc sets the bucket key function. The default puts
// every call in one global bucket.
func WithRateLimitKeyFunc(fn KeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.keyFunc = fn
	}
}

// WithRateLimitLogger reports rejected calls to l.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.logger = l
	}
}

// WithRateLimitExempt lets calls to the named methods through without
// drawing a token.
func WithRateLimitExempt(methods ...string) RateLimitOption {
	return func(c *rateLimitConfig) {
		for _, m := range methods {
			c.exempt[m] = true
		}
	}
}

func globalKey(context.Context, *protocol.Request) string { return "global" }

func methodKey(_ context.Context, req *protocol.Request) string { return "method:" + req.Method }

// reject logs the refusal and builds the -32003 error.
func (c *rateLimitConfig) reject(req *protocol.Request, key string) error {
	c.logger.Warn("rate limit exceeded",
		F("method", req.Method),
		F("bucket", key),
	)
	return protocol.NewRateLimited(fmt.Errorf("bucket %q exhausted", key))
}

// RateLimit returns middleware that admits rate calls per second per
// bucket, with bursts up to burst. Refused calls fail with code -32003.
// Each element of a batch is a separate call.
func RateLimit(rate int, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		keyFunc: globalKey,
		logger:  NopLogger{},
		exempt:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.exempt[req.Method] {
				return next(ctx, req)
			}
			if key := cfg.keyFunc(ctx, req); !limiter.Allow(ctx, key) {
				return nil, cfg.reject(req, key)
			}
			return next(ctx, req)
		}
	}
}

// RateLimitByMethod gives every method its own bucket.
func RateLimitByMethod(rate int, burst int, opts ...RateLimitOption) Middleware {
	return RateLimit(rate, burst, append([]RateLimitOption{WithRateLimitKeyFunc(methodKey)}, opts...)...)
}

// RateLimitByClient gives every client its own bucket, as identified by
// clientIDFunc. ClientAddr keys clients by remote address.
func RateLimitByClient(rate int, burst int, clientIDFunc KeyFunc, opts ...RateLimitOption) Middleware {
	clientKey := func(ctx context.Context, req *protocol.Request) string {
		return "client:" + clientIDFunc(ctx, req)
	}
	return RateLimit(rate, burst, append([]RateLimitOption{WithRateLimitKeyFunc(clientKey)}, opts...)...)
}

// ClientAddr keys calls by the remote address the transport recorded in
// the request metadata. Calls without one share the "unknown" bucket.
func ClientAddr(ctx context.Context, _ *protocol.Request) string {
	if addr := protocol.GetRequestMeta(ctx, protocol.MetaRemoteAddr); addr != "" {
		return addr
	}
	return "unknown"
}
