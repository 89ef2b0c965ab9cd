package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// Byte sizes for SizeLimit.
const (
	KB = 1024
	MB = 1024 * KB
)

// SizeLimitOption configures the size limit middleware.
type SizeLimitOption func(*sizeLimiter)

// WithSizeLimitLogger reports rejected calls to l.
func WithSizeLimitLogger(l Logger) SizeLimitOption {
	return func(s *sizeLimiter) {
		s.logger = l
	}
}

type sizeLimiter struct {
	max    int64
	logger Logger
}

// check returns an Invalid Request error when the raw params of req are
// larger than the limit. Absent params never fail.
func (s *sizeLimiter) check(req *protocol.Request) error {
	size := int64(len(req.Params))
	if size <= s.max {
		return nil
	}
	s.logger.Warn("params size limit exceeded",
		F("method", req.Method),
		F("size", size),
		F("max", s.max),
	)
	return protocol.NewInvalidRequest(fmt.Errorf("params of %q are %d bytes, limit is %d", req.Method, size, s.max))
}

// SizeLimit returns middleware that rejects calls whose raw params are
// larger than maxBytes with Invalid Request. Transports bound the whole
// message; this bounds a single call inside a batch. A non-positive
// maxBytes disables the check.
func SizeLimit(maxBytes int64, opts ...SizeLimitOption) Middleware {
	s := &sizeLimiter{max: maxBytes, logger: NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}

	return func(next HandlerFunc) HandlerFunc {
		if s.max <= 0 {
			return next
		}
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if err := s.check(req); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}
