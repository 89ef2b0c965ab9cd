package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// Timeout returns middleware that bounds each call to d. Methods that
// honor their context and give up with the deadline fail as Internal
// Error, with the method and limit in the cause. A non-positive d
// disables the limit.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			resp, err := next(ctx, req)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, protocol.NewInternalError(
					fmt.Errorf("method %q exceeded %s: %w", req.Method, d, context.DeadlineExceeded))
			}
			return resp, err
		}
	}
}
