package middleware

import "time"

// DefaultStack returns the recommended production middleware stack:
// panic recovery, request ID injection, and logging. Recovered panics
// are reported to logger.
func DefaultStack(logger Logger) []Middleware {
	return []Middleware{
		Recover(WithRecoverLogger(logger)),
		RequestID(),
		Logging(logger),
	}
}

// DefaultStackWithTimeout returns the default stack with a timeout middleware.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return []Middleware{
		Recover(WithRecoverLogger(logger)),
		RequestID(),
		Timeout(timeout),
		Logging(logger),
	}
}
