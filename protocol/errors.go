// Package protocol implements the JSON-RPC 2.0 wire types and error codes.
package protocol

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Implementation-defined server error codes (-32000 to -32099).
const (
	CodeRateLimited = -32003
)

// messages is the closed table of codes this package emits. Every error
// sent to a client carries the fixed message for its code.
var messages = map[int]string{
	CodeParseError:     "Parse error",
	CodeInvalidRequest: "Invalid Request",
	CodeMethodNotFound: "Method not found",
	CodeInvalidParams:  "Invalid Params",
	CodeInternalError:  "Internal Error",
	CodeRateLimited:    "Rate limit exceeded",
}

// MessageFor returns the fixed message for a code and whether the code is known.
func MessageFor(code int) (string, bool) {
	msg, ok := messages[code]
	return msg, ok
}

// Sentinel errors for use with errors.Is.
var (
	ErrParse          = &Error{Code: CodeParseError, Message: messages[CodeParseError]}
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest, Message: messages[CodeInvalidRequest]}
	ErrMethodNotFound = &Error{Code: CodeMethodNotFound, Message: messages[CodeMethodNotFound]}
	ErrInvalidParams  = &Error{Code: CodeInvalidParams, Message: messages[CodeInvalidParams]}
	ErrInternal       = &Error{Code: CodeInternalError, Message: messages[CodeInternalError]}
	ErrRateLimited    = &Error{Code: CodeRateLimited, Message: messages[CodeRateLimited]}
)

// Error represents a JSON-RPC 2.0 error object.
//
// The cause is kept for logging and is never serialized.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("jsonrpc: %s (code: %d): %v", e.Message, e.Code, e.cause)
	}
	return fmt.Sprintf("jsonrpc: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Unwrap returns the internal cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Cause returns the internal cause, if any.
func (e *Error) Cause() error {
	return e.cause
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
		cause:   e.cause,
	}
}

func newError(code int, cause error) *Error {
	return &Error{Code: code, Message: messages[code], cause: cause}
}

// NewParseError creates a parse error (-32700).
func NewParseError(cause error) *Error {
	return newError(CodeParseError, cause)
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(cause error) *Error {
	return newError(CodeInvalidRequest, cause)
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(method string) *Error {
	return newError(CodeMethodNotFound, fmt.Errorf("unknown method %q", method))
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(cause error) *Error {
	return newError(CodeInvalidParams, cause)
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(cause error) *Error {
	return newError(CodeInternalError, cause)
}

// NewRateLimited creates a rate limited error (-32003).
func NewRateLimited(cause error) *Error {
	return newError(CodeRateLimited, cause)
}

// Canonical maps any error onto the closed code table. Errors that carry a
// known code keep it with its fixed message; everything else becomes an
// internal error. The original error is kept as the cause.
func Canonical(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if msg, ok := messages[rpcErr.Code]; ok {
			if rpcErr.Message == msg && rpcErr.Data == nil {
				return rpcErr
			}
			return &Error{Code: rpcErr.Code, Message: msg, cause: err}
		}
	}
	return NewInternalError(err)
}
