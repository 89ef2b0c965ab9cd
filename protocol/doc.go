// Package protocol defines the JSON-RPC 2.0 message types and error codes.
//
// This package provides the low-level wire structures used by jsonrpc-go.
// Most users should use the higher-level jsonrpc package instead.
//
// # Envelopes
//
// A Request is extracted read-only from one decoded JSON value:
//
//	req := protocol.ParseRequest(json.RawMessage(`{"jsonrpc":"2.0","method":"sum","params":[1,2],"id":1}`))
//	req.Valid()          // true
//	req.IsNotification() // false
//
// A request without an id is a notification.
//
// # Responses
//
// A Response always serializes the version, the id (null when the request
// had none) and exactly one of result or error:
//
//	{"jsonrpc":"2.0","result":7,"id":1}
//	{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":1}
//
// # Error Codes
//
// The code table is closed and each code has a fixed message:
//
//	CodeParseError     = -32700  // "Parse error"
//	CodeInvalidRequest = -32600  // "Invalid Request"
//	CodeMethodNotFound = -32601  // "Method not found"
//	CodeInvalidParams  = -32602  // "Invalid Params"
//	CodeInternalError  = -32603  // "Internal Error"
//	CodeRateLimited    = -32003  // "Rate limit exceeded"
//
// Constructors keep the underlying cause for logging without exposing it:
//
//	err := protocol.NewInvalidParams(fmt.Errorf("want array, got %s", shape))
//	err.Message // "Invalid Params"
//	errors.Unwrap(err) // the cause
//
// Canonical maps arbitrary errors onto the table; unknown errors become
// internal errors.
package protocol
