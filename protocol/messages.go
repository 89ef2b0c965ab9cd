package protocol

import (
	"bytes"
	"encoding/json"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

var nullID = json.RawMessage("null")

// Request represents a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ParseRequest extracts the envelope fields from one decoded JSON value.
//
// Extraction never fails: a value that is not an object, or fields of the
// wrong type, produce empty fields, and the resulting request reports
// itself as invalid. The input is not modified.
func ParseRequest(raw json.RawMessage) Request {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Request{}
	}

	req := Request{
		JSONRPC: stringField(fields["jsonrpc"]),
		Method:  stringField(fields["method"]),
	}
	if v, ok := fields["params"]; ok && !isNull(v) {
		req.Params = cloneRaw(v)
	}
	if v, ok := fields["id"]; ok && !isNull(v) {
		req.ID = cloneRaw(v)
	}
	return req
}

// Valid reports whether the envelope is well-formed: the version is
// exactly "2.0" and a method name is present. It says nothing about
// whether the method exists or the params fit it.
func (r *Request) Valid() bool {
	return r.JSONRPC == JSONRPCVersion && r.Method != ""
}

// IsNotification returns true if this request has no ID (is a notification).
// An explicit null id counts as absent.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || isNull(r.ID)
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse creates a successful response.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}

type successWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	ID      json.RawMessage `json:"id"`
}

type errorWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// MarshalJSON always emits the version and the id (null when absent) and
// exactly one of result or error. A zero or null result is still emitted.
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = nullID
	}

	if r.Error != nil {
		return json.Marshal(errorWire{JSONRPC: JSONRPCVersion, Error: r.Error, ID: id})
	}

	result, err := json.Marshal(r.Result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(successWire{JSONRPC: JSONRPCVersion, Result: result, ID: id})
}

// Payload is the outcome of processing one transport message: the
// responses to send, in input order, and whether they form a batch.
type Payload struct {
	Responses []*Response
	Batch     bool
}

// SinglePayload wraps one response as a non-batch payload.
func SinglePayload(resp *Response) Payload {
	if resp == nil {
		return Payload{}
	}
	return Payload{Responses: []*Response{resp}}
}

// NoContent reports whether there is nothing to send back.
func (p Payload) NoContent() bool {
	return len(p.Responses) == 0
}

// MarshalJSON encodes a batch as an array and a single response as an
// object. A no-content payload encodes as null; transports check
// NoContent before encoding.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.NoContent() {
		return []byte("null"), nil
	}
	if p.Batch {
		return json.Marshal(p.Responses)
	}
	return json.Marshal(p.Responses[0])
}

// ParseErrorPayload is the payload transports send for bodies that are not
// valid JSON.
func ParseErrorPayload(cause error) Payload {
	return SinglePayload(NewErrorResponse(nil, NewParseError(cause)))
}

// IsBatch reports whether a JSON text is an array, ignoring leading whitespace.
func IsBatch(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), nullID)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
