package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// BatchCall is one element of a batch.
type BatchCall struct {
	Method string
	Params any
	// Notify sends the element without an id; it gets no result.
	Notify bool
}

// BatchResult is the outcome of one batch element.
type BatchResult struct {
	// Result is the raw result, nil for notifications and errors.
	Result json.RawMessage
	// Err is the JSON-RPC error for the element, or ErrNoResponse when the
	// server sent nothing back for a call.
	Err error
}

// Decode unmarshals the result into v.
func (r BatchResult) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Result == nil {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}

type batchReply struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *protocol.Error `json:"error"`
}

// Batch sends calls as one batch. Results are returned in the order of
// calls, matched by id. A batch rejected as a whole returns the error.
func (c *Client) Batch(ctx context.Context, calls []BatchCall) ([]BatchResult, error) {
	reqs := make([]protocol.Request, len(calls))
	ids := make(map[string]int, len(calls))
	for i, call := range calls {
		var id json.RawMessage
		if !call.Notify {
			id = c.id()
			ids[string(id)] = i
		}
		req, err := newRequest(call.Method, call.Params, id)
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		reqs[i] = req
	}

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	results := make([]BatchResult, len(calls))
	for _, i := range ids {
		results[i].Err = ErrNoResponse
	}

	if resp.StatusCode == http.StatusNoContent {
		return results, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !protocol.IsBatch(raw) {
		var reply batchReply
		if err := json.Unmarshal(raw, &reply); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if reply.Error != nil {
			return nil, reply.Error
		}
		return nil, fmt.Errorf("decode response: expected an array")
	}

	var replies []batchReply
	if err := json.Unmarshal(raw, &replies); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, reply := range replies {
		i, ok := ids[string(reply.ID)]
		if !ok {
			continue
		}
		if reply.Error != nil {
			results[i] = BatchResult{Err: reply.Error}
			continue
		}
		results[i] = BatchResult{Result: reply.Result}
	}
	return results, nil
}
