package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/jsonrpc-go/middleware"
	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

var errEmptyBatch = errors.New("empty batch")

// BatchOption configures a Batcher.
type BatchOption func(*Batcher)

// WithMaxBatchSize rejects batches with more than n elements with a
// single Invalid Request response. Zero means unlimited.
func WithMaxBatchSize(n int) BatchOption {
	return func(b *Batcher) {
		b.maxBatchSize = n
	}
}

// WithBatchConcurrency dispatches up to n batch elements at once.
// Responses keep the input order regardless. The default is 1.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *Batcher) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// Batcher accepts one decoded JSON text, single or batch, and aggregates
// the dispatcher's responses into a payload.
type Batcher struct {
	dispatcher   *Dispatcher
	maxBatchSize int
	concurrency  int
}

// NewBatcher creates a batcher over the dispatcher.
func NewBatcher(d *Dispatcher, opts ...BatchOption) *Batcher {
	b := &Batcher{
		dispatcher:  d,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// HandleMessage implements transport.Handler.
func (b *Batcher) HandleMessage(ctx context.Context, body json.RawMessage) protocol.Payload {
	return b.Process(ctx, body)
}

// Process dispatches body and aggregates the responses.
//
// A batch yields the non-suppressed responses in input order, or no
// content when every element was suppressed. An empty batch yields a
// single Invalid Request object. A single value yields its response or no
// content. Text that is not JSON yields a parse error.
func (b *Batcher) Process(ctx context.Context, body json.RawMessage) protocol.Payload {
	if !json.Valid(body) {
		return protocol.ParseErrorPayload(errors.New("body is not valid JSON"))
	}
	if !protocol.IsBatch(body) {
		return protocol.SinglePayload(b.dispatcher.Dispatch(ctx, body))
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return protocol.ParseErrorPayload(err)
	}

	if len(elems) == 0 {
		return b.reject(errEmptyBatch)
	}
	if b.maxBatchSize > 0 && len(elems) > b.maxBatchSize {
		return b.reject(fmt.Errorf("batch of %d exceeds limit of %d", len(elems), b.maxBatchSize))
	}

	responses := b.dispatchAll(ctx, elems)

	out := make([]*protocol.Response, 0, len(responses))
	for _, resp := range responses {
		if resp != nil {
			out = append(out, resp)
		}
	}
	if len(out) == 0 {
		return protocol.Payload{}
	}
	return protocol.Payload{Responses: out, Batch: true}
}

func (b *Batcher) dispatchAll(ctx context.Context, elems []json.RawMessage) []*protocol.Response {
	responses := make([]*protocol.Response, len(elems))

	if b.concurrency <= 1 || len(elems) == 1 {
		for i, elem := range elems {
			responses[i] = b.dispatcher.Dispatch(ctx, elem)
		}
		return responses
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, b.concurrency)
	for i, elem := range elems {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, elem json.RawMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			responses[i] = b.dispatcher.Dispatch(ctx, elem)
		}(i, elem)
	}
	wg.Wait()
	return responses
}

func (b *Batcher) reject(cause error) protocol.Payload {
	err := protocol.NewInvalidRequest(cause)
	b.dispatcher.logger.Warn("batch rejected",
		middleware.F("code", err.Code),
		middleware.F("cause", cause.Error()),
	)
	return protocol.SinglePayload(protocol.NewErrorResponse(nil, err))
}
