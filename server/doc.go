// Package server provides the method registry, dispatcher and batch
// coordinator for JSON-RPC 2.0.
//
// Most users should use the higher-level jsonrpc package instead of
// using this package directly.
//
// # Registry
//
// Methods are registered by name. Each method is a Factory that
// validates params and returns a Handler:
//
//	srv := server.New()
//	srv.Method("subtract").Handler(func(p server.Params) (server.Handler, error) {
//	    nums, err := p.Ints()
//	    if err != nil {
//	        return nil, err
//	    }
//	    if len(nums) != 2 {
//	        return nil, fmt.Errorf("want 2 params, got %d", len(nums))
//	    }
//	    return server.ExecuteFunc(func(ctx context.Context) (any, error) {
//	        return nums[0] - nums[1], nil
//	    }), nil
//	})
//
// Failures in the factory are reported as Invalid Params; failures in
// Execute are reported as Internal Error. Panics in either stage are
// recovered and classified the same way.
//
// # Typed Handlers
//
// Typed binds params into a struct:
//
//	type MulParams struct {
//	    A int64 `json:"a"`
//	    B int64 `json:"b"`
//	}
//
//	srv.Method("multiply").Handler(server.Typed(func(ctx context.Context, p MulParams) (int64, error) {
//	    return p.A * p.B, nil
//	}))
//
// Both [3, 4] and {"a": 3, "b": 4} bind to MulParams{A: 3, B: 4}.
//
// # Dispatch
//
// A Dispatcher seals the registry and handles one envelope at a time; a
// Batcher handles whole messages, single or batch:
//
//	d := server.NewDispatcher(srv, server.WithMiddleware(middleware.Recover()))
//	b := server.NewBatcher(d, server.WithBatchConcurrency(4))
//	payload := b.Process(ctx, body)
package server
