package testutil_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/felixgeelhaar/jsonrpc-go/arith"
	"github.com/felixgeelhaar/jsonrpc-go/protocol"
	"github.com/felixgeelhaar/jsonrpc-go/server"
	"github.com/felixgeelhaar/jsonrpc-go/testutil"
	"github.com/felixgeelhaar/jsonrpc-go/transport"
)

func newServer(t *testing.T) *server.Server {
	t.Helper()
	srv := server.New()
	if err := arith.Register(srv); err != nil {
		t.Fatalf("register: %v", err)
	}

	type greetParams struct {
		Name string `json:"name"`
	}
	srv.Method("greet").Handler(server.Typed(func(ctx context.Context, p greetParams) (string, error) {
		return "Hello, " + p.Name + "!", nil
	}))
	return srv
}

func TestTestClient(t *testing.T) {
	tc := testutil.NewTestClient(t, newServer(t))

	t.Run("SendRequest", func(t *testing.T) {
		resp := tc.SendRequest(arith.MethodSum, []int{1, 2, 4})
		testutil.AssertResult(t, resp, 7)
		testutil.AssertJSON(t, resp, `{"jsonrpc":"2.0","result":7,"id":1}`)
	})

	t.Run("ids increase", func(t *testing.T) {
		resp := tc.SendRequest(arith.MethodSum, []int{1})
		if string(resp.ID) != "2" {
			t.Errorf("id = %s, want 2", resp.ID)
		}
	})

	t.Run("Call", func(t *testing.T) {
		result, err := tc.Call("greet", map[string]string{"name": "World"})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if string(result) != `"Hello, World!"` {
			t.Errorf("result = %s", result)
		}
	})

	t.Run("Call error", func(t *testing.T) {
		_, err := tc.Call("missing", nil)
		if !errors.Is(err, protocol.ErrMethodNotFound) {
			t.Errorf("error = %v, want method not found", err)
		}
	})

	t.Run("AssertError", func(t *testing.T) {
		testutil.AssertError(t, tc.SendRequest(arith.MethodSubtract, []int{1}), protocol.CodeInvalidParams)
	})

	t.Run("Notify", func(t *testing.T) {
		testutil.AssertNoContent(t, tc.Notify(arith.MethodSum, []int{1, 2}))

		payload := tc.Notify("missing", nil)
		if payload.NoContent() {
			t.Fatal("expected an error for the failed notification")
		}
		testutil.AssertError(t, payload.Responses[0], protocol.CodeMethodNotFound)
	})

	t.Run("Send batch", func(t *testing.T) {
		payload := tc.Send(`[{"jsonrpc":"2.0","method":"sum","params":[1,2],"id":"a"},{"jsonrpc":"2.0","method":"sum","params":[3]}]`)
		testutil.AssertJSON(t, payload, `[{"jsonrpc":"2.0","result":3,"id":"a"}]`)
	})
}

func TestTestClient_SilentNotifications(t *testing.T) {
	tc := testutil.NewTestClient(t, newServer(t), server.WithSilentNotifications())
	testutil.AssertNoContent(t, tc.Notify("missing", nil))
}

func TestTestClient_WithContext(t *testing.T) {
	srv := server.New()
	srv.Method("transport").Func(func(ctx context.Context, _ server.Params) (any, error) {
		return protocol.GetRequestMeta(ctx, protocol.MetaTransport), nil
	})

	tc := testutil.NewTestClient(t, srv)
	ctx := protocol.SetRequestMeta(context.Background(), protocol.MetaTransport, "memory")

	testutil.AssertResult(t, tc.WithContext(ctx).SendRequest("transport", nil), "memory")
	testutil.AssertResult(t, tc.SendRequest("transport", nil), "")
}

func TestAssertJSON_IgnoresKeyOrder(t *testing.T) {
	testutil.AssertJSON(t, map[string]int{"b": 2, "a": 1}, `{ "a": 1, "b": 2 }`)
}

func TestLinePipe(t *testing.T) {
	pipe := testutil.NewLinePipe()
	if err := pipe.WriteRequest(protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      []byte(`1`),
		Method:  arith.MethodSubtract,
		Params:  []byte(`[42,23]`),
	}); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	pipe.WriteLine(`{"jsonrpc":"2.0","method":"sum","params":[1]}`)
	pipe.WriteLine(`not json`)

	stdio := transport.NewStdio(transport.WithStdin(pipe.Input()), transport.WithStdout(pipe.Output()))
	handler := server.NewBatcher(server.NewDispatcher(newServer(t)))
	if err := stdio.Serve(context.Background(), handler); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	want := []string{
		`{"jsonrpc":"2.0","result":19,"id":1}`,
		`{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error"},"id":null}`,
	}
	for i, w := range want {
		line, err := pipe.ReadLine()
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if line != w {
			t.Errorf("line %d = %s, want %s", i, line, w)
		}
	}
	if _, err := pipe.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("extra output: %v", err)
	}
}
