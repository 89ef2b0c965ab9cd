package protocol

import (
	"context"
	"testing"
)

func TestRequestMeta(t *testing.T) {
	t.Run("missing metadata", func(t *testing.T) {
		ctx := context.Background()
		if RequestMetaFromContext(ctx) != nil {
			t.Error("expected nil metadata")
		}
		if got := GetRequestMeta(ctx, MetaRemoteAddr); got != "" {
			t.Errorf("GetRequestMeta() = %q, want empty", got)
		}
	})

	t.Run("set does not mutate parent", func(t *testing.T) {
		parent := ContextWithRequestMeta(context.Background(), RequestMeta{MetaTransport: "http"})
		child := SetRequestMeta(parent, MetaRemoteAddr, "10.0.0.1:5000")

		if got := GetRequestMeta(parent, MetaRemoteAddr); got != "" {
			t.Errorf("parent was mutated: %q", got)
		}
		if got := GetRequestMeta(child, MetaRemoteAddr); got != "10.0.0.1:5000" {
			t.Errorf("child remote addr = %q", got)
		}
		if got := GetRequestMeta(child, MetaTransport); got != "http" {
			t.Errorf("child transport = %q, want http", got)
		}
	})
}
