package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  ErrInternal,
			want: "jsonrpc: Internal Error (code: -32603)",
		},
		{
			name: "with cause",
			err:  NewInvalidParams(errors.New("want array")),
			want: "jsonrpc: Invalid Params (code: -32602): want array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err1 := NewInternalError(errors.New("a"))
	err2 := NewInternalError(errors.New("b"))
	err3 := NewInvalidParams(nil)

	if !errors.Is(err1, err2) {
		t.Error("errors with same code should match with errors.Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match with errors.Is")
	}
	if !errors.Is(fmt.Errorf("wrapped: %w", err3), ErrInvalidParams) {
		t.Error("wrapped error should match its sentinel")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("division by zero")
	err := NewInternalError(cause)

	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through errors.Is")
	}
	if err.Cause() != cause {
		t.Errorf("Cause() = %v, want %v", err.Cause(), cause)
	}
}

func TestConstructors_FixedMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantCode int
		wantMsg  string
	}{
		{"parse error", NewParseError(errors.New("unexpected EOF")), CodeParseError, "Parse error"},
		{"invalid request", NewInvalidRequest(nil), CodeInvalidRequest, "Invalid Request"},
		{"method not found", NewMethodNotFound("notfound"), CodeMethodNotFound, "Method not found"},
		{"invalid params", NewInvalidParams(errors.New("bad")), CodeInvalidParams, "Invalid Params"},
		{"internal error", NewInternalError(errors.New("boom")), CodeInternalError, "Internal Error"},
		{"rate limited", NewRateLimited(nil), CodeRateLimited, "Rate limit exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if got := Canonical(nil); got != nil {
			t.Errorf("Canonical(nil) = %v, want nil", got)
		}
	})

	t.Run("plain error becomes internal error", func(t *testing.T) {
		got := Canonical(errors.New("secret stack detail"))
		if got.Code != CodeInternalError {
			t.Errorf("Code = %d, want %d", got.Code, CodeInternalError)
		}
		if got.Message != "Internal Error" {
			t.Errorf("Message = %q, want %q", got.Message, "Internal Error")
		}
	})

	t.Run("known code keeps code and gets fixed message", func(t *testing.T) {
		got := Canonical(&Error{Code: CodeInvalidRequest, Message: "request size 10 exceeds limit"})
		if got.Code != CodeInvalidRequest {
			t.Errorf("Code = %d, want %d", got.Code, CodeInvalidRequest)
		}
		if got.Message != "Invalid Request" {
			t.Errorf("Message = %q, want %q", got.Message, "Invalid Request")
		}
	})

	t.Run("unknown code becomes internal error", func(t *testing.T) {
		got := Canonical(&Error{Code: -32099, Message: "custom"})
		if got.Code != CodeInternalError {
			t.Errorf("Code = %d, want %d", got.Code, CodeInternalError)
		}
	})

	t.Run("data is dropped", func(t *testing.T) {
		got := Canonical(NewInvalidParams(nil).WithData(map[string]string{"field": "a"}))
		if got.Data != nil {
			t.Errorf("Data = %v, want nil", got.Data)
		}
	})

	t.Run("wrapped protocol error keeps its code", func(t *testing.T) {
		got := Canonical(fmt.Errorf("middleware: %w", NewRateLimited(nil)))
		if got.Code != CodeRateLimited {
			t.Errorf("Code = %d, want %d", got.Code, CodeRateLimited)
		}
	})
}

func TestMessageFor(t *testing.T) {
	if msg, ok := MessageFor(CodeMethodNotFound); !ok || msg != "Method not found" {
		t.Errorf("MessageFor(%d) = %q, %v", CodeMethodNotFound, msg, ok)
	}
	if _, ok := MessageFor(-1); ok {
		t.Error("MessageFor(-1) should be unknown")
	}
}

func TestError_WithData(t *testing.T) {
	data := map[string]string{"field": "minuend"}
	err := NewInvalidParams(nil).WithData(data)

	dataMap, ok := err.Data.(map[string]string)
	if !ok {
		t.Fatalf("Data type = %T, want map[string]string", err.Data)
	}
	if dataMap["field"] != "minuend" {
		t.Errorf("Data[field] = %q, want %q", dataMap["field"], "minuend")
	}
}
