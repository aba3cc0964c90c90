package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}
	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithRequestID(ctx, "request-1")

	if got := GetTraceID(ctx); got != "trace-1" {
		t.Errorf("trace ID = %q", got)
	}
	if got := GetSessionID(ctx); got != "session-1" {
		t.Errorf("session ID = %q", got)
	}
	if got := GetRequestID(ctx); got != "request-1" {
		t.Errorf("request ID = %q", got)
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" || GetSessionID(ctx) != "" || GetRequestID(ctx) != "" {
		t.Error("expected empty values on a bare context")
	}
}

func TestFromContextRoundTrip(t *testing.T) {
	tc := &TraceContext{TraceID: "t", SessionID: "s", RequestID: "r"}
	got := FromContext(NewContext(context.Background(), tc))

	if *got != *tc {
		t.Errorf("got %+v, want %+v", got, tc)
	}
}

func TestNewGenerationContext(t *testing.T) {
	t.Run("adds trace and request IDs", func(t *testing.T) {
		ctx := NewGenerationContext(context.Background(), "session-1")

		if GetTraceID(ctx) == "" {
			t.Error("missing trace ID")
		}
		if GetRequestID(ctx) == "" {
			t.Error("missing request ID")
		}
		if GetSessionID(ctx) != "session-1" {
			t.Errorf("session ID = %q", GetSessionID(ctx))
		}
	})

	t.Run("keeps an existing trace ID", func(t *testing.T) {
		parent := WithTraceID(context.Background(), "existing")
		ctx := NewGenerationContext(parent, "session-1")

		if GetTraceID(ctx) != "existing" {
			t.Errorf("trace ID = %q, want existing", GetTraceID(ctx))
		}
	})

	t.Run("fresh request ID per call", func(t *testing.T) {
		a := NewGenerationContext(context.Background(), "s")
		b := NewGenerationContext(context.Background(), "s")

		if GetRequestID(a) == GetRequestID(b) {
			t.Error("request IDs collided")
		}
	})
}
