package net

import (
	"context"
	"testing"
)

func TestWithRequest(t *testing.T) {
	t.Parallel()

	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("empty ctx request id = %q", got)
	}
	ctx := WithRequest(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("RequestID = %q", got)
	}
	if WithRequest(context.Background(), "") != context.Background() {
		t.Fatalf("empty id should return ctx unchanged")
	}
}
