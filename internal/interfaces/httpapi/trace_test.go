package httpapi

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestStartSpanWithoutParentIsNoop(t *testing.T) {
	t.Parallel()

	ctx, span := startSpan(context.Background(), "httpapi.Handler.Healthz")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Fatalf("expected no span without a parent")
	}
	if trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Fatalf("expected context to stay span free")
	}
}
