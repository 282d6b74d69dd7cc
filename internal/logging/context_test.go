package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_OTELTracing(t *testing.T) {
	provider := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithSyncer(tracetest.NewInMemoryExporter()),
	)
	ctx, span := provider.Tracer("test").Start(context.Background(), "verify")
	defer span.End()

	fields := ContextFields(ctx)

	assertFieldExists(t, fields, "trace_id", span.SpanContext().TraceID().String())
	assertFieldExists(t, fields, "span_id", span.SpanContext().SpanID().String())

	tl := NewTestLogger()
	tl.Info(ctx, "inside span")
	tl.AssertTraceCorrelation(t, "inside span")
}

func TestContextFields_Request(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_456")

	fields := ContextFields(ctx)

	assert.Len(t, fields, 1)
	assertFieldExists(t, fields, "request.id", "req_456")
}

func TestWithRequestID_Sanitizes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "clean", in: "abc-123_X", want: "abc-123_X"},
		{name: "strips control characters", in: "abc\n\"injected\": true", want: "abcinjectedtrue"},
		{name: "strips non-ascii", in: "réq", want: "rq"},
		{name: "truncates", in: strings.Repeat("a", 200), want: strings.Repeat("a", 128)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithRequestID(context.Background(), tt.in)
			assert.Equal(t, tt.want, RequestIDFromContext(ctx))
		})
	}
}

func TestWithRequestID_EmptyLeavesContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithRequestID(ctx, "\n\t"))
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestLogger_InContext(t *testing.T) {
	logger := NewTestLogger().Logger
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func assertFieldExists(t *testing.T, fields []zap.Field, key, expected string) {
	t.Helper()
	for _, field := range fields {
		if field.Key == key && field.String == expected {
			return
		}
	}
	t.Errorf("field %q with value %q not found", key, expected)
}
