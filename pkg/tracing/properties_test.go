package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectIntoProperties(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "send")
	defer span.End()

	props := InjectIntoProperties(ctx, map[string]string{"app": "demo"})
	assert.Equal(t, "demo", props["app"])
	assert.NotEmpty(t, props["traceparent"])

	extracted := trace.SpanContextFromContext(ExtractFromProperties(context.Background(), props))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
}

func TestInjectWithoutSpanKeepsProperties(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	props := InjectIntoProperties(context.Background(), nil)
	assert.NotNil(t, props)
	assert.Empty(t, props)
}

func TestDeliverSpanContinuesProducerTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	sendCtx, sendSpan := StartSendSpan(context.Background(), "kafka", "events")
	props := InjectIntoProperties(sendCtx, nil)
	sendSpan.End()

	_, deliverSpan := StartDeliverSpan(context.Background(), "kafka", "events", props)
	defer deliverSpan.End()

	assert.Equal(t, sendSpan.SpanContext().TraceID(), deliverSpan.SpanContext().TraceID())
	assert.NotEqual(t, sendSpan.SpanContext().SpanID(), deliverSpan.SpanContext().SpanID())
}
