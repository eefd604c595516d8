package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "streamview/session"

// InjectIntoProperties writes the trace context of ctx into message
// properties. props may be nil; the returned map is always non-nil.
func InjectIntoProperties(ctx context.Context, props map[string]string) map[string]string {
	if props == nil {
		props = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(props))
	return props
}

// ExtractFromProperties returns ctx carrying the remote span context found in
// props, if any.
func ExtractFromProperties(ctx context.Context, props map[string]string) context.Context {
	if len(props) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(props))
}

func StartSendSpan(ctx context.Context, driver, topic string) (context.Context, trace.Span) {
	return GetTracer(tracerName).Start(ctx, "broker.send",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", driver),
			attribute.String("messaging.destination.name", topic),
		),
	)
}

// StartDeliverSpan covers handing one received message to a subscriber. The
// span continues the trace the producer injected into the message properties.
func StartDeliverSpan(ctx context.Context, driver, topic string, props map[string]string) (context.Context, trace.Span) {
	return GetTracer(tracerName).Start(ExtractFromProperties(ctx, props), "broker.deliver",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", driver),
			attribute.String("messaging.destination.name", topic),
		),
	)
}
