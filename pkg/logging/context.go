package logging

import (
	"context"
)

type contextKey string

const (
	StreamIDKey    contextKey = "stream_id"
	RequestIDKey   contextKey = "request_id"
	TopicKey       contextKey = "topic"
	ServiceNameKey contextKey = "service_name"
)

func WithStreamID(ctx context.Context, streamID string) context.Context {
	return context.WithValue(ctx, StreamIDKey, streamID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithTopic(ctx context.Context, topic string) context.Context {
	return context.WithValue(ctx, TopicKey, topic)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetStreamID(ctx context.Context) string {
	return stringValue(ctx, StreamIDKey)
}

func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func GetTopic(ctx context.Context) string {
	return stringValue(ctx, TopicKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, string(RequestIDKey), requestID)
	}

	if streamID := GetStreamID(ctx); streamID != "" {
		fields = append(fields, string(StreamIDKey), streamID)
	}

	if topic := GetTopic(ctx); topic != "" {
		fields = append(fields, string(TopicKey), topic)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, string(ServiceNameKey), serviceName)
	}

	return fields
}
