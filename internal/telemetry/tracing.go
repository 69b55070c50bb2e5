package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/gatewire/types"
)

const instrumentationName = "github.com/BaSui01/gatewire"

// Tracer returns the gatewire tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// HeaderCarrier adapts types.Header to propagation.TextMapCarrier.
type HeaderCarrier types.Header

// Get 实现 TextMapCarrier
func (c HeaderCarrier) Get(key string) string { return types.Header(c).Get(key) }

// Set 实现 TextMapCarrier
func (c HeaderCarrier) Set(key, value string) { types.Header(c).Set(key, value) }

// Keys 实现 TextMapCarrier
func (c HeaderCarrier) Keys() []string { return types.Header(c).Keys() }

// StartRequestSpan extracts the remote trace context from req headers and
// starts a server span for it.
func StartRequestSpan(ctx context.Context, id types.ConnectionID, req *types.Request) (context.Context, trace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier(req.Headers))
	return Tracer().Start(ctx, req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.Path),
			semconv.NetworkProtocolVersion(req.Protocol),
			attribute.String("gatewire.connection_id", id.String()),
		),
	)
}

// EndRequestSpan records the outcome on span and ends it.
func EndRequestSpan(span trace.Span, route string, status int, err error) {
	if route != "" {
		span.SetName(route)
		span.SetAttributes(semconv.HTTPRoute(route))
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	if err != nil {
		span.RecordError(err)
	}
	if status >= 500 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	span.End()
}
