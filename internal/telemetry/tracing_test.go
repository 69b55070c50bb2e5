package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/BaSui01/gatewire/types"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	saveAndRestoreGlobalProviders(t)
	origProp := otel.GetTextMapPropagator()
	t.Cleanup(func() { otel.SetTextMapPropagator(origProp) })

	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return rec
}

func TestHeaderCarrier(t *testing.T) {
	h := types.Header{}
	c := HeaderCarrier(h)
	c.Set("Traceparent", "x")
	assert.Equal(t, "x", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestRequestSpan_ExtractsParent(t *testing.T) {
	rec := installRecorder(t)

	req := types.NewRequest("GET", "/users/42")
	req.Protocol = types.ProtocolHTTP2
	req.Headers.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	_, span := StartRequestSpan(context.Background(), "conn-1", req)
	EndRequestSpan(span, "GET /users/{id}", 200, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "GET /users/{id}", s.Name())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", s.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", s.Parent().SpanID().String())
	assert.Equal(t, codes.Unset, s.Status().Code)
}

func TestRequestSpan_ServerError(t *testing.T) {
	rec := installRecorder(t)

	req := types.NewRequest("POST", "/boom")
	_, span := StartRequestSpan(context.Background(), "conn-2", req)
	EndRequestSpan(span, "", 500, errors.New("panic"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
