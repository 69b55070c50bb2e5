package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// MeterName 是 gatewire 注册 OTel instrument 时使用的 meter 名称
const MeterName = "github.com/BaSui01/gatewire"

// OTel instrument 名称
const (
	OTelRequestDuration   = "http.server.request.duration"
	OTelActiveConnections = "gatewire.connections.active"
	OTelSessionErrors     = "gatewire.session.errors"
	OTelHandlerPanics     = "gatewire.handler.panics"
)

// otelInstruments mirrors the Prometheus series through an OTel meter so
// an OTLP pipeline sees the same request and connection measurements.
type otelInstruments struct {
	requestDuration   metric.Float64Histogram
	activeConnections metric.Int64UpDownCounter
	sessionErrors     metric.Int64Counter
	handlerPanics     metric.Int64Counter
}

func newOTelInstruments(meter metric.Meter) (*otelInstruments, error) {
	var (
		in  otelInstruments
		err error
	)
	in.requestDuration, err = meter.Float64Histogram(OTelRequestDuration,
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}
	in.activeConnections, err = meter.Int64UpDownCounter(OTelActiveConnections,
		metric.WithDescription("Number of connections currently being served"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	in.sessionErrors, err = meter.Int64Counter(OTelSessionErrors,
		metric.WithDescription("Connection errors by session stage"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	in.handlerPanics, err = meter.Int64Counter(OTelHandlerPanics,
		metric.WithDescription("Handler panics caught by the fault barrier"),
		metric.WithUnit("{panic}"),
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *otelInstruments) connectionDelta(n int64) {
	in.activeConnections.Add(context.Background(), n)
}

func (in *otelInstruments) request(protocol, method, route string, status int, d time.Duration) {
	in.requestDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		semconv.HTTPRequestMethodKey.String(method),
		semconv.HTTPRoute(route),
		semconv.HTTPResponseStatusCode(status),
		semconv.NetworkProtocolVersion(protocol),
	))
}

func (in *otelInstruments) sessionError(stage string) {
	in.sessionErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("gatewire.stage", stage)))
}

func (in *otelInstruments) handlerPanic(route string) {
	in.handlerPanics.Add(context.Background(), 1, metric.WithAttributes(semconv.HTTPRoute(route)))
}
