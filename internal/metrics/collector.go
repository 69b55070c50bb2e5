// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 连接指标
	connectionsTotal   *prometheus.CounterVec
	connectionsActive  prometheus.Gauge
	connectionDuration prometheus.Histogram

	// 请求指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec

	// 故障指标
	handlerPanics *prometheus.CounterVec
	sessionErrors *prometheus.CounterVec

	// 事件指标
	eventsDropped prometheus.Counter

	// OTel 镜像，创建失败时为 nil
	otel *otelInstruments

	logger *zap.Logger
}

// Option 收集器选项
type Option func(*collectorOptions)

type collectorOptions struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider 指定 OTel MeterProvider，默认使用全局 provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *collectorOptions) { o.meterProvider = mp }
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 Registerer。
// 请求耗时、活跃连接、连接错误与 panic 同时通过 OTel meter 记录。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o collectorOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 连接指标
	c.connectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of connections by transport and negotiated protocol",
		},
		[]string{"transport", "protocol"},
	)

	c.connectionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections currently being served",
		},
	)

	c.connectionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Connection lifetime in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300},
		},
	)

	// 请求指标
	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"protocol", "method", "route", "status"},
	)

	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"protocol", "method", "route"},
	)

	c.requestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "route"},
	)

	c.responseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "route"},
	)

	// 故障指标
	c.handlerPanics = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Total number of handler panics caught by the fault barrier",
		},
		[]string{"route"},
	)

	c.sessionErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of connection errors by stage",
		},
		[]string{"stage"},
	)

	c.eventsDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Lifecycle events discarded because a subscriber fell behind",
		},
	)

	instruments, err := newOTelInstruments(o.meterProvider.Meter(MeterName))
	if err != nil {
		c.logger.Warn("otel instruments unavailable", zap.Error(err))
	} else {
		c.otel = instruments
	}

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔌 连接指标记录
// =============================================================================

// ConnectionOpened 连接进入服务
func (c *Collector) ConnectionOpened() {
	c.connectionsActive.Inc()
	if c.otel != nil {
		c.otel.connectionDelta(1)
	}
}

// ConnectionClosed 连接关闭
func (c *Collector) ConnectionClosed(lifetime time.Duration) {
	c.connectionsActive.Dec()
	c.connectionDuration.Observe(lifetime.Seconds())
	if c.otel != nil {
		c.otel.connectionDelta(-1)
	}
}

// RecordProtocol 记录协商结果（transport: plain/tls，protocol: HTTP/1.1 / HTTP/2.0）
func (c *Collector) RecordProtocol(transport, protocol string) {
	c.connectionsTotal.WithLabelValues(transport, protocol).Inc()
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordRequest 记录一次请求/响应交换。route 为命中的路由模式，未命中时为空。
func (c *Collector) RecordRequest(protocol, method, route string, status int, duration time.Duration, requestSize, responseSize int64) {
	route = routeLabel(route)
	c.requestsTotal.WithLabelValues(protocol, method, route, statusCode(status)).Inc()
	c.requestDuration.WithLabelValues(protocol, method, route).Observe(duration.Seconds())
	c.requestSize.WithLabelValues(method, route).Observe(float64(requestSize))
	c.responseSize.WithLabelValues(method, route).Observe(float64(responseSize))
	if c.otel != nil {
		c.otel.request(protocol, method, route, status, duration)
	}
}

// =============================================================================
// 🚨 故障指标记录
// =============================================================================

// RecordHandlerPanic 记录处理器 panic
func (c *Collector) RecordHandlerPanic(route string) {
	c.handlerPanics.WithLabelValues(routeLabel(route)).Inc()
	if c.otel != nil {
		c.otel.handlerPanic(routeLabel(route))
	}
}

// RecordSessionError 记录连接错误
func (c *Collector) RecordSessionError(stage string) {
	c.sessionErrors.WithLabelValues(stage).Inc()
	if c.otel != nil {
		c.otel.sessionError(stage)
	}
}

// RecordEventDropped 记录被丢弃的生命周期事件
func (c *Collector) RecordEventDropped() {
	c.eventsDropped.Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// routeLabel 使用路由模式而非原始路径，控制 label 基数
func routeLabel(route string) string {
	if route == "" {
		return "unmatched"
	}
	return route
}

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
