package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("gatewire", reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector_IsolatedRegistries(t *testing.T) {
	// 相同 namespace 注册到不同 registry 不会冲突
	assert.NotPanics(t, func() {
		newTestCollector(t)
		newTestCollector(t)
	})
}

func TestCollector_Connections(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.RecordProtocol("tls", "HTTP/2.0")
	c.RecordProtocol("plain", "HTTP/1.1")
	c.RecordProtocol("plain", "HTTP/1.1")
	c.ConnectionClosed(50 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsTotal.WithLabelValues("tls", "HTTP/2.0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal.WithLabelValues("plain", "HTTP/1.1")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.connectionDuration))
}

func TestCollector_RecordRequest(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordRequest("HTTP/1.1", "GET", "GET /users/{id}", 200, 10*time.Millisecond, 0, 2)
	c.RecordRequest("HTTP/1.1", "GET", "GET /users/{id}", 201, 10*time.Millisecond, 0, 2)
	c.RecordRequest("HTTP/2.0", "GET", "", 404, time.Millisecond, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("HTTP/1.1", "GET", "GET /users/{id}", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("HTTP/2.0", "GET", "unmatched", "4xx")))

	expected := `
# HELP gatewire_http_requests_total Total number of HTTP requests
# TYPE gatewire_http_requests_total counter
gatewire_http_requests_total{method="GET",protocol="HTTP/1.1",route="GET /users/{id}",status="2xx"} 2
gatewire_http_requests_total{method="GET",protocol="HTTP/2.0",route="unmatched",status="4xx"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gatewire_http_requests_total"))
}

func TestCollector_Faults(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHandlerPanic("/boom")
	c.RecordSessionError("handler")
	c.RecordSessionError("handshake")
	c.RecordSessionError("handshake")
	c.RecordEventDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.handlerPanics.WithLabelValues("/boom")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionErrors.WithLabelValues("handshake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsDropped))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{405, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{100, "unknown"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code), "code %d", tt.code)
	}
}
