package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/gatewire"
	"github.com/BaSui01/gatewire/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Metrics.Addr = "127.0.0.1:0"
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) (*App, context.CancelFunc, <-chan error) {
	t.Helper()
	app, err := NewApp(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-app.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("app exited before ready: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("app did not become ready")
	}
	return app, cancel, done
}

func waitStopped(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// =============================================================================
// 🔧 配置映射
// =============================================================================

func TestListenerConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxConnections = 64
	cfg.Server.AcceptRate = 100
	cfg.Server.AcceptBurst = 10
	cfg.Server.KeepAlive = true

	lc, err := listenerConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:0", lc.Addr)
	assert.Equal(t, gatewire.TLSDisabled, lc.TLSMode)
	assert.Nil(t, lc.Bundle)
	assert.Equal(t, int64(64), lc.MaxConnections)
	assert.Equal(t, 100.0, lc.AcceptRate)
	assert.Equal(t, 10, lc.AcceptBurst)
	assert.True(t, lc.KeepAlive)
	assert.Equal(t, cfg.Server.MaxBodyBytes, lc.MaxBodyBytes)
	assert.Zero(t, lc.ShutdownTimeout)
	assert.NoError(t, lc.Validate())
}

func TestListenerConfig_SelfSignedTLS(t *testing.T) {
	cfg := testConfig()
	cfg.TLS.Mode = "optional"
	cfg.TLS.SelfSigned = true
	cfg.TLS.Hosts = []string{"localhost", "127.0.0.1"}

	lc, err := listenerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, gatewire.TLSOptional, lc.TLSMode)
	require.NotNil(t, lc.Bundle)
	assert.NoError(t, lc.Validate())
}

func TestListenerConfig_Errors(t *testing.T) {
	t.Run("unknown mode", func(t *testing.T) {
		cfg := testConfig()
		cfg.TLS.Mode = "sometimes"
		_, err := listenerConfig(cfg)
		assert.Error(t, err)
	})

	t.Run("missing certificate", func(t *testing.T) {
		cfg := testConfig()
		cfg.TLS.Mode = "required"
		cfg.TLS.CertFile = "/nonexistent/cert.pem"
		cfg.TLS.KeyFile = "/nonexistent/key.pem"
		_, err := listenerConfig(cfg)
		assert.Error(t, err)
	})
}

func TestForwarderConfig(t *testing.T) {
	r := config.DefaultRedisConfig()
	r.Addr = "127.0.0.1:6390"
	r.StreamKey = "gw:stream"
	r.Channel = ""

	c := forwarderConfig(r)
	assert.Equal(t, "127.0.0.1:6390", c.Addr)
	assert.Equal(t, "gw:stream", c.StreamKey)
	assert.Equal(t, "gatewire:events", c.Channel)
	assert.Equal(t, int64(10000), c.StreamMaxLen)
	assert.Equal(t, 10, c.PoolSize)
}

// =============================================================================
// 🚀 App 生命周期
// =============================================================================

func TestApp_ServesEndpointsAndMetrics(t *testing.T) {
	app, cancel, done := startApp(t, testConfig())
	base := "http://" + app.Addr()

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"healthy"`)

	code, _ = get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, base+"/version")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"version":"dev"`)

	code, _ = get(t, base+"/missing")
	assert.Equal(t, http.StatusNotFound, code)

	assert.NoError(t, checkHealth(base, time.Second))

	require.NotEmpty(t, app.MetricsAddr())
	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + app.MetricsAddr() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK &&
			resp.Header.Get("X-Content-Type-Options") == "nosniff" &&
			strings.Contains(string(body), `gatewire_http_requests_total{method="GET",protocol="HTTP/1.1",route="GET /healthz",status="2xx"}`)
	}, 2*time.Second, 20*time.Millisecond)

	waitStopped(t, cancel, done)
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false

	app, cancel, done := startApp(t, cfg)
	assert.Empty(t, app.MetricsAddr())
	assert.NoError(t, checkHealth("http://"+app.Addr(), time.Second))
	waitStopped(t, cancel, done)
}

func TestApp_ForwardsEventsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Events.Log = false
	cfg.Events.Redis.Enabled = true
	cfg.Events.Redis.Addr = mr.Addr()
	cfg.Events.Redis.StreamKey = "gatewire:stream"

	app, cancel, done := startApp(t, cfg)

	code, body := get(t, "http://"+app.Addr()+"/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"redis"`)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.Eventually(t, func() bool {
		entries, err := client.XRange(context.Background(), "gatewire:stream", "-", "+").Result()
		if err != nil {
			return false
		}
		kinds := make(map[string]bool)
		for _, e := range entries {
			kinds[fmt.Sprint(e.Values["kind"])] = true
		}
		return kinds["request_observed"] && kinds["response_sent"]
	}, 3*time.Second, 20*time.Millisecond)

	waitStopped(t, cancel, done)
}

func TestApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Events.Redis.Enabled = true
	cfg.Events.Redis.Addr = "127.0.0.1:1"

	_, err := NewApp(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestApp_BindError(t *testing.T) {
	first, cancel, done := startApp(t, testConfig())
	defer waitStopped(t, cancel, done)

	cfg := testConfig()
	cfg.Server.Addr = first.Addr()
	app, err := NewApp(cfg, zap.NewNop())
	require.NoError(t, err)

	err = app.Run(context.Background())
	assert.Error(t, err)
}

// =============================================================================
// 🧪 命令辅助
// =============================================================================

func TestCheckHealth_Unreachable(t *testing.T) {
	assert.Error(t, checkHealth("http://127.0.0.1:1", 200*time.Millisecond))
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LogConfig
		level zapcore.Level
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, zapcore.InfoLevel},
		{"console debug", config.LogConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel},
		{"error", config.LogConfig{Level: "error", Format: "json"}, zapcore.ErrorLevel},
		{"unknown level falls back", config.LogConfig{Level: "verbose"}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := initLogger(tt.cfg)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.level))
			if tt.level > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.level-1))
			}
		})
	}
}
