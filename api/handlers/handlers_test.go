package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

func serve(t *testing.T, h types.Handler, req *types.Request) *types.Response {
	t.Helper()
	resp, err := h.ServeWire(context.Background(), "conn-1", req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func decodeBody(t *testing.T, resp *types.Response, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body, v))
}

type fakeRegistrar struct {
	patterns []string
	fail     string
}

func (r *fakeRegistrar) Handle(pattern string, _ types.Handler) error {
	if pattern == r.fail {
		return errors.New("duplicate")
	}
	r.patterns = append(r.patterns, pattern)
	return nil
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(nil)
	resp := serve(t, h.Healthz(), types.NewRequest("GET", "/healthz"))

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json; charset=utf-8", resp.Headers.Get("content-type"))

	var status HealthStatus
	decodeBody(t, resp, &status)
	assert.Equal(t, "healthy", status.Status)
	assert.NotEmpty(t, status.Uptime)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantState  string
	}{
		{name: "no checks", wantStatus: http.StatusOK, wantState: "healthy"},
		{
			name:       "all pass",
			checks:     []HealthCheck{NewPingCheck("redis", func(context.Context) error { return nil })},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name: "one fails",
			checks: []HealthCheck{
				NewPingCheck("redis", func(context.Context) error { return nil }),
				NewPingCheck("upstream", func(context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			h := NewHealthHandler(zap.New(core))
			for _, c := range tt.checks {
				h.RegisterCheck(c)
			}

			resp := serve(t, h.Ready(), types.NewRequest("GET", "/readyz"))
			assert.Equal(t, tt.wantStatus, resp.Status)

			var status HealthStatus
			decodeBody(t, resp, &status)
			assert.Equal(t, tt.wantState, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))

			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, "fail", status.Checks["upstream"].Status)
				assert.Equal(t, "connection refused", status.Checks["upstream"].Message)
				assert.Equal(t, 1, logs.FilterMessage("health check failed").Len())
			}
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	resp := serve(t, h.Version("1.2.3", "2024-01-01", "abc123"), types.NewRequest("GET", "/version"))
	assert.Equal(t, http.StatusOK, resp.Status)

	var env struct {
		Success      bool        `json:"success"`
		Data         VersionInfo `json:"data"`
		ConnectionID string      `json:"connection_id"`
	}
	decodeBody(t, resp, &env)
	assert.True(t, env.Success)
	assert.Equal(t, "1.2.3", env.Data.Version)
	assert.Equal(t, "abc123", env.Data.GitCommit)
	assert.NotEmpty(t, env.Data.GoVersion)
	assert.Equal(t, "conn-1", env.ConnectionID)
}

// =============================================================================
// 🔁 回显
// =============================================================================

func TestEchoHandler(t *testing.T) {
	req := types.NewRequest("POST", "/echo")
	req.Body = []byte(`{"hello":"world"}`)
	req.Protocol = types.ProtocolHTTP2
	req.Headers.Set("Content-Type", "application/json")

	resp := serve(t, NewEchoHandler(0), req)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, req.Body, resp.Body)
	assert.Equal(t, "application/json", resp.Headers.Get("content-type"))
	assert.Equal(t, "17", resp.Headers.Get("content-length"))
	assert.Equal(t, "conn-1", resp.Headers.Get("x-gatewire-connection-id"))
	assert.Equal(t, types.ProtocolHTTP2, resp.Headers.Get("x-gatewire-protocol"))
}

func TestEchoHandler_DefaultContentTypeAndEmptyBody(t *testing.T) {
	resp := serve(t, NewEchoHandler(0), types.NewRequest("POST", "/echo"))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, resp.Body)
	assert.Equal(t, "application/octet-stream", resp.Headers.Get("content-type"))
}

func TestEchoHandler_TooLarge(t *testing.T) {
	req := types.NewRequest("POST", "/echo")
	req.Body = []byte("0123456789")

	resp := serve(t, NewEchoHandler(4), req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Status)

	var env Envelope
	decodeBody(t, resp, &env)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(types.ErrBodyTooLarge), env.Error.Code)
}

// =============================================================================
// 📦 通用响应
// =============================================================================

func TestFailure_MapsErrorCodes(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrDecodeFailed, http.StatusBadRequest},
		{types.ErrRouteNotFound, http.StatusNotFound},
		{types.ErrMethodMismatch, http.StatusMethodNotAllowed},
		{types.ErrHandlerPanic, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			resp := Failure("c", types.NewError(tt.code, "x"), nil)
			assert.Equal(t, tt.want, resp.Status)
		})
	}

	// 显式 HTTPStatus 优先
	resp := Failure("c", types.NewError(types.ErrDecodeFailed, "x").WithHTTPStatus(http.StatusTeapot), nil)
	assert.Equal(t, http.StatusTeapot, resp.Status)
}

func TestJSON_EncodeFailure(t *testing.T) {
	resp := JSON(http.StatusOK, map[string]any{"ch": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestRegister(t *testing.T) {
	r := &fakeRegistrar{}
	require.NoError(t, Register(r, NewHealthHandler(nil), BuildInfo{Version: "dev"}, 0))
	assert.Equal(t, []string{"GET /healthz", "GET /readyz", "GET /version", "POST /echo"}, r.patterns)

	r = &fakeRegistrar{fail: "GET /version"}
	assert.Error(t, Register(r, NewHealthHandler(nil), BuildInfo{}, 0))
}
