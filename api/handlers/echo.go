package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 🔁 回显 Handler
// =============================================================================

// EchoHandler 回显请求体，并通过响应头返回请求元信息
type EchoHandler struct {
	// 回显体上限，0 表示不限制
	MaxBytes int
}

// NewEchoHandler 创建回显处理器
func NewEchoHandler(maxBytes int) *EchoHandler {
	return &EchoHandler{MaxBytes: maxBytes}
}

// ServeWire 实现 types.Handler
func (h *EchoHandler) ServeWire(_ context.Context, id types.ConnectionID, req *types.Request) (*types.Response, error) {
	if h.MaxBytes > 0 && len(req.Body) > h.MaxBytes {
		return Failure(id, types.NewError(types.ErrBodyTooLarge, "echo body too large").
			WithHTTPStatus(http.StatusRequestEntityTooLarge), nil), nil
	}

	contentType := req.Headers.Get("content-type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return types.OK().
		WithHeader("content-type", contentType).
		WithHeader("x-gatewire-connection-id", id.String()).
		WithHeader("x-gatewire-protocol", req.Protocol).
		WithBody(req.Body), nil
}

// =============================================================================
// 📋 注册
// =============================================================================

// Registrar 路由注册接口
type Registrar interface {
	Handle(pattern string, h types.Handler) error
}

// BuildInfo 版本端点使用的构建信息
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Register 注册全部内置端点
func Register(r Registrar, health *HealthHandler, build BuildInfo, echoMaxBytes int) error {
	routes := []struct {
		pattern string
		handler types.Handler
	}{
		{"GET /healthz", health.Healthz()},
		{"GET /readyz", health.Ready()},
		{"GET /version", health.Version(build.Version, build.BuildTime, build.GitCommit)},
		{"POST /echo", NewEchoHandler(echoMaxBytes)},
	}
	for _, rt := range routes {
		if err := r.Handle(rt.pattern, rt.handler); err != nil {
			return err
		}
	}
	return nil
}
