package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger  *zap.Logger
	timeout time.Duration
	started time.Time
	checks  []HealthCheck
	mu      sync.RWMutex
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// VersionInfo 构建信息
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		timeout: 5 * time.Second,
		started: time.Now(),
		checks:  make([]HealthCheck, 0),
	}
}

// RegisterCheck 注册健康检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 处理程序
// =============================================================================

// Healthz 存活探针：只要进程在处理请求即健康
func (h *HealthHandler) Healthz() types.Handler {
	return types.HandlerFunc(func(context.Context, types.ConnectionID, *types.Request) (*types.Response, error) {
		return JSON(http.StatusOK, HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		}), nil
	})
}

// Ready 就绪探针：依次运行已注册的检查，任一失败返回 503
func (h *HealthHandler) Ready() types.Handler {
	return types.HandlerFunc(func(ctx context.Context, _ types.ConnectionID, _ *types.Request) (*types.Response, error) {
		ctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		h.mu.RLock()
		checks := make([]HealthCheck, len(h.checks))
		copy(checks, h.checks)
		h.mu.RUnlock()

		status := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Checks:    make(map[string]CheckResult, len(checks)),
		}

		allHealthy := true
		for _, check := range checks {
			start := time.Now()
			err := check.Check(ctx)
			latency := time.Since(start)

			result := CheckResult{Status: "pass", Latency: latency.String()}
			if err != nil {
				result.Status = "fail"
				result.Message = err.Error()
				allHealthy = false

				h.logger.Warn("health check failed",
					zap.String("check", check.Name()),
					zap.Error(err),
					zap.Duration("latency", latency),
				)
			}
			status.Checks[check.Name()] = result
		}

		if !allHealthy {
			status.Status = "unhealthy"
			return JSON(http.StatusServiceUnavailable, status), nil
		}
		return JSON(http.StatusOK, status), nil
	})
}

// Version 返回构建信息
func (h *HealthHandler) Version(version, buildTime, gitCommit string) types.Handler {
	info := VersionInfo{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
	return types.HandlerFunc(func(_ context.Context, id types.ConnectionID, _ *types.Request) (*types.Response, error) {
		return Success(id, info), nil
	})
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// PingCheck 通过 ping 函数实现的健康检查（Redis 等）
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck 创建 ping 健康检查
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (c *PingCheck) Name() string {
	return c.name
}

func (c *PingCheck) Check(ctx context.Context) error {
	return c.ping(ctx)
}
