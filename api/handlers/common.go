package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Envelope 统一 API 响应结构
type Envelope struct {
	Success      bool               `json:"success"`
	Data         any                `json:"data,omitempty"`
	Error        *ErrorInfo         `json:"error,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	ConnectionID types.ConnectionID `json:"connection_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

// JSON 构造 JSON 响应
func JSON(status int, data any) *types.Response {
	body, err := json.Marshal(data)
	if err != nil {
		// 编码失败只能退化为纯文本 500
		return types.InternalServerError().WithText("failed to encode response")
	}
	return types.NewResponse(status).
		WithHeader("content-type", "application/json; charset=utf-8").
		WithHeader("x-content-type-options", "nosniff").
		WithBody(body)
}

// Success 构造成功响应
func Success(id types.ConnectionID, data any) *types.Response {
	return JSON(http.StatusOK, Envelope{
		Success:      true,
		Data:         data,
		Timestamp:    time.Now(),
		ConnectionID: id,
	})
}

// Failure 从 types.Error 构造错误响应
func Failure(id types.ConnectionID, err *types.Error, logger *zap.Logger) *types.Response {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}

	if logger != nil {
		logger.Warn("API error",
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Error(err.Cause),
		)
	}

	return JSON(status, Envelope{
		Success:      false,
		Error:        &ErrorInfo{Code: string(err.Code), Message: err.Message},
		Timestamp:    time.Now(),
		ConnectionID: id,
	})
}

// =============================================================================
// 🔄 错误码到 HTTP 状态码映射
// =============================================================================

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrDecodeFailed:
		return http.StatusBadRequest
	case types.ErrBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case types.ErrRouteNotFound:
		return http.StatusNotFound
	case types.ErrMethodMismatch:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}
