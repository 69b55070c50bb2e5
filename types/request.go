package types

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// 🔗 连接标识
// =============================================================================

// ConnectionID 每个连接唯一的不透明标识，用于关联生命周期事件
type ConnectionID string

// NewConnectionID 生成新的连接标识（UUID v4，不复用）
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// String 实现 fmt.Stringer
func (id ConnectionID) String() string {
	return string(id)
}

// =============================================================================
// 📥 请求
// =============================================================================

// Protocol names reported on requests and events.
const (
	ProtocolHTTP1 = "HTTP/1.1"
	ProtocolHTTP2 = "HTTP/2.0"
)

// Request 解码后的入站请求
type Request struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      string            `json:"query,omitempty"`
	Headers    Header            `json:"headers,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Body       []byte            `json:"-"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Protocol   string            `json:"protocol,omitempty"`
}

// NewRequest 创建请求
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(Header),
		Params:  map[string]string{},
	}
}

// Param 返回路径参数值
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Clone returns a copy whose headers and params can be modified independently.
// The body slice is shared.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = r.Headers.Clone()
	if r.Params != nil {
		out.Params = make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return &out
}

// =============================================================================
// 🎯 处理器
// =============================================================================

// Handler 处理已路由的请求。
// 返回 error 或发生 panic 时，会话统一写出 500 响应。
type Handler interface {
	ServeWire(ctx context.Context, id ConnectionID, req *Request) (*Response, error)
}

// HandlerFunc 函数适配器
type HandlerFunc func(ctx context.Context, id ConnectionID, req *Request) (*Response, error)

// ServeWire 实现 Handler
func (f HandlerFunc) ServeWire(ctx context.Context, id ConnectionID, req *Request) (*Response, error) {
	return f(ctx, id, req)
}
