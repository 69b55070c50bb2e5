// MockHandler 是 types.Handler 的测试模拟实现。
//
// 支持固定响应、错误注入、panic 注入与阻塞闸门。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/gatewire/types"
)

// --- MockHandler 结构 ---

// MockHandler 记录每次调用并按配置返回
type MockHandler struct {
	mu sync.Mutex

	// 响应配置
	status int
	body   []byte
	header map[string]string
	err    error
	panicV any
	nilRes bool

	// 阻塞控制：gate 非 nil 时处理器在 entered 上报到后等待 gate 关闭
	gate    chan struct{}
	entered chan struct{}

	calls []MockHandlerCall
}

// MockHandlerCall 记录单次调用
type MockHandlerCall struct {
	ConnectionID types.ConnectionID
	Request      *types.Request
}

// --- 构造函数和 Builder 方法 ---

// NewMockHandler 创建返回 200 "ok" 的 MockHandler
func NewMockHandler() *MockHandler {
	return &MockHandler{
		status: 200,
		body:   []byte("ok"),
		header: map[string]string{},
	}
}

// WithStatus 设置响应状态码
func (m *MockHandler) WithStatus(status int) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	return m
}

// WithBody 设置响应体
func (m *MockHandler) WithBody(body string) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = []byte(body)
	return m
}

// WithHeader 设置响应头
func (m *MockHandler) WithHeader(key, value string) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.header[key] = value
	return m
}

// WithError 设置返回错误
func (m *MockHandler) WithError(err error) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithPanic 使处理器以 v panic
func (m *MockHandler) WithPanic(v any) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicV = v
	return m
}

// WithNilResponse 使处理器返回 (nil, nil)
func (m *MockHandler) WithNilResponse() *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nilRes = true
	return m
}

// WithGate 使每次调用阻塞到 Release 被调用或 ctx 结束
func (m *MockHandler) WithGate(capacity int) *MockHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, capacity)
	return m
}

// --- Handler 实现 ---

// ServeWire 实现 types.Handler
func (m *MockHandler) ServeWire(ctx context.Context, id types.ConnectionID, req *types.Request) (*types.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockHandlerCall{ConnectionID: id, Request: req.Clone()})
	status, body, err, panicV, nilRes := m.status, m.body, m.err, m.panicV, m.nilRes
	header := make(map[string]string, len(m.header))
	for k, v := range m.header {
		header[k] = v
	}
	gate, entered := m.gate, m.entered
	m.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if panicV != nil {
		panic(panicV)
	}
	if err != nil {
		return nil, err
	}
	if nilRes {
		return nil, nil
	}

	resp := types.NewResponse(status).WithBody(append([]byte(nil), body...))
	for k, v := range header {
		resp.WithHeader(k, v)
	}
	return resp, nil
}

// --- 阻塞控制 ---

// Entered 返回每次调用进入处理器时的通知通道（需先 WithGate）
func (m *MockHandler) Entered() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entered
}

// Release 放行所有阻塞中与后续的调用
func (m *MockHandler) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		select {
		case <-m.gate:
		default:
			close(m.gate)
		}
	}
}

// --- 调用记录 ---

// Calls 返回调用记录副本
func (m *MockHandler) Calls() []MockHandlerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockHandlerCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockHandler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall 返回最后一次调用
func (m *MockHandler) LastCall() *MockHandlerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// Reset 清空调用记录
func (m *MockHandler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
