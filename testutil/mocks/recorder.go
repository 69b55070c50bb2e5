package mocks

import (
	"sync"
	"time"

	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 📊 MockRecorder
// =============================================================================

// RecordedRequest 单次请求度量
type RecordedRequest struct {
	Protocol string
	Method   string
	Route    string
	Status   int
}

// MockRecorder 记录会话上报的度量，满足 session.Recorder
type MockRecorder struct {
	mu        sync.Mutex
	opened    int
	closed    int
	protocols map[string]int
	requests  []RecordedRequest
	panics    map[string]int
	errors    map[string]int
}

// NewMockRecorder 创建 MockRecorder
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		protocols: make(map[string]int),
		panics:    make(map[string]int),
		errors:    make(map[string]int),
	}
}

func (m *MockRecorder) ConnectionOpened() {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
}

func (m *MockRecorder) ConnectionClosed(time.Duration) {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

func (m *MockRecorder) RecordProtocol(transport, protocol string) {
	m.mu.Lock()
	m.protocols[transport+" "+protocol]++
	m.mu.Unlock()
}

func (m *MockRecorder) RecordRequest(protocol, method, route string, status int, _ time.Duration, _, _ int64) {
	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{Protocol: protocol, Method: method, Route: route, Status: status})
	m.mu.Unlock()
}

func (m *MockRecorder) RecordHandlerPanic(route string) {
	m.mu.Lock()
	m.panics[route]++
	m.mu.Unlock()
}

func (m *MockRecorder) RecordSessionError(stage string) {
	m.mu.Lock()
	m.errors[stage]++
	m.mu.Unlock()
}

// Connections 返回已打开与已关闭的连接数
func (m *MockRecorder) Connections() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}

// Protocol 返回 "transport protocol" 组合的计数
func (m *MockRecorder) Protocol(transport, protocol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.protocols[transport+" "+protocol]
}

// Requests 返回请求记录副本
func (m *MockRecorder) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// Panics 返回某路由的 panic 次数
func (m *MockRecorder) Panics(route string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panics[route]
}

// SessionErrors 返回某阶段的错误次数
func (m *MockRecorder) SessionErrors(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[stage]
}

// =============================================================================
// 📡 MockPublisher
// =============================================================================

// MockPublisher 同步收集发布的事件，满足 session.Publisher
type MockPublisher struct {
	mu     sync.Mutex
	events []types.LifecycleEvent
}

// NewMockPublisher 创建 MockPublisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(ev types.LifecycleEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

// Events 返回事件副本
func (p *MockPublisher) Events() []types.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.LifecycleEvent(nil), p.events...)
}

// ByConnection 返回某连接的事件，保持发布顺序
func (p *MockPublisher) ByConnection(id types.ConnectionID) []types.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.LifecycleEvent
	for _, ev := range p.events {
		if ev.ConnectionID == id {
			out = append(out, ev)
		}
	}
	return out
}

// Count 返回某类事件的数量
func (p *MockPublisher) Count(kind types.EventKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
