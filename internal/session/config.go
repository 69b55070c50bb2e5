package session

import (
	"time"

	"github.com/BaSui01/gatewire/internal/router"
	"github.com/BaSui01/gatewire/internal/transport"
	"github.com/BaSui01/gatewire/types"
)

// TLSMode 监听器的 TLS 策略
type TLSMode int

const (
	// TLSDisabled 仅明文；TLS 前缀的连接被关闭
	TLSDisabled TLSMode = iota
	// TLSOptional 同一端口同时接受明文与 TLS
	TLSOptional
	// TLSRequired 仅 TLS；明文请求得到一个 400 后关闭
	TLSRequired
)

// String 实现 fmt.Stringer
func (m TLSMode) String() string {
	switch m {
	case TLSDisabled:
		return "disabled"
	case TLSOptional:
		return "optional"
	case TLSRequired:
		return "required"
	default:
		return "unknown"
	}
}

// ParseTLSMode 解析配置中的 TLS 模式字符串
func ParseTLSMode(s string) (TLSMode, bool) {
	switch s {
	case "", "disabled", "off":
		return TLSDisabled, true
	case "optional", "auto":
		return TLSOptional, true
	case "required", "on":
		return TLSRequired, true
	default:
		return TLSDisabled, false
	}
}

// Config holds the per-connection settings shared by every session of a
// listener. It must not be modified once sessions are running.
type Config struct {
	TLSMode  TLSMode
	Upgrader *transport.Upgrader

	// 握手超时（包含分类阶段）
	HandshakeTimeout time.Duration
	// 读取单个请求（头 + 体）的超时
	ReadTimeout time.Duration
	// 写出单个响应的超时
	WriteTimeout time.Duration
	// keep-alive / HTTP/2 空闲超时
	IdleTimeout time.Duration

	KeepAlive            bool
	MaxHeaderBytes       int
	MaxBodyBytes         int64
	MaxConcurrentStreams uint32
}

// Resolver 路由解析
type Resolver interface {
	Resolve(method, path string) (router.Match, error)
}

// Publisher 生命周期事件发布
type Publisher interface {
	Publish(ev types.LifecycleEvent)
}

// Recorder receives per-session measurements. internal/metrics.Collector
// implements it.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed(lifetime time.Duration)
	RecordProtocol(transport, protocol string)
	RecordRequest(protocol, method, route string, status int, duration time.Duration, requestSize, responseSize int64)
	RecordHandlerPanic(route string)
	RecordSessionError(stage string)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened()              {}
func (nopRecorder) ConnectionClosed(time.Duration) {}
func (nopRecorder) RecordProtocol(string, string)  {}
func (nopRecorder) RecordHandlerPanic(string)      {}
func (nopRecorder) RecordSessionError(string)      {}

func (nopRecorder) RecordRequest(string, string, string, int, time.Duration, int64, int64) {}

type nopPublisher struct{}

func (nopPublisher) Publish(types.LifecycleEvent) {}

// NopRecorder returns a Recorder that discards everything.
func NopRecorder() Recorder { return nopRecorder{} }
