package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/BaSui01/gatewire/internal/session"
	"github.com/BaSui01/gatewire/internal/tlsutil"
	"github.com/BaSui01/gatewire/internal/transport"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("server: invalid config")

// Config 监听器配置。Manager 在构造时复制一份，运行期间不可变。
type Config struct {
	// 监听地址 host:port
	Addr string `yaml:"addr" json:"addr"`

	// TLS 模式与证书凭据
	TLSMode session.TLSMode           `yaml:"-" json:"-"`
	Bundle  *tlsutil.CredentialBundle `yaml:"-" json:"-"`

	// 分类 + TLS 握手超时
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// HTTP/1.1 keep-alive（默认关闭：一次交换后关闭连接）
	KeepAlive bool `yaml:"keep_alive" json:"keep_alive"`

	// 最大请求头大小
	MaxHeaderBytes int `yaml:"max_header_bytes" json:"max_header_bytes"`

	// 最大请求体大小，0 表示不限制
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`

	// HTTP/2 单连接最大并发流
	MaxConcurrentStreams uint32 `yaml:"max_concurrent_streams" json:"max_concurrent_streams"`

	// 最大并发连接数，0 表示不限制
	MaxConnections int64 `yaml:"max_connections" json:"max_connections"`

	// 每秒接受连接数上限，0 表示不限制
	AcceptRate  float64 `yaml:"accept_rate" json:"accept_rate"`
	AcceptBurst int     `yaml:"accept_burst" json:"accept_burst"`

	// 优雅关闭超时，0 表示无限等待排空
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig 返回默认服务器配置
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		TLSMode:              session.TLSDisabled,
		HandshakeTimeout:     10 * time.Second,
		ReadTimeout:          30 * time.Second,
		WriteTimeout:         30 * time.Second,
		IdleTimeout:          120 * time.Second,
		MaxHeaderBytes:       1 << 20, // 1 MB
		MaxBodyBytes:         10 << 20,
		MaxConcurrentStreams: 250,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("%w: addr %q: %v", ErrInvalidConfig, c.Addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("%w: port %q", ErrInvalidConfig, port)
	}

	switch c.TLSMode {
	case session.TLSDisabled:
	case session.TLSOptional, session.TLSRequired:
		if c.Bundle == nil || len(c.Bundle.Certificates) == 0 {
			return fmt.Errorf("%w: tls mode %s requires a credential bundle", ErrInvalidConfig, c.TLSMode)
		}
	default:
		return fmt.Errorf("%w: unknown tls mode %d", ErrInvalidConfig, int(c.TLSMode))
	}

	if c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.MaxHeaderBytes < 0 || c.MaxBodyBytes < 0 || c.MaxConnections < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}
	if c.AcceptRate < 0 || c.AcceptBurst < 0 {
		return fmt.Errorf("%w: accept rate must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) sessionConfig(up *transport.Upgrader) *session.Config {
	return &session.Config{
		TLSMode:              c.TLSMode,
		Upgrader:             up,
		HandshakeTimeout:     c.HandshakeTimeout,
		ReadTimeout:          c.ReadTimeout,
		WriteTimeout:         c.WriteTimeout,
		IdleTimeout:          c.IdleTimeout,
		KeepAlive:            c.KeepAlive,
		MaxHeaderBytes:       c.MaxHeaderBytes,
		MaxBodyBytes:         c.MaxBodyBytes,
		MaxConcurrentStreams: c.MaxConcurrentStreams,
	}
}
