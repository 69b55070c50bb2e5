package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/BaSui01/gatewire/internal/session"
	"github.com/BaSui01/gatewire/internal/transport"
	"github.com/BaSui01/gatewire/types"
)

// =============================================================================
// 🌐 连接管理器
// =============================================================================

var (
	// ErrAlreadyStarted Start 被重复调用
	ErrAlreadyStarted = errors.New("server: already started")
	// ErrServerClosed 管理器已关闭
	ErrServerClosed = errors.New("server: closed")
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Deps 管理器依赖，所有会话共享
type Deps struct {
	Router   session.Resolver
	Events   session.Publisher
	Recorder session.Recorder
}

// Manager owns the listener, the accept loop and every live session.
type Manager struct {
	config  Config
	sessCfg *session.Config
	deps    Deps
	logger  *zap.Logger

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	listener   net.Listener
	addr       string
	errCh      chan error
	acceptDone chan struct{}

	// acceptCtx 在关闭开始时取消，用于解除信号量与限流等待
	acceptCtx    context.Context
	stopAccept   context.CancelFunc
	serveCtx     context.Context
	cancelServes context.CancelFunc

	mu       sync.RWMutex
	started  bool
	closed   bool
	sessions map[*session.Session]struct{}
	wg       sync.WaitGroup
}

// NewManager 创建连接管理器
func NewManager(config Config, deps Deps, logger *zap.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("%w: router is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Recorder == nil {
		deps.Recorder = session.NopRecorder()
	}

	var up *transport.Upgrader
	if config.TLSMode != session.TLSDisabled {
		var err error
		if up, err = transport.NewUpgrader(config.Bundle); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		config:     config,
		sessCfg:    config.sessionConfig(up),
		deps:       deps,
		logger:     logger.With(zap.String("component", "acceptor")),
		errCh:      make(chan error, 16),
		acceptDone: make(chan struct{}),
		sessions:   make(map[*session.Session]struct{}),
	}
	if config.MaxConnections > 0 {
		m.sem = semaphore.NewWeighted(config.MaxConnections)
	}
	if config.AcceptRate > 0 {
		burst := config.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), burst)
	}
	m.acceptCtx, m.stopAccept = context.WithCancel(context.Background())
	m.serveCtx, m.cancelServes = context.WithCancel(context.Background())
	return m, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Start binds the listener and starts the accept loop in the background.
// Bind errors are returned synchronously.
func (m *Manager) Start() error {
	ln, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.Addr, err)
	}
	return m.Serve(ln)
}

// Serve starts the accept loop on an existing listener.
func (m *Manager) Serve(ln net.Listener) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	if m.started {
		m.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyStarted
	}
	m.started = true
	m.listener = ln
	m.addr = ln.Addr().String()
	m.mu.Unlock()

	m.logger.Info("listener started",
		zap.String("addr", ln.Addr().String()),
		zap.String("tls_mode", m.config.TLSMode.String()),
		zap.Bool("keep_alive", m.config.KeepAlive),
		zap.Int64("max_connections", m.config.MaxConnections),
	)

	go m.acceptLoop(ln)
	return nil
}

// acceptLoop 顺序接受连接，每个连接一个会话 goroutine
func (m *Manager) acceptLoop(ln net.Listener) {
	defer close(m.acceptDone)

	var delay time.Duration
	for {
		if m.sem != nil {
			if err := m.sem.Acquire(m.acceptCtx, 1); err != nil {
				return
			}
		}
		if m.limiter != nil {
			if err := m.limiter.Wait(m.acceptCtx); err != nil {
				m.release()
				return
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			m.release()
			if m.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			m.logger.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			m.deps.Recorder.RecordSessionError(types.StageAccept)
			m.report(err)

			select {
			case <-time.After(delay):
			case <-m.acceptCtx.Done():
				return
			}
			continue
		}
		delay = 0
		m.spawn(conn)
	}
}

func (m *Manager) spawn(conn net.Conn) {
	s := session.New(conn, m.sessCfg, session.Deps{
		Router:   m.deps.Router,
		Events:   m.deps.Events,
		Recorder: m.deps.Recorder,
		Logger:   m.logger,
	})

	m.mu.Lock()
	m.sessions[s] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer m.release()
		defer func() {
			m.mu.Lock()
			delete(m.sessions, s)
			m.mu.Unlock()
		}()

		if err := s.Serve(m.serveCtx); err != nil {
			m.logger.Debug("session ended with error",
				zap.String("connection_id", s.ID().String()),
				zap.Error(err),
			)
		}
	}()
}

// Shutdown stops accepting, drains every live session and waits for them
// to close. When ctx (or ShutdownTimeout) expires first, the remaining
// sessions are closed forcibly and the context error is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ln := m.listener
	m.mu.Unlock()

	m.stopAccept()
	if ln == nil {
		m.cancelServes()
		return nil
	}

	m.logger.Info("shutting down listener", zap.Int("active_sessions", m.ActiveSessions()))
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		m.logger.Warn("failed to close listener", zap.Error(err))
	}
	<-m.acceptDone

	if m.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ShutdownTimeout)
		defer cancel()
	}

	for _, s := range m.snapshot() {
		s.Drain()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancelServes()
		m.releaseRefs()
		m.logger.Info("listener stopped gracefully")
		return nil
	case <-ctx.Done():
		remaining := m.snapshot()
		m.logger.Warn("drain deadline exceeded, closing sessions",
			zap.Int("remaining", len(remaining)),
		)
		for _, s := range remaining {
			s.Close()
		}
		m.cancelServes()
		<-done
		m.releaseRefs()
		return ctx.Err()
	}
}

// releaseRefs 排空结束后释放监听器与路由表引用
func (m *Manager) releaseRefs() {
	m.mu.Lock()
	m.listener = nil
	m.deps.Router = nil
	m.mu.Unlock()
}

// WaitForShutdown blocks until SIGINT/SIGTERM or ctx is done, then shuts
// the manager down.
func (m *Manager) WaitForShutdown(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		m.logger.Info("shutdown requested", zap.Error(ctx.Err()))
	}
	return m.Shutdown(context.Background())
}

// =============================================================================
// 🔧 辅助方法
// =============================================================================

// Errors 返回非致命的 accept 错误通道（满时丢弃）
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// Addr 返回实际绑定的地址（关闭后仍保留）；未启动时返回配置地址
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.addr != "" {
		return m.addr
	}
	return m.config.Addr
}

// IsRunning 检查是否正在接受连接
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.started && !m.closed
}

// ActiveSessions 当前存活的会话数
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Config 返回配置副本
func (m *Manager) Config() Config {
	return m.config
}

func (m *Manager) snapshot() []*session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session.Session, 0, len(m.sessions))
	for s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) release() {
	if m.sem != nil {
		m.sem.Release(1)
	}
}

func (m *Manager) report(err error) {
	select {
	case m.errCh <- err:
	default:
	}
}
