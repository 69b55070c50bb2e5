package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/internal/pool"
	"github.com/BaSui01/gatewire/internal/transport"
	"github.com/BaSui01/gatewire/types"
)

// ErrIllegalTransition 状态迁移不合法（内部错误）
var ErrIllegalTransition = errors.New("session: illegal state transition")

// rstAvoidanceDelay 错误响应后等待对端读取的最长时间
const rstAvoidanceDelay = 500 * time.Millisecond

// notTLSResponse 在仅 TLS 的端口上收到明文请求时的应答
const notTLSResponse = "HTTP/1.0 400 Bad Request\r\n\r\nClient sent an HTTP request to an HTTPS server.\n"

// Deps 会话依赖
type Deps struct {
	Router   Resolver
	Events   Publisher
	Recorder Recorder
	Logger   *zap.Logger
}

// Session drives one accepted connection from classification to close.
type Session struct {
	id     types.ConnectionID
	conn   net.Conn
	remote string
	cfg    *Config

	routes Resolver
	events Publisher
	rec    Recorder
	logger *zap.Logger

	limiter *readLimiter
	started time.Time

	mu       sync.Mutex
	state    State
	active   net.Conn
	idle     bool
	draining bool
	drainCh  chan struct{}

	closeOnce sync.Once
}

// New creates a session for conn. Serve must be called exactly once.
func New(conn net.Conn, cfg *Config, deps Deps) *Session {
	id := types.NewConnectionID()
	s := &Session{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		routes:  deps.Router,
		events:  deps.Events,
		rec:     deps.Recorder,
		logger:  deps.Logger,
		started: time.Now(),
		state:   StateAccepted,
		drainCh: make(chan struct{}),
	}
	if addr := conn.RemoteAddr(); addr != nil {
		s.remote = addr.String()
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(
		zap.String("connection_id", id.String()),
		zap.String("remote_addr", s.remote),
	)
	s.limiter = &readLimiter{r: conn, remain: noLimit}
	return s
}

// ID 连接标识
func (s *Session) ID() types.ConnectionID { return s.id }

// RemoteAddr 对端地址
func (s *Session) RemoteAddr() string { return s.remote }

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Serve runs the session to completion. It always leaves the session Closed
// with the connection closed, and returns the error that ended it (nil for
// a clean close).
func (s *Session) Serve(ctx context.Context) (err error) {
	s.rec.ConnectionOpened()
	s.publish(types.ConnectionOpened(s.id, s.remote))
	s.logger.Debug("connection accepted")

	br := pool.GetReader(s.limiter)
	recycle := true
	defer func() {
		s.closeConn(false)
		if recycle {
			pool.PutReader(br)
		}
		s.transition(StateClosed)
		s.rec.ConnectionClosed(time.Since(s.started))
		s.logger.Debug("connection closed", zap.Error(err))
	}()

	if s.cfg.HandshakeTimeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}

	kind, pc, err := transport.Classify(s.conn, br, s.cfg.TLSMode == TLSRequired)
	if err != nil {
		if errors.Is(err, transport.ErrNotTLS) {
			_, _ = io.WriteString(s.conn, notTLSResponse)
			s.lingerClose()
		}
		if errors.Is(err, transport.ErrShortPrefix) {
			// 对端未发送任何字节即关闭，不视为错误
			return nil
		}
		return s.fail(types.StageClassify, types.NewError(types.ErrClassifyFailed, "classification failed").
			WithStage(types.StageClassify).WithCause(err))
	}
	if err := s.transition(StateClassified); err != nil {
		return err
	}

	var conn net.Conn = pc
	alpn := ""
	if kind == transport.KindTLS {
		if s.cfg.TLSMode == TLSDisabled || s.cfg.Upgrader == nil {
			return s.fail(types.StageClassify, types.NewError(types.ErrTLSUnavailable, "tls is not enabled on this listener").
				WithStage(types.StageClassify))
		}
		if err := s.transition(StateUpgrading); err != nil {
			return err
		}
		hctx := ctx
		if s.cfg.HandshakeTimeout > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
			defer cancel()
		}
		tc, proto, err := s.cfg.Upgrader.Upgrade(hctx, pc)
		if err != nil {
			return s.fail(types.StageHandshake, types.NewError(types.ErrTLSHandshake, "tls handshake failed").
				WithStage(types.StageHandshake).WithCause(err))
		}
		conn, alpn = tc, proto
		if err := s.transition(StateUpgraded); err != nil {
			return err
		}
	}
	_ = s.conn.SetDeadline(time.Time{})

	protocol := types.ProtocolHTTP1
	if alpn == "h2" {
		protocol = types.ProtocolHTTP2
	}
	if err := s.transition(StateProtocolSelected); err != nil {
		return err
	}
	s.rec.RecordProtocol(kind.String(), protocol)
	s.logger.Debug("protocol selected",
		zap.String("transport", kind.String()),
		zap.String("alpn", alpn),
		zap.String("protocol", protocol),
	)

	s.mu.Lock()
	s.active = conn
	s.mu.Unlock()
	if err := s.transition(StateServing); err != nil {
		return err
	}

	if protocol == types.ProtocolHTTP2 {
		// http2 的读帧 goroutine 可能在 ServeConn 返回后仍持有读缓冲，不回收
		recycle = false
		return s.serveH2(ctx, conn)
	}
	if kind == transport.KindTLS {
		tbr := pool.GetReader(conn)
		defer pool.PutReader(tbr)
		return s.serveH1(ctx, conn, tbr)
	}
	return s.serveH1(ctx, conn, br)
}

// Drain asks the session to finish its current work and close. Idle HTTP/1
// connections are woken immediately; HTTP/2 connections receive GOAWAY and
// finish their open streams. Drain does not wait.
func (s *Session) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return
	}
	s.draining = true
	close(s.drainCh)
	if s.idle && s.active != nil {
		_ = s.active.SetReadDeadline(time.Now())
	}
}

// Draining 是否已进入排空
func (s *Session) Draining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// Close force-closes the underlying connection. Serve returns shortly after.
func (s *Session) Close() {
	s.closeConn(true)
}

// closeConn closes the connection once. A forced close drops the raw socket
// first so a TLS close_notify cannot block on a stalled peer.
func (s *Session) closeConn(force bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		active := s.active
		s.mu.Unlock()
		if force {
			_ = s.conn.Close()
		}
		if active != nil {
			_ = active.Close()
		}
		_ = s.conn.Close()
	})
}

// lingerClose half-closes the write side and discards input until the peer
// closes or rstAvoidanceDelay passes, so unread request bytes do not turn
// the final response into a connection reset.
func (s *Session) lingerClose() {
	cw, ok := s.conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(rstAvoidanceDelay))
	_, _ = io.Copy(io.Discard, s.conn)
}

// enterIdle marks the connection idle between keep-alive requests. It
// reports false when the session is draining and must not wait.
func (s *Session) enterIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.idle = true
	return true
}

func (s *Session) exitIdle() {
	s.mu.Lock()
	s.idle = false
	s.mu.Unlock()
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if from == to && to == StateClosed {
		s.mu.Unlock()
		return nil
	}
	if !CanTransition(from, to) {
		s.mu.Unlock()
		s.logger.Error("illegal state transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	s.state = to
	s.mu.Unlock()
	s.logger.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	return nil
}

// fail reports a connection-level error and returns it.
func (s *Session) fail(stage string, err error) error {
	s.rec.RecordSessionError(stage)
	s.publish(types.ErrorEvent(s.id, stage, err))
	s.logger.Warn("connection error", zap.String("stage", stage), zap.Error(err))
	return err
}

func (s *Session) publish(ev types.LifecycleEvent) {
	if ev.RemoteAddr == "" {
		ev.RemoteAddr = s.remote
	}
	s.events.Publish(ev)
}

// =============================================================================
// 读取限额
// =============================================================================

const noLimit = int64(1<<63 - 1)

var errHeaderTooLarge = errors.New("session: request header too large")

// readLimiter bounds how many bytes the codec may pull from the connection
// while reading request headers.
type readLimiter struct {
	r      io.Reader
	mu     sync.Mutex
	remain int64
}

func (l *readLimiter) Read(p []byte) (int, error) {
	l.mu.Lock()
	remain := l.remain
	l.mu.Unlock()
	if remain <= 0 {
		return 0, errHeaderTooLarge
	}
	if int64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := l.r.Read(p)
	l.mu.Lock()
	if l.remain != noLimit {
		l.remain -= int64(n)
	}
	l.mu.Unlock()
	return n, err
}

func (l *readLimiter) set(n int64) {
	l.mu.Lock()
	l.remain = n
	l.mu.Unlock()
}
