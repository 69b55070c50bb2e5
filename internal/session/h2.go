package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/BaSui01/gatewire/types"
)

// h2DrainRetry 排空期间重复发送 GOAWAY 的间隔，覆盖连接尚未注册的窗口
const h2DrainRetry = 50 * time.Millisecond

// serveH2 hands the connection to the HTTP/2 codec. Every stream runs
// dispatch in the codec's own goroutine.
func (s *Session) serveH2(ctx context.Context, conn net.Conn) error {
	base := &http.Server{
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: s.headerLimit(),
		ErrorLog:       zap.NewStdLog(s.logger.Named("http2")),
	}
	h2 := &http2.Server{
		MaxConcurrentStreams: s.cfg.MaxConcurrentStreams,
		IdleTimeout:          s.cfg.IdleTimeout,
	}
	// ConfigureServer 注册 base.Shutdown 时的 GOAWAY 回调
	if err := http2.ConfigureServer(base, h2); err != nil {
		return s.fail(types.StageHandshake, err)
	}

	done := make(chan struct{})
	defer close(done)
	go s.watchDrainH2(base, done)

	h2.ServeConn(conn, &http2.ServeConnOpts{
		Context:    ctx,
		BaseConfig: base,
		Handler:    http.HandlerFunc(s.serveH2Stream),
	})
	return nil
}

// watchDrainH2 triggers a graceful GOAWAY once the session starts draining.
func (s *Session) watchDrainH2(base *http.Server, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-s.drainCh:
	}
	ticker := time.NewTicker(h2DrainRetry)
	defer ticker.Stop()
	for {
		_ = base.Shutdown(context.Background())
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) serveH2Stream(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r.Body, r.ContentLength, s.cfg.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_ = s.fail(types.StageDecode, types.NewError(types.ErrBodyTooLarge, "request body too large").
				WithStage(types.StageDecode).WithHTTPStatus(http.StatusRequestEntityTooLarge))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = s.fail(types.StageDecode, types.NewDecodeError(err))
		return
	}

	req := requestFromHTTP(r, body, s.remote, types.ProtocolHTTP2)
	ex := s.dispatch(r.Context(), req)

	h := w.Header()
	ex.resp.Headers.WriteTo(h)
	// HTTP/2 禁止连接级头部
	h.Del("Connection")
	h.Del("Transfer-Encoding")
	h.Del("Keep-Alive")
	w.WriteHeader(ex.resp.Status)
	if r.Method != http.MethodHead && len(ex.resp.Body) > 0 {
		if _, err := w.Write(ex.resp.Body); err != nil {
			_ = s.fail(types.StageWrite, types.NewError(types.ErrWriteFailed, "failed to write response").
				WithStage(types.StageWrite).WithCause(err))
			return
		}
	}
	s.complete(ex)
}
