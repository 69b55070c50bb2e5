package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/gatewire/internal/pool"
	"github.com/BaSui01/gatewire/types"
)

// DefaultMaxHeaderBytes 未配置时的请求头上限
const DefaultMaxHeaderBytes = 1 << 20

var errBodyTooLarge = errors.New("session: request body too large")

// serveH1 runs the HTTP/1.1 exchange loop. Without keep-alive it serves
// exactly one request.
func (s *Session) serveH1(ctx context.Context, conn net.Conn, br *bufio.Reader) error {
	bw := pool.GetWriter(conn)
	defer pool.PutWriter(bw)

	for served := 0; ; served++ {
		if served > 0 {
			// 先设置空闲超时再标记空闲，Drain 设置的截止时间不会被覆盖
			setReadDeadline(conn, s.cfg.IdleTimeout)
			if !s.enterIdle() {
				return nil
			}
			_, err := br.Peek(1)
			s.exitIdle()
			if err != nil {
				// 空闲超时、排空唤醒或对端关闭
				return nil
			}
		}

		setReadDeadline(conn, s.cfg.ReadTimeout)
		s.limiter.set(int64(s.headerLimit()) + pool.BufferSize)
		hreq, err := http.ReadRequest(br)
		s.limiter.set(noLimit)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			status := http.StatusBadRequest
			if errors.Is(err, errHeaderTooLarge) {
				status = http.StatusRequestHeaderFieldsTooLarge
			}
			s.writeStatus(conn, bw, status)
			return s.fail(types.StageDecode, types.NewDecodeError(err).WithHTTPStatus(status))
		}

		if strings.EqualFold(hreq.Header.Get("Expect"), "100-continue") {
			_, _ = bw.WriteString("HTTP/1.1 100 Continue\r\n\r\n")
			_ = bw.Flush()
		}
		body, err := readBody(hreq.Body, hreq.ContentLength, s.cfg.MaxBodyBytes)
		_ = hreq.Body.Close()
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				s.writeStatus(conn, bw, http.StatusRequestEntityTooLarge)
				return s.fail(types.StageDecode, types.NewError(types.ErrBodyTooLarge, "request body too large").
					WithStage(types.StageDecode).WithHTTPStatus(http.StatusRequestEntityTooLarge))
			}
			s.writeStatus(conn, bw, http.StatusBadRequest)
			return s.fail(types.StageDecode, types.NewDecodeError(err))
		}
		setReadDeadline(conn, 0)

		req := requestFromHTTP(hreq, body, s.remote, types.ProtocolHTTP1)
		ex := s.dispatch(ctx, req)

		keepAlive := s.cfg.KeepAlive && !hreq.Close && !s.Draining()
		setWriteDeadline(conn, s.cfg.WriteTimeout)
		err = writeResponse(bw, ex.resp, hreq.Method, keepAlive)
		if err == nil {
			err = bw.Flush()
		}
		if err != nil {
			return s.fail(types.StageWrite, types.NewError(types.ErrWriteFailed, "failed to write response").
				WithStage(types.StageWrite).WithCause(err))
		}
		setWriteDeadline(conn, 0)
		s.complete(ex)

		if !keepAlive {
			return nil
		}
	}
}

func (s *Session) headerLimit() int {
	if s.cfg.MaxHeaderBytes <= 0 {
		return DefaultMaxHeaderBytes
	}
	return s.cfg.MaxHeaderBytes
}

// writeStatus writes a fixed empty response and closes the exchange.
func (s *Session) writeStatus(conn net.Conn, bw *bufio.Writer, status int) {
	setWriteDeadline(conn, s.cfg.WriteTimeout)
	if err := writeResponse(bw, types.NewResponse(status), "", false); err == nil {
		_ = bw.Flush()
	}
	s.lingerClose()
}

// readBody reads at most limit bytes (limit <= 0 means unlimited).
func readBody(body io.Reader, contentLength, limit int64) ([]byte, error) {
	if limit > 0 && contentLength > limit {
		return nil, errBodyTooLarge
	}
	if contentLength == 0 {
		return nil, nil
	}

	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	r := body
	if limit > 0 {
		r = io.LimitReader(body, limit+1)
	}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	if limit > 0 && int64(buf.Len()) > limit {
		return nil, errBodyTooLarge
	}
	if buf.Len() == 0 {
		return nil, nil
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// requestFromHTTP converts a decoded net/http request.
func requestFromHTTP(hreq *http.Request, body []byte, remote, protocol string) *types.Request {
	req := types.NewRequest(hreq.Method, hreq.URL.Path)
	req.Query = hreq.URL.RawQuery
	req.Headers = types.HeaderFromHTTP(hreq.Header)
	if hreq.Host != "" {
		req.Headers.Set("host", hreq.Host)
	}
	req.Body = body
	req.RemoteAddr = remote
	req.Protocol = protocol
	return req
}

// writeResponse writes a complete HTTP/1.1 response. content-length is sent
// whenever the body is non-empty, and also for empty bodies on keep-alive
// connections so the client can frame the next response.
func writeResponse(bw *bufio.Writer, resp *types.Response, method string, keepAlive bool) error {
	reason := http.StatusText(resp.Status)
	if reason == "" {
		reason = "status code " + strconv.Itoa(resp.Status)
	}
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.Status, reason); err != nil {
		return err
	}
	for _, k := range resp.Headers.Keys() {
		switch k {
		case "content-length", "connection", "transfer-encoding":
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", http.CanonicalHeaderKey(k), sanitizeHeaderValue(resp.Headers[k])); err != nil {
			return err
		}
	}

	bodyAllowed := bodyAllowedForStatus(resp.Status)
	if bodyAllowed && (len(resp.Body) > 0 || keepAlive) {
		if _, err := fmt.Fprintf(bw, "Content-Length: %d\r\n", len(resp.Body)); err != nil {
			return err
		}
	}
	conn := "close"
	if keepAlive {
		conn = "keep-alive"
	}
	if _, err := fmt.Fprintf(bw, "Connection: %s\r\n\r\n", conn); err != nil {
		return err
	}
	if bodyAllowed && method != http.MethodHead && len(resp.Body) > 0 {
		if _, err := bw.Write(resp.Body); err != nil {
			return err
		}
	}
	return nil
}

func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func sanitizeHeaderValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func setReadDeadline(conn net.Conn, d time.Duration) {
	if d > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(d))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
}

func setWriteDeadline(conn net.Conn, d time.Duration) {
	if d > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(d))
		return
	}
	_ = conn.SetWriteDeadline(time.Time{})
}
