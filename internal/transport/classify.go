package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
)

// Kind 传输类型
type Kind int

const (
	// KindPlain 明文 HTTP
	KindPlain Kind = iota + 1
	// KindTLS TLS ClientHello
	KindTLS
)

// String 实现 fmt.Stringer
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// PrefixLen is the number of bytes inspected by Classify.
const PrefixLen = 3

const (
	recordTypeHandshake = 0x16
	majorVersionTLS     = 0x03
	minMinorVersion     = 0x01
	maxMinorVersion     = 0x03
)

var (
	// ErrShortPrefix 连接未发送任何字节即关闭
	ErrShortPrefix = errors.New("transport: connection closed before classification prefix")
	// ErrTruncatedPrefix 连接发送了不足 PrefixLen 字节后关闭
	ErrTruncatedPrefix = errors.New("transport: truncated classification prefix")
	// ErrNotTLS 监听器要求 TLS，但前缀不是 TLS 记录
	ErrNotTLS = errors.New("transport: non-TLS prefix on TLS-required listener")
)

// IsTLSPrefix reports whether p starts with a TLS handshake record header.
func IsTLSPrefix(p []byte) bool {
	return len(p) >= PrefixLen &&
		p[0] == recordTypeHandshake &&
		p[1] == majorVersionTLS &&
		p[2] >= minMinorVersion && p[2] <= maxMinorVersion
}

// PeekedConn is a net.Conn whose reads are served through the bufio.Reader
// that performed classification, so peeked bytes are replayed.
type PeekedConn struct {
	net.Conn
	r *bufio.Reader
}

// NewPeekedConn wraps conn. r must read from conn.
func NewPeekedConn(conn net.Conn, r *bufio.Reader) *PeekedConn {
	return &PeekedConn{Conn: conn, r: r}
}

// Read 优先读取缓冲区中的已窥视字节
func (c *PeekedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// Buffered returns the number of bytes held in the replay buffer.
func (c *PeekedConn) Buffered() int {
	return c.r.Buffered()
}

// Classify peeks at the first PrefixLen bytes of conn through br without
// consuming them. br must wrap conn and must not have been read from.
// When requireTLS is set a plaintext prefix yields ErrNotTLS together with
// the wrapped connection, so the caller can still answer on it.
func Classify(conn net.Conn, br *bufio.Reader, requireTLS bool) (Kind, *PeekedConn, error) {
	pc := NewPeekedConn(conn, br)
	prefix, err := br.Peek(PrefixLen)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if len(prefix) == 0 {
				return 0, pc, ErrShortPrefix
			}
			return 0, pc, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedPrefix, len(prefix), PrefixLen)
		}
		return 0, pc, fmt.Errorf("transport: peek prefix: %w", err)
	}
	if IsTLSPrefix(prefix) {
		return KindTLS, pc, nil
	}
	if requireTLS {
		return KindPlain, pc, ErrNotTLS
	}
	return KindPlain, pc, nil
}
