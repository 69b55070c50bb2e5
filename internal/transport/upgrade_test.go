package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/gatewire/internal/tlsutil"
)

type upgradeResult struct {
	kind  Kind
	alpn  string
	err   error
	state tls.ConnectionState
}

// serveOnce 接受一个连接，分类并升级，结果写入通道
func serveOnce(t *testing.T, u *Upgrader) (string, <-chan upgradeResult) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan upgradeResult, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			out <- upgradeResult{err: err}
			return
		}
		defer conn.Close()

		kind, pc, err := Classify(conn, bufio.NewReader(conn), true)
		if err != nil {
			out <- upgradeResult{kind: kind, err: err}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		tc, alpn, err := u.Upgrade(ctx, pc)
		res := upgradeResult{kind: kind, alpn: alpn, err: err}
		if tc != nil {
			res.state = tc.ConnectionState()
		}
		out <- res
	}()
	return ln.Addr().String(), out
}

func TestNewUpgrader_RequiresCredentials(t *testing.T) {
	_, err := NewUpgrader(nil)
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewUpgrader(&tlsutil.CredentialBundle{})
	assert.ErrorIs(t, err, tlsutil.ErrNoCertificate)
}

func TestUpgrade_ALPNSelection(t *testing.T) {
	bundle, err := tlsutil.SelfSigned(nil)
	require.NoError(t, err)
	u, err := NewUpgrader(bundle)
	require.NoError(t, err)

	tests := []struct {
		name   string
		client []string
		want   string
	}{
		{"h2 preferred", []string{"h2", "http/1.1"}, "h2"},
		{"server preference wins", []string{"http/1.1", "h2"}, "h2"},
		{"http1 only", []string{"http/1.1"}, "http/1.1"},
		{"no alpn", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, results := serveOnce(t, u)

			cfg := tlsutil.DefaultTLSConfig()
			cfg.RootCAs = bundle.RootPool()
			cfg.ServerName = "localhost"
			cfg.NextProtos = tt.client
			conn, err := tls.Dial("tcp", addr, cfg)
			require.NoError(t, err)
			defer conn.Close()
			assert.Equal(t, tt.want, conn.ConnectionState().NegotiatedProtocol)

			res := <-results
			require.NoError(t, res.err)
			assert.Equal(t, KindTLS, res.kind)
			assert.Equal(t, tt.want, res.alpn)
			assert.True(t, res.state.HandshakeComplete)
		})
	}
}

func TestUpgrade_MalformedHandshake(t *testing.T) {
	bundle, err := tlsutil.SelfSigned(nil)
	require.NoError(t, err)
	u, err := NewUpgrader(bundle)
	require.NoError(t, err)

	addr, results := serveOnce(t, u)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte{0x16, 0x03, 0x01, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'})
	require.NoError(t, err)
	_ = conn.Close()

	res := <-results
	assert.ErrorIs(t, res.err, ErrHandshake)
}

func TestUpgrade_PlaintextOnTLSListener(t *testing.T) {
	bundle, err := tlsutil.SelfSigned(nil)
	require.NoError(t, err)
	u, err := NewUpgrader(bundle)
	require.NoError(t, err)

	addr, results := serveOnce(t, u)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	res := <-results
	assert.ErrorIs(t, res.err, ErrNotTLS)
	assert.Equal(t, KindPlain, res.kind)
}
