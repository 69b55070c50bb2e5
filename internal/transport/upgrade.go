package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/BaSui01/gatewire/internal/tlsutil"
)

var (
	// ErrHandshake TLS 握手失败
	ErrHandshake = errors.New("transport: tls handshake failed")
	// ErrNoCredentials 未配置证书
	ErrNoCredentials = errors.New("transport: no tls credentials configured")
)

// Upgrader performs server-side TLS handshakes with a fixed credential
// bundle. It is safe for concurrent use.
type Upgrader struct {
	config *tls.Config
}

// NewUpgrader builds an upgrader from bundle.
func NewUpgrader(bundle *tlsutil.CredentialBundle) (*Upgrader, error) {
	if bundle == nil {
		return nil, ErrNoCredentials
	}
	if len(bundle.Certificates) == 0 {
		return nil, tlsutil.ErrNoCertificate
	}
	return &Upgrader{config: bundle.ServerConfig()}, nil
}

// Config returns the server tls.Config. Callers must not modify it.
func (u *Upgrader) Config() *tls.Config {
	return u.config
}

// Upgrade runs the handshake on conn, bounded by ctx. It returns the TLS
// connection and the negotiated ALPN protocol ("" when none was agreed).
// ALPN selection follows server preference: the first bundle token that the
// client also offers wins.
func (u *Upgrader) Upgrade(ctx context.Context, conn net.Conn) (*tls.Conn, string, error) {
	tc := tls.Server(conn, u.config)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return tc, tc.ConnectionState().NegotiatedProtocol, nil
}
