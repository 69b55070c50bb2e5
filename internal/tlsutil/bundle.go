package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// ALPN protocol identifiers.
const (
	ALPNHTTP2  = "h2"
	ALPNHTTP11 = "http/1.1"
)

// DefaultALPN 服务端优先的默认 ALPN 顺序
var DefaultALPN = []string{ALPNHTTP2, ALPNHTTP11}

var (
	ErrNoCertificate = errors.New("tlsutil: credential bundle has no certificate")
	ErrEmptyALPN     = errors.New("tlsutil: empty ALPN token")
)

// CredentialBundle 证书链、私钥与按优先级排列的 ALPN 协议列表
type CredentialBundle struct {
	Certificates []tls.Certificate
	ALPN         []string

	// Leaf 可选，用于客户端信任（测试与健康检查）
	Leaf *x509.Certificate
}

// NewCredentialBundle validates the inputs and returns a bundle. A nil or
// empty alpn list selects DefaultALPN.
func NewCredentialBundle(certs []tls.Certificate, alpn []string) (*CredentialBundle, error) {
	if len(certs) == 0 {
		return nil, ErrNoCertificate
	}
	if len(alpn) == 0 {
		alpn = DefaultALPN
	}
	for _, p := range alpn {
		if p == "" {
			return nil, ErrEmptyALPN
		}
	}
	b := &CredentialBundle{
		Certificates: certs,
		ALPN:         append([]string(nil), alpn...),
	}
	if len(certs[0].Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(certs[0].Certificate[0]); err == nil {
			b.Leaf = leaf
		}
	}
	return b, nil
}

// LoadCredentialBundle 从 PEM 文件加载证书与私钥
func LoadCredentialBundle(certFile, keyFile string, alpn []string) (*CredentialBundle, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load key pair: %w", err)
	}
	return NewCredentialBundle([]tls.Certificate{cert}, alpn)
}

// ServerConfig returns a hardened server-side tls.Config advertising the
// bundle's ALPN tokens in preference order.
func (b *CredentialBundle) ServerConfig() *tls.Config {
	cfg := DefaultTLSConfig()
	cfg.Certificates = b.Certificates
	cfg.NextProtos = append([]string(nil), b.ALPN...)
	return cfg
}

// RootPool returns a pool trusting the bundle's leaf, or nil when unknown.
func (b *CredentialBundle) RootPool() *x509.CertPool {
	if b.Leaf == nil {
		return nil
	}
	pool := x509.NewCertPool()
	pool.AddCert(b.Leaf)
	return pool
}

// SelfSigned generates an ECDSA P-256 self-signed bundle valid for hosts
// (DNS names or IP literals). Intended for development and tests.
func SelfSigned(alpn []string, hosts ...string) (*CredentialBundle, error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("tlsutil: serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hosts[0], Organization: []string{"gatewire"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: create certificate: %w", err)
	}
	return NewCredentialBundle([]tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}, alpn)
}
