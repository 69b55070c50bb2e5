package config

import (
	"strings"

	"github.com/BaSui01/gatewire/internal/tlsutil"
)

// Enabled 是否启用 TLS
func (t TLSConfig) Enabled() bool {
	switch strings.ToLower(t.Mode) {
	case "", "disabled", "off":
		return false
	}
	return true
}

// Bundle loads the credential bundle described by the config. It returns
// nil when TLS is disabled and generates a self-signed certificate when no
// cert file is configured and SelfSigned is set.
func (t TLSConfig) Bundle() (*tlsutil.CredentialBundle, error) {
	if !t.Enabled() {
		return nil, nil
	}
	if t.CertFile == "" && t.SelfSigned {
		return tlsutil.SelfSigned(t.ALPN, t.Hosts...)
	}
	return tlsutil.LoadCredentialBundle(t.CertFile, t.KeyFile, t.ALPN)
}
