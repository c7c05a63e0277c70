package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rolloutd/agent/pkg/types"
)

// ResolveHostCertPaths returns the client certificate, key, and CA
// paths to use when talking to the step repository for hostname,
// honoring a per-host override (agent config keys suffixed
// ".<hostname>") before falling back to the global keys.
func ResolveHostCertPaths(cfg *types.AgentConfig, hostname string) (cert, key, ca string) {
	pick := func(base string) string {
		if v := cfg.Get(base + "." + hostname); v != "" {
			return v
		}
		return cfg.Get(base)
	}
	return pick("client_certificate"), pick("client_certificate_key"), pick("ca_certificate")
}

// ClientTLSConfig builds a tls.Config presenting the client
// certificate at certPath/keyPath and validating the server against
// the CA at caPath. Relative paths are resolved against configdir.
// Any of the three may be empty, in which case TLS uses the system
// trust store and presents no client certificate.
func ClientTLSConfig(configdir, certPath, keyPath, caPath string) (*tls.Config, error) {
	cfg := &tls.Config{}

	if certPath != "" && keyPath != "" {
		cert, err := tls.LoadX509KeyPair(resolve(configdir, certPath), resolve(configdir, keyPath))
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if caPath != "" {
		pem, err := os.ReadFile(resolve(configdir, caPath))
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caPath)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func resolve(configdir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configdir, path)
}
