package transport

import (
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/juju/errors"
)

// Options locate the client identity and the CA that signs the endpoint.
type Options struct {
	CertPath string
	KeyPath  string
	CAPath   string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewMTLS returns a client that presents the configured certificate and
// trusts only the configured CA.
func NewMTLS(opts Options) (*HTTPClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := checkKeyFile(opts.KeyPath, logger); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
	if err != nil {
		return nil, errors.Annotatef(err, "loading client certificate %s", opts.CertPath)
	}

	caPEM, err := os.ReadFile(opts.CAPath)
	if err != nil {
		return nil, errors.Annotatef(err, "reading CA bundle %s", opts.CAPath)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.Errorf("no certificates found in CA bundle %s", opts.CAPath)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}

	return New(&http.Client{
		Transport: transport,
		Timeout:   timeout,
	}), nil
}

func checkKeyFile(path string, logger *slog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Annotatef(err, "checking private key %s", path)
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("private key %s is not a regular file", path)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("private key is accessible by other users",
			"path", path, "mode", perm.String())
	}
	return nil
}
