package adapter

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

var ErrInvalidTLSFiles = errors.New("invalid TLS files")

// MakeTLSConfig builds the client TLS config shared by the broker and Redis
// connections. All args are file paths. Empty paths disable TLS and a nil
// config is returned. The client certificate is optional, but cert and key
// come together.
func MakeTLSConfig(ca, cert, key string) (*tls.Config, error) {
	const op = "adapter.MakeTLSConfig"

	if ca == "" && cert == "" && key == "" {
		return nil, nil
	}
	if ca == "" || (cert == "") != (key == "") {
		return nil, fmt.Errorf(
			"%s: %w: ca is required, cert and key go in pairs",
			op, ErrInvalidTLSFiles,
		)
	}

	caCert, err := os.ReadFile(ca)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CA certificate file: %w", op, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf(
			"%s: %w: failed to parse CA certificate", op, ErrInvalidTLSFiles,
		)
	}

	cfg := &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}

	if cert != "" {
		clientCert, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cfg.Certificates = []tls.Certificate{clientCert}
	}

	return cfg, nil
}
