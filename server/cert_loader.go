package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultCertCheckInterval = time.Minute

// CertLoader serves the listener certificate and swaps in a new one when
// the certificate or key file changes on disk, e.g. after a renewal.
type CertLoader struct {
	certFile      string
	keyFile       string
	checkInterval time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	cert      *tls.Certificate
	loadedAt  time.Time
	lastCheck time.Time
}

// NewCertLoader loads the key pair and returns a CertLoader. It fails if
// the initial load fails.
func NewCertLoader(certFile, keyFile string, logger *slog.Logger) (*CertLoader, error) {
	l := &CertLoader{
		certFile:      certFile,
		keyFile:       keyFile,
		checkInterval: defaultCertCheckInterval,
		logger:        logger.With("component", "tls"),
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// GetCertificate is a callback for tls.Config.GetCertificate. The files
// are checked at most once per check interval. A failed reload keeps the
// current certificate.
func (l *CertLoader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastCheck) < l.checkInterval {
		return l.cert, nil
	}
	l.lastCheck = now

	if l.changed() {
		if err := l.load(); err != nil {
			l.logger.Error("failed to reload certificate, keeping the current one", "error", err)
		}
	}
	return l.cert, nil
}

// changed reports whether either file was modified after the last load.
func (l *CertLoader) changed() bool {
	for _, f := range []string{l.certFile, l.keyFile} {
		info, err := os.Stat(f)
		if err != nil {
			l.logger.Warn("cannot stat certificate file", "file", f, "error", err)
			return false
		}
		if info.ModTime().After(l.loadedAt) {
			return true
		}
	}
	return false
}

func (l *CertLoader) load() error {
	cert, err := tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return fmt.Errorf("loading tls key pair: %w", err)
	}
	l.cert = &cert
	l.loadedAt = time.Now()
	l.logger.Info("loaded tls certificate", "cert", l.certFile, "key", l.keyFile)
	return nil
}
