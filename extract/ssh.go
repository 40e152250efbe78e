package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nomis52/docscore/clients/sshclient"
)

// RemoteReader reads a file from an SSH host.
type RemoteReader interface {
	ReadFile(ctx context.Context, path string, maxBytes int64) ([]byte, error)
	Close() error
}

// DialFunc opens a connection to host.
type DialFunc func(ctx context.Context, host string) (RemoteReader, error)

// SSHExtractor fetches documents from remote hosts over SSH and decodes them
// with a TextExtractor. A connection is opened per document.
type SSHExtractor struct {
	dial   DialFunc
	text   *TextExtractor
	logger *slog.Logger
}

// SSHConfig holds the credentials used for every remote host.
type SSHConfig struct {
	User           string
	PrivateKeyPEM  string
	KnownHostsFile string
	DialTimeout    time.Duration
}

// NewSSHExtractor returns an SSHExtractor that authenticates with cfg.
func NewSSHExtractor(cfg SSHConfig, text *TextExtractor, logger *slog.Logger) *SSHExtractor {
	dial := func(ctx context.Context, host string) (RemoteReader, error) {
		c, err := sshclient.Dial(ctx, sshclient.Config{
			Host:           host,
			User:           cfg.User,
			PrivateKeyPEM:  cfg.PrivateKeyPEM,
			KnownHostsFile: cfg.KnownHostsFile,
			DialTimeout:    cfg.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return NewSSHExtractorWithDialer(dial, text, logger)
}

// NewSSHExtractorWithDialer returns an SSHExtractor using dial to connect.
func NewSSHExtractorWithDialer(dial DialFunc, text *TextExtractor, logger *slog.Logger) *SSHExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSHExtractor{
		dial:   dial,
		text:   text,
		logger: logger.With("component", "ssh_extractor"),
	}
}

// Extract implements Extractor for SourceSSH handles.
func (e *SSHExtractor) Extract(ctx context.Context, h Handle) (text string, err error) {
	host, p, err := h.SplitRemote()
	if err != nil {
		return "", err
	}

	conn, err := e.dial(ctx, host)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", host, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			e.logger.Warn("closing ssh connection", "host", host, "error", cerr)
		}
	}()

	data, err := conn.ReadFile(ctx, p, e.text.maxBytes)
	if err != nil {
		if errors.Is(err, sshclient.ErrFileTooLarge) {
			return "", fmt.Errorf("%w: %v", ErrTooLarge, err)
		}
		return "", err
	}
	e.logger.Debug("fetched remote document", "host", host, "path", p, "bytes", len(data))
	return e.text.Decode(h.Name, data)
}
