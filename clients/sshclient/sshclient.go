// Package sshclient runs commands and reads files on a remote host over SSH.
package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrFileTooLarge is returned by ReadFile when the remote file exceeds the limit.
var ErrFileTooLarge = errors.New("remote file exceeds size limit")

const defaultDialTimeout = 10 * time.Second

// Config describes how to reach and authenticate to a host.
type Config struct {
	// Host is host:port. Port 22 is assumed when missing.
	Host string
	User string
	// PrivateKeyPEM is the PEM encoded private key.
	PrivateKeyPEM string
	// KnownHostsFile enables host key verification. When empty any host key is accepted.
	KnownHostsFile string
	DialTimeout    time.Duration
}

// SSHClient manages a persistent SSH connection for running multiple commands.
type SSHClient struct {
	client *ssh.Client
	host   string
}

// New creates a new SSHClient connected to the given host with the provided user and private key (PEM format).
func New(host, user, privateKeyPEM string) (*SSHClient, error) {
	return Dial(context.Background(), Config{Host: host, User: user, PrivateKeyPEM: privateKeyPEM})
}

// Dial connects to cfg.Host. The context bounds the TCP connect and the SSH handshake.
func Dial(ctx context.Context, cfg Config) (*SSHClient, error) {
	clientConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := withDefaultPort(cfg.Host)
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &SSHClient{client: ssh.NewClient(c, chans, reqs), host: addr}, nil
}

func clientConfig(cfg Config) (*ssh.ClientConfig, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("ssh host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}
	signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		hostKeyCallback, err = knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts %q: %w", cfg.KnownHostsFile, err)
		}
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
	}, nil
}

func withDefaultPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, "22")
}

// Host returns the host:port the client is connected to.
func (c *SSHClient) Host() string {
	return c.host
}

// Run executes a command on the remote host using a new session on the existing connection.
func (c *SSHClient) Run(command string) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	err := c.RunWithWriter(command, &stdoutBuf, &stderrBuf)
	return stdoutBuf.String(), stderrBuf.String(), err
}

// RunWithWriter executes a command on the remote host and streams stdout/stderr to the provided writers.
// If stdoutWriter or stderrWriter is nil, that stream will be discarded.
func (c *SSHClient) RunWithWriter(command string, stdoutWriter, stderrWriter io.Writer) error {
	return c.RunContext(context.Background(), command, stdoutWriter, stderrWriter)
}

// RunContext is RunWithWriter with cancellation. When ctx is done the session
// is closed, which aborts the remote command.
func (c *SSHClient) RunContext(ctx context.Context, command string, stdoutWriter, stderrWriter io.Writer) error {
	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	if stdoutWriter != nil {
		session.Stdout = stdoutWriter
	}
	if stderrWriter != nil {
		session.Stderr = stderrWriter
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to run command: %w", err)
		}
		return nil
	case <-ctx.Done():
		session.Close()
		return ctx.Err()
	}
}

// ReadFile returns the contents of a remote file. Files larger than
// maxBytes fail with ErrFileTooLarge. A maxBytes of 0 disables the limit.
func (c *SSHClient) ReadFile(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	w := &limitedBuffer{limit: maxBytes}
	var stderr bytes.Buffer
	err := c.RunContext(ctx, "cat -- "+ShellQuote(path), w, &stderr)
	if w.exceeded {
		return nil, fmt.Errorf("%w: %s:%s is larger than %d bytes", ErrFileTooLarge, c.host, path, maxBytes)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("reading %s:%s: %s: %w", c.host, path, msg, err)
		}
		return nil, fmt.Errorf("reading %s:%s: %w", c.host, path, err)
	}
	return w.buf.Bytes(), nil
}

// Close closes the underlying SSH connection.
func (c *SSHClient) Close() error {
	return c.client.Close()
}

// ShellQuote quotes s for use as a single POSIX shell word.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// limitedBuffer collects up to limit bytes and then discards the rest.
type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int64
	exceeded bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && int64(b.buf.Len()+len(p)) > b.limit {
		b.exceeded = true
		return len(p), nil
	}
	return b.buf.Write(p)
}
