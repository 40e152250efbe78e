package sshclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/srv/docs/resume.txt", want: `'/srv/docs/resume.txt'`},
		{in: "with space.txt", want: `'with space.txt'`},
		{in: "it's.txt", want: `'it'\''s.txt'`},
		{in: "$(rm -rf /)", want: `'$(rm -rf /)'`},
		{in: "", want: `''`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShellQuote(tt.in))
		})
	}
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "docs.example.com:22", withDefaultPort("docs.example.com"))
	assert.Equal(t, "docs.example.com:2222", withDefaultPort("docs.example.com:2222"))
	assert.Equal(t, "10.0.0.1:22", withDefaultPort("10.0.0.1"))
}

func TestDial_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{
			name:   "missing host",
			cfg:    Config{User: "docs"},
			errMsg: "ssh host is required",
		},
		{
			name:   "missing user",
			cfg:    Config{Host: "docs.example.com"},
			errMsg: "ssh user is required",
		},
		{
			name:   "bad key",
			cfg:    Config{Host: "docs.example.com", User: "docs", PrivateKeyPEM: "not a key"},
			errMsg: "failed to parse private key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Dial(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLimitedBuffer(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		b := &limitedBuffer{limit: 10}
		n, err := b.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.False(t, b.exceeded)
		assert.Equal(t, "hello", b.buf.String())
	})

	t.Run("over limit", func(t *testing.T) {
		b := &limitedBuffer{limit: 4}
		_, _ = b.Write([]byte("abc"))
		n, err := b.Write([]byte("def"))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.True(t, b.exceeded)
		assert.Equal(t, "abc", b.buf.String())
	})

	t.Run("no limit", func(t *testing.T) {
		b := &limitedBuffer{}
		_, _ = b.Write(make([]byte, 1<<16))
		assert.False(t, b.exceeded)
	})
}
