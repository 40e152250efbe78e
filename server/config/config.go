// Package config holds the runtime configuration of the docscore server.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/docscore/extract"
)

const (
	defaultListenAddr  = ":8080"
	defaultHistorySize = 100
	defaultLogLevel    = "info"
)

// ServerConfig represents the server runtime configuration.
type ServerConfig struct {
	Listener ListenerConfig `yaml:"listener"`
	Cron     []CronJob      `yaml:"cron"`
	// The path to the directory used to store the run history. History is
	// kept in memory when empty.
	StateDir string `yaml:"state_dir"`
	// The number of finished runs to keep.
	HistorySize int    `yaml:"history_size"`
	LogLevel    string `yaml:"log_level"`
	// The path to the workflow config file
	WorkflowConfig string `yaml:"workflow_config"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
	// TLS is enabled when both files are set. Rotated certificates are
	// picked up without a restart.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TLSEnabled reports whether the listener serves HTTPS.
func (l ListenerConfig) TLSEnabled() bool {
	return l.CertFile != "" && l.KeyFile != ""
}

// CronJob evaluates a fixed pair of documents on a schedule. Documents are
// references accepted by extract.ParseRef, e.g. "/srv/cv.md" or
// "ssh://host/srv/job.md".
type CronJob struct {
	Name        string `yaml:"name"`
	Schedule    string `yaml:"schedule"`
	Candidate   string `yaml:"candidate"`
	Requirement string `yaml:"requirement"`
}

// LoadConfig reads the YAML config file at the given path and returns a ServerConfig struct.
func LoadConfig(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open server config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode YAML server config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults sets reasonable default values for optional fields.
func (c *ServerConfig) SetDefaults() {
	if c.Listener.Addr == "" {
		c.Listener.Addr = defaultListenAddr
	}
	if c.HistorySize == 0 {
		c.HistorySize = defaultHistorySize
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	for i := range c.Cron {
		if c.Cron[i].Name == "" {
			c.Cron[i].Name = fmt.Sprintf("job-%d", i+1)
		}
	}
}

// Validate checks the fields the server cannot start without. Cron
// schedules are checked when the triggers are built.
func (c *ServerConfig) Validate() error {
	if c.WorkflowConfig == "" {
		return errors.New("workflow_config is required")
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("history_size must be at least 1, got %d", c.HistorySize)
	}
	if (c.Listener.CertFile == "") != (c.Listener.KeyFile == "") {
		return errors.New("listener: cert_file and key_file must be set together")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	seen := make(map[string]bool, len(c.Cron))
	for _, job := range c.Cron {
		if seen[job.Name] {
			return fmt.Errorf("cron: duplicate job name %q", job.Name)
		}
		seen[job.Name] = true
		if job.Schedule == "" {
			return fmt.Errorf("cron job %q: missing schedule", job.Name)
		}
		if _, err := extract.ParseRef(job.Candidate); err != nil {
			return fmt.Errorf("cron job %q: candidate: %w", job.Name, err)
		}
		if _, err := extract.ParseRef(job.Requirement); err != nil {
			return fmt.Errorf("cron job %q: requirement: %w", job.Name, err)
		}
	}
	return nil
}
