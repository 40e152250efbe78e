package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/docscore/logging"
	"github.com/nomis52/docscore/scoring"
)

const (
	// Default scoring settings
	defaultMaxConcurrent = 4

	// Default OpenAI settings
	defaultBaseURL        = "https://api.openai.com"
	defaultAPIKeyEnv      = "OPENAI_API_KEY"
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultTemperature    = 0.3
	defaultTimeout        = 60 * time.Second

	// Default embedding settings
	defaultDimensions = 512

	// Default extraction settings
	defaultMaxBytes       = 5 << 20
	defaultSSHDialTimeout = 10 * time.Second

	// Default monitoring settings
	defaultMetricsPrefix = "docscore"
	defaultJobName       = "docscore"

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
	defaultLogOutput = "stdout"
)

// Embedding providers.
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// ErrMissingAPIKey is returned when an OpenAI backed component has no API key.
var ErrMissingAPIKey = errors.New("missing OpenAI API key")

// Config represents the complete application configuration
type Config struct {
	Scoring    ScoringConfig    `yaml:"scoring"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    logging.Config   `yaml:"logging"`
}

// ScoringConfig holds the workflow settings.
type ScoringConfig struct {
	scoring.Config `yaml:",inline"`

	// MaxConcurrent bounds the evaluations the server runs at once.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// OpenAIConfig holds settings for the OpenAI compatible API used by the
// judge and the embedder.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	// APIKey takes precedence over APIKeyEnv.
	APIKey         string        `yaml:"api_key"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	ChatModel      string        `yaml:"chat_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Temperature    *float64      `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
}

// EmbeddingConfig selects the embedder.
type EmbeddingConfig struct {
	// Provider is "openai" or "hashing". The hashing embedder works offline.
	Provider   string `yaml:"provider"`
	Dimensions int    `yaml:"dimensions"`
}

// ExtractionConfig holds document extraction settings.
type ExtractionConfig struct {
	MaxBytes int64     `yaml:"max_bytes"`
	SSH      SSHConfig `yaml:"ssh"`
}

// SSHConfig holds settings for fetching ssh:// documents. Remote documents
// are disabled when User is empty.
type SSHConfig struct {
	User           string        `yaml:"user"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	KnownHostsFile string        `yaml:"known_hosts_file"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

// Enabled reports whether remote documents can be fetched.
func (c SSHConfig) Enabled() bool {
	return c.User != ""
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	// VictoriaMetricsURL is the base URL of a remote write endpoint. The CLI
	// pushes evaluation metrics to it when set.
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// ResolveAPIKey returns the configured API key, falling back to the environment.
func (c OpenAIConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Scoring.MaxConcurrent < 1 {
		return fmt.Errorf("scoring: max_concurrent must be at least 1")
	}
	u, err := url.Parse(c.OpenAI.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("openai: invalid base_url %q", c.OpenAI.BaseURL)
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai: timeout must be positive")
	}
	if t := c.OpenAI.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("openai: temperature %v outside [0, 2]", *t)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderHashing:
	default:
		return fmt.Errorf("embedding: unknown provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding: dimensions must be positive")
	}
	if c.Extraction.MaxBytes <= 0 {
		return fmt.Errorf("extraction: max_bytes must be positive")
	}
	if c.Extraction.SSH.Enabled() && c.Extraction.SSH.PrivateKeyFile == "" {
		return fmt.Errorf("extraction: ssh private_key_file is required when ssh user is set")
	}
	if c.Monitoring.VictoriaMetricsURL != "" {
		if _, err := url.ParseRequestURI(c.Monitoring.VictoriaMetricsURL); err != nil {
			return fmt.Errorf("monitoring: invalid victoriametrics_url: %w", err)
		}
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	c.Scoring.SetDefaults()
	if c.Scoring.MaxConcurrent == 0 {
		c.Scoring.MaxConcurrent = defaultMaxConcurrent
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultBaseURL
	}
	if c.OpenAI.APIKeyEnv == "" {
		c.OpenAI.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = defaultChatModel
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = defaultEmbeddingModel
	}
	if c.OpenAI.Temperature == nil {
		t := defaultTemperature
		c.OpenAI.Temperature = &t
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = defaultTimeout
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = defaultDimensions
	}
	if c.Extraction.MaxBytes == 0 {
		c.Extraction.MaxBytes = defaultMaxBytes
	}
	if c.Extraction.SSH.DialTimeout == 0 {
		c.Extraction.SSH.DialTimeout = defaultSSHDialTimeout
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	// Set logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// Default returns a Config with every default applied.
func Default() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decoding %s: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Redacted returns a copy of the config that is safe to show to users.
func (c Config) Redacted() Config {
	if c.OpenAI.APIKey != "" {
		c.OpenAI.APIKey = "REDACTED"
	}
	if c.OpenAI.Temperature != nil {
		t := *c.OpenAI.Temperature
		c.OpenAI.Temperature = &t
	}
	return c
}
