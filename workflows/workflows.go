// Package workflows builds the scoring workflow and its collaborators from
// the application configuration. The scoring package knows nothing about
// config files, API keys or which embedder is selected; this package does.
package workflows

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nomis52/docscore/clients/openai"
	"github.com/nomis52/docscore/config"
	"github.com/nomis52/docscore/embed"
	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/judge"
	"github.com/nomis52/docscore/metrics"
	"github.com/nomis52/docscore/scoring"
)

// Params contains common parameters for workflow construction.
type Params struct {
	// Config is the application configuration.
	Config *config.Config

	// Logger is the base logger for the workflow and its clients.
	Logger *slog.Logger

	// Registry is used for workflow metrics. May be nil if metrics are not needed.
	Registry metrics.Registry

	// Metrics are already registered workflow metrics, e.g. kept across
	// config reloads. Takes precedence over Registry.
	Metrics *metrics.Workflow

	// Deps overrides the collaborators built from Config. Nil fields are
	// built as usual.
	Deps scoring.Deps
}

// New builds a scoring workflow from p.
func New(p Params) (*scoring.Workflow, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("workflows: config is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	deps, err := NewDeps(p.Config, logger, p.Deps)
	if err != nil {
		return nil, err
	}

	opts := []scoring.Option{scoring.WithLogger(logger)}
	switch {
	case p.Metrics != nil:
		opts = append(opts, scoring.WithMetrics(p.Metrics))
	case p.Registry != nil:
		m, err := metrics.NewWorkflow(p.Registry)
		if err != nil {
			return nil, fmt.Errorf("registering workflow metrics: %w", err)
		}
		opts = append(opts, scoring.WithMetrics(m))
	}

	return scoring.NewWorkflow(p.Config.Scoring.Config, deps, opts...)
}

// NewDeps builds the extractor, embedder and scorer selected by cfg. Fields
// already set in override are kept.
func NewDeps(cfg *config.Config, logger *slog.Logger, override scoring.Deps) (scoring.Deps, error) {
	deps := override

	if deps.Extractor == nil {
		extractor, err := NewExtractor(cfg.Extraction, logger)
		if err != nil {
			return scoring.Deps{}, err
		}
		deps.Extractor = extractor
	}

	var client *openai.Client
	openAIClient := func() (*openai.Client, error) {
		if client != nil {
			return client, nil
		}
		key := cfg.OpenAI.ResolveAPIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: set openai.api_key or $%s", config.ErrMissingAPIKey, cfg.OpenAI.APIKeyEnv)
		}
		c, err := openai.New(cfg.OpenAI.BaseURL,
			openai.WithAPIKey(key),
			openai.WithTimeout(cfg.OpenAI.Timeout),
			openai.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		client = c
		return client, nil
	}

	if deps.Embedder == nil {
		switch cfg.Embedding.Provider {
		case config.ProviderHashing:
			deps.Embedder = embed.NewHashingEmbedder(cfg.Embedding.Dimensions)
		default:
			c, err := openAIClient()
			if err != nil {
				return scoring.Deps{}, err
			}
			deps.Embedder = embed.NewOpenAIEmbedder(c, cfg.OpenAI.EmbeddingModel)
		}
	}

	if deps.Scorer == nil {
		c, err := openAIClient()
		if err != nil {
			return scoring.Deps{}, err
		}
		opts := []judge.ChatOption{
			judge.WithModel(cfg.OpenAI.ChatModel),
			judge.WithLogger(logger),
		}
		if cfg.OpenAI.Temperature != nil {
			opts = append(opts, judge.WithTemperature(*cfg.OpenAI.Temperature))
		}
		deps.Scorer = judge.NewChatScorer(c, opts...)
	}

	return deps, nil
}

// NewExtractor returns a router for local files and uploads and, when SSH is
// configured, remote documents.
func NewExtractor(cfg config.ExtractionConfig, logger *slog.Logger) (*extract.Router, error) {
	text := extract.NewTextExtractor(
		extract.WithMaxBytes(cfg.MaxBytes),
		extract.WithLogger(logger),
	)
	router := extract.NewRouter().
		Handle(extract.SourceFile, text).
		Handle(extract.SourceBytes, text)

	if cfg.SSH.Enabled() {
		key, err := os.ReadFile(cfg.SSH.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading ssh private key: %w", err)
		}
		router.Handle(extract.SourceSSH, extract.NewSSHExtractor(extract.SSHConfig{
			User:           cfg.SSH.User,
			PrivateKeyPEM:  string(key),
			KnownHostsFile: cfg.SSH.KnownHostsFile,
			DialTimeout:    cfg.SSH.DialTimeout,
		}, text, logger))
	}
	return router, nil
}
