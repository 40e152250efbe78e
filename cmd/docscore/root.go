package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomis52/docscore/buildinfo"
	"github.com/nomis52/docscore/config"
	"github.com/nomis52/docscore/logging"
	"github.com/nomis52/docscore/metrics"
	"github.com/nomis52/docscore/scoring"
	"github.com/nomis52/docscore/workflows"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docscore",
		Short: "Score a candidate document against a requirement document",
		Long: "docscore combines embedding similarity with two judged criteria into one\n" +
			"score, re-evaluating the criteria until a reviewer accepts the evaluation\n" +
			"or the iteration limit is reached.",
		Version:       buildinfo.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to the workflow config file (defaults apply when unset)")

	cmd.AddCommand(
		newScoreCmd(opts),
		newBatchCmd(opts),
		newGraphCmd(opts),
		newValidateCmd(opts),
		newServeCmd(),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the workflow config, or returns the defaults when no
// path was given.
func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger. Results are written to stdout, so logs
// configured for stdout go to stderr instead.
func newLogger(cfg logging.Config) (*slog.Logger, error) {
	if cfg.Output == "" || cfg.Output == "stdout" {
		cfg.Output = "stderr"
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Logger, nil
}

// newWorkflow builds the workflow for a scoring command. When monitoring is
// configured, metrics are buffered and pushed to VictoriaMetrics by the
// returned flush function, which the caller runs once scoring is done.
func newWorkflow(cfg *config.Config, logger *slog.Logger) (*scoring.Workflow, func(), error) {
	p := workflows.Params{
		Config: cfg,
		Logger: logger,
	}
	flush := func() {}
	if url := cfg.Monitoring.VictoriaMetricsURL; url != "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get hostname: %w", err)
		}
		push := metrics.NewPushRegistry(metrics.PushConfig{
			URL:      url,
			Prefix:   cfg.Monitoring.MetricsPrefix,
			Job:      cfg.Monitoring.JobName,
			Instance: hostname,
		})
		p.Registry = push
		flush = func() {
			ctx, cancel := context.WithTimeout(context.Background(), metrics.DefaultPushTimeout)
			defer cancel()
			if err := push.Flush(ctx); err != nil {
				logger.Warn("failed to push metrics", "url", url, "error", err)
			}
		}
	}
	w, err := workflows.New(p)
	if err != nil {
		return nil, nil, err
	}
	return w, flush, nil
}
