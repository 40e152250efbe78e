// Package server provides an HTTP server for docscore.
//
// The server exposes a REST API to score documents, inspect the scoring
// workflow and browse the history of evaluations, including the logs each
// stage wrote.
//
// # Endpoints
//
//   - GET /health - Simple health check, returns "ok"
//   - POST /score - Scores a multipart candidate/requirement pair
//   - GET /api/status - In-flight runs and the next scheduled evaluation
//   - GET /graph - Workflow topology as Mermaid, ?format=summary for text
//   - GET /config - Returns current workflow configuration as YAML
//   - POST /reload - Reloads the workflow configuration from disk
//   - GET /history - Returns history of completed runs
//   - GET /history/{id} - Returns the stage logs of one run
//   - POST /history/reload - Re-reads the history directory
//   - GET /metrics - Prometheus metrics
//
// # Architecture
//
// The workflow configuration and the compiled workflow are swapped
// atomically on reload. A run picks up the workflow current when it starts
// and keeps it until it ends, so reloads never change an in-progress
// evaluation. Metrics are registered once and shared by every workflow.
//
// # Example
//
//	cfg, err := config.LoadConfig("/etc/docscore/server.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/nomis52/docscore/config"
	"github.com/nomis52/docscore/logging"
	"github.com/nomis52/docscore/metrics"
	"github.com/nomis52/docscore/scoring"
	serverconfig "github.com/nomis52/docscore/server/config"
	"github.com/nomis52/docscore/server/cron"
	"github.com/nomis52/docscore/server/handlers"
	"github.com/nomis52/docscore/server/runner"
	"github.com/nomis52/docscore/workflows"
)

const (
	defaultReadTimeout = 30 * time.Second
	// Evaluations call the judge several times per pass.
	defaultWriteTimeout    = 10 * time.Minute
	defaultShutdownTimeout = 5 * time.Second
	// Room for the multipart framing around two maximum size documents.
	multipartOverhead = 1 << 20
)

// serverDeps holds config-derived dependencies that are swapped atomically on reload.
type serverDeps struct {
	config   *config.Config
	workflow *scoring.Workflow
}

// Server is the HTTP server for docscore.
type Server struct {
	cfg        *serverconfig.ServerConfig
	log        *logging.Logger
	logger     *slog.Logger
	logOutput  io.Writer
	override   scoring.Deps
	deps       atomic.Pointer[serverDeps]
	registry   *metrics.ScrapeRegistry
	metrics    *metrics.Workflow
	diskStore  *runner.DiskStore
	runner     *runner.Runner
	cron       *cron.CronTriggerManager
	certLoader *CertLoader
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithLogOutput sends server logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(s *Server) error {
		s.logOutput = w
		return nil
	}
}

// WithDeps overrides the workflow collaborators built from the workflow
// config. Nil fields are built as usual.
func WithDeps(deps scoring.Deps) Option {
	return func(s *Server) error {
		s.override = deps
		return nil
	}
}

// New creates a new Server from cfg and options. It loads the workflow
// configuration and initializes all dependencies.
func New(cfg *serverconfig.ServerConfig, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logOutput: os.Stderr,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var err error
	s.log, err = logging.NewWithWriter(logging.Config{Level: cfg.LogLevel, Format: "json"}, s.logOutput)
	if err != nil {
		return nil, err
	}
	s.logger = s.log.Logger

	if s.registry, err = metrics.NewScrapeRegistry(); err != nil {
		return nil, fmt.Errorf("creating metrics registry: %w", err)
	}
	if s.metrics, err = metrics.NewWorkflow(s.registry); err != nil {
		return nil, fmt.Errorf("registering workflow metrics: %w", err)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	var store runner.StateStore
	if cfg.StateDir != "" {
		s.diskStore, err = runner.NewDiskStore(cfg.StateDir, cfg.HistorySize, s.logger)
		if err != nil {
			return nil, fmt.Errorf("opening history in %s: %w", cfg.StateDir, err)
		}
		store = s.diskStore
	} else {
		store = runner.NewMemoryStore(cfg.HistorySize)
	}

	s.runner = runner.New(s.logger, s,
		runner.WithStateStore(store),
		runner.WithMaxConcurrent(s.Config().Scoring.MaxConcurrent),
		runner.WithMetrics(s.metrics),
	)

	if len(cfg.Cron) > 0 {
		if s.cron, err = cron.NewCronTriggerManager(cfg.Cron, s.runner, s.logger); err != nil {
			return nil, fmt.Errorf("creating cron triggers: %w", err)
		}
	}

	if cfg.Listener.TLSEnabled() {
		if s.certLoader, err = NewCertLoader(cfg.Listener.CertFile, cfg.Listener.KeyFile, s.logger); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogLevel changes the server's log level at runtime.
func (s *Server) SetLogLevel(level string) error {
	return s.log.SetLevel(level)
}

// Reload reads the workflow config from disk and rebuilds the workflow. The
// previous workflow stays in place when the new config is invalid.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.cfg.WorkflowConfig)
	if err != nil {
		return err
	}

	wf, err := workflows.New(workflows.Params{
		Config:  &cfg,
		Logger:  s.logger,
		Metrics: s.metrics,
		Deps:    s.override,
	})
	if err != nil {
		return fmt.Errorf("building workflow: %w", err)
	}

	s.deps.Store(&serverDeps{
		config:   &cfg,
		workflow: wf,
	})

	s.logger.Info("configuration loaded",
		"config_path", s.cfg.WorkflowConfig,
		"max_iterations", cfg.Scoring.MaxIterations,
		"step_budget", wf.StepBudget(),
	)
	return nil
}

// Config returns the current workflow configuration.
func (s *Server) Config() *config.Config {
	if d := s.deps.Load(); d != nil {
		return d.config
	}
	return nil
}

// Workflow returns the current scoring workflow.
func (s *Server) Workflow() *scoring.Workflow {
	if d := s.deps.Load(); d != nil {
		return d.workflow
	}
	return nil
}

// NextRun returns the next scheduled run time, or nil if no cron is configured.
func (s *Server) NextRun() *time.Time {
	if s.cron == nil {
		return nil
	}
	next := s.cron.NextRun()
	return &next
}

// CronJobs returns the state of every cron job.
func (s *Server) CronJobs() []cron.Status {
	if s.cron == nil {
		return nil
	}
	return s.cron.Status()
}

// Active returns the in-flight runs by delegating to the runner.
func (s *Server) Active() []runner.RunProgress {
	return s.runner.Active()
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
// If cron jobs are configured, they are started automatically.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Listener.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	if s.certLoader != nil {
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: s.certLoader.GetCertificate,
		}
	}

	// Start cron triggers if configured
	if s.cron != nil {
		s.logger.Info("starting cron triggers",
			"count", s.cron.Len(),
			"next_run", s.cron.NextRun(),
		)
		s.cron.Start(ctx)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.cfg.Listener.Addr,
			"tls", s.certLoader != nil,
			"config_path", s.cfg.WorkflowConfig,
		)
		var err error
		if s.certLoader != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	var maxUpload int64
	if cfg := s.Config(); cfg != nil {
		maxUpload = 2*cfg.Extraction.MaxBytes + multipartOverhead
	}

	mux.Handle("GET /health", handlers.NewHealthHandler(s))
	mux.Handle("POST /score", handlers.NewScoreHandler(s.logger, s.runner, maxUpload))
	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s))
	mux.Handle("GET /graph", handlers.NewGraphHandler(s))
	mux.Handle("GET /config", handlers.NewConfigHandler(s))
	mux.Handle("POST /reload", handlers.NewReloadHandler(s.logger, s, s))
	mux.Handle("GET /history", handlers.NewHistoryHandler(s.runner))
	mux.Handle("GET /history/{id}", handlers.NewRunStagesHandler(s.runner))
	if s.diskStore != nil {
		mux.Handle("POST /history/reload", handlers.NewHistoryReloadHandler(s.logger, s.diskStore))
	}
	mux.Handle("GET /metrics", s.registry.Handler())
}
