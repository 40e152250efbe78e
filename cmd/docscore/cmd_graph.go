package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nomis52/docscore/config"
	"github.com/nomis52/docscore/judge"
	"github.com/nomis52/docscore/scoring"
	"github.com/nomis52/docscore/workflows"
)

var errOffline = errors.New("collaborator not available when describing the workflow")

// offline stands in for the embedder and scorer when a command only needs
// the workflow topology, so no API key is required.
type offline struct{}

func (offline) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errOffline
}

func (offline) Score(ctx context.Context, subject, reference, label string) (judge.Judgment, error) {
	return judge.Judgment{}, errOffline
}

func (offline) Completeness(ctx context.Context, summary, reference string) (judge.Judgment, error) {
	return judge.Judgment{}, errOffline
}

// describeWorkflow compiles the workflow described by cfg without
// contacting any external service.
func describeWorkflow(cfg *config.Config) (*scoring.Workflow, error) {
	return workflows.New(workflows.Params{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Deps:   scoring.Deps{Embedder: offline{}, Scorer: offline{}},
	})
}

func newGraphCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the workflow topology",
		Long:  "Prints a Mermaid flowchart of the workflow, or a text summary with --format summary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			w, err := describeWorkflow(&cfg)
			if err != nil {
				return err
			}

			switch format {
			case "mermaid":
				fmt.Fprint(cmd.OutOrStdout(), w.Mermaid())
			case "summary":
				fmt.Fprint(cmd.OutOrStdout(), w.Summary())
			default:
				return fmt.Errorf("unknown format %q, want mermaid or summary", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "mermaid", "Output format: mermaid or summary")
	return cmd
}
