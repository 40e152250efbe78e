package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/scoring"
)

type scoreFlags struct {
	json          bool
	markdown      bool
	timeout       time.Duration
	maxIterations int
}

// scoreOutput is the JSON form of one evaluation.
type scoreOutput struct {
	Name        string `json:"name,omitempty"`
	Candidate   string `json:"candidate"`
	Requirement string `json:"requirement"`
	*scoring.Result
	Termination string `json:"termination"`
	Error       string `json:"error,omitempty"`
}

func newScoreCmd(root *rootOptions) *cobra.Command {
	flags := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score <candidate> <requirement>",
		Short: "Score one candidate document against a requirement document",
		Long: "Documents are local paths or ssh://host/path references. ssh references\n" +
			"need extraction.ssh in the config.",
		Example: "  docscore score resume.md job.md\n" +
			"  docscore score -c config.yaml --json ssh://hr/cv/alice.md job.md",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, root, flags, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.json, "json", false, "Print the result as JSON")
	f.BoolVar(&flags.markdown, "markdown", false, "Print the result as a Markdown table")
	f.DurationVar(&flags.timeout, "timeout", 0, "Abort the evaluation after this long (0 means no limit)")
	f.IntVar(&flags.maxIterations, "max-iterations", 0, "Override scoring.max_iterations")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	return cmd
}

func runScore(cmd *cobra.Command, root *rootOptions, flags *scoreFlags, candidateRef, requirementRef string) error {
	candidate, err := extract.ParseRef(candidateRef)
	if err != nil {
		return err
	}
	requirement, err := extract.ParseRef(requirementRef)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if flags.maxIterations != 0 {
		cfg.Scoring.MaxIterations = flags.maxIterations
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	w, flush, err := newWorkflow(&cfg, logger)
	if err != nil {
		return err
	}
	defer flush()

	ctx := cmd.Context()
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	res, err := w.Run(ctx, candidate, requirement)
	if err != nil {
		return fmt.Errorf("evaluation %s: %w", scoring.Classify(res, err), err)
	}

	out := scoreOutput{
		Candidate:   candidate.String(),
		Requirement: requirement.String(),
		Result:      &res,
		Termination: string(scoring.Classify(res, nil)),
	}
	switch {
	case flags.json:
		return writeJSON(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), renderResult(out, flags.markdown))
		return nil
	}
}
