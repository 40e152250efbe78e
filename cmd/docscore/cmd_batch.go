package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/scoring"
)

// Manifest lists the evaluations of a batch run.
//
//	requirement: jobs/backend.md
//	pairs:
//	  - name: alice
//	    candidate: cvs/alice.md
//	  - name: bob
//	    candidate: ssh://hr/cvs/bob.md
//	    requirement: jobs/frontend.md
type Manifest struct {
	// Requirement is used by pairs that do not name their own.
	Requirement string         `yaml:"requirement"`
	Pairs       []ManifestPair `yaml:"pairs"`
}

// ManifestPair is one evaluation of a batch.
type ManifestPair struct {
	Name        string `yaml:"name"`
	Candidate   string `yaml:"candidate"`
	Requirement string `yaml:"requirement"`
}

type batchFlags struct {
	json        bool
	markdown    bool
	concurrency int
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Score many candidate documents in parallel",
		Long: "Relative document paths in the manifest are resolved against the\n" +
			"manifest's directory. A failed evaluation does not stop the others.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, root, flags, args[0])
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.json, "json", false, "Print the results as JSON")
	f.BoolVar(&flags.markdown, "markdown", false, "Print the results as a Markdown table")
	f.IntVar(&flags.concurrency, "concurrency", 0, "Evaluations to run at once (defaults to scoring.max_concurrent)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	return cmd
}

// LoadManifest reads and validates a batch manifest.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	if len(m.Pairs) == 0 {
		return m, errors.New("manifest has no pairs")
	}

	base := filepath.Dir(path)
	seen := make(map[string]bool, len(m.Pairs))
	for i := range m.Pairs {
		p := &m.Pairs[i]
		if p.Name == "" {
			p.Name = fmt.Sprintf("pair-%d", i+1)
		}
		if seen[p.Name] {
			return m, fmt.Errorf("manifest: duplicate pair name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Requirement == "" {
			p.Requirement = m.Requirement
		}
		if p.Candidate == "" || p.Requirement == "" {
			return m, fmt.Errorf("manifest: pair %q needs a candidate and a requirement", p.Name)
		}
		p.Candidate = resolveRef(base, p.Candidate)
		p.Requirement = resolveRef(base, p.Requirement)
	}
	return m, nil
}

// resolveRef makes relative local paths relative to base.
func resolveRef(base, ref string) string {
	h, err := extract.ParseRef(ref)
	if err != nil || h.Source != extract.SourceFile || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(base, ref)
}

func runBatch(cmd *cobra.Command, root *rootOptions, flags *batchFlags, manifestPath string) error {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
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

	limit := flags.concurrency
	if limit <= 0 {
		limit = cfg.Scoring.MaxConcurrent
	}

	// A failed pair does not stop the others.
	outs := make([]scoreOutput, len(manifest.Pairs))
	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)
	for i, pair := range manifest.Pairs {
		g.Go(func() error {
			outs[i] = scorePair(cmd, w, pair)
			if outs[i].Error != "" {
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	if flags.json {
		if err := writeJSON(cmd.OutOrStdout(), outs); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderBatch(outs, flags.markdown))
	}

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d evaluations failed", n, len(outs))
	}
	return nil
}

func scorePair(cmd *cobra.Command, w *scoring.Workflow, pair ManifestPair) scoreOutput {
	out := scoreOutput{
		Name:        pair.Name,
		Candidate:   pair.Candidate,
		Requirement: pair.Requirement,
	}
	fail := func(t scoring.Termination, err error) scoreOutput {
		out.Termination = string(t)
		out.Error = err.Error()
		return out
	}

	candidate, err := extract.ParseRef(pair.Candidate)
	if err != nil {
		return fail(scoring.TerminationFailed, err)
	}
	requirement, err := extract.ParseRef(pair.Requirement)
	if err != nil {
		return fail(scoring.TerminationFailed, err)
	}

	res, err := w.Run(cmd.Context(), candidate, requirement)
	if err != nil {
		return fail(scoring.Classify(res, err), err)
	}
	out.Result = &res
	out.Termination = string(scoring.Classify(res, nil))
	return out
}
