package main

import (
	"fmt"

	"github.com/spf13/cobra"

	serverconfig "github.com/nomis52/docscore/server/config"
	"github.com/nomis52/docscore/server/cron"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	var serverConfigPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the workflow config and, optionally, a server config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if serverConfigPath != "" {
				srvCfg, err := serverconfig.LoadConfig(serverConfigPath)
				if err != nil {
					return err
				}
				if _, err := cron.ParseJobs(srvCfg.Cron); err != nil {
					return err
				}
				if root.configPath == "" {
					root.configPath = srvCfg.WorkflowConfig
				}
				fmt.Fprintf(out, "Server configuration validation successful: %s\n", serverConfigPath)
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			w, err := describeWorkflow(&cfg)
			if err != nil {
				return fmt.Errorf("workflow: %w", err)
			}

			name := root.configPath
			if name == "" {
				name = "(defaults)"
			}
			fmt.Fprintf(out, "Configuration validation successful: %s\n", name)
			fmt.Fprintf(out, "Max iterations: %d, step budget: %d\n", cfg.Scoring.MaxIterations, w.StepBudget())
			if cfg.OpenAI.ResolveAPIKey() == "" {
				fmt.Fprintf(out, "Warning: no OpenAI API key, set openai.api_key or $%s\n", cfg.OpenAI.APIKeyEnv)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&serverConfigPath, "server-config", "s", "",
		"Also validate this server config; its workflow_config is used when --config is unset")
	return cmd
}
