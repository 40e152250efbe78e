package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nomis52/docscore/buildinfo"
	"github.com/nomis52/docscore/server"
	serverconfig "github.com/nomis52/docscore/server/config"
)

func newServeCmd() *cobra.Command {
	var serverConfigPath string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API server",
		Example: "  docscore serve -s /etc/docscore/server.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srvCfg, err := serverconfig.LoadConfig(serverConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load server config: %w", err)
			}

			srv, err := server.New(srvCfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			props := buildinfo.Get()
			srv.Logger().Info("docscore started",
				"version", props.Version,
				"build_time", props.BuildTime,
				"git_commit", props.GitCommit,
			)
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&serverConfigPath, "server-config", "s", "", "Path to server config file")
	_ = cmd.MarkFlagRequired("server-config")
	return cmd
}
