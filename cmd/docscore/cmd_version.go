package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nomis52/docscore/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			props := buildinfo.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "docscore %s\n", props.Version)
			fmt.Fprintf(out, "Built: %s\n", props.BuildTime)
			fmt.Fprintf(out, "Commit: %s\n", props.GitCommit)
		},
	}
}
