package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func createVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hookbus %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
