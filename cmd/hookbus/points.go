package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/hookbus/internal/hook"
)

func createPointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "points",
		Short: "List the predefined hook points and priorities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "POINT")
			for _, p := range hook.KnownPoints() {
				fmt.Fprintln(w, p)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "PRIORITY\tORDER")
			for i, p := range hook.Priorities() {
				fmt.Fprintf(w, "%s\t%d\n", p, i)
			}
			return w.Flush()
		},
	}
}
