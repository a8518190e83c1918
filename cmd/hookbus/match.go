package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/hookbus/internal/event/topic"
)

func createMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match PATTERN TYPE...",
		Short: "Test event types against a subscription pattern",
		Long: `Match prints whether each event type matches the pattern. "*" matches one
segment and "**" matches zero or more.

Examples:
  hookbus match 'agent.*' agent.error agent.tool.error
  hookbus match 'tool.**' tool tool.call.done`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := args[0]
			if err := topic.ValidatePattern(pattern); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, t := range args[1:] {
				if err := topic.ValidateType(t); err != nil {
					fmt.Fprintf(w, "%s\tinvalid: %v\n", t, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%t\n", t, topic.Match(pattern, t))
			}
			return nil
		},
	}
}
