package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/payload"
)

func createRunCmd(root *rootOptions) *cobra.Command {
	var (
		point         string
		component     string
		data          string
		scripts       []string
		metadata      map[string]string
		correlationID string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hooks registered at a point",
		Long: `Run builds the configured runtime, loads any extra scripts, runs the hook
pipeline once for the given point and prints the decision as JSON.

Examples:
  hookbus run --point BeforeToolExecution --component agentA --data '{"tool_name":"shell"}'
  hookbus run --point AgentError --script hooks/alert.lua`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := hook.ParsePoint(point)
			if err != nil {
				return err
			}
			d, err := payload.FromJSON([]byte(data))
			if err != nil {
				return fmt.Errorf("--data: %w", err)
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			cfg.Scripts = append(cfg.Scripts, scripts...)

			application, closer, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			decision, err := application.RunHooks(cmd.Context(), p, hook.ExecutionContext{
				ComponentID:   component,
				Data:          d,
				Metadata:      metadata,
				Language:      "cli",
				CorrelationID: correlationID,
			})
			if err != nil {
				return err
			}

			out, err := newDecisionOutput(decision)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	runCmd.Flags().StringVarP(&point, "point", "p", "", "Hook point name")
	runCmd.Flags().StringVar(&component, "component", "", "Component id passed to callbacks")
	runCmd.Flags().StringVarP(&data, "data", "d", "{}", "JSON payload")
	runCmd.Flags().StringArrayVarP(&scripts, "script", "s", nil, "Lua script to load (repeatable)")
	runCmd.Flags().StringToStringVarP(&metadata, "meta", "m", nil, "Metadata key=value pairs")
	runCmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation id (default: random)")
	_ = runCmd.MarkFlagRequired("point")

	return runCmd
}
