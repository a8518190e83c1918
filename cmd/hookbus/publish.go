package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/payload"
)

// publishOutput is the printed result of the publish command.
type publishOutput struct {
	Delivered int           `json:"delivered"`
	Error     string        `json:"error,omitempty"`
	Received  []event.Event `json:"received"`
}

func createPublishCmd(root *rootOptions) *cobra.Command {
	var (
		eventType string
		pattern   string
		data      string
		source    string
		timeout   time.Duration
	)

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an event and print what a subscription receives",
		Long: `Publish subscribes with a pattern, publishes one event and prints the
delivery count together with every event the subscription received.

Examples:
  hookbus publish --type agent.error --subscribe 'agent.*' --data '{"component":"agentA"}'
  hookbus publish --type tool.call.done --subscribe 'tool.**'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := payload.FromJSON([]byte(data))
			if err != nil {
				return fmt.Errorf("--data: %w", err)
			}
			if pattern == "" {
				pattern = eventType
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			application, closer, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			bus := application.Bus()
			sub, err := bus.Subscribe(pattern, event.WithName("cli"))
			if err != nil {
				return err
			}

			var out publishOutput
			out.Delivered, err = bus.Publish(cmd.Context(), eventType, d, event.WithSource(source), event.WithLanguage("cli"))
			if err != nil {
				out.Error = err.Error()
			}

			out.Received, err = bus.ReceiveBatch(cmd.Context(), sub, event.BatchOptions{MaxEvents: 64, Timeout: timeout})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	publishCmd.Flags().StringVarP(&eventType, "type", "t", "", "Event type")
	publishCmd.Flags().StringVar(&pattern, "subscribe", "", "Subscription pattern (default: the event type)")
	publishCmd.Flags().StringVarP(&data, "data", "d", "{}", "JSON payload")
	publishCmd.Flags().StringVar(&source, "source", "cli", "Event source")
	publishCmd.Flags().DurationVar(&timeout, "timeout", 100*time.Millisecond, "How long to wait for delivery")
	_ = publishCmd.MarkFlagRequired("type")
	return publishCmd
}
