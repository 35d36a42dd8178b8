package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTestAlertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test-alert",
		Short: "Send a test message through the configured alert channels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			notifier := buildNotifier(a.config, nil, a.logger)
			dispatcher := newDispatcher(a.config, notifier, a.logger)

			fmt.Fprintf(a.stdout, "Testing alert channels: %s\n", notifier.Destination())
			if err := dispatcher.SendTest(cmd.Context()); err != nil {
				return fmt.Errorf("test alert failed: %w", err)
			}
			fmt.Fprintln(a.stdout, "Test alert sent")
			return nil
		},
	}
}
