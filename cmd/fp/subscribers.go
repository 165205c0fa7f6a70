package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/ui"
	"github.com/spf13/cobra"
)

var subscribersCmd = &cobra.Command{
	Use:     "subscribers <project>",
	Short:   "Count a project's active subscribers",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := notifyClient.SubscriberCount(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("counting subscribers: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"project_id": args[0], "active": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d active subscribers\n", args[0], n)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status <subscriber-id>",
	Short:   "Show a subscriber's connection status",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := notifyClient.SubscriberStatus(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetching status: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"subscriber_id": args[0], "status": st})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], ui.RenderStatus(st))
		if st != model.StatusConnected {
			return fmt.Errorf("subscriber %s is not connected", args[0])
		}
		return nil
	},
}
