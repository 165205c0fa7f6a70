package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <project>",
	Short: "Show recent events for a project",
	Long: `Show recent events for a project, oldest first.

By default this reads the in-memory history, which holds the most recent
events up to the server's history cap. With --archive it reads the durable
archive instead, which requires the server to run with a database.`,
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		archive, _ := cmd.Flags().GetBool("archive")
		if limit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		var (
			events []model.Event
			err    error
		)
		if archive {
			events, err = notifyClient.Archive(context.Background(), args[0], limit)
		} else {
			events, err = notifyClient.History(context.Background(), args[0], limit)
		}
		if err != nil {
			return fmt.Errorf("fetching history: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), events)
		}
		if len(events) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No events for %s\n", args[0])
			return nil
		}
		return printEventTable(cmd.OutOrStdout(), events)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 0, "only the most recent N events (0 = all)")
	historyCmd.Flags().Bool("archive", false, "read the durable archive instead of memory")
}
