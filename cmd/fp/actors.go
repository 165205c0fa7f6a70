package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/ui"
	"github.com/spf13/cobra"
)

var actorsCmd = &cobra.Command{
	Use:     "actors <project>",
	Short:   "Show who has been publishing to a project",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		within, _ := cmd.Flags().GetDuration("active-within")
		if within < 0 {
			return fmt.Errorf("--active-within must not be negative")
		}

		actors, err := notifyClient.Actors(context.Background(), args[0], within)
		if err != nil {
			return fmt.Errorf("fetching actors: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, actors)
		}
		if len(actors) == 0 {
			fmt.Fprintf(out, "No active actors on %s\n", args[0])
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACTOR\tLAST KIND\tEVENTS\tLAST SEEN")
		for _, a := range actors {
			seen := (time.Duration(a.IdleSecs) * time.Second).Round(time.Second).String() + " ago"
			if a.Idle {
				seen = ui.RenderMuted(seen + " (idle)")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", a.Actor, a.LastKind, a.EventCount, seen)
		}
		return w.Flush()
	},
}

func init() {
	actorsCmd.Flags().Duration("active-within", 0, "only actors seen within this window, e.g. 10m (0 = all tracked)")
}
