package main

import (
	"context"
	"fmt"
	"io"

	"github.com/alfredjeanlab/feedpulse/internal/client"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Short:   "Run synthetic event traffic for a project",
	GroupID: "simulation",
}

var simulateStartCmd = &cobra.Command{
	Use:   "start <project>",
	Short: "Start generating events for a project",
	Long: `Start generating events for a project.

Unset flags fall back to the server's configured scenario. A project runs at
most one simulation at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		jitter, _ := cmd.Flags().GetDuration("jitter")
		maxEvents, _ := cmd.Flags().GetInt("max")
		seed, _ := cmd.Flags().GetUint64("seed")
		if interval < 0 || jitter < 0 || maxEvents < 0 {
			return fmt.Errorf("--interval, --jitter and --max must not be negative")
		}

		state, err := notifyClient.StartSimulation(context.Background(), args[0], &client.SimulationRequest{
			IntervalMS: interval.Milliseconds(),
			JitterMS:   jitter.Milliseconds(),
			MaxEvents:  maxEvents,
			Seed:       seed,
		})
		if err != nil {
			return fmt.Errorf("starting simulation: %w", err)
		}
		return printSimulation(cmd.OutOrStdout(), state)
	},
}

var simulateStopCmd = &cobra.Command{
	Use:   "stop <project>",
	Short: "Stop a project's simulation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := notifyClient.StopSimulation(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("stopping simulation: %w", err)
		}
		return printSimulation(cmd.OutOrStdout(), state)
	},
}

var simulateStatusCmd = &cobra.Command{
	Use:   "status <project>",
	Short: "Show whether a project's simulation is running",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := notifyClient.SimulationStatus(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetching simulation: %w", err)
		}
		return printSimulation(cmd.OutOrStdout(), state)
	},
}

func printSimulation(w io.Writer, state *client.SimulationState) error {
	if jsonOutput {
		return printJSON(w, state)
	}
	if state.Running {
		_, err := fmt.Fprintf(w, "Simulation running for %s (%d published)\n", state.ProjectID, state.Published)
		return err
	}
	_, err := fmt.Fprintf(w, "Simulation stopped for %s (%d published)\n", state.ProjectID, state.Published)
	return err
}

func init() {
	simulateStartCmd.Flags().Duration("interval", 0, "mean delay between events, e.g. 2s")
	simulateStartCmd.Flags().Duration("jitter", 0, "spread each delay over interval ± jitter")
	simulateStartCmd.Flags().Int("max", 0, "stop after this many events (0 = unlimited)")
	simulateStartCmd.Flags().Uint64("seed", 0, "seed for a reproducible sequence (0 = random)")

	simulateCmd.AddCommand(simulateStartCmd)
	simulateCmd.AddCommand(simulateStopCmd)
	simulateCmd.AddCommand(simulateStatusCmd)
}
