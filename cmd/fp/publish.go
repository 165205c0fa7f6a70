package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/feedpulse/internal/client"
	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/ui"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <project> <kind>",
	Short: "Publish an event to a project",
	Long: `Publish an event to every subscriber of a project.

The payload is either a JSON document given with --payload or an object
assembled from repeated --field key=value flags. Field values that parse as
JSON (numbers, booleans, objects) are kept as JSON; anything else is a string.`,
	GroupID:           "events",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: kindArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("payload")
		fields, _ := cmd.Flags().GetStringArray("field")
		id, _ := cmd.Flags().GetString("id")

		payload, err := buildPayload(raw, fields)
		if err != nil {
			return err
		}

		ev, err := notifyClient.Publish(context.Background(), args[0], &client.PublishRequest{
			ID:      id,
			Kind:    args[1],
			ActorID: actor,
			Payload: payload,
		})
		if err != nil {
			return fmt.Errorf("publishing event: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ev)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published %s %s to %s\n", ev.ID, ui.RenderKind(ev.Kind), ev.ProjectID)
		return nil
	},
}

// buildPayload returns the event payload from --payload or --field flags.
// The two are mutually exclusive.
func buildPayload(raw string, fields []string) (json.RawMessage, error) {
	if raw != "" && len(fields) > 0 {
		return nil, fmt.Errorf("--payload and --field cannot be combined")
	}
	if raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("--payload is not valid JSON")
		}
		return json.RawMessage(raw), nil
	}
	if len(fields) == 0 {
		return nil, nil
	}

	obj := make(map[string]json.RawMessage, len(fields))
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q (want key=value)", f)
		}
		if json.Valid([]byte(value)) {
			obj[key] = json.RawMessage(value)
			continue
		}
		quoted, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		obj[key] = quoted
	}
	return json.Marshal(obj)
}

func init() {
	publishCmd.Flags().String("payload", "", "event payload as a JSON document")
	publishCmd.Flags().StringArray("field", nil, "payload field as key=value (repeatable)")
	publishCmd.Flags().String("id", "", "event id (generated by the server when empty)")
}

// kindArg lets shell completion suggest the builtin kinds.
func kindArg(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var kinds []string
	for _, k := range model.BuiltinKinds {
		kinds = append(kinds, string(k))
	}
	return kinds, cobra.ShellCompDirectiveNoFileComp
}
