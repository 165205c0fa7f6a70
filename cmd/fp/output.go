package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/ui"
	"github.com/tidwall/gjson"
)

const maxSummary = 60

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// payloadSummary picks a human-readable line out of an event payload: the
// message or text field when present, otherwise the compact JSON.
func payloadSummary(p json.RawMessage) string {
	if len(p) == 0 {
		return ""
	}
	var s string
	for _, path := range []string{"message", "text", "comment.text", "summary"} {
		if r := gjson.GetBytes(p, path); r.Exists() && r.Type == gjson.String {
			s = r.String()
			break
		}
	}
	if s == "" {
		s = gjson.ParseBytes(p).Raw
	}
	if len(s) > maxSummary {
		s = s[:maxSummary-3] + "..."
	}
	return s
}

// formatEventLine renders one event for watch output.
func formatEventLine(ev model.Event) string {
	line := fmt.Sprintf("%s  %s  %s",
		ui.RenderMuted(ev.Timestamp.Local().Format("15:04:05.000")),
		ui.RenderKind(ev.Kind),
		ev.ActorID,
	)
	if s := payloadSummary(ev.Payload); s != "" {
		line += "  " + s
	}
	return line
}

func printEventTable(w io.Writer, events []model.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tACTOR\tID\tPAYLOAD")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
			ev.Kind,
			ev.ActorID,
			ev.ID,
			payloadSummary(ev.Payload),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d events\n", len(events))
	return err
}
