package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	EventCount   int       `json:"event_count"`
	ProjectCount int       `json:"project_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every archived event as JSONL to w: one header line,
// then one "event" record per event in archive order.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	events, err := s.ListAllEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	projects := make(map[string]struct{})
	for _, ev := range events {
		projects[ev.ProjectID] = struct{}{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		EventCount:   len(events),
		ProjectCount: len(projects),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, ev := range events {
		if err := enc.Encode(record{Type: "event", Data: ev}); err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
	}

	return nil
}
