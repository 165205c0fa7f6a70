package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (model.Event, error) {
	var (
		ev      model.Event
		kind    string
		actor   sql.NullString
		payload []byte
	)
	if err := row.Scan(&ev.ID, &ev.ProjectID, &kind, &actor, &payload, &ev.Timestamp); err != nil {
		return model.Event{}, err
	}
	ev.Kind = model.Kind(kind)
	ev.ActorID = actor.String
	ev.Timestamp = ev.Timestamp.UTC()
	if len(payload) > 0 {
		ev.Payload = json.RawMessage(payload)
	}
	return ev, nil
}

// scanEvents scans multiple rows into a slice of model.Event values.
func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	events := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
