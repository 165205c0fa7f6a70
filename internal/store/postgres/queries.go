package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, project_id, kind, actor_id, payload, occurred_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryRecordEvent(ctx context.Context, db executor, ev model.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, project_id, kind, actor_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ProjectID, string(ev.Kind), nullString(ev.ActorID), nullJSON(ev.Payload), ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.ID, err)
	}
	return nil
}

func queryGetEvent(ctx context.Context, db executor, id string) (model.Event, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

func queryListProjectEvents(ctx context.Context, db executor, projectID string, limit int) ([]model.Event, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = db.QueryContext(ctx, `
			SELECT `+eventColumns+` FROM (
				SELECT seq, `+eventColumns+`
				FROM events WHERE project_id = $1
				ORDER BY seq DESC
				LIMIT $2
			) recent
			ORDER BY seq ASC`,
			projectID, limit,
		)
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT `+eventColumns+`
			FROM events WHERE project_id = $1
			ORDER BY seq ASC`,
			projectID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", projectID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryListAllEvents(ctx context.Context, db executor) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullJSON passes payloads as text so the server parses them into JSONB.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
