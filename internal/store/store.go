// Package store defines the event archive. The archive is a best-effort
// side record of everything the engine accepted; the engine never reads
// from it, so replay to subscribers always comes from the in-memory history.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// ErrNotFound is returned when an archived event does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for archived events.
type Store interface {
	// RecordEvent archives ev. Recording the same event id twice is a no-op.
	RecordEvent(ctx context.Context, ev model.Event) error

	// GetEvent returns one archived event by id.
	GetEvent(ctx context.Context, id string) (model.Event, error)

	// ListProjectEvents returns the most recent limit events of a project
	// oldest-first. limit <= 0 returns all of them.
	ListProjectEvents(ctx context.Context, projectID string, limit int) ([]model.Event, error)

	// ListAllEvents returns every archived event in archive order.
	ListAllEvents(ctx context.Context) ([]model.Event, error)

	// Lifecycle
	Close() error
}
