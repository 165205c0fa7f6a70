// Package client provides a transport-agnostic interface for the feedpulse
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/presence"
)

// NotifyClient is the interface that all fp CLI commands use to communicate
// with the feedpulse server.
type NotifyClient interface {
	// Events
	Publish(ctx context.Context, projectID string, req *PublishRequest) (*model.Event, error)
	History(ctx context.Context, projectID string, limit int) ([]model.Event, error)
	Archive(ctx context.Context, projectID string, limit int) ([]model.Event, error)
	Stream(ctx context.Context, projectID string, opts *StreamOptions, fn func(StreamEvent) error) error

	// Subscribers
	SubscriberCount(ctx context.Context, projectID string) (int, error)
	SubscriberStatus(ctx context.Context, id string) (model.ConnectionStatus, error)

	// Actors
	Actors(ctx context.Context, projectID string, activeWithin time.Duration) ([]presence.Entry, error)

	// Simulation
	StartSimulation(ctx context.Context, projectID string, req *SimulationRequest) (*SimulationState, error)
	StopSimulation(ctx context.Context, projectID string) (*SimulationState, error)
	SimulationStatus(ctx context.Context, projectID string) (*SimulationState, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// PublishRequest holds parameters for publishing an event.
type PublishRequest struct {
	ID        string          `json:"id,omitempty"`
	Kind      string          `json:"kind"`
	ActorID   string          `json:"actor_id,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StreamOptions narrows a live stream. Empty fields match everything.
type StreamOptions struct {
	// SubscriberID reuses a known id, replacing an older connection with it.
	SubscriberID string
	Kinds        []string
	Actors       []string
	Where        []string // payload conditions, "path=value"
}

// StreamEvent is one message from a live stream: either an event, or the
// final notice that the server disconnected the subscriber.
type StreamEvent struct {
	Event      model.Event
	Disconnect string // reason; set only on the final message
}

// SimulationRequest overrides the server's simulation scenario. Zero fields
// keep the scenario value.
type SimulationRequest struct {
	IntervalMS int64  `json:"interval_ms,omitempty"`
	JitterMS   int64  `json:"jitter_ms,omitempty"`
	MaxEvents  int    `json:"max_events,omitempty"`
	Seed       uint64 `json:"seed,omitempty"`
}

// SimulationState describes a project's simulation.
type SimulationState struct {
	ProjectID string `json:"project_id"`
	Running   bool   `json:"running"`
	Published int64  `json:"published,omitempty"`
}
