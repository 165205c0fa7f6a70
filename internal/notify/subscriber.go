package notify

import (
	"context"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// Handler receives delivered events. Returning an error (or panicking)
// disconnects the subscriber.
type Handler interface {
	Handle(ctx context.Context, ev model.Event) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, ev model.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

// Subscriber is an observer of one project's events.
type Subscriber struct {
	// ID identifies the subscriber among the active ones. Subscribing again
	// with an id that is already connected replaces the older registration.
	ID string

	// ProjectID is the only project whose events are delivered.
	ProjectID string

	Handler Handler

	// Filter is optional; nil delivers every event of the project.
	Filter Filter

	// OnDisconnect, when set, is called once if the engine disconnects the
	// subscriber: after a handler fault, on replacement, or on Close. It is
	// not called for an explicit unsubscribe. It runs on the goroutine that
	// caused the disconnect and must not block.
	OnDisconnect func(err error)
}

func (s Subscriber) validate() error {
	switch {
	case s.ID == "":
		return ErrMissingSubscriberID
	case s.ProjectID == "":
		return ErrMissingProject
	case s.Handler == nil:
		return ErrMissingHandler
	}
	return nil
}
