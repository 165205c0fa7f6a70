package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingProject is returned when an event or subscriber has no project id.
	ErrMissingProject = errors.New("notify: project id is required")

	// ErrMissingKind is returned when an event has no kind.
	ErrMissingKind = errors.New("notify: event kind is required")

	// ErrMissingSubscriberID is returned when a subscriber has no id.
	ErrMissingSubscriberID = errors.New("notify: subscriber id is required")

	// ErrMissingHandler is returned when a subscriber has no handler.
	ErrMissingHandler = errors.New("notify: subscriber handler is required")

	// ErrEngineClosed is returned by Publish, Subscribe and Simulate after Close.
	ErrEngineClosed = errors.New("notify: engine is closed")

	// ErrSubscriberReplaced is reported to a subscriber's OnDisconnect when a
	// newer registration with the same id takes its place.
	ErrSubscriberReplaced = errors.New("notify: subscriber replaced by a newer registration")

	// ErrHandlerTimeout is the fault recorded when a handler outlives the
	// engine's handler timeout.
	ErrHandlerTimeout = errors.New("notify: handler exceeded its deadline")
)

// DeliveryError describes a handler fault. Exactly one of Err or Panic is set.
type DeliveryError struct {
	SubscriberID string
	ProjectID    string
	EventID      string

	Err   error
	Panic any
	Stack []byte
}

func (e *DeliveryError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("notify: subscriber %s panicked on event %s: %v", e.SubscriberID, e.EventID, e.Panic)
	}
	return fmt.Sprintf("notify: subscriber %s failed on event %s: %v", e.SubscriberID, e.EventID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Panicked reports whether the fault was a recovered panic.
func (e *DeliveryError) Panicked() bool { return e.Panic != nil }
