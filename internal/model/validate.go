package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPayloadBytes bounds the payload accepted at the ingest boundary.
const MaxPayloadBytes = 64 << 10

var kindPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*(\.[a-z][a-z0-9_-]*)*$`)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateEvent checks an event received from outside the process (HTTP,
// NATS ingest) before it is handed to the engine. The engine itself only
// requires a project and a kind.
func ValidateEvent(ev *Event) error {
	var ve ValidationError

	// ProjectID: required, no surrounding whitespace.
	switch {
	case ev.ProjectID == "":
		ve.Errors = append(ve.Errors, FieldError{Field: "project_id", Message: "is required"})
	case strings.TrimSpace(ev.ProjectID) != ev.ProjectID:
		ve.Errors = append(ve.Errors, FieldError{Field: "project_id", Message: "must not have surrounding whitespace"})
	case len(ev.ProjectID) > 200:
		ve.Errors = append(ve.Errors, FieldError{Field: "project_id", Message: "must be 200 characters or fewer"})
	}

	// Kind: required; lowercase dot-separated segments. Unknown kinds are allowed.
	if ev.Kind == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "kind", Message: "is required"})
	} else if !kindPattern.MatchString(string(ev.Kind)) || len(ev.Kind) > 64 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "kind",
			Message: fmt.Sprintf("invalid value %q", ev.Kind),
		})
	}

	if utf8.RuneCountInString(ev.ActorID) > 200 {
		ve.Errors = append(ve.Errors, FieldError{Field: "actor_id", Message: "must be 200 characters or fewer"})
	}

	// Payload: optional, but must be valid JSON and bounded.
	if len(ev.Payload) > 0 {
		if !json.Valid(ev.Payload) {
			ve.Errors = append(ve.Errors, FieldError{Field: "payload", Message: "contains invalid JSON"})
		} else if len(ev.Payload) > MaxPayloadBytes {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "payload",
				Message: fmt.Sprintf("must be %d bytes or fewer", MaxPayloadBytes),
			})
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
