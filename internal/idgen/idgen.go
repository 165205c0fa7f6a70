// Package idgen generates the short, URL-safe identifiers used for events and
// gateway subscribers. It is backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers feedpulse mints itself.
const (
	EventPrefix      = "ev-"
	SubscriberPrefix = "sub-"
)

// Alphabet is the character set of the random portion.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters (excluding the prefix).
const Length = 12

// EventID returns a new event identifier.
func EventID() (string, error) {
	return WithPrefix(EventPrefix)
}

// SubscriberID returns a new subscriber identifier.
func SubscriberID() (string, error) {
	return WithPrefix(SubscriberPrefix)
}

// WithPrefix returns prefix followed by Length random characters.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// MustEventID is EventID for callers that cannot recover from an exhausted
// entropy source anyway.
func MustEventID() string {
	id, err := EventID()
	if err != nil {
		panic(err)
	}
	return id
}
