package events

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// Subject layout. Published events are mirrored under SubjectPrefix; events
// from upstream producers arrive under IngestPrefix. The two trees never
// overlap, so mirrored events are not ingested again.
const (
	SubjectPrefix  = "feedpulse.events"
	IngestPrefix   = "feedpulse.ingest"
	AllEvents      = SubjectPrefix + ".>"
	IngestWildcard = IngestPrefix + ".>"
)

// Subject returns the mirror subject for ev: feedpulse.events.<kind>.
func Subject(ev model.Event) string {
	return SubjectPrefix + "." + subjectToken(string(ev.Kind))
}

// IngestSubject returns the subject a producer publishes project events on:
// feedpulse.ingest.<project>.
func IngestSubject(projectID string) string {
	return IngestPrefix + "." + subjectToken(projectID)
}

// subjectToken replaces characters NATS reserves in subject tokens.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '*', '>':
			return '_'
		}
		return r
	}, s)
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close() error
}

// Mirror publishes ev on its mirror subject.
func Mirror(ctx context.Context, pub Publisher, ev model.Event) error {
	return pub.Publish(ctx, Subject(ev), ev)
}
