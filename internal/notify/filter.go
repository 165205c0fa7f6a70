package notify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// Filter decides whether an event is delivered to a subscriber. Match must
// be a pure function of the event.
type Filter interface {
	Match(ev model.Event) bool
}

// FilterFunc adapts an ordinary function to Filter.
type FilterFunc func(ev model.Event) bool

func (f FilterFunc) Match(ev model.Event) bool { return f(ev) }

// Kinds matches events whose kind matches any of the given patterns.
// Patterns are dot-separated; "*" matches one segment and ">" matches one or
// more trailing segments, so "comment.*" matches "comment.added". With no
// patterns every event matches.
func Kinds(patterns ...model.Kind) Filter {
	patterns = slices.Clone(patterns)
	return FilterFunc(func(ev model.Event) bool {
		if len(patterns) == 0 {
			return true
		}
		for _, p := range patterns {
			if matchKindPattern(string(p), string(ev.Kind)) {
				return true
			}
		}
		return false
	})
}

// Actors matches events originated by one of the given actors. With no
// actors every event matches.
func Actors(actors ...string) Filter {
	actors = slices.Clone(actors)
	return FilterFunc(func(ev model.Event) bool {
		return len(actors) == 0 || slices.Contains(actors, ev.ActorID)
	})
}

// PayloadEquals matches events whose JSON payload has value at the given
// gjson path, e.g. PayloadEquals("comment.author", "alice").
func PayloadEquals(path, value string) Filter {
	return FilterFunc(func(ev model.Event) bool {
		if len(ev.Payload) == 0 {
			return false
		}
		res := gjson.GetBytes(ev.Payload, path)
		return res.Exists() && res.String() == value
	})
}

// All matches when every filter matches. Nil filters are ignored.
func All(filters ...Filter) Filter {
	filters = compact(filters)
	return FilterFunc(func(ev model.Event) bool {
		for _, f := range filters {
			if !f.Match(ev) {
				return false
			}
		}
		return true
	})
}

// Any matches when at least one filter matches. Nil filters are ignored;
// with none left nothing matches.
func Any(filters ...Filter) Filter {
	filters = compact(filters)
	return FilterFunc(func(ev model.Event) bool {
		for _, f := range filters {
			if f.Match(ev) {
				return true
			}
		}
		return false
	})
}

// Not inverts f.
func Not(f Filter) Filter {
	return FilterFunc(func(ev model.Event) bool { return !f.Match(ev) })
}

func compact(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// FilterSpec is the declarative form of a subscriber filter, as received
// from a gateway query string or CLI flags.
type FilterSpec struct {
	Kinds  []model.Kind
	Actors []string
	Where  []string // "path=value" payload conditions
}

// Build returns the Filter described by s, or nil when s is empty so that
// the subscriber receives every event of its project.
func (s FilterSpec) Build() (Filter, error) {
	var parts []Filter
	if len(s.Kinds) > 0 {
		parts = append(parts, Kinds(s.Kinds...))
	}
	if len(s.Actors) > 0 {
		parts = append(parts, Actors(s.Actors...))
	}
	for _, expr := range s.Where {
		path, value, err := ParseWhere(expr)
		if err != nil {
			return nil, err
		}
		parts = append(parts, PayloadEquals(path, value))
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return All(parts...), nil
	}
}

// ParseWhere splits a "path=value" payload condition.
func ParseWhere(expr string) (path, value string, err error) {
	path, value, ok := strings.Cut(expr, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return "", "", fmt.Errorf("notify: invalid payload condition %q (want path=value)", expr)
	}
	return path, strings.TrimSpace(value), nil
}

// matchKindPattern matches a dot-separated kind against a pattern.
func matchKindPattern(pattern, kind string) bool {
	if pattern == kind {
		return true
	}

	patParts := strings.Split(pattern, ".")
	kindParts := strings.Split(kind, ".")

	for i, pp := range patParts {
		if pp == ">" {
			return i < len(kindParts)
		}
		if i >= len(kindParts) {
			return false
		}
		if pp != "*" && pp != kindParts[i] {
			return false
		}
	}

	return len(patParts) == len(kindParts)
}
