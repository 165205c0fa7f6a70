package model

import "strings"

// Kind categorizes an Event. The set is open: hosts may publish kinds that
// are not listed here and the engine routes them like any other.
type Kind string

const (
	KindCommentAdded      Kind = "comment.added"
	KindCommentReplied    Kind = "comment.replied"
	KindApproval          Kind = "approval"
	KindRevisionRequested Kind = "revision.requested"
	KindResolved          Kind = "resolved"
	KindVideoUploaded     Kind = "video.uploaded"
	KindFeedbackRequested Kind = "feedback.requested"
)

// BuiltinKinds lists the kinds the product emits today.
var BuiltinKinds = []Kind{
	KindCommentAdded,
	KindCommentReplied,
	KindApproval,
	KindRevisionRequested,
	KindResolved,
	KindVideoUploaded,
	KindFeedbackRequested,
}

func (k Kind) String() string { return string(k) }

// IsBuiltin reports whether k is one of BuiltinKinds.
func (k Kind) IsBuiltin() bool {
	for _, b := range BuiltinKinds {
		if k == b {
			return true
		}
	}
	return false
}

// ParseKinds splits a comma-separated list such as a "kinds" query
// parameter. Blank entries are dropped; an empty list yields nil.
func ParseKinds(csv string) []Kind {
	var out []Kind
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, Kind(part))
		}
	}
	return out
}
