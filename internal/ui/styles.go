// Package ui renders CLI output: ANSI colours for event kinds and
// connection states, disabled when stdout is not a colour terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorCmd     = 250 // light gray
	colorMuted   = 245 // medium gray
	colorComment = 110 // pale blue
	colorReview  = 179 // amber
	colorDone    = 114 // green
	colorAlert   = 167 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderError returns s in the alert (red) color.
func RenderError(s string) string { return paint(colorAlert, s) }

// RenderKind returns the kind name coloured by its family: comments blue,
// requests amber, approvals and resolutions green. Custom kinds use the
// accent colour whatever their name.
func RenderKind(k model.Kind) string {
	s := string(k)
	switch {
	case !k.IsBuiltin():
		return paint(colorAccent, s)
	case strings.HasPrefix(s, "comment."):
		return paint(colorComment, s)
	case strings.HasSuffix(s, ".requested"):
		return paint(colorReview, s)
	case k == model.KindApproval || k == model.KindResolved:
		return paint(colorDone, s)
	default:
		return paint(colorAccent, s)
	}
}

// RenderStatus returns the connection status, green when connected.
func RenderStatus(st model.ConnectionStatus) string {
	if st == model.StatusConnected {
		return paint(colorDone, st.String())
	}
	return paint(colorMuted, st.String())
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
