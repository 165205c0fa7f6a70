package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout should receive ANSI colour. NO_COLOR
// wins over CLICOLOR_FORCE, which wins over CLICOLOR=0 and TTY detection.
func ShouldUseColor() bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// DetectColor turns colour off for the rest of the process unless stdout
// supports it.
func DetectColor() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
