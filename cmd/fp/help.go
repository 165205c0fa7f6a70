package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/feedpulse/internal/ui"
	"github.com/spf13/cobra"
)

// helpRule rewrites every match of re in cobra's plain help text.
type helpRule struct {
	re     *regexp.Regexp
	render func(parts []string) string
}

var helpRules = []helpRule{
	// Section headers such as "Events:" or "Flags:".
	{
		re:     regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`),
		render: func(p []string) string { return ui.RenderAccent(strings.TrimSpace(p[0])) },
	},
	// Command names: two-space indent, a word, then the description column.
	{
		re:     regexp.MustCompile(`(?m)^(  )(\S+)(  )`),
		render: func(p []string) string { return p[1] + ui.RenderCommand(p[2]) + p[3] },
	},
	// Flag value types, e.g. "--limit int".
	{
		re:     regexp.MustCompile(`(--?\S+\s+)(string|int|uint|duration|strings|stringArray)\b`),
		render: func(p []string) string { return p[1] + ui.RenderMuted(p[2]) },
	},
	// Defaults, quoted or numeric: (default "x"), (default 100).
	{
		re:     regexp.MustCompile(`\(default (?:"[^"]*"|[0-9][^)]*)\)`),
		render: func(p []string) string { return ui.RenderMuted(p[0]) },
	},
}

// colorizedHelpFunc returns a cobra help function that styles the default
// help text when the terminal supports colour.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)

		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			return rule.render(rule.re.FindStringSubmatch(match))
		})
	}
	return s
}
