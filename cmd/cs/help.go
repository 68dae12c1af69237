package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/callsheet/internal/ui"
)

// helpRule colors one kind of match in cobra's plain help text.
type helpRule struct {
	re    *regexp.Regexp
	paint func(parts []string) string
}

var helpRules = []helpRule{
	// Group headers such as "Leads:" or "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), func(p []string) string {
		return ui.RenderAccent(p[1])
	}},
	// Command names in the listing.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(p []string) string {
		return p[1] + ui.RenderCommand(p[2]) + p[3]
	}},
	// Flag type annotations: "--user string", "--limit int".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration|strings)\b`), func(p []string) string {
		return p[1] + ui.RenderMuted(p[2])
	}},
	{regexp.MustCompile(`\(default [^)]*\)`), func(p []string) string {
		return ui.RenderMuted(p[0])
	}},
}

func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(m string) string {
			return r.paint(r.re.FindStringSubmatch(m))
		})
	}
	return s
}

// colorizedHelpFunc renders cobra's usage text, colored on a terminal.
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
