package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/forms/internal/ui"
)

// helpRule colorizes the parts of Cobra's help text matched by re. Groups
// in re are rendered by style in order; a nil style leaves a group as is.
type helpRule struct {
	re    *regexp.Regexp
	style []func(string) string
}

var helpRules = []helpRule{
	// Section headers: unindented line ending with ":" (e.g. "Forms:", "Flags:").
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), []func(string) string{ui.RenderAccent}},
	// Command names: two-space indent, a word, then two or more spaces.
	{regexp.MustCompile(`(?m)^  (\S+)(  )`), []func(string) string{ui.RenderCommand, nil}},
	// Flag type annotations, e.g. "--server string".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration|strings|stringArray)\b`), []func(string) string{nil, ui.RenderMuted}},
	// Default values, e.g. (default "http").
	{regexp.MustCompile(`(\(default "[^"]*"\))`), []func(string) string{ui.RenderMuted}},
}

// colorizedHelpFunc returns a Cobra help function that post-processes the
// default help text with ANSI colors when the terminal supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		var buf bytes.Buffer
		if desc := strings.TrimSpace(cmd.Long); desc != "" {
			fmt.Fprintf(&buf, "%s\n\n", desc)
		} else if cmd.Short != "" {
			fmt.Fprintf(&buf, "%s\n\n", cmd.Short)
		}
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)

		if noColor || !ui.ShouldUseColor() {
			fmt.Fprint(out, buf.String())
			return
		}
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput applies every helpRule to s.
func colorizeHelpOutput(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			parts := rule.re.FindStringSubmatchIndex(match)
			if parts == nil {
				return match
			}
			var b strings.Builder
			last := 0
			for g, style := range rule.style {
				start, end := parts[2*(g+1)], parts[2*(g+1)+1]
				if start < 0 {
					continue
				}
				b.WriteString(match[last:start])
				if style != nil {
					b.WriteString(style(strings.TrimSpace(match[start:end])))
					b.WriteString(trailingSpace(match[start:end]))
				} else {
					b.WriteString(match[start:end])
				}
				last = end
			}
			b.WriteString(match[last:])
			return b.String()
		})
	}
	return s
}

func trailingSpace(s string) string {
	return s[len(strings.TrimRight(s, " \t")):]
}
