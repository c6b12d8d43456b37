package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/forms/internal/ui"
)

var submitCmd = &cobra.Command{
	Use:     "submit <form-id> [label=value...]",
	Short:   "Submit values against a form",
	GroupID: "submissions",
	Long: `Submit values against a form.

Values are given as label=value pairs or read from a YAML/JSON file with -f.
Pair values are sent as written, so 02134 stays 02134; the server converts
them to the field's type. A flow list such as [red, blue] becomes a list
for multiple-choice fields, and surrounding quotes are stripped. Quote
labels that contain spaces.`,
	Example: `  fd submit fm-Ab3dE9xYz1 name=Ada age=36 "favorite color=blue"
  fd submit fm-Ab3dE9xYz1 -f answers.yaml`,
	Args: formIDArgs(cobra.MinimumNArgs(1), 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := valuesFromFlags(cmd, args[1:])
		if err != nil {
			return err
		}
		sub, err := formsClient.CreateSubmission(context.Background(), args[0], values)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), sub)
		}
		printSubmissionTable(cmd.OutOrStdout(), sub)
		return nil
	},
}

var submissionsCmd = &cobra.Command{
	Use:     "submissions <form-id>",
	Short:   "List a form's submissions in submission order",
	GroupID: "submissions",
	Args:    formIDArgs(cobra.ExactArgs(1), 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := formsClient.ListSubmissions(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), subs)
		}
		printSubmissionListTable(cmd.OutOrStdout(), subs)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:     "validate <form-id> [label=value...]",
	Short:   "Check values against a form without storing them",
	GroupID: "submissions",
	Long: `Check values against a form without storing them.

Takes the same input as submit. Exits non-zero when the values are invalid.`,
	Args: formIDArgs(cobra.MinimumNArgs(1), 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := valuesFromFlags(cmd, args[1:])
		if err != nil {
			return err
		}
		res, err := formsClient.ValidateSubmission(context.Background(), args[0], values)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, res); err != nil {
				return err
			}
		} else if res.Valid {
			fmt.Fprintf(out, "%s valid\n", ui.RenderPass("✓"))
			printValues(out, res.Values)
		} else {
			fmt.Fprintf(out, "%s invalid\n", ui.RenderFail("✗"))
			printFieldErrors(out, res.Details)
		}
		if !res.Valid {
			return fmt.Errorf("submission is invalid (%d errors)", len(res.Details))
		}
		return nil
	},
}

// valuesFromFlags merges values from -f (if any) with label=value pairs.
// Pairs win over file entries with the same label.
func valuesFromFlags(cmd *cobra.Command, pairs []string) (map[string]any, error) {
	values := map[string]any{}

	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		var err error
		if values, err = readValuesFile(file, cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid value %q: expected label=value", p)
		}
		values[k] = parseValue(v)
	}
	return values, nil
}

func readValuesFile(path string, stdin io.Reader) (map[string]any, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

// parseValue keeps a command-line value as the string the user typed. A
// quoted scalar loses its quotes and a flow sequence of scalars becomes a
// list of strings; type conversion is left to the server.
func parseValue(s string) any {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) != 1 {
		return s
	}
	n := doc.Content[0]
	switch {
	case n.Kind == yaml.ScalarNode && n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0:
		return n.Value
	case n.Kind == yaml.SequenceNode && n.Style&yaml.FlowStyle != 0:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return s
			}
			items = append(items, c.Value)
		}
		return items
	}
	return s
}

func init() {
	for _, c := range []*cobra.Command{submitCmd, validateCmd} {
		c.Flags().StringP("file", "f", "", "values file (YAML or JSON, - for stdin)")
	}
}
