package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printFormTable(w io.Writer, f *model.FormSchema) {
	fmt.Fprintf(w, "ID:          %s\n", ui.RenderAccent(f.ID))
	fmt.Fprintf(w, "Title:       %s\n", f.Title)
	if f.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", f.Description)
	}
	fmt.Fprintf(w, "Version:     %d\n", f.Version)
	fmt.Fprintf(w, "Created At:  %s\n", f.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Updated At:  %s\n", f.UpdatedAt.Format(timeLayout))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLABEL\tTYPE\tREQUIRED\tOPTIONS")
	for _, field := range f.Fields {
		req := ""
		if field.Required {
			req = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			field.Position, field.Label, field.Type, req, strings.Join(field.Options, ", "))
	}
	tw.Flush()
}

func printFormListTable(w io.Writer, forms []*model.FormSchema) {
	if len(forms) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("no forms"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tFIELDS\tTITLE\tUPDATED")
	for _, f := range forms {
		title := f.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			f.ID, f.Version, len(f.Fields), title, f.UpdatedAt.Format(timeLayout))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d forms\n", len(forms))
}

func printSubmissionTable(w io.Writer, s *model.Submission) {
	fmt.Fprintf(w, "ID:           %s\n", ui.RenderAccent(s.ID))
	fmt.Fprintf(w, "Form:         %s (v%d)\n", s.FormID, s.FormVersion)
	fmt.Fprintf(w, "Submitted At: %s\n", s.SubmittedAt.Format(timeLayout))
	printValues(w, s.Values)
}

func printSubmissionListTable(w io.Writer, subs []*model.Submission) {
	if len(subs) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("no submissions"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tSUBMITTED\tVALUES")
	for _, s := range subs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			s.ID, s.FormVersion, s.SubmittedAt.Format(timeLayout), summarizeValues(s.Values, 60))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d submissions\n", len(subs))
}

func printValues(w io.Writer, values map[string]any) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(values) {
		fmt.Fprintf(tw, "  %s:\t%s\n", k, formatValue(values[k]))
	}
	tw.Flush()
}

// printFieldErrors lists each field failure on its own line.
func printFieldErrors(w io.Writer, details []model.FieldError) {
	for _, d := range details {
		fmt.Fprintf(w, "  %s %s %s\n", ui.RenderFail("✗"), ui.RenderCommand(d.Field), d.Message)
	}
}

// summarizeValues renders values as "k=v, k=v", truncated to limit bytes.
func summarizeValues(values map[string]any, limit int) string {
	parts := make([]string, 0, len(values))
	for _, k := range sortedKeys(values) {
		parts = append(parts, k+"="+formatValue(values[k]))
	}
	s := strings.Join(parts, ", ")
	if limit > 3 && len(s) > limit {
		s = s[:limit-3] + "..."
	}
	return s
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, "|")
	case []string:
		return strings.Join(v, "|")
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
