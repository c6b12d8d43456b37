package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/forms/internal/events"
	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/ui"
)

func TestDescribeEvent(t *testing.T) {
	ui.SetColor(false)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		topic string
		data  string
		want  string
	}{
		{
			name:  "form created",
			topic: events.TopicFormCreated,
			data:  `{"form":{"id":"frm-1","title":"Signup","version":1,"fields":[{"label":"name","type":"text","required":false,"position":0}]}}`,
			want:  `09:30:00 forms.form.created frm-1 "Signup" (1 fields)`,
		},
		{
			name:  "form replaced",
			topic: events.TopicFormReplaced,
			data:  `{"form":{"id":"frm-1","title":"Signup","version":3,"fields":[]},"previous_version":2}`,
			want:  `09:30:00 forms.form.replaced frm-1 "Signup" v2 -> v3`,
		},
		{
			name:  "form deleted",
			topic: events.TopicFormDeleted,
			data:  `{"form_id":"frm-1","policy":"cascade"}`,
			want:  `09:30:00 forms.form.deleted frm-1 (cascade)`,
		},
		{
			name:  "submission",
			topic: events.TopicSubmissionCreated,
			data:  `{"submission":{"id":"sub-1","form_id":"frm-1","form_version":2,"values":{"name":"Ada","age":36}}}`,
			want:  `09:30:00 forms.submission.created sub-1 on frm-1 (v2): age=36, name=Ada`,
		},
		{
			name:  "not json",
			topic: "forms.other",
			data:  `garbage`,
			want:  `09:30:00 forms.other garbage`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := describeEvent(tc.topic, []byte(tc.data), at); got != tc.want {
				t.Errorf("describeEvent()\n got: %s\nwant: %s", got, tc.want)
			}
		})
	}
}

func TestSummarizeValues(t *testing.T) {
	values := map[string]any{
		"tags":  []any{"a", "b"},
		"name":  "Ada",
		"empty": nil,
	}
	if got, want := summarizeValues(values, 0), "empty=, name=Ada, tags=a|b"; got != want {
		t.Errorf("summarizeValues = %q, want %q", got, want)
	}
	if got, want := summarizeValues(values, 12), "empty=, n..."; got != want {
		t.Errorf("truncated = %q, want %q", got, want)
	}
}

func TestPrintListsEmpty(t *testing.T) {
	ui.SetColor(false)
	var buf bytes.Buffer
	printFormListTable(&buf, nil)
	printSubmissionListTable(&buf, nil)
	if got := buf.String(); got != "no forms\nno submissions\n" {
		t.Errorf("output = %q", got)
	}
}

func TestPrintFieldErrors(t *testing.T) {
	ui.SetColor(false)
	var buf bytes.Buffer
	printFieldErrors(&buf, []model.FieldError{
		{Field: "name", Code: model.CodeRequiredFieldMissing, Message: "is required"},
		{Field: "age", Code: model.CodeTypeMismatch, Message: "must be a number"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "name is required") || !strings.Contains(lines[1], "age must be a number") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
