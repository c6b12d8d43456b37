package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/forms/internal/store"
)

// Record types written by ExportJSONL.
const (
	recordHeader     = "header"
	recordForm       = "form"
	recordSubmission = "submission"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	FormCount       int       `json:"form_count"`
	SubmissionCount int       `json:"submission_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// ExportJSONL writes every form and its submissions from the store as JSONL
// to w. Forms appear in creation order, each followed by its submissions in
// submission order. All records come from one store snapshot, so the header
// counts always match the records that follow.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	forms, subs := snap.Forms, snap.Submissions
	total := 0
	for _, f := range forms {
		total += len(subs[f.ID])
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            recordHeader,
		Timestamp:       now(),
		FormCount:       len(forms),
		SubmissionCount: total,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, f := range forms {
		if err := enc.Encode(record{Type: recordForm, Data: f}); err != nil {
			return fmt.Errorf("encode form %s: %w", f.ID, err)
		}
		for _, sub := range subs[f.ID] {
			if err := enc.Encode(record{Type: recordSubmission, Data: sub}); err != nil {
				return fmt.Errorf("encode submission %s: %w", sub.ID, err)
			}
		}
	}

	return nil
}
