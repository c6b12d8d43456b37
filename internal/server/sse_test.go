package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/forms/internal/events"
)

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern, topic string
		want           bool
	}{
		{"forms.form.created", "forms.form.created", true},
		{"forms.form.*", "forms.form.deleted", true},
		{"forms.form.*", "forms.submission.created", false},
		{"forms.>", "forms.submission.created", true},
		{"forms.>", "forms", false},
		{"forms.*", "forms.form.created", false},
		{"forms.form.created.x", "forms.form.created", false},
	} {
		if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

func TestSSEHub_BroadcastFiltersByTopic(t *testing.T) {
	h := newSSEHub()
	forms, _ := h.subscribe([]string{"forms.form.*"}, 0)
	all, _ := h.subscribe(nil, 0)
	defer h.unsubscribe(forms)
	defer h.unsubscribe(all)

	h.broadcast(events.TopicFormCreated, []byte(`{"n":1}`))
	h.broadcast(events.TopicSubmissionCreated, []byte(`{"n":2}`))

	if got := len(forms.ch); got != 1 {
		t.Fatalf("filtered client got %d events, want 1", got)
	}
	if evt := <-forms.ch; evt.Topic != events.TopicFormCreated || evt.ID != 1 {
		t.Errorf("unexpected event %+v", evt)
	}
	if got := len(all.ch); got != 2 {
		t.Fatalf("unfiltered client got %d events, want 2", got)
	}
}

func TestSSEHub_Replay(t *testing.T) {
	h := newSSEHub()
	for i := 0; i < 3; i++ {
		h.broadcast(events.TopicFormCreated, []byte(`{}`))
	}
	h.broadcast(events.TopicSubmissionCreated, []byte(`{}`))

	c, replay := h.subscribe([]string{events.TopicFormCreated}, 1)
	defer h.unsubscribe(c)
	if len(replay) != 2 || replay[0].ID != 2 || replay[1].ID != 3 {
		t.Fatalf("unexpected replay %+v", replay)
	}

	c2, replay := h.subscribe(nil, 0)
	defer h.unsubscribe(c2)
	if len(replay) != 0 {
		t.Errorf("expected no replay without Last-Event-ID, got %d", len(replay))
	}
}

func TestSSEHub_ReplayIsBounded(t *testing.T) {
	h := newSSEHub()
	for i := 0; i < sseReplaySize+10; i++ {
		h.broadcast(events.TopicFormCreated, nil)
	}
	if len(h.recent) != sseReplaySize {
		t.Fatalf("recent = %d, want %d", len(h.recent), sseReplaySize)
	}
	if h.recent[0].ID != 11 {
		t.Errorf("oldest kept id = %d, want 11", h.recent[0].ID)
	}
}

func TestSSEHub_SlowClientDoesNotBlock(t *testing.T) {
	h := newSSEHub()
	c, _ := h.subscribe(nil, 0)
	defer h.unsubscribe(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sseClientBuffer*2; i++ {
			h.broadcast(events.TopicFormCreated, nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	if len(c.ch) != sseClientBuffer {
		t.Errorf("client queue = %d, want %d", len(c.ch), sseClientBuffer)
	}
}

func TestHandleEventStream(t *testing.T) {
	s, _, h := newTestServer()
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/events/stream?topics=forms.form.*", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// The subscription is registered before the headers are flushed.
	if _, err := s.createForm(ctx, signupInput()); err != nil {
		t.Fatalf("createForm: %v", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 3 {
		t.Fatalf("expected id/event/data lines, got %q", lines)
	}
	if lines[0] != "id:1" || lines[1] != "event:"+events.TopicFormCreated {
		t.Errorf("unexpected header lines %q", lines[:2])
	}
	if !strings.HasPrefix(lines[2], `data:{"form":{`) {
		t.Errorf("unexpected data line %q", lines[2])
	}
}
